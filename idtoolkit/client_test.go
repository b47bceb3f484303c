package idtoolkit

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/MrEthical07/goIdentity/transport"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(transport.New(srv.Client()), "api-key", "demo", Endpoints{
		IdentityToolkit: srv.URL + "/v1",
		SecureToken:     srv.URL + "/securetoken",
		OAuthToken:      srv.URL + "/oauth",
	})
}

func decodeJSON(t *testing.T, r *http.Request) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Errorf("decode body: %v", err)
	}
	return body
}

func TestSignInWithIdpBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/accounts:signInWithIdp" || r.URL.Query().Get("key") != "api-key" {
			t.Errorf("unexpected target %s", r.URL.String())
		}
		body := decodeJSON(t, r)
		post, _ := url.ParseQuery(body["postBody"].(string))
		if post.Get("id_token") != "google-token" || post.Get("providerId") != "google.com" {
			t.Errorf("unexpected postBody %v", body["postBody"])
		}
		if body["requestUri"] != "https://app.example.com/callback" || body["returnSecureToken"] != true {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = io.WriteString(w, `{"idToken":"id","refreshToken":"rt","expiresIn":"3600","localId":"u1"}`)
	})

	out, err := c.SignInWithIdp(context.Background(), "google-token", "google.com", "https://app.example.com/callback")
	if err != nil {
		t.Fatalf("SignInWithIdp: %v", err)
	}
	if out.IDToken != "id" || out.RefreshToken != "rt" || out.ExpiresIn() != time.Hour {
		t.Fatalf("unexpected response %+v", out)
	}
}

func TestRefreshIDTokenUsesForm(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/securetoken" || r.URL.Query().Get("key") != "api-key" {
			t.Errorf("unexpected target %s", r.URL.String())
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != "rt" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		_, _ = io.WriteString(w, `{"id_token":"new-id","refresh_token":"new-rt","expires_in":"3600","user_id":"u1"}`)
	})

	out, err := c.RefreshIDToken(context.Background(), "rt")
	if err != nil {
		t.Fatalf("RefreshIDToken: %v", err)
	}
	if out.IDToken != "new-id" || out.RefreshToken != "new-rt" {
		t.Fatalf("unexpected response %+v", out)
	}
}

func TestRefreshIDTokenSurfacesUpstreamError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"TOKEN_EXPIRED"}}`)
	})

	_, err := c.RefreshIDToken(context.Background(), "rt")
	var apiErr *transport.APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "TOKEN_EXPIRED" {
		t.Fatalf("expected upstream TOKEN_EXPIRED, got %v", err)
	}
}

func TestLookupByUID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/projects/demo/accounts:lookup" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer admin-token" {
			t.Errorf("missing admin bearer")
		}
		body := decodeJSON(t, r)
		if ids, _ := body["localId"].([]any); len(ids) != 1 || ids[0] == "missing" {
			_, _ = io.WriteString(w, `{}`)
			return
		}
		_, _ = io.WriteString(w, `{"users":[{"localId":"u1","disabled":true,"validSince":"1700000000","createdAt":"1600000000000","customAttributes":"{\"role\":\"admin\"}"}]}`)
	})

	user, err := c.LookupByUID(context.Background(), "admin-token", "u1")
	if err != nil {
		t.Fatalf("LookupByUID: %v", err)
	}
	if !user.Disabled || !user.TokensValidAfter().Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected user %+v", user)
	}
	if !user.Created().Equal(time.UnixMilli(1600000000000)) {
		t.Fatalf("unexpected created time %v", user.Created())
	}
	claims, err := user.CustomClaims()
	if err != nil || claims["role"] != "admin" {
		t.Fatalf("unexpected custom claims %v %v", claims, err)
	}

	if _, err := c.LookupByUID(context.Background(), "admin-token", "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestCreateSessionCookieSendsSeconds(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/projects/demo:createSessionCookie" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		body := decodeJSON(t, r)
		if body["validDuration"] != float64(3600) || body["idToken"] != "id" {
			t.Errorf("unexpected body %v", body)
		}
		_, _ = io.WriteString(w, `{"sessionCookie":"cookie"}`)
	})

	cookie, err := c.CreateSessionCookie(context.Background(), "admin-token", "id", time.Hour)
	if err != nil || cookie != "cookie" {
		t.Fatalf("unexpected result %q %v", cookie, err)
	}
}

func TestExchangeJWTBearer(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != jwtBearerGrant || r.PostForm.Get("assertion") != "signed" {
			t.Errorf("unexpected form %v", r.PostForm)
		}
		_, _ = io.WriteString(w, `{"access_token":"ya29","expires_in":3599,"token_type":"Bearer"}`)
	})

	out, err := c.ExchangeJWTBearer(context.Background(), "signed")
	if err != nil || out.AccessToken != "ya29" || out.ExpiresIn != 3599 {
		t.Fatalf("unexpected result %+v %v", out, err)
	}
}

func TestSignInWithCustomTokenRejectsEmptyResponse(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{}`)
	})
	if _, err := c.SignInWithCustomToken(context.Background(), "ct"); !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("expected ErrEmptyResponse, got %v", err)
	}
}
