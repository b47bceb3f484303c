package transport

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestPostFormSendsFormBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/x-www-form-urlencoded" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if r.PostForm.Get("grant_type") != "refresh_token" {
			t.Errorf("unexpected grant_type %q", r.PostForm.Get("grant_type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id_token":"a"}`)
	}))
	defer srv.Close()

	var out struct {
		IDToken string `json:"id_token"`
	}
	err := New(srv.Client()).PostForm(context.Background(), srv.URL, url.Values{"grant_type": {"refresh_token"}}, "", &out)
	if err != nil {
		t.Fatalf("PostForm failed: %v", err)
	}
	if out.IDToken != "a" {
		t.Fatalf("expected id_token a, got %q", out.IDToken)
	}
}

func TestPostJSONUnwrapsGoogleErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer tok" {
			t.Errorf("unexpected authorization %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"code":400,"message":"INVALID_IDP_RESPONSE","errors":[{"message":"INVALID_IDP_RESPONSE","domain":"global","reason":"invalid"}]}}`)
	}))
	defer srv.Close()

	err := New(srv.Client()).PostJSON(context.Background(), srv.URL, map[string]string{"a": "b"}, "tok", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if apiErr.Code != 400 || apiErr.Message != "INVALID_IDP_RESPONSE" {
		t.Fatalf("unexpected error fields: %+v", apiErr)
	}
	if len(apiErr.Errors) != 1 || apiErr.Errors[0].Reason != "invalid" {
		t.Fatalf("expected detail list to survive, got %+v", apiErr.Errors)
	}
	if !errors.Is(err, ErrUpstream) {
		t.Fatal("expected errors.Is(err, ErrUpstream)")
	}
}

func TestDecodeErrorShapes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		code    int
		message string
	}{
		{name: "google", status: 400, body: `{"error":{"code":400,"message":"TOKEN_EXPIRED"}}`, code: 400, message: "TOKEN_EXPIRED"},
		{name: "oauth", status: 400, body: `{"error":"invalid_grant","error_description":"Bad Request"}`, code: 400, message: "invalid_grant: Bad Request"},
		{name: "text", status: 502, body: "bad gateway\n", code: 502, message: "bad gateway"},
		{name: "empty", status: 503, body: "", code: 503, message: "Service Unavailable"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := DecodeError(tc.status, []byte(tc.body))
			if got.Code != tc.code || got.Message != tc.message || got.Status != tc.status {
				t.Fatalf("unexpected decode: %+v", got)
			}
		})
	}
}

func TestMalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{not json`)
	}))
	defer srv.Close()

	var out map[string]any
	err := New(srv.Client()).GetJSON(context.Background(), srv.URL, &out)
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected ErrMalformedResponse, got %v", err)
	}
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestRequestFailureRedactsQuery(t *testing.T) {
	err := New(failingDoer{}).GetJSON(context.Background(), "https://example.test/v1/token?key=secret", nil)
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("expected ErrRequestFailed, got %v", err)
	}
	if strings.Contains(err.Error(), "secret") {
		t.Fatalf("api key leaked into error: %v", err)
	}
}

func TestHTTPClientAdapterUsesDoer(t *testing.T) {
	c := New(failingDoer{})
	hc := c.HTTPClient()
	if _, err := hc.Get("https://example.test/"); err == nil {
		t.Fatal("expected adapter to route through failing doer")
	}
}
