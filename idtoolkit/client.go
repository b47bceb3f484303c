package idtoolkit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/transport"
)

const (
	DefaultIdentityToolkitURL = "https://identitytoolkit.googleapis.com/v1"
	DefaultSecureTokenURL     = "https://securetoken.googleapis.com/v1/token"
	DefaultOAuthTokenURL      = "https://oauth2.googleapis.com/token"

	jwtBearerGrant = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

var (
	// ErrUserNotFound means accounts:lookup returned no account for the uid.
	ErrUserNotFound = errors.New("user not found")
	// ErrEmptyResponse means a success response lacked its essential field.
	ErrEmptyResponse = errors.New("empty response from identity service")
)

// Endpoints are the base URLs the client talks to. Zero fields fall back to
// the production defaults.
type Endpoints struct {
	IdentityToolkit string
	SecureToken     string
	OAuthToken      string
}

func (e Endpoints) withDefaults() Endpoints {
	if e.IdentityToolkit == "" {
		e.IdentityToolkit = DefaultIdentityToolkitURL
	}
	if e.SecureToken == "" {
		e.SecureToken = DefaultSecureTokenURL
	}
	if e.OAuthToken == "" {
		e.OAuthToken = DefaultOAuthTokenURL
	}
	e.IdentityToolkit = strings.TrimRight(e.IdentityToolkit, "/")
	return e
}

// Client calls the identity service on behalf of one project.
type Client struct {
	http      *transport.Client
	apiKey    string
	projectID string
	endpoints Endpoints
}

// New returns a Client. apiKey authenticates the public endpoints; admin
// calls take an access token per call.
func New(http *transport.Client, apiKey, projectID string, endpoints Endpoints) *Client {
	if http == nil {
		http = transport.New(nil)
	}
	return &Client{
		http:      http,
		apiKey:    apiKey,
		projectID: projectID,
		endpoints: endpoints.withDefaults(),
	}
}

// Endpoints returns the effective base URLs.
func (c *Client) Endpoints() Endpoints {
	return c.endpoints
}

func (c *Client) publicURL(method string) string {
	return c.endpoints.IdentityToolkit + "/accounts:" + method + "?key=" + url.QueryEscape(c.apiKey)
}

func (c *Client) adminURL(method string, accounts bool) string {
	base := c.endpoints.IdentityToolkit + "/projects/" + url.PathEscape(c.projectID)
	if accounts {
		base += "/accounts"
	}
	return base + ":" + method
}

// SignInWithIdp trades a provider id token for a first-party token pair.
func (c *Client) SignInWithIdp(ctx context.Context, providerIDToken, providerID, requestURI string) (*SignInResponse, error) {
	postBody := url.Values{
		"id_token":   {providerIDToken},
		"providerId": {providerID},
	}
	body := map[string]any{
		"postBody":          postBody.Encode(),
		"requestUri":        requestURI,
		"returnSecureToken": true,
	}
	var out SignInResponse
	if err := c.http.PostJSON(ctx, c.publicURL("signInWithIdp"), body, "", &out); err != nil {
		return nil, fmt.Errorf("signInWithIdp: %w", err)
	}
	if out.IDToken == "" || out.RefreshToken == "" {
		return nil, fmt.Errorf("signInWithIdp: %w", ErrEmptyResponse)
	}
	return &out, nil
}

// SignInWithCustomToken trades a custom token for a first-party token pair.
func (c *Client) SignInWithCustomToken(ctx context.Context, customToken string) (*SignInResponse, error) {
	body := map[string]any{
		"token":             customToken,
		"returnSecureToken": true,
	}
	var out SignInResponse
	if err := c.http.PostJSON(ctx, c.publicURL("signInWithCustomToken"), body, "", &out); err != nil {
		return nil, fmt.Errorf("signInWithCustomToken: %w", err)
	}
	if out.IDToken == "" {
		return nil, fmt.Errorf("signInWithCustomToken: %w", ErrEmptyResponse)
	}
	return &out, nil
}

// RefreshIDToken redeems a refresh token at the Secure Token endpoint.
func (c *Client) RefreshIDToken(ctx context.Context, refreshToken string) (*RefreshResponse, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	target := c.endpoints.SecureToken + "?key=" + url.QueryEscape(c.apiKey)
	var out RefreshResponse
	if err := c.http.PostForm(ctx, target, form, "", &out); err != nil {
		return nil, fmt.Errorf("refresh id token: %w", err)
	}
	if out.IDToken == "" {
		return nil, fmt.Errorf("refresh id token: %w", ErrEmptyResponse)
	}
	return &out, nil
}

// LookupByUID fetches one account with an admin access token.
func (c *Client) LookupByUID(ctx context.Context, accessToken, uid string) (*UserRecord, error) {
	var out struct {
		Users []UserRecord `json:"users"`
	}
	body := map[string]any{"localId": []string{uid}}
	if err := c.http.PostJSON(ctx, c.adminURL("lookup", true), body, accessToken, &out); err != nil {
		return nil, fmt.Errorf("accounts lookup: %w", err)
	}
	if len(out.Users) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrUserNotFound, uid)
	}
	return &out.Users[0], nil
}

// CreateSessionCookie mints a session cookie for idToken that lives for
// validFor.
func (c *Client) CreateSessionCookie(ctx context.Context, accessToken, idToken string, validFor time.Duration) (string, error) {
	body := map[string]any{
		"idToken":       idToken,
		"validDuration": int64(validFor / time.Second),
	}
	var out struct {
		SessionCookie string `json:"sessionCookie"`
	}
	if err := c.http.PostJSON(ctx, c.adminURL("createSessionCookie", false), body, accessToken, &out); err != nil {
		return "", fmt.Errorf("createSessionCookie: %w", err)
	}
	if out.SessionCookie == "" {
		return "", fmt.Errorf("createSessionCookie: %w", ErrEmptyResponse)
	}
	return out.SessionCookie, nil
}

// ExchangeJWTBearer redeems a signed service assertion for an access token.
func (c *Client) ExchangeJWTBearer(ctx context.Context, assertion string) (*AccessTokenResponse, error) {
	form := url.Values{
		"grant_type": {jwtBearerGrant},
		"assertion":  {assertion},
	}
	var out AccessTokenResponse
	if err := c.http.PostForm(ctx, c.endpoints.OAuthToken, form, "", &out); err != nil {
		return nil, fmt.Errorf("jwt-bearer exchange: %w", err)
	}
	if out.AccessToken == "" {
		return nil, fmt.Errorf("jwt-bearer exchange: %w", ErrEmptyResponse)
	}
	return &out, nil
}
