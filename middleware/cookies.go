package middleware

import (
	"context"
	"net/http"
	"time"

	goIdentity "github.com/MrEthical07/goIdentity"
)

const (
	DefaultIDTokenCookie      = "gi_id_token"
	DefaultRefreshTokenCookie = "gi_refresh_token"
	DefaultSessionCookie      = "gi_session"
)

// CookieOptions controls the cookies holding a token pair. Zero values
// select the defaults; MaxAge zero writes browser-session cookies.
type CookieOptions struct {
	IDTokenName      string
	RefreshTokenName string
	Path             string
	Domain           string
	Insecure         bool
	MaxAge           time.Duration
}

func (o CookieOptions) withDefaults() CookieOptions {
	if o.IDTokenName == "" {
		o.IDTokenName = DefaultIDTokenCookie
	}
	if o.RefreshTokenName == "" {
		o.RefreshTokenName = DefaultRefreshTokenCookie
	}
	if o.Path == "" {
		o.Path = "/"
	}
	return o
}

// CookieTokenStore is a goIdentity.TokenStore over one request and its
// response. Create one per request.
type CookieTokenStore struct {
	r    *http.Request
	w    http.ResponseWriter
	opts CookieOptions
}

var _ goIdentity.TokenStore = (*CookieTokenStore)(nil)

func NewCookieTokenStore(w http.ResponseWriter, r *http.Request, opts CookieOptions) *CookieTokenStore {
	return &CookieTokenStore{r: r, w: w, opts: opts.withDefaults()}
}

// GetTokens returns nil when either cookie is missing or empty.
func (s *CookieTokenStore) GetTokens(context.Context) (*goIdentity.TokenPair, error) {
	id, err := s.r.Cookie(s.opts.IDTokenName)
	if err != nil || id.Value == "" {
		return nil, nil
	}
	refresh, err := s.r.Cookie(s.opts.RefreshTokenName)
	if err != nil || refresh.Value == "" {
		return nil, nil
	}
	return &goIdentity.TokenPair{IDToken: id.Value, RefreshToken: refresh.Value}, nil
}

func (s *CookieTokenStore) StoreTokens(_ context.Context, pair goIdentity.TokenPair) error {
	http.SetCookie(s.w, s.cookie(s.opts.IDTokenName, pair.IDToken, int(s.opts.MaxAge/time.Second)))
	http.SetCookie(s.w, s.cookie(s.opts.RefreshTokenName, pair.RefreshToken, int(s.opts.MaxAge/time.Second)))
	return nil
}

func (s *CookieTokenStore) ClearTokens(context.Context) error {
	http.SetCookie(s.w, s.cookie(s.opts.IDTokenName, "", -1))
	http.SetCookie(s.w, s.cookie(s.opts.RefreshTokenName, "", -1))
	return nil
}

func (s *CookieTokenStore) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     s.opts.Path,
		Domain:   s.opts.Domain,
		MaxAge:   maxAge,
		Secure:   !s.opts.Insecure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
