package middleware

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	goIdentity "github.com/MrEthical07/goIdentity"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims a guard attached to ctx.
func ClaimsFromContext(ctx context.Context) (*goIdentity.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*goIdentity.Claims)
	return claims, ok && claims != nil
}

// Options configures Guard.
type Options struct {
	Cookies      CookieOptions
	CheckRevoked bool
	// Optional passes anonymous requests through without claims instead of
	// rejecting them.
	Optional bool
}

// Guard resolves the user from the token pair cookies, refreshing and
// rewriting them when the id token has expired.
func Guard(engine *goIdentity.Engine, opts Options) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := withRemoteIP(r)
			store := NewCookieTokenStore(w, r, opts.Cookies)

			claims, err := engine.Authenticate(ctx, store, opts.CheckRevoked)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			if claims == nil {
				if !opts.Optional {
					http.Error(w, "unauthorized", http.StatusUnauthorized)
					return
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, claimsContextKey{}, claims)))
		})
	}
}

// RequireBearer verifies an id token sent as a bearer token. Nothing is
// refreshed; clients renew their own tokens.
func RequireBearer(engine *goIdentity.Engine, checkRevoked bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if engine == nil || !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := withRemoteIP(r)
			claims, err := engine.VerifyIdentityChecked(ctx, token, checkRevoked)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, claimsContextKey{}, claims)))
		})
	}
}

// RequireSessionCookie verifies a session cookie minted by
// Engine.CreateSessionCookie. An empty name selects DefaultSessionCookie.
func RequireSessionCookie(engine *goIdentity.Engine, name string, checkRevoked bool) func(http.Handler) http.Handler {
	if name == "" {
		name = DefaultSessionCookie
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c, err := r.Cookie(name)
			if engine == nil || err != nil || c.Value == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			ctx := withRemoteIP(r)
			claims, err := engine.VerifySessionCookie(ctx, c.Value, checkRevoked)
			if err != nil {
				writeAuthError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, claimsContextKey{}, claims)))
		})
	}
}

func writeAuthError(w http.ResponseWriter, err error) {
	switch {
	case goIdentity.IsSessionError(err):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	case errors.Is(err, goIdentity.ErrRefreshRateLimited):
		http.Error(w, "too many requests", http.StatusTooManyRequests)
	default:
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}
}

func withRemoteIP(r *http.Request) context.Context {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return goIdentity.WithClientIP(r.Context(), host)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := strings.TrimSpace(value[len(bearer):])
	return token, token != ""
}
