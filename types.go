package goIdentity

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/idtoolkit"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/oauth"
)

// Claims are the verified claims of an id token or session cookie.
type Claims = jwt.IdentityClaims

// UserRecord is an account as returned by GetUser.
type UserRecord = idtoolkit.UserRecord

// TokenPair is an id token and the refresh token that renews it. The engine
// never stores pairs; it hands new ones back to the caller.
type TokenPair struct {
	IDToken      string
	RefreshToken string
}

// Valid reports whether both tokens are present.
func (p *TokenPair) Valid() bool {
	return p != nil && p.IDToken != "" && p.RefreshToken != ""
}

// Session is the outcome of EstablishSession.
type Session struct {
	Tokens    TokenPair
	Claims    *Claims
	ExpiresIn time.Duration
	IsNewUser bool
	State     oauth.State
}

// CurrentUser is the outcome of GetCurrentUser.
//
// Claims is nil when there is no session. Refreshed is non-nil when the id
// token was renewed and the caller must store the new pair. ClearTokens is
// set when the stored pair can never become valid again.
type CurrentUser struct {
	Claims      *Claims
	Refreshed   *TokenPair
	ClearTokens bool
}

// Authenticated reports whether a user was resolved.
func (u *CurrentUser) Authenticated() bool {
	return u != nil && u.Claims != nil
}

// TokenStore persists a token pair between requests, typically in cookies.
type TokenStore interface {
	GetTokens(ctx context.Context) (*TokenPair, error)
	StoreTokens(ctx context.Context, pair TokenPair) error
	ClearTokens(ctx context.Context) error
}

// LoginURL is a provider consent URL with the state it carries.
type LoginURL struct {
	URL   string
	State oauth.LoginState
}
