package goIdentity

import (
	"errors"

	"github.com/MrEthical07/goIdentity/idtoolkit"
	internalflows "github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/oauth"
	"github.com/MrEthical07/goIdentity/transport"
)

// Token verification errors. Every error returned by VerifyIdentity and
// VerifySessionCookie matches exactly one of these with errors.Is, except
// that ErrTokenExpired and ErrClaimInvalid are disjoint.
var (
	ErrMalformedToken       = jwt.ErrMalformedToken
	ErrUnsupportedAlgorithm = jwt.ErrUnsupportedAlgorithm
	ErrUnknownSigningKey    = jwt.ErrUnknownSigningKey
	ErrSignatureInvalid     = jwt.ErrSignatureInvalid
	ErrClaimInvalid         = jwt.ErrClaimInvalid
	ErrTokenExpired         = jwt.ErrTokenExpired
	ErrKeyFetchFailed       = jwt.ErrKeyFetchFailed
)

// Signing errors.
var (
	ErrReservedClaim = jwt.ErrReservedClaim
	ErrKeyImport     = jwt.ErrKeyImport
	ErrInvalidUID    = jwt.ErrInvalidUID
)

var (
	// ErrUpstream is matched by every identity service or provider error body.
	ErrUpstream = transport.ErrUpstream
	// ErrUserNotFound means the account behind a token no longer exists.
	ErrUserNotFound = idtoolkit.ErrUserNotFound
	// ErrInvalidLoginState means a login state parameter failed to decode.
	ErrInvalidLoginState = oauth.ErrInvalidLoginState

	// ErrTokenRevoked means the account revoked its tokens after auth_time.
	ErrTokenRevoked = internalflows.ErrTokenRevoked
	// ErrUserDisabled means the account behind a token is disabled.
	ErrUserDisabled = internalflows.ErrUserDisabled
	// ErrRefreshRateLimited means the refresh token exceeded its refresh budget.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrExchangeRateLimited means the client IP exceeded its code exchange budget.
	ErrExchangeRateLimited = errors.New("code exchange rate limited")
	// ErrRateLimiterUnavailable means the Redis counters could not be reached.
	ErrRateLimiterUnavailable = errors.New("rate limiter backend unavailable")
	// ErrServiceAccountRequired means an admin operation ran without service account credentials.
	ErrServiceAccountRequired = errors.New("service account required")
	// ErrInvalidServiceAccount means the service account key file is unusable.
	ErrInvalidServiceAccount = errors.New("invalid service account")
	// ErrInvalidCookieDuration means a session cookie lifetime is outside the allowed range.
	ErrInvalidCookieDuration = errors.New("session cookie duration out of range")
	// ErrEngineNotReady means the engine was not produced by Builder.Build.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrNoSession means a TokenStore held no tokens.
	ErrNoSession = errors.New("no session")
)

// UpstreamError is the decoded error body of a failed identity service or
// provider call.
type UpstreamError = transport.APIError

// ClaimError names the claim that failed validation.
type ClaimError = jwt.ClaimError

// ReservedClaimError names a developer claim that collides with a reserved one.
type ReservedClaimError = jwt.ReservedClaimError

// ExchangeError reports the state an authorization code exchange reached.
type ExchangeError = oauth.ExchangeError
