package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/jwt"
)

// TokenPair is an id token with the refresh token that renews it.
type TokenPair struct {
	IDToken      string
	RefreshToken string
}

// SessionState is where RunCurrentUser stopped.
type SessionState int

const (
	SessionNoSession SessionState = iota
	SessionVerifyingIDToken
	SessionRefreshing
	SessionAuthenticated
	SessionInvalid
)

func (s SessionState) String() string {
	switch s {
	case SessionNoSession:
		return "no_session"
	case SessionVerifyingIDToken:
		return "verifying_id_token"
	case SessionRefreshing:
		return "refreshing"
	case SessionAuthenticated:
		return "authenticated"
	case SessionInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// SessionFailureKind classifies session failures for root-level mapping.
type SessionFailureKind int

const (
	SessionFailureNone SessionFailureKind = iota
	SessionFailureVerify
	SessionFailureRateLimited
	SessionFailureRefresh
	SessionFailureReverify
	SessionFailureRevoked
)

// SessionResult carries the verified claims or failure metadata.
type SessionResult struct {
	State       SessionState
	Failure     SessionFailureKind
	Err         error
	Claims      *jwt.IdentityClaims
	Refreshed   *TokenPair
	ClearTokens bool
	// Refreshes counts refresh calls made by this run (0 or 1).
	Refreshes int
}

type RefreshRateLimiter interface {
	CheckRefresh(ctx context.Context, key string) error
}

// SessionDeps captures current-user flow dependencies.
type SessionDeps struct {
	Verify       func(ctx context.Context, idToken string) (*jwt.IdentityClaims, error)
	Refresh      func(ctx context.Context, refreshToken string) (TokenPair, error)
	CheckRevoked func(ctx context.Context, claims *jwt.IdentityClaims) error
	RefreshKey   func(refreshToken string) string
	RateLimiter  RefreshRateLimiter
}

// RunCurrentUser resolves the user behind a stored token pair, refreshing
// once if the id token has expired. A refreshed id token is verified again
// before its claims are exposed.
func RunCurrentUser(ctx context.Context, stored *TokenPair, checkRevoked bool, deps SessionDeps) SessionResult {
	if stored == nil || stored.IDToken == "" || stored.RefreshToken == "" {
		return SessionResult{State: SessionNoSession}
	}

	claims, err := deps.Verify(ctx, stored.IDToken)
	if err == nil {
		return finishSession(ctx, claims, nil, 0, checkRevoked, deps)
	}
	if !errors.Is(err, jwt.ErrTokenExpired) {
		return SessionResult{
			State:       SessionInvalid,
			Failure:     SessionFailureVerify,
			Err:         err,
			ClearTokens: shouldClear(ctx, err),
		}
	}

	if deps.RateLimiter != nil {
		key := stored.RefreshToken
		if deps.RefreshKey != nil {
			key = deps.RefreshKey(stored.RefreshToken)
		}
		if err := deps.RateLimiter.CheckRefresh(ctx, key); err != nil {
			return SessionResult{
				State:   SessionInvalid,
				Failure: SessionFailureRateLimited,
				Err:     err,
			}
		}
	}

	next, err := deps.Refresh(ctx, stored.RefreshToken)
	if err != nil {
		return SessionResult{
			State:       SessionInvalid,
			Failure:     SessionFailureRefresh,
			Err:         err,
			ClearTokens: shouldClear(ctx, err),
			Refreshes:   1,
		}
	}
	if next.RefreshToken == "" {
		next.RefreshToken = stored.RefreshToken
	}

	claims, err = deps.Verify(ctx, next.IDToken)
	if err != nil {
		return SessionResult{
			State:       SessionInvalid,
			Failure:     SessionFailureReverify,
			Err:         err,
			ClearTokens: shouldClear(ctx, err),
			Refreshes:   1,
		}
	}
	return finishSession(ctx, claims, &next, 1, checkRevoked, deps)
}

func finishSession(ctx context.Context, claims *jwt.IdentityClaims, refreshed *TokenPair, refreshes int, checkRevoked bool, deps SessionDeps) SessionResult {
	if checkRevoked && deps.CheckRevoked != nil {
		if err := deps.CheckRevoked(ctx, claims); err != nil {
			return SessionResult{
				State:       SessionInvalid,
				Failure:     SessionFailureRevoked,
				Err:         err,
				ClearTokens: shouldClear(ctx, err),
				Refreshes:   refreshes,
			}
		}
	}
	return SessionResult{
		State:     SessionAuthenticated,
		Claims:    claims,
		Refreshed: refreshed,
		Refreshes: refreshes,
	}
}
