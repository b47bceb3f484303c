package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goIdentity/idtoolkit"
)

// AccessTokenFailureKind classifies admin access-token failures.
type AccessTokenFailureKind int

const (
	AccessTokenFailureNone AccessTokenFailureKind = iota
	AccessTokenFailureSign
	AccessTokenFailureExchange
)

// AccessTokenResult carries the token or the failure.
type AccessTokenResult struct {
	Failure AccessTokenFailureKind
	Err     error
	Token   string
	Cached  bool
}

type AccessTokenCache interface {
	Get(ctx context.Context) (string, bool, error)
	Set(ctx context.Context, token string, ttl time.Duration) error
}

// AccessTokenDeps captures admin access-token dependencies.
type AccessTokenDeps struct {
	Cache        AccessTokenCache
	Sign         func() (string, error)
	Exchange     func(ctx context.Context, assertion string) (*idtoolkit.AccessTokenResponse, error)
	SafetyMargin time.Duration
	Warn         func(string, ...any)
}

// RunAccessToken returns a cached admin access token or mints a new one via
// the jwt-bearer grant.
func RunAccessToken(ctx context.Context, deps AccessTokenDeps) AccessTokenResult {
	if deps.Cache != nil {
		token, ok, err := deps.Cache.Get(ctx)
		if err != nil {
			warn(deps.Warn, "goIdentity: access token cache read failed", "error", err)
		} else if ok {
			return AccessTokenResult{Token: token, Cached: true}
		}
	}

	assertion, err := deps.Sign()
	if err != nil {
		return AccessTokenResult{Failure: AccessTokenFailureSign, Err: err}
	}
	resp, err := deps.Exchange(ctx, assertion)
	if err != nil {
		return AccessTokenResult{Failure: AccessTokenFailureExchange, Err: err}
	}

	if deps.Cache != nil {
		ttl := time.Duration(resp.ExpiresIn)*time.Second - deps.SafetyMargin
		if ttl > 0 {
			if err := deps.Cache.Set(ctx, resp.AccessToken, ttl); err != nil {
				warn(deps.Warn, "goIdentity: access token cache write failed", "error", err)
			}
		}
	}
	return AccessTokenResult{Token: resp.AccessToken}
}

func warn(fn func(string, ...any), msg string, args ...any) {
	if fn != nil {
		fn(msg, args...)
	}
}
