package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/oauth"
)

// EstablishFailureKind classifies login failures for root-level mapping.
type EstablishFailureKind int

const (
	EstablishFailureNone EstablishFailureKind = iota
	EstablishFailureRateLimited
	EstablishFailureExchange
	EstablishFailureVerify
)

// EstablishResult carries the new session or failure metadata.
type EstablishResult struct {
	Failure   EstablishFailureKind
	Err       error
	State     oauth.State
	Pair      TokenPair
	Claims    *jwt.IdentityClaims
	ExpiresIn time.Duration
	IsNewUser bool
	ClientIP  string
}

type ExchangeRateLimiter interface {
	CheckExchange(ctx context.Context, clientIP string) error
}

// EstablishDeps captures login flow dependencies.
type EstablishDeps struct {
	ClientIP    func(context.Context) string
	Exchange    func(ctx context.Context, code, redirectURI string) (*oauth.Result, error)
	Verify      func(ctx context.Context, idToken string) (*jwt.IdentityClaims, error)
	RateLimiter ExchangeRateLimiter
}

// RunEstablishSession exchanges an authorization code and verifies the
// resulting id token.
func RunEstablishSession(ctx context.Context, code, redirectURI string, deps EstablishDeps) EstablishResult {
	var ip string
	if deps.ClientIP != nil {
		ip = deps.ClientIP(ctx)
	}

	if deps.RateLimiter != nil && ip != "" {
		if err := deps.RateLimiter.CheckExchange(ctx, ip); err != nil {
			return EstablishResult{Failure: EstablishFailureRateLimited, Err: err, ClientIP: ip}
		}
	}

	res, err := deps.Exchange(ctx, code, redirectURI)
	if err != nil {
		state := oauth.StateCodeReceived
		var exErr *oauth.ExchangeError
		if errors.As(err, &exErr) {
			state = exErr.State
		}
		return EstablishResult{Failure: EstablishFailureExchange, Err: err, State: state, ClientIP: ip}
	}

	claims, err := deps.Verify(ctx, res.IDToken)
	if err != nil {
		return EstablishResult{Failure: EstablishFailureVerify, Err: err, State: res.State, ClientIP: ip}
	}

	return EstablishResult{
		State:     res.State,
		Pair:      TokenPair{IDToken: res.IDToken, RefreshToken: res.RefreshToken},
		Claims:    claims,
		ExpiresIn: res.ExpiresIn,
		IsNewUser: res.IsNewUser,
		ClientIP:  ip,
	}
}
