package flows

import (
	"context"

	"github.com/MrEthical07/goIdentity/jwt"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Session.Verify != nil
}

func (s Service) CurrentUser(ctx context.Context, stored *TokenPair, checkRevoked bool) SessionResult {
	return RunCurrentUser(ctx, stored, checkRevoked, s.deps.Session)
}

func (s Service) EstablishSession(ctx context.Context, code, redirectURI string) EstablishResult {
	return RunEstablishSession(ctx, code, redirectURI, s.deps.Establish)
}

func (s Service) CheckRevoked(ctx context.Context, claims *jwt.IdentityClaims) RevocationResult {
	return RunCheckRevoked(ctx, claims, s.deps.Revocation)
}

func (s Service) AccessToken(ctx context.Context) AccessTokenResult {
	return RunAccessToken(ctx, s.deps.AccessToken)
}
