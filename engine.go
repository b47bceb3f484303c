package goIdentity

import (
	"context"
	"errors"
	"fmt"
	"time"

	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	internalflows "github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/idtoolkit"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/keys"
	"github.com/MrEthical07/goIdentity/oauth"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Engine verifies tokens, runs the session lifecycle and performs admin
// calls for one project. Build it with [Builder].
type Engine struct {
	config        Config
	logger        *zap.Logger
	identity      *idtoolkit.Client
	keys          *keys.Store
	verifier      *jwt.Verifier
	signer        *jwt.Signer
	exchanger     *oauth.Exchanger
	limiter       *rate.Limiter
	tokenCache    internalflows.AccessTokenCache
	tokenGroup    singleflight.Group
	audit         *internalaudit.Dispatcher
	metrics       *Metrics
	flows         internalflows.Service
	idProfile     jwt.Profile
	cookieProfile jwt.Profile
}

// Close stops the audit dispatcher after draining queued events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// AuditDropped counts audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns the current counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// ProjectID returns the project every token must belong to.
func (e *Engine) ProjectID() string {
	return e.config.ProjectID
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.verifier == nil || !e.flows.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

// VerifyIdentity verifies an id token and returns its claims.
//
// Errors match one of ErrMalformedToken, ErrUnsupportedAlgorithm,
// ErrUnknownSigningKey, ErrKeyFetchFailed, ErrSignatureInvalid,
// ErrClaimInvalid or ErrTokenExpired.
func (e *Engine) VerifyIdentity(ctx context.Context, idToken string) (*Claims, error) {
	return e.VerifyIdentityChecked(ctx, idToken, false)
}

// VerifyIdentityChecked is VerifyIdentity followed, when checkRevoked is
// set, by an account lookup that rejects disabled accounts
// (ErrUserDisabled), deleted accounts (ErrUserNotFound) and tokens issued
// before a revocation (ErrTokenRevoked).
func (e *Engine) VerifyIdentityChecked(ctx context.Context, idToken string, checkRevoked bool) (*Claims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if checkRevoked && e.signer == nil {
		return nil, ErrServiceAccountRequired
	}

	claims, err := e.verify(ctx, idToken, e.idProfile)
	if err != nil {
		return nil, err
	}
	if checkRevoked {
		if err := e.checkRevoked(ctx, claims); err != nil {
			return nil, err
		}
	}
	return claims, nil
}

func (e *Engine) verify(ctx context.Context, token string, profile jwt.Profile) (*Claims, error) {
	start := time.Now()
	claims, err := e.verifier.Verify(ctx, token, profile)
	e.metrics.Observe(MetricVerifyLatency, time.Since(start))

	switch {
	case err == nil:
		e.metricInc(MetricVerifySuccess)
		return claims, nil
	case errors.Is(err, ErrTokenExpired):
		e.metricInc(MetricVerifyExpired)
	default:
		e.metricInc(MetricVerifyFailure)
		e.emitAudit(ctx, auditEventVerificationFailure, false, "", err, func() map[string]string {
			return map[string]string{"profile": profile.Name}
		})
	}
	return nil, err
}

// EstablishSession exchanges a provider authorization code for a session.
// The returned pair must be stored by the caller.
//
// Exchange failures are *ExchangeError values carrying the state reached;
// upstream error bodies are preserved as *UpstreamError.
func (e *Engine) EstablishSession(ctx context.Context, code, redirectURI string) (*Session, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	res := e.flows.EstablishSession(ctx, code, redirectURI)
	switch res.Failure {
	case internalflows.EstablishFailureNone:
	case internalflows.EstablishFailureRateLimited:
		e.metricInc(MetricExchangeRateLimited)
		err := mapRateError(res.Err, ErrExchangeRateLimited)
		e.emitAudit(ctx, auditEventRateLimited, false, "", err, func() map[string]string {
			return map[string]string{"scope": "code_exchange"}
		})
		return nil, err
	default:
		e.metricInc(MetricSessionEstablishFailure)
		e.emitAudit(ctx, auditEventSessionFailure, false, "", res.Err, func() map[string]string {
			return map[string]string{"state": res.State.String()}
		})
		return nil, res.Err
	}

	e.metricInc(MetricSessionEstablished)
	e.emitClaimsAudit(ctx, auditEventSessionEstablished, res.Claims, func() map[string]string {
		if res.IsNewUser {
			return map[string]string{"new_user": "true"}
		}
		return nil
	})
	return &Session{
		Tokens:    TokenPair{IDToken: res.Pair.IDToken, RefreshToken: res.Pair.RefreshToken},
		Claims:    res.Claims,
		ExpiresIn: res.ExpiresIn,
		IsNewUser: res.IsNewUser,
		State:     res.State,
	}, nil
}

// GetCurrentUser resolves the user behind a stored pair.
//
// No pair (or an incomplete one) yields a CurrentUser with nil Claims and a
// nil error, without any network call. An expired id token is refreshed
// once; the new pair is returned in Refreshed and must be stored. On error
// the returned CurrentUser is still non-nil so callers can honor
// ClearTokens.
func (e *Engine) GetCurrentUser(ctx context.Context, stored *TokenPair, checkRevoked bool) (*CurrentUser, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if checkRevoked && e.signer == nil {
		return nil, ErrServiceAccountRequired
	}

	var pair *internalflows.TokenPair
	if stored != nil {
		pair = &internalflows.TokenPair{IDToken: stored.IDToken, RefreshToken: stored.RefreshToken}
	}

	res := e.flows.CurrentUser(ctx, pair, checkRevoked)
	out := &CurrentUser{ClearTokens: res.ClearTokens}

	switch res.Failure {
	case internalflows.SessionFailureNone:
	case internalflows.SessionFailureRateLimited:
		e.metricInc(MetricRefreshRateLimited)
		err := mapRateError(res.Err, ErrRefreshRateLimited)
		e.emitAudit(ctx, auditEventRateLimited, false, "", err, func() map[string]string {
			return map[string]string{"scope": "refresh"}
		})
		return out, err
	case internalflows.SessionFailureRefresh, internalflows.SessionFailureReverify:
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, auditEventRefreshFailure, false, "", res.Err, nil)
		return out, res.Err
	default:
		return out, res.Err
	}

	if res.State == internalflows.SessionNoSession {
		return out, nil
	}
	out.Claims = res.Claims
	if res.Refreshed != nil {
		e.metricInc(MetricRefreshSuccess)
		e.emitClaimsAudit(ctx, auditEventRefreshSuccess, res.Claims, nil)
		out.Refreshed = &TokenPair{IDToken: res.Refreshed.IDToken, RefreshToken: res.Refreshed.RefreshToken}
	}
	return out, nil
}

// Authenticate runs GetCurrentUser over a TokenStore: it loads the pair,
// stores a refreshed pair and clears pairs that can never become valid.
// It returns nil claims and a nil error when there is no session.
func (e *Engine) Authenticate(ctx context.Context, store TokenStore, checkRevoked bool) (*Claims, error) {
	if store == nil {
		return nil, errors.New("token store is required")
	}
	stored, err := store.GetTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tokens: %w", err)
	}

	user, err := e.GetCurrentUser(ctx, stored, checkRevoked)
	if user != nil && user.ClearTokens {
		if cerr := store.ClearTokens(ctx); cerr != nil {
			e.logger.Warn("goIdentity: clear tokens failed", zap.Error(cerr))
		}
	}
	if err != nil {
		return nil, err
	}
	if user.Refreshed != nil {
		if err := store.StoreTokens(ctx, *user.Refreshed); err != nil {
			return nil, fmt.Errorf("store refreshed tokens: %w", err)
		}
	}
	return user.Claims, nil
}

// CreateAuthURL returns the provider consent URL for redirectURI. next is
// the local path to return to after the callback; the returned state must
// be echoed back by the provider and checked with oauth.ParseLoginState.
func (e *Engine) CreateAuthURL(redirectURI, next string) LoginURL {
	state := oauth.NewLoginState(next)
	return LoginURL{
		URL:   e.exchanger.AuthCodeURL(redirectURI, state.Encode()),
		State: state,
	}
}

func (e *Engine) checkRevoked(ctx context.Context, claims *Claims) error {
	res := e.flows.CheckRevoked(ctx, claims)
	var err error
	switch res.Failure {
	case internalflows.RevocationFailureNone:
		return nil
	case internalflows.RevocationFailureDisabled:
		err = ErrUserDisabled
	case internalflows.RevocationFailureRevoked:
		err = ErrTokenRevoked
	case internalflows.RevocationFailureAccessToken:
		err = fmt.Errorf("admin access token: %w", res.Err)
	default:
		err = res.Err
	}
	if errors.Is(err, ErrUserDisabled) || errors.Is(err, ErrTokenRevoked) || errors.Is(err, ErrUserNotFound) {
		e.metricInc(MetricRevocationRejected)
		e.emitClaimsAudit(ctx, auditEventRevocationRejected, claims, nil)
	}
	return err
}

func (e *Engine) observeKeyFetch(space keys.Space, n int, err error) {
	if err != nil {
		e.metricInc(MetricKeyFetchFailure)
		e.logger.Warn("goIdentity: signing key fetch failed", zap.String("space", string(space)), zap.Error(err))
		return
	}
	e.metricInc(MetricKeyFetch)
	e.logger.Debug("goIdentity: signing keys refreshed", zap.String("space", string(space)), zap.Int("keys", n))
}

func mapRateError(err error, limited error) error {
	switch {
	case errors.Is(err, rate.ErrRateLimited):
		return limited
	case errors.Is(err, rate.ErrRedisUnavailable):
		return fmt.Errorf("%w: %v", ErrRateLimiterUnavailable, err)
	default:
		return err
	}
}

func (e *Engine) flowDeps() internalflows.Deps {
	verifyID := func(ctx context.Context, idToken string) (*jwt.IdentityClaims, error) {
		return e.verify(ctx, idToken, e.idProfile)
	}

	session := internalflows.SessionDeps{
		Verify: verifyID,
		Refresh: func(ctx context.Context, refreshToken string) (internalflows.TokenPair, error) {
			resp, err := e.identity.RefreshIDToken(ctx, refreshToken)
			if err != nil {
				return internalflows.TokenPair{}, err
			}
			return internalflows.TokenPair{IDToken: resp.IDToken, RefreshToken: resp.RefreshToken}, nil
		},
		CheckRevoked: e.checkRevoked,
		RefreshKey:   rate.RefreshKey,
	}
	establish := internalflows.EstablishDeps{
		ClientIP: clientIPFromContext,
		Exchange: e.exchanger.Exchange,
		Verify:   verifyID,
	}
	if e.limiter != nil {
		session.RateLimiter = e.limiter
		establish.RateLimiter = e.limiter
	}

	deps := internalflows.Deps{
		Session:   session,
		Establish: establish,
		Revocation: internalflows.RevocationDeps{
			AccessToken: e.AccessToken,
			LookupUser:  e.identity.LookupByUID,
		},
	}
	if e.signer != nil {
		deps.AccessToken = internalflows.AccessTokenDeps{
			Cache: e.tokenCache,
			Sign: func() (string, error) {
				return e.signer.SignAssertion(e.config.AccessToken.Scopes)
			},
			Exchange:     e.identity.ExchangeJWTBearer,
			SafetyMargin: e.config.AccessToken.SafetyMargin,
			Warn:         e.logger.Sugar().Warnw,
		}
	}
	return deps
}
