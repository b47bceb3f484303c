package goIdentity

import (
	"context"
	"fmt"
	"time"

	internalflows "github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/oauth"
	"go.uber.org/zap"
)

// SignServiceAssertion signs a one-hour assertion for the configured access
// token scopes.
func (e *Engine) SignServiceAssertion() (string, error) {
	if e == nil || e.signer == nil {
		return "", ErrServiceAccountRequired
	}
	token, err := e.signer.SignAssertion(e.config.AccessToken.Scopes)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricAssertionSigned)
	return token, nil
}

// SignCustomToken mints a custom sign-in token for uid. Reserved claim names
// are rejected with *ReservedClaimError before the private key is touched.
func (e *Engine) SignCustomToken(uid string, claims map[string]any) (string, error) {
	if e == nil || e.signer == nil {
		return "", ErrServiceAccountRequired
	}
	token, err := e.signer.SignCustomToken(uid, claims)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricCustomTokenMinted)
	e.emitAudit(context.Background(), auditEventCustomTokenMinted, true, uid, nil, nil)
	return token, nil
}

// SignInWithCustomToken mints a custom token for uid and trades it for a
// verified session.
func (e *Engine) SignInWithCustomToken(ctx context.Context, uid string, claims map[string]any) (*Session, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	token, err := e.SignCustomToken(uid, claims)
	if err != nil {
		return nil, err
	}
	resp, err := e.identity.SignInWithCustomToken(ctx, token)
	if err != nil {
		e.metricInc(MetricSessionEstablishFailure)
		return nil, err
	}
	verified, err := e.verify(ctx, resp.IDToken, e.idProfile)
	if err != nil {
		e.metricInc(MetricSessionEstablishFailure)
		return nil, err
	}

	e.metricInc(MetricSessionEstablished)
	e.emitClaimsAudit(ctx, auditEventSessionEstablished, verified, func() map[string]string {
		return map[string]string{"method": "custom_token"}
	})
	return &Session{
		Tokens:    TokenPair{IDToken: resp.IDToken, RefreshToken: resp.RefreshToken},
		Claims:    verified,
		ExpiresIn: resp.ExpiresIn(),
		IsNewUser: resp.IsNewUser,
		State:     oauth.StateSessionIssued,
	}, nil
}

// AccessToken returns an admin OAuth access token for the service account.
// Tokens are cached until shortly before they expire and concurrent misses
// share one mint.
func (e *Engine) AccessToken(ctx context.Context) (string, error) {
	if e == nil || e.signer == nil {
		return "", ErrServiceAccountRequired
	}
	v, err, _ := e.tokenGroup.Do("access_token", func() (any, error) {
		res := e.flows.AccessToken(ctx)
		switch res.Failure {
		case internalflows.AccessTokenFailureNone:
		case internalflows.AccessTokenFailureSign:
			return "", fmt.Errorf("sign assertion: %w", res.Err)
		default:
			return "", fmt.Errorf("exchange assertion: %w", res.Err)
		}
		if res.Cached {
			e.metricInc(MetricAccessTokenCacheHit)
		} else {
			e.metricInc(MetricAccessTokenMinted)
			e.logger.Debug("goIdentity: admin access token minted", zap.String("client_email", e.signer.ClientEmail()))
		}
		return res.Token, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetUser looks up an account by uid.
func (e *Engine) GetUser(ctx context.Context, uid string) (*UserRecord, error) {
	if uid == "" {
		return nil, fmt.Errorf("%w: empty uid", ErrInvalidUID)
	}
	token, err := e.AccessToken(ctx)
	if err != nil {
		return nil, err
	}
	return e.identity.LookupByUID(ctx, token, uid)
}

// CreateSessionCookie trades a valid id token for a session cookie that
// lives for validFor. The id token is verified locally first.
func (e *Engine) CreateSessionCookie(ctx context.Context, idToken string, validFor time.Duration) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if validFor < e.config.Session.MinCookieDuration || validFor > e.config.Session.MaxCookieDuration {
		return "", fmt.Errorf("%w: %s", ErrInvalidCookieDuration, validFor)
	}
	claims, err := e.verify(ctx, idToken, e.idProfile)
	if err != nil {
		return "", err
	}
	token, err := e.AccessToken(ctx)
	if err != nil {
		return "", err
	}
	cookie, err := e.identity.CreateSessionCookie(ctx, token, idToken, validFor)
	if err != nil {
		return "", err
	}
	e.metricInc(MetricSessionCookieCreated)
	e.emitClaimsAudit(ctx, auditEventSessionCookieCreated, claims, func() map[string]string {
		return map[string]string{"valid_for": validFor.String()}
	})
	return cookie, nil
}

// VerifySessionCookie verifies a session cookie against the certificate key
// space. Id tokens never verify here, and session cookies never verify in
// VerifyIdentity.
func (e *Engine) VerifySessionCookie(ctx context.Context, cookie string, checkRevoked bool) (*Claims, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if checkRevoked && e.signer == nil {
		return nil, ErrServiceAccountRequired
	}
	claims, err := e.verify(ctx, cookie, e.cookieProfile)
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

// IsSessionError reports whether err means the stored session is unusable
// and the user must sign in again. Upstream 4xx rejections of a refresh
// token count. Upstream 5xx and 429, key endpoint outages and transport
// failures do not.
func IsSessionError(err error) bool {
	return internalflows.IsSessionError(err)
}
