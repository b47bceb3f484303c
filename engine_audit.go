package goIdentity

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/oauth"
)

const (
	auditEventSessionEstablished   = "session_established"
	auditEventSessionFailure       = "session_establish_failure"
	auditEventRefreshSuccess       = "refresh_success"
	auditEventRefreshFailure       = "refresh_failure"
	auditEventVerificationFailure  = "verification_failure"
	auditEventRevocationRejected   = "revocation_rejected"
	auditEventCustomTokenMinted    = "custom_token_minted"
	auditEventSessionCookieCreated = "session_cookie_created"
	auditEventRateLimited          = "rate_limit_triggered"
)

// AuditErrorCode is the stable error label recorded in audit events.
type AuditErrorCode string

const (
	auditErrMalformed      AuditErrorCode = "malformed_token"
	auditErrAlgorithm      AuditErrorCode = "unsupported_algorithm"
	auditErrUnknownKey     AuditErrorCode = "unknown_signing_key"
	auditErrKeyFetch       AuditErrorCode = "key_fetch_failed"
	auditErrSignature      AuditErrorCode = "signature_invalid"
	auditErrClaim          AuditErrorCode = "claim_invalid"
	auditErrExpired        AuditErrorCode = "token_expired"
	auditErrRevoked        AuditErrorCode = "token_revoked"
	auditErrDisabled       AuditErrorCode = "user_disabled"
	auditErrUserNotFound   AuditErrorCode = "user_not_found"
	auditErrRateLimited    AuditErrorCode = "rate_limited"
	auditErrExchange       AuditErrorCode = "exchange_failed"
	auditErrUpstream       AuditErrorCode = "upstream_error"
	auditErrUnavailable    AuditErrorCode = "backend_unavailable"
	auditErrInternal       AuditErrorCode = "internal_error"
	auditErrReservedClaim  AuditErrorCode = "reserved_claim"
	auditErrServiceAccount AuditErrorCode = "service_account_required"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	userID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	event := AuditEvent{
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  metadata,
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}
	e.audit.Emit(ctx, event)
}

func (e *Engine) emitClaimsAudit(ctx context.Context, eventType string, claims *Claims, metadataBuilder func() map[string]string) {
	if e == nil || e.audit == nil || claims == nil {
		return
	}
	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}
	e.audit.Emit(ctx, AuditEvent{
		EventType: eventType,
		UserID:    claims.UID(),
		Tenant:    claims.Firebase.Tenant,
		Provider:  claims.Firebase.SignInProvider,
		IP:        clientIPFromContext(ctx),
		Success:   eventType != auditEventRevocationRejected,
		Metadata:  metadata,
	})
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	var exErr *oauth.ExchangeError
	switch {
	case errors.Is(err, ErrMalformedToken):
		return auditErrMalformed
	case errors.Is(err, ErrUnsupportedAlgorithm):
		return auditErrAlgorithm
	case errors.Is(err, ErrUnknownSigningKey):
		return auditErrUnknownKey
	case errors.Is(err, ErrKeyFetchFailed):
		return auditErrKeyFetch
	case errors.Is(err, ErrSignatureInvalid):
		return auditErrSignature
	case errors.Is(err, ErrTokenExpired):
		return auditErrExpired
	case errors.Is(err, ErrClaimInvalid):
		return auditErrClaim
	case errors.Is(err, ErrTokenRevoked):
		return auditErrRevoked
	case errors.Is(err, ErrUserDisabled):
		return auditErrDisabled
	case errors.Is(err, ErrUserNotFound):
		return auditErrUserNotFound
	case errors.Is(err, ErrRefreshRateLimited),
		errors.Is(err, ErrExchangeRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrRateLimiterUnavailable):
		return auditErrUnavailable
	case errors.Is(err, ErrReservedClaim):
		return auditErrReservedClaim
	case errors.Is(err, ErrServiceAccountRequired):
		return auditErrServiceAccount
	case errors.Is(err, ErrUpstream):
		return auditErrUpstream
	case errors.As(err, &exErr):
		return auditErrExchange
	default:
		return auditErrInternal
	}
}
