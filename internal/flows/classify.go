package flows

import (
	"context"
	"errors"
	"net/http"

	"github.com/MrEthical07/goIdentity/idtoolkit"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/transport"
)

var (
	// ErrTokenRevoked means the account revoked its tokens after auth_time.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrUserDisabled means the account behind a token is disabled.
	ErrUserDisabled = errors.New("user disabled")
)

var sessionErrors = []error{
	jwt.ErrMalformedToken,
	jwt.ErrUnsupportedAlgorithm,
	jwt.ErrUnknownSigningKey,
	jwt.ErrSignatureInvalid,
	jwt.ErrClaimInvalid,
	jwt.ErrTokenExpired,
	ErrTokenRevoked,
	ErrUserDisabled,
	idtoolkit.ErrUserNotFound,
}

// IsSessionError reports whether err proves the stored tokens can never
// succeed again. Upstream 4xx rejections count, except 429.
func IsSessionError(err error) bool {
	if err == nil || isTransient(err) {
		return false
	}
	for _, target := range sessionErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests
	}
	return false
}

// Transient reports failures that say nothing about the tokens themselves:
// cancellation, network and decoding failures, key endpoint outages and
// upstream 5xx or 429.
func Transient(ctx context.Context, err error) bool {
	return ctx.Err() != nil || isTransient(err)
}

func isTransient(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, transport.ErrRequestFailed),
		errors.Is(err, transport.ErrMalformedResponse),
		errors.Is(err, jwt.ErrKeyFetchFailed),
		errors.Is(err, idtoolkit.ErrEmptyResponse):
		return true
	}
	var apiErr *transport.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError || apiErr.Status == http.StatusTooManyRequests
	}
	return false
}

// shouldClear is the single rule for dropping a stored token pair.
func shouldClear(ctx context.Context, err error) bool {
	return !Transient(ctx, err) && IsSessionError(err)
}
