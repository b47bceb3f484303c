package jwt

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedToken       = errors.New("malformed token")
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrUnknownSigningKey    = errors.New("unknown signing key")
	ErrSignatureInvalid     = errors.New("token signature invalid")
	ErrClaimInvalid         = errors.New("token claim validation failed")
	ErrTokenExpired         = errors.New("token expired")
	ErrKeyFetchFailed       = errors.New("signing key fetch failed")
	ErrReservedClaim        = errors.New("reserved claim")
	ErrKeyImport            = errors.New("private key import failed")
	ErrInvalidUID           = errors.New("invalid uid")
)

// ClaimError reports which claim failed validation. Err is ErrTokenExpired
// for an elapsed exp and ErrClaimInvalid otherwise.
type ClaimError struct {
	Claim  string
	Detail string
	Err    error
}

func (e *ClaimError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%v: %s", e.Err, e.Claim)
	}
	return fmt.Sprintf("%v: %s: %s", e.Err, e.Claim, e.Detail)
}

func (e *ClaimError) Unwrap() error {
	return e.Err
}

func invalidClaim(claim, detail string) *ClaimError {
	return &ClaimError{Claim: claim, Detail: detail, Err: ErrClaimInvalid}
}

// ReservedClaimError names the developer claim that collides with a
// reserved name or namespace.
type ReservedClaimError struct {
	Claim string
}

func (e *ReservedClaimError) Error() string {
	return fmt.Sprintf("%v: %q", ErrReservedClaim, e.Claim)
}

func (e *ReservedClaimError) Unwrap() error {
	return ErrReservedClaim
}
