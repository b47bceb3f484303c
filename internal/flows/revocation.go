package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/goIdentity/idtoolkit"
	"github.com/MrEthical07/goIdentity/jwt"
)

// RevocationFailureKind classifies revocation-check failures.
type RevocationFailureKind int

const (
	RevocationFailureNone RevocationFailureKind = iota
	RevocationFailureAccessToken
	RevocationFailureLookup
	RevocationFailureUserNotFound
	RevocationFailureDisabled
	RevocationFailureRevoked
)

// RevocationResult carries the account record or the failure.
type RevocationResult struct {
	Failure RevocationFailureKind
	Err     error
	User    *idtoolkit.UserRecord
}

// RevocationDeps captures revocation-check dependencies.
type RevocationDeps struct {
	AccessToken func(ctx context.Context) (string, error)
	LookupUser  func(ctx context.Context, accessToken, uid string) (*idtoolkit.UserRecord, error)
}

// RunCheckRevoked loads the account behind claims and rejects disabled
// accounts and tokens authenticated before the revocation watermark.
func RunCheckRevoked(ctx context.Context, claims *jwt.IdentityClaims, deps RevocationDeps) RevocationResult {
	token, err := deps.AccessToken(ctx)
	if err != nil {
		return RevocationResult{Failure: RevocationFailureAccessToken, Err: err}
	}

	user, err := deps.LookupUser(ctx, token, claims.UID())
	if err != nil {
		if errors.Is(err, idtoolkit.ErrUserNotFound) {
			return RevocationResult{Failure: RevocationFailureUserNotFound, Err: err}
		}
		return RevocationResult{Failure: RevocationFailureLookup, Err: err}
	}

	if user.Disabled {
		return RevocationResult{Failure: RevocationFailureDisabled, User: user}
	}
	if validAfter := user.TokensValidAfter(); !validAfter.IsZero() && claims.AuthTime < validAfter.Unix() {
		return RevocationResult{Failure: RevocationFailureRevoked, User: user}
	}
	return RevocationResult{User: user}
}
