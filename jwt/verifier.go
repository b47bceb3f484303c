package jwt

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/MrEthical07/goIdentity/keys"
)

const (
	// DefaultIDTokenIssuer prefixes the project id in identity-token issuers.
	DefaultIDTokenIssuer = "https://securetoken.google.com/"
	// DefaultSessionIssuer prefixes the project id in session-cookie issuers.
	DefaultSessionIssuer = "https://session.firebase.google.com/"

	maxSubjectLength = 128
)

// Profile selects the issuer, audience and key space a token is checked
// against.
type Profile struct {
	Name     string
	Issuer   string
	Audience string
	Space    keys.Space
}

// IDTokenProfile verifies identity tokens. An empty issuerBase uses
// DefaultIDTokenIssuer.
func IDTokenProfile(issuerBase, projectID string) Profile {
	if issuerBase == "" {
		issuerBase = DefaultIDTokenIssuer
	}
	return Profile{
		Name:     "id_token",
		Issuer:   issuerBase + projectID,
		Audience: projectID,
		Space:    keys.SpaceIDToken,
	}
}

// SessionCookieProfile verifies session cookies. An empty issuerBase uses
// DefaultSessionIssuer.
func SessionCookieProfile(issuerBase, projectID string) Profile {
	if issuerBase == "" {
		issuerBase = DefaultSessionIssuer
	}
	return Profile{
		Name:     "session_cookie",
		Issuer:   issuerBase + projectID,
		Audience: projectID,
		Space:    keys.SpaceSessionCookie,
	}
}

// KeyResolver returns the verification key for kid in space. *keys.Store
// satisfies it.
type KeyResolver interface {
	Get(ctx context.Context, kid string, space keys.Space) (*rsa.PublicKey, error)
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithLeeway allows for clock skew on exp, nbf and iat.
func WithLeeway(d time.Duration) VerifierOption {
	return func(v *Verifier) {
		if d > 0 {
			v.leeway = d
		}
	}
}

// WithClock overrides the verification clock.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) {
		if now != nil {
			v.now = now
		}
	}
}

// Verifier checks RS256 tokens against a Profile. It holds no mutable state
// of its own and is safe for concurrent use.
type Verifier struct {
	keys   KeyResolver
	leeway time.Duration
	now    func() time.Time
}

// NewVerifier builds a Verifier over resolver.
func NewVerifier(resolver KeyResolver, opts ...VerifierOption) *Verifier {
	v := &Verifier{keys: resolver, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks the header, signature and claims of token and returns the
// decoded claims.
func (v *Verifier) Verify(ctx context.Context, token string, profile Profile) (*IdentityClaims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	unverified, _, err := jwt.NewParser().ParseUnverified(token, &IdentityClaims{})
	if err != nil && (unverified == nil || !errors.Is(err, jwt.ErrTokenUnverifiable)) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
	alg, _ := unverified.Header["alg"].(string)
	if alg == "" {
		return nil, fmt.Errorf("%w: missing alg header", ErrMalformedToken)
	}
	kid, _ := unverified.Header["kid"].(string)
	if kid == "" {
		return nil, fmt.Errorf("%w: missing kid header", ErrMalformedToken)
	}
	if err != nil || alg != jwt.SigningMethodRS256.Alg() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
	}

	key, err := v.keys.Get(ctx, kid, profile.Space)
	if err != nil {
		if errors.Is(err, keys.ErrKeyNotFound) {
			return nil, fmt.Errorf("%w: kid %q", ErrUnknownSigningKey, kid)
		}
		return nil, fmt.Errorf("%w: %w", ErrKeyFetchFailed, err)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.now),
	}
	if v.leeway > 0 {
		opts = append(opts, jwt.WithLeeway(v.leeway))
	}
	if profile.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(profile.Issuer))
	}
	if profile.Audience != "" {
		opts = append(opts, jwt.WithAudience(profile.Audience))
	}

	claims := &IdentityClaims{}
	_, err = jwt.NewParser(opts...).ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	})
	if err != nil {
		return nil, mapParseError(err)
	}

	if claims.Subject == "" {
		return nil, invalidClaim("sub", "empty subject")
	}
	if len(claims.Subject) > maxSubjectLength {
		return nil, invalidClaim("sub", "subject longer than 128 characters")
	}
	if claims.AuthTime != 0 && time.Unix(claims.AuthTime, 0).After(v.now().Add(v.leeway)) {
		return nil, invalidClaim("auth_time", "authentication time in the future")
	}
	return claims, nil
}

// mapParseError translates golang-jwt errors. Issuer, audience and time
// window failures take priority over expiry.
func mapParseError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return invalidClaim("iss", "issuer mismatch")
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return invalidClaim("aud", "audience mismatch")
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return invalidClaim("nbf", "token not valid yet")
	case errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return invalidClaim("iat", "issued in the future")
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return invalidClaim(missingClaimName(err), "required claim missing")
	case errors.Is(err, jwt.ErrTokenExpired):
		return &ClaimError{Claim: "exp", Err: ErrTokenExpired}
	case errors.Is(err, jwt.ErrTokenInvalidClaims):
		return invalidClaim("", err.Error())
	default:
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
}

func missingClaimName(err error) string {
	msg := err.Error()
	for _, name := range []string{"iss", "aud", "nbf", "iat", "exp"} {
		if strings.Contains(msg, name+" claim is required") {
			return name
		}
	}
	return ""
}
