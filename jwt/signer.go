package jwt

import (
	"crypto/rsa"
	"encoding/pem"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// DefaultTokenURL is the audience of service assertions.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"
	// CustomTokenAudience is the audience of custom sign-in tokens.
	CustomTokenAudience = "https://identitytoolkit.googleapis.com/google.identity.identitytoolkit.v1.IdentityToolkit"

	signedTokenTTL = time.Hour
	maxUIDLength   = 128
)

// DefaultScopes are granted to service assertions when none are requested.
var DefaultScopes = []string{
	"https://www.googleapis.com/auth/datastore",
	"https://www.googleapis.com/auth/identitytoolkit",
	"https://www.googleapis.com/auth/devstorage.read_write",
}

// ReservedClaims may never appear in developer claims of a custom token.
var ReservedClaims = []string{
	"acr", "amr", "at_hash", "aud", "auth_time", "azp", "cnf", "c_hash",
	"exp", "iat", "iss", "jti", "nbf", "nonce", "sub",
	"firebase", "user_id",
}

// Credentials are the service-account fields a Signer needs.
type Credentials struct {
	ClientEmail  string
	PrivateKeyID string
	// PrivateKey is a PKCS#8 PEM block. Escaped "\n" sequences are accepted.
	PrivateKey string
	// TokenURL defaults to DefaultTokenURL.
	TokenURL string
}

// SignerOption configures a Signer.
type SignerOption func(*Signer)

// WithSignerClock overrides the clock used for iat and exp.
func WithSignerClock(now func() time.Time) SignerOption {
	return func(s *Signer) {
		if now != nil {
			s.now = now
		}
	}
}

// ProviderNamespace is always a reserved claim-name prefix.
const ProviderNamespace = "firebase"

// WithReservedPrefixes reserves additional claim-name prefixes on top of
// ProviderNamespace, which can never be released.
func WithReservedPrefixes(prefixes ...string) SignerOption {
	return func(s *Signer) {
		for _, p := range prefixes {
			if p != "" && !slices.Contains(s.reservedPrefixes, p) {
				s.reservedPrefixes = append(s.reservedPrefixes, p)
			}
		}
	}
}

// Signer mints RS256 service assertions and custom tokens. The private key
// is imported on first use and cached.
type Signer struct {
	creds            Credentials
	now              func() time.Time
	reserved         map[string]struct{}
	reservedPrefixes []string
	parseKey         func(string) (*rsa.PrivateKey, error)

	mu  sync.Mutex
	key *rsa.PrivateKey
}

// NewSigner validates creds and returns a Signer. The key itself is not
// parsed until the first signature.
func NewSigner(creds Credentials, opts ...SignerOption) (*Signer, error) {
	if strings.TrimSpace(creds.ClientEmail) == "" {
		return nil, fmt.Errorf("%w: client email is required", ErrKeyImport)
	}
	if strings.TrimSpace(creds.PrivateKey) == "" {
		return nil, fmt.Errorf("%w: private key is required", ErrKeyImport)
	}
	if creds.TokenURL == "" {
		creds.TokenURL = DefaultTokenURL
	}
	s := &Signer{
		creds:            creds,
		now:              time.Now,
		reserved:         make(map[string]struct{}, len(ReservedClaims)),
		reservedPrefixes: []string{ProviderNamespace},
		parseKey:         ParsePrivateKey,
	}
	for _, name := range ReservedClaims {
		s.reserved[name] = struct{}{}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// ClientEmail returns the signing identity.
func (s *Signer) ClientEmail() string {
	return s.creds.ClientEmail
}

// TokenURL returns the assertion audience.
func (s *Signer) TokenURL() string {
	return s.creds.TokenURL
}

// SignAssertion returns a one-hour assertion for the jwt-bearer grant. An
// empty scopes list uses DefaultScopes.
func (s *Signer) SignAssertion(scopes []string) (string, error) {
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	now := s.now()
	claims := jwt.MapClaims{
		"iss":   s.creds.ClientEmail,
		"sub":   s.creds.ClientEmail,
		"aud":   s.creds.TokenURL,
		"scope": strings.Join(scopes, " "),
		"iat":   now.Unix(),
		"exp":   now.Add(signedTokenTTL).Unix(),
	}
	return s.sign(claims)
}

// SignCustomToken returns a one-hour custom token for uid. Developer claims
// are checked against the reserved names before the key is touched.
func (s *Signer) SignCustomToken(uid string, developerClaims map[string]any) (string, error) {
	if uid == "" || len(uid) > maxUIDLength {
		return "", fmt.Errorf("%w: uid must be 1-%d characters", ErrInvalidUID, maxUIDLength)
	}
	if err := s.checkReserved(developerClaims); err != nil {
		return "", err
	}

	now := s.now()
	claims := jwt.MapClaims{
		"iss": s.creds.ClientEmail,
		"sub": s.creds.ClientEmail,
		"aud": CustomTokenAudience,
		"uid": uid,
		"iat": now.Unix(),
		"exp": now.Add(signedTokenTTL).Unix(),
	}
	if len(developerClaims) > 0 {
		claims["claims"] = developerClaims
	}
	return s.sign(claims)
}

func (s *Signer) checkReserved(developerClaims map[string]any) error {
	names := make([]string, 0, len(developerClaims))
	for name := range developerClaims {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := s.reserved[name]; ok {
			return &ReservedClaimError{Claim: name}
		}
		for _, prefix := range s.reservedPrefixes {
			if prefix != "" && strings.HasPrefix(name, prefix) {
				return &ReservedClaimError{Claim: name}
			}
		}
	}
	return nil
}

func (s *Signer) sign(claims jwt.MapClaims) (string, error) {
	key, err := s.privateKey()
	if err != nil {
		return "", err
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if s.creds.PrivateKeyID != "" {
		token.Header["kid"] = s.creds.PrivateKeyID
	}
	return token.SignedString(key)
}

func (s *Signer) privateKey() (*rsa.PrivateKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != nil {
		return s.key, nil
	}
	key, err := s.parseKey(s.creds.PrivateKey)
	if err != nil {
		return nil, err
	}
	s.key = key
	return key, nil
}

// ParsePrivateKey imports a PKCS#8 RSA private key. Literal "\n" escape
// sequences, as found in environment variables, are turned into newlines.
func ParsePrivateKey(pemText string) (*rsa.PrivateKey, error) {
	normalized := strings.ReplaceAll(pemText, `\n`, "\n")
	block, _ := pem.Decode([]byte(normalized))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block found", ErrKeyImport)
	}
	if block.Type != "PRIVATE KEY" {
		return nil, fmt.Errorf("%w: unexpected PEM type %q", ErrKeyImport, block.Type)
	}
	key, err := jwt.ParseRSAPrivateKeyFromPEM(pem.EncodeToMemory(block))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrKeyImport, err)
	}
	return key, nil
}
