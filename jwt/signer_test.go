package jwt

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"strings"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func pkcs8PEM(t *testing.T, key *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatalf("marshal pkcs8: %v", err)
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der}))
}

func newTestSigner(t *testing.T, opts ...SignerOption) (*Signer, *rsa.PrivateKey) {
	t.Helper()
	k1, _ := testKeys(t)
	s, err := NewSigner(Credentials{
		ClientEmail:  "svc@demo-project.iam.gserviceaccount.com",
		PrivateKeyID: "pk-1",
		PrivateKey:   pkcs8PEM(t, k1),
	}, opts...)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	return s, k1
}

func parseSigned(t *testing.T, token string, pub *rsa.PublicKey, aud string) gjwt.MapClaims {
	t.Helper()
	claims := gjwt.MapClaims{}
	_, err := gjwt.NewParser(gjwt.WithValidMethods([]string{"RS256"}), gjwt.WithAudience(aud)).
		ParseWithClaims(token, claims, func(*gjwt.Token) (any, error) { return pub, nil })
	if err != nil {
		t.Fatalf("parse signed token: %v", err)
	}
	return claims
}

func TestSignCustomTokenVerifiesWithPublicKey(t *testing.T) {
	s, key := newTestSigner(t)
	token, err := s.SignCustomToken("user-42", map[string]any{})
	if err != nil {
		t.Fatalf("sign custom token: %v", err)
	}

	claims := parseSigned(t, token, &key.PublicKey, CustomTokenAudience)
	if claims["uid"] != "user-42" {
		t.Fatalf("expected uid user-42, got %v", claims["uid"])
	}
	if _, ok := claims["claims"]; ok {
		t.Fatal("empty developer claims must be omitted")
	}
	if claims["iss"] != s.ClientEmail() || claims["sub"] != s.ClientEmail() {
		t.Fatalf("unexpected iss/sub: %v %v", claims["iss"], claims["sub"])
	}
	exp, _ := claims.GetExpirationTime()
	iat, _ := claims.GetIssuedAt()
	if exp == nil || iat == nil || exp.Sub(iat.Time) != time.Hour {
		t.Fatalf("expected one hour lifetime, got iat=%v exp=%v", iat, exp)
	}
}

func TestSignCustomTokenCarriesDeveloperClaims(t *testing.T) {
	s, key := newTestSigner(t)
	token, err := s.SignCustomToken("user-42", map[string]any{"premium": true})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	claims := parseSigned(t, token, &key.PublicKey, CustomTokenAudience)
	nested, ok := claims["claims"].(map[string]any)
	if !ok || nested["premium"] != true {
		t.Fatalf("expected nested developer claims, got %v", claims["claims"])
	}
}

func TestSignCustomTokenRejectsReservedBeforeKeyImport(t *testing.T) {
	s, _ := newTestSigner(t)
	imports := 0
	s.parseKey = func(string) (*rsa.PrivateKey, error) {
		imports++
		return nil, ErrKeyImport
	}

	for _, name := range []string{"sub", "aud", "user_id", "firebase", "firebaseRole"} {
		_, err := s.SignCustomToken("user-42", map[string]any{name: "x"})
		if !errors.Is(err, ErrReservedClaim) {
			t.Fatalf("%s: expected ErrReservedClaim, got %v", name, err)
		}
		var reserved *ReservedClaimError
		if !errors.As(err, &reserved) || reserved.Claim != name {
			t.Fatalf("%s: expected ReservedClaimError naming the claim, got %v", name, err)
		}
	}
	if imports != 0 {
		t.Fatalf("reserved claim check must precede key import, got %d imports", imports)
	}
}

func TestSignCustomTokenExtraReservedPrefix(t *testing.T) {
	s, _ := newTestSigner(t, WithReservedPrefixes("firebase", "internal_"))
	if _, err := s.SignCustomToken("u", map[string]any{"internal_flag": 1}); !errors.Is(err, ErrReservedClaim) {
		t.Fatalf("expected configured prefix to be reserved, got %v", err)
	}
	if _, err := s.SignCustomToken("u", map[string]any{"tier": "gold"}); err != nil {
		t.Fatalf("unexpected error for ordinary claim: %v", err)
	}
}

func TestReservedPrefixesCannotReleaseProviderNamespace(t *testing.T) {
	for name, opts := range map[string][]SignerOption{
		"default": nil,
		"custom":  {WithReservedPrefixes("acme_")},
		"empty":   {WithReservedPrefixes()},
	} {
		s, _ := newTestSigner(t, opts...)
		if _, err := s.SignCustomToken("u", map[string]any{"firebase_admin": true}); !errors.Is(err, ErrReservedClaim) {
			t.Fatalf("%s: expected firebase_admin to stay reserved, got %v", name, err)
		}
	}
}

func TestSignCustomTokenUIDBounds(t *testing.T) {
	s, _ := newTestSigner(t)
	for _, uid := range []string{"", strings.Repeat("u", 129)} {
		if _, err := s.SignCustomToken(uid, nil); !errors.Is(err, ErrInvalidUID) {
			t.Fatalf("uid len %d: expected ErrInvalidUID, got %v", len(uid), err)
		}
	}
}

func TestSignAssertionClaims(t *testing.T) {
	fixed := time.Unix(1_700_000_000, 0)
	s, key := newTestSigner(t, WithSignerClock(func() time.Time { return fixed }))
	token, err := s.SignAssertion(nil)
	if err != nil {
		t.Fatalf("sign assertion: %v", err)
	}

	claims := gjwt.MapClaims{}
	parsed, err := gjwt.NewParser(gjwt.WithoutClaimsValidation()).ParseWithClaims(token, claims, func(*gjwt.Token) (any, error) {
		return &key.PublicKey, nil
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Header["kid"] != "pk-1" || parsed.Header["alg"] != "RS256" {
		t.Fatalf("unexpected header: %v", parsed.Header)
	}
	if claims["aud"] != DefaultTokenURL {
		t.Fatalf("unexpected aud %v", claims["aud"])
	}
	if claims["scope"] != strings.Join(DefaultScopes, " ") {
		t.Fatalf("unexpected scope %v", claims["scope"])
	}
	if claims["iat"] != float64(fixed.Unix()) || claims["exp"] != float64(fixed.Add(time.Hour).Unix()) {
		t.Fatalf("unexpected iat/exp %v %v", claims["iat"], claims["exp"])
	}
}

func TestParsePrivateKeyNormalizesEscapedNewlines(t *testing.T) {
	k1, _ := testKeys(t)
	escaped := strings.ReplaceAll(pkcs8PEM(t, k1), "\n", `\n`)
	got, err := ParsePrivateKey(escaped)
	if err != nil {
		t.Fatalf("parse escaped key: %v", err)
	}
	if got.N.Cmp(k1.N) != 0 {
		t.Fatal("parsed key mismatch")
	}
}

func TestParsePrivateKeyRejectsNonPKCS8(t *testing.T) {
	k1, _ := testKeys(t)
	pkcs1 := string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(k1)}))
	for name, input := range map[string]string{"pkcs1": pkcs1, "garbage": "not a key"} {
		if _, err := ParsePrivateKey(input); !errors.Is(err, ErrKeyImport) {
			t.Fatalf("%s: expected ErrKeyImport, got %v", name, err)
		}
	}
}

func TestSignerCachesImportedKey(t *testing.T) {
	s, _ := newTestSigner(t)
	calls := 0
	parse := s.parseKey
	s.parseKey = func(p string) (*rsa.PrivateKey, error) {
		calls++
		return parse(p)
	}
	for i := 0; i < 3; i++ {
		if _, err := s.SignAssertion(nil); err != nil {
			t.Fatalf("sign: %v", err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one key import, got %d", calls)
	}
}
