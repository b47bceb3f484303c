package keys

import (
	"context"
	"crypto/rsa"
	"encoding/json"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// Fetcher is the subset of transport.Client used by the sources.
type Fetcher interface {
	GetJSON(ctx context.Context, rawURL string, out any) error
}

// JWKSource downloads a JSON Web Key Set and keeps the RS256 signing keys.
type JWKSource struct {
	URL     string
	Fetcher Fetcher
}

type jwkHeader struct {
	KeyID     string `json:"kid"`
	KeyType   string `json:"kty"`
	Algorithm string `json:"alg"`
	Use       string `json:"use"`
}

type jwkDocument struct {
	Keys []json.RawMessage `json:"keys"`
}

// Fetch implements Source.
func (s JWKSource) Fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	var doc jwkDocument
	if err := s.Fetcher.GetJSON(ctx, s.URL, &doc); err != nil {
		return nil, err
	}
	return parseJWKs(doc.Keys)
}

// ParseJWKSet parses a raw JWK set document.
func ParseJWKSet(raw []byte) (map[string]*rsa.PublicKey, error) {
	var doc jwkDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode jwk set: %w", err)
	}
	return parseJWKs(doc.Keys)
}

func parseJWKs(entries []json.RawMessage) (map[string]*rsa.PublicKey, error) {
	out := make(map[string]*rsa.PublicKey, len(entries))
	for _, raw := range entries {
		var hdr jwkHeader
		if err := json.Unmarshal(raw, &hdr); err != nil {
			return nil, fmt.Errorf("decode jwk header: %w", err)
		}
		if hdr.KeyID == "" || hdr.KeyType != "RSA" {
			continue
		}
		if hdr.Algorithm != "" && hdr.Algorithm != "RS256" {
			continue
		}
		if hdr.Use != "" && hdr.Use != "sig" {
			continue
		}

		key, err := jwk.ParseKey(raw)
		if err != nil {
			return nil, fmt.Errorf("parse jwk %q: %w", hdr.KeyID, err)
		}
		var exported any
		if err := jwk.Export(key, &exported); err != nil {
			return nil, fmt.Errorf("export jwk %q: %w", hdr.KeyID, err)
		}
		pub, ok := exported.(*rsa.PublicKey)
		if !ok {
			continue
		}
		out[hdr.KeyID] = pub
	}
	return out, nil
}

// X509Source downloads a {kid: PEM certificate} map.
type X509Source struct {
	URL     string
	Fetcher Fetcher
}

// Fetch implements Source.
func (s X509Source) Fetch(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	var certs map[string]string
	if err := s.Fetcher.GetJSON(ctx, s.URL, &certs); err != nil {
		return nil, err
	}
	return ParseCertificates(certs)
}

// ParseCertificates converts a kid → PEM map into RSA public keys.
func ParseCertificates(certs map[string]string) (map[string]*rsa.PublicKey, error) {
	out := make(map[string]*rsa.PublicKey, len(certs))
	for kid, pemText := range certs {
		pub, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pemText))
		if err != nil {
			return nil, fmt.Errorf("parse certificate %q: %w", kid, err)
		}
		out[kid] = pub
	}
	return out, nil
}

// StaticSource serves a fixed key map. Useful for emulators and tests.
type StaticSource map[string]*rsa.PublicKey

// Fetch implements Source.
func (s StaticSource) Fetch(context.Context) (map[string]*rsa.PublicKey, error) {
	return s, nil
}
