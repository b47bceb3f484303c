package jwt

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SignInInfo is the provider-specific "firebase" claim.
type SignInInfo struct {
	SignInProvider string              `json:"sign_in_provider,omitempty"`
	Identities     map[string][]string `json:"identities,omitempty"`
	Tenant         string              `json:"tenant,omitempty"`
}

// IdentityClaims is the verified payload of an identity token or session
// cookie. Claims outside the known set land in Custom.
type IdentityClaims struct {
	jwt.RegisteredClaims
	AuthTime      int64      `json:"auth_time,omitempty"`
	UserID        string     `json:"user_id,omitempty"`
	Email         string     `json:"email,omitempty"`
	EmailVerified bool       `json:"email_verified,omitempty"`
	Name          string     `json:"name,omitempty"`
	Picture       string     `json:"picture,omitempty"`
	Firebase      SignInInfo `json:"firebase"`

	Custom map[string]any `json:"-"`
}

var knownClaims = []string{
	"iss", "sub", "aud", "exp", "nbf", "iat", "jti",
	"auth_time", "user_id", "email", "email_verified", "name", "picture", "firebase",
}

// UID returns the subject, which is the user id.
func (c *IdentityClaims) UID() string {
	return c.Subject
}

// AuthenticatedAt returns auth_time as a time, or the zero time when unset.
func (c *IdentityClaims) AuthenticatedAt() time.Time {
	if c.AuthTime == 0 {
		return time.Time{}
	}
	return time.Unix(c.AuthTime, 0)
}

func (c *IdentityClaims) UnmarshalJSON(data []byte) error {
	type plain IdentityClaims
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]any
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, name := range knownClaims {
		delete(all, name)
	}
	if len(all) > 0 {
		p.Custom = all
	}
	*c = IdentityClaims(p)
	return nil
}

func (c IdentityClaims) MarshalJSON() ([]byte, error) {
	type plain IdentityClaims
	base, err := json.Marshal(plain(c))
	if err != nil {
		return nil, err
	}
	if len(c.Custom) == 0 {
		return base, nil
	}
	merged := make(map[string]json.RawMessage, len(c.Custom)+len(knownClaims))
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range c.Custom {
		if _, taken := merged[k]; taken {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		merged[k] = raw
	}
	return json.Marshal(merged)
}
