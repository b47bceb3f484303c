package idtoolkit

import (
	"encoding/json"
	"strconv"
	"time"
)

// SignInResponse is returned by signInWithIdp and signInWithCustomToken.
type SignInResponse struct {
	IDToken       string `json:"idToken"`
	RefreshToken  string `json:"refreshToken"`
	ExpiresInSec  string `json:"expiresIn"`
	LocalID       string `json:"localId"`
	Email         string `json:"email,omitempty"`
	EmailVerified bool   `json:"emailVerified,omitempty"`
	ProviderID    string `json:"providerId,omitempty"`
	FederatedID   string `json:"federatedId,omitempty"`
	OAuthIDToken  string `json:"oauthIdToken,omitempty"`
	RawUserInfo   string `json:"rawUserInfo,omitempty"`
	IsNewUser     bool   `json:"isNewUser,omitempty"`
}

// ExpiresIn parses the id token lifetime.
func (r *SignInResponse) ExpiresIn() time.Duration {
	return parseSeconds(r.ExpiresInSec)
}

// RefreshResponse is returned by the Secure Token endpoint.
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresInSec string `json:"expires_in"`
	TokenType    string `json:"token_type"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	UserID       string `json:"user_id"`
	ProjectID    string `json:"project_id"`
}

// ExpiresIn parses the refreshed id token lifetime.
func (r *RefreshResponse) ExpiresIn() time.Duration {
	return parseSeconds(r.ExpiresInSec)
}

// AccessTokenResponse is returned by the jwt-bearer grant.
type AccessTokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
}

// ProviderUserInfo links an account to one federated provider.
type ProviderUserInfo struct {
	ProviderID  string `json:"providerId"`
	RawID       string `json:"rawId,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	PhotoURL    string `json:"photoUrl,omitempty"`
	FederatedID string `json:"federatedId,omitempty"`
}

// UserRecord is one account from accounts:lookup. Timestamps are kept in the
// wire form and decoded by the accessor methods.
type UserRecord struct {
	LocalID          string             `json:"localId"`
	Email            string             `json:"email,omitempty"`
	EmailVerified    bool               `json:"emailVerified,omitempty"`
	DisplayName      string             `json:"displayName,omitempty"`
	PhotoURL         string             `json:"photoUrl,omitempty"`
	PhoneNumber      string             `json:"phoneNumber,omitempty"`
	Disabled         bool               `json:"disabled,omitempty"`
	ValidSince       string             `json:"validSince,omitempty"`
	CreatedAt        string             `json:"createdAt,omitempty"`
	LastLoginAt      string             `json:"lastLoginAt,omitempty"`
	LastRefreshAt    string             `json:"lastRefreshAt,omitempty"`
	CustomAttributes string             `json:"customAttributes,omitempty"`
	TenantID         string             `json:"tenantId,omitempty"`
	ProviderUserInfo []ProviderUserInfo `json:"providerUserInfo,omitempty"`
}

// TokensValidAfter returns the revocation watermark. Tokens whose auth_time
// is earlier were revoked. The zero time means no revocation happened.
func (u *UserRecord) TokensValidAfter() time.Time {
	secs, err := strconv.ParseInt(u.ValidSince, 10, 64)
	if err != nil || secs <= 0 {
		return time.Time{}
	}
	return time.Unix(secs, 0)
}

// Created returns the account creation time.
func (u *UserRecord) Created() time.Time {
	return parseMillis(u.CreatedAt)
}

// LastLogin returns the last sign-in time.
func (u *UserRecord) LastLogin() time.Time {
	return parseMillis(u.LastLoginAt)
}

// CustomClaims decodes the developer claims attached to the account.
func (u *UserRecord) CustomClaims() (map[string]any, error) {
	if u.CustomAttributes == "" {
		return nil, nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(u.CustomAttributes), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func parseSeconds(v string) time.Duration {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}

func parseMillis(v string) time.Time {
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(n)
}
