package goIdentity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/oauth"
	"github.com/caarlos0/env/v11"
)

const (
	// DefaultIDTokenJWKURL publishes the keys that sign id tokens.
	DefaultIDTokenJWKURL = "https://www.googleapis.com/service_accounts/v1/jwk/securetoken@system.gserviceaccount.com"
	// DefaultSessionCookieCertURL publishes the certificates that sign session cookies.
	DefaultSessionCookieCertURL = "https://www.googleapis.com/identitytoolkit/v3/relyingparty/publicKeys"

	// MinSessionCookieDuration and MaxSessionCookieDuration bound
	// CreateSessionCookie.
	MinSessionCookieDuration = 5 * time.Minute
	MaxSessionCookieDuration = 14 * 24 * time.Hour
)

// Config holds engine configuration. Build it with defaultConfig (through
// New), LoadConfigFromEnv, or by hand, then hand it to Builder.WithConfig.
type Config struct {
	ProjectID   string
	APIKey      string
	OAuth       OAuthConfig
	Keys        KeysConfig
	Endpoints   EndpointsConfig
	Session     SessionConfig
	Security    SecurityConfig
	AccessToken AccessTokenConfig
	Audit       AuditConfig
	Metrics     MetricsConfig
}

/*
====================================
OAUTH CONFIG
====================================
*/

// OAuthConfig is the provider client registration used by EstablishSession.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	ProviderID   string
	Scopes       []string
}

/*
====================================
KEYS CONFIG
====================================
*/

// KeysConfig locates the published verification keys and the issuer
// prefixes each token kind must carry.
type KeysConfig struct {
	IDTokenJWKURL        string
	SessionCookieCertURL string
	IDTokenIssuerBase    string
	SessionIssuerBase    string
}

// EndpointsConfig overrides the identity service base URLs. Empty fields use
// the production endpoints.
type EndpointsConfig struct {
	IdentityToolkit string
	SecureToken     string
	OAuthToken      string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls token verification and session cookies.
type SessionConfig struct {
	// Leeway is the clock skew tolerated on exp, nbf and iat.
	Leeway            time.Duration
	MinCookieDuration time.Duration
	MaxCookieDuration time.Duration
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig controls throttling and custom token claim policy.
type SecurityConfig struct {
	EnableRefreshThrottle  bool
	MaxRefreshAttempts     int
	RefreshWindow          time.Duration
	EnableExchangeThrottle bool
	MaxExchangeAttempts    int
	ExchangeWindow         time.Duration
	// ReservedClaimPrefixes are rejected in custom token claims in addition
	// to the fixed reserved names. The "firebase" namespace is reserved even
	// when it is missing here.
	ReservedClaimPrefixes []string
}

// AccessTokenConfig controls the admin access token cache.
type AccessTokenConfig struct {
	Scopes       []string
	SafetyMargin time.Duration
	RedisPrefix  string
}

// AuditConfig controls the async audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

func defaultConfig() Config {
	return Config{
		OAuth: OAuthConfig{
			AuthURL:    oauth.DefaultAuthURL,
			TokenURL:   oauth.DefaultTokenURL,
			ProviderID: oauth.DefaultProviderID,
			Scopes:     append([]string(nil), oauth.DefaultScopes...),
		},
		Keys: KeysConfig{
			IDTokenJWKURL:        DefaultIDTokenJWKURL,
			SessionCookieCertURL: DefaultSessionCookieCertURL,
			IDTokenIssuerBase:    jwt.DefaultIDTokenIssuer,
			SessionIssuerBase:    jwt.DefaultSessionIssuer,
		},
		Session: SessionConfig{
			MinCookieDuration: MinSessionCookieDuration,
			MaxCookieDuration: MaxSessionCookieDuration,
		},
		Security: SecurityConfig{
			MaxRefreshAttempts:    20,
			RefreshWindow:         time.Minute,
			MaxExchangeAttempts:   10,
			ExchangeWindow:        time.Minute,
			ReservedClaimPrefixes: []string{"firebase"},
		},
		AccessToken: AccessTokenConfig{
			Scopes:       append([]string(nil), jwt.DefaultScopes...),
			SafetyMargin: time.Minute,
			RedisPrefix:  "gi:at",
		},
		Audit: AuditConfig{
			BufferSize: 1024,
			DropIfFull: true,
		},
	}
}

// DefaultConfig returns the production defaults. ProjectID, APIKey and the
// OAuth client registration still need to be filled in.
func DefaultConfig() Config {
	return defaultConfig()
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.OAuth.Scopes = cloneStrings(cfg.OAuth.Scopes)
	out.Security.ReservedClaimPrefixes = cloneStrings(cfg.Security.ReservedClaimPrefixes)
	out.AccessToken.Scopes = cloneStrings(cfg.AccessToken.Scopes)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.ProjectID) == "" {
		return errors.New("ProjectID must be set")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return errors.New("APIKey must be set")
	}

	// Keys
	if c.Keys.IDTokenJWKURL == "" {
		return errors.New("Keys IDTokenJWKURL must be set")
	}
	if c.Keys.SessionCookieCertURL == "" {
		return errors.New("Keys SessionCookieCertURL must be set")
	}
	if c.Keys.IDTokenIssuerBase == c.Keys.SessionIssuerBase && c.Keys.IDTokenIssuerBase != "" {
		return errors.New("Keys issuer bases must differ between id tokens and session cookies")
	}

	// Session
	if c.Session.Leeway < 0 || c.Session.Leeway > 5*time.Minute {
		return errors.New("Session Leeway must be within [0, 5m]")
	}
	if c.Session.MinCookieDuration < MinSessionCookieDuration {
		return fmt.Errorf("Session MinCookieDuration must be >= %s", MinSessionCookieDuration)
	}
	if c.Session.MaxCookieDuration > MaxSessionCookieDuration {
		return fmt.Errorf("Session MaxCookieDuration must be <= %s", MaxSessionCookieDuration)
	}
	if c.Session.MinCookieDuration > c.Session.MaxCookieDuration {
		return errors.New("Session MinCookieDuration must be <= MaxCookieDuration")
	}

	// Security
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return errors.New("Security MaxRefreshAttempts must be > 0 when refresh throttle is enabled")
		}
		if c.Security.RefreshWindow <= 0 {
			return errors.New("Security RefreshWindow must be > 0 when refresh throttle is enabled")
		}
	}
	if c.Security.EnableExchangeThrottle {
		if c.Security.MaxExchangeAttempts <= 0 {
			return errors.New("Security MaxExchangeAttempts must be > 0 when exchange throttle is enabled")
		}
		if c.Security.ExchangeWindow <= 0 {
			return errors.New("Security ExchangeWindow must be > 0 when exchange throttle is enabled")
		}
	}
	for _, p := range c.Security.ReservedClaimPrefixes {
		if strings.TrimSpace(p) == "" {
			return errors.New("Security ReservedClaimPrefixes must not contain empty entries")
		}
	}

	// AccessToken
	if len(c.AccessToken.Scopes) == 0 {
		return errors.New("AccessToken Scopes must not be empty")
	}
	if c.AccessToken.SafetyMargin < 0 || c.AccessToken.SafetyMargin >= 30*time.Minute {
		return errors.New("AccessToken SafetyMargin must be within [0, 30m)")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

// configEnv holds raw GOIDENTITY_* values. Unset variables keep the default.
type configEnv struct {
	ProjectID            string        `env:"GOIDENTITY_PROJECT_ID"`
	APIKey               string        `env:"GOIDENTITY_API_KEY"`
	OAuthClientID        string        `env:"GOIDENTITY_OAUTH_CLIENT_ID"`
	OAuthClientSecret    string        `env:"GOIDENTITY_OAUTH_CLIENT_SECRET"`
	OAuthProviderID      string        `env:"GOIDENTITY_OAUTH_PROVIDER_ID"`
	OAuthScopes          []string      `env:"GOIDENTITY_OAUTH_SCOPES" envSeparator:","`
	IDTokenJWKURL        string        `env:"GOIDENTITY_ID_TOKEN_JWK_URL"`
	SessionCookieCertURL string        `env:"GOIDENTITY_SESSION_COOKIE_CERT_URL"`
	IdentityToolkitURL   string        `env:"GOIDENTITY_IDENTITY_TOOLKIT_URL"`
	SecureTokenURL       string        `env:"GOIDENTITY_SECURE_TOKEN_URL"`
	OAuthTokenURL        string        `env:"GOIDENTITY_OAUTH_TOKEN_URL"`
	Leeway               time.Duration `env:"GOIDENTITY_LEEWAY"`
	RefreshThrottle      string        `env:"GOIDENTITY_REFRESH_THROTTLE"`
	MaxRefreshAttempts   int           `env:"GOIDENTITY_MAX_REFRESH_ATTEMPTS"`
	ExchangeThrottle     string        `env:"GOIDENTITY_EXCHANGE_THROTTLE"`
	MaxExchangeAttempts  int           `env:"GOIDENTITY_MAX_EXCHANGE_ATTEMPTS"`
	ReservedPrefixes     []string      `env:"GOIDENTITY_RESERVED_CLAIM_PREFIXES" envSeparator:","`
	AuditEnabled         string        `env:"GOIDENTITY_AUDIT_ENABLED"`
	MetricsEnabled       string        `env:"GOIDENTITY_METRICS_ENABLED"`
}

// LoadConfigFromEnv overlays GOIDENTITY_* environment variables onto the
// defaults. The result is not validated; Build does that.
func LoadConfigFromEnv() (Config, error) {
	var raw configEnv
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("load config from env: %w", err)
	}

	cfg := defaultConfig()
	cfg.ProjectID = raw.ProjectID
	cfg.APIKey = raw.APIKey
	cfg.OAuth.ClientID = raw.OAuthClientID
	cfg.OAuth.ClientSecret = raw.OAuthClientSecret
	setString(&cfg.OAuth.ProviderID, raw.OAuthProviderID)
	if scopes := trimCSV(raw.OAuthScopes); len(scopes) > 0 {
		cfg.OAuth.Scopes = scopes
	}
	setString(&cfg.Keys.IDTokenJWKURL, raw.IDTokenJWKURL)
	setString(&cfg.Keys.SessionCookieCertURL, raw.SessionCookieCertURL)
	cfg.Endpoints = EndpointsConfig{
		IdentityToolkit: raw.IdentityToolkitURL,
		SecureToken:     raw.SecureTokenURL,
		OAuthToken:      raw.OAuthTokenURL,
	}
	if raw.OAuthTokenURL != "" {
		cfg.OAuth.TokenURL = raw.OAuthTokenURL
	}
	cfg.Session.Leeway = raw.Leeway
	setInt(&cfg.Security.MaxRefreshAttempts, raw.MaxRefreshAttempts)
	setInt(&cfg.Security.MaxExchangeAttempts, raw.MaxExchangeAttempts)
	if prefixes := trimCSV(raw.ReservedPrefixes); len(prefixes) > 0 {
		cfg.Security.ReservedClaimPrefixes = prefixes
	}
	for _, f := range []struct {
		name string
		dst  *bool
		raw  string
	}{
		{"GOIDENTITY_REFRESH_THROTTLE", &cfg.Security.EnableRefreshThrottle, raw.RefreshThrottle},
		{"GOIDENTITY_EXCHANGE_THROTTLE", &cfg.Security.EnableExchangeThrottle, raw.ExchangeThrottle},
		{"GOIDENTITY_AUDIT_ENABLED", &cfg.Audit.Enabled, raw.AuditEnabled},
		{"GOIDENTITY_METRICS_ENABLED", &cfg.Metrics.Enabled, raw.MetricsEnabled},
	} {
		if err := setBool(f.dst, f.raw); err != nil {
			return Config{}, fmt.Errorf("load config from env: %s: %w", f.name, err)
		}
	}
	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setBool(dst *bool, v string) error {
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return err
	}
	*dst = b
	return nil
}

func trimCSV(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
