package goIdentity

import (
	"errors"
	"fmt"
	"time"

	internalaudit "github.com/MrEthical07/goIdentity/internal/audit"
	internalflows "github.com/MrEthical07/goIdentity/internal/flows"
	"github.com/MrEthical07/goIdentity/internal/rate"
	"github.com/MrEthical07/goIdentity/internal/stores"
	"github.com/MrEthical07/goIdentity/idtoolkit"
	"github.com/MrEthical07/goIdentity/jwt"
	"github.com/MrEthical07/goIdentity/keys"
	"github.com/MrEthical07/goIdentity/oauth"
	"github.com/MrEthical07/goIdentity/transport"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. Configure it during initialization, call
// Build once, and discard it.
type Builder struct {
	config         Config
	redis          redis.UniversalClient
	httpClient     transport.Doer
	serviceAccount *ServiceAccount
	logger         *zap.Logger
	auditSink      AuditSink
	keySources     map[keys.Space]keys.Source
	now            func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{config: defaultConfig()}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables the shared access token cache and the refresh and code
// exchange throttles.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithHTTPClient sets the Doer used for every outbound call. The default is
// http.DefaultClient.
func (b *Builder) WithHTTPClient(doer transport.Doer) *Builder {
	b.httpClient = doer
	return b
}

// WithServiceAccount enables the admin operations: assertions, custom
// tokens, access tokens, user lookup, session cookies and revocation checks.
func (b *Builder) WithServiceAccount(sa *ServiceAccount) *Builder {
	b.serviceAccount = sa
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit sink. Audit must also be enabled in Config;
// without a sink, events are logged through the engine logger.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithKeySource replaces the published key source of one key space.
func (b *Builder) WithKeySource(space keys.Space, src keys.Source) *Builder {
	if b.keySources == nil {
		b.keySources = make(map[keys.Space]keys.Source, 2)
	}
	b.keySources[space] = src
	return b
}

// WithClock overrides the clock used for token validation and signing.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if cfg.ProjectID == "" && b.serviceAccount != nil {
		cfg.ProjectID = b.serviceAccount.ProjectID
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil && (cfg.Security.EnableRefreshThrottle || cfg.Security.EnableExchangeThrottle) {
		return nil, errors.New("rate limiting requires redis client")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	engine := &Engine{
		config:  cloneConfig(cfg),
		logger:  logger,
		metrics: NewMetrics(cfg.Metrics),
		idProfile: jwt.IDTokenProfile(
			cfg.Keys.IDTokenIssuerBase, cfg.ProjectID),
		cookieProfile: jwt.SessionCookieProfile(
			cfg.Keys.SessionIssuerBase, cfg.ProjectID),
	}

	// -------- TRANSPORT --------
	httpc := transport.New(b.httpClient)
	engine.identity = idtoolkit.New(httpc, cfg.APIKey, cfg.ProjectID, idtoolkit.Endpoints{
		IdentityToolkit: cfg.Endpoints.IdentityToolkit,
		SecureToken:     cfg.Endpoints.SecureToken,
		OAuthToken:      cfg.Endpoints.OAuthToken,
	})

	// -------- KEY STORE --------
	sources := map[keys.Space]keys.Source{
		keys.SpaceIDToken:       keys.JWKSource{URL: cfg.Keys.IDTokenJWKURL, Fetcher: httpc},
		keys.SpaceSessionCookie: keys.X509Source{URL: cfg.Keys.SessionCookieCertURL, Fetcher: httpc},
	}
	for space, src := range b.keySources {
		sources[space] = src
	}
	store, err := keys.NewStore(sources, keys.WithFetchObserver(engine.observeKeyFetch))
	if err != nil {
		return nil, err
	}
	engine.keys = store
	engine.verifier = jwt.NewVerifier(store, jwt.WithLeeway(cfg.Session.Leeway), jwt.WithClock(now))

	// -------- SIGNER --------
	if b.serviceAccount != nil {
		signer, err := jwt.NewSigner(b.serviceAccount.credentials(),
			jwt.WithSignerClock(now),
			jwt.WithReservedPrefixes(cfg.Security.ReservedClaimPrefixes...),
		)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidServiceAccount, err)
		}
		engine.signer = signer
		if b.redis != nil {
			engine.tokenCache = stores.NewRedisAccessTokenStore(b.redis, cfg.AccessToken.RedisPrefix, signer.ClientEmail())
		} else {
			engine.tokenCache = stores.NewMemoryAccessTokenStore()
		}
	}

	// -------- OAUTH --------
	engine.exchanger = oauth.NewExchanger(oauth.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		AuthURL:      cfg.OAuth.AuthURL,
		TokenURL:     cfg.OAuth.TokenURL,
		ProviderID:   cfg.OAuth.ProviderID,
		Scopes:       cfg.OAuth.Scopes,
	}, httpc.HTTPClient(), engine.identity)

	// -------- RATE LIMITS --------
	if b.redis != nil {
		engine.limiter = rate.New(b.redis, rate.Config{
			EnableRefreshThrottle:  cfg.Security.EnableRefreshThrottle,
			MaxRefreshAttempts:     cfg.Security.MaxRefreshAttempts,
			RefreshWindow:          cfg.Security.RefreshWindow,
			EnableExchangeThrottle: cfg.Security.EnableExchangeThrottle,
			MaxExchangeAttempts:    cfg.Security.MaxExchangeAttempts,
			ExchangeWindow:         cfg.Security.ExchangeWindow,
		})
	}

	// -------- AUDIT --------
	sink := b.auditSink
	if sink == nil {
		sink = NewZapSink(logger)
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		OnDrop: func(ev AuditEvent) {
			logger.Warn("goIdentity: audit event dropped", zap.String("event_type", ev.EventType))
		},
	}, sink)

	engine.flows = internalflows.New(engine.flowDeps())

	b.built = true
	return engine, nil
}
