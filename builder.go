package authsession

import (
	"context"
	"errors"
	"net/http"

	"github.com/platefeed/authsession/httpapi"
	"github.com/platefeed/authsession/internal/backoff"
	"github.com/platefeed/authsession/internal/flows"
	"github.com/platefeed/authsession/token"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder defines a public type used by authsession APIs.
//
// Builder instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Builder struct {
	config     Config
	redis      *redis.Client
	vault      token.Vault
	httpClient *http.Client
	logger     *zap.Logger
	sink       EventSink

	built bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig describes the withconfig operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL describes the withbaseurl operation and its observable behavior.
//
// WithBaseURL does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithBaseURL(baseURL string) *Builder {
	b.config.BaseURL = baseURL
	return b
}

// WithRedis installs the Redis client backing the durable token slot.
//
// WithRedis does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithVault overrides the durable token slot. Takes precedence over
// WithRedis.
//
// WithVault does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithVault(v token.Vault) *Builder {
	b.vault = v
	return b
}

// WithHTTPClient installs the shared HTTP client. A cookie jar is attached
// when missing so the refresh credential can round-trip.
//
// WithHTTPClient does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client
	return b
}

// WithLogger describes the withlogger operation and its observable behavior.
//
// WithLogger does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink describes the witheventsink operation and its observable behavior.
//
// WithEventSink does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.sink = sink
	return b
}

// WithMetricsEnabled describes the withmetricsenabled operation and its observable behavior.
//
// WithMetricsEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithMonitorEnabled describes the withmonitorenabled operation and its observable behavior.
//
// WithMonitorEnabled does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (b *Builder) WithMonitorEnabled(enabled bool) *Builder {
	b.config.Monitor.Enabled = enabled
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build may return an error when input validation or dependency wiring fails.
func (b *Builder) Build() (*Manager, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	api, err := httpapi.NewClient(cfg.BaseURL, b.httpClient)
	if err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	warn := func(msg string, args ...any) {
		logger.Sugar().Warnw(msg, args...)
	}

	vault := b.vault
	if vault == nil && b.redis != nil {
		vault = token.NewRedisVault(b.redis, cfg.Vault.RedisPrefix)
	}
	if vault == nil {
		vault = token.NewMemoryVault()
	}

	binding := func(tok string) {
		if tok == "" {
			api.SetDefaultAuthorization("")
			return
		}
		api.SetDefaultAuthorization("Bearer " + tok)
	}
	store := token.NewStore(vault, binding, warn)

	bus := NewChannelSink(cfg.Events.BufferSize)
	var sink EventSink = bus
	if b.sink != nil {
		sink = multiSink{b.sink, bus}
	}

	m := &Manager{
		config:  cfg,
		logger:  logger,
		api:     api,
		store:   store,
		metrics: NewMetrics(cfg.Metrics),
		events:  newEventDispatcher(cfg.Events, sink),
		bus:     bus,
		state:   StateAnonymous,
	}

	m.deps = flows.Deps{
		Login: flows.LoginDeps{
			Retry: backoff.Policy{
				Base:        cfg.Login.BaseDelay,
				MaxAttempts: cfg.Login.MaxRetries + 1,
			},
			MaxTotalWait: cfg.Login.MaxTotalWait,
			Warn:         warn,
		},
		Verify: flows.VerifyDeps{
			Call:           api.Verify,
			Refresh:        m.Refresh,
			RateLimitDelay: cfg.Verify.RateLimitDelay,
			Warn:           warn,
		},
		Refresh: flows.RefreshDeps{
			Call: api.Refresh,
			Backoff: backoff.Policy{
				Base:        cfg.Refresh.BaseDelay,
				Cap:         cfg.Refresh.MaxDelay,
				MaxAttempts: cfg.Refresh.MaxAttempts,
				Jitter:      cfg.Refresh.Jitter,
			},
			Warn: warn,
		},
		Logout: flows.LogoutDeps{
			Call: api.Logout,
			Warn: warn,
		},
	}

	// Restore any token persisted by a previous run. Verify() decides
	// whether it still establishes an authenticated user.
	if _, err := store.Hydrate(context.Background()); err != nil {
		logger.Warn("authsession: persisted token unavailable at startup", zap.Error(err))
	}

	b.built = true
	return m, nil
}
