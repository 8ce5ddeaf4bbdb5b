package authsession

import (
	"errors"
	"time"
)

// Config defines a public type used by authsession APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	// BaseURL is the backend API root, e.g. "https://api.platefeed.io".
	BaseURL string

	Vault       VaultConfig
	Monitor     MonitorConfig
	Refresh     RefreshConfig
	Login       LoginConfig
	Verify      VerifyConfig
	Interceptor InterceptorConfig
	Events      EventConfig
	Metrics     MetricsConfig
}

/*
====================================
VAULT CONFIG
====================================
*/

// VaultConfig defines a public type used by authsession APIs.
//
// VaultConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VaultConfig struct {
	// RedisPrefix namespaces the persisted token key. Only used when the
	// Manager is built with a Redis client.
	RedisPrefix string
}

/*
====================================
MONITOR CONFIG
====================================
*/

// MonitorConfig defines a public type used by authsession APIs.
//
// MonitorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MonitorConfig struct {
	Enabled bool
	// Interval between expiry inspections.
	Interval time.Duration
	// RenewThreshold: when remaining token lifetime drops below it, a
	// proactive refresh is triggered.
	RenewThreshold time.Duration
}

/*
====================================
REFRESH CONFIG
====================================
*/

// RefreshConfig defines a public type used by authsession APIs.
//
// RefreshConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RefreshConfig struct {
	// BaseDelay is the first 429 backoff delay; attempt k waits
	// BaseDelay * 2^k, capped at MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxAttempts bounds the refresh network calls within one cycle.
	MaxAttempts int
	// Jitter adds up to the given fraction of each delay (0 disables).
	Jitter float64
	// CycleTimeout bounds a whole refresh cycle in wall-clock time.
	CycleTimeout time.Duration
}

/*
====================================
LOGIN CONFIG
====================================
*/

// LoginConfig defines a public type used by authsession APIs.
//
// LoginConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LoginConfig struct {
	// MaxRetries bounds the extra attempts made on 429 responses.
	MaxRetries int
	BaseDelay  time.Duration
	// MaxTotalWait caps the whole login retry window in wall-clock time.
	MaxTotalWait time.Duration
}

/*
====================================
VERIFY CONFIG
====================================
*/

// VerifyConfig defines a public type used by authsession APIs.
//
// VerifyConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type VerifyConfig struct {
	// RateLimitDelay is the single fixed wait before the one verify
	// retry after a 429.
	RateLimitDelay time.Duration
	// SafetyTimeout forces Loading() to false even when no network
	// response ever arrives.
	SafetyTimeout time.Duration
}

/*
====================================
INTERCEPTOR CONFIG
====================================
*/

// InterceptorConfig defines a public type used by authsession APIs.
//
// InterceptorConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type InterceptorConfig struct {
	// RateLimitDelay is the fixed wait applied before propagating a 429
	// unchanged. No retry is performed.
	RateLimitDelay time.Duration
}

// EventConfig defines a public type used by authsession APIs.
//
// EventConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type EventConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authsession APIs.
//
// MetricsConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsConfig struct {
	Enabled bool
}

func defaultConfig() Config {
	return Config{
		Vault: VaultConfig{
			RedisPrefix: "authsession",
		},
		Monitor: MonitorConfig{
			Enabled:        true,
			Interval:       60 * time.Second,
			RenewThreshold: 5 * time.Minute,
		},
		Refresh: RefreshConfig{
			BaseDelay:    time.Second,
			MaxDelay:     30 * time.Second,
			MaxAttempts:  5,
			Jitter:       0,
			CycleTimeout: 2 * time.Minute,
		},
		Login: LoginConfig{
			MaxRetries: 2,
			BaseDelay:  500 * time.Millisecond,
			// The retry count and base delay do not bound wall-clock
			// time on their own; 5s keeps an interactive login from
			// hanging behind a throttling backend.
			MaxTotalWait: 5 * time.Second,
		},
		Verify: VerifyConfig{
			RateLimitDelay: 3 * time.Second,
			SafetyTimeout:  3 * time.Second,
		},
		Interceptor: InterceptorConfig{
			RateLimitDelay: 500 * time.Millisecond,
		},
		Events: EventConfig{
			Enabled:    true,
			BufferSize: 64,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	// All fields are value types; a shallow copy is a deep copy.
	return cfg
}

func validateConfig(cfg Config) error {
	if cfg.BaseURL == "" {
		return errors.New("authsession: BaseURL is required")
	}
	if cfg.Monitor.Enabled {
		if cfg.Monitor.Interval <= 0 {
			return errors.New("authsession: monitor interval must be positive")
		}
		if cfg.Monitor.RenewThreshold <= 0 {
			return errors.New("authsession: monitor renew threshold must be positive")
		}
	}
	if cfg.Refresh.BaseDelay <= 0 || cfg.Refresh.MaxDelay < cfg.Refresh.BaseDelay {
		return errors.New("authsession: invalid refresh backoff configuration")
	}
	if cfg.Refresh.MaxAttempts < 1 {
		return errors.New("authsession: refresh max attempts must be at least 1")
	}
	if cfg.Refresh.Jitter < 0 || cfg.Refresh.Jitter > 1 {
		return errors.New("authsession: refresh jitter must be within [0, 1]")
	}
	if cfg.Login.MaxRetries < 0 {
		return errors.New("authsession: login max retries must not be negative")
	}
	if cfg.Login.MaxRetries > 0 && cfg.Login.BaseDelay <= 0 {
		return errors.New("authsession: login base delay must be positive")
	}
	if cfg.Verify.SafetyTimeout <= 0 {
		return errors.New("authsession: verify safety timeout must be positive")
	}
	return nil
}
