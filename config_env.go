package authsession

import (
	"time"

	"github.com/spf13/viper"
)

// envConfig mirrors Config as flat env keys so deployments can tune the
// session lifecycle without code changes.
type envConfig struct {
	BaseURL               string        `mapstructure:"AUTHSESSION_BASE_URL"`
	RedisPrefix           string        `mapstructure:"AUTHSESSION_REDIS_PREFIX"`
	MonitorEnabled        bool          `mapstructure:"AUTHSESSION_MONITOR_ENABLED"`
	MonitorInterval       time.Duration `mapstructure:"AUTHSESSION_MONITOR_INTERVAL"`
	MonitorRenewThreshold time.Duration `mapstructure:"AUTHSESSION_MONITOR_RENEW_THRESHOLD"`
	RefreshBaseDelay      time.Duration `mapstructure:"AUTHSESSION_REFRESH_BASE_DELAY"`
	RefreshMaxDelay       time.Duration `mapstructure:"AUTHSESSION_REFRESH_MAX_DELAY"`
	RefreshMaxAttempts    int           `mapstructure:"AUTHSESSION_REFRESH_MAX_ATTEMPTS"`
	LoginMaxRetries       int           `mapstructure:"AUTHSESSION_LOGIN_MAX_RETRIES"`
	LoginBaseDelay        time.Duration `mapstructure:"AUTHSESSION_LOGIN_BASE_DELAY"`
	LoginMaxTotalWait     time.Duration `mapstructure:"AUTHSESSION_LOGIN_MAX_TOTAL_WAIT"`
	VerifyRateLimitDelay  time.Duration `mapstructure:"AUTHSESSION_VERIFY_RATE_LIMIT_DELAY"`
	VerifySafetyTimeout   time.Duration `mapstructure:"AUTHSESSION_VERIFY_SAFETY_TIMEOUT"`
	InterceptorDelay      time.Duration `mapstructure:"AUTHSESSION_INTERCEPTOR_RATE_LIMIT_DELAY"`
	EventsEnabled         bool          `mapstructure:"AUTHSESSION_EVENTS_ENABLED"`
	MetricsEnabled        bool          `mapstructure:"AUTHSESSION_METRICS_ENABLED"`
}

// ConfigFromEnv builds a Config from the environment and an optional .env
// file via Viper. Missing .env is ignored (e.g. in CI); env vars override
// .env; unset keys fall back to the library defaults. The result still
// goes through the same validation as a hand-built Config at Build time.
func ConfigFromEnv() (Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()

	def := defaultConfig()
	v.SetDefault("AUTHSESSION_BASE_URL", "")
	v.SetDefault("AUTHSESSION_REDIS_PREFIX", def.Vault.RedisPrefix)
	v.SetDefault("AUTHSESSION_MONITOR_ENABLED", def.Monitor.Enabled)
	v.SetDefault("AUTHSESSION_MONITOR_INTERVAL", def.Monitor.Interval)
	v.SetDefault("AUTHSESSION_MONITOR_RENEW_THRESHOLD", def.Monitor.RenewThreshold)
	v.SetDefault("AUTHSESSION_REFRESH_BASE_DELAY", def.Refresh.BaseDelay)
	v.SetDefault("AUTHSESSION_REFRESH_MAX_DELAY", def.Refresh.MaxDelay)
	v.SetDefault("AUTHSESSION_REFRESH_MAX_ATTEMPTS", def.Refresh.MaxAttempts)
	v.SetDefault("AUTHSESSION_LOGIN_MAX_RETRIES", def.Login.MaxRetries)
	v.SetDefault("AUTHSESSION_LOGIN_BASE_DELAY", def.Login.BaseDelay)
	v.SetDefault("AUTHSESSION_LOGIN_MAX_TOTAL_WAIT", def.Login.MaxTotalWait)
	v.SetDefault("AUTHSESSION_VERIFY_RATE_LIMIT_DELAY", def.Verify.RateLimitDelay)
	v.SetDefault("AUTHSESSION_VERIFY_SAFETY_TIMEOUT", def.Verify.SafetyTimeout)
	v.SetDefault("AUTHSESSION_INTERCEPTOR_RATE_LIMIT_DELAY", def.Interceptor.RateLimitDelay)
	v.SetDefault("AUTHSESSION_EVENTS_ENABLED", def.Events.Enabled)
	v.SetDefault("AUTHSESSION_METRICS_ENABLED", def.Metrics.Enabled)

	var env envConfig
	if err := v.Unmarshal(&env); err != nil {
		return Config{}, err
	}

	cfg := def
	cfg.BaseURL = env.BaseURL
	cfg.Vault.RedisPrefix = env.RedisPrefix
	cfg.Monitor.Enabled = env.MonitorEnabled
	cfg.Monitor.Interval = env.MonitorInterval
	cfg.Monitor.RenewThreshold = env.MonitorRenewThreshold
	cfg.Refresh.BaseDelay = env.RefreshBaseDelay
	cfg.Refresh.MaxDelay = env.RefreshMaxDelay
	cfg.Refresh.MaxAttempts = env.RefreshMaxAttempts
	cfg.Login.MaxRetries = env.LoginMaxRetries
	cfg.Login.BaseDelay = env.LoginBaseDelay
	cfg.Login.MaxTotalWait = env.LoginMaxTotalWait
	cfg.Verify.RateLimitDelay = env.VerifyRateLimitDelay
	cfg.Verify.SafetyTimeout = env.VerifySafetyTimeout
	cfg.Interceptor.RateLimitDelay = env.InterceptorDelay
	cfg.Events.Enabled = env.EventsEnabled
	cfg.Metrics.Enabled = env.MetricsEnabled

	return cfg, nil
}
