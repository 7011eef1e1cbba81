// Package config loads server settings from defaults, an optional config
// file and HANDRECEIPT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name, e.g.
// HANDRECEIPT_LEDGER_TIMEOUT.
const EnvPrefix = "HANDRECEIPT"

// Config holds the server settings.
type Config struct {
	DB      string `mapstructure:"db"`
	Addr    string `mapstructure:"addr"`
	LogFile string `mapstructure:"log_file"`

	TokenTTL time.Duration `mapstructure:"token_ttl"`

	Redis  RedisConfig  `mapstructure:"redis"`
	Ledger LedgerConfig `mapstructure:"ledger"`
}

// RedisConfig configures the idempotency store. An empty URL disables it.
type RedisConfig struct {
	URL            string        `mapstructure:"url"`
	IdempotencyTTL time.Duration `mapstructure:"idempotency_ttl"`
}

// LedgerConfig configures ledger writes for sensitive items.
type LedgerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Timeout          time.Duration `mapstructure:"timeout"`
	BreakerFailures  uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown  time.Duration `mapstructure:"breaker_cooldown"`
	BreakerHalfOpens uint32        `mapstructure:"breaker_half_open_requests"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("db", "handreceipt.db")
	v.SetDefault("addr", ":8080")
	v.SetDefault("log_file", "")
	v.SetDefault("token_ttl", 7*24*time.Hour)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.idempotency_ttl", 24*time.Hour)
	v.SetDefault("ledger.enabled", true)
	v.SetDefault("ledger.timeout", 10*time.Second)
	v.SetDefault("ledger.breaker_failures", 5)
	v.SetDefault("ledger.breaker_cooldown", 30*time.Second)
	v.SetDefault("ledger.breaker_half_open_requests", 1)
}

// Load reads the configuration. path names an optional config file in any
// format viper understands; when set, it must exist.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail at first use.
func (c Config) Validate() error {
	var errs []error
	if c.DB == "" {
		errs = append(errs, errors.New("db path is required"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if c.Ledger.Timeout <= 0 {
		errs = append(errs, errors.New("ledger.timeout must be positive"))
	}
	if c.Ledger.BreakerFailures == 0 {
		errs = append(errs, errors.New("ledger.breaker_failures must be at least 1"))
	}
	return errors.Join(errs...)
}
