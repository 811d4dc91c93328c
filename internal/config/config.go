// Package config loads process-level configuration from file and
// environment. Runtime scoring configuration (slabs, weights) lives in the
// database and is managed by internal/scoreconfig.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
	Scorer    ScorerConfig    `yaml:"scorer" mapstructure:"scorer"`
	CRM       CRMConfig       `yaml:"crm" mapstructure:"crm"`
	Vault     VaultConfig     `yaml:"vault" mapstructure:"vault"`
	Retry     RetryConfig     `yaml:"retry" mapstructure:"retry"`
	Scheduler SchedulerConfig `yaml:"scheduler" mapstructure:"scheduler"`
}

// StoreConfig configures the Postgres backend.
type StoreConfig struct {
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	Schema      string `yaml:"schema" mapstructure:"schema"`
}

// ServerConfig configures the leaderboard API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// AdminEmployees is the allow-list consulted by the admin routes.
	// Full RBAC is delegated upstream.
	AdminEmployees []string `yaml:"admin_employees" mapstructure:"admin_employees"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ScorerConfig holds deployment-time scorer switches. The penalty strategy
// stays a deployment knob rather than persisted config; it is surfaced
// read-only in the effective config returned by the admin API.
type ScorerConfig struct {
	PenaltyStrategy string `yaml:"penalty_strategy" mapstructure:"penalty_strategy"`
}

// CRMConfig configures the upstream CRM feed shim.
type CRMConfig struct {
	BaseURL     string  `yaml:"base_url" mapstructure:"base_url"`
	RatePerSec  float64 `yaml:"rate_per_sec" mapstructure:"rate_per_sec"`
	Burst       int     `yaml:"burst" mapstructure:"burst"`
	TimeoutSecs int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// VaultConfig points at the external secret service.
type VaultConfig struct {
	Addr      string `yaml:"addr" mapstructure:"addr"`
	TokenPath string `yaml:"token_path" mapstructure:"token_path"`
}

// RetryConfig configures transient-error retries for store and CRM calls.
type RetryConfig struct {
	MaxAttempts    int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackMS  int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffSecs int `yaml:"max_backoff_secs" mapstructure:"max_backoff_secs"`
}

// SchedulerConfig configures the scorer job locks.
type SchedulerConfig struct {
	LockTTLMinutes int `yaml:"lock_ttl_minutes" mapstructure:"lock_ttl_minutes"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PLI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.schema", "pli")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("scorer.penalty_strategy", "min")
	v.SetDefault("crm.rate_per_sec", 5.0)
	v.SetDefault("crm.burst", 10)
	v.SetDefault("crm.timeout_secs", 30)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_secs", 30)
	v.SetDefault("scheduler.lock_ttl_minutes", 90)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if cfg.Scorer.PenaltyStrategy != "min" && cfg.Scorer.PenaltyStrategy != "max" {
		return nil, eris.Errorf("config: scorer.penalty_strategy must be min or max (got %q)", cfg.Scorer.PenaltyStrategy)
	}

	return &cfg, nil
}

// Validate checks that the fields required by a command are present.
func (c *Config) Validate(command string) error {
	switch command {
	case "serve", "score", "aggregate", "reaggregate", "migrate":
		if c.Store.DatabaseURL == "" {
			return eris.Errorf("config: store.database_url is required for %s", command)
		}
	case "directory":
		if c.Store.DatabaseURL == "" {
			return eris.New("config: store.database_url is required for directory")
		}
		if c.CRM.BaseURL == "" {
			return eris.New("config: crm.base_url is required for directory")
		}
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
