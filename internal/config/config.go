// Package config loads application configuration and initializes logging.
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
	Snapshots SnapshotConfig `yaml:"snapshots" mapstructure:"snapshots"`
	Profiles  ProfilesConfig `yaml:"profiles" mapstructure:"profiles"`
	Engine    EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Batch     BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Server    ServerConfig   `yaml:"server" mapstructure:"server"`
	Log       LogConfig      `yaml:"log" mapstructure:"log"`
}

// SnapshotConfig configures the snapshot database.
type SnapshotConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// ProfilesConfig configures the calibration-profile store backend.
type ProfilesConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // memory, sqlite, postgres
	Path        string `yaml:"path" mapstructure:"path"`     // sqlite only
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// EngineConfig configures the demand engine.
type EngineConfig struct {
	PolicyPath   string `yaml:"policy_path" mapstructure:"policy_path"` // optional YAML override
	BlendHistory bool   `yaml:"blend_history" mapstructure:"blend_history"`
}

// BatchConfig configures concurrent multi-keyword runs.
type BatchConfig struct {
	MaxConcurrentKeywords int `yaml:"max_concurrent_keywords" mapstructure:"max_concurrent_keywords"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port          int     `yaml:"port" mapstructure:"port"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
	RateBurst     int     `yaml:"rate_burst" mapstructure:"rate_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("DEMAND")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("snapshots.path", "demand.db")
	v.SetDefault("profiles.driver", "sqlite")
	v.SetDefault("profiles.path", "profiles.db")
	v.SetDefault("engine.blend_history", false)
	v.SetDefault("batch.max_concurrent_keywords", 5)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.rate_per_second", 10)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

	return &cfg, nil
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
