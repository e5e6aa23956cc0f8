// internal/config/config.go
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel        string        `mapstructure:"LOG_LEVEL"`
	DBURL           string        `mapstructure:"DB_URL"`
	HTTPAddr        string        `mapstructure:"HTTP_ADDR"`
	SyncPageSize    int           `mapstructure:"SYNC_PAGE_SIZE"`
	UpstreamTimeout time.Duration `mapstructure:"UPSTREAM_TIMEOUT"`
	AIBackendURL    string        `mapstructure:"AI_BACKEND_URL"`
	AIBackendKey    string        `mapstructure:"AI_BACKEND_KEY"`
	AIModel         string        `mapstructure:"AI_MODEL"`
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	// Set default values
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("HTTP_ADDR", ":8080")
	viper.SetDefault("SYNC_PAGE_SIZE", 100)
	viper.SetDefault("UPSTREAM_TIMEOUT", "30s")
	viper.SetDefault("AI_BACKEND_URL", "https://api.openai.com/v1")
	viper.SetDefault("AI_MODEL", "gpt-4o-mini")

	// Load from .env file if it exists
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Validate required fields
	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.SyncPageSize <= 0 || cfg.SyncPageSize > 100 {
		return nil, errors.New("SYNC_PAGE_SIZE must be between 1 and 100")
	}
	if cfg.UpstreamTimeout <= 0 {
		return nil, errors.New("UPSTREAM_TIMEOUT must be a positive duration")
	}

	return &cfg, nil
}
