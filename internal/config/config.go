package config

import (
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config represents the application configuration structure
type Config struct {
	// Environment defines the environment ('production' or 'staging') the application runs in
	Environment string `split_words:"true" default:"production"`

	// PortalAPIListenAddress defines the address the portal API listens on
	PortalAPIListenAddress string `split_words:"true" default:":8080"`

	// PortalAPIAllowedOrigin defines the origin the portal API allows cross-origin requests from
	PortalAPIAllowedOrigin string `split_words:"true" default:"*"`

	// VerifierBaseURL defines the base URL of the upstream verification service.
	// Both the credential exchange and the verification calls run against this URL.
	VerifierBaseURL string `split_words:"true" required:"true"`

	// SessionTimeout defines the duration of inactivity after which a session is considered expired
	SessionTimeout time.Duration `split_words:"true" default:"15m"`

	// SessionTimeoutCheckInterval defines the interval in which the expiry of the current session is re-checked
	SessionTimeoutCheckInterval time.Duration `split_words:"true" default:"30s"`

	// StoreDriver defines the key-value store driver to use ('memory', 'redis' or 'postgres')
	StoreDriver string `split_words:"true" default:"memory"`

	// RedisURL defines the URL of the Redis instance backing the 'redis' store driver
	RedisURL string `split_words:"true" default:"redis://localhost:6379/0"`

	// PostgresDSN defines the DSN of the PostgreSQL database backing the 'postgres' store driver
	PostgresDSN string `split_words:"true" default:"postgres://postgres@localhost:5432/verisuite"`

	// ExportDirectory defines the directory exported verification documents are written into
	ExportDirectory string `split_words:"true" default:"exports"`
}

// IsEnvProduction returns whether the application runs in a production environment
func (config *Config) IsEnvProduction() bool {
	return config.Environment != "staging"
}

// LoadFromEnv loads a new configuration structure using environment variables and an optional .env file
func LoadFromEnv() (*Config, error) {
	// Load a .env file if it exists
	_ = godotenv.Overload()

	// Load a new configuration structure using environment variables
	config := new(Config)
	if err := envconfig.Process("vs", config); err != nil {
		return nil, err
	}
	return config, nil
}
