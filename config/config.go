// Package config resolves environment-based defaults. A .env file in the
// working directory is honored when present, actual environment variables
// win over it.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the environment-backed settings.
type Config struct {
	// Issuer is the default authorization server URL for clients that are
	// not given one explicitly.
	Issuer string `env:"AUTHBRIDGE_ISSUER"`

	// ClientID is the default OAuth client identifier.
	ClientID string `env:"AUTHBRIDGE_CLIENT_ID"`

	// StorePath, when set, selects the file-backed credential store.
	StorePath string `env:"AUTHBRIDGE_STORE_PATH"`
}

// FromEnv loads configuration from the environment.
func FromEnv() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: parse environment: %w", err)
	}
	return cfg, nil
}
