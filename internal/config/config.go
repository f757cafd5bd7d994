// Package config loads the application configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Store backend names accepted in FUEL_STORE.
const (
	StoreSheets   = "sheets"
	StorePostgres = "postgres"
)

// Config holds the application configuration loaded from environment
// variables.
type Config struct {
	// TelegramToken is the bot API token.
	// Environment variable: TELEGRAM_TOKEN
	TelegramToken string `koanf:"TELEGRAM_TOKEN"`

	// Store selects the persistence backend: "sheets" (default) or
	// "postgres". Environment variable: FUEL_STORE
	Store string `koanf:"FUEL_STORE"`

	// SpreadsheetID is the Google Sheets spreadsheet holding the fuel logs.
	// Environment variable: SPREADSHEET_ID
	SpreadsheetID string `koanf:"SPREADSHEET_ID"`

	// CredentialsFile is the path to the Google service-account key JSON.
	// Environment variable: GOOGLE_CREDENTIALS
	CredentialsFile string `koanf:"GOOGLE_CREDENTIALS"`

	// RefreshSeconds is the asset-registry refresh interval in seconds.
	// Environment variable: REFRESH_INTERVAL
	RefreshSeconds int `koanf:"REFRESH_INTERVAL"`

	// PostgreSQL configuration (used when Store is "postgres").
	Postgres PostgresConfig `koanf:",squash"`
}

// PostgresConfig holds PostgreSQL connection configuration.
type PostgresConfig struct {
	Host     string `koanf:"POSTGRES_HOST"`
	Port     int    `koanf:"POSTGRES_PORT"`
	Database string `koanf:"POSTGRES_DB"`
	User     string `koanf:"POSTGRES_USER"`
	Password string `koanf:"POSTGRES_PASSWORD"`
	SSLMode  string `koanf:"POSTGRES_SSLMODE"`
}

// Load reads the configuration from environment variables and validates it.
func Load() (Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", nil), nil); err != nil {
		return Config{}, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf", FlatPaths: true}); err != nil {
		return Config{}, fmt.Errorf("unmarshaling config: %w", err)
	}

	if cfg.Store == "" {
		cfg.Store = StoreSheets
	}

	if cfg.TelegramToken == "" {
		return Config{}, fmt.Errorf("TELEGRAM_TOKEN environment variable is required")
	}
	switch cfg.Store {
	case StoreSheets:
		if cfg.SpreadsheetID == "" {
			return Config{}, fmt.Errorf("SPREADSHEET_ID environment variable is required")
		}
		if cfg.CredentialsFile == "" {
			return Config{}, fmt.Errorf("GOOGLE_CREDENTIALS environment variable is required")
		}
	case StorePostgres:
		if cfg.Postgres.Host == "" {
			return Config{}, fmt.Errorf("POSTGRES_HOST environment variable is required")
		}
	default:
		return Config{}, fmt.Errorf("unknown FUEL_STORE %q", cfg.Store)
	}

	return cfg, nil
}

// RefreshInterval returns the registry refresh interval, zero when unset.
func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshSeconds) * time.Second
}
