// Package config loads DAL configuration from the environment and an
// optional .env file, with sane defaults for local development.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all tunables of the data abstraction layer.
type Config struct {
	DB      DBConfig      `mapstructure:"db"`
	Query   QueryConfig   `mapstructure:"query"`
	Adapter AdapterConfig `mapstructure:"adapter"`
	Log     LogConfig     `mapstructure:"log"`
}

// DBConfig configures the internal-store Postgres pool.
type DBConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	MaxConns int    `mapstructure:"maxconns"`
	SSLMode  string `mapstructure:"sslmode"`
}

// QueryConfig configures execution defaults.
type QueryConfig struct {
	// DefaultLimit is applied when a plan carries no pagination limit.
	DefaultLimit int `mapstructure:"defaultlimit"`
	// StrictFilterFields makes unknown filter/sort fields an error instead
	// of being skipped. Lenient by default so views keep working after a
	// column is removed.
	StrictFilterFields bool `mapstructure:"strictfilterfields"`
}

// AdapterConfig configures external adapter behavior.
type AdapterConfig struct {
	// MaxRetries bounds connection attempts for adapters that retry.
	MaxRetries int `mapstructure:"maxretries"`
	// SampleSize is the number of documents inspected per collection
	// during document-store schema discovery.
	SampleSize int `mapstructure:"samplesize"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the built-in defaults.
func Default() *Config {
	return &Config{
		DB: DBConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Name:     "livetables",
			MaxConns: 10,
			SSLMode:  "disable",
		},
		Query: QueryConfig{
			DefaultLimit: 10,
		},
		Adapter: AdapterConfig{
			MaxRetries: 5,
			SampleSize: 100,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "json",
		},
	}
}

// Load reads configuration from an optional .env file and environment
// variables with the given prefix (e.g. "LIVETABLES_"). Env keys map to
// struct paths by lowercasing and replacing "_" with "."
// (LIVETABLES_DB_HOST -> db.host).
func Load(prefix string) (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// .env is optional; a parse error surfaces during Unmarshal
			// if a critical key is affected.
		}
	}

	prefixUpper := strings.ToUpper(prefix)
	for _, envStr := range os.Environ() {
		pair := strings.SplitN(envStr, "=", 2)
		key, value := pair[0], pair[1]

		if strings.HasPrefix(key, prefixUpper) {
			propKey := strings.TrimPrefix(key, prefixUpper)
			propKey = strings.ToLower(strings.ReplaceAll(propKey, "_", "."))
			propKey = strings.TrimPrefix(propKey, ".")
			v.Set(propKey, value)
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// DSN renders the Postgres connection string for the internal store.
func (c DBConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode)
}
