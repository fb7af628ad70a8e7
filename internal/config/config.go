// Package config loads lattice command configuration from flags, the
// environment and an optional configuration file.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/jacentio/lattice/schema"
	"github.com/jacentio/lattice/storage"
)

const (
	envPrefix          = "LATTICE"
	defaultLogLevel    = "info"
	defaultBackend     = BackendDynamoDB
	defaultConsistency = "ONE"
	defaultSQLitePath  = "lattice.db"
)

// Storage backends.
const (
	BackendDynamoDB = "dynamodb"
	BackendSQLite   = "sqlite"
	BackendMemory   = "memory"
)

// AppConfig captures runtime configuration for lattice commands.
type AppConfig struct {
	LogLevel    string
	Backend     string
	Consistency storage.Consistency

	DynamoRegion   string
	DynamoEndpoint string

	SQLitePath string

	// Entities are the entity definitions of the configuration file.
	Entities []schema.EntityConfig
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("storage.backend", defaultBackend)
	v.SetDefault("storage.consistency", defaultConsistency)
	v.SetDefault("dynamodb.region", "")
	v.SetDefault("dynamodb.endpoint", "")
	v.SetDefault("sqlite.path", defaultSQLitePath)
}

// Load parses runtime configuration from viper.
func Load(v *viper.Viper) (AppConfig, error) {
	consistency, err := storage.ParseConsistency(v.GetString("storage.consistency"))
	if err != nil {
		return AppConfig{}, fmt.Errorf("storage.consistency: %w", err)
	}

	cfg := AppConfig{
		LogLevel:       v.GetString("log.level"),
		Backend:        strings.ToLower(strings.TrimSpace(v.GetString("storage.backend"))),
		Consistency:    consistency,
		DynamoRegion:   v.GetString("dynamodb.region"),
		DynamoEndpoint: v.GetString("dynamodb.endpoint"),
		SQLitePath:     v.GetString("sqlite.path"),
	}
	if err := v.UnmarshalKey("entities", &cfg.Entities); err != nil {
		return AppConfig{}, fmt.Errorf("entities: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	switch c.Backend {
	case BackendDynamoDB, BackendMemory:
	case BackendSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return fmt.Errorf("sqlite.path is required")
		}
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", c.Backend)
	}
	return nil
}

// Descriptors builds the descriptors of the configured entities.
func (c AppConfig) Descriptors() ([]*schema.Descriptor, error) {
	if len(c.Entities) == 0 {
		return nil, fmt.Errorf("no entities configured")
	}
	return schema.FromConfig(c.Entities)
}
