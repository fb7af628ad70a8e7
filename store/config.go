package store

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacentio/lattice/schema"
	"github.com/jacentio/lattice/storage"
)

// DanglingRelation describes a join row whose related entity no longer exists.
type DanglingRelation struct {
	Owner     string
	OwnerID   uuid.UUID
	Field     string
	Related   string
	RelatedID uuid.UUID
}

// Config holds configuration for the Store.
type Config struct {
	// Consistency is used by calls that do not pass WithConsistency.
	// Default: storage.One
	Consistency storage.Consistency

	// Logger receives debug output for submitted batches and skipped
	// relations. Default: zap.NewNop()
	Logger *zap.Logger

	// Registry resolves entity descriptors.
	// Default: schema.Default
	Registry *schema.Registry

	// OnDanglingRelation, if set, is called for every join row skipped
	// during a read because its related entity was not found.
	OnDanglingRelation func(DanglingRelation)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Consistency: storage.One,
		Logger:      zap.NewNop(),
		Registry:    schema.Default,
	}
}

// validate fills unset fields with their defaults.
func (c *Config) validate() {
	if c.Consistency == 0 {
		c.Consistency = storage.One
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Registry == nil {
		c.Registry = schema.Default
	}
}

// Option adjusts a single store call.
type Option func(*callOptions)

type callOptions struct {
	consistency storage.Consistency
}

// WithConsistency overrides the configured consistency level for one call.
func WithConsistency(level storage.Consistency) Option {
	return func(o *callOptions) { o.consistency = level }
}

func (s *Store) options(opts []Option) callOptions {
	o := callOptions{consistency: s.config.Consistency}
	for _, opt := range opts {
		opt(&o)
	}
	if o.consistency == 0 {
		o.consistency = s.config.Consistency
	}
	return o
}
