package store

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacentio/lattice/schema"
	"github.com/jacentio/lattice/storage"
)

// Store maps entities onto a storage executor and tracks the instances it
// creates and reads.
type Store struct {
	exec    storage.Executor
	config  Config
	logger  *zap.Logger
	tracker *tracker
	closed  atomic.Bool
}

// New creates a new Store instance.
func New(exec storage.Executor, config Config) *Store {
	config.validate()
	return &Store{
		exec:    exec,
		config:  config,
		logger:  config.Logger,
		tracker: newTracker(),
	}
}

// Close moves the store to its terminal closed state. It is safe to call
// more than once.
func (s *Store) Close() error {
	if s.closed.CompareAndSwap(false, true) {
		s.logger.Debug("store closed", zap.Int("tracked", s.tracker.len()))
	}
	return nil
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool {
	return s.closed.Load()
}

func (s *Store) checkOpen() error {
	if s.closed.Load() {
		return ErrClosed
	}
	return nil
}

func descriptor[T any](s *Store) (*schema.Descriptor, error) {
	return schema.Lookup[T](s.config.Registry)
}

// apply submits a batch, wrapping executor failures.
func (s *Store) apply(ctx context.Context, op string, batch storage.Batch, level storage.Consistency) error {
	s.logger.Debug("submitting batch",
		zap.String("op", op),
		zap.Int("operations", len(batch)),
		zap.Strings("statements", describeBatch(batch)),
		zap.Stringer("consistency", level),
	)
	if err := s.exec.Apply(ctx, batch, level); err != nil {
		return &ExecutionError{Op: op, Err: err}
	}
	return nil
}

func (s *Store) selectRows(ctx context.Context, op string, q storage.Query, level storage.Consistency) ([]storage.Row, error) {
	rows, err := s.exec.Select(ctx, q, level)
	if err != nil {
		return nil, &ExecutionError{Op: op, Err: err}
	}
	return rows, nil
}

// Create persists a new entity under a freshly generated identifier and
// starts tracking it. The entity's identifier must be unset.
func Create[T any](ctx context.Context, s *Store, entity *T, opts ...Option) (*Handle[T], error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}
	d, err := descriptor[T](s)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, fmt.Errorf("lattice: create %s: nil entity", d.Entity())
	}
	if d.ID().Get(entity) != uuid.Nil {
		return nil, fmt.Errorf("%w: %s %s", ErrIdentifierAssigned, d.Entity(), d.ID().Get(entity))
	}

	id := uuid.New()
	batch, snap, err := createBatch(d, id, entity)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, "create", batch, s.options(opts).consistency); err != nil {
		return nil, err
	}

	d.ID().Set(entity, id)
	return track(s, entity, snap), nil
}

// track issues a new handle for entity with snap as its baseline.
func track[T any](s *Store, entity *T, snap snapshot) *Handle[T] {
	h := &Handle[T]{entity: entity, token: uuid.New(), id: snap.id}
	s.tracker.track(h.token, snap)
	return h
}

func baseline[T any](s *Store, h *Handle[T]) (snapshot, error) {
	if h == nil {
		return snapshot{}, ErrUntrackedInstance
	}
	snap, ok := s.tracker.baseline(h.token)
	if !ok {
		return snapshot{}, ErrUntrackedInstance
	}
	return snap, nil
}

// Update writes the changes made to the handle's entity since it was
// created, read or last updated. Nothing is submitted when nothing changed.
// Updates of the same row through different handles are not coordinated;
// the last batch to reach storage wins per column.
func Update[T any](ctx context.Context, s *Store, h *Handle[T], opts ...Option) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	d, err := descriptor[T](s)
	if err != nil {
		return err
	}
	base, err := baseline(s, h)
	if err != nil {
		return err
	}

	batch, next, err := updateBatch(d, base, h.entity)
	if err != nil {
		return err
	}
	if len(batch) > 0 {
		if err := s.apply(ctx, "update", batch, s.options(opts).consistency); err != nil {
			return err
		}
	}
	s.tracker.track(h.token, next)
	return nil
}

// Delete removes the entity's primary row, index rows and owned join rows,
// then stops tracking the handle. Related entities are not deleted.
func Delete[T any](ctx context.Context, s *Store, h *Handle[T], opts ...Option) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	d, err := descriptor[T](s)
	if err != nil {
		return err
	}
	base, err := baseline(s, h)
	if err != nil {
		return err
	}

	if err := s.apply(ctx, "delete", deleteBatch(d, base, h.entity), s.options(opts).consistency); err != nil {
		return err
	}
	s.tracker.forget(h.token)
	return nil
}
