// Package memstore is an in-process [storage.Executor] that keeps tables in
// memory. It backs tests and the "memory" storage backend.
package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jacentio/lattice/internal/keyspace"
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/value"
)

// ErrMissingKey is returned when an operation carries no key or a null key value.
var ErrMissingKey = errors.New("lattice: operation is missing a key value")

type table map[string]storage.Row

// Store holds rows per table, keyed by their encoded primary key.
type Store struct {
	mu     sync.RWMutex
	tables map[string]table
}

// New creates an empty Store.
func New() *Store {
	return &Store{tables: make(map[string]table)}
}

var _ storage.Executor = (*Store)(nil)

// Apply stages every operation against copies of the touched tables and
// commits them together, so a failing operation leaves no trace.
func (s *Store) Apply(ctx context.Context, batch storage.Batch, _ storage.Consistency) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]table)
	stage := func(name string) table {
		if t, ok := staged[name]; ok {
			return t
		}
		t := make(table, len(s.tables[name]))
		for k, row := range s.tables[name] {
			t[k] = row
		}
		staged[name] = t
		return t
	}

	for i, op := range batch {
		if err := applyOne(stage(op.Table()), op); err != nil {
			return fmt.Errorf("operation %d on %s: %w", i, op.Table(), err)
		}
	}

	for name, t := range staged {
		s.tables[name] = t
	}
	return nil
}

func applyOne(t table, op storage.Operation) error {
	switch o := op.(type) {
	case storage.InsertRow:
		key, err := rowKey(o.Key)
		if err != nil {
			return err
		}
		row := make(storage.Row, len(o.Columns)+len(o.Key))
		for c, v := range o.Columns {
			if v != nil {
				row[c] = value.Clone(v)
			}
		}
		for c, v := range storage.KeyValues(o.Key) {
			row[c] = v
		}
		t[key] = row
	case storage.UpdateRow:
		key, err := rowKey(o.Key)
		if err != nil {
			return err
		}
		row, err := storage.ApplyMutations(t[key], o.Mutations)
		if err != nil {
			return err
		}
		for c, v := range storage.KeyValues(o.Key) {
			row[c] = v
		}
		t[key] = row
	case storage.DeleteRow:
		key, err := rowKey(o.Key)
		if err != nil {
			return err
		}
		delete(t, key)
	case storage.DeletePartition:
		if o.Partition.Value == nil {
			return ErrMissingKey
		}
		for k, row := range t {
			if value.Equal(row[o.Partition.Column], o.Partition.Value) {
				delete(t, k)
			}
		}
	default:
		return fmt.Errorf("unsupported operation %T", op)
	}
	return nil
}

// Select returns copies of the rows matching every predicate, ordered by key.
func (s *Store) Select(ctx context.Context, q storage.Query, _ storage.Consistency) ([]storage.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	t := s.tables[q.TableName]
	keys := make([]string, 0, len(t))
	for k, row := range t {
		if matches(row, q.Where) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	rows := make([]storage.Row, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, cloneRow(t[k]))
	}
	return rows, nil
}

// Rows returns copies of every row of a table, ordered by key.
func (s *Store) Rows(tableName string) []storage.Row {
	rows, _ := s.Select(context.Background(), storage.Query{TableName: tableName}, storage.One)
	return rows
}

// Len returns the number of rows in a table.
func (s *Store) Len(tableName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tables[tableName])
}

func rowKey(keys []storage.Key) (string, error) {
	if len(keys) == 0 {
		return "", ErrMissingKey
	}
	parts := make([]string, len(keys))
	for i, k := range keys {
		if k.Value == nil {
			return "", fmt.Errorf("%w: %s", ErrMissingKey, k.Column)
		}
		parts[i] = value.Encode(k.Value)
	}
	return keyspace.RowKey(parts...), nil
}

func matches(row storage.Row, where []storage.Key) bool {
	for _, w := range where {
		if !value.Equal(row[w.Column], w.Value) {
			return false
		}
	}
	return true
}

func cloneRow(row storage.Row) storage.Row {
	out := make(storage.Row, len(row))
	for c, v := range row {
		out[c] = value.Clone(v)
	}
	return out
}
