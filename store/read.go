package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacentio/lattice/schema"
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/value"
)

// Read loads the entity with the given identifier and its related entities.
// found is false, with a nil error, when no primary row exists. Only the
// returned root entity is tracked.
func Read[T any](ctx context.Context, s *Store, id uuid.UUID, opts ...Option) (*Handle[T], bool, error) {
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	d, err := descriptor[T](s)
	if err != nil {
		return nil, false, err
	}
	return readRoot[T](ctx, s, d, id, s.options(opts).consistency)
}

// ReadByIndex loads the entity whose indexed column holds v. v may be a
// value.Value or a value of the column's Go field type. Reading by a column
// that is not indexed fails with ErrInvalidIndexLookup.
func ReadByIndex[T any](ctx context.Context, s *Store, column string, v any, opts ...Option) (*Handle[T], bool, error) {
	if err := s.checkOpen(); err != nil {
		return nil, false, err
	}
	d, err := descriptor[T](s)
	if err != nil {
		return nil, false, err
	}
	c, ok := d.Column(column)
	if !ok || !c.Indexed {
		return nil, false, fmt.Errorf("%w: %s.%s", ErrInvalidIndexLookup, d.Entity(), column)
	}
	key, err := c.Convert(v)
	if err != nil {
		return nil, false, fmt.Errorf("lattice: read %s by %s: %w", d.Entity(), column, err)
	}

	level := s.options(opts).consistency
	rows, err := s.selectRows(ctx, "read", storage.Query{
		TableName: d.IndexTable(column),
		Where:     indexKey(c, key),
		Columns: []storage.Column{
			{Name: c.Name, Type: c.Type},
			{Name: d.OwnerColumn(), Type: value.Scalar(value.KindUUID)},
		},
	}, level)
	if err != nil {
		return nil, false, err
	}
	switch len(rows) {
	case 0:
		return nil, false, nil
	case 1:
	default:
		return nil, false, fmt.Errorf("%w: %d index rows in %s for %s", ErrAmbiguousResult, len(rows), d.IndexTable(column), value.Encode(key))
	}

	owner, ok := rows[0][d.OwnerColumn()].(value.UUID)
	if !ok {
		return nil, false, fmt.Errorf("lattice: index row in %s has no %s", d.IndexTable(column), d.OwnerColumn())
	}
	return readRoot[T](ctx, s, d, uuid.UUID(owner), level)
}

func readRoot[T any](ctx context.Context, s *Store, d *schema.Descriptor, id uuid.UUID, level storage.Consistency) (*Handle[T], bool, error) {
	r := &reader{store: s, level: level, visited: make(map[visitKey]any)}
	instance, found, err := r.read(ctx, d, id)
	if err != nil || !found {
		return nil, false, err
	}

	snap, err := capture(d, id, instance)
	if err != nil {
		return nil, false, err
	}
	return track(s, instance.(*T), snap), true, nil
}

type visitKey struct {
	table string
	id    uuid.UUID
}

// reader materializes one entity graph. Each (table, id) is read at most once
// per graph, so cyclic relations resolve to shared instances.
type reader struct {
	store   *Store
	level   storage.Consistency
	visited map[visitKey]any
}

func (r *reader) read(ctx context.Context, d *schema.Descriptor, id uuid.UUID) (any, bool, error) {
	key := visitKey{table: d.Table(), id: id}
	if instance, ok := r.visited[key]; ok {
		return instance, true, nil
	}

	primary := d.Tables()[0]
	rows, err := r.store.selectRows(ctx, "read", storage.Query{
		TableName: d.Table(),
		Where:     primaryKey(d, id),
		Columns:   primary.AllColumns(),
	}, r.level)
	if err != nil {
		return nil, false, err
	}
	switch len(rows) {
	case 0:
		return nil, false, nil
	case 1:
	default:
		return nil, false, fmt.Errorf("%w: %d rows in %s for id %s", ErrAmbiguousResult, len(rows), d.Table(), id)
	}

	instance := d.New()
	d.ID().Set(instance, id)
	for _, c := range d.Columns() {
		if err := c.Set(instance, rows[0][c.Name]); err != nil {
			return nil, false, fmt.Errorf("lattice: read %s %s: %w", d.Entity(), id, err)
		}
	}
	r.visited[key] = instance

	for _, rel := range d.Relations() {
		related, err := r.readRelation(ctx, d, rel, id)
		if err != nil {
			return nil, false, err
		}
		rel.Set(instance, related)
	}
	return instance, true, nil
}

func (r *reader) readRelation(ctx context.Context, d *schema.Descriptor, rel schema.RelationSpec, owner uuid.UUID) ([]any, error) {
	rows, err := r.store.selectRows(ctx, "read", joinQuery(rel, owner), r.level)
	if err != nil {
		return nil, err
	}

	related := make([]any, 0, len(rows))
	for _, row := range rows {
		rid, ok := row[rel.RelatedColumn()].(value.UUID)
		if !ok {
			continue
		}
		instance, found, err := r.read(ctx, rel.Related(), uuid.UUID(rid))
		if err != nil {
			return nil, err
		}
		if !found {
			r.dangling(DanglingRelation{
				Owner:     d.Entity(),
				OwnerID:   owner,
				Field:     rel.Field,
				Related:   rel.Related().Entity(),
				RelatedID: uuid.UUID(rid),
			})
			continue
		}
		related = append(related, instance)
	}
	return related, nil
}

func (r *reader) dangling(rel DanglingRelation) {
	r.store.logger.Debug("skipping dangling relation",
		zap.String("owner", rel.Owner),
		zap.Stringer("owner_id", rel.OwnerID),
		zap.String("field", rel.Field),
		zap.String("related", rel.Related),
		zap.Stringer("related_id", rel.RelatedID),
	)
	if hook := r.store.config.OnDanglingRelation; hook != nil {
		hook(rel)
	}
}
