package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jacentio/lattice/internal/diff"
	"github.com/jacentio/lattice/schema"
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/value"
)

func primaryKey(d *schema.Descriptor, id uuid.UUID) []storage.Key {
	return []storage.Key{{Column: d.ID().Column, Value: value.UUID(id)}}
}

func indexKey(c schema.ColumnSpec, v value.Value) []storage.Key {
	return []storage.Key{{Column: c.Name, Value: v}}
}

// createBatch emits the primary row, one index row per non-null indexed
// value and one join row per referenced entity. It returns the snapshot to
// track once the batch succeeds.
func createBatch(d *schema.Descriptor, id uuid.UUID, instance any) (storage.Batch, snapshot, error) {
	snap, err := capture(d, id, instance)
	if err != nil {
		return nil, snapshot{}, err
	}

	columns := make(map[string]value.Value, len(snap.columns))
	for name, v := range snap.columns {
		if v != nil {
			columns[name] = v
		}
	}
	batch := storage.Batch{
		storage.InsertRow{TableName: d.Table(), Key: primaryKey(d, id), Columns: columns},
	}

	for _, c := range d.IndexedColumns() {
		v := snap.columns[c.Name]
		if v == nil {
			continue
		}
		batch = append(batch, storage.InsertRow{
			TableName: d.IndexTable(c.Name),
			Key:       indexKey(c, v),
			Columns:   map[string]value.Value{d.OwnerColumn(): value.UUID(id)},
		})
	}

	for _, rel := range d.Relations() {
		for _, related := range snap.relations[rel.Field] {
			batch = append(batch, joinInsert(rel, id, related))
		}
	}
	return batch, snap, nil
}

// updateBatch emits the operations that bring storage from base to the
// current state of instance. Null standard columns are not written, so the
// returned snapshot keeps their baseline values.
func updateBatch(d *schema.Descriptor, base snapshot, instance any) (storage.Batch, snapshot, error) {
	current, err := capture(d, base.id, instance)
	if err != nil {
		return nil, snapshot{}, err
	}

	var (
		batch storage.Batch
		sets  []storage.Mutation
		index storage.Batch
	)
	for _, c := range d.StandardColumns() {
		past, now := base.columns[c.Name], current.columns[c.Name]
		if now == nil {
			current.columns[c.Name] = past
			continue
		}
		if value.Equal(past, now) {
			continue
		}
		sets = append(sets, storage.SetColumn{Column: c.Name, Value: now})
		if c.Indexed {
			if past != nil {
				index = append(index, storage.DeleteRow{TableName: d.IndexTable(c.Name), Key: indexKey(c, past)})
			}
			index = append(index, storage.UpdateRow{
				TableName: d.IndexTable(c.Name),
				Key:       indexKey(c, now),
				Mutations: []storage.Mutation{storage.SetColumn{Column: d.OwnerColumn(), Value: value.UUID(base.id)}},
			})
		}
	}
	if len(sets) > 0 {
		batch = append(batch, storage.UpdateRow{TableName: d.Table(), Key: primaryKey(d, base.id), Mutations: sets})
	}
	batch = append(batch, index...)

	for _, c := range d.CollectionColumns() {
		muts := diff.Collection(c.Name, c.Strategy == schema.StrategyElement, base.columns[c.Name], current.columns[c.Name])
		if len(muts) > 0 {
			batch = append(batch, storage.UpdateRow{TableName: d.Table(), Key: primaryKey(d, base.id), Mutations: muts})
		}
	}

	for _, rel := range d.Relations() {
		toInsert, toRemove := relationDelta(base.relations[rel.Field], current.relations[rel.Field])
		for _, related := range toInsert {
			batch = append(batch, joinInsert(rel, base.id, related))
		}
		for _, related := range toRemove {
			batch = append(batch, joinDelete(rel, base.id, related))
		}
	}
	return batch, current, nil
}

// deleteBatch removes the primary row, the index rows keyed by the current
// and the last-synchronized values, and every join row owned by the entity.
func deleteBatch(d *schema.Descriptor, base snapshot, instance any) storage.Batch {
	batch := storage.Batch{storage.DeleteRow{TableName: d.Table(), Key: primaryKey(d, base.id)}}

	for _, c := range d.IndexedColumns() {
		now, past := c.Get(instance), base.columns[c.Name]
		if now != nil {
			batch = append(batch, storage.DeleteRow{TableName: d.IndexTable(c.Name), Key: indexKey(c, now)})
		}
		if past != nil && !value.Equal(past, now) {
			batch = append(batch, storage.DeleteRow{TableName: d.IndexTable(c.Name), Key: indexKey(c, past)})
		}
	}

	for _, rel := range d.Relations() {
		batch = append(batch, storage.DeletePartition{
			TableName:  rel.JoinTable(),
			Partition:  storage.Key{Column: rel.OwnerColumn(), Value: value.UUID(base.id)},
			SortColumn: rel.RelatedColumn(),
		})
	}
	return batch
}

// describeBatch summarises a batch for debug logging.
func describeBatch(batch storage.Batch) []string {
	out := make([]string, len(batch))
	for i, op := range batch {
		out[i] = fmt.Sprintf("%T:%s", op, op.Table())
	}
	return out
}
