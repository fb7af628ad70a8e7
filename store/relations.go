package store

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/jacentio/lattice/schema"
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/value"
)

// relatedIDs returns the distinct identifiers of the entities referenced by
// rel on instance, in field order.
func relatedIDs(rel schema.RelationSpec, instance any) ([]uuid.UUID, error) {
	related := rel.Related()
	items := rel.Get(instance)

	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]bool, len(items))
	for _, item := range items {
		id := related.ID().Get(item)
		if id == uuid.Nil {
			return nil, fmt.Errorf("%w: %s.%s references an unsaved %s",
				ErrUnpersistedRelation, rel.Field, related.Entity(), related.Entity())
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// relationDelta computes toInsert = current - past and toRemove = past - current.
func relationDelta(past, current []uuid.UUID) (toInsert, toRemove []uuid.UUID) {
	inPast := make(map[uuid.UUID]bool, len(past))
	for _, id := range past {
		inPast[id] = true
	}
	inCurrent := make(map[uuid.UUID]bool, len(current))
	for _, id := range current {
		inCurrent[id] = true
		if !inPast[id] {
			toInsert = append(toInsert, id)
		}
	}
	for _, id := range past {
		if !inCurrent[id] {
			toRemove = append(toRemove, id)
		}
	}
	return toInsert, toRemove
}

func joinKey(rel schema.RelationSpec, owner, related uuid.UUID) []storage.Key {
	return []storage.Key{
		{Column: rel.OwnerColumn(), Value: value.UUID(owner)},
		{Column: rel.RelatedColumn(), Value: value.UUID(related)},
	}
}

func joinInsert(rel schema.RelationSpec, owner, related uuid.UUID) storage.Operation {
	return storage.InsertRow{TableName: rel.JoinTable(), Key: joinKey(rel, owner, related)}
}

func joinDelete(rel schema.RelationSpec, owner, related uuid.UUID) storage.Operation {
	return storage.DeleteRow{TableName: rel.JoinTable(), Key: joinKey(rel, owner, related)}
}

// joinQuery selects every edge owned by owner.
func joinQuery(rel schema.RelationSpec, owner uuid.UUID) storage.Query {
	uuidType := value.Scalar(value.KindUUID)
	return storage.Query{
		TableName: rel.JoinTable(),
		Where:     []storage.Key{{Column: rel.OwnerColumn(), Value: value.UUID(owner)}},
		Columns: []storage.Column{
			{Name: rel.OwnerColumn(), Type: uuidType},
			{Name: rel.RelatedColumn(), Type: uuidType},
		},
	}
}
