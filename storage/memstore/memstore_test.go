package memstore_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/storage/memstore"
	"github.com/jacentio/lattice/value"
)

func idKey(id uuid.UUID) []storage.Key {
	return []storage.Key{{Column: "id", Value: value.UUID(id)}}
}

func TestApply_InsertSelect(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	id := uuid.New()

	err := s.Apply(ctx, storage.Batch{
		storage.InsertRow{TableName: "users", Key: idKey(id), Columns: map[string]value.Value{
			"name":  value.Text("alice"),
			"email": nil,
		}},
	}, storage.One)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := s.Select(ctx, storage.Query{TableName: "users", Where: idKey(id)}, storage.One)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	if rows[0]["name"] != value.Text("alice") || rows[0]["id"] != value.UUID(id) {
		t.Errorf("unexpected row %v", rows[0])
	}
	if _, ok := rows[0]["email"]; ok {
		t.Error("expected null column to be absent")
	}
}

func TestApply_UpdateUpserts(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()

	key := []storage.Key{{Column: "email", Value: value.Text("a@x")}}
	err := s.Apply(ctx, storage.Batch{
		storage.UpdateRow{TableName: "users_email_idx", Key: key, Mutations: []storage.Mutation{
			storage.SetColumn{Column: "users_id", Value: value.UUID(uuid.New())},
		}},
	}, storage.One)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Len("users_email_idx") != 1 {
		t.Errorf("expected update of a missing row to create it")
	}
}

func TestApply_IsAtomic(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	id := uuid.New()

	err := s.Apply(ctx, storage.Batch{
		storage.InsertRow{TableName: "users", Key: idKey(id), Columns: map[string]value.Value{"name": value.Text("a")}},
		storage.UpdateRow{TableName: "users", Key: idKey(id), Mutations: []storage.Mutation{
			storage.AddElements{Column: "name", Elements: []value.Value{value.Text("x")}},
		}},
	}, storage.One)
	if err == nil {
		t.Fatal("expected error adding elements to a text column")
	}
	if s.Len("users") != 0 {
		t.Error("expected failed batch to leave no rows")
	}
}

func TestApply_MissingKey(t *testing.T) {
	err := memstore.New().Apply(context.Background(), storage.Batch{
		storage.DeleteRow{TableName: "users", Key: []storage.Key{{Column: "id"}}},
	}, storage.One)
	if !errors.Is(err, memstore.ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
}

func TestApply_DeletePartition(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	owner, other := uuid.New(), uuid.New()

	edge := func(a, b uuid.UUID) storage.Operation {
		return storage.InsertRow{TableName: "a_b", Key: []storage.Key{
			{Column: "a_id", Value: value.UUID(a)},
			{Column: "b_id", Value: value.UUID(b)},
		}}
	}
	if err := s.Apply(ctx, storage.Batch{edge(owner, uuid.New()), edge(owner, uuid.New()), edge(other, uuid.New())}, storage.One); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := s.Apply(ctx, storage.Batch{
		storage.DeletePartition{TableName: "a_b", Partition: storage.Key{Column: "a_id", Value: value.UUID(owner)}, SortColumn: "b_id"},
	}, storage.One)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := s.Rows("a_b")
	if len(rows) != 1 || rows[0]["a_id"] != value.UUID(other) {
		t.Errorf("expected only the other partition to remain, got %v", rows)
	}
}

func TestSelect_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memstore.New()
	id := uuid.New()

	tags := value.NewSet(value.KindText, value.Text("a"))
	if err := s.Apply(ctx, storage.Batch{
		storage.InsertRow{TableName: "users", Key: idKey(id), Columns: map[string]value.Value{"tags": tags}},
	}, storage.One); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows := s.Rows("users")
	rows[0]["tags"].(value.Set).Items[0] = value.Text("mutated")

	again := s.Rows("users")
	if !value.Equal(again[0]["tags"], tags) {
		t.Errorf("expected stored row to be unaffected, got %v", again[0]["tags"])
	}
}

func TestApply_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := memstore.New().Apply(ctx, nil, storage.One); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
