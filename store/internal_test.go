package store

import (
	"sync"
	"testing"

	"github.com/google/uuid"

	"github.com/jacentio/lattice/schema"
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/value"
)

type user struct {
	ID    uuid.UUID
	Email string
	Name  string
}

func userDescriptor(t *testing.T) *schema.Descriptor {
	t.Helper()
	r := schema.NewRegistry()
	schema.Register(r, "users", func(b *schema.Builder[user]) {
		b.ID("", func(u *user) *uuid.UUID { return &u.ID })
		schema.Column(b, "email", schema.Text, func(u *user) *string { return &u.Email }, schema.Indexed())
		schema.Column(b, "name", schema.Text, func(u *user) *string { return &u.Name })
	})
	d, err := schema.Lookup[user](r)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}
	return d
}

// --- relationDelta Tests ---

func TestRelationDelta(t *testing.T) {
	a, b, c := uuid.New(), uuid.New(), uuid.New()

	tests := []struct {
		name       string
		past       []uuid.UUID
		current    []uuid.UUID
		wantInsert []uuid.UUID
		wantRemove []uuid.UUID
	}{
		{"unchanged", []uuid.UUID{a, b}, []uuid.UUID{b, a}, nil, nil},
		{"swap", []uuid.UUID{a, b}, []uuid.UUID{b, c}, []uuid.UUID{c}, []uuid.UUID{a}},
		{"from empty", nil, []uuid.UUID{a}, []uuid.UUID{a}, nil},
		{"to empty", []uuid.UUID{a, b}, nil, nil, []uuid.UUID{a, b}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ins, rem := relationDelta(tt.past, tt.current)
			if !sameIDs(ins, tt.wantInsert) {
				t.Errorf("insert: expected %v, got %v", tt.wantInsert, ins)
			}
			if !sameIDs(rem, tt.wantRemove) {
				t.Errorf("remove: expected %v, got %v", tt.wantRemove, rem)
			}
		})
	}
}

func sameIDs(a, b []uuid.UUID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// --- tracker Tests ---

func TestTracker(t *testing.T) {
	tr := newTracker()
	token := uuid.New()

	if _, ok := tr.baseline(token); ok {
		t.Fatal("expected no baseline before track")
	}

	tr.track(token, snapshot{id: uuid.New()})
	first, ok := tr.baseline(token)
	if !ok {
		t.Fatal("expected baseline after track")
	}

	replacement := snapshot{id: uuid.New()}
	tr.track(token, replacement)
	second, _ := tr.baseline(token)
	if second.id != replacement.id || second.id == first.id {
		t.Error("expected track to replace the snapshot")
	}

	tr.forget(token)
	if _, ok := tr.baseline(token); ok {
		t.Error("expected no baseline after forget")
	}
}

func TestTracker_Concurrent(t *testing.T) {
	tr := newTracker()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			token := uuid.New()
			tr.track(token, snapshot{id: token})
			if snap, ok := tr.baseline(token); !ok || snap.id != token {
				t.Errorf("expected own snapshot for %s", token)
			}
			tr.forget(token)
		}()
	}
	wg.Wait()

	if tr.len() != 0 {
		t.Errorf("expected empty tracker, got %d entries", tr.len())
	}
}

// --- batch builder Tests ---

func TestUpdateBatch_IndexRepoint(t *testing.T) {
	d := userDescriptor(t)
	id := uuid.New()
	u := &user{ID: id, Email: "old@x", Name: "n"}
	base, err := capture(d, id, u)
	if err != nil {
		t.Fatalf("capture: %v", err)
	}

	u.Email = "new@x"
	batch, next, err := updateBatch(d, base, u)
	if err != nil {
		t.Fatalf("updateBatch: %v", err)
	}
	if len(batch) != 3 {
		t.Fatalf("expected primary update, index delete and index upsert, got %d ops", len(batch))
	}

	if del, ok := batch[1].(storage.DeleteRow); !ok || del.TableName != "users_email_idx" ||
		storage.KeyValues(del.Key)["email"] != value.Text("old@x") {
		t.Errorf("expected delete of old index row, got %#v", batch[1])
	}
	up, ok := batch[2].(storage.UpdateRow)
	if !ok || storage.KeyValues(up.Key)["email"] != value.Text("new@x") {
		t.Fatalf("expected upsert of new index row, got %#v", batch[2])
	}
	if set := up.Mutations[0].(storage.SetColumn); set.Column != "users_id" || set.Value != value.UUID(id) {
		t.Errorf("expected owner column users_id=%s, got %#v", id, set)
	}
	if next.columns["email"] != value.Text("new@x") {
		t.Errorf("expected next snapshot to carry the new value, got %v", next.columns["email"])
	}
}

func TestDeleteBatch_UsesCurrentAndStoredIndexValues(t *testing.T) {
	d := userDescriptor(t)
	id := uuid.New()
	u := &user{ID: id, Email: "stored@x", Name: "n"}
	base, _ := capture(d, id, u)

	u.Email = "unsaved@x"
	batch := deleteBatch(d, base, u)

	var keys []string
	for _, op := range batch {
		if del, ok := op.(storage.DeleteRow); ok && del.TableName == "users_email_idx" {
			keys = append(keys, value.Encode(storage.KeyValues(del.Key)["email"]))
		}
	}
	if len(keys) != 2 || keys[0] != "unsaved@x" || keys[1] != "stored@x" {
		t.Errorf("expected index deletes for current then stored value, got %v", keys)
	}
}

func TestCreateBatch_SkipsNullIndexValues(t *testing.T) {
	r := schema.NewRegistry()
	type profile struct {
		ID     uuid.UUID
		Handle *string
	}
	schema.Register(r, "profiles", func(b *schema.Builder[profile]) {
		b.ID("", func(p *profile) *uuid.UUID { return &p.ID })
		schema.OptionalColumn(b, "handle", schema.Text, func(p *profile) **string { return &p.Handle }, schema.Indexed())
	})
	d, err := schema.Lookup[profile](r)
	if err != nil {
		t.Fatalf("descriptor: %v", err)
	}

	batch, _, err := createBatch(d, uuid.New(), &profile{})
	if err != nil {
		t.Fatalf("createBatch: %v", err)
	}
	if len(batch) != 1 {
		t.Errorf("expected only the primary row for a null indexed value, got %d ops", len(batch))
	}
}
