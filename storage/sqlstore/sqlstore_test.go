package sqlstore_test

import (
	"context"
	"net/netip"
	"path/filepath"
	"strings"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jacentio/lattice/schema"
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/storage/sqlstore"
	"github.com/jacentio/lattice/store"
	"github.com/jacentio/lattice/value"
)

func mustOpen(t *testing.T) *sqlstore.Store {
	t.Helper()
	s, err := sqlstore.Open(filepath.Join(t.TempDir(), "lattice.db"), nil)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func mustApply(t *testing.T, s *sqlstore.Store, batch storage.Batch) {
	t.Helper()
	if err := s.Apply(context.Background(), batch, storage.One); err != nil {
		t.Fatalf("Apply: unexpected error: %v", err)
	}
}

func selectAll(t *testing.T, s *sqlstore.Store, table string) []storage.Row {
	t.Helper()
	rows, err := s.Select(context.Background(), storage.Query{TableName: table}, storage.One)
	if err != nil {
		t.Fatalf("Select: unexpected error: %v", err)
	}
	return rows
}

func idKey(id uuid.UUID) []storage.Key {
	return []storage.Key{{Column: "id", Value: value.UUID(id)}}
}

// --- Open Tests ---

func TestOpen_RequiresPath(t *testing.T) {
	if _, err := sqlstore.Open("", nil); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestNew_RequiresDatabase(t *testing.T) {
	if _, err := sqlstore.New(nil, nil); err == nil {
		t.Error("expected error for nil database")
	}
}

// --- Apply/Select Tests ---

func TestInsertAndSelect_AllKinds(t *testing.T) {
	s := mustOpen(t)
	id := uuid.New()
	columns := map[string]value.Value{
		"active":  value.Boolean(true),
		"balance": value.Decimal{Decimal: decimal.RequireFromString("10.25")},
		"joined":  value.Timestamp{Time: time.Date(2024, 2, 29, 23, 59, 59, 0, time.UTC)},
		"addr":    value.Inet{Addr: netip.MustParseAddr("192.168.0.1")},
		"empty":   value.Inet{},
		"name":    value.Text(""),
		"tags":    value.NewSet(value.KindText, value.Text("b"), value.Text("a")),
		"history": value.NewList(value.KindInt, value.Int(2), value.Int(2)),
		"scores":  value.NewMap(value.KindText, value.KindBigint, value.Entry{Key: value.Text("x"), Value: value.Bigint(1)}),
		"nothing": value.NewSet(value.KindUUID),
	}
	mustApply(t, s, storage.Batch{storage.InsertRow{TableName: "account", Key: idKey(id), Columns: columns}})

	rows, err := s.Select(context.Background(), storage.Query{TableName: "account", Where: idKey(id)}, storage.Quorum)
	if err != nil {
		t.Fatalf("Select: unexpected error: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	for column, want := range columns {
		if !value.Equal(rows[0][column], want) {
			t.Errorf("%s: expected %v, got %v", column, want, rows[0][column])
		}
	}
	if rows[0]["id"] != value.UUID(id) {
		t.Errorf("expected key column in row, got %v", rows[0]["id"])
	}
}

func TestInsertRow_Replaces(t *testing.T) {
	s := mustOpen(t)
	id := uuid.New()
	mustApply(t, s, storage.Batch{storage.InsertRow{TableName: "t", Key: idKey(id), Columns: map[string]value.Value{
		"a": value.Int(1), "b": value.Int(2),
	}}})
	mustApply(t, s, storage.Batch{storage.InsertRow{TableName: "t", Key: idKey(id), Columns: map[string]value.Value{
		"a": value.Int(3),
	}}})

	rows := selectAll(t, s, "t")
	if len(rows) != 1 || rows[0]["a"] != value.Int(3) {
		t.Fatalf("expected replaced row, got %v", rows)
	}
	if _, ok := rows[0]["b"]; ok {
		t.Error("expected b to be gone after replace")
	}
}

func TestUpdateRow_UpsertsAndMutates(t *testing.T) {
	s := mustOpen(t)
	id := uuid.New()

	mustApply(t, s, storage.Batch{storage.UpdateRow{TableName: "t", Key: idKey(id), Mutations: []storage.Mutation{
		storage.SetColumn{Column: "name", Value: value.Text("ada")},
		storage.SetColumn{Column: "tags", Value: value.NewSet(value.KindText, value.Text("a"), value.Text("b"))},
		storage.SetColumn{Column: "prefs", Value: value.NewMap(value.KindText, value.KindText,
			value.Entry{Key: value.Text("k1"), Value: value.Text("v1")})},
	}}})
	mustApply(t, s, storage.Batch{storage.UpdateRow{TableName: "t", Key: idKey(id), Mutations: []storage.Mutation{
		storage.RemoveElements{Column: "tags", Elements: []value.Value{value.Text("a")}},
		storage.AddElements{Column: "tags", Elements: []value.Value{value.Text("c")}},
		storage.DeleteKeys{Column: "prefs", Keys: []value.Value{value.Text("k1")}},
		storage.PutEntries{Column: "prefs", Entries: []value.Entry{{Key: value.Text("k2"), Value: value.Text("v2")}}},
		storage.SetColumn{Column: "name"},
	}}})

	rows := selectAll(t, s, "t")
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	row := rows[0]
	if want := value.NewSet(value.KindText, value.Text("b"), value.Text("c")); !value.Equal(row["tags"], want) {
		t.Errorf("tags: expected %v, got %v", want, row["tags"])
	}
	want := value.NewMap(value.KindText, value.KindText, value.Entry{Key: value.Text("k2"), Value: value.Text("v2")})
	if !value.Equal(row["prefs"], want) {
		t.Errorf("prefs: expected %v, got %v", want, row["prefs"])
	}
	if _, ok := row["name"]; ok {
		t.Error("expected name to be cleared")
	}
}

func TestApply_RollsBackOnFailure(t *testing.T) {
	s := mustOpen(t)
	id := uuid.New()
	mustApply(t, s, storage.Batch{storage.InsertRow{TableName: "t", Key: idKey(id), Columns: map[string]value.Value{
		"name": value.Text("ada"),
	}}})

	err := s.Apply(context.Background(), storage.Batch{
		storage.InsertRow{TableName: "t", Key: idKey(uuid.New()), Columns: map[string]value.Value{"name": value.Text("new")}},
		storage.UpdateRow{TableName: "t", Key: idKey(id), Mutations: []storage.Mutation{
			storage.AddElements{Column: "name", Elements: []value.Value{value.Text("x")}},
		}},
	}, storage.One)
	if err == nil {
		t.Fatal("expected error adding elements to a text column")
	}

	if rows := selectAll(t, s, "t"); len(rows) != 1 {
		t.Errorf("expected the first insert to be rolled back, got %d rows", len(rows))
	}
}

func TestApply_MissingKey(t *testing.T) {
	s := mustOpen(t)
	err := s.Apply(context.Background(), storage.Batch{storage.InsertRow{TableName: "t"}}, storage.One)
	if err == nil {
		t.Error("expected error for a row without key")
	}
}

func TestDeleteRowAndPartition(t *testing.T) {
	s := mustOpen(t)
	owner, other := uuid.New(), uuid.New()
	edge := func(o, r uuid.UUID) []storage.Key {
		return []storage.Key{{Column: "team_id", Value: value.UUID(o)}, {Column: "member_id", Value: value.UUID(r)}}
	}
	r1, r2 := uuid.New(), uuid.New()
	mustApply(t, s, storage.Batch{
		storage.InsertRow{TableName: "team_member", Key: edge(owner, r1)},
		storage.InsertRow{TableName: "team_member", Key: edge(owner, r2)},
		storage.InsertRow{TableName: "team_member", Key: edge(other, r1)},
	})

	mustApply(t, s, storage.Batch{storage.DeleteRow{TableName: "team_member", Key: edge(other, r1)}})
	if n := len(selectAll(t, s, "team_member")); n != 2 {
		t.Fatalf("expected 2 rows after delete, got %d", n)
	}

	mustApply(t, s, storage.Batch{storage.DeletePartition{
		TableName: "team_member",
		Partition: storage.Key{Column: "team_id", Value: value.UUID(owner)},
	}})
	if n := len(selectAll(t, s, "team_member")); n != 0 {
		t.Errorf("expected empty partition, got %d rows", n)
	}
}

func TestSelect_ByIndexedSortKey(t *testing.T) {
	s := mustOpen(t)
	related := uuid.New()
	owners := []uuid.UUID{uuid.New(), uuid.New()}
	for _, o := range owners {
		mustApply(t, s, storage.Batch{storage.InsertRow{TableName: "team_member", Key: []storage.Key{
			{Column: "team_id", Value: value.UUID(o)},
			{Column: "member_id", Value: value.UUID(related)},
		}}})
	}

	rows, err := s.Select(context.Background(), storage.Query{
		TableName: "team_member",
		Index:     "team_member_by_related",
		Where:     []storage.Key{{Column: "member_id", Value: value.UUID(related)}},
		Columns:   []storage.Column{{Name: "team_id", Type: value.Scalar(value.KindUUID)}},
	}, storage.One)
	if err != nil {
		t.Fatalf("Select: unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(rows))
	}
	if _, ok := rows[0]["member_id"]; ok {
		t.Error("expected unrequested column to be projected away")
	}
}

func TestLongKeysAreDigested(t *testing.T) {
	s := mustOpen(t)
	long := value.Text(strings.Repeat("x", 500))
	key := []storage.Key{{Column: "bio", Value: long}}
	mustApply(t, s, storage.Batch{storage.InsertRow{TableName: "idx", Key: key, Columns: map[string]value.Value{
		"owner_id": value.UUID(uuid.New()),
	}}})

	rows, err := s.Select(context.Background(), storage.Query{TableName: "idx", Where: key}, storage.One)
	if err != nil {
		t.Fatalf("Select: unexpected error: %v", err)
	}
	if len(rows) != 1 || rows[0]["bio"] != long {
		t.Errorf("expected the full key value back, got %v", rows)
	}
}

func TestSelect_CanceledContext(t *testing.T) {
	s := mustOpen(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Select(ctx, storage.Query{TableName: "t"}, storage.One); err == nil {
		t.Error("expected error for canceled context")
	}
}

// --- Store Integration Tests ---

type Note struct {
	ID     uuid.UUID
	Title  string
	Labels []string
}

func TestStoreRoundTrip(t *testing.T) {
	r := schema.NewRegistry()
	schema.Register(r, "note", func(b *schema.Builder[Note]) {
		b.ID("", func(n *Note) *uuid.UUID { return &n.ID })
		schema.Column(b, "title", schema.Text, func(n *Note) *string { return &n.Title }, schema.Indexed())
		schema.SetColumn(b, "labels", schema.Text, func(n *Note) *[]string { return &n.Labels })
	})
	cfg := store.DefaultConfig()
	cfg.Registry = r
	st := store.New(mustOpen(t), cfg)
	ctx := context.Background()

	h, err := store.Create(ctx, st, &Note{Title: "draft", Labels: []string{"a"}})
	if err != nil {
		t.Fatalf("Create: unexpected error: %v", err)
	}
	h.Entity().Title = "final"
	h.Entity().Labels = []string{"a", "b"}
	if err := store.Update(ctx, st, h); err != nil {
		t.Fatalf("Update: unexpected error: %v", err)
	}

	got, found, err := store.ReadByIndex[Note](ctx, st, "title", "final")
	if err != nil || !found {
		t.Fatalf("ReadByIndex: found=%v err=%v", found, err)
	}
	if got.ID() != h.ID() || len(got.Entity().Labels) != 2 {
		t.Errorf("unexpected entity %+v", got.Entity())
	}
	if _, found, _ := store.ReadByIndex[Note](ctx, st, "title", "draft"); found {
		t.Error("expected the old index value to be gone")
	}
}

// --- Query Logging Tests ---

// traceRecorder is a gorm logger that keeps the errors of traced statements.
type traceRecorder struct {
	errs []error
}

func (r *traceRecorder) LogMode(logger.LogLevel) logger.Interface      { return r }
func (r *traceRecorder) Info(context.Context, string, ...interface{})  {}
func (r *traceRecorder) Warn(context.Context, string, ...interface{})  {}
func (r *traceRecorder) Error(context.Context, string, ...interface{}) {}

func (r *traceRecorder) Trace(_ context.Context, _ time.Time, _ func() (string, int64), err error) {
	if err != nil {
		r.errs = append(r.errs, err)
	}
}

func TestUpdateRow_FreshRowTracesNoError(t *testing.T) {
	rec := &traceRecorder{}
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "lattice.db")), &gorm.Config{Logger: rec})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	s, err := sqlstore.New(db, nil)
	if err != nil {
		t.Fatalf("New: unexpected error: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	mustApply(t, s, storage.Batch{storage.UpdateRow{
		TableName: "note_title_idx",
		Key:       []storage.Key{{Column: "title", Value: value.Text("fresh")}},
		Mutations: []storage.Mutation{storage.SetColumn{Column: "note_id", Value: value.UUID(uuid.New())}},
	}})

	for _, err := range rec.errs {
		t.Errorf("unexpected traced error: %v", err)
	}
	if rows := selectAll(t, s, "note_title_idx"); len(rows) != 1 {
		t.Errorf("expected the upserted row, got %d", len(rows))
	}
}
