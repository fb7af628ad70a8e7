//go:build e2e

// Package e2e contains end-to-end integration tests using real DynamoDB tables.
// Run against DynamoDB Local with:
//
//	LATTICE_DYNAMODB_ENDPOINT=http://localhost:8000 go test -tags=e2e -v ./e2e/...
package e2e

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/google/uuid"

	"github.com/jacentio/lattice/schema"
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/storage/dynamo"
	"github.com/jacentio/lattice/store"
	"github.com/jacentio/lattice/stream"
	"github.com/jacentio/lattice/value"
)

// Test configuration
const (
	// Table names - unique per test run to avoid conflicts
	tablePrefix = "lattice-e2e"

	defaultEndpoint = "http://localhost:8000"
)

var (
	testID            string
	organizationTable string
	studioTable       string

	ddbClient *dynamodb.Client
	executor  *dynamo.Executor
	registry  = schema.NewRegistry()
	testStore *store.Store
)

// --- Test Entities ---

// Organization is a root entity owning studios.
type Organization struct {
	ID      uuid.UUID
	Name    string
	Slug    string
	Regions []string
	Limits  map[string]int64
	Studios []*Studio
}

// Studio is a related entity.
type Studio struct {
	ID   uuid.UUID
	Name string
}

func registerEntities() {
	schema.Register(registry, "organization", func(b *schema.Builder[Organization]) {
		b.Table(organizationTable)
		b.ID("", func(o *Organization) *uuid.UUID { return &o.ID })
		schema.Column(b, "name", schema.Text, func(o *Organization) *string { return &o.Name })
		schema.Column(b, "slug", schema.Text, func(o *Organization) *string { return &o.Slug }, schema.Indexed())
		schema.SetColumn(b, "regions", schema.Text, func(o *Organization) *[]string { return &o.Regions })
		schema.MapColumn(b, "limits", schema.Text, schema.Bigint, func(o *Organization) *map[string]int64 { return &o.Limits })
		schema.OneToMany(b, "studios", func(o *Organization) *[]*Studio { return &o.Studios })
	})
	schema.Register(registry, "studio", func(b *schema.Builder[Studio]) {
		b.Table(studioTable)
		b.ID("", func(s *Studio) *uuid.UUID { return &s.ID })
		schema.Column(b, "name", schema.Text, func(s *Studio) *string { return &s.Name })
	})
}

// --- Test Setup & Teardown ---

func TestMain(m *testing.M) {
	// Generate unique test ID
	testID = uuid.New().String()[:8]
	organizationTable = fmt.Sprintf("%s-%s-organization", tablePrefix, testID)
	studioTable = fmt.Sprintf("%s-%s-studio", tablePrefix, testID)
	registerEntities()

	endpoint := os.Getenv("LATTICE_DYNAMODB_ENDPOINT")
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	fmt.Printf("Test ID: %s\n", testID)
	fmt.Printf("Endpoint: %s\n", endpoint)

	ctx := context.Background()
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("local", "local", "")),
	)
	if err != nil {
		fmt.Printf("Failed to load AWS config: %v\n", err)
		os.Exit(1)
	}
	ddbClient = dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(endpoint)
	})
	executor = dynamo.New(ddbClient, nil)

	tables, err := allTables()
	if err != nil {
		fmt.Printf("Failed to describe entities: %v\n", err)
		os.Exit(1)
	}
	if err := executor.Provision(ctx, tables, dynamo.ProvisionOptions{Wait: 2 * time.Minute}); err != nil {
		fmt.Printf("Failed to create tables: %v\n", err)
		os.Exit(1)
	}

	storeCfg := store.DefaultConfig()
	storeCfg.Registry = registry
	storeCfg.Consistency = storage.Quorum
	testStore = store.New(executor, storeCfg)

	code := m.Run()

	deleteTables(ctx, tables)
	os.Exit(code)
}

func allTables() ([]storage.TableDef, error) {
	descs, err := registry.Descriptors()
	if err != nil {
		return nil, err
	}
	var tables []storage.TableDef
	for _, d := range descs {
		tables = append(tables, d.Tables()...)
	}
	return tables, nil
}

func deleteTables(ctx context.Context, tables []storage.TableDef) {
	fmt.Println("Deleting test tables...")
	for _, t := range tables {
		_, err := ddbClient.DeleteTable(ctx, &dynamodb.DeleteTableInput{
			TableName: aws.String(t.Name),
		})
		if err != nil {
			fmt.Printf("Warning: failed to delete table %s: %v\n", t.Name, err)
		}
	}
}

func createStudios(t *testing.T, names ...string) []*Studio {
	t.Helper()
	var studios []*Studio
	for _, name := range names {
		h, err := store.Create(context.Background(), testStore, &Studio{Name: name})
		if err != nil {
			t.Fatalf("create studio %s: %v", name, err)
		}
		studios = append(studios, h.Entity())
	}
	return studios
}

// --- CRUD Tests ---

func TestCreateAndRead(t *testing.T) {
	ctx := context.Background()
	studios := createStudios(t, "north", "south")

	org := &Organization{
		Name:    "Acme",
		Slug:    "acme-" + testID,
		Regions: []string{"eu", "us"},
		Limits:  map[string]int64{"seats": 10},
		Studios: studios,
	}
	h, err := store.Create(ctx, testStore, org)
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if org.ID == uuid.Nil {
		t.Fatal("expected identifier to be assigned")
	}

	got, found, err := store.Read[Organization](ctx, testStore, h.ID())
	if err != nil || !found {
		t.Fatalf("Read: found=%v err=%v", found, err)
	}
	e := got.Entity()
	if e.Name != "Acme" || len(e.Regions) != 2 || e.Limits["seats"] != 10 {
		t.Errorf("unexpected entity: %+v", e)
	}
	if len(e.Studios) != 2 {
		t.Errorf("expected 2 studios, got %d", len(e.Studios))
	}

	byIndex, found, err := store.ReadByIndex[Organization](ctx, testStore, "slug", org.Slug)
	if err != nil || !found {
		t.Fatalf("ReadByIndex: found=%v err=%v", found, err)
	}
	if byIndex.ID() != h.ID() {
		t.Errorf("expected %s, got %s", h.ID(), byIndex.ID())
	}
}

func TestRead_NotFound(t *testing.T) {
	_, found, err := store.Read[Organization](context.Background(), testStore, uuid.New())
	if err != nil {
		t.Fatalf("Read: unexpected error: %v", err)
	}
	if found {
		t.Error("expected not found")
	}
}

func TestUpdate_CollectionsAndIndex(t *testing.T) {
	ctx := context.Background()
	studios := createStudios(t, "east", "west")

	h, err := store.Create(ctx, testStore, &Organization{
		Name:    "Initech",
		Slug:    "initech-" + testID,
		Regions: []string{"eu"},
		Limits:  map[string]int64{"seats": 5, "projects": 1},
		Studios: studios[:1],
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	org := h.Entity()
	org.Slug = "initrode-" + testID
	org.Regions = []string{"us", "apac"}
	org.Limits = map[string]int64{"seats": 6}
	org.Studios = studios[1:]
	if err := store.Update(ctx, testStore, h); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	got, found, err := store.Read[Organization](ctx, testStore, h.ID())
	if err != nil || !found {
		t.Fatalf("Read: found=%v err=%v", found, err)
	}
	e := got.Entity()
	if len(e.Regions) != 2 || len(e.Limits) != 1 || e.Limits["seats"] != 6 {
		t.Errorf("unexpected collections: regions=%v limits=%v", e.Regions, e.Limits)
	}
	if len(e.Studios) != 1 || e.Studios[0].ID != studios[1].ID {
		t.Errorf("expected only studio %s, got %v", studios[1].ID, e.Studios)
	}

	if _, found, _ := store.ReadByIndex[Organization](ctx, testStore, "slug", "initech-"+testID); found {
		t.Error("expected old slug to be unindexed")
	}
	if _, found, _ := store.ReadByIndex[Organization](ctx, testStore, "slug", org.Slug); !found {
		t.Error("expected new slug to be indexed")
	}
}

func TestUpdate_Untracked(t *testing.T) {
	err := store.Update(context.Background(), testStore, &store.Handle[Organization]{})
	if !errors.Is(err, store.ErrUntrackedInstance) {
		t.Errorf("expected ErrUntrackedInstance, got %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	h, err := store.Create(ctx, testStore, &Organization{
		Name:    "Hooli",
		Slug:    "hooli-" + testID,
		Studios: createStudios(t, "lab"),
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	if err := store.Delete(ctx, testStore, h); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	if _, found, _ := store.Read[Organization](ctx, testStore, h.ID()); found {
		t.Error("expected organization to be deleted")
	}
	if _, found, _ := store.ReadByIndex[Organization](ctx, testStore, "slug", "hooli-"+testID); found {
		t.Error("expected slug index row to be deleted")
	}
}

// --- Stream Tests ---

func TestPruneRelations_RelatedRemoved(t *testing.T) {
	ctx := context.Background()
	studios := createStudios(t, "doomed", "kept")
	h, err := store.Create(ctx, testStore, &Organization{
		Name:    "Globex",
		Slug:    "globex-" + testID,
		Studios: studios,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	gone := studios[0]
	err = executor.Apply(ctx, storage.Batch{storage.DeleteRow{
		TableName: studioTable,
		Key:       []storage.Key{{Column: "id", Value: value.UUID(gone.ID)}},
	}}, storage.Quorum)
	if err != nil {
		t.Fatalf("expire studio: %v", err)
	}

	handler := stream.NewHandler(executor, registry, nil)
	event := events.DynamoDBEvent{Records: []events.DynamoDBEventRecord{{
		EventID:        "e2e-1",
		EventName:      "REMOVE",
		EventSourceArn: fmt.Sprintf("arn:aws:dynamodb:ddblocal:000000000000:table/%s/stream/%s", studioTable, time.Now().UTC().Format(time.RFC3339)),
		Change: events.DynamoDBStreamRecord{
			Keys: map[string]events.DynamoDBAttributeValue{"id": events.NewStringAttribute(gone.ID.String())},
		},
	}}}
	if err := handler.HandlePruneRelations(ctx, event); err != nil {
		t.Fatalf("HandlePruneRelations failed: %v", err)
	}

	var dangling []store.DanglingRelation
	cfg := store.DefaultConfig()
	cfg.Registry = registry
	cfg.OnDanglingRelation = func(d store.DanglingRelation) { dangling = append(dangling, d) }
	got, found, err := store.Read[Organization](ctx, store.New(executor, cfg), h.ID(), store.WithConsistency(storage.Quorum))
	if err != nil || !found {
		t.Fatalf("Read: found=%v err=%v", found, err)
	}
	if len(got.Entity().Studios) != 1 || len(dangling) != 0 {
		t.Errorf("expected 1 studio and no dangling relations, got %d and %v", len(got.Entity().Studios), dangling)
	}
}
