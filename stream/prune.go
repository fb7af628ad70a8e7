// Package stream provides DynamoDB Streams handlers that keep join tables
// consistent with primary rows removed outside the store.
package stream

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jacentio/lattice/internal/keyspace"
	"github.com/jacentio/lattice/schema"
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/value"
)

// defaultBatchSize keeps each prune batch within one DynamoDB transaction.
const defaultBatchSize = 100

// Handler processes DynamoDB stream events to prune join rows.
type Handler struct {
	exec      storage.Executor
	registry  *schema.Registry
	logger    *zap.Logger
	batchSize int
}

// NewHandler creates a new stream handler. A nil registry means
// schema.Default; a nil logger disables logging.
func NewHandler(exec storage.Executor, registry *schema.Registry, logger *zap.Logger) *Handler {
	if registry == nil {
		registry = schema.Default
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		exec:      exec,
		registry:  registry,
		logger:    logger,
		batchSize: defaultBatchSize,
	}
}

// HandlePruneRelations deletes the join rows that reference primary rows
// removed from their table, e.g. by TTL expiry. Pruning is idempotent.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandlePruneRelations(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				zap.String("event_id", record.EventID),
				zap.Error(err),
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	if record.EventName != string(events.DynamoDBOperationTypeRemove) {
		return nil
	}

	table := tableName(record.EventSourceArn)
	if table == "" {
		return fmt.Errorf("lattice: no table in event source %q", record.EventSourceArn)
	}
	refs, err := h.registry.JoinsReferencing(table)
	if err != nil {
		return err
	}
	if len(refs) == 0 {
		return nil
	}

	pruned := 0
	for _, ref := range refs {
		n, err := h.prune(ctx, record, ref)
		if err != nil {
			return fmt.Errorf("prune %s: %w", ref.Relation.JoinTable(), err)
		}
		pruned += n
	}

	h.logger.Info("pruned relations",
		zap.String("table", table),
		zap.Int("join_tables", len(refs)),
		zap.Int("edges", pruned),
	)
	return nil
}

// prune removes the edges of one join table that reference the removed row.
// Owned edges are dropped as a partition; edges pointing at the row are
// found through the join table's reverse index. It returns the number of
// edges found through the index.
func (h *Handler) prune(ctx context.Context, record events.DynamoDBEventRecord, ref schema.JoinReference) (int, error) {
	rel := ref.Relation
	joinTable := rel.JoinTable()

	if ref.Column == rel.OwnerColumn() {
		id, err := recordID(record, ref.Owner.ID().Column)
		if err != nil {
			return 0, err
		}
		return 0, h.exec.Apply(ctx, storage.Batch{storage.DeletePartition{
			TableName:  joinTable,
			Partition:  storage.Key{Column: rel.OwnerColumn(), Value: value.UUID(id)},
			SortColumn: rel.RelatedColumn(),
		}}, storage.One)
	}

	id, err := recordID(record, rel.Related().ID().Column)
	if err != nil {
		return 0, err
	}
	uuidType := value.Scalar(value.KindUUID)
	rows, err := h.exec.Select(ctx, storage.Query{
		TableName: joinTable,
		Index:     keyspace.ReverseIndex(joinTable),
		Where:     []storage.Key{{Column: rel.RelatedColumn(), Value: value.UUID(id)}},
		Columns: []storage.Column{
			{Name: rel.OwnerColumn(), Type: uuidType},
			{Name: rel.RelatedColumn(), Type: uuidType},
		},
	}, storage.One)
	if err != nil {
		return 0, err
	}

	batch := make(storage.Batch, 0, min(len(rows), h.batchSize))
	for _, row := range rows {
		batch = append(batch, storage.DeleteRow{
			TableName: joinTable,
			Key: []storage.Key{
				{Column: rel.OwnerColumn(), Value: row[rel.OwnerColumn()]},
				{Column: rel.RelatedColumn(), Value: row[rel.RelatedColumn()]},
			},
		})
		if len(batch) == h.batchSize {
			if err := h.exec.Apply(ctx, batch, storage.One); err != nil {
				return 0, err
			}
			batch = make(storage.Batch, 0, h.batchSize)
		}
	}
	if len(batch) > 0 {
		if err := h.exec.Apply(ctx, batch, storage.One); err != nil {
			return 0, err
		}
	}
	return len(rows), nil
}

// tableName extracts the table name from a stream ARN such as
// arn:aws:dynamodb:us-east-1:123456789012:table/users/stream/2024-01-01T00:00:00.000.
func tableName(arn string) string {
	_, rest, ok := strings.Cut(arn, ":table/")
	if !ok {
		return ""
	}
	name, _, _ := strings.Cut(rest, "/")
	return name
}

// recordID reads the identifier of the removed row from the record keys,
// falling back to the old image.
func recordID(record events.DynamoDBEventRecord, column string) (uuid.UUID, error) {
	raw := getStringAttr(record.Change.Keys, column)
	if raw == "" {
		raw = getStringAttr(record.Change.OldImage, column)
	}
	if raw == "" {
		return uuid.Nil, fmt.Errorf("lattice: record %s has no %s", record.EventID, column)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("lattice: record %s: %s: %w", record.EventID, column, err)
	}
	return id, nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}
