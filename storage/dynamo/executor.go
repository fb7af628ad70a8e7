package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/jacentio/lattice/storage"
)

// maxTransactItems is the DynamoDB limit on items per transaction.
const maxTransactItems = 100

var (
	// ErrBatchTooLarge is returned when a batch expands to more items than one
	// transaction can hold.
	ErrBatchTooLarge = errors.New("lattice: batch exceeds dynamodb transaction limit")

	// ErrConflictingWrites is returned when a batch writes the same item in
	// ways that cannot be merged into one transaction item.
	ErrConflictingWrites = errors.New("lattice: conflicting writes to one item")

	// ErrTransactionCanceled is returned when DynamoDB cancels the transaction.
	ErrTransactionCanceled = errors.New("lattice: dynamodb transaction canceled")

	// ErrInvalidQuery is returned for queries DynamoDB cannot express.
	ErrInvalidQuery = errors.New("lattice: invalid dynamodb query")
)

// Client is the subset of the DynamoDB API the executor uses.
// *dynamodb.Client satisfies it.
type Client interface {
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Executor applies storage batches as DynamoDB transactions.
type Executor struct {
	client Client
	logger *zap.Logger
}

// New creates a new Executor. A nil logger disables logging.
func New(client Client, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{client: client, logger: logger}
}

// Apply submits the batch as a single TransactWriteItems call. Updates of
// the same item are merged into one item; partitions are expanded into one
// delete per stored row. DynamoDB writes are always durable, so the
// consistency level only affects the reads done to expand partitions.
func (e *Executor) Apply(ctx context.Context, batch storage.Batch, consistency storage.Consistency) error {
	w := newWriteSet()
	for _, op := range batch {
		if err := e.add(ctx, w, op, consistency); err != nil {
			return err
		}
	}

	items, err := w.items()
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	if len(items) > maxTransactItems {
		return fmt.Errorf("%w: %d items", ErrBatchTooLarge, len(items))
	}

	e.logger.Debug("transact write",
		zap.Int("operations", len(batch)),
		zap.Int("items", len(items)),
	)
	_, err = e.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapTransactionError(err)
}

func (e *Executor) add(ctx context.Context, w *writeSet, op storage.Operation, consistency storage.Consistency) error {
	switch t := op.(type) {
	case storage.InsertRow:
		return w.put(t)
	case storage.UpdateRow:
		return w.update(t)
	case storage.DeleteRow:
		return w.delete(t.TableName, t.Key)
	case storage.DeletePartition:
		keys, err := e.partitionKeys(ctx, t, consistency)
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := w.deleteItem(t.TableName, k); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("lattice: unsupported operation %T", op)
	}
}

// partitionKeys returns the primary keys of every item in a partition.
func (e *Executor) partitionKeys(ctx context.Context, op storage.DeletePartition, consistency storage.Consistency) ([]map[string]types.AttributeValue, error) {
	partition, _ := keyString(op.Partition.Value)
	names := map[string]string{"#p": op.Partition.Column}
	projection := "#p"
	if op.SortColumn != "" {
		names["#s"] = op.SortColumn
		projection = "#p, #s"
	}

	values := map[string]types.AttributeValue{
		":p": &types.AttributeValueMemberS{Value: partition},
	}

	paginator := dynamodb.NewQueryPaginator(e.client, &dynamodb.QueryInput{
		TableName:                 aws.String(op.TableName),
		KeyConditionExpression:    aws.String("#p = :p"),
		ProjectionExpression:      aws.String(projection),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConsistentRead:            aws.Bool(consistency.Strong()),
	})

	var keys []map[string]types.AttributeValue
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query partition %s: %w", op.TableName, err)
		}
		for _, item := range page.Items {
			key := map[string]types.AttributeValue{op.Partition.Column: item[op.Partition.Column]}
			if op.SortColumn != "" {
				key[op.SortColumn] = item[op.SortColumn]
			}
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// Select runs a Query. The first predicate is the partition key condition
// of the table or of the named index; a second predicate, if any, is the
// sort key condition. Only the columns named by the query are decoded.
func (e *Executor) Select(ctx context.Context, q storage.Query, consistency storage.Consistency) ([]storage.Row, error) {
	if len(q.Where) == 0 || len(q.Where) > 2 {
		return nil, fmt.Errorf("%w: %s needs one or two key predicates, got %d", ErrInvalidQuery, q.TableName, len(q.Where))
	}

	names := make(map[string]string, len(q.Where))
	values := make(map[string]types.AttributeValue, len(q.Where))
	conditions := make([]string, 0, len(q.Where))
	for i, k := range q.Where {
		s, _ := keyString(k.Value)
		names[fmt.Sprintf("#k%d", i)] = k.Column
		values[fmt.Sprintf(":k%d", i)] = &types.AttributeValueMemberS{Value: s}
		conditions = append(conditions, fmt.Sprintf("#k%d = :k%d", i, i))
	}

	input := &dynamodb.QueryInput{
		TableName:                 aws.String(q.TableName),
		KeyConditionExpression:    aws.String(strings.Join(conditions, " AND ")),
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
	}
	if q.Index != "" {
		input.IndexName = aws.String(q.Index)
	} else {
		// Global secondary indexes only support eventually consistent reads.
		input.ConsistentRead = aws.Bool(consistency.Strong())
	}

	var rows []storage.Row
	paginator := dynamodb.NewQueryPaginator(e.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", q.TableName, err)
		}
		for _, item := range page.Items {
			row, err := decodeItem(item, q.Columns)
			if err != nil {
				return nil, fmt.Errorf("decode %s: %w", q.TableName, err)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// mapTransactionError maps DynamoDB transaction errors, naming the items
// that caused the cancellation.
func mapTransactionError(err error) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		var reasons []string
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code != "None" {
				reasons = append(reasons, fmt.Sprintf("item %d: %s", i, *reason.Code))
			}
		}
		return fmt.Errorf("%w (%s): %w", ErrTransactionCanceled, strings.Join(reasons, ", "), err)
	}

	return err
}
