// Package dynamo implements [storage.Executor] on Amazon DynamoDB.
//
// Each batch becomes one TransactWriteItems call, so a batch is applied
// atomically or not at all. Key columns are stored as strings in their
// canonical encoding; values too long for a DynamoDB key are replaced by a
// digest and the full value is kept alongside the item. Sets and maps are
// stored as M attributes so that single elements and entries can be added
// and removed without rewriting the collection.
//
// Usage:
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	if err != nil {
//	    return err
//	}
//	exec := dynamo.New(dynamodb.NewFromConfig(cfg), logger)
//	if err := exec.Provision(ctx, tables, dynamo.ProvisionOptions{Streams: true}); err != nil {
//	    return err
//	}
//	s := store.New(exec, store.DefaultConfig())
//
// Limits inherited from DynamoDB:
//
//   - a batch may expand to at most 100 items, see [ErrBatchTooLarge]
//   - a query addresses the partition key and optionally the sort key
//   - index reads are eventually consistent regardless of the level
package dynamo
