// Package storage defines the capability lattice consumes from a wide-column
// backend: atomic batches of row-level writes and key/value-predicate reads.
//
// Implementations live in subpackages: [github.com/jacentio/lattice/storage/memstore],
// [github.com/jacentio/lattice/storage/dynamo] and
// [github.com/jacentio/lattice/storage/sqlstore].
package storage

import (
	"context"

	"github.com/jacentio/lattice/value"
)

// Key is a single column equality used to address rows.
type Key struct {
	Column string
	Value  value.Value
}

// Row is a stored row: column name to value. Absent columns are null.
type Row map[string]value.Value

// Operation is one row-level write in a [Batch]. The set of operations is
// closed: [InsertRow], [UpdateRow], [DeleteRow] and [DeletePartition].
type Operation interface {
	Table() string
	isOperation()
}

// InsertRow writes a full row, replacing any row stored under the same key.
type InsertRow struct {
	TableName string
	// Key holds the partition key followed by the optional sort key.
	Key     []Key
	Columns map[string]value.Value
}

// UpdateRow applies mutations to the row addressed by Key, creating the row
// if it does not exist.
type UpdateRow struct {
	TableName string
	Key       []Key
	Mutations []Mutation
}

// DeleteRow removes the single row addressed by Key.
type DeleteRow struct {
	TableName string
	Key       []Key
}

// DeletePartition removes every row whose partition key equals Partition.
// SortColumn names the table's sort key column so that backends which delete
// item by item can address each row.
type DeletePartition struct {
	TableName  string
	Partition  Key
	SortColumn string
}

func (o InsertRow) Table() string       { return o.TableName }
func (o UpdateRow) Table() string       { return o.TableName }
func (o DeleteRow) Table() string       { return o.TableName }
func (o DeletePartition) Table() string { return o.TableName }

func (InsertRow) isOperation()       {}
func (UpdateRow) isOperation()       {}
func (DeleteRow) isOperation()       {}
func (DeletePartition) isOperation() {}

// Batch is an ordered set of operations that must be applied atomically.
type Batch []Operation

// Query selects rows of a table whose columns equal every Where predicate.
// The first predicate is expected to address the partition key unless Index
// names a secondary index keyed by it.
type Query struct {
	TableName string
	Index     string
	Where     []Key
	// Columns lists the columns to return with their declared types; backends
	// that do not store typed values use them to decode.
	Columns []Column
}

// Executor is the storage capability. Apply must apply the whole batch or
// none of it. Implementations must be safe for concurrent use.
type Executor interface {
	Apply(ctx context.Context, batch Batch, consistency Consistency) error
	Select(ctx context.Context, query Query, consistency Consistency) ([]Row, error)
}

// KeyValues returns the key columns of a row as a column map.
func KeyValues(keys []Key) map[string]value.Value {
	out := make(map[string]value.Value, len(keys))
	for _, k := range keys {
		out[k.Column] = k.Value
	}
	return out
}
