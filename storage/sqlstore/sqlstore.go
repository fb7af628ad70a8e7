// Package sqlstore implements [storage.Executor] on a relational database
// through GORM. Every lattice table shares one wide-row table keyed by
// table name, partition key and sort key; each batch runs in a single
// database transaction.
//
// Open uses the pure-Go SQLite driver:
//
//	exec, err := sqlstore.Open("lattice.db", logger)
//	if err != nil {
//	    return err
//	}
//	defer exec.Close()
//	s := store.New(exec, store.DefaultConfig())
//
// Consistency levels are accepted and ignored; a single database is always
// consistent.
package sqlstore

import (
	"context"
	"errors"
	"fmt"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/value"
)

// ErrMissingKey is returned for operations that do not address a row by a
// partition key and at most one sort key.
var ErrMissingKey = errors.New("lattice: operation has no usable key")

const (
	queryRow       = "table_name = ? AND partition_key = ? AND sort_key = ?"
	queryPartition = "table_name = ? AND partition_key = ?"
	querySortKey   = "table_name = ? AND sort_key = ?"
	queryTable     = "table_name = ?"
)

// Store is a storage executor backed by GORM.
type Store struct {
	db     *gorm.DB
	logger *zap.Logger
}

// Open establishes a SQLite connection and migrates the row table.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	s, err := New(db, logger)
	if err != nil {
		return nil, err
	}
	s.logger.Info("database initialized", zap.String("path", path))
	return s, nil
}

// New wraps an open database, migrating the row table. A nil logger
// disables logging.
func New(db *gorm.DB, logger *zap.Logger) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := db.AutoMigrate(&rowRecord{}); err != nil {
		return nil, err
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Apply runs the batch in one transaction; any failing operation rolls back
// the whole batch.
func (s *Store) Apply(ctx context.Context, batch storage.Batch, _ storage.Consistency) error {
	if len(batch) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, op := range batch {
			if err := applyOne(tx, op); err != nil {
				return fmt.Errorf("operation %d on %s: %w", i, op.Table(), err)
			}
		}
		return nil
	})
	if err != nil {
		s.logger.Debug("batch rolled back", zap.Int("operations", len(batch)), zap.Error(err))
		return err
	}
	return nil
}

func applyOne(tx *gorm.DB, op storage.Operation) error {
	switch o := op.(type) {
	case storage.InsertRow:
		row := make(storage.Row, len(o.Columns)+len(o.Key))
		for c, v := range o.Columns {
			row[c] = v
		}
		return save(tx, o.TableName, o.Key, row)
	case storage.UpdateRow:
		partition, sort, err := recordKey(o.Key)
		if err != nil {
			return err
		}
		var existing []rowRecord
		if err := tx.Where(queryRow, o.TableName, partition, sort).Limit(1).Find(&existing).Error; err != nil {
			return err
		}
		current := storage.Row{}
		if len(existing) > 0 {
			if current, err = decodeRow(existing[0].ColumnsJSON); err != nil {
				return err
			}
		}
		row, err := storage.ApplyMutations(current, o.Mutations)
		if err != nil {
			return err
		}
		return save(tx, o.TableName, o.Key, row)
	case storage.DeleteRow:
		partition, sort, err := recordKey(o.Key)
		if err != nil {
			return err
		}
		return tx.Where(queryRow, o.TableName, partition, sort).Delete(&rowRecord{}).Error
	case storage.DeletePartition:
		if o.Partition.Value == nil {
			return ErrMissingKey
		}
		return tx.Where(queryPartition, o.TableName, storedKey(o.Partition.Value)).Delete(&rowRecord{}).Error
	default:
		return fmt.Errorf("lattice: unsupported operation %T", op)
	}
}

// save upserts row under keys. Key values are stored with the row.
func save(tx *gorm.DB, table string, keys []storage.Key, row storage.Row) error {
	partition, sort, err := recordKey(keys)
	if err != nil {
		return err
	}
	for _, k := range keys {
		if k.Value == nil {
			return fmt.Errorf("%w: null %s", ErrMissingKey, k.Column)
		}
		row[k.Column] = k.Value
	}
	data, err := encodeRow(row)
	if err != nil {
		return err
	}
	rec := rowRecord{Table: table, PartitionKey: partition, SortKey: sort, ColumnsJSON: data}
	return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
}

// Select loads the rows matching every predicate, ordered by key. The first
// predicate addresses the partition key, or the sort key when the query
// names an index. A query without predicates returns the whole table.
func (s *Store) Select(ctx context.Context, q storage.Query, _ storage.Consistency) ([]storage.Row, error) {
	tx := s.db.WithContext(ctx)
	switch {
	case len(q.Where) == 0:
		tx = tx.Where(queryTable, q.TableName)
	case q.Index != "":
		tx = tx.Where(querySortKey, q.TableName, storedKey(q.Where[0].Value))
	default:
		tx = tx.Where(queryPartition, q.TableName, storedKey(q.Where[0].Value))
	}

	var records []rowRecord
	if err := tx.Order("partition_key, sort_key").Find(&records).Error; err != nil {
		return nil, err
	}

	rows := make([]storage.Row, 0, len(records))
	for _, rec := range records {
		row, err := decodeRow(rec.ColumnsJSON)
		if err != nil {
			return nil, fmt.Errorf("decode %s: %w", q.TableName, err)
		}
		if !matches(row, q.Where) {
			continue
		}
		rows = append(rows, project(row, q.Columns))
	}
	return rows, nil
}

func matches(row storage.Row, where []storage.Key) bool {
	for _, k := range where {
		if !value.Equal(row[k.Column], k.Value) {
			return false
		}
	}
	return true
}

func project(row storage.Row, columns []storage.Column) storage.Row {
	if len(columns) == 0 {
		return row
	}
	out := make(storage.Row, len(columns))
	for _, c := range columns {
		if v, ok := row[c.Name]; ok {
			out[c.Name] = v
		}
	}
	return out
}
