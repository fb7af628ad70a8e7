package store

import "errors"

var (
	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("lattice: store is closed")

	// ErrUntrackedInstance is returned when Update or Delete receives a handle
	// this store did not issue, or one whose entity was already deleted.
	ErrUntrackedInstance = errors.New("lattice: instance is not tracked by this store")

	// ErrUnpersistedRelation is returned when a related entity has no identifier.
	ErrUnpersistedRelation = errors.New("lattice: related entity has not been created")

	// ErrInvalidIndexLookup is returned when reading by a column that is not indexed.
	ErrInvalidIndexLookup = errors.New("lattice: column is not indexed")

	// ErrAmbiguousResult is returned when a lookup by identifier or indexed
	// value yields more than one row.
	ErrAmbiguousResult = errors.New("lattice: lookup returned more than one row")

	// ErrIdentifierAssigned is returned when creating an entity whose identifier is already set.
	ErrIdentifierAssigned = errors.New("lattice: entity identifier is already assigned")

	// ErrStorageExecution matches every *ExecutionError.
	ErrStorageExecution = errors.New("lattice: storage execution failed")
)

// ExecutionError wraps a failure reported by the storage executor.
type ExecutionError struct {
	// Op is the store operation that failed (create, read, update, delete).
	Op  string
	Err error
}

func (e *ExecutionError) Error() string {
	return "lattice: " + e.Op + ": storage execution failed: " + e.Err.Error()
}

func (e *ExecutionError) Is(target error) bool {
	return target == ErrStorageExecution
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
