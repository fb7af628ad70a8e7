// Package store maps typed entities onto a wide-column storage executor.
//
// Each entity is stored as a primary row keyed by its identifier, plus
// synthetic rows that the store keeps in step with it:
//
//   - one index row per indexed column, mapping the column value to the owner
//   - one join row per one-to-many membership edge
//
// Every logical operation is submitted as a single [storage.Batch]; the
// executor applies it atomically or not at all. All validation happens
// before submission, so a rejected call writes nothing.
//
// # Handles
//
// [Create], [Read] and [ReadByIndex] return a [*Handle] that carries the
// entity and a private token for its last-synchronized snapshot. [Update]
// diffs the entity against that snapshot and writes only what changed:
//
//	h, err := store.Create(ctx, s, &Member{Name: "ada", Email: "ada@example.com"})
//	if err != nil {
//	    return err
//	}
//	h.Entity().Email = "ada@lovelace.dev"
//	if err := store.Update(ctx, s, h); err != nil {
//	    return err
//	}
//
// Two reads of the same row yield independent handles. Concurrent updates
// through different handles for the same row are not coordinated; the last
// batch applied by the executor wins.
//
// # Configuration
//
// Use [DefaultConfig] and adjust as needed:
//
//	cfg := store.DefaultConfig()
//	cfg.Consistency = storage.Quorum
//	cfg.Logger = logger
//
// A single call may override the consistency level with [WithConsistency].
//
// # Errors
//
// The package defines domain-specific errors:
//
//   - [ErrClosed] - the store was closed
//   - [ErrUntrackedInstance] - the handle is unknown to this store
//   - [ErrUnpersistedRelation] - a related entity has no identifier
//   - [ErrInvalidIndexLookup] - the column is not indexed
//   - [ErrAmbiguousResult] - a lookup yielded more than one row
//   - [ErrIdentifierAssigned] - the entity to create already has an identifier
//   - [ErrStorageExecution] - the executor failed, see [ExecutionError]
//
// Malformed entity declarations surface as [schema.ErrSchema].
package store
