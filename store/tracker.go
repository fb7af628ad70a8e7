package store

import (
	"sync"

	"github.com/google/uuid"

	"github.com/jacentio/lattice/schema"
	"github.com/jacentio/lattice/value"
)

// Handle is the token returned by Create and the Read functions. Update and
// Delete require it; two reads of the same row yield independent handles.
type Handle[T any] struct {
	entity *T
	token  uuid.UUID
	id     uuid.UUID
}

// Entity returns the tracked entity. Mutate it, then pass the handle to Update.
func (h *Handle[T]) Entity() *T { return h.entity }

// ID returns the persisted identifier.
func (h *Handle[T]) ID() uuid.UUID { return h.id }

// snapshot is the last-synchronized state of one tracked instance.
type snapshot struct {
	id      uuid.UUID
	columns map[string]value.Value
	// relations holds the related identifiers per relation field.
	relations map[string][]uuid.UUID
}

// capture records the current state of instance. Related entities without an
// identifier fail with ErrUnpersistedRelation.
func capture(d *schema.Descriptor, id uuid.UUID, instance any) (snapshot, error) {
	snap := snapshot{
		id:        id,
		columns:   make(map[string]value.Value, len(d.Columns())),
		relations: make(map[string][]uuid.UUID, len(d.Relations())),
	}
	for _, c := range d.Columns() {
		snap.columns[c.Name] = value.Clone(c.Get(instance))
	}
	for _, rel := range d.Relations() {
		ids, err := relatedIDs(rel, instance)
		if err != nil {
			return snapshot{}, err
		}
		snap.relations[rel.Field] = ids
	}
	return snap, nil
}

// tracker maps handle tokens to snapshots. Entries are independent; the
// mutex only guards the map itself.
type tracker struct {
	mu        sync.RWMutex
	snapshots map[uuid.UUID]snapshot
}

func newTracker() *tracker {
	return &tracker{snapshots: make(map[uuid.UUID]snapshot)}
}

func (t *tracker) track(token uuid.UUID, snap snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.snapshots[token] = snap
}

func (t *tracker) baseline(token uuid.UUID) (snapshot, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	snap, ok := t.snapshots[token]
	return snap, ok
}

func (t *tracker) forget(token uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.snapshots, token)
}

func (t *tracker) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.snapshots)
}
