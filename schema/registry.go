package schema

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Registry maps entity types to their declarations and caches the derived
// descriptors. Declarations are usually registered during init() on
// [Default]; derivation is lazy and happens on first use.
type Registry struct {
	mu      sync.Mutex
	defs    map[reflect.Type]definition
	byName  map[string]reflect.Type
	derived map[reflect.Type]*Descriptor
	// extra holds descriptors built from configuration, keyed by entity name.
	extra map[string]*Descriptor
}

type definition struct {
	entity  string
	declare func() declaration
}

// Default is the process-wide registry used by [Define] and [For].
var Default = NewRegistry()

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		defs:    make(map[reflect.Type]definition),
		byName:  make(map[string]reflect.Type),
		derived: make(map[reflect.Type]*Descriptor),
		extra:   make(map[string]*Descriptor),
	}
}

// Register records the declaration of entity type T under the entity name.
// Registering the same type twice replaces the earlier declaration and
// drops any cached descriptors.
func Register[T any](r *Registry, entity string, build func(*Builder[T])) {
	t := reflect.TypeFor[T]()

	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.defs[t]; ok {
		delete(r.byName, prev.entity)
		clear(r.derived)
	}
	r.defs[t] = definition{
		entity: entity,
		declare: func() declaration {
			b := &Builder[T]{}
			build(b)
			return b.declaration(entity)
		},
	}
	r.byName[entity] = t
}

// Define registers T on the [Default] registry.
func Define[T any](entity string, build func(*Builder[T])) {
	Register(Default, entity, build)
}

// Lookup returns the descriptor of T, deriving it (and every entity reachable
// through its relations) on first use. Failures are not cached.
func Lookup[T any](r *Registry) (*Descriptor, error) {
	return r.describe(reflect.TypeFor[T]())
}

// For returns the descriptor of T from the [Default] registry.
func For[T any]() (*Descriptor, error) {
	return Lookup[T](Default)
}

// Add registers a descriptor built outside the typed builder, such as one
// produced by [FromConfig].
func (r *Registry) Add(d *Descriptor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.extra[d.entity] = d
}

// Descriptors derives every registered entity and returns all descriptors
// ordered by table name.
func (r *Registry) Descriptors() ([]*Descriptor, error) {
	r.mu.Lock()
	types := make([]reflect.Type, 0, len(r.defs))
	for t := range r.defs {
		types = append(types, t)
	}
	r.mu.Unlock()

	seen := make(map[*Descriptor]bool)
	var out []*Descriptor
	for _, t := range types {
		d, err := r.describe(t)
		if err != nil {
			return nil, err
		}
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}

	r.mu.Lock()
	for _, d := range r.extra {
		if !seen[d] {
			seen[d] = true
			out = append(out, d)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].table < out[j].table })
	return out, nil
}

// JoinReference names a relation whose join table refers to a given table
// from either side.
type JoinReference struct {
	Owner    *Descriptor
	Relation RelationSpec
	// Column is the join-table column holding identifiers of the referenced table.
	Column string
}

// JoinsReferencing returns every relation whose join table stores
// identifiers of table, as owner or as related entity.
func (r *Registry) JoinsReferencing(table string) ([]JoinReference, error) {
	descs, err := r.Descriptors()
	if err != nil {
		return nil, err
	}
	var out []JoinReference
	for _, d := range descs {
		for _, rel := range d.relations {
			if d.table == table {
				out = append(out, JoinReference{Owner: d, Relation: rel, Column: rel.OwnerColumn()})
			}
			if rel.related.table == table {
				out = append(out, JoinReference{Owner: d, Relation: rel, Column: rel.RelatedColumn()})
			}
		}
	}
	return out, nil
}

func (r *Registry) describe(t reflect.Type) (*Descriptor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if d, ok := r.derived[t]; ok {
		return d, nil
	}

	p := &pass{registry: r, inProgress: make(map[reflect.Type]*Descriptor)}
	d, err := p.derive(t)
	if err != nil {
		return nil, err
	}
	for pt, pd := range p.inProgress {
		r.derived[pt] = pd
	}
	return d, nil
}

// pass is a single derivation run. Descriptors enter inProgress before their
// relations resolve, so a cycle receives the pointer of the descriptor still
// under construction.
type pass struct {
	registry   *Registry
	inProgress map[reflect.Type]*Descriptor
}

func (p *pass) derive(t reflect.Type) (*Descriptor, error) {
	if d, ok := p.registry.derived[t]; ok {
		return d, nil
	}
	if d, ok := p.inProgress[t]; ok {
		return d, nil
	}
	def, ok := p.registry.defs[t]
	if !ok {
		return nil, schemaErr(t.String(), "", "type is not registered")
	}

	d := &Descriptor{}
	p.inProgress[t] = d
	if err := assemble(d, def.declare(), p.resolve); err != nil {
		return nil, err
	}
	return d, nil
}

func (p *pass) resolve(rel relationDecl) (*Descriptor, error) {
	t, ok := rel.target.(reflect.Type)
	if !ok {
		return nil, fmt.Errorf("unsupported relation target %v", rel.target)
	}
	return p.derive(t)
}
