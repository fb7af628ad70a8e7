package schema

import "github.com/jacentio/lattice/value"

// EntityConfig declares an entity in configuration rather than code. The
// resulting descriptors carry no field accessors: they describe layout for
// DDL rendering and table provisioning.
type EntityConfig struct {
	Name      string           `mapstructure:"name"`
	Table     string           `mapstructure:"table"`
	ID        string           `mapstructure:"id"`
	Columns   []ColumnConfig   `mapstructure:"columns"`
	Relations []RelationConfig `mapstructure:"relations"`
}

// ColumnConfig declares one column. Type uses the native names, e.g.
// "text" or "map<text, int>".
type ColumnConfig struct {
	Name     string `mapstructure:"name"`
	Type     string `mapstructure:"type"`
	Indexed  bool   `mapstructure:"indexed"`
	Strategy string `mapstructure:"strategy"`
}

// RelationConfig declares a one-to-many relation to another configured entity.
type RelationConfig struct {
	Field  string `mapstructure:"field"`
	Entity string `mapstructure:"entity"`
}

// FromConfig validates the configured entities and builds their descriptors,
// in input order. Relations may only name entities in the same set.
func FromConfig(entities []EntityConfig) ([]*Descriptor, error) {
	byName := make(map[string]EntityConfig, len(entities))
	for _, e := range entities {
		if _, dup := byName[e.Name]; dup {
			return nil, schemaErr(e.Name, "", "entity declared more than once")
		}
		byName[e.Name] = e
	}

	built := make(map[string]*Descriptor, len(entities))
	var build func(name string) (*Descriptor, error)
	build = func(name string) (*Descriptor, error) {
		if d, ok := built[name]; ok {
			return d, nil
		}
		cfg, ok := byName[name]
		if !ok {
			return nil, schemaErr(name, "", "entity is not configured")
		}
		d := &Descriptor{}
		built[name] = d
		resolve := func(rel relationDecl) (*Descriptor, error) {
			return build(rel.target.(string))
		}
		if err := assemble(d, declarationOf(cfg), resolve); err != nil {
			return nil, err
		}
		return d, nil
	}

	out := make([]*Descriptor, 0, len(entities))
	for _, e := range entities {
		d, err := build(e.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func declarationOf(cfg EntityConfig) declaration {
	decl := declaration{
		entity:  cfg.Name,
		table:   cfg.Table,
		idCount: 1,
		id:      IDSpec{Column: cfg.ID},
	}
	for _, c := range cfg.Columns {
		typ, err := value.ParseType(c.Type)
		if err != nil {
			decl.errs = append(decl.errs, &Error{Entity: cfg.Name, Field: c.Name, Reason: "unsupported column type", Err: err})
			continue
		}
		strategy, err := ParseStrategy(c.Strategy)
		if err != nil {
			decl.errs = append(decl.errs, &Error{Entity: cfg.Name, Field: c.Name, Reason: "invalid strategy", Err: err})
			continue
		}
		decl.columns = append(decl.columns, ColumnSpec{
			Name:     c.Name,
			Type:     typ,
			Indexed:  c.Indexed,
			Strategy: strategy,
		})
	}
	for _, r := range cfg.Relations {
		decl.relations = append(decl.relations, relationDecl{field: r.Field, target: r.Entity})
	}
	return decl
}
