// Package schema derives the structural description of persistable entity
// types from explicit declarations.
//
// An entity is declared once, usually from init(), with a build function that
// names the identifier, the columns and the one-to-many relations:
//
//	type Member struct {
//	    ID     uuid.UUID
//	    Name   string
//	    Email  string
//	    Scores map[string]int32
//	}
//
//	func init() {
//	    schema.Define("member", func(b *schema.Builder[Member]) {
//	        b.ID("", func(m *Member) *uuid.UUID { return &m.ID })
//	        schema.Column(b, "name", schema.Text, func(m *Member) *string { return &m.Name })
//	        schema.Column(b, "email", schema.Text, func(m *Member) *string { return &m.Email }, schema.Indexed())
//	        schema.MapColumn(b, "scores", schema.Text, schema.Int, func(m *Member) *map[string]int32 { return &m.Scores })
//	    })
//	}
//
// The [Descriptor] is derived lazily by [For] and cached for the life of the
// process. Relations may form cycles, including self-references.
//
// # Naming
//
//   - the identifier column defaults to "id"
//   - the index table of column c on table t is "t_c_idx"
//   - the join table of a relation from a to b is "a_b", with columns
//     "a_id" and "b_id"
//
// # Errors
//
// Every malformed declaration is reported as an [*Error] matching [ErrSchema].
package schema
