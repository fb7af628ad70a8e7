package schema

import (
	"strings"

	"github.com/jacentio/lattice/storage"
)

// DDL renders CREATE TABLE statements for every table of the given
// descriptors, one statement per line.
func DDL(descs ...*Descriptor) string {
	var b strings.Builder
	for _, d := range descs {
		for _, t := range d.Tables() {
			b.WriteString(TableDDL(t))
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// DDL renders the statements for this descriptor's tables.
func (d *Descriptor) DDL() string { return DDL(d) }

// TableDDL renders one CREATE TABLE statement. Primary tables declare their
// key inline; index and join tables use a trailing PRIMARY KEY clause.
func TableDDL(t storage.TableDef) string {
	var cols []string
	if t.Role == storage.RolePrimary {
		cols = append(cols, t.Partition.Name+" "+t.Partition.Type.String()+" PRIMARY KEY")
		for _, c := range t.Columns {
			cols = append(cols, c.Name+" "+c.Type.String())
		}
	} else {
		var keys []string
		for _, c := range t.KeyColumns() {
			keys = append(keys, c.Name)
		}
		for _, c := range t.AllColumns() {
			cols = append(cols, c.Name+" "+c.Type.String())
		}
		cols = append(cols, "PRIMARY KEY("+strings.Join(keys, ", ")+")")
	}
	return "CREATE TABLE " + t.Name + " (" + strings.Join(cols, ", ") + ");"
}
