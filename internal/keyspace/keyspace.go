// Package keyspace names the synthetic tables and columns lattice derives
// from an entity schema and computes stable row keys for backends.
package keyspace

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// DefaultIDColumn is the identifier column name when none is declared.
const DefaultIDColumn = "id"

// JoinColumn names the column that carries a table's identifier inside index
// and join tables (e.g. "users" -> "users_id").
func JoinColumn(table string) string {
	return fmt.Sprintf("%s_id", table)
}

// IndexTable names the shadow table of an indexed column.
func IndexTable(table, column string) string {
	return fmt.Sprintf("%s_%s_idx", table, column)
}

// JoinTable names the table holding one-to-many edges from owner to related.
func JoinTable(owner, related string) string {
	return fmt.Sprintf("%s_%s", owner, related)
}

// ReverseIndex names the secondary index of a join table keyed by the related
// identifier.
func ReverseIndex(joinTable string) string {
	return fmt.Sprintf("%s_by_related", joinTable)
}

// RowKey joins encoded key parts into one unambiguous string.
func RowKey(parts ...string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		quoted[i] = strconv.Quote(p)
	}
	return strings.Join(quoted, "/")
}

// Digest returns a 128-bit hex digest of the given parts. Backends use it
// in place of key values that exceed their key size limits.
func Digest(parts ...string) string {
	h := sha256.Sum256([]byte(RowKey(parts...)))
	return hex.EncodeToString(h[:16])
}
