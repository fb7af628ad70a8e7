package sqlstore

import (
	"encoding/json"
	"fmt"

	"github.com/jacentio/lattice/internal/keyspace"
	"github.com/jacentio/lattice/storage"
	"github.com/jacentio/lattice/value"
)

// maxKeySize bounds the stored key columns; longer encodings are digested.
const maxKeySize = 190

// rowRecord stores one row of any lattice table. Key columns hold the
// canonical encodings of the row's partition and sort values; the row
// itself, key values included, is kept as self-describing JSON.
type rowRecord struct {
	Table        string `gorm:"column:table_name;primaryKey;size:190;not null;index:idx_lattice_rows_sort,priority:1"`
	PartitionKey string `gorm:"column:partition_key;primaryKey;size:190;not null"`
	SortKey      string `gorm:"column:sort_key;primaryKey;size:190;not null;index:idx_lattice_rows_sort,priority:2"`
	ColumnsJSON  string `gorm:"column:columns_json;type:text;not null"`
}

// TableName provides the explicit table binding for GORM.
func (rowRecord) TableName() string {
	return "lattice_rows"
}

// storedKey returns the key column form of a key value.
func storedKey(v value.Value) string {
	s := value.Encode(v)
	if len(s) <= maxKeySize {
		return s
	}
	return "sha256:" + keyspace.Digest(s)
}

// recordKey returns the stored partition and sort keys addressed by keys.
func recordKey(keys []storage.Key) (partition, sort string, err error) {
	switch len(keys) {
	case 1:
		return storedKey(keys[0].Value), "", nil
	case 2:
		return storedKey(keys[0].Value), storedKey(keys[1].Value), nil
	default:
		return "", "", fmt.Errorf("%w: got %d key columns", ErrMissingKey, len(keys))
	}
}

// storedValue is the JSON form of a value. Scalars use Text; lists and sets
// use Items; maps use Entries.
type storedValue struct {
	Kind    string      `json:"kind"`
	Key     string      `json:"key,omitempty"`
	Elem    string      `json:"elem,omitempty"`
	Text    string      `json:"text,omitempty"`
	Items   []string    `json:"items,omitempty"`
	Entries [][2]string `json:"entries,omitempty"`
}

func kindName(k value.Kind) string {
	if !k.Valid() {
		return ""
	}
	return k.String()
}

func parseKind(name string) (value.Kind, error) {
	if name == "" {
		return value.KindInvalid, nil
	}
	return value.ParseKind(name)
}

func toStored(v value.Value) storedValue {
	switch t := v.(type) {
	case value.List:
		items := make([]string, len(t.Items))
		for i, item := range t.Items {
			items[i] = value.Encode(item)
		}
		return storedValue{Kind: "list", Elem: kindName(t.Elem), Items: items}
	case value.Set:
		items := make([]string, len(t.Items))
		for i, item := range t.Items {
			items[i] = value.Encode(item)
		}
		return storedValue{Kind: "set", Elem: kindName(t.Elem), Items: items}
	case value.Map:
		entries := make([][2]string, len(t.Entries))
		for i, e := range t.Entries {
			entries[i] = [2]string{value.Encode(e.Key), value.Encode(e.Value)}
		}
		return storedValue{Kind: "map", Key: kindName(t.Key), Elem: kindName(t.Elem), Entries: entries}
	default:
		return storedValue{Kind: v.Kind().String(), Text: value.Encode(v)}
	}
}

func fromStored(s storedValue) (value.Value, error) {
	kind, err := value.ParseKind(s.Kind)
	if err != nil {
		return nil, err
	}
	elem, err := parseKind(s.Elem)
	if err != nil {
		return nil, err
	}

	switch kind {
	case value.KindList, value.KindSet:
		items, err := decodeAll(elem, s.Items)
		if err != nil {
			return nil, err
		}
		if kind == value.KindList {
			return value.NewList(elem, items...), nil
		}
		return value.NewSet(elem, items...), nil
	case value.KindMap:
		key, err := parseKind(s.Key)
		if err != nil {
			return nil, err
		}
		entries := make([]value.Entry, 0, len(s.Entries))
		for _, pair := range s.Entries {
			k, err := value.Decode(key, pair[0])
			if err != nil {
				return nil, err
			}
			v, err := value.Decode(elem, pair[1])
			if err != nil {
				return nil, err
			}
			entries = append(entries, value.Entry{Key: k, Value: v})
		}
		return value.NewMap(key, elem, entries...), nil
	default:
		return value.Decode(kind, s.Text)
	}
}

func decodeAll(k value.Kind, encoded []string) ([]value.Value, error) {
	out := make([]value.Value, 0, len(encoded))
	for _, e := range encoded {
		v, err := value.Decode(k, e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// encodeRow serializes the non-null columns of a row.
func encodeRow(row storage.Row) (string, error) {
	stored := make(map[string]storedValue, len(row))
	for column, v := range row {
		if v != nil {
			stored[column] = toStored(v)
		}
	}
	b, err := json.Marshal(stored)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeRow(data string) (storage.Row, error) {
	var stored map[string]storedValue
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		return nil, err
	}
	row := make(storage.Row, len(stored))
	for column, s := range stored {
		v, err := fromStored(s)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", column, err)
		}
		row[column] = v
	}
	return row, nil
}
