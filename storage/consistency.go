package storage

import (
	"fmt"
	"strings"
)

// Consistency is the per-call durability/availability requirement passed
// through to the storage backend. Lattice does not interpret it. The zero
// value is unset and is replaced by the store's configured default.
type Consistency uint8

const (
	Any Consistency = iota + 1
	One
	Two
	Three
	Quorum
	All
	LocalQuorum
	EachQuorum
	Serial
	LocalSerial
)

var consistencyNames = [...]string{
	Any:         "ANY",
	One:         "ONE",
	Two:         "TWO",
	Three:       "THREE",
	Quorum:      "QUORUM",
	All:         "ALL",
	LocalQuorum: "LOCAL_QUORUM",
	EachQuorum:  "EACH_QUORUM",
	Serial:      "SERIAL",
	LocalSerial: "LOCAL_SERIAL",
}

func (c Consistency) String() string {
	if c != 0 && int(c) < len(consistencyNames) {
		return consistencyNames[c]
	}
	return fmt.Sprintf("CONSISTENCY(%d)", uint8(c))
}

// Strong reports whether the level requires a majority or linearizable read.
func (c Consistency) Strong() bool {
	switch c {
	case Quorum, All, LocalQuorum, EachQuorum, Serial, LocalSerial:
		return true
	default:
		return false
	}
}

// ParseConsistency resolves a level name such as "local_quorum".
func ParseConsistency(name string) (Consistency, error) {
	normalized := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range consistencyNames {
		if n != "" && n == normalized {
			return Consistency(i), nil
		}
	}
	return 0, fmt.Errorf("lattice: unknown consistency level %q", name)
}
