package keyspace

import (
	"testing"
)

func TestNaming(t *testing.T) {
	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"join column", JoinColumn("users"), "users_id"},
		{"index table", IndexTable("users", "email"), "users_email_idx"},
		{"join table", JoinTable("users", "addresses"), "users_addresses"},
		{"reverse index", ReverseIndex("users_addresses"), "users_addresses_by_related"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.got)
			}
		})
	}
}

func TestRowKey_Unambiguous(t *testing.T) {
	a := RowKey("a/b", "c")
	b := RowKey("a", "b/c")
	if a == b {
		t.Errorf("expected distinct row keys, both were %q", a)
	}
	if RowKey("x") != `"x"` {
		t.Errorf("expected single part to be quoted, got %q", RowKey("x"))
	}
}

func TestDigest(t *testing.T) {
	tests := [][]string{
		{"users", "email", "a@example.com"},
		{"users", "email", "b@example.com"},
		{"users", "name", "a@example.com"},
		{"orders", "email", "a@example.com"},
	}

	seen := make(map[string]int)
	for i, parts := range tests {
		result := Digest(parts...)

		// 128-bit hash as hex
		if len(result) != 32 {
			t.Errorf("Digest(%v) = %q (len=%d), want 32 chars", parts, result, len(result))
		}
		for _, c := range result {
			if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
				t.Errorf("expected hex character, got %c in %q", c, result)
			}
		}

		if j, ok := seen[result]; ok {
			t.Errorf("collision: %v and %v both produce %q", tests[j], parts, result)
		}
		seen[result] = i
	}
}

func TestDigest_Deterministic(t *testing.T) {
	first := Digest("users", "email", "a@example.com")
	for i := 0; i < 100; i++ {
		if result := Digest("users", "email", "a@example.com"); result != first {
			t.Errorf("expected deterministic result %q, got %q on iteration %d", first, result, i)
		}
	}
}

func BenchmarkDigest(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Digest("users", "email", "someone@example.com")
	}
}
