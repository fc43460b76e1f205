package rename

import (
	"fmt"
	"testing"
)

func TestCollisionTableDistinctNames(t *testing.T) {
	table := NewCollisionTable()
	const n = 5

	seen := make(map[string]bool)
	for i := 0; i < n; i++ {
		name := table.Claim("Deep Learning", ".pdf")
		if seen[name] {
			t.Fatalf("duplicate name %q on claim %d", name, i)
		}
		seen[name] = true

		want := "Deep Learning.pdf"
		if i > 0 {
			want = fmt.Sprintf("Deep Learning_%d.pdf", i)
		}
		if name != want {
			t.Fatalf("claim %d: got %q, want %q", i, name, want)
		}
	}
}

func TestCollisionTableIndependentBases(t *testing.T) {
	table := NewCollisionTable()
	if got := table.Claim("A", ".pdf"); got != "A.pdf" {
		t.Fatalf("got %q", got)
	}
	if got := table.Claim("B", ".pdf"); got != "B.pdf" {
		t.Fatalf("b must not inherit a's count: %q", got)
	}
	if got := table.Claim("A", ".pdf"); got != "A_1.pdf" {
		t.Fatalf("got %q", got)
	}
}

func TestCollisionTableCountsAreMonotonic(t *testing.T) {
	table := NewCollisionTable()
	table.Claim("T", ".pdf")
	table.Claim("T", ".pdf")
	// A suffixed claim still advances the un-suffixed base.
	if got := table.Claim("T", ".pdf"); got != "T_2.pdf" {
		t.Fatalf("got %q, want T_2.pdf", got)
	}
}
