package rename

import "fmt"

// CollisionTable hands out distinct filenames for repeated titles within one
// run. The first occurrence of a base name keeps it bare; occurrence N gets
// "_N" inserted before the extension. Counts are keyed by the un-suffixed
// base and only ever grow, so they stay monotonic across subdirectories.
type CollisionTable struct {
	counts map[string]int
}

func NewCollisionTable() *CollisionTable {
	return &CollisionTable{counts: make(map[string]int)}
}

// Claim records one use of title+ext and returns the filename to use for it.
func (t *CollisionTable) Claim(title, ext string) string {
	base := title + ext
	n := t.counts[base]
	t.counts[base]++
	if n == 0 {
		return base
	}
	return fmt.Sprintf("%s_%d%s", title, n, ext)
}
