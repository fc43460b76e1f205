package rename

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
)

func TestProcessFileVanishedStaysOffConsole(t *testing.T) {
	var console bytes.Buffer
	r := NewRunner(Options{}, nil, NewConsole(&console))

	var stats Stats
	gone := filepath.Join(t.TempDir(), "consumed-earlier.pdf")
	r.processFile(context.Background(), gone, NewCollisionTable(), &stats)

	if console.Len() != 0 {
		t.Fatalf("vanished file reached the console: %q", console.String())
	}
	if stats.Skipped != 1 || stats.Processed != 0 {
		t.Fatalf("stats: %+v", stats)
	}
}
