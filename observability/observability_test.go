package observability

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func fixedClock() time.Time {
	return time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)
}

func TestRunLoggerFormat(t *testing.T) {
	var buf bytes.Buffer
	l := NewRunLoggerTo(&buf, false)
	l.now = fixedClock

	l.Info("Renamed: a.pdf -> b.pdf")
	l.Warn("file vanished", String("path", "x.pdf"))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("line count: got %d\n%s", len(lines), buf.String())
	}
	if lines[0] != "2024-05-17 09:30:00 - INFO - Renamed: a.pdf -> b.pdf" {
		t.Fatalf("info line: %q", lines[0])
	}
	if lines[1] != "2024-05-17 09:30:00 - WARNING - file vanished path=x.pdf" {
		t.Fatalf("warn line: %q", lines[1])
	}
}

func TestRunLoggerDebugGate(t *testing.T) {
	var quiet, loud bytes.Buffer
	NewRunLoggerTo(&quiet, false).Debug("hidden")
	NewRunLoggerTo(&loud, true).Debug("shown")

	if quiet.Len() != 0 {
		t.Fatalf("debug leaked without verbose: %q", quiet.String())
	}
	if !strings.Contains(loud.String(), " - DEBUG - shown") {
		t.Fatalf("verbose debug missing: %q", loud.String())
	}
}

func TestRunLoggerMirror(t *testing.T) {
	var out, mirror bytes.Buffer
	l := NewRunLoggerTo(&out, false)
	l.mirror = &mirror
	l.now = fixedClock

	l.Info("quiet")
	l.Error("loud", Error("err", nil))

	if strings.Contains(mirror.String(), "quiet") {
		t.Fatalf("info must not mirror: %q", mirror.String())
	}
	if !strings.Contains(mirror.String(), " - ERROR - loud") {
		t.Fatalf("error not mirrored: %q", mirror.String())
	}
	if !strings.Contains(out.String(), "quiet") || !strings.Contains(out.String(), "loud") {
		t.Fatalf("primary writer missing lines: %q", out.String())
	}
}

func TestRunLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	root := NewRunLoggerTo(&buf, false)
	root.now = fixedClock

	child := root.With(String("file", "a.pdf"))
	child.Info("processing", Int("page", 1))

	got := buf.String()
	if !strings.Contains(got, "file=a.pdf") || !strings.Contains(got, "page=1") {
		t.Fatalf("bound fields missing: %q", got)
	}
}

func TestFieldConstructors(t *testing.T) {
	cases := []struct {
		f    Field
		key  string
		want interface{}
	}{
		{String("s", "v"), "s", "v"},
		{Int("i", 7), "i", 7},
		{Int64("n", int64(9)), "n", int64(9)},
	}
	for _, c := range cases {
		if c.f.Key() != c.key || c.f.Value() != c.want {
			t.Fatalf("field %q: got (%q, %v)", c.key, c.f.Key(), c.f.Value())
		}
	}
}
