package observability

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// RunLogger appends line-oriented records to a log file:
//
//	2006-01-02 15:04:05 - LEVEL - message key=value ...
//
// Levels are DEBUG, INFO, WARNING, ERROR. WARNING and ERROR lines are
// mirrored to a secondary writer (normally stderr) so problems surface
// even when nobody tails the log. Debug is dropped unless verbose.
type RunLogger struct {
	mu      sync.Mutex
	out     io.Writer
	mirror  io.Writer
	closer  io.Closer
	verbose bool
	now     func() time.Time
}

// NewRunLogger opens path for appending and returns a logger writing to it.
// The caller owns Close.
func NewRunLogger(path string, verbose bool) (*RunLogger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return &RunLogger{
		out:     f,
		mirror:  os.Stderr,
		closer:  f,
		verbose: verbose,
		now:     time.Now,
	}, nil
}

// NewRunLoggerTo writes records to w instead of a file. Nothing is mirrored.
func NewRunLoggerTo(w io.Writer, verbose bool) *RunLogger {
	return &RunLogger{out: w, verbose: verbose, now: time.Now}
}

func (l *RunLogger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *RunLogger) Debug(msg string, fields ...Field) {
	if !l.verbose {
		return
	}
	l.write("DEBUG", msg, fields, false)
}

func (l *RunLogger) Info(msg string, fields ...Field)  { l.write("INFO", msg, fields, false) }
func (l *RunLogger) Warn(msg string, fields ...Field)  { l.write("WARNING", msg, fields, true) }
func (l *RunLogger) Error(msg string, fields ...Field) { l.write("ERROR", msg, fields, true) }

// With returns a logger sharing this logger's writer and mutex. Closing
// remains the root logger's job.
func (l *RunLogger) With(fields ...Field) Logger {
	return &sharedRunLogger{root: l, bound: append([]Field(nil), fields...)}
}

// sharedRunLogger routes through the root so the mutex and writer stay shared.
type sharedRunLogger struct {
	root  *RunLogger
	bound []Field
}

func (s *sharedRunLogger) Debug(msg string, fields ...Field) {
	if !s.root.verbose {
		return
	}
	s.root.write("DEBUG", msg, append(s.bound, fields...), false)
}

func (s *sharedRunLogger) Info(msg string, fields ...Field) {
	s.root.write("INFO", msg, append(s.bound, fields...), false)
}

func (s *sharedRunLogger) Warn(msg string, fields ...Field) {
	s.root.write("WARNING", msg, append(s.bound, fields...), true)
}

func (s *sharedRunLogger) Error(msg string, fields ...Field) {
	s.root.write("ERROR", msg, append(s.bound, fields...), true)
}

func (s *sharedRunLogger) With(fields ...Field) Logger {
	return &sharedRunLogger{root: s.root, bound: append(append([]Field(nil), s.bound...), fields...)}
}

func (l *RunLogger) write(level, msg string, fields []Field, mirror bool) {
	var b strings.Builder
	b.WriteString(l.now().Format("2006-01-02 15:04:05"))
	b.WriteString(" - ")
	b.WriteString(level)
	b.WriteString(" - ")
	b.WriteString(msg)
	if len(fields) > 0 {
		pairs := make([]string, 0, len(fields))
		for _, f := range fields {
			pairs = append(pairs, fmt.Sprintf("%s=%v", f.Key(), f.Value()))
		}
		sort.Strings(pairs)
		b.WriteString(" ")
		b.WriteString(strings.Join(pairs, " "))
	}
	b.WriteString("\n")

	line := b.String()
	l.mu.Lock()
	defer l.mu.Unlock()
	io.WriteString(l.out, line)
	if mirror && l.mirror != nil {
		io.WriteString(l.mirror, line)
	}
}
