package rename

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wudi/pdfrename/extractor"
	"github.com/wudi/pdfrename/observability"
	"github.com/wudi/pdfrename/ocr"
	"github.com/wudi/pdfrename/parser"
	"github.com/wudi/pdfrename/recovery"
)

const skipReason = "No change or already exists"

// Stats tallies one run.
type Stats struct {
	Total     int
	Processed int
	Renamed   int
	Skipped   int
	Failed    int
}

// Options configures a run. The zero value is usable: default denylist,
// default name length, OCR disabled.
type Options struct {
	// Password authenticates encrypted documents after the empty password
	// is tried.
	Password string
	// MaxNameLen bounds sanitized titles; <= 0 means DefaultMaxFilename.
	MaxNameLen int
	// Denylist overrides DefaultDenylist for the metadata strategy when
	// non-nil.
	Denylist []string
	// OCREngine, when non-nil, appends the OCR strategy after the text
	// strategies.
	OCREngine    ocr.Engine
	OCRLanguages []string
	// DryRun reports every decision without touching the filesystem.
	DryRun bool
}

// Runner walks a directory tree and renames PDF files after their derived
// titles. All per-file failures degrade to logged warnings; the only fatal
// condition is a missing root directory.
type Runner struct {
	opts     Options
	log      observability.Logger
	console  *Console
	selector *Selector
}

func NewRunner(opts Options, log observability.Logger, console *Console) *Runner {
	if log == nil {
		log = observability.NopLogger{}
	}
	if console == nil {
		console = NewConsole(nil)
	}
	strategies := []Strategy{
		&MetadataStrategy{Denylist: opts.Denylist, Log: log},
		&FirstTextStrategy{Log: log},
		&RegexStrategy{Log: log},
	}
	if opts.OCREngine != nil {
		strategies = append(strategies, &OCRStrategy{
			Engine:    opts.OCREngine,
			Languages: opts.OCRLanguages,
			Log:       log,
		})
	}
	return &Runner{
		opts:     opts,
		log:      log,
		console:  console,
		selector: &Selector{Strategies: strategies, Log: log},
	}
}

// Discover returns every *.pdf under root (case-insensitive extension) in
// lexicographic order. Unreadable subtrees are logged and skipped.
func (r *Runner) Discover(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			r.log.Warn("cannot read entry",
				observability.String("path", path), observability.Error("err", err))
			return nil
		}
		if d.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// Run processes every PDF under root sequentially, sharing one collision
// table for the whole run. Context cancellation stops the run cleanly
// between files.
func (r *Runner) Run(ctx context.Context, root string) (Stats, error) {
	var stats Stats

	if _, err := os.Stat(root); err != nil {
		r.log.Error("directory does not exist", observability.String("path", root))
		return stats, fmt.Errorf("directory %s does not exist", root)
	}

	files, err := r.Discover(root)
	if err != nil {
		r.log.Error("file discovery failed", observability.Error("err", err))
		return stats, fmt.Errorf("discover %s: %w", root, err)
	}
	stats.Total = len(files)
	r.log.Info("run started",
		observability.String("root", root), observability.Int("files", stats.Total))

	table := NewCollisionTable()
	for _, path := range files {
		if ctx.Err() != nil {
			r.log.Warn("interrupted")
			break
		}
		r.processFile(ctx, path, table, &stats)
	}

	r.log.Info("run finished",
		observability.Int("processed", stats.Processed),
		observability.Int("renamed", stats.Renamed),
		observability.Int("skipped", stats.Skipped),
		observability.Int("failed", stats.Failed))
	r.console.Summary(stats)
	return stats, nil
}

func (r *Runner) processFile(ctx context.Context, path string, table *CollisionTable, stats *Stats) {
	name := filepath.Base(path)

	// An earlier rename in this run may have consumed the path. Such files
	// get only the log warning, no console line.
	if _, err := os.Stat(path); err != nil {
		r.log.Warn("file not found, skipping", observability.String("path", path))
		stats.Skipped++
		return
	}

	stats.Processed++
	r.console.Processing(name)

	stem := strings.TrimSuffix(name, filepath.Ext(name))
	title := r.deriveTitle(ctx, path, stem)
	safe := Sanitize(title, r.opts.MaxNameLen)

	if safe == "" || strings.EqualFold(safe, Untitled) {
		r.log.Debug("no usable title, keeping name", observability.String("path", path))
		r.console.Skipping(name, skipReason)
		stats.Skipped++
		return
	}

	target := filepath.Join(filepath.Dir(path), table.Claim(safe, ".pdf"))
	if target == path {
		r.console.Skipping(name, skipReason)
		stats.Skipped++
		return
	}
	if _, err := os.Stat(target); err == nil {
		r.console.Skipping(name, skipReason)
		stats.Skipped++
		return
	}

	if r.opts.DryRun {
		r.log.Info(fmt.Sprintf("would rename %s -> %s", name, filepath.Base(target)))
		r.console.WouldRename(name, filepath.Base(target))
		stats.Renamed++
		return
	}
	if err := os.Rename(path, target); err != nil {
		r.log.Error("rename failed",
			observability.String("path", path), observability.Error("err", err))
		stats.Failed++
		return
	}
	r.log.Info(fmt.Sprintf("renamed %s -> %s", name, filepath.Base(target)))
	r.console.Renamed(name, filepath.Base(target))
	stats.Renamed++
}

// deriveTitle opens the document and runs the strategy chain. Any open or
// authentication failure is logged and falls through to the stem.
func (r *Runner) deriveTitle(ctx context.Context, path, stem string) string {
	doc, err := parser.Open(ctx, path, parser.Config{
		Recovery: recovery.NewLenientStrategy(),
		Password: r.opts.Password,
	})
	if err != nil {
		r.log.Warn("cannot open document",
			observability.String("path", path), observability.Error("err", err))
		return r.selector.Select(ctx, nil, stem)
	}
	defer doc.Close()
	return r.selector.Select(ctx, extractor.New(doc), stem)
}
