// Command pdfrename renames PDF files in a directory tree after the titles
// extracted from their metadata or text content.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/wudi/pdfrename/config"
	"github.com/wudi/pdfrename/filelock"
	"github.com/wudi/pdfrename/observability"
	"github.com/wudi/pdfrename/ocr/tesseract"
	"github.com/wudi/pdfrename/rename"
)

type options struct {
	dir        string
	configPath string
	logPath    string
	password   string
	ocr        bool
	dryRun     bool
	initConfig bool
	verbose    bool

	// Tracks which flags were set so file values are only overridden
	// explicitly.
	set map[string]bool
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "pdfrename: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "pdfrename: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	opts := options{set: map[string]bool{}}
	fs := flag.NewFlagSet("pdfrename", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: pdfrename [flags] [dir]\n")
		fs.PrintDefaults()
	}
	fs.StringVar(&opts.configPath, "config", config.DefaultPath, "Config file (optional)")
	fs.StringVar(&opts.logPath, "log", "", "Log file (default from config, pdf_renaming.log)")
	fs.StringVar(&opts.password, "password", "", "Password for encrypted PDFs")
	fs.BoolVar(&opts.ocr, "ocr", false, "Enable the OCR fallback strategy")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "Report renames without performing them")
	fs.BoolVar(&opts.initConfig, "init-config", false, "Write a default config file and exit")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose (debug) logging")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })

	switch fs.NArg() {
	case 0:
		opts.dir = "."
	case 1:
		opts.dir = fs.Arg(0)
	default:
		fs.Usage()
		return options{}, fmt.Errorf("at most one directory argument")
	}
	return opts, nil
}

func run(opts options) error {
	if opts.initConfig {
		if err := config.WriteDefault(opts.configPath); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", opts.configPath)
		return nil
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.set["log"] {
		cfg.LogFile = opts.logPath
	}
	if opts.set["password"] {
		cfg.Password = opts.password
	}
	if opts.set["ocr"] {
		cfg.OCR = opts.ocr
	}
	if opts.set["dry-run"] {
		cfg.DryRun = opts.dryRun
	}

	color.NoColor = color.NoColor ||
		!(isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()))

	lock := filelock.New(cfg.LogFile + ".lock")
	if err := lock.TryLock(); err != nil {
		if errors.Is(err, filelock.ErrLocked) {
			return fmt.Errorf("another run is in progress (%s.lock is held)", cfg.LogFile)
		}
		return err
	}
	defer lock.Unlock()

	log, err := observability.NewRunLogger(cfg.LogFile, opts.verbose)
	if err != nil {
		return err
	}
	defer log.Close()

	runnerOpts := rename.Options{
		Password:     cfg.Password,
		MaxNameLen:   cfg.MaxFilenameLength,
		Denylist:     cfg.Denylist,
		DryRun:       cfg.DryRun,
		OCRLanguages: cfg.OCRLanguages,
	}
	if cfg.OCR {
		runnerOpts.OCREngine = tesseract.New()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := rename.NewRunner(runnerOpts, log, rename.NewConsole(os.Stdout))
	if _, err := runner.Run(ctx, opts.dir); err != nil {
		return err
	}
	return nil
}
