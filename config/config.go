// Package config loads the tool's YAML configuration file. A missing file is
// not an error; defaults apply. A malformed file is.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/wudi/pdfrename/filelock"
	"github.com/wudi/pdfrename/rename"
)

// DefaultPath is looked up when no -config flag is given.
const DefaultPath = "pdfrename.yaml"

// Config holds every file-configurable knob. CLI flags override these.
type Config struct {
	// LogFile receives the run log. The lock file is derived from it.
	LogFile string `yaml:"log_file"`

	// Password authenticates encrypted documents after the empty password
	// fails.
	Password string `yaml:"password"`

	// MaxFilenameLength bounds sanitized titles.
	MaxFilenameLength int `yaml:"max_filename_length"`

	// Denylist lists substrings that disqualify a metadata title,
	// matched case-insensitively.
	Denylist []string `yaml:"denylist"`

	// OCR enables the Tesseract fallback strategy for scanned documents.
	OCR bool `yaml:"ocr"`

	// OCRLanguages passes trained-data hints to the OCR engine.
	OCRLanguages []string `yaml:"ocr_languages"`

	// DryRun reports rename decisions without performing them.
	DryRun bool `yaml:"dry_run"`
}

// Default returns the configuration used when no file and no flags are given.
func Default() *Config {
	return &Config{
		LogFile:           "pdf_renaming.log",
		MaxFilenameLength: rename.DefaultMaxFilename,
		Denylist:          append([]string(nil), rename.DefaultDenylist...),
	}
}

// Load reads path and merges it over the defaults. A missing file yields the
// defaults without error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	if cfg.MaxFilenameLength <= 0 {
		cfg.MaxFilenameLength = rename.DefaultMaxFilename
	}
	if cfg.LogFile == "" {
		cfg.LogFile = "pdf_renaming.log"
	}
	return cfg, nil
}

const initTemplate = `# pdfrename configuration.
# CLI flags override any value set here.

# Run log (append-only). The run lock is taken on "<log_file>.lock".
log_file: %s

# Password for encrypted documents. The empty user password is always tried
# first.
password: ""

# Maximum length of a generated filename, in characters. Titles are cut at
# word boundaries, never mid-word.
max_filename_length: %d

# Metadata titles containing any of these substrings (case-insensitive) are
# treated as placeholders and skipped.
denylist:
%s
# Enable the OCR fallback for scanned documents (requires a local Tesseract
# installation).
ocr: false
# ocr_languages: ["eng"]

# Report rename decisions without touching the filesystem.
dry_run: false
`

// WriteDefault writes a commented default configuration to path atomically.
// It refuses to overwrite an existing file.
func WriteDefault(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	cfg := Default()
	var denylist string
	for _, phrase := range cfg.Denylist {
		denylist += fmt.Sprintf("  - %q\n", phrase)
	}
	body := fmt.Sprintf(initTemplate, cfg.LogFile, cfg.MaxFilenameLength, denylist)
	if err := filelock.AtomicWrite(path, []byte(body)); err != nil {
		return fmt.Errorf("write default config: %w", err)
	}
	return nil
}
