package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("got %+v, want defaults", cfg)
	}
}

func TestLoadMergesOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfrename.yaml")
	body := "log_file: custom.log\ndenylist:\n  - \"internal\"\nocr: true\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogFile != "custom.log" {
		t.Fatalf("log file: %q", cfg.LogFile)
	}
	if !reflect.DeepEqual(cfg.Denylist, []string{"internal"}) {
		t.Fatalf("denylist: %v", cfg.Denylist)
	}
	if !cfg.OCR {
		t.Fatalf("ocr flag not set")
	}
	// Unset keys keep their defaults.
	if cfg.MaxFilenameLength != Default().MaxFilenameLength {
		t.Fatalf("max length: %d", cfg.MaxFilenameLength)
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("log_file: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("malformed file must error")
	}
}

func TestWriteDefaultRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pdfrename.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load written default: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Fatalf("round trip drifted: %+v", cfg)
	}

	if err := WriteDefault(path); err == nil {
		t.Fatalf("must refuse to overwrite")
	}
}
