package bootstrap

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEnsureConfigFileCreatesOnce(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "herald.json5")

	created, err := EnsureConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !created {
		t.Fatal("first call should create the file")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "debounce_window_ms") {
		t.Fatal("seeded config missing expected keys")
	}

	// Never overwrite user edits.
	if err := os.WriteFile(path, []byte("{ edited: true }"), 0o644); err != nil {
		t.Fatal(err)
	}
	created, err = EnsureConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if created {
		t.Fatal("second call reported creation")
	}
	data, _ = os.ReadFile(path)
	if string(data) != "{ edited: true }" {
		t.Fatal("existing file was overwritten")
	}
}

func TestEnsureDataDir(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "herald.db")
	if err := EnsureDataDir(dbPath); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Dir(dbPath))
	if err != nil || !info.IsDir() {
		t.Fatalf("data dir not created: %v", err)
	}
}

func TestReadTemplate(t *testing.T) {
	content, err := ReadTemplate(ConfigTemplate)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(content, "rate_per_minute") {
		t.Fatal("template content unexpected")
	}
}
