// Package bootstrap seeds the on-disk layout a fresh herald install expects:
// the data directory and an annotated starter config file.
package bootstrap

import (
	"embed"
	"os"
	"path/filepath"
)

//go:embed templates/herald.json5
var templateFS embed.FS

// ConfigTemplate is the embedded starter config file name.
const ConfigTemplate = "herald.json5"

// ReadTemplate returns the content of an embedded template file.
func ReadTemplate(name string) (string, error) {
	content, err := templateFS.ReadFile(filepath.Join("templates", name))
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// EnsureDataDir creates the directory that will hold the sqlite database.
func EnsureDataDir(dbPath string) error {
	return os.MkdirAll(filepath.Dir(dbPath), 0o755)
}

// EnsureConfigFile writes the starter config to path if nothing is there yet.
// An existing file is never overwritten. Returns true when the file was
// created.
func EnsureConfigFile(path string) (bool, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, err
		}
	}

	// O_EXCL so a concurrent or repeated init cannot clobber user edits.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	content, err := templateFS.ReadFile(filepath.Join("templates", ConfigTemplate))
	if err != nil {
		os.Remove(path)
		return false, err
	}
	if _, err := f.Write(content); err != nil {
		return false, err
	}
	return true, nil
}
