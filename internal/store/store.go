// Package store persists per-authority records as one JSON file per
// jurisdiction code under the output directory.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"emergency-dispatch/internal/models"
)

// recordName matches persisted record files: a six-digit code plus ".json".
var recordName = regexp.MustCompile(`^([0-9]{6})\.json$`)

// Dir is a directory of persisted records.
type Dir struct {
	path   string
	logger *slog.Logger
}

// Open returns a Dir rooted at path, creating the directory if needed.
func Open(path string, logger *slog.Logger) (*Dir, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory %s: %w", path, err)
	}
	return &Dir{path: path, logger: logger}, nil
}

// Path returns the directory path.
func (d *Dir) Path() string { return d.path }

// File returns the path of name inside the directory.
func (d *Dir) File(name string) string { return filepath.Join(d.path, name) }

// Write persists rec as {code}.json, replacing any earlier record of that code.
func (d *Dir) Write(rec models.Record) error {
	if !recordName.MatchString(rec.Code + ".json") {
		return fmt.Errorf("invalid jurisdiction code %q", rec.Code)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", rec.Code, err)
	}
	return WriteFile(d.File(rec.Code+".json"), data)
}

// Remove deletes the record of code. A missing record is not an error.
func (d *Dir) Remove(code string) error {
	err := os.Remove(d.File(code + ".json"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove record %s: %w", code, err)
	}
	return nil
}

// Load reads every persisted record in jurisdiction-code order.
// Files that cannot be read or decoded are skipped with a warning.
func (d *Dir) Load() ([]models.Record, error) {
	codes, err := d.Codes()
	if err != nil {
		return nil, err
	}
	records := make([]models.Record, 0, len(codes))
	for _, code := range codes {
		data, err := os.ReadFile(d.File(code + ".json"))
		if err != nil {
			d.logger.Warn("Skipping unreadable record", "code", code, "error", err)
			continue
		}
		var rec models.Record
		if err := json.Unmarshal(data, &rec); err != nil {
			d.logger.Warn("Skipping malformed record", "code", code, "error", err)
			continue
		}
		if rec.Code != code {
			d.logger.Warn("Record code does not match file name", "file", code+".json", "code", rec.Code)
			rec.Code = code
		}
		records = append(records, rec)
	}
	return records, nil
}

// Codes lists the jurisdiction codes of persisted records, sorted.
func (d *Dir) Codes() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if err != nil {
		return nil, fmt.Errorf("read output directory %s: %w", d.path, err)
	}
	var codes []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if m := recordName.FindStringSubmatch(e.Name()); m != nil {
			codes = append(codes, m[1])
		}
	}
	sort.Strings(codes)
	return codes, nil
}

// WriteFile writes data to path through a temporary file and a rename,
// so readers never observe a partially written artifact.
func WriteFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}
