package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hyperjump/kenkyu/internal/models"
)

// Persistence loads and saves the whole record collection.
type Persistence interface {
	Load() ([]models.ChunkRecord, error)
	Save(records []models.ChunkRecord) error
}

// FileSnapshot persists records as one JSON array on disk. Every Save rewrites
// the whole file through a temp file and rename, so readers never see a torn file.
// It does not lock: two processes saving the same path can lose each other's updates.
type FileSnapshot struct {
	path string
}

// NewFileSnapshot returns a snapshot persisted at path.
func NewFileSnapshot(path string) *FileSnapshot {
	return &FileSnapshot{path: path}
}

// Path returns the snapshot location.
func (f *FileSnapshot) Path() string { return f.path }

// Load reads the snapshot. A missing or empty file is an empty store; a file
// that cannot be parsed returns ErrCorruptSnapshot.
func (f *FileSnapshot) Load() ([]models.ChunkRecord, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var records []models.ChunkRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrCorruptSnapshot, f.path, err)
	}
	for i := range records {
		if records[i].AuthorIDs == nil {
			records[i].AuthorIDs = []string{}
		}
	}
	return records, nil
}

// Save overwrites the snapshot with records.
func (f *FileSnapshot) Save(records []models.ChunkRecord) error {
	if records == nil {
		records = []models.ChunkRecord{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace snapshot: %w", err)
	}
	return nil
}
