// Package file keeps the cursor and the failure journal in local files.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vietddude/votewatch/internal/core/domain"
)

// CursorRepo stores a single cursor as {"lastSignature": ...} in a JSON file.
type CursorRepo struct {
	path string
	mu   sync.Mutex
}

// NewCursorRepo creates a cursor repository backed by path.
func NewCursorRepo(path string) *CursorRepo {
	return &CursorRepo{path: path}
}

// Get reads the cursor. A missing file means no cursor.
func (r *CursorRepo) Get(ctx context.Context, programID string) (*domain.Cursor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cursor file: %w", err)
	}

	var c domain.Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse cursor file: %w", err)
	}
	if c.LastSignature == "" {
		return nil, nil
	}
	if c.ProgramID != "" && c.ProgramID != programID {
		return nil, fmt.Errorf("cursor file %s belongs to program %s", r.path, c.ProgramID)
	}
	c.ProgramID = programID
	return &c, nil
}

// Save atomically replaces the cursor file.
func (r *CursorRepo) Save(ctx context.Context, cursor *domain.Cursor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *cursor
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cursor: %w", err)
	}
	return writeFileAtomic(r.path, data)
}

// Delete removes the cursor file.
func (r *CursorRepo) Delete(ctx context.Context, programID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove cursor file: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory and renames it over path.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
