package file

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// JournalRepo is an append-only journal with one signature per line.
type JournalRepo struct {
	path string
	mu   sync.Mutex
}

// NewJournalRepo creates a journal backed by path.
func NewJournalRepo(path string) *JournalRepo {
	return &JournalRepo{path: path}
}

// Append adds a line to the journal.
func (r *JournalRepo) Append(ctx context.Context, signature string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create journal directory: %w", err)
	}
	f, err := os.OpenFile(r.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(signature + "\n"); err != nil {
		return fmt.Errorf("failed to append to journal: %w", err)
	}
	return nil
}

// List returns the journal entries in append order.
func (r *JournalRepo) List(ctx context.Context) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read()
}

// Remove deletes one occurrence of each signature and rewrites the file.
func (r *JournalRepo) Remove(ctx context.Context, signatures []string) error {
	if len(signatures) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	entries, err := r.read()
	if err != nil {
		return err
	}

	pending := make(map[string]int, len(signatures))
	for _, sig := range signatures {
		pending[sig]++
	}

	var buf bytes.Buffer
	for _, sig := range entries {
		if pending[sig] > 0 {
			pending[sig]--
			continue
		}
		buf.WriteString(sig)
		buf.WriteByte('\n')
	}
	return writeFileAtomic(r.path, buf.Bytes())
}

// Len returns the number of entries.
func (r *JournalRepo) Len(ctx context.Context) (int, error) {
	entries, err := r.List(ctx)
	return len(entries), err
}

// Clear truncates the journal.
func (r *JournalRepo) Clear(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(r.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove journal: %w", err)
	}
	return nil
}

func (r *JournalRepo) read() ([]string, error) {
	f, err := os.Open(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	var entries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			entries = append(entries, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}
