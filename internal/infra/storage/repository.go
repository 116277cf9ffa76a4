package storage

import (
	"context"
	"errors"
	"time"

	"github.com/vietddude/votewatch/internal/core/domain"
)

// ErrPermanent marks store errors that retrying cannot fix, such as a missing
// table or a constraint violation.
var ErrPermanent = errors.New("permanent store error")

// LedgerRepository stores processed transaction signatures.
type LedgerRepository interface {
	// Exists reports whether a signature was recorded
	Exists(ctx context.Context, signature string) (bool, error)

	// Insert records a signature; false means it was already present
	Insert(ctx context.Context, signature string, processedAt time.Time) (bool, error)

	// Count returns the number of recorded signatures
	Count(ctx context.Context) (int64, error)

	// Truncate deletes every record (full reset only)
	Truncate(ctx context.Context) error
}

// CursorRepository handles cursor storage operations
type CursorRepository interface {
	// Get retrieves the cursor for a program, nil if none was saved
	Get(ctx context.Context, programID string) (*domain.Cursor, error)

	// Save saves/updates the cursor
	Save(ctx context.Context, cursor *domain.Cursor) error

	// Delete removes the cursor
	Delete(ctx context.Context, programID string) error
}

// JournalRepository is the append-only list of signatures whose ledger
// write failed.
type JournalRepository interface {
	// Append adds a signature to the end of the journal
	Append(ctx context.Context, signature string) error

	// List returns the journal in append order
	List(ctx context.Context) ([]string, error)

	// Remove deletes one occurrence of each given signature
	Remove(ctx context.Context, signatures []string) error

	// Len returns the number of entries
	Len(ctx context.Context) (int, error)

	// Clear deletes every entry
	Clear(ctx context.Context) error
}
