package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/votewatch/internal/core/domain"
)

// CursorRepo implements storage.CursorRepository using PostgreSQL.
type CursorRepo struct {
	db *DB
}

// NewCursorRepo creates a new PostgreSQL cursor repository.
func NewCursorRepo(db *DB) *CursorRepo {
	return &CursorRepo{db: db}
}

// Get retrieves the cursor for a program. It returns nil when none exists.
func (r *CursorRepo) Get(ctx context.Context, programID string) (*domain.Cursor, error) {
	var row struct {
		ProgramID     string    `db:"program_id"`
		LastSignature string    `db:"last_signature"`
		UpdatedAt     time.Time `db:"updated_at"`
	}
	err := r.db.GetContext(ctx, &row, `
		SELECT program_id, last_signature, updated_at
		FROM indexer_cursors
		WHERE program_id = $1
	`, programID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cursor: %w", err)
	}

	return &domain.Cursor{
		ProgramID:     row.ProgramID,
		LastSignature: row.LastSignature,
		UpdatedAt:     row.UpdatedAt,
	}, nil
}

// Save upserts the cursor.
func (r *CursorRepo) Save(ctx context.Context, cursor *domain.Cursor) error {
	updatedAt := cursor.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO indexer_cursors (program_id, last_signature, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (program_id) DO UPDATE
		SET last_signature = EXCLUDED.last_signature, updated_at = EXCLUDED.updated_at
	`, cursor.ProgramID, cursor.LastSignature, updatedAt)
	if err != nil {
		return fmt.Errorf("failed to save cursor: %w", err)
	}
	return nil
}

// Delete removes the cursor so the next pass lists the full history.
func (r *CursorRepo) Delete(ctx context.Context, programID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM indexer_cursors WHERE program_id = $1`, programID); err != nil {
		return fmt.Errorf("failed to delete cursor: %w", err)
	}
	return nil
}
