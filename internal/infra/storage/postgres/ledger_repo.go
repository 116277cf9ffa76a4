package postgres

import (
	"context"
	"fmt"
	"time"
)

// LedgerRepo implements storage.LedgerRepository using PostgreSQL.
type LedgerRepo struct {
	db *DB
}

// NewLedgerRepo creates a new PostgreSQL ledger repository.
func NewLedgerRepo(db *DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// Exists reports whether signature has a processed record.
func (r *LedgerRepo) Exists(ctx context.Context, signature string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM processed_transactions WHERE signature = $1)`,
		signature,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check signature: %w", classify(err))
	}
	return exists, nil
}

// Insert records signature. It returns false when the record already existed.
func (r *LedgerRepo) Insert(ctx context.Context, signature string, processedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO processed_transactions (signature, processed_at)
		VALUES ($1, $2)
		ON CONFLICT (signature) DO NOTHING
	`, signature, processedAt)
	if err != nil {
		return false, fmt.Errorf("failed to insert signature: %w", classify(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}
	return n == 1, nil
}

// Count returns the number of processed records.
func (r *LedgerRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM processed_transactions`); err != nil {
		return 0, fmt.Errorf("failed to count signatures: %w", err)
	}
	return n, nil
}

// Truncate deletes every processed record.
func (r *LedgerRepo) Truncate(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `TRUNCATE TABLE processed_transactions`); err != nil {
		return fmt.Errorf("failed to truncate ledger: %w", err)
	}
	return nil
}
