// Package ledger records which transaction signatures have been applied.
//
// A signature is written once its events are applied. Store writes that keep
// failing are appended to a failure journal instead of failing the caller,
// and Replay retries them later.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/vietddude/votewatch/internal/indexing/metrics"
	"github.com/vietddude/votewatch/internal/infra/storage"
)

// Config controls ledger write retries.
type Config struct {
	MaxWriteAttempts int
	WriteRetryDelay  time.Duration
}

// DefaultConfig returns the default ledger configuration.
func DefaultConfig() Config {
	return Config{
		MaxWriteAttempts: 3,
		WriteRetryDelay:  200 * time.Millisecond,
	}
}

// ReplayResult summarises one journal replay.
type ReplayResult struct {
	Replayed  int
	Failed    int
	Remaining int
}

// Ledger is the idempotent processed-signature store.
type Ledger struct {
	repo    storage.LedgerRepository
	journal storage.JournalRepository
	cfg     Config
	now     func() time.Time
	log     *slog.Logger
}

// New creates a ledger over repo, journaling failed writes to journal.
func New(repo storage.LedgerRepository, journal storage.JournalRepository, cfg Config) *Ledger {
	if cfg.MaxWriteAttempts <= 0 {
		cfg.MaxWriteAttempts = 1
	}
	if cfg.WriteRetryDelay <= 0 {
		cfg.WriteRetryDelay = DefaultConfig().WriteRetryDelay
	}
	return &Ledger{
		repo:    repo,
		journal: journal,
		cfg:     cfg,
		now:     time.Now,
		log:     slog.Default().With("component", "ledger"),
	}
}

// IsProcessed reports whether signature was already applied.
func (l *Ledger) IsProcessed(ctx context.Context, signature string) (bool, error) {
	ok, err := l.repo.Exists(ctx, signature)
	if err != nil {
		return false, fmt.Errorf("failed to check ledger: %w", err)
	}
	return ok, nil
}

// MarkProcessed records signature. A signature that is already recorded is a
// no-op. When every write attempt fails the signature is journaled and nil is
// returned; an error means the journal append failed too.
func (l *Ledger) MarkProcessed(ctx context.Context, signature string) error {
	err := l.write(ctx, signature)
	if err == nil {
		return nil
	}

	metrics.LedgerWriteFailures.Inc()

	// The journal must be written even if the caller is shutting down.
	if jerr := l.journal.Append(context.WithoutCancel(ctx), signature); jerr != nil {
		return fmt.Errorf("failed to journal signature %s: %w", signature, errors.Join(err, jerr))
	}
	metrics.JournalSize.Inc()

	l.log.Warn("Ledger write failed, signature journaled",
		"signature", signature,
		"attempts", l.cfg.MaxWriteAttempts,
		"error", err,
	)
	return nil
}

func (l *Ledger) write(ctx context.Context, signature string) error {
	backoff := retry.WithMaxRetries(
		uint64(l.cfg.MaxWriteAttempts-1),
		retry.NewConstant(l.cfg.WriteRetryDelay),
	)
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		inserted, err := l.repo.Insert(ctx, signature, l.now())
		if errors.Is(err, storage.ErrPermanent) {
			return err
		}
		if err != nil {
			return retry.RetryableError(err)
		}
		if !inserted {
			l.log.Debug("Signature already recorded", "signature", signature)
		}
		return nil
	})
}

// Replay retries every journaled signature once and removes the ones that
// were written. Entries appended while Replay runs are left for the next call.
func (l *Ledger) Replay(ctx context.Context) (ReplayResult, error) {
	entries, err := l.journal.List(ctx)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("failed to read journal: %w", err)
	}

	var (
		result ReplayResult
		done   []string
	)
	for _, sig := range entries {
		if ctx.Err() != nil {
			break
		}
		if _, err := l.repo.Insert(ctx, sig, l.now()); err != nil {
			result.Failed++
			metrics.JournalReplayed.WithLabelValues("failed").Inc()
			l.log.Debug("Journal replay write failed", "signature", sig, "error", err)
			continue
		}
		done = append(done, sig)
		metrics.JournalReplayed.WithLabelValues("success").Inc()
	}

	if err := l.journal.Remove(context.WithoutCancel(ctx), done); err != nil {
		return result, fmt.Errorf("failed to trim journal: %w", err)
	}
	result.Replayed = len(done)

	remaining, err := l.journal.Len(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to read journal size: %w", err)
	}
	result.Remaining = remaining
	metrics.JournalSize.Set(float64(remaining))

	if len(entries) > 0 {
		l.log.Info("Journal replayed",
			"replayed", result.Replayed,
			"failed", result.Failed,
			"remaining", result.Remaining,
		)
	}
	return result, nil
}

// Count returns the number of recorded signatures.
func (l *Ledger) Count(ctx context.Context) (int64, error) {
	return l.repo.Count(ctx)
}

// JournalLen returns the number of signatures waiting for replay.
func (l *Ledger) JournalLen(ctx context.Context) (int, error) {
	return l.journal.Len(ctx)
}

// Reset deletes every processed record and journal entry.
func (l *Ledger) Reset(ctx context.Context) error {
	if err := l.repo.Truncate(ctx); err != nil {
		return fmt.Errorf("failed to truncate ledger: %w", err)
	}
	if err := l.journal.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear journal: %w", err)
	}
	metrics.JournalSize.Set(0)
	return nil
}
