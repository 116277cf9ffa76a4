package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/votewatch/internal/indexing/ledger"
)

// Replayer is the journal replay target.
type Replayer interface {
	Replay(ctx context.Context) (ledger.ReplayResult, error)
}

// JournalReplayer periodically replays failed ledger writes.
type JournalReplayer struct {
	target   Replayer
	interval time.Duration
	log      *slog.Logger
}

// NewJournalReplayer creates a new replay worker.
func NewJournalReplayer(target Replayer, interval time.Duration) *JournalReplayer {
	return &JournalReplayer{
		target:   target,
		interval: interval,
		log:      slog.Default().With("component", "journal-replayer"),
	}
}

// Start runs the replay loop until ctx is done.
func (r *JournalReplayer) Start(ctx context.Context) {
	if r.interval <= 0 {
		return // Replay disabled
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	// Initial replay picks up entries left by a previous run
	r.replay(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.replay(ctx)
		}
	}
}

func (r *JournalReplayer) replay(ctx context.Context) {
	if _, err := r.target.Replay(ctx); err != nil && ctx.Err() == nil {
		r.log.Error("Journal replay failed", "error", err)
	}
}
