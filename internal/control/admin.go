package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/votewatch/internal/core/cursor"
	"github.com/vietddude/votewatch/internal/indexing/leaderboard"
	"github.com/vietddude/votewatch/internal/indexing/ledger"
)

// StatusReport is a point-in-time view of the persisted indexing state.
type StatusReport struct {
	ProgramID   string
	ContestID   string
	Cursor      string
	Processed   int64
	JournalSize int
	TotalVotes  int64
}

// Reset wipes the ledger, the failure journal, every leaderboard key and the
// cursor, so the next run re-indexes the program from its first transaction.
func Reset(ctx context.Context, cfg Config) error {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = stores.Close()
	}()
	return resetStores(ctx, cfg, stores)
}

func resetStores(ctx context.Context, cfg Config, stores *Stores) error {
	led := ledger.New(stores.Ledger, stores.Journal, ledger.DefaultConfig())
	if err := led.Reset(ctx); err != nil {
		return err
	}
	if err := leaderboard.NewAggregator(stores.Leaderboard, nil).Reset(ctx); err != nil {
		return err
	}
	if err := cursor.NewManager(stores.Cursor, cfg.Solana.ProgramID).Reset(ctx); err != nil {
		return err
	}
	slog.Info("Indexer state wiped", "program", cfg.Solana.ProgramID)
	return nil
}

// ReadStatus reports the persisted cursor, ledger size, journal backlog and
// vote total of the configured contest.
func ReadStatus(ctx context.Context, cfg Config) (*StatusReport, error) {
	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = stores.Close()
	}()
	return readStatus(ctx, cfg, stores)
}

func readStatus(ctx context.Context, cfg Config, stores *Stores) (*StatusReport, error) {
	report := &StatusReport{
		ProgramID: cfg.Solana.ProgramID,
		ContestID: cfg.Roster.ContestID,
	}

	last, err := cursor.NewManager(stores.Cursor, cfg.Solana.ProgramID).Load(ctx)
	if err != nil {
		return nil, err
	}
	report.Cursor = last

	led := ledger.New(stores.Ledger, stores.Journal, ledger.DefaultConfig())
	if report.Processed, err = led.Count(ctx); err != nil {
		return nil, fmt.Errorf("failed to count ledger: %w", err)
	}
	if report.JournalSize, err = led.JournalLen(ctx); err != nil {
		return nil, fmt.Errorf("failed to read journal size: %w", err)
	}

	board, err := leaderboard.NewAggregator(stores.Leaderboard, nil).GetLeaderboard(ctx, cfg.Roster.ContestID, 1, 1)
	if err != nil {
		return nil, err
	}
	report.TotalVotes = board.TotalVotes
	return report, nil
}
