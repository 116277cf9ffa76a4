package indexer

import (
	"context"
	"time"

	"github.com/vietddude/votewatch/internal/core/cursor"
	"github.com/vietddude/votewatch/internal/core/domain"
	"github.com/vietddude/votewatch/internal/infra/rpc/solana"
)

// Indexer is the main orchestrator that coordinates all components
type Indexer interface {
	// Start runs passes on every tick and wake-up until ctx is done
	Start(ctx context.Context) error

	// Stop gracefully stops the indexer
	Stop() error

	// RunPass lists and applies everything newer than the cursor once
	RunPass(ctx context.Context) (PassResult, error)

	// Wake requests a pass before the next tick
	Wake()

	// GetStatus returns current indexing status
	GetStatus() Status
}

// Fetcher is the rate-limited, retrying upstream.
type Fetcher interface {
	ListSignatures(ctx context.Context, address string, opts solana.SignaturesOpts) ([]domain.SignatureInfo, error)
	GetTransaction(ctx context.Context, signature string) (*domain.Transaction, error)
}

// Ledger records applied signatures.
type Ledger interface {
	IsProcessed(ctx context.Context, signature string) (bool, error)
	MarkProcessed(ctx context.Context, signature string) error
}

// Dispatcher applies the decoded events of one transaction.
type Dispatcher interface {
	DispatchAll(ctx context.Context, envs []domain.Envelope) error
}

// Config holds indexer configuration
type Config struct {
	ProgramID    string
	Fetcher      Fetcher
	Ledger       Ledger
	Dispatcher   Dispatcher
	Cursor       *cursor.Manager
	ScanInterval time.Duration
	PageSize     int
	Workers      int
}

// PassResult summarises one pass.
type PassResult struct {
	ID       string        `json:"id"`
	Listed   int           `json:"listed"`
	Applied  int           `json:"applied"`
	Skipped  int           `json:"skipped"`
	Missed   int           `json:"missed"`
	Failed   int           `json:"failed"`
	Cursor   string        `json:"cursor"`
	Duration time.Duration `json:"duration"`
}

// Complete reports whether every listed signature was committed.
func (r PassResult) Complete() bool {
	return r.Missed == 0 && r.Failed == 0
}

type Status struct {
	ProgramID       string              `json:"programId"`
	Running         bool                `json:"running"`
	State           string              `json:"state"`
	StateDetail     string              `json:"stateDetail"`
	Cursor          string              `json:"cursor"`
	LastPass        *PassResult         `json:"lastPass,omitempty"`
	LastPassAt      *time.Time          `json:"lastPassAt,omitempty"`
	LastError       string              `json:"lastError,omitempty"`
	AveragePassTime string              `json:"averagePassTime"`
	StateHistory    []cursor.Transition `json:"stateHistory"`
}
