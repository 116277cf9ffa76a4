package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/vietddude/votewatch/internal/core/cursor"
	"github.com/vietddude/votewatch/internal/core/worker"
	"github.com/vietddude/votewatch/internal/indexing/events"
	"github.com/vietddude/votewatch/internal/indexing/health"
	"github.com/vietddude/votewatch/internal/indexing/indexer"
	"github.com/vietddude/votewatch/internal/indexing/leaderboard"
	"github.com/vietddude/votewatch/internal/indexing/ledger"
	"github.com/vietddude/votewatch/internal/indexing/throttle"
	"github.com/vietddude/votewatch/internal/infra/roster"
	"github.com/vietddude/votewatch/internal/infra/rpc"
	"github.com/vietddude/votewatch/internal/infra/rpc/solana"
)

// Watcher is the main application struct that manages the indexer lifecycle.
type Watcher struct {
	cfg          Config
	stores       *Stores
	ledger       *ledger.Ledger
	cursor       *cursor.Manager
	board        *leaderboard.Aggregator
	indexer      *indexer.Pipeline
	replayer     *worker.JournalReplayer
	subscriber   *solana.LogSubscriber
	healthMon    *health.Monitor
	healthServer *health.Server
	log          *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWatcher creates a new Watcher instance with all dependencies initialized.
func NewWatcher(ctx context.Context, cfg Config) (*Watcher, error) {
	// 1. Storage
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	w, err := newWatcher(ctx, cfg, stores)
	if err != nil {
		_ = stores.Close()
		return nil, err
	}
	return w, nil
}

func newWatcher(ctx context.Context, cfg Config, stores *Stores) (*Watcher, error) {
	programID := cfg.Solana.ProgramID

	// 2. Upstream: one limiter shared by every call the process makes
	limiter := throttle.NewLimiter(throttle.Config{
		Limit:  cfg.RateLimit.Requests,
		Window: cfg.RateLimit.Window,
	})
	provider := solana.NewHTTPProvider(cfg.Solana.RPCURL, cfg.Solana.Commitment, cfg.Solana.Timeout)
	client := rpc.NewClient(provider, limiter, rpc.RetryConfig{
		MaxRetries:   cfg.Retry.MaxRetries,
		InitialDelay: cfg.Retry.InitialDelay,
		MaxDelay:     cfg.Retry.MaxDelay,
	})

	// 3. Ledger and cursor
	led := ledger.New(stores.Ledger, stores.Journal, ledger.Config{
		MaxWriteAttempts: cfg.Ledger.MaxWriteAttempts,
		WriteRetryDelay:  cfg.Ledger.WriteRetryDelay,
	})
	cursorMgr := cursor.NewManager(stores.Cursor, programID)

	// 4. Roster and leaderboard
	rost, err := loadRoster(ctx, cfg)
	if err != nil {
		return nil, err
	}
	board := leaderboard.NewAggregator(stores.Leaderboard, rost)
	if err := board.Seed(ctx, cfg.Roster.ContestID); err != nil {
		return nil, fmt.Errorf("failed to seed leaderboard: %w", err)
	}

	// 5. Indexer pipeline
	pipeline := indexer.NewPipeline(indexer.Config{
		ProgramID:    programID,
		Fetcher:      client,
		Ledger:       led,
		Dispatcher:   events.NewDispatcher(nil, board),
		Cursor:       cursorMgr,
		ScanInterval: cfg.Indexer.ScanInterval,
		PageSize:     cfg.Indexer.PageSize,
		Workers:      cfg.Indexer.Workers,
	})

	var subscriber *solana.LogSubscriber
	if cfg.Solana.WSURL != "" {
		subscriber = solana.NewLogSubscriber(cfg.Solana.WSURL, programID, cfg.Solana.Commitment, solana.DefaultWSConfig())
	}

	// 6. Health
	healthMon := health.NewMonitor(
		pipeline,
		led,
		stores.Pingers,
		health.DefaultThresholds(cfg.Indexer.ScanInterval),
	)

	return &Watcher{
		cfg:          cfg,
		stores:       stores,
		ledger:       led,
		cursor:       cursorMgr,
		board:        board,
		indexer:      pipeline,
		replayer:     worker.NewJournalReplayer(led, cfg.Ledger.ReplayInterval),
		subscriber:   subscriber,
		healthMon:    healthMon,
		healthServer: health.NewServer(healthMon, cfg.Port),
		log:          slog.Default().With("component", "watcher"),
	}, nil
}

func loadRoster(ctx context.Context, cfg Config) (*leaderboard.Roster, error) {
	if cfg.Roster.URL == "" {
		slog.Warn("No roster url configured, leaderboard entries carry no metadata")
		return leaderboard.NewRoster(nil), nil
	}
	src := roster.NewClient(cfg.Roster.URL, cfg.Roster.Limit, cfg.Roster.Timeout)
	r, err := leaderboard.LoadRoster(ctx, src)
	if err != nil {
		return nil, err
	}
	slog.Info("Loaded contestant roster", "count", r.Len())
	return r, nil
}

// Leaderboard returns the read side served to the HTTP API.
func (w *Watcher) Leaderboard() leaderboard.Reader {
	return w.board
}

// Start starts the watcher and all its components.
func (w *Watcher) Start(ctx context.Context) error {
	ctx, w.cancel = context.WithCancel(ctx)

	// Health server
	w.spawn(func() {
		if err := w.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.log.Error("Health server failed", "error", err)
		}
	})

	w.stores.StartMetricsCollector(ctx)

	w.log.Info("Starting indexer", "program", w.cfg.Solana.ProgramID)
	w.spawn(func() {
		if err := w.indexer.Start(ctx); err != nil {
			w.log.Error("Indexer failed", "error", err)
		}
	})

	w.spawn(func() { w.replayer.Start(ctx) })

	if w.subscriber != nil {
		w.log.Info("Starting log subscriber", "endpoint", w.cfg.Solana.WSURL)
		w.spawn(func() {
			err := w.subscriber.Run(ctx, func(n solana.LogNotification) {
				if n.Failed {
					return
				}
				w.log.Debug("Program activity, waking indexer", "signature", n.Signature, "slot", n.Slot)
				w.indexer.Wake()
			})
			if err != nil {
				w.log.Error("Log subscriber failed", "error", err)
			}
		})
	}

	return nil
}

func (w *Watcher) spawn(fn func()) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// Stop stops the watcher. The next start resumes from the persisted cursor.
func (w *Watcher) Stop(ctx context.Context) error {
	w.log.Info("Stopping Watcher...")

	_ = w.indexer.Stop()
	if w.cancel != nil {
		w.cancel()
	}

	serverErr := w.healthServer.Stop(ctx)

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.log.Warn("Shutdown deadline reached before workers exited", "error", ctx.Err())
	}

	if err := w.stores.Close(); err != nil {
		w.log.Warn("Failed to close stores", "error", err)
	}
	return serverErr
}
