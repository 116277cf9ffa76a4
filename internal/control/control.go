package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/votewatch/internal/core/config"
	"github.com/vietddude/votewatch/internal/indexing/health"
	"github.com/vietddude/votewatch/internal/indexing/leaderboard"
	redisclient "github.com/vietddude/votewatch/internal/infra/redis"
	"github.com/vietddude/votewatch/internal/infra/storage"
	"github.com/vietddude/votewatch/internal/infra/storage/file"
	"github.com/vietddude/votewatch/internal/infra/storage/memory"
	"github.com/vietddude/votewatch/internal/infra/storage/postgres"
)

// Config holds the application configuration.
type Config struct {
	Port      int
	Memory    bool // keep every store in process memory
	Solana    config.SolanaConfig
	Indexer   config.IndexerConfig
	RateLimit config.RateLimitConfig
	Retry     config.RetryConfig
	Ledger    config.LedgerConfig
	Cursor    config.CursorConfig
	Roster    config.RosterConfig
	Redis     redisclient.Config
	Database  postgres.Config
}

// FromAppConfig flattens the loaded configuration.
func FromAppConfig(cfg *config.AppConfig, memoryMode bool) Config {
	return Config{
		Port:      cfg.Server.Port,
		Memory:    memoryMode,
		Solana:    cfg.Solana,
		Indexer:   cfg.Indexer,
		RateLimit: cfg.RateLimit,
		Retry:     cfg.Retry,
		Ledger:    cfg.Ledger,
		Cursor:    cfg.Cursor,
		Roster:    cfg.Roster,
		Redis:     cfg.Redis,
		Database:  cfg.Database,
	}
}

// Stores holds the persistence backends selected by the configuration.
type Stores struct {
	Ledger      storage.LedgerRepository
	Cursor      storage.CursorRepository
	Journal     storage.JournalRepository
	Leaderboard leaderboard.Store
	Pingers     map[string]health.Pinger

	db    *postgres.DB
	redis *redisclient.Client
}

// OpenStores connects the configured stores. In memory mode nothing leaves
// the process, so the cursor is not persisted either: a restart replays the
// program history into fresh stores.
func OpenStores(ctx context.Context, cfg Config) (*Stores, error) {
	if cfg.Memory {
		store := memory.NewMemoryStorage()
		slog.Info("Using Memory storage")
		return &Stores{
			Ledger:      memory.NewLedgerRepo(store),
			Cursor:      memory.NewCursorRepo(store),
			Journal:     memory.NewJournalRepo(store),
			Leaderboard: memory.NewLeaderboardStore(),
			Pingers:     map[string]health.Pinger{},
		}, nil
	}

	s := &Stores{Pingers: make(map[string]health.Pinger)}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	s.db = db
	if err := db.Migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.Ledger = postgres.NewLedgerRepo(db)
	s.Pingers["postgres"] = db.Health
	slog.Info("Using PostgreSQL storage")

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.redis = client
	s.Leaderboard = redisclient.NewLeaderboardStore(client)
	s.Pingers["redis"] = client.Ping

	switch cfg.Ledger.Journal.Backend {
	case config.BackendRedis:
		s.Journal = redisclient.NewJournalRepo(client, cfg.Solana.ProgramID)
	default:
		s.Journal = file.NewJournalRepo(cfg.Ledger.Journal.Path)
	}

	switch cfg.Cursor.Backend {
	case config.BackendPostgres:
		s.Cursor = postgres.NewCursorRepo(db)
	default:
		s.Cursor = file.NewCursorRepo(cfg.Cursor.Path)
	}

	slog.Info("Stores ready",
		"journal", cfg.Ledger.Journal.Backend,
		"cursor", cfg.Cursor.Backend,
	)
	return s, nil
}

// StartMetricsCollector publishes connection pool usage while ctx is live.
func (s *Stores) StartMetricsCollector(ctx context.Context) {
	if s.db != nil {
		s.db.StartMetricsCollector(ctx)
	}
}

// Close releases every open connection.
func (s *Stores) Close() error {
	var errs []error
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close db: %w", err))
		}
	}
	return errors.Join(errs...)
}

// storeTimeout bounds one-shot admin operations.
const storeTimeout = 30 * time.Second
