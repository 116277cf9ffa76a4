package config

import (
	"errors"
	"fmt"
	"time"

	redisclient "github.com/vietddude/votewatch/internal/infra/redis"
	"github.com/vietddude/votewatch/internal/infra/storage/postgres"
)

// Storage backends for the cursor and the failure journal.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Solana    SolanaConfig       `yaml:"solana"`
	Indexer   IndexerConfig      `yaml:"indexer"`
	RateLimit RateLimitConfig    `yaml:"rate_limit"`
	Retry     RetryConfig        `yaml:"retry"`
	Ledger    LedgerConfig       `yaml:"ledger"`
	Cursor    CursorConfig       `yaml:"cursor"`
	Roster    RosterConfig       `yaml:"roster"`
	Database  postgres.Config    `yaml:"database"`
	Redis     redisclient.Config `yaml:"redis"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// SolanaConfig holds upstream RPC settings.
type SolanaConfig struct {
	RPCURL     string        `yaml:"rpc_url"`
	WSURL      string        `yaml:"ws_url"` // optional, enables logsSubscribe wake-ups
	ProgramID  string        `yaml:"program_id"`
	Commitment string        `yaml:"commitment"`
	Timeout    time.Duration `yaml:"timeout"`
}

// IndexerConfig holds orchestrator settings.
type IndexerConfig struct {
	ScanInterval time.Duration `yaml:"scan_interval"`
	PageSize     int           `yaml:"page_size"`
	Workers      int           `yaml:"workers"`
}

// RateLimitConfig bounds outbound RPC requests to Requests per Window.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

// RetryConfig controls backoff on rate-limited RPC calls.
type RetryConfig struct {
	MaxRetries   int           `yaml:"max_retries"`
	InitialDelay time.Duration `yaml:"initial_delay"`
	MaxDelay     time.Duration `yaml:"max_delay"`
}

// LedgerConfig controls processed-signature persistence.
type LedgerConfig struct {
	MaxWriteAttempts int           `yaml:"max_write_attempts"`
	WriteRetryDelay  time.Duration `yaml:"write_retry_delay"`
	ReplayInterval   time.Duration `yaml:"replay_interval"`
	Journal          JournalConfig `yaml:"journal"`
}

// JournalConfig selects where failed ledger writes are recorded.
type JournalConfig struct {
	Backend string `yaml:"backend"` // file, redis
	Path    string `yaml:"path"`
}

// CursorConfig selects where the resume cursor is persisted.
type CursorConfig struct {
	Backend string `yaml:"backend"` // file, postgres
	Path    string `yaml:"path"`
}

// RosterConfig points at the contestant roster service.
type RosterConfig struct {
	URL       string        `yaml:"url"`
	Limit     int           `yaml:"limit"`
	ContestID string        `yaml:"contest_id"`
	Timeout   time.Duration `yaml:"timeout"`
}

// Validate reports configuration the indexer cannot start without.
// In memory mode the database and redis URLs are optional.
func (c *AppConfig) Validate(memory bool) error {
	var errs []error
	if c.Solana.RPCURL == "" {
		errs = append(errs, errors.New("solana.rpc_url is required"))
	}
	if c.Solana.ProgramID == "" {
		errs = append(errs, errors.New("solana.program_id is required"))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		errs = append(errs, errors.New("rate_limit.requests and rate_limit.window must be positive"))
	}
	if c.Indexer.Workers > c.RateLimit.Requests {
		errs = append(errs, fmt.Errorf(
			"indexer.workers (%d) must not exceed rate_limit.requests (%d)",
			c.Indexer.Workers, c.RateLimit.Requests,
		))
	}

	switch c.Cursor.Backend {
	case BackendFile, BackendPostgres:
	default:
		errs = append(errs, fmt.Errorf("unknown cursor backend %q", c.Cursor.Backend))
	}
	switch c.Ledger.Journal.Backend {
	case BackendFile, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown journal backend %q", c.Ledger.Journal.Backend))
	}

	if !memory {
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database.url is required"))
		}
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("redis.url is required"))
		}
	}

	return errors.Join(errs...)
}
