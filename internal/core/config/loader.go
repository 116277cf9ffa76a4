package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Solana.Commitment == "" {
		cfg.Solana.Commitment = "confirmed"
	}
	if cfg.Solana.Timeout == 0 {
		cfg.Solana.Timeout = 30 * time.Second
	}

	if cfg.Indexer.ScanInterval == 0 {
		cfg.Indexer.ScanInterval = 15 * time.Second
	}
	if cfg.Indexer.PageSize == 0 {
		cfg.Indexer.PageSize = 100
	}
	if cfg.Indexer.Workers == 0 {
		cfg.Indexer.Workers = 4
	}

	if cfg.RateLimit.Requests == 0 {
		cfg.RateLimit.Requests = 120
	}
	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = time.Second
	}

	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry.MaxRetries = 3
	}
	if cfg.Retry.InitialDelay == 0 {
		cfg.Retry.InitialDelay = time.Second
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = 10 * time.Second
	}

	if cfg.Ledger.MaxWriteAttempts == 0 {
		cfg.Ledger.MaxWriteAttempts = 3
	}
	if cfg.Ledger.WriteRetryDelay == 0 {
		cfg.Ledger.WriteRetryDelay = 200 * time.Millisecond
	}
	if cfg.Ledger.ReplayInterval == 0 {
		cfg.Ledger.ReplayInterval = 5 * time.Minute
	}
	if cfg.Ledger.Journal.Backend == "" {
		cfg.Ledger.Journal.Backend = BackendFile
	}
	if cfg.Ledger.Journal.Path == "" {
		cfg.Ledger.Journal.Path = "logs/failed_signatures.log"
	}

	if cfg.Cursor.Backend == "" {
		cfg.Cursor.Backend = BackendFile
	}
	if cfg.Cursor.Path == "" {
		cfg.Cursor.Path = "cursor.json"
	}

	if cfg.Roster.Limit == 0 {
		cfg.Roster.Limit = 500
	}
	if cfg.Roster.ContestID == "" {
		cfg.Roster.ContestID = "1"
	}
	if cfg.Roster.Timeout == 0 {
		cfg.Roster.Timeout = 10 * time.Second
	}
}
