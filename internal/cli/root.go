package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/votewatch/internal/control"
	"github.com/vietddude/votewatch/internal/core/config"
)

var (
	cfgPath    string
	isDebug    bool
	memoryMode bool
)

var rootCmd = &cobra.Command{
	Use:   "votewatch",
	Short: "Contest vote indexer",
	Long: `votewatch follows the transactions of one Solana voting program, applies each
VoteCasted event to a Redis leaderboard exactly once and resumes from its
persisted cursor after a restart.`,
	Run: runWatcher,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the indexer (default command)",
	Run:   runWatcher,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&memoryMode, "memory", false, "keep every store in memory (no database or redis)")
	rootCmd.AddCommand(runCmd)
}

// loadConfig reads .env and the config file, sets up logging and validates
// the result. It exits the process on failure.
func loadConfig() control.Config {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup logging
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})

	if err := cfg.Validate(memoryMode); err != nil {
		slog.Error("Invalid config", "error", err)
		os.Exit(1)
	}
	return control.FromAppConfig(cfg, memoryMode)
}

func runWatcher(cmd *cobra.Command, args []string) {
	controlCfg := loadConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Watcher
	app, err := control.NewWatcher(ctx, controlCfg)
	if err != nil {
		slog.Error("Failed to initialize Watcher", "error", err)
		os.Exit(1)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if err := app.Start(ctx); err != nil {
		slog.Error("Failed to start Watcher", "error", err)
		os.Exit(1)
	}

	slog.Info("Watcher started",
		"config", cfgPath,
		"program", controlCfg.Solana.ProgramID,
		"memory", controlCfg.Memory,
	)

	sig := <-sigChan
	slog.Info("Received signal, shutting down...", "signal", sig)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		slog.Error("Error during shutdown", "error", err)
		os.Exit(1)
	}
}
