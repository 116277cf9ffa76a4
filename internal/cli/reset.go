package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/votewatch/internal/control"
)

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe the ledger, leaderboard, failure journal and cursor",
	Long: `reset deletes every processed-signature record, every leaderboard key, the
failure journal and the persisted cursor. The next run re-indexes the program
from its first transaction.`,
	Run: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	if !resetYes {
		fmt.Printf("This wipes all indexed state for program %s. Continue? [y/N] ", cfg.Solana.ProgramID)
		var answer string
		_, _ = fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted")
			return
		}
	}

	if err := control.Reset(context.Background(), cfg); err != nil {
		slog.Error("Failed to reset state", "error", err)
		os.Exit(1)
	}
	fmt.Printf("Successfully reset indexer state for %s\n", cfg.Solana.ProgramID)
}
