package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/vietddude/votewatch/internal/control"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the persisted cursor, ledger size and journal backlog",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	report, err := control.ReadStatus(context.Background(), cfg)
	if err != nil {
		slog.Error("Failed to read status", "error", err)
		os.Exit(1)
	}

	cursor := report.Cursor
	if cursor == "" {
		cursor = "-"
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "PROGRAM\tCURSOR\tPROCESSED\tJOURNAL\tCONTEST\tVOTES")
	_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%d\n",
		report.ProgramID,
		cursor,
		report.Processed,
		report.JournalSize,
		report.ContestID,
		report.TotalVotes,
	)
	_ = w.Flush()
}
