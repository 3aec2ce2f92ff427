package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"specforge/internal/journal"
	"specforge/internal/logging"
)

var historyLimit int

// historyCmd lists journaled runs, or the cycles of one run.
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show recent runs, or the cycles of one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  showHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of runs to list")
}

func showHistory(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	j, err := journal.Open(cfg.JournalPath(), logging.Named(logger, logging.CategoryJournal))
	if err != nil {
		return err
	}
	defer j.Close()

	out := cmd.OutOrStdout()

	if len(args) == 1 {
		cycles, err := j.Cycles(ctx, args[0])
		if err != nil {
			return err
		}
		if len(cycles) == 0 {
			fmt.Fprintf(out, "No cycles recorded for run %s\n", args[0])
			return nil
		}
		fmt.Fprintln(out, titleStyle.Render("Run "+args[0]))
		for _, c := range cycles {
			fmt.Fprintf(out, "  #%d %s  completions=%d parse_retries=%d build_repairs=%d files=%d  %s\n",
				c.Cycle, outcomeStyle(c.Outcome).Render(c.Outcome),
				c.Completions, c.ParseRetries, c.BuildRepairs, c.Files,
				c.Duration.Round(time.Millisecond))
			if c.Error != "" {
				fmt.Fprintf(out, "     %s\n", dimStyle.Render(c.Error))
			}
		}
		return nil
	}

	runs, err := j.Runs(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded yet")
		return nil
	}
	fmt.Fprintln(out, titleStyle.Render("Recent runs"))
	for _, r := range runs {
		fmt.Fprintf(out, "  %s  %s  %s (%s)  cycles=%d  features: %s\n",
			r.ID, r.StartedAt.Format(time.DateTime), r.Title, r.Language, r.Cycles,
			strings.Join(r.Features, "; "))
	}
	return nil
}
