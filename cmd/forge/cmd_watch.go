package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"specforge/internal/orchestrator"
	"specforge/internal/session"
)

var watchDebounce time.Duration

// watchCmd reruns a cycle whenever the spec file changes.
var watchCmd = &cobra.Command{
	Use:   "watch <spec.yaml>",
	Short: "Run a cycle now and again whenever the spec file changes",
	Long: `Watches the spec file and runs a cycle with its full feature list (base
features plus every increment) on start and after each save. The registry of
generated files carries over between cycles. Stop with Ctrl-C.`,
	Args: cobra.ExactArgs(1),
	RunE: watchSpec,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", session.DefaultDebounce, "Quiet period after a change before rerunning")
}

func watchSpec(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	out := cmd.OutOrStdout()
	cycle := 0
	return rt.session.Watch(ctx, args[0], watchDebounce, func(report *orchestrator.Report, err error) {
		cycle++
		renderReport(out, cycle, report, err)
	})
}
