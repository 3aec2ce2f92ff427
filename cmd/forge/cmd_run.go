package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

// runCmd runs every cycle of a spec file once.
var runCmd = &cobra.Command{
	Use:   "run <spec.yaml>",
	Short: "Generate code for a spec file and its increments",
	Long: `Runs one cycle for the spec's base features, then one more cycle per
increment, appending that increment's features each time. Stops at the first
cycle that fails.

Example spec file:
  title: Greeter
  language: Go
  features:
    - print hello
  increments:
    - name: flags
      features:
        - accept a --name flag`,
	Args: cobra.ExactArgs(1),
	RunE: runSpec,
}

func runSpec(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	reports, err := rt.session.Run(ctx, args[0])
	out := cmd.OutOrStdout()
	for i, report := range reports {
		var cycleErr error
		if i == len(reports)-1 {
			cycleErr = err
		}
		renderReport(out, i+1, report, cycleErr)
	}
	if err != nil {
		return err
	}

	renderRegistry(out, rt.session.Registry().Entries())
	return nil
}
