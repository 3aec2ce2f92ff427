package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"specforge/internal/orchestrator"
	"specforge/internal/types"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	failStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF5F87"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262"))
)

func outcomeStyle(outcome string) lipgloss.Style {
	if outcome == orchestrator.OutcomeDone {
		return okStyle
	}
	return failStyle
}

// renderReport prints a one-cycle summary.
func renderReport(w io.Writer, cycle int, report *orchestrator.Report, err error) {
	if report == nil {
		fmt.Fprintf(w, "%s %s\n", titleStyle.Render(fmt.Sprintf("Cycle %d", cycle)), failStyle.Render(err.Error()))
		return
	}

	fmt.Fprintf(w, "%s %s\n",
		titleStyle.Render(fmt.Sprintf("Cycle %d", cycle)),
		outcomeStyle(report.Outcome).Render(report.Outcome))

	fmt.Fprintf(w, "  completions %d, parse retries %d, build repairs %d\n",
		report.Completions, report.ParseRetries, report.BuildRepairs)

	states := make([]string, len(report.States))
	for i, s := range report.States {
		states[i] = string(s)
	}
	fmt.Fprintf(w, "  %s\n", dimStyle.Render(strings.Join(states, " > ")))

	for _, o := range report.Outcomes {
		fmt.Fprintf(w, "  %-6s %s %s\n", o.Action, o.Target,
			dimStyle.Render(fmt.Sprintf("+%d -%d", o.Added, o.Removed)))
	}

	for _, v := range report.Verifications {
		status := okStyle.Render("ok")
		if !v.Success {
			status = failStyle.Render(fmt.Sprintf("exit %d", v.ExitCode))
		}
		fmt.Fprintf(w, "  build: %s %s %s\n", v.Command, status, dimStyle.Render(v.Duration.Round(time.Millisecond).String()))
	}

	if err != nil {
		fmt.Fprintf(w, "  %s\n", failStyle.Render(err.Error()))
	}
}

// renderRegistry prints the known-files context.
func renderRegistry(w io.Writer, known []types.FileContext) {
	fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("Known files (%d)", len(known))))
	for _, fc := range known {
		fmt.Fprintf(w, "  %s %s\n", fc.Path, dimStyle.Render(fc.Summary))
	}
}
