package orchestrator

import (
	"specforge/internal/materialize"
	"specforge/internal/tactile"
	"specforge/internal/types"
)

// Report describes one cycle.
type Report struct {
	// States is the ordered trace of states entered.
	States []State

	// Prompt is the generation prompt the cycle started from.
	Prompt string

	Completions  int
	ParseRetries int
	BuildRepairs int

	Outcomes      []materialize.Outcome
	Verifications []tactile.Verification

	// Result is the final merged result (nil unless the cycle reached DONE).
	Result *types.GenerationResult

	// Outcome is one of the Outcome* constants.
	Outcome string
}

// Final returns the last state entered.
func (r *Report) Final() State {
	if len(r.States) == 0 {
		return ""
	}
	return r.States[len(r.States)-1]
}

// BuildCommand returns the final build command, or "".
func (r *Report) BuildCommand() string {
	if r.Result == nil {
		return ""
	}
	return r.Result.Build.CommandLine()
}
