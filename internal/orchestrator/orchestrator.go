// Package orchestrator drives one generation cycle:
//
//	PROMPTING → PARSING → (PARSE_RETRY ⟲) → MATERIALIZING → VERIFYING → (BUILD_REPAIR ⟲) → DONE
//
// Parse and build failures are recovered inside the cycle by re-querying the
// model with the failure text, each bounded by its own attempt counter.
// Everything else (remote service failures, filesystem errors) is returned to
// the caller unchanged.
package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"specforge/internal/completion"
	"specforge/internal/document"
	"specforge/internal/logging"
	"specforge/internal/materialize"
	"specforge/internal/metrics"
	"specforge/internal/registry"
	"specforge/internal/tactile"
	"specforge/internal/types"
)

// State is a step of the cycle state machine.
type State string

const (
	StatePrompting     State = "PROMPTING"
	StateParsing       State = "PARSING"
	StateParseRetry    State = "PARSE_RETRY"
	StateMaterializing State = "MATERIALIZING"
	StateVerifying     State = "VERIFYING"
	StateBuildRepair   State = "BUILD_REPAIR"
	StateDone          State = "DONE"
)

// Retry phases reported by MaxRetriesExceededError.
const (
	PhaseParse = "parse"
	PhaseBuild = "build"
)

// MaxRetriesExceededError ends a cycle whose parse or build repair loop ran
// out of attempts.
type MaxRetriesExceededError struct {
	Phase    string
	Attempts int
	// Last is the final parse error (parse phase).
	Last error
	// Diagnostics is the final build output (build phase).
	Diagnostics string
}

func (e *MaxRetriesExceededError) Error() string {
	if e.Phase == PhaseParse && e.Last != nil {
		return fmt.Sprintf("gave up after %d parse retries: %v", e.Attempts, e.Last)
	}
	return fmt.Sprintf("gave up after %d %s repairs", e.Attempts, e.Phase)
}

func (e *MaxRetriesExceededError) Unwrap() error { return e.Last }

// Materializer writes a batch of entries.
type Materializer interface {
	MaterializeAll(entries []types.GeneratedEntry) ([]materialize.Outcome, error)
}

// Verifier runs a build command.
type Verifier interface {
	Verify(ctx context.Context, command string) tactile.Verification
}

// Deps are the collaborators of an Orchestrator. Registry is shared with the
// caller so it can be seeded before and inspected after a cycle.
type Deps struct {
	Client       completion.Client
	Registry     *registry.Registry
	Materializer Materializer
	Verifier     Verifier
	Recorder     metrics.Recorder
	Logger       *zap.Logger
}

// Config bounds the recovery loops.
type Config struct {
	MaxParseRetries int
	MaxBuildRepairs int
}

// DefaultConfig returns the default retry bounds.
func DefaultConfig() Config {
	return Config{MaxParseRetries: 3, MaxBuildRepairs: 5}
}

// Orchestrator runs generation cycles. It is not safe for concurrent use.
type Orchestrator struct {
	client       completion.Client
	registry     *registry.Registry
	materializer Materializer
	verifier     Verifier
	recorder     metrics.Recorder
	logger       *zap.Logger
	cfg          Config
}

// New creates an Orchestrator. A nil Registry starts empty; nil Recorder and
// Logger disable metrics and logging.
func New(deps Deps, cfg Config) *Orchestrator {
	if deps.Registry == nil {
		deps.Registry = registry.New()
	}
	if deps.Recorder == nil {
		deps.Recorder = metrics.NoOp{}
	}
	if cfg.MaxParseRetries < 0 {
		cfg.MaxParseRetries = 0
	}
	if cfg.MaxBuildRepairs < 0 {
		cfg.MaxBuildRepairs = 0
	}
	return &Orchestrator{
		client:       deps.Client,
		registry:     deps.Registry,
		materializer: deps.Materializer,
		verifier:     deps.Verifier,
		recorder:     deps.Recorder,
		logger:       logging.Named(deps.Logger, logging.CategoryOrchestrator),
		cfg:          cfg,
	}
}

// Registry returns the context registry the orchestrator grounds prompts on.
func (o *Orchestrator) Registry() *registry.Registry {
	return o.registry
}

// RunCycle performs one full cycle for spec. The returned report is never nil
// and describes how far the cycle got, even when an error is returned.
// The registry is updated only when the cycle reaches DONE.
func (o *Orchestrator) RunCycle(ctx context.Context, spec types.Specification) (report *Report, err error) {
	report = &Report{}
	defer func() {
		outcome := outcomeOf(err)
		report.Outcome = outcome
		o.recorder.CycleFinished(outcome)
	}()

	o.enter(report, StatePrompting)
	prompt := BuildPrompt(spec, o.registry.Entries())
	report.Prompt = prompt

	result, err := o.generate(ctx, types.UserPrompt(prompt), report)
	if err != nil {
		return report, err
	}

	// Contexts of every entry written this cycle, in order, so repairs win.
	var contexts []types.FileContext
	for {
		o.enter(report, StateMaterializing)
		outcomes, err := o.materializer.MaterializeAll(result.Entries)
		report.Outcomes = append(report.Outcomes, outcomes...)
		for _, out := range outcomes {
			o.recorder.Materialized(string(out.Action))
		}
		if err != nil {
			return report, err
		}
		contexts = append(contexts, result.Contexts()...)

		if !result.Build.HasCommand() {
			o.logger.Info("No build command declared, skipping verification")
			break
		}

		o.enter(report, StateVerifying)
		v := o.verifier.Verify(ctx, result.Build.CommandLine())
		report.Verifications = append(report.Verifications, v)
		o.recorder.ObserveVerification(v.Success, v.Duration)
		if v.Success {
			break
		}

		if report.BuildRepairs >= o.cfg.MaxBuildRepairs {
			o.logger.Error("Build repair limit reached",
				zap.Int("repairs", report.BuildRepairs),
				zap.String("command", v.Command))
			return report, &MaxRetriesExceededError{
				Phase:       PhaseBuild,
				Attempts:    report.BuildRepairs,
				Diagnostics: v.Diagnostics,
			}
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}

		report.BuildRepairs++
		o.recorder.BuildRepair()
		o.enter(report, StateBuildRepair)

		diagnostics := v.Diagnostics
		if diagnostics == "" {
			diagnostics = fmt.Sprintf("(no diagnostic output; %s exited with status %d)", v.Command, v.ExitCode)
		}
		o.logger.Warn("Build failed, requesting repair",
			zap.Int("attempt", report.BuildRepairs),
			zap.String("command", v.Command),
			zap.Int("exit_code", v.ExitCode),
			zap.String("diagnostics", diagnostics))

		next, err := o.generate(ctx, RepairConversation(prompt, diagnostics), report)
		if err != nil {
			return report, err
		}
		result = Merge(result, next)
	}

	o.enter(report, StateDone)
	report.Result = result

	o.registry.Update(contexts)

	o.logger.Info("Cycle complete",
		zap.Int("completions", report.Completions),
		zap.Int("parse_retries", report.ParseRetries),
		zap.Int("build_repairs", report.BuildRepairs),
		zap.Int("files", len(report.Outcomes)),
		zap.Int("known_files", o.registry.Len()))

	return report, nil
}

// generate queries the model with base and decodes the reply. A malformed
// reply is retried by re-sending base with the parse error appended, so a
// retry during build repair stays within the repair conversation.
func (o *Orchestrator) generate(ctx context.Context, base types.Conversation, report *Report) (*types.GenerationResult, error) {
	conv := base
	retries := 0

	for {
		report.Completions++
		text, err := o.client.Complete(ctx, conv)
		if err != nil {
			return nil, err
		}

		o.enter(report, StateParsing)
		result, err := document.Parse(text)
		if err == nil {
			return result, nil
		}
		if !document.IsParseError(err) {
			return nil, err
		}

		if retries >= o.cfg.MaxParseRetries {
			o.logger.Error("Parse retry limit reached",
				zap.Int("retries", retries),
				zap.Error(err))
			return nil, &MaxRetriesExceededError{Phase: PhaseParse, Attempts: retries, Last: err}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		retries++
		report.ParseRetries++
		o.recorder.ParseRetry()
		o.enter(report, StateParseRetry)
		o.logger.Warn("Malformed document, re-prompting",
			zap.Int("attempt", retries),
			zap.String("parse_error", err.Error()))

		conv = ParseRetryConversation(base, err)
	}
}

func (o *Orchestrator) enter(report *Report, s State) {
	report.States = append(report.States, s)
	o.logger.Debug("State transition", zap.String("state", string(s)))
}

// Cycle outcomes used for metrics and the journal.
const (
	OutcomeDone           = "done"
	OutcomeParseExhausted = "parse_exhausted"
	OutcomeBuildExhausted = "build_exhausted"
	OutcomeError          = "error"
)

func outcomeOf(err error) string {
	if err == nil {
		return OutcomeDone
	}
	var maxErr *MaxRetriesExceededError
	if errors.As(err, &maxErr) {
		if maxErr.Phase == PhaseParse {
			return OutcomeParseExhausted
		}
		return OutcomeBuildExhausted
	}
	return OutcomeError
}
