// Package session is the top-level driver: it owns the specification across
// cycles, appends feature increments, persists the context registry and
// scopes completion tracing to the current run and cycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"specforge/internal/completion"
	"specforge/internal/config"
	"specforge/internal/journal"
	"specforge/internal/logging"
	"specforge/internal/materialize"
	"specforge/internal/metrics"
	"specforge/internal/orchestrator"
	"specforge/internal/registry"
	"specforge/internal/tactile"
	"specforge/internal/types"
)

// ErrNotStarted is returned by Cycle before Start.
var ErrNotStarted = errors.New("session not started")

// Options configure a Session. Only Config is required; the other fields
// override what would otherwise be built from it.
type Options struct {
	Config *config.Config

	// Client replaces the provider client built from Config.LLM.
	Client completion.Client
	// Verifier replaces the build verifier built from Config.Generation.
	Verifier orchestrator.Verifier
	// Journal, when set, receives exchanges and cycle outcomes.
	Journal *journal.Journal

	Recorder metrics.Recorder
	Logger   *zap.Logger
}

// Session runs successive generation cycles over one specification.
// It is not safe for concurrent use.
type Session struct {
	cfg          *config.Config
	client       *completion.TracingClient
	orch         *orchestrator.Orchestrator
	journal      *journal.Journal
	logger       *zap.Logger
	watchLogger  *zap.Logger
	registryPath string

	spec  types.Specification
	runID string
	cycle int
}

// New wires a session from opts. The registry is loaded from the output root
// so a new session keeps grounding on files generated by earlier runs.
func New(ctx context.Context, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = metrics.NoOp{}
	}

	client := opts.Client
	if client == nil {
		var err error
		client, err = completion.New(ctx, cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create completion client: %w", err)
		}
	}
	var store completion.TraceStore
	if opts.Journal != nil {
		store = opts.Journal
	}
	tracing := completion.NewTracingClient(client, store, recorder, logging.Named(logger, logging.CategoryCompletion))

	registryPath := cfg.Generation.RegistryPath()
	reg, err := registry.Load(registryPath)
	if err != nil {
		return nil, err
	}

	verifier := opts.Verifier
	if verifier == nil {
		verifier = tactile.NewVerifier(tactile.VerifierConfig{
			WorkingDirectory:   cfg.Generation.OutputRoot,
			Timeout:            cfg.Generation.GetBuildTimeout(),
			MaxDiagnosticBytes: cfg.Generation.MaxDiagnosticBytes,
		}, logging.Named(logger, logging.CategoryTactile))
	}

	orch := orchestrator.New(orchestrator.Deps{
		Client:       tracing,
		Registry:     reg,
		Materializer: materialize.New(cfg.Generation.OutputRoot, logging.Named(logger, logging.CategoryMaterialize)),
		Verifier:     verifier,
		Recorder:     recorder,
		Logger:       logger,
	}, orchestrator.Config{
		MaxParseRetries: cfg.Generation.MaxParseRetries,
		MaxBuildRepairs: cfg.Generation.MaxBuildRepairs,
	})

	return &Session{
		cfg:          cfg,
		client:       tracing,
		orch:         orch,
		journal:      opts.Journal,
		logger:       logging.Named(logger, logging.CategorySession),
		watchLogger:  logging.Named(logger, logging.CategoryWatch),
		registryPath: registryPath,
	}, nil
}

// Start begins a new run for spec.
func (s *Session) Start(ctx context.Context, spec types.Specification) error {
	runID := uuid.NewString()
	if s.journal != nil {
		id, err := s.journal.StartRun(ctx, spec)
		if err != nil {
			return err
		}
		runID = id
	}

	s.spec = spec
	s.runID = runID
	s.cycle = 0

	s.logger.Info("Run started",
		zap.String("run_id", runID),
		zap.String("title", spec.Title),
		zap.String("language", spec.Language),
		zap.Int("features", len(spec.Features)),
		zap.Int("known_files", s.orch.Registry().Len()))
	return nil
}

// Replace swaps the specification of a started run, for example after the
// spec file changed on disk.
func (s *Session) Replace(spec types.Specification) {
	s.spec = spec
}

// Spec returns the current specification.
func (s *Session) Spec() types.Specification {
	return s.spec
}

// RunID returns the current run ID ("" before Start).
func (s *Session) RunID() string {
	return s.runID
}

// Registry returns the context registry shared with the orchestrator.
func (s *Session) Registry() *registry.Registry {
	return s.orch.Registry()
}

// Cycle appends extra features to the specification and runs one cycle.
// After a successful cycle the registry is saved.
func (s *Session) Cycle(ctx context.Context, extra ...string) (*orchestrator.Report, error) {
	if s.runID == "" {
		return nil, ErrNotStarted
	}

	s.spec = s.spec.WithFeatures(extra...)
	s.cycle++
	s.client.SetScope(s.runID, s.cycle)

	timer := logging.StartTimer(s.logger, "Generation cycle")
	report, err := s.orch.RunCycle(ctx, s.spec)
	duration := timer.Stop()

	if err == nil {
		if saveErr := s.orch.Registry().Save(s.registryPath); saveErr != nil {
			err = fmt.Errorf("cycle succeeded but registry was not saved: %w", saveErr)
		}
	}

	s.record(ctx, report, err, duration)

	if err != nil {
		s.logger.Error("Cycle failed",
			zap.Int("cycle", s.cycle),
			zap.String("outcome", report.Outcome),
			zap.Error(err))
		return report, err
	}

	s.logger.Info("Cycle finished",
		zap.Int("cycle", s.cycle),
		zap.Int("files", len(report.Outcomes)),
		zap.Duration("duration", duration))
	return report, nil
}

// Run loads specFile, starts a run and performs one cycle for the base
// features and one per increment. It stops at the first failed cycle.
func (s *Session) Run(ctx context.Context, specFile string) ([]*orchestrator.Report, error) {
	file, err := LoadSpecFile(specFile)
	if err != nil {
		return nil, err
	}
	if err := s.Start(ctx, file.Specification()); err != nil {
		return nil, err
	}

	var reports []*orchestrator.Report

	report, err := s.Cycle(ctx)
	if report != nil {
		reports = append(reports, report)
	}
	if err != nil {
		return reports, err
	}

	for _, inc := range file.Increments {
		s.logger.Info("Applying increment", zap.String("increment", inc.Name), zap.Strings("features", inc.Features))
		report, err := s.Cycle(ctx, inc.Features...)
		if report != nil {
			reports = append(reports, report)
		}
		if err != nil {
			return reports, err
		}
	}
	return reports, nil
}

func (s *Session) record(ctx context.Context, report *orchestrator.Report, cycleErr error, duration time.Duration) {
	if s.journal == nil || report == nil {
		return
	}

	states := make([]string, len(report.States))
	for i, st := range report.States {
		states[i] = string(st)
	}
	c := journal.Cycle{
		RunID:        s.runID,
		Cycle:        s.cycle,
		Features:     s.spec.Features,
		States:       states,
		Outcome:      report.Outcome,
		Completions:  report.Completions,
		ParseRetries: report.ParseRetries,
		BuildRepairs: report.BuildRepairs,
		Files:        len(report.Outcomes),
		BuildCommand: report.BuildCommand(),
		Duration:     duration,
	}
	if cycleErr != nil {
		c.Error = cycleErr.Error()
	}

	// A canceled cycle is still worth recording.
	if err := s.journal.RecordCycle(context.WithoutCancel(ctx), c); err != nil {
		s.logger.Warn("Failed to record cycle", zap.Error(err))
	}
}
