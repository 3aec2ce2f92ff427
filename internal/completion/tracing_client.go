package completion

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"specforge/internal/metrics"
	"specforge/internal/types"
)

// Exchange captures one completion request and its outcome.
type Exchange struct {
	RunID    string
	Cycle    int
	Provider string
	Model    string

	Request  types.Conversation
	Response string
	Error    string

	Duration  time.Duration
	Timestamp time.Time
}

// TraceStore persists exchanges.
// This abstraction allows different storage backends.
type TraceStore interface {
	RecordExchange(ctx context.Context, ex Exchange) error
}

// TracingClient wraps any Client, logging every call and recording it to an
// optional TraceStore and metrics recorder.
type TracingClient struct {
	underlying Client
	store      TraceStore
	recorder   metrics.Recorder
	logger     *zap.Logger

	// Current scope (set by the session before each cycle)
	runID string
	cycle int

	mu sync.RWMutex
}

// NewTracingClient creates a tracing wrapper around an existing client.
// store and recorder may be nil.
func NewTracingClient(underlying Client, store TraceStore, recorder metrics.Recorder, logger *zap.Logger) *TracingClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if recorder == nil {
		recorder = metrics.NoOp{}
	}
	return &TracingClient{
		underlying: underlying,
		store:      store,
		recorder:   recorder,
		logger:     logger,
	}
}

// SetScope sets the run and cycle that subsequent exchanges are attributed to.
func (tc *TracingClient) SetScope(runID string, cycle int) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.runID = runID
	tc.cycle = cycle
}

// Scope returns the current attribution.
func (tc *TracingClient) Scope() (runID string, cycle int) {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return tc.runID, tc.cycle
}

// Provider reports the wrapped client's provider, or "unknown".
func (tc *TracingClient) Provider() string {
	if mg, ok := tc.underlying.(modelGetter); ok {
		return mg.Provider()
	}
	return "unknown"
}

// Model reports the wrapped client's model, or "".
func (tc *TracingClient) Model() string {
	if mg, ok := tc.underlying.(modelGetter); ok {
		return mg.Model()
	}
	return ""
}

// Complete implements Client with tracing.
func (tc *TracingClient) Complete(ctx context.Context, conv types.Conversation) (string, error) {
	runID, cycle := tc.Scope()
	provider, model := tc.Provider(), tc.Model()

	promptLen := 0
	for _, m := range conv {
		promptLen += len(m.Content)
	}

	tc.logger.Debug("LLM call started",
		zap.String("run", runID),
		zap.Int("cycle", cycle),
		zap.String("provider", provider),
		zap.Int("turns", len(conv)),
		zap.Int("prompt_len", promptLen))

	start := time.Now()
	response, err := tc.underlying.Complete(ctx, conv)
	duration := time.Since(start)

	if err != nil {
		tc.logger.Error("LLM call failed",
			zap.String("run", runID),
			zap.Duration("duration", duration),
			zap.Error(err))
	} else {
		tc.logger.Debug("LLM call completed",
			zap.String("run", runID),
			zap.Duration("duration", duration),
			zap.Int("response_len", len(response)))
	}
	tc.recorder.ObserveCompletion(provider, duration, err)

	if tc.store != nil {
		ex := Exchange{
			RunID:     runID,
			Cycle:     cycle,
			Provider:  provider,
			Model:     model,
			Request:   conv.Clone(),
			Response:  response,
			Duration:  duration,
			Timestamp: start,
		}
		if err != nil {
			ex.Error = err.Error()
		}
		// Journal failures never fail the completion.
		if storeErr := tc.store.RecordExchange(ctx, ex); storeErr != nil {
			tc.logger.Warn("Failed to record exchange", zap.Error(storeErr))
		}
	}

	return response, err
}
