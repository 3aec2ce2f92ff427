package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"specforge/internal/metrics"
	"specforge/internal/types"
)

type stubClient struct {
	reply string
	err   error
	calls int
}

func (s *stubClient) Complete(ctx context.Context, conv types.Conversation) (string, error) {
	s.calls++
	return s.reply, s.err
}

func (s *stubClient) Provider() string { return "stub" }
func (s *stubClient) Model() string { return "stub-1" }

type memoryStore struct {
	exchanges []Exchange
	err       error
}

func (m *memoryStore) RecordExchange(ctx context.Context, ex Exchange) error {
	m.exchanges = append(m.exchanges, ex)
	return m.err
}

func TestTracingClient_RecordsExchange(t *testing.T) {
	inner := &stubClient{reply: "ok"}
	store := &memoryStore{}
	rec := metrics.NewPrometheus()

	tc := NewTracingClient(inner, store, rec, nil)
	tc.SetScope("run-1", 2)

	conv := types.UserPrompt("hello")
	text, err := tc.Complete(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, "ok", text)

	require.Len(t, store.exchanges, 1)
	ex := store.exchanges[0]
	assert.Equal(t, "run-1", ex.RunID)
	assert.Equal(t, 2, ex.Cycle)
	assert.Equal(t, "stub", ex.Provider)
	assert.Equal(t, "stub-1", ex.Model)
	assert.Equal(t, conv, ex.Request)
	assert.Equal(t, "ok", ex.Response)
	assert.Empty(t, ex.Error)
	assert.False(t, ex.Timestamp.IsZero())

	assert.Equal(t, 1.0, testutil.ToFloat64(rec.CompletionsTotal.WithLabelValues("stub", "success")))
}

func TestTracingClient_PassesErrorsThrough(t *testing.T) {
	boom := &RemoteServiceError{Provider: "stub", Status: 500, Body: "boom"}
	inner := &stubClient{err: boom}
	store := &memoryStore{}
	core, logs := observer.New(zapcore.DebugLevel)

	tc := NewTracingClient(inner, store, nil, zap.New(core))
	_, err := tc.Complete(context.Background(), types.UserPrompt("hello"))

	assert.Same(t, boom, err)
	require.Len(t, store.exchanges, 1)
	assert.Contains(t, store.exchanges[0].Error, "boom")
	assert.Equal(t, 1, logs.FilterMessage("LLM call failed").Len())
}

func TestTracingClient_StoreFailureDoesNotFailCompletion(t *testing.T) {
	inner := &stubClient{reply: "ok"}
	store := &memoryStore{err: errors.New("disk full")}
	core, logs := observer.New(zapcore.DebugLevel)

	tc := NewTracingClient(inner, store, nil, zap.New(core))
	text, err := tc.Complete(context.Background(), types.UserPrompt("hello"))

	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, 1, logs.FilterMessage("Failed to record exchange").Len())
}

func TestTracingClient_UnknownProvider(t *testing.T) {
	tc := NewTracingClient(clientFunc(func(ctx context.Context, conv types.Conversation) (string, error) {
		return "x", nil
	}), nil, nil, nil)

	assert.Equal(t, "unknown", tc.Provider())
	assert.Equal(t, "", tc.Model())
	text, err := tc.Complete(context.Background(), types.UserPrompt("x"))
	require.NoError(t, err)
	assert.Equal(t, "x", text)
}

type clientFunc func(ctx context.Context, conv types.Conversation) (string, error)

func (f clientFunc) Complete(ctx context.Context, conv types.Conversation) (string, error) {
	return f(ctx, conv)
}
