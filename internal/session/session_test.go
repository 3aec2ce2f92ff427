package session

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"specforge/internal/config"
	"specforge/internal/journal"
	"specforge/internal/orchestrator"
	"specforge/internal/registry"
	"specforge/internal/tactile"
	"specforge/internal/types"
)

// fakeClient replies from a queue, repeating the last reply.
type fakeClient struct {
	mu      sync.Mutex
	replies []string
	seen    []types.Conversation
}

func (c *fakeClient) Complete(ctx context.Context, conv types.Conversation) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := len(c.seen)
	c.seen = append(c.seen, conv.Clone())
	if i >= len(c.replies) {
		i = len(c.replies) - 1
	}
	return c.replies[i], nil
}

func (c *fakeClient) Provider() string { return "fake" }
func (c *fakeClient) Model() string    { return "fake-1" }

type passingVerifier struct{}

func (passingVerifier) Verify(ctx context.Context, command string) tactile.Verification {
	return tactile.Verification{Command: command, Success: true}
}

const createDoc = `[[code]]
filepath = "greeter.x"
summary = "Prints hello."
interface = "main()"
code = """
print("hello")
"""
`

const updateDoc = `[build]
command = "xc build"

[[code]]
filepath = "greeter.x"
summary = "Prints hello and goodbye."
interface = "main()"
diff = """
+print("goodbye")
"""
`

const specYAML = `title: Greeter
language: X
features:
  - print hello
increments:
  - name: farewell
    features:
      - print goodbye
`

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Generation.OutputRoot = t.TempDir()
	cfg.Generation.MaxParseRetries = 1
	return cfg
}

func writeSpec(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "spec.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadSpecFile(t *testing.T) {
	f, err := LoadSpecFile(writeSpec(t, specYAML))
	require.NoError(t, err)

	assert.Equal(t, types.Specification{Title: "Greeter", Language: "X", Features: []string{"print hello"}}, f.Specification())
	assert.Equal(t, []string{"print hello", "print goodbye"}, f.Full().Features)
}

func TestLoadSpecFile_Invalid(t *testing.T) {
	cases := map[string]string{
		"no title":        "language: X\nfeatures: [a]\n",
		"no language":     "title: T\nfeatures: [a]\n",
		"no features":     "title: T\nlanguage: X\n",
		"blank features":  "title: T\nlanguage: X\nfeatures: ['  ']\n",
		"empty increment": "title: T\nlanguage: X\nfeatures: [a]\nincrements:\n  - name: later\n",
		"malformed yaml":  "title: [\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadSpecFile(writeSpec(t, content))
			assert.Error(t, err)
		})
	}

	_, err := LoadSpecFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestSession_CycleBeforeStart(t *testing.T) {
	s, err := New(context.Background(), Options{Config: testConfig(t), Client: &fakeClient{replies: []string{createDoc}}})
	require.NoError(t, err)

	_, err = s.Cycle(context.Background())
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestSession_RunAppliesIncrements(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	defer j.Close()

	client := &fakeClient{replies: []string{createDoc, updateDoc}}
	s, err := New(ctx, Options{
		Config:   cfg,
		Client:   client,
		Verifier: passingVerifier{},
		Journal:  j,
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)

	reports, err := s.Run(ctx, writeSpec(t, specYAML))
	require.NoError(t, err)
	require.Len(t, reports, 2)

	assert.NotContains(t, reports[0].Prompt, "print goodbye")
	assert.Contains(t, reports[1].Prompt, "- print hello\n- print goodbye\n")
	assert.Contains(t, reports[1].Prompt, "greeter.x Prints hello. main()")
	assert.Equal(t, "xc build", reports[1].BuildCommand())

	data, err := os.ReadFile(filepath.Join(cfg.Generation.OutputRoot, "greeter.x"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(data), "print(\"goodbye\")"))

	saved, err := registry.Load(cfg.Generation.RegistryPath())
	require.NoError(t, err)
	got, ok := saved.Lookup("greeter.x")
	require.True(t, ok)
	assert.Equal(t, "Prints hello and goodbye.", got.Summary)

	cycles, err := j.Cycles(ctx, s.RunID())
	require.NoError(t, err)
	require.Len(t, cycles, 2)
	assert.Equal(t, orchestrator.OutcomeDone, cycles[0].Outcome)
	assert.Equal(t, []string{"print hello", "print goodbye"}, cycles[1].Features)
	assert.Equal(t, "xc build", cycles[1].BuildCommand)
	assert.Equal(t, string(orchestrator.StateDone), cycles[1].States[len(cycles[1].States)-1])

	exchanges, err := j.Exchanges(ctx, s.RunID())
	require.NoError(t, err)
	require.Len(t, exchanges, 2)
	assert.Equal(t, 1, exchanges[0].Cycle)
	assert.Equal(t, 2, exchanges[1].Cycle)
	assert.Equal(t, "fake", exchanges[0].Provider)
}

func TestSession_RegistryPersistsAcrossSessions(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	spec := types.Specification{Title: "Greeter", Language: "X", Features: []string{"print hello"}}

	first, err := New(ctx, Options{Config: cfg, Client: &fakeClient{replies: []string{createDoc}}})
	require.NoError(t, err)
	require.NoError(t, first.Start(ctx, spec))
	_, err = first.Cycle(ctx)
	require.NoError(t, err)

	second, err := New(ctx, Options{Config: cfg, Client: &fakeClient{replies: []string{createDoc}}})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Registry().Len())

	require.NoError(t, second.Start(ctx, spec))
	report, err := second.Cycle(ctx, "print goodbye")
	require.NoError(t, err)
	assert.Contains(t, report.Prompt, "greeter.x Prints hello. main()")
	assert.Equal(t, []string{"print hello", "print goodbye"}, second.Spec().Features)
}

func TestSession_FailedCycleIsRecordedButNotSaved(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	j, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"), nil)
	require.NoError(t, err)
	defer j.Close()

	s, err := New(ctx, Options{Config: cfg, Client: &fakeClient{replies: []string{"not toml ["}}, Journal: j})
	require.NoError(t, err)
	require.NoError(t, s.Start(ctx, types.Specification{Title: "T", Language: "X", Features: []string{"f"}}))

	report, err := s.Cycle(ctx)
	var maxErr *orchestrator.MaxRetriesExceededError
	require.ErrorAs(t, err, &maxErr)
	assert.Equal(t, orchestrator.OutcomeParseExhausted, report.Outcome)

	assert.NoFileExists(t, cfg.Generation.RegistryPath())

	cycles, err := j.Cycles(ctx, s.RunID())
	require.NoError(t, err)
	require.Len(t, cycles, 1)
	assert.Equal(t, orchestrator.OutcomeParseExhausted, cycles[0].Outcome)
	assert.Equal(t, 2, cycles[0].Completions)
	assert.Contains(t, cycles[0].Error, "gave up after 1 parse retries")
}

func TestSession_RunStopsAtFirstFailure(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{replies: []string{"no document here"}}
	s, err := New(ctx, Options{Config: testConfig(t), Client: client})
	require.NoError(t, err)

	reports, err := s.Run(ctx, writeSpec(t, specYAML))
	require.Error(t, err)
	assert.Len(t, reports, 1, "the increment cycle never runs")
}

func TestSession_WatchRerunsOnChange(t *testing.T) {
	cfg := testConfig(t)
	client := &fakeClient{replies: []string{createDoc}}
	core, logs := observer.New(zapcore.InfoLevel)
	s, err := New(context.Background(), Options{Config: cfg, Client: client, Logger: zap.New(core)})
	require.NoError(t, err)

	specPath := writeSpec(t, "title: Greeter\nlanguage: X\nfeatures:\n  - print hello\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reports := make(chan *orchestrator.Report, 8)
	done := make(chan error, 1)
	go func() {
		done <- s.Watch(ctx, specPath, 20*time.Millisecond, func(r *orchestrator.Report, err error) {
			assert.NoError(t, err)
			reports <- r
		})
	}()

	first := receive(t, reports)
	assert.NotContains(t, first.Prompt, "print goodbye")

	require.NoError(t, os.WriteFile(specPath, []byte(specYAML), 0644))

	second := receive(t, reports)
	assert.Contains(t, second.Prompt, "print goodbye")
	assert.Contains(t, second.Prompt, "greeter.x Prints hello. main()")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}

	changed := logs.FilterMessage("Spec file changed, running cycle").All()
	require.NotEmpty(t, changed)
	assert.Equal(t, "watch", changed[0].LoggerName)
	assert.Equal(t, specPath, changed[0].ContextMap()["spec_file"])
}

func receive(t *testing.T, ch <-chan *orchestrator.Report) *orchestrator.Report {
	t.Helper()
	select {
	case r := <-ch:
		require.NotNil(t, r)
		return r
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a cycle")
		return nil
	}
}
