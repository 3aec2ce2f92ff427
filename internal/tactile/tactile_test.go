package tactile

import (
	"bytes"
	"context"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX utilities")
	}
}

func TestVerifier_EmptyCommandSkips(t *testing.T) {
	v := NewVerifier(DefaultVerifierConfig(), nil)

	for _, command := range []string{"", "   ", "\t\n"} {
		result := v.Verify(context.Background(), command)
		assert.True(t, result.Success)
		assert.True(t, result.Skipped)
		assert.Empty(t, result.Diagnostics)
		assert.Empty(t, result.Command)
	}
}

func TestVerifier_Success(t *testing.T) {
	skipOnWindows(t)
	v := NewVerifier(DefaultVerifierConfig(), nil)

	result := v.Verify(context.Background(), "true")
	assert.True(t, result.Success)
	assert.False(t, result.Skipped)
	assert.Equal(t, 0, result.ExitCode)
}

func TestVerifier_FailureIsAResultNotAnError(t *testing.T) {
	skipOnWindows(t)
	v := NewVerifier(DefaultVerifierConfig(), nil)

	result := v.Verify(context.Background(), "ls  /definitely/not/a/real/path")
	assert.False(t, result.Success)
	assert.NotEqual(t, 0, result.ExitCode)
	assert.Contains(t, result.Diagnostics, "/definitely/not/a/real/path")
	assert.Equal(t, "ls /definitely/not/a/real/path", result.Command)
}

func TestVerifier_OnlyStderrIsCaptured(t *testing.T) {
	skipOnWindows(t)
	v := NewVerifier(DefaultVerifierConfig(), nil)

	result := v.Verify(context.Background(), "echo to-stdout")
	assert.True(t, result.Success)
	assert.Empty(t, result.Diagnostics)
}

func TestVerifier_MissingBinaryFailsTheBuild(t *testing.T) {
	v := NewVerifier(DefaultVerifierConfig(), nil)

	result := v.Verify(context.Background(), "specforge-no-such-binary --flag")
	assert.False(t, result.Success)
	assert.Equal(t, -1, result.ExitCode)
	assert.Contains(t, result.Diagnostics, "specforge-no-such-binary")
}

func TestVerifier_WorkingDirectory(t *testing.T) {
	skipOnWindows(t)
	dir := t.TempDir()

	cfg := DefaultVerifierConfig()
	cfg.WorkingDirectory = dir
	v := NewVerifier(cfg, nil)

	result := v.Verify(context.Background(), "ls missing-file")
	assert.False(t, result.Success)
	assert.Contains(t, result.Diagnostics, "missing-file")
}

func TestVerifier_Timeout(t *testing.T) {
	skipOnWindows(t)

	cfg := DefaultVerifierConfig()
	cfg.Timeout = 200 * time.Millisecond
	v := NewVerifier(cfg, nil)

	start := time.Now()
	result := v.Verify(context.Background(), "sleep 10")

	assert.False(t, result.Success)
	assert.True(t, result.Killed)
	assert.Contains(t, result.KillReason, "timeout")
	assert.Contains(t, result.Diagnostics, "build killed")
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestVerifier_Canceled(t *testing.T) {
	skipOnWindows(t)
	v := NewVerifier(VerifierConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	result := v.Verify(ctx, "sleep 10")
	assert.False(t, result.Success)
	assert.True(t, result.Killed)
	assert.Equal(t, "context canceled", result.KillReason)
}

func TestLimitedWriter(t *testing.T) {
	var buf bytes.Buffer
	lw := &limitedWriter{w: &buf, max: 5}

	n, err := lw.Write([]byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = lw.Write([]byte("defgh"))
	require.NoError(t, err)
	assert.Equal(t, 5, n, "reports the full length to avoid short writes")

	n, err = lw.Write([]byte("ijk"))
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, "abcde", buf.String())
	assert.True(t, lw.truncated)
	assert.Equal(t, int64(6), lw.discarded)
}

func TestVerifier_TruncatesDiagnostics(t *testing.T) {
	skipOnWindows(t)

	cfg := DefaultVerifierConfig()
	cfg.MaxDiagnosticBytes = 8
	v := NewVerifier(cfg, nil)

	result := v.Verify(context.Background(), "ls /definitely/not/a/real/path")
	assert.False(t, result.Success)
	assert.True(t, result.Truncated)
	assert.LessOrEqual(t, len(strings.TrimSpace(result.Diagnostics)), 8)
}
