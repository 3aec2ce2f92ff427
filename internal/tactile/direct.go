package tactile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Verifier runs declared build commands directly on the host using os/exec.
// There is no sandboxing: the command inherits the current environment.
type Verifier struct {
	config VerifierConfig
	logger *zap.Logger
}

// NewVerifier creates a verifier. A zero MaxDiagnosticBytes uses the default.
func NewVerifier(config VerifierConfig, logger *zap.Logger) *Verifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxDiagnosticBytes <= 0 {
		config.MaxDiagnosticBytes = DefaultVerifierConfig().MaxDiagnosticBytes
	}
	return &Verifier{config: config, logger: logger}
}

// Verify runs command and reports whether it succeeded.
// The command line is tokenized on whitespace; no shell is involved.
func (v *Verifier) Verify(ctx context.Context, command string) Verification {
	args := strings.Fields(command)
	if len(args) == 0 {
		v.logger.Debug("No build command declared, skipping verification")
		return Verification{Success: true, Skipped: true}
	}

	result := Verification{
		Command:  strings.Join(args, " "),
		ExitCode: -1,
	}

	execCtx := ctx
	if v.config.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, v.config.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(execCtx, args[0], args[1:]...)
	execCmd.Dir = v.config.WorkingDirectory
	execCmd.Env = os.Environ()
	execCmd.Stdout = io.Discard
	setupProcessGroup(execCmd)
	execCmd.Cancel = func() error { return killProcessGroup(execCmd) }
	execCmd.WaitDelay = 5 * time.Second

	var stderrBuf bytes.Buffer
	stderrLimited := &limitedWriter{w: &stderrBuf, max: v.config.MaxDiagnosticBytes}
	execCmd.Stderr = stderrLimited

	v.logger.Info("Running build command",
		zap.String("command", result.Command),
		zap.String("dir", v.config.WorkingDirectory))

	start := time.Now()
	err := execCmd.Run()
	result.Duration = time.Since(start)
	result.Diagnostics = stderrBuf.String()

	if stderrLimited.truncated {
		result.Truncated = true
		result.TruncatedBytes = stderrLimited.discarded
		v.logger.Warn("Build diagnostics truncated", zap.Int64("discarded_bytes", result.TruncatedBytes))
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		result.Success = true
		result.ExitCode = 0

	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		result.Killed = true
		result.KillReason = fmt.Sprintf("timeout after %s", v.config.Timeout)
		result.Diagnostics = appendLine(result.Diagnostics, "build killed: "+result.KillReason)

	case errors.Is(execCtx.Err(), context.Canceled):
		result.Killed = true
		result.KillReason = "context canceled"
		result.Diagnostics = appendLine(result.Diagnostics, "build killed: "+result.KillReason)

	case errors.As(err, &exitErr):
		result.ExitCode = exitErr.ExitCode()

	default:
		// Could not spawn (missing binary, bad working directory). Reported as
		// a failed build so the model can pick a different command.
		result.Diagnostics = appendLine(result.Diagnostics, err.Error())
	}

	v.logger.Info("Build command finished",
		zap.String("command", result.Command),
		zap.Bool("success", result.Success),
		zap.Int("exit_code", result.ExitCode),
		zap.Duration("duration", result.Duration),
		zap.Int("diagnostics_bytes", len(result.Diagnostics)))

	return result
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	if !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s + line
}

// limitedWriter is an io.Writer that limits total bytes written.
type limitedWriter struct {
	w         io.Writer
	max       int64
	written   int64
	truncated bool
	discarded int64
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	n := len(p)

	if lw.written >= lw.max {
		lw.truncated = true
		lw.discarded += int64(n)
		return n, nil // Pretend we wrote it
	}

	remaining := lw.max - lw.written
	if int64(n) > remaining {
		// Partial write
		lw.truncated = true
		toWrite := p[:remaining]
		lw.discarded += int64(n) - remaining
		written, err := lw.w.Write(toWrite)
		lw.written += int64(written)
		return n, err // Return original length to avoid "short write" errors
	}

	written, err := lw.w.Write(p)
	lw.written += int64(written)
	return written, err
}
