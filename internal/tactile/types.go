package tactile

import "time"

// =============================================================================
// VERIFICATION RESULT
// =============================================================================

// Verification is the outcome of running a build command.
// A failing build is a normal result, never an error.
type Verification struct {
	// Command is the command line that was run ("" when none was declared).
	Command string `json:"command"`

	// Success is true when the command exited zero or when there was no command.
	Success bool `json:"success"`

	// Skipped is true when no command was declared and nothing was spawned.
	Skipped bool `json:"skipped,omitempty"`

	// ExitCode is the process exit status, or -1 if the process never exited normally.
	ExitCode int `json:"exit_code"`

	// Diagnostics is the captured standard error. When the process could not
	// be started it holds the spawn error instead.
	Diagnostics string `json:"diagnostics"`

	// Truncated indicates Diagnostics hit the capture limit.
	Truncated      bool  `json:"truncated,omitempty"`
	TruncatedBytes int64 `json:"truncated_bytes,omitempty"`

	// Killed indicates the process was terminated (timeout or cancellation).
	Killed     bool   `json:"killed,omitempty"`
	KillReason string `json:"kill_reason,omitempty"`

	Duration time.Duration `json:"duration"`
}

// =============================================================================
// CONFIGURATION
// =============================================================================

// VerifierConfig controls how build commands are run.
type VerifierConfig struct {
	// WorkingDirectory is where the command runs ("" = current directory).
	WorkingDirectory string

	// Timeout bounds a single build (0 = no timeout beyond the caller's context).
	Timeout time.Duration

	// MaxDiagnosticBytes caps captured standard error.
	MaxDiagnosticBytes int64
}

// DefaultVerifierConfig returns sensible defaults.
func DefaultVerifierConfig() VerifierConfig {
	return VerifierConfig{
		Timeout:            5 * time.Minute,
		MaxDiagnosticBytes: 64 * 1024,
	}
}
