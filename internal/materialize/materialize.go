// Package materialize writes generated entries to disk.
//
// Body entries create or overwrite their target; patch entries read the
// existing target, apply the line patch and write the result back. There is
// no rollback: when a batch fails part-way, the entries already written stay
// on disk and the failure reports exactly which ones they were.
package materialize

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"specforge/internal/diff"
	"specforge/internal/patch"
	"specforge/internal/types"
)

// Action is what materializing an entry did to its target.
type Action string

const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
)

// ErrEmptyEntry rejects an entry with neither a body nor a patch.
var ErrEmptyEntry = errors.New("entry has neither body nor patch")

// MissingTargetError is returned for a patch entry whose target does not exist.
type MissingTargetError struct {
	Path string
	Err  error
}

func (e *MissingTargetError) Error() string {
	return fmt.Sprintf("patch target %s does not exist", e.Path)
}

func (e *MissingTargetError) Unwrap() error { return e.Err }

// PartialApplyError reports a batch that stopped after some entries were written.
type PartialApplyError struct {
	Applied []Outcome
	Failed  types.GeneratedEntry
	Err     error
}

func (e *PartialApplyError) Error() string {
	return fmt.Sprintf("materialized %d entries before %s failed: %v", len(e.Applied), e.Failed.Path, e.Err)
}

func (e *PartialApplyError) Unwrap() error { return e.Err }

// Outcome describes one materialized entry.
type Outcome struct {
	Path    string // as declared by the entry
	Target  string // path actually written
	Action  Action
	Added   int
	Removed int
}

// Materializer writes entries under an optional output root.
type Materializer struct {
	root   string
	logger *zap.Logger
	engine *diff.Engine
}

// New creates a Materializer. An empty root uses entry paths verbatim.
func New(root string, logger *zap.Logger) *Materializer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Materializer{
		root:   root,
		logger: logger,
		engine: diff.DefaultEngine,
	}
}

// Resolve maps an entry path to the path written on disk.
func (m *Materializer) Resolve(path string) string {
	if m.root == "" {
		return path
	}
	return filepath.Join(m.root, path)
}

// Materialize writes a single entry.
func (m *Materializer) Materialize(entry types.GeneratedEntry) (Outcome, error) {
	target := m.Resolve(entry.Path)
	out := Outcome{Path: entry.Path, Target: target}

	var previous, content string

	switch {
	case entry.IsCreate():
		out.Action = ActionCreate
		content = *entry.Body
		// Only used for line stats; a fresh file has no previous content.
		if data, err := os.ReadFile(target); err == nil {
			previous = string(data)
		}

	case entry.IsUpdate():
		out.Action = ActionUpdate
		data, err := os.ReadFile(target)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return out, &MissingTargetError{Path: entry.Path, Err: err}
			}
			return out, fmt.Errorf("failed to read %s: %w", target, err)
		}
		previous = string(data)
		content = patch.Apply(previous, *entry.Patch)

	default:
		return out, fmt.Errorf("%s: %w", entry.Path, ErrEmptyEntry)
	}

	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return out, fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(target, []byte(content), 0644); err != nil {
		return out, fmt.Errorf("failed to write file: %w", err)
	}

	stats := m.engine.Stats(previous, content)
	out.Added, out.Removed = stats.Added, stats.Removed

	fields := []zap.Field{
		zap.String("path", entry.Path),
		zap.String("action", string(out.Action)),
		zap.Int("lines_added", out.Added),
		zap.Int("lines_removed", out.Removed),
	}
	if entry.IsUpdate() {
		// Directive counts can differ from line stats when a removal misses.
		adds, removes := patch.Stats(*entry.Patch)
		fields = append(fields, zap.Int("patch_adds", adds), zap.Int("patch_removes", removes))
	}
	m.logger.Info("Materialized entry", fields...)

	return out, nil
}

// MaterializeAll writes entries in declaration order and stops at the first
// failure. The returned slice always holds the outcomes that were written.
func (m *Materializer) MaterializeAll(entries []types.GeneratedEntry) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(entries))
	for _, entry := range entries {
		out, err := m.Materialize(entry)
		if err != nil {
			if len(outcomes) > 0 {
				m.logger.Error("Materialization stopped part-way",
					zap.Int("applied", len(outcomes)),
					zap.String("failed", entry.Path),
					zap.Error(err))
			}
			return outcomes, &PartialApplyError{Applied: outcomes, Failed: entry, Err: err}
		}
		outcomes = append(outcomes, out)
	}
	return outcomes, nil
}
