// Package registry keeps the known-files context that grounds successive
// generations: one record per path, most recently generated wins.
package registry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"specforge/internal/types"
)

// Registry is an ordered, path-deduplicated list of file contexts.
// It is not safe for concurrent use; a cycle owns it for its duration.
type Registry struct {
	entries []types.FileContext
}

// New creates a registry seeded with initial entries (deduplicated).
func New(initial ...types.FileContext) *Registry {
	r := &Registry{}
	r.Update(initial)
	return r
}

// Update appends entries after the existing ones, then keeps only the last
// occurrence of each path. Surviving entries keep the relative order of
// their last occurrence.
func (r *Registry) Update(entries []types.FileContext) {
	combined := make([]types.FileContext, 0, len(r.entries)+len(entries))
	combined = append(combined, r.entries...)
	combined = append(combined, entries...)

	seen := make(map[string]struct{}, len(combined))
	kept := make([]types.FileContext, 0, len(combined))
	for i := len(combined) - 1; i >= 0; i-- {
		if _, ok := seen[combined[i].Path]; ok {
			continue
		}
		seen[combined[i].Path] = struct{}{}
		kept = append(kept, combined[i])
	}

	for i, j := 0, len(kept)-1; i < j; i, j = i+1, j-1 {
		kept[i], kept[j] = kept[j], kept[i]
	}
	r.entries = kept
}

// Entries returns a copy of the registry in prompt order.
func (r *Registry) Entries() []types.FileContext {
	out := make([]types.FileContext, len(r.entries))
	copy(out, r.entries)
	return out
}

// Len returns the number of known files.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Lookup returns the record for path.
func (r *Registry) Lookup(path string) (types.FileContext, bool) {
	for _, e := range r.entries {
		if e.Path == path {
			return e, true
		}
	}
	return types.FileContext{}, false
}

// =============================================================================
// PERSISTENCE
// =============================================================================

type fileFormat struct {
	Files []types.FileContext `yaml:"files"`
}

// Load reads a registry saved by Save. A missing file yields an empty registry.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return New(), nil
		}
		return nil, fmt.Errorf("failed to read registry: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse registry %s: %w", path, err)
	}
	return New(f.Files...), nil
}

// Save writes the registry as YAML, creating parent directories.
func (r *Registry) Save(path string) error {
	data, err := yaml.Marshal(fileFormat{Files: r.Entries()})
	if err != nil {
		return fmt.Errorf("failed to marshal registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create registry directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
