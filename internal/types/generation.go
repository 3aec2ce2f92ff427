// Package types provides the shared records that flow through a generation cycle.
// Types in this package are plain data with no behavior beyond small accessors,
// so every other internal package can depend on them without import cycles.
package types

import "strings"

// =============================================================================
// PRODUCT SPEC
// =============================================================================

// Specification is the product description a run generates code for.
// It is owned by the session driver; features may be appended between cycles.
type Specification struct {
	Title    string   `yaml:"title" json:"title"`
	Features []string `yaml:"features" json:"features"`
	Language string   `yaml:"language" json:"language"`
}

// WithFeatures returns a copy of the specification with extra features appended.
// Blank features are dropped.
func (s Specification) WithFeatures(extra ...string) Specification {
	out := Specification{
		Title:    s.Title,
		Language: s.Language,
		Features: make([]string, 0, len(s.Features)+len(extra)),
	}
	out.Features = append(out.Features, s.Features...)
	for _, f := range extra {
		if f = strings.TrimSpace(f); f != "" {
			out.Features = append(out.Features, f)
		}
	}
	return out
}

// =============================================================================
// FILE CONTEXT
// =============================================================================

// FileContext is what later prompts are told about a previously generated file.
// Path is the unique key inside a registry.
type FileContext struct {
	Path      string `yaml:"path" json:"path"`
	Summary   string `yaml:"summary" json:"summary"`
	Interface string `yaml:"interface" json:"interface"`
}

// =============================================================================
// GENERATED OUTPUT
// =============================================================================

// GeneratedEntry is one file-level unit of model output.
// Exactly one of Body or Patch is set: Body creates or replaces the file,
// Patch applies an incremental line patch to the existing file.
type GeneratedEntry struct {
	Path      string
	Summary   string
	Interface string
	Body      *string
	Patch     *string
}

// IsCreate reports whether the entry carries a full body.
func (e GeneratedEntry) IsCreate() bool {
	return e.Body != nil
}

// IsUpdate reports whether the entry carries a patch.
func (e GeneratedEntry) IsUpdate() bool {
	return e.Patch != nil && e.Body == nil
}

// Context projects the entry onto the registry record for its path.
func (e GeneratedEntry) Context() FileContext {
	return FileContext{Path: e.Path, Summary: e.Summary, Interface: e.Interface}
}

// BuildDirective declares how to verify generated files.
// An empty command means there is no verification step.
type BuildDirective struct {
	Command string
}

// HasCommand reports whether a verification command was declared.
func (d *BuildDirective) HasCommand() bool {
	return d != nil && strings.TrimSpace(d.Command) != ""
}

// CommandLine returns the declared command, or "" for a nil directive.
func (d *BuildDirective) CommandLine() string {
	if d == nil {
		return ""
	}
	return strings.TrimSpace(d.Command)
}

// GenerationResult is the decoded form of one model response.
// A nil Build means the document did not contain a build table at all.
type GenerationResult struct {
	Build   *BuildDirective
	Entries []GeneratedEntry
}

// Contexts returns the registry records for every entry, in declaration order.
func (r *GenerationResult) Contexts() []FileContext {
	if r == nil {
		return nil
	}
	out := make([]FileContext, 0, len(r.Entries))
	for _, e := range r.Entries {
		out = append(out, e.Context())
	}
	return out
}

// StringPtr is a convenience for building entries in code and tests.
func StringPtr(s string) *string {
	return &s
}
