// Package document implements the structured document protocol spoken between
// the model and the generation loop.
//
// The document is TOML with two top-level elements:
//
//	[build]
//	command = "go build ./..."
//
//	[[code]]
//	filepath = "cmd/hello/main.go"
//	summary = "Entry point that prints a greeting."
//	interface = "func main()"
//	code = """
//	package main
//	"""
//
// The build table is optional. Every [[code]] record needs filepath, summary
// and interface, plus exactly one of code (full body) or diff (line patch).
package document

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"specforge/internal/types"
)

// fenceRe matches the first fenced block; the info string (```toml) is optional.
var fenceRe = regexp.MustCompile("(?s)```[^\\n`]*\\r?\\n(.*?)```")

// ParseError reports a malformed document. It is recoverable: the caller
// feeds Error() back to the model and asks for a corrected document.
type ParseError struct {
	Message string
	Line    int
	Column  int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("document parse error at line %d, column %d: %s", e.Line, e.Column, e.Message)
	}
	return "document parse error: " + e.Message
}

// IsParseError reports whether err is, or wraps, a *ParseError.
func IsParseError(err error) bool {
	var perr *ParseError
	return errors.As(err, &perr)
}

// wireDocument is the decode shape. Pointers distinguish "absent" from "empty".
type wireDocument struct {
	Build *wireBuild `toml:"build"`
	Code  []wireCode `toml:"code"`
}

type wireBuild struct {
	Command *string `toml:"command"`
}

type wireCode struct {
	Filepath  *string `toml:"filepath"`
	Summary   *string `toml:"summary"`
	Interface *string `toml:"interface"`
	Code      *string `toml:"code"`
	Diff      *string `toml:"diff"`
}

// encodeDocument is the encode shape.
type encodeDocument struct {
	Build *encodeBuild `toml:"build,omitempty"`
	Code  []encodeCode `toml:"code"`
}

type encodeBuild struct {
	Command string `toml:"command"`
}

type encodeCode struct {
	Filepath  string  `toml:"filepath"`
	Summary   string  `toml:"summary"`
	Interface string  `toml:"interface"`
	Code      *string `toml:"code,multiline,omitempty"`
	Diff      *string `toml:"diff,multiline,omitempty"`
}

// Extract returns the structured block inside raw model output.
// If a fenced block is present the first one wins, otherwise the whole text is used.
func Extract(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}

// Parse extracts the structured block from raw model output and decodes it.
func Parse(text string) (*types.GenerationResult, error) {
	return Decode(Extract(text))
}

// Decode strictly decodes an already extracted document.
func Decode(text string) (*types.GenerationResult, error) {
	var doc wireDocument
	if err := toml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, toParseError(err)
	}

	if len(doc.Code) == 0 {
		return nil, &ParseError{Message: "document has no [[code]] records"}
	}

	result := &types.GenerationResult{
		Entries: make([]types.GeneratedEntry, 0, len(doc.Code)),
	}

	if doc.Build != nil {
		if doc.Build.Command == nil {
			return nil, &ParseError{Message: "[build] table is missing required field \"command\""}
		}
		result.Build = &types.BuildDirective{Command: *doc.Build.Command}
	}

	for i, rec := range doc.Code {
		entry, err := rec.toEntry(i)
		if err != nil {
			return nil, err
		}
		result.Entries = append(result.Entries, entry)
	}

	return result, nil
}

func (w wireCode) toEntry(index int) (types.GeneratedEntry, error) {
	missing := func(field string) error {
		return &ParseError{Message: fmt.Sprintf("code record %d is missing required field %q", index+1, field)}
	}

	switch {
	case w.Filepath == nil:
		return types.GeneratedEntry{}, missing("filepath")
	case w.Summary == nil:
		return types.GeneratedEntry{}, missing("summary")
	case w.Interface == nil:
		return types.GeneratedEntry{}, missing("interface")
	}

	path := strings.TrimSpace(*w.Filepath)
	if path == "" {
		return types.GeneratedEntry{}, &ParseError{Message: fmt.Sprintf("code record %d has an empty filepath", index+1)}
	}

	if w.Code != nil && w.Diff != nil {
		return types.GeneratedEntry{}, &ParseError{
			Message: fmt.Sprintf("code record %d (%s) sets both \"code\" and \"diff\"; use exactly one", index+1, path),
		}
	}
	if w.Code == nil && w.Diff == nil {
		return types.GeneratedEntry{}, &ParseError{
			Message: fmt.Sprintf("code record %d (%s) sets neither \"code\" nor \"diff\"", index+1, path),
		}
	}

	return types.GeneratedEntry{
		Path:      path,
		Summary:   *w.Summary,
		Interface: *w.Interface,
		Body:      w.Code,
		Patch:     w.Diff,
	}, nil
}

// Encode renders a result in the document protocol. Bodies and patches are
// written as multi-line strings so the output doubles as a prompt example.
func Encode(result *types.GenerationResult) (string, error) {
	if result == nil {
		return "", fmt.Errorf("encode: nil result")
	}

	doc := encodeDocument{Code: make([]encodeCode, 0, len(result.Entries))}
	if result.Build != nil {
		doc.Build = &encodeBuild{Command: result.Build.Command}
	}
	for _, e := range result.Entries {
		if e.Body == nil && e.Patch == nil {
			return "", fmt.Errorf("encode: entry %s has neither body nor patch", e.Path)
		}
		doc.Code = append(doc.Code, encodeCode{
			Filepath:  e.Path,
			Summary:   e.Summary,
			Interface: e.Interface,
			Code:      e.Body,
			Diff:      e.Patch,
		})
	}

	data, err := toml.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("encode: %w", err)
	}
	return string(data), nil
}

func toParseError(err error) *ParseError {
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		row, col := derr.Position()
		return &ParseError{Message: derr.Error(), Line: row, Column: col}
	}
	var serr *toml.StrictMissingError
	if errors.As(err, &serr) {
		return &ParseError{Message: serr.Error()}
	}
	return &ParseError{Message: err.Error()}
}
