// Package diff computes line-level change statistics between two versions of a
// file using the sergi/go-diff library.
package diff

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// Stats summarizes a line diff.
type Stats struct {
	Added   int
	Removed int
}

// Changed reports whether any line was added or removed.
func (s Stats) Changed() bool {
	return s.Added > 0 || s.Removed > 0
}

// Engine wraps a configured diffmatchpatch instance.
type Engine struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// NewEngine creates a new diff engine with optimal settings
func NewEngine() *Engine {
	dmp := diffmatchpatch.New()
	// Optimize for code diffs
	dmp.DiffTimeout = 0 // Disable timeout for accuracy
	return &Engine{dmp: dmp}
}

// DefaultEngine is a singleton engine for general use
var DefaultEngine = NewEngine()

// Stats counts the lines added and removed going from oldContent to newContent.
func (e *Engine) Stats(oldContent, newContent string) Stats {
	// Line-level reduction: every line becomes one rune so the diff never
	// splits inside a line. A missing final newline is normalized first so
	// "a" and "a\n" compare as the same line.
	a, b, lineArray := e.dmp.DiffLinesToChars(terminate(oldContent), terminate(newContent))
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	var s Stats
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			s.Added += countLines(d.Text)
		case diffmatchpatch.DiffDelete:
			s.Removed += countLines(d.Text)
		}
	}
	return s
}

// LineStats is a convenience function using the default engine
func LineStats(oldContent, newContent string) (added, removed int) {
	s := DefaultEngine.Stats(oldContent, newContent)
	return s.Added, s.Removed
}

func terminate(s string) string {
	if s == "" || strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}

func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
