// Package patch applies the coarse line patch format that models use for
// "update file" entries.
//
// A patch is a newline separated list of directives:
//
//	+text   append "text" as a new final line
//	-text   delete the first line exactly equal to "text"
//
// Lines with any other first character (including blank lines) are ignored.
// There is no positional context: additions always land at the end and
// removals silently do nothing when no line matches. Directives are applied
// in order, so a removal can delete a line added earlier in the same patch.
package patch

import "strings"

const (
	opAdd    = '+'
	opRemove = '-'
)

// Apply returns original with every directive in p applied.
// The text after the prefix character is used verbatim, including any
// leading space, so "+ x" appends " x".
func Apply(original, p string) string {
	lines := strings.Split(original, "\n")

	for _, directive := range strings.Split(p, "\n") {
		if directive == "" {
			continue
		}
		text := directive[1:]

		switch directive[0] {
		case opAdd:
			lines = append(lines, text)
		case opRemove:
			lines = removeFirst(lines, text)
		}
	}

	return strings.Join(lines, "\n")
}

// removeFirst deletes the first element equal to text, if any.
func removeFirst(lines []string, text string) []string {
	for i, line := range lines {
		if line == text {
			return append(lines[:i], lines[i+1:]...)
		}
	}
	return lines
}

// Stats counts the add and remove directives in p.
func Stats(p string) (adds, removes int) {
	for _, directive := range strings.Split(p, "\n") {
		if directive == "" {
			continue
		}
		switch directive[0] {
		case opAdd:
			adds++
		case opRemove:
			removes++
		}
	}
	return adds, removes
}
