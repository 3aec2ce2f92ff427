package orchestrator

import (
	"fmt"
	"strings"

	"specforge/internal/types"
)

// =============================================================================
// PROMPT CONSTRUCTION
// =============================================================================

// formatInstructions describes the document protocol and shows both entry
// patterns so the model can choose per file.
const formatInstructions = `Output format must be TOML with an array of [[code]] tables.
Each [[code]] table has filepath, summary and interface, plus exactly one of:
  code - the full content of a new file (or a full replacement)
  diff - changes to a file that already exists, one directive per line:
         "+text" appends text as the last line of the file,
         "-text" deletes the first line that is exactly text.
Optionally add a [build] table whose command builds or compiles the project.
The command is split on whitespace and run without a shell.

The example format is below:
Pattern 1: new file
[build]
command = "go build ./..."

[[code]]
filepath = "cmd/hello/main.go"
summary = "Entry point that prints 'Hello, World!' to the console."
interface = "func main()"
code = """
package main

import "fmt"

func main() { fmt.Println("Hello, World!") }
"""

Pattern 2: update file
[[code]]
filepath = "cmd/hello/main.go"
summary = "Entry point that prints 'Hello, World!' to the console."
interface = "func main()"
diff = """
+// main is the program entry point.
-import "fmt"
"""

Respond with the TOML document only.`

// BuildPrompt renders the generation prompt for spec, grounded on the files
// generated so far (one "path summary interface" line each, in registry order).
func BuildPrompt(spec types.Specification, known []types.FileContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Generate code for %s in %s.\n", spec.Title, spec.Language)
	b.WriteString("Specs are below:\n")
	for _, f := range spec.Features {
		b.WriteString("- ")
		b.WriteString(f)
		b.WriteByte('\n')
	}

	b.WriteString("\nThe files already generated are:\n")
	if len(known) == 0 {
		b.WriteString("(none)\n")
	}
	for _, fc := range known {
		fmt.Fprintf(&b, "%s %s %s\n", fc.Path, fc.Summary, fc.Interface)
	}

	b.WriteByte('\n')
	b.WriteString(formatInstructions)
	b.WriteByte('\n')
	return b.String()
}

// ParseRetryConversation re-sends base with an instruction to fix parseErr
// appended to its final user turn. base is not modified.
func ParseRetryConversation(base types.Conversation, parseErr error) types.Conversation {
	instruction := fmt.Sprintf(
		"Your previous response could not be parsed: %s\n"+
			"Respond again with the complete TOML document in the required format, fixing that error.",
		parseErr.Error())

	conv := base.Clone()
	for i := len(conv) - 1; i >= 0; i-- {
		if conv[i].Role == types.RoleUser {
			conv[i].Content = conv[i].Content + "\n\n" + instruction
			return conv
		}
	}
	return append(conv, types.Message{Role: types.RoleUser, Content: instruction})
}

// RepairConversation is the two-turn build repair request: the assistant turn
// replays the original generation prompt and the user turn carries the
// build diagnostics.
func RepairConversation(prompt, diagnostics string) types.Conversation {
	return types.Conversation{
		{Role: types.RoleAssistant, Content: prompt},
		{Role: types.RoleUser, Content: fixBuildMessage(diagnostics)},
	}
}

func fixBuildMessage(diagnostics string) string {
	return "The build failed with the following errors:\n" +
		strings.TrimRight(diagnostics, "\n") + "\n\n" +
		"Fix the code so the build succeeds. Respond with the TOML document in the same format, " +
		"listing every file you change."
}

// Merge folds a repair result into the current one. Entries always come from
// next; the build directive is replaced only when next declares one.
func Merge(current, next *types.GenerationResult) *types.GenerationResult {
	if current == nil {
		return next
	}
	if next == nil {
		return current
	}
	merged := &types.GenerationResult{
		Build:   current.Build,
		Entries: next.Entries,
	}
	if next.Build != nil {
		merged.Build = next.Build
	}
	return merged
}
