package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSpecification_WithFeatures(t *testing.T) {
	spec := Specification{Title: "Greeter", Language: "Go", Features: []string{"print hello"}}

	next := spec.WithFeatures("  add --name flag ", "", "   ")

	assert.Equal(t, []string{"print hello", "add --name flag"}, next.Features)
	assert.Equal(t, []string{"print hello"}, spec.Features, "original must not be mutated")
	assert.Equal(t, "Greeter", next.Title)
	assert.Equal(t, "Go", next.Language)
}

func TestGeneratedEntry_Kind(t *testing.T) {
	create := GeneratedEntry{Path: "a.go", Body: StringPtr("package a")}
	update := GeneratedEntry{Path: "a.go", Patch: StringPtr("+// x")}
	empty := GeneratedEntry{Path: "a.go"}

	assert.True(t, create.IsCreate())
	assert.False(t, create.IsUpdate())
	assert.True(t, update.IsUpdate())
	assert.False(t, update.IsCreate())
	assert.False(t, empty.IsCreate())
	assert.False(t, empty.IsUpdate())
}

func TestBuildDirective_NilSafe(t *testing.T) {
	var d *BuildDirective
	assert.False(t, d.HasCommand())
	assert.Equal(t, "", d.CommandLine())

	d = &BuildDirective{Command: "   "}
	assert.False(t, d.HasCommand())

	d = &BuildDirective{Command: " go build ./... "}
	assert.True(t, d.HasCommand())
	assert.Equal(t, "go build ./...", d.CommandLine())
}

func TestConversation_Clone(t *testing.T) {
	conv := UserPrompt("hi")
	clone := conv.Clone()
	clone[0].Content = "changed"

	assert.Equal(t, Conversation{{Role: RoleUser, Content: "hi"}}, conv)
	assert.Nil(t, Conversation(nil).Clone())
}

func TestGenerationResult_Contexts(t *testing.T) {
	result := &GenerationResult{Entries: []GeneratedEntry{
		{Path: "a.go", Summary: "A.", Interface: "func A()", Body: StringPtr("package a")},
		{Path: "b.go", Summary: "B.", Interface: "func B()", Patch: StringPtr("+// b")},
	}}

	assert.Equal(t, []FileContext{
		{Path: "a.go", Summary: "A.", Interface: "func A()"},
		{Path: "b.go", Summary: "B.", Interface: "func B()"},
	}, result.Contexts())

	var none *GenerationResult
	assert.Nil(t, none.Contexts())
}
