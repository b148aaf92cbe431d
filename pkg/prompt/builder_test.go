package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/genrun-go/pkg/message"
)

func TestAddMessageKeepsOrder(t *testing.T) {
	b := NewBuilder()
	b.AddMessage("system", "be terse")
	b.AddMessage("user", "hello")

	msgs := b.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, message.RoleSystem, msgs[0].Role)
	assert.Equal(t, "hello", msgs[1].Content)
}

func TestDefineVariableInstructionAddedOnce(t *testing.T) {
	b := NewBuilder()
	b.DefineVariable("SOURCE", "package main")
	b.DefineVariable("TARGET", "package lib")
	b.DefineVariable("SOURCE", "package other")

	systemCount := 0
	for _, msg := range b.Messages() {
		if msg.Role == message.RoleSystem {
			systemCount++
		}
	}
	assert.Equal(t, 1, systemCount)
}

func TestRenderPrependsVariablesInInsertionOrder(t *testing.T) {
	b := NewBuilder()
	b.DefineVariable("B", "second")
	b.DefineVariable("A", "first")

	out := b.Render([]string{"count is ", " done"}, 3)
	assert.True(t, strings.HasPrefix(out, "B: second\nA: first\n\n"))
	assert.True(t, strings.HasSuffix(out, "count is 3 done"))
}

func TestRenderWithoutVariables(t *testing.T) {
	b := NewBuilder()
	out := b.Render([]string{"plain $REF text"})
	// Unknown references pass through as literal characters.
	assert.Equal(t, "plain $REF text", out)
}

func TestRenderRedefinedVariableUsesLatestValue(t *testing.T) {
	b := NewBuilder()
	b.DefineVariable("X", "one")
	b.DefineVariable("X", "two")
	assert.Equal(t, "X: two\n\nbody", b.Render([]string{"body"}))
}
