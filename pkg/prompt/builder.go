// Package prompt accumulates caller-declared messages and named variables and
// renders the final user-turn text before a run starts.
package prompt

import (
	"fmt"
	"strings"

	"github.com/cexll/genrun-go/pkg/message"
)

const variableInstruction = "Some values in this conversation are provided as named variables. " +
	"Each variable is rendered as `NAME: content` before the instructions that use it; " +
	"treat the content as the value of that name."

type variable struct {
	name  string
	value string
}

// Builder collects messages and variables for one orchestration run.
// It is not safe for concurrent use; one builder belongs to one run.
type Builder struct {
	msgs       []message.Message
	vars       []variable
	index      map[string]int
	instructed bool
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{index: map[string]int{}}
}

// AddMessage appends one message to the run's base conversation.
func (b *Builder) AddMessage(role, text string) {
	b.msgs = append(b.msgs, message.Message{Role: message.NormalizeRole(role), Content: text})
}

// DefineVariable stores a name to text mapping. The first definition also
// appends a single system message documenting the substitution convention;
// later definitions reuse it.
func (b *Builder) DefineVariable(name, text string) {
	if !b.instructed {
		b.msgs = append(b.msgs, message.System(variableInstruction))
		b.instructed = true
	}
	if idx, ok := b.index[name]; ok {
		b.vars[idx].value = text
		return
	}
	b.index[name] = len(b.vars)
	b.vars = append(b.vars, variable{name: name, value: text})
}

// Render interpolates values into parts positionally and prepends one
// `NAME: text` line per defined variable, in insertion order, so the model
// sees variable content directly. Unknown references in free text are left
// untouched.
func (b *Builder) Render(parts []string, values ...any) string {
	var sb strings.Builder
	for i, v := range b.vars {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%s: %s", v.name, v.value)
	}
	if len(b.vars) > 0 {
		sb.WriteString("\n\n")
	}
	for i, part := range parts {
		sb.WriteString(part)
		if i < len(values) {
			sb.WriteString(fmt.Sprint(values[i]))
		}
	}
	return sb.String()
}

// Messages returns a copy of the accumulated base conversation.
func (b *Builder) Messages() []message.Message {
	return message.CloneAll(b.msgs)
}
