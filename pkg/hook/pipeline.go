// Package hook implements the message-rewriting pipeline applied to the
// conversation before every model call.
package hook

import (
	"sync"

	"github.com/cexll/genrun-go/pkg/message"
)

// Hook receives the current accumulated conversation and returns either a
// full replacement sequence or nil, the no-change sentinel. Hooks must be
// deterministic for a fixed underlying state: the retry engine reapplies the
// pipeline and depends on identical output.
type Hook func(msgs []message.Message) []message.Message

// Pipeline holds hooks in registration order. Registration is expected during
// run setup; Apply happens once per model attempt.
type Pipeline struct {
	mu    sync.RWMutex
	hooks []Hook
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{}
}

// Register appends a hook. Nil hooks are ignored.
func (p *Pipeline) Register(h Hook) {
	if h == nil {
		return
	}
	p.mu.Lock()
	p.hooks = append(p.hooks, h)
	p.mu.Unlock()
}

// Len reports the number of registered hooks.
func (p *Pipeline) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.hooks)
}

// Apply folds the registered hooks left to right. Each hook sees the previous
// hook's output; a nil return keeps the accumulated sequence unchanged. There
// is no short-circuiting. The input slice is never mutated.
func (p *Pipeline) Apply(msgs []message.Message) []message.Message {
	p.mu.RLock()
	hooks := p.hooks
	p.mu.RUnlock()

	current := message.CloneAll(msgs)
	for _, h := range hooks {
		if next := h(current); next != nil {
			current = next
		}
	}
	return current
}
