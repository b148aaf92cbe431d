package run

import (
	"context"
	"sync"

	"github.com/cexll/genrun-go/pkg/message"
)

// Controller lets an interactive embedder pause a live run and inject
// messages into its conversation. Both are cooperative: the engine consults
// the controller between steps, never mid-call.
type Controller struct {
	mu       sync.Mutex
	paused   bool
	gate     chan struct{}
	injected []message.Message
}

func NewController() *Controller {
	return &Controller{}
}

// Pause blocks the run at its next checkpoint. Idempotent.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		c.paused = true
		c.gate = make(chan struct{})
	}
}

// Resume releases a paused run. Idempotent.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		c.paused = false
		close(c.gate)
	}
}

// Paused reports whether the run will block at its next checkpoint.
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Inject queues a user message for the run to pick up at its next
// checkpoint. Injected messages join the conversation in queue order.
func (c *Controller) Inject(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.injected = append(c.injected, message.User(text))
}

// wait blocks while paused, honoring context cancellation.
func (c *Controller) wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		paused, gate := c.paused, c.gate
		c.mu.Unlock()
		if !paused {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-gate:
		}
	}
}

// drain removes and returns the queued injections.
func (c *Controller) drain() []message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.injected
	c.injected = nil
	return out
}
