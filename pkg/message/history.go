package message

import "sync"

// History is an append-only message store shared between the engine and any
// observer polling partial conversations. All reads return copies.
type History struct {
	mu   sync.RWMutex
	msgs []Message
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{}
}

// Append adds one message to the end of the history.
func (h *History) Append(msg Message) {
	h.mu.Lock()
	h.msgs = append(h.msgs, msg)
	h.mu.Unlock()
}

// Replace swaps the entire stored sequence. History-replacing hooks rebuild
// the visible conversation through this.
func (h *History) Replace(msgs []Message) {
	cloned := CloneAll(msgs)
	h.mu.Lock()
	h.msgs = cloned
	h.mu.Unlock()
}

// All returns a deep copy of the stored sequence, oldest first.
func (h *History) All() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return CloneAll(h.msgs)
}

// Len reports the number of stored messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.msgs)
}
