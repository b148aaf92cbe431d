// Package run drives one orchestration run: hook application, the streaming
// generation loop with tool execution, and schema-validated retry.
package run

import (
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/cexll/genrun-go/pkg/message"
	"github.com/cexll/genrun-go/pkg/model"
	"github.com/cexll/genrun-go/pkg/tool"
)

// ValidationAttempt logs one failed schema validation. Append-only, bounded
// by the retry budget.
type ValidationAttempt struct {
	Attempt     int
	RawResponse string
	ErrorText   string
}

// ExecutionState is the shared mutable record of one run: conversation,
// tool calls, streaming buffer, and validation history. The embedding UI
// observes it while the run is live; it dies with the run. A sub-agent run
// owns its own independent state.
type ExecutionState struct {
	id    string
	label string

	mu       sync.Mutex
	stream   strings.Builder
	records  []*tool.CallRecord
	attempts []ValidationAttempt
	usage    model.TokenUsage

	history *message.History
	notify  func()
}

// NewExecutionState creates the state for one run. notify, when set, is a
// fire-and-forget refresh signal for the embedding UI.
func NewExecutionState(label string, notify func()) *ExecutionState {
	return &ExecutionState{
		id:      uuid.NewString(),
		label:   label,
		history: message.NewHistory(),
		notify:  notify,
	}
}

// ID returns the unique run identifier.
func (s *ExecutionState) ID() string { return s.id }

// Label returns the caller-supplied label. The core never interprets it;
// it exists for the persistence collaborator naming saved traces.
func (s *ExecutionState) Label() string { return s.label }

// RecordToolCall implements tool.Recorder. The record is live: the registry
// mutates it in place as the executor resolves.
func (s *ExecutionState) RecordToolCall(rec *tool.CallRecord) {
	s.mu.Lock()
	s.records = append(s.records, rec)
	s.mu.Unlock()
	s.Notify()
}

// ToolCalls returns the recorded tool calls, oldest first. The records are
// shared, not copied, so late executor mutation stays visible.
func (s *ExecutionState) ToolCalls() []*tool.CallRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*tool.CallRecord(nil), s.records...)
}

// AppendStream adds streamed text to the live buffer.
func (s *ExecutionState) AppendStream(text string) {
	s.mu.Lock()
	s.stream.WriteString(text)
	s.mu.Unlock()
	s.Notify()
}

// ResetStream clears the buffer at the start of a model step.
func (s *ExecutionState) ResetStream() {
	s.mu.Lock()
	s.stream.Reset()
	s.mu.Unlock()
}

// StreamSnapshot returns the partial output accumulated so far.
func (s *ExecutionState) StreamSnapshot() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream.String()
}

// AddUsage accumulates the token counts of one provider call.
func (s *ExecutionState) AddUsage(usage model.TokenUsage) {
	s.mu.Lock()
	s.usage.Add(usage)
	s.mu.Unlock()
}

// Usage returns the token counts accumulated across the run's calls.
func (s *ExecutionState) Usage() model.TokenUsage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// RecordAttempt appends one failed validation attempt.
func (s *ExecutionState) RecordAttempt(attempt ValidationAttempt) {
	s.mu.Lock()
	s.attempts = append(s.attempts, attempt)
	s.mu.Unlock()
}

// Attempts returns the validation failures logged so far.
func (s *ExecutionState) Attempts() []ValidationAttempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ValidationAttempt(nil), s.attempts...)
}

// ObserveConversation replaces the observable conversation snapshot.
func (s *ExecutionState) ObserveConversation(msgs []message.Message) {
	s.history.Replace(msgs)
	s.Notify()
}

// Conversation returns the last observed conversation.
func (s *ExecutionState) Conversation() []message.Message {
	return s.history.All()
}

// Notify pings the embedding UI, when wired. Fire-and-forget: no return
// value, no lock handoff.
func (s *ExecutionState) Notify() {
	if s.notify != nil {
		s.notify()
	}
}
