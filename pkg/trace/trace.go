// Package trace persists finished run traces as JSON files, one per run.
// The orchestration core never reads these back; they exist for the
// embedding application and for offline inspection.
package trace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cexll/genrun-go/pkg/message"
	"github.com/cexll/genrun-go/pkg/model"
	"github.com/cexll/genrun-go/pkg/run"
	"github.com/cexll/genrun-go/pkg/tool"
)

// Record is the durable snapshot of one finished run.
type Record struct {
	RunID      string    `json:"run_id"`
	Label      string    `json:"label,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	FinalText  string    `json:"final_text,omitempty"`
	Value      any       `json:"value,omitempty"`
	Error      string    `json:"error,omitempty"`

	Conversation []message.Message       `json:"conversation,omitempty"`
	ToolCalls    []ToolCall              `json:"tool_calls,omitempty"`
	Attempts     []run.ValidationAttempt `json:"validation_attempts,omitempty"`
	Usage        model.TokenUsage        `json:"usage"`
}

// ToolCall is the serialized form of a tool invocation.
type ToolCall struct {
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`
	Result any            `json:"result,omitempty"`
	Err    string         `json:"error,omitempty"`
	Done   bool           `json:"done"`
}

// Store writes run records under a root directory.
type Store struct {
	root string

	mu  sync.Mutex
	now func() time.Time
}

// NewStore creates the root directory when missing.
func NewStore(root string) (*Store, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("trace: root directory is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("trace: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("trace: mkdir root: %w", err)
	}
	return &Store{root: abs, now: time.Now}, nil
}

// Root returns the absolute trace directory.
func (s *Store) Root() string { return s.root }

// Save writes one record. The filename combines the sanitized label and the
// run id, so traces sort by label and never collide.
func (s *Store) Save(rec Record) (string, error) {
	if strings.TrimSpace(rec.RunID) == "" {
		return "", errors.New("trace: record run id is empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = s.now().UTC()
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("trace: encode record: %w", err)
	}

	path := filepath.Join(s.root, fileName(rec.Label, rec.RunID))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("trace: write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("trace: finalize record: %w", err)
	}
	return path, nil
}

// Snapshot converts a finished run into a record and saves it. err is the
// run's terminal error, nil on success.
func (s *Store) Snapshot(res *run.Result, state *run.ExecutionState, started time.Time, runErr error) (string, error) {
	if state == nil {
		return "", errors.New("trace: state is nil")
	}
	rec := Record{
		RunID:        state.ID(),
		Label:        state.Label(),
		StartedAt:    started.UTC(),
		Conversation: state.Conversation(),
		ToolCalls:    convertToolCalls(state.ToolCalls()),
		Attempts:     state.Attempts(),
		Usage:        state.Usage(),
	}
	if res != nil {
		rec.FinalText = res.Text
		rec.Value = res.Value
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return s.Save(rec)
}

// List returns the saved trace files, newest last by name ordering.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("trace: read root: %w", err)
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Load reads one record back by file name.
func (s *Store) Load(name string) (*Record, error) {
	data, err := os.ReadFile(filepath.Join(s.root, filepath.Base(name)))
	if err != nil {
		return nil, fmt.Errorf("trace: read record: %w", err)
	}
	rec := &Record{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("trace: decode record: %w", err)
	}
	return rec, nil
}

func convertToolCalls(records []*tool.CallRecord) []ToolCall {
	if len(records) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(records))
	for _, rec := range records {
		out = append(out, ToolCall{
			Tool:   rec.Tool,
			Args:   rec.Args,
			Result: rec.Result,
			Err:    rec.Err,
			Done:   rec.Done,
		})
	}
	return out
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func fileName(label, runID string) string {
	label = unsafeChars.ReplaceAllString(strings.TrimSpace(label), "-")
	label = strings.Trim(label, "-.")
	if label == "" {
		label = "run"
	}
	return fmt.Sprintf("%s-%s.json", label, runID)
}
