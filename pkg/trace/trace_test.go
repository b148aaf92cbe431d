package trace

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/genrun-go/pkg/message"
	"github.com/cexll/genrun-go/pkg/model"
	"github.com/cexll/genrun-go/pkg/run"
	"github.com/cexll/genrun-go/pkg/tool"
)

func TestStoreSaveAndLoad(t *testing.T) {
	store, err := NewStore(filepath.Join(t.TempDir(), "traces"))
	require.NoError(t, err)

	rec := Record{
		RunID:     "abc-123",
		Label:     "code review",
		StartedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		FinalText: "looks good",
		Conversation: []message.Message{
			message.User("review this"),
			message.Assistant("looks good"),
		},
		ToolCalls: []ToolCall{{Tool: "lookup", Done: true, Result: "x"}},
	}
	path, err := store.Save(rec)
	require.NoError(t, err)
	assert.Equal(t, "code-review-abc-123.json", filepath.Base(path))

	loaded, err := store.Load(filepath.Base(path))
	require.NoError(t, err)
	assert.Equal(t, "abc-123", loaded.RunID)
	assert.Equal(t, "looks good", loaded.FinalText)
	require.Len(t, loaded.Conversation, 2)
	assert.Equal(t, message.RoleUser, loaded.Conversation[0].Role)
	require.Len(t, loaded.ToolCalls, 1)
	assert.True(t, loaded.ToolCalls[0].Done)

	// No stray temp files left behind.
	entries, err := os.ReadDir(store.Root())
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestStoreRejectsEmptyRunID(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	_, err = store.Save(Record{})
	assert.EqualError(t, err, "trace: record run id is empty")
}

func TestStoreFileNameSanitized(t *testing.T) {
	cases := []struct {
		label string
		want  string
	}{
		{"", "run-id1.json"},
		{"weekly report", "weekly-report-id1.json"},
		{"../../evil", "evil-id1.json"},
		{"Ünïcode!", "n-code-id1.json"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, fileName(tc.label, "id1"), "label %q", tc.label)
	}
}

func TestStoreSnapshotFromState(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	state := run.NewExecutionState("summarize", nil)
	state.ObserveConversation([]message.Message{message.User("go")})
	state.RecordToolCall(&tool.CallRecord{Tool: "fetch", Done: true})
	state.RecordAttempt(run.ValidationAttempt{Attempt: 1, RawResponse: "bad", ErrorText: "not json"})
	state.AddUsage(model.TokenUsage{InputTokens: 5, OutputTokens: 3, TotalTokens: 8})

	started := time.Now().Add(-time.Second)
	path, err := store.Snapshot(&run.Result{Text: "done", State: state}, state, started, nil)
	require.NoError(t, err)

	loaded, err := store.Load(filepath.Base(path))
	require.NoError(t, err)
	assert.Equal(t, state.ID(), loaded.RunID)
	assert.Equal(t, "summarize", loaded.Label)
	assert.Equal(t, "done", loaded.FinalText)
	require.Len(t, loaded.Attempts, 1)
	assert.Equal(t, "not json", loaded.Attempts[0].ErrorText)
	assert.Equal(t, model.TokenUsage{InputTokens: 5, OutputTokens: 3, TotalTokens: 8}, loaded.Usage)
	assert.False(t, loaded.FinishedAt.IsZero())

	names, err := store.List()
	require.NoError(t, err)
	require.Len(t, names, 1)
}
