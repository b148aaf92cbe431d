package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/genrun-go/pkg/message"
)

type nullModel struct{ id string }

func (nullModel) Generate(context.Context, []message.Message) (message.Message, error) {
	return message.Message{}, nil
}
func (nullModel) GenerateStream(context.Context, []message.Message, StreamCallback) error {
	return nil
}

func TestParseSpec(t *testing.T) {
	tests := []struct {
		name         string
		spec         string
		env          map[string]string
		wantProvider string
		wantModel    string
		wantErr      string
	}{
		{name: "direct", spec: "openai:gpt-4o", wantProvider: "openai", wantModel: "gpt-4o"},
		{name: "empty", spec: "  ", wantErr: "spec is empty"},
		{name: "missing model id", spec: "openai:", wantErr: "malformed spec"},
		{name: "missing provider", spec: ":gpt-4o", wantErr: "malformed spec"},
		{
			name:         "alias resolved from environment",
			spec:         "fast",
			env:          map[string]string{"GEN_MODEL_FAST": "anthropic:claude-3-5-haiku-latest"},
			wantProvider: "anthropic",
			wantModel:    "claude-3-5-haiku-latest",
		},
		{name: "alias unset", spec: "fast", wantErr: "GEN_MODEL_FAST is not set"},
		{
			name:    "alias value malformed",
			spec:    "fast",
			env:     map[string]string{"GEN_MODEL_FAST": "justamodel"},
			wantErr: "not a provider:modelId string",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			provider, modelID, err := ParseSpec(tt.spec)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantProvider, provider)
			assert.Equal(t, tt.wantModel, modelID)
		})
	}
}

func TestResolveUsesRegisteredFactory(t *testing.T) {
	RegisterProvider("testprov", func(id string) (Model, error) {
		return nullModel{id: id}, nil
	})

	mdl, err := Resolve("testprov:some-model")
	require.NoError(t, err)
	assert.IsType(t, nullModel{}, mdl)

	_, err = Resolve("nosuch:model")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}
