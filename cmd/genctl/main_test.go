package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cexll/genrun-go/pkg/config"
)

func testStreams() (ioStreams, *bytes.Buffer, *bytes.Buffer) {
	out := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	return ioStreams{out: out, err: errBuf}, out, errBuf
}

func writeTempConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "genrun.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunCLIRequiresCommand(t *testing.T) {
	streams, _, _ := testStreams()
	err := runCLI(context.Background(), nil, streams)
	assert.EqualError(t, err, "missing command")
}

func TestRunCLIUnknownCommand(t *testing.T) {
	streams, _, _ := testStreams()
	err := runCLI(context.Background(), []string{"bogus"}, streams)
	assert.EqualError(t, err, `unknown command "bogus"`)
}

func TestRunCommandRequiresTurnText(t *testing.T) {
	streams, _, _ := testStreams()
	err := runCommand(context.Background(), []string{"--model", "openai:gpt-4o-mini"}, "genrun.yaml", streams)
	assert.EqualError(t, err, "run requires turn text")
}

func TestRunCommandRequiresModel(t *testing.T) {
	streams, _, _ := testStreams()
	err := runCommand(context.Background(), []string{"do it"}, "genrun.yaml", streams)
	assert.EqualError(t, err, "run requires --model")
}

func TestConfigShow(t *testing.T) {
	path := writeTempConfig(t, `
models:
  fast: "openai:gpt-4o-mini"
retries: 2
trace:
  dir: traces
`)
	streams, out, _ := testStreams()
	err := configCommand(context.Background(), []string{"--config", path, "show"}, path, streams)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "`fast` -> `openai:gpt-4o-mini`")
	assert.Contains(t, out.String(), "- Retries: 2")
}

func TestConfigValidateRejectsBadSpec(t *testing.T) {
	path := writeTempConfig(t, "models:\n  fast: \"no-colon\"\n")
	streams, _, _ := testStreams()
	err := configCommand(context.Background(), []string{"--config", path, "validate"}, path, streams)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want provider:modelId")
}

func TestResolveSpecPrefersConfigAlias(t *testing.T) {
	cfg := &config.Config{Models: map[string]string{"fast": "openai:gpt-4o-mini"}}

	spec, err := resolveSpec("fast", cfg)
	require.NoError(t, err)
	assert.Equal(t, "openai:gpt-4o-mini", spec)

	// Full specs bypass the alias table.
	spec, err = resolveSpec("anthropic:claude-sonnet-4-20250514", cfg)
	require.NoError(t, err)
	assert.Equal(t, "anthropic:claude-sonnet-4-20250514", spec)

	// Unknown aliases pass through for the env fallback to handle.
	spec, err = resolveSpec("other", cfg)
	require.NoError(t, err)
	assert.Equal(t, "other", spec)
}

func TestLoadSchema(t *testing.T) {
	resp, err := loadSchema("")
	require.NoError(t, err)
	assert.Nil(t, resp)

	path := filepath.Join(t.TempDir(), "verdict.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"type":"object","properties":{"safe":{"type":"boolean"}},"required":["safe"]}`), 0o644))
	resp, err = loadSchema(path)
	require.NoError(t, err)
	require.NotNil(t, resp)

	_, err = loadSchema(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestMultiValue(t *testing.T) {
	var m multiValue
	require.NoError(t, m.Set("one"))
	require.NoError(t, m.Set(" two "))
	assert.Error(t, m.Set("  "))
	assert.Equal(t, []string{"one", "two"}, m.slice())
	assert.Equal(t, "one,two", m.String())
}
