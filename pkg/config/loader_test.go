package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoaderLoadsYAML(t *testing.T) {
	path := writeConfig(t, "genrun.yaml", `
version: "1.0.0"
models:
  fast: "openai:gpt-4o-mini"
  deep: "anthropic:claude-sonnet-4-20250514"
retries: 2
max_steps: 10
trace:
  dir: ./traces
telemetry:
  endpoint: http://localhost:4318
  service_name: genrun
`)
	loader, err := NewLoader(path)
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "openai:gpt-4o-mini", cfg.Models["fast"])
	assert.Equal(t, 2, cfg.Retries)
	assert.Equal(t, 10, cfg.MaxSteps)
	assert.Equal(t, "traces", cfg.Trace.Dir)
	assert.Equal(t, "http://localhost:4318", cfg.Telemetry.Endpoint)
	assert.NotEmpty(t, cfg.SourceHash)
	assert.Equal(t, path, cfg.SourcePath)
}

func TestLoaderDiscoversFileInDirectory(t *testing.T) {
	path := writeConfig(t, "genrun.json", `{"models":{"fast":"openai:gpt-4o-mini"}}`)
	loader, err := NewLoader(filepath.Dir(path))
	require.NoError(t, err)

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "openai:gpt-4o-mini", cfg.Models["fast"])
}

func TestLoaderRejectsMalformedSpec(t *testing.T) {
	path := writeConfig(t, "genrun.yaml", "models:\n  fast: \"gpt-4o-mini\"\n")
	loader, err := NewLoader(path)
	require.NoError(t, err)

	_, err = loader.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want provider:modelId")
}

func TestLoaderReloadKeepsLastGood(t *testing.T) {
	path := writeConfig(t, "genrun.yaml", "models:\n  fast: \"openai:gpt-4o-mini\"\n")
	loader, err := NewLoader(path)
	require.NoError(t, err)
	_, err = loader.Load()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(path, []byte("models:\n  fast: \"broken\"\n"), 0o644))
	cfg, err := loader.Reload()
	require.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, "openai:gpt-4o-mini", cfg.Models["fast"])

	last, ok := loader.Last()
	require.True(t, ok)
	assert.Equal(t, "openai:gpt-4o-mini", last.Models["fast"])
}

func TestModelSpecEnvOverride(t *testing.T) {
	cfg := &Config{Models: map[string]string{"fast": "openai:gpt-4o-mini"}}

	spec, err := cfg.ModelSpec("fast")
	require.NoError(t, err)
	assert.Equal(t, "openai:gpt-4o-mini", spec)

	t.Setenv("GEN_MODEL_FAST", "anthropic:claude-sonnet-4-20250514")
	spec, err = cfg.ModelSpec("fast")
	require.NoError(t, err)
	assert.Equal(t, "anthropic:claude-sonnet-4-20250514", spec)

	_, err = cfg.ModelSpec("missing")
	assert.Error(t, err)
}

func TestValidatorBounds(t *testing.T) {
	v := NewDefaultValidator()

	assert.Error(t, v.Validate(nil))
	assert.Error(t, v.Validate(&Config{Retries: -1}))
	assert.Error(t, v.Validate(&Config{MaxSteps: -1}))
	assert.Error(t, v.Validate(&Config{Models: map[string]string{"bad alias!": "openai:x"}}))
	assert.NoError(t, v.Validate(&Config{Models: map[string]string{"fast": "openai:x"}}))
}
