// Package config loads, validates, and watches the declarative runner
// configuration: model aliases, retry budgets, trace and telemetry settings.
package config

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/cexll/genrun-go/pkg/model"
)

// Config captures the declarative runner definition.
type Config struct {
	Version string `json:"version" yaml:"version"`

	// Models maps aliases to "provider:modelId" specs. The environment
	// variable GEN_MODEL_<ALIAS> overrides a file entry at resolution time.
	Models map[string]string `json:"models" yaml:"models"`

	// Retries is the schema-validation retry budget. Zero keeps the
	// engine default.
	Retries int `json:"retries" yaml:"retries"`

	// MaxSteps bounds tool-call steps per attempt. Zero keeps the engine
	// default.
	MaxSteps int `json:"max_steps" yaml:"max_steps"`

	Trace     TraceBlock     `json:"trace" yaml:"trace"`
	Telemetry TelemetryBlock `json:"telemetry" yaml:"telemetry"`

	SourcePath string `json:"-" yaml:"-"`
	SourceHash string `json:"-" yaml:"-"`
}

// TraceBlock configures run-trace persistence.
type TraceBlock struct {
	Dir string `json:"dir" yaml:"dir"`
}

// TelemetryBlock configures the OTLP trace exporter.
type TelemetryBlock struct {
	Endpoint    string `json:"endpoint" yaml:"endpoint"`
	ServiceName string `json:"service_name" yaml:"service_name"`
}

// Normalize trims whitespace and cleans paths.
func (c *Config) Normalize() {
	if c == nil {
		return
	}
	if c.Models == nil {
		c.Models = map[string]string{}
	} else {
		for alias, spec := range c.Models {
			c.Models[alias] = strings.TrimSpace(spec)
		}
	}
	if c.Trace.Dir != "" {
		c.Trace.Dir = filepath.Clean(c.Trace.Dir)
	}
	c.Telemetry.Endpoint = strings.TrimSpace(c.Telemetry.Endpoint)
	c.Telemetry.ServiceName = strings.TrimSpace(c.Telemetry.ServiceName)
}

// ModelSpec resolves an alias to its "provider:modelId" spec. The
// environment override GEN_MODEL_<ALIAS> wins over the file entry.
func (c *Config) ModelSpec(alias string) (string, error) {
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return "", errors.New("config: model alias is empty")
	}
	if env := os.Getenv(model.EnvAliasPrefix + strings.ToUpper(alias)); strings.TrimSpace(env) != "" {
		return strings.TrimSpace(env), nil
	}
	if spec, ok := c.Models[alias]; ok && spec != "" {
		return spec, nil
	}
	return "", fmt.Errorf("config: model alias %q not defined", alias)
}

// Loader loads, validates, and caches config state.
type Loader struct {
	path      string
	validator Validator

	mu   sync.Mutex
	last atomic.Pointer[Config]
}

// LoaderOption customizes loader behaviour.
type LoaderOption func(*Loader)

// WithValidator injects a custom Validator.
func WithValidator(v Validator) LoaderOption {
	return func(l *Loader) {
		l.validator = v
	}
}

// NewLoader wires a loader for the provided config path. The path may be a
// file or a directory holding genrun.yaml, genrun.yml, or genrun.json.
func NewLoader(path string, opts ...LoaderOption) (*Loader, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("config: path is required")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("config: resolve path: %w", err)
	}
	loader := &Loader{
		path:      abs,
		validator: NewDefaultValidator(),
	}
	for _, opt := range opts {
		opt(loader)
	}
	return loader, nil
}

// Path returns the absolute config path the loader was created with.
func (l *Loader) Path() string {
	return l.path
}

// Last returns the most recent valid configuration.
func (l *Loader) Last() (*Config, bool) {
	cfg := l.last.Load()
	if cfg == nil {
		return nil, false
	}
	return cfg, true
}

// Load reads, parses, and validates the configuration.
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cfg, err := l.loadOnce()
	if err != nil {
		return nil, err
	}
	l.last.Store(cfg)
	return cfg, nil
}

// Reload refreshes configuration, keeping the last good state on error.
func (l *Loader) Reload() (*Config, error) {
	prev, _ := l.Last()
	cfg, err := l.Load()
	if err != nil {
		if prev != nil {
			return prev, fmt.Errorf("config: reload failed, keeping last good config: %w", err)
		}
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) loadOnce() (*Config, error) {
	path, raw, err := readConfigPayload(l.path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeConfig(raw)
	if err != nil {
		return nil, err
	}
	cfg.SourcePath = path
	if l.validator != nil {
		if err := l.validator.Validate(cfg); err != nil {
			return nil, err
		}
	}
	cfg.SourceHash = computeConfigHash(raw)
	return cfg, nil
}

func readConfigPayload(path string) (string, []byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return path, nil, err
	}
	if !info.IsDir() {
		data, err := os.ReadFile(path)
		return path, data, err
	}
	for _, name := range []string{"genrun.yaml", "genrun.yml", "genrun.json"} {
		candidate := filepath.Join(path, name)
		data, err := os.ReadFile(candidate)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return candidate, nil, err
		}
		return candidate, data, nil
	}
	return filepath.Join(path, "genrun.yaml"), nil, fs.ErrNotExist
}

func decodeConfig(raw []byte) (*Config, error) {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, errors.New("config: payload is empty")
	}
	cfg := &Config{}
	if err := decodeMixedYAMLJSON(raw, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Parse parses yaml or json into Config without touching the filesystem.
func Parse(data []byte) (*Config, error) {
	return decodeConfig(data)
}

func decodeMixedYAMLJSON(data []byte, out any) error {
	if err := yaml.Unmarshal(data, out); err == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err == nil {
		return nil
	}
	return errors.New("config: decode failed: unsupported format")
}

func computeConfigHash(raw []byte) string {
	h := sha256.New()
	h.Write(raw)
	return hex.EncodeToString(h.Sum(nil))
}
