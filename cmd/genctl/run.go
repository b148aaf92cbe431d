package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/cexll/genrun-go/pkg/config"
	"github.com/cexll/genrun-go/pkg/model"
	"github.com/cexll/genrun-go/pkg/run"
	"github.com/cexll/genrun-go/pkg/schema"
	"github.com/cexll/genrun-go/pkg/telemetry"
	"github.com/cexll/genrun-go/pkg/trace"

	_ "github.com/cexll/genrun-go/pkg/model/anthropic"
	_ "github.com/cexll/genrun-go/pkg/model/openai"
)

func runCommand(ctx context.Context, argv []string, cfgPath string, streams ioStreams) error {
	set := flag.NewFlagSet("run", flag.ContinueOnError)
	set.SetOutput(streams.err)
	var (
		modelFlag    = set.String("model", "", "Model spec (provider:modelId) or alias resolved via config/GEN_MODEL_*.")
		schemaFlag   = set.String("schema", "", "Path to a JSON schema the final answer must satisfy.")
		labelFlag    = set.String("label", "", "Label for the saved run trace.")
		retriesFlag  = set.Int("retries", 0, "Schema-validation retry budget (0 uses the default).")
		maxStepsFlag = set.Int("max-steps", 0, "Tool-call step budget per attempt (0 uses the default).")
		traceFlag    = set.String("trace-dir", "", "Directory for run traces (overrides config).")
		configFlag   = set.String("config", cfgPath, "Path to runner config file or directory.")
	)
	var systemFlags multiValue
	set.Var(&systemFlags, "system", "System prompt. Repeatable; prompts are concatenated in order.")
	set.Usage = func() {
		fmt.Fprintln(streams.err, "Usage: genctl run [flags] \"turn text\"")
		fmt.Fprintln(streams.err, "\nFlags:")
		set.PrintDefaults()
		fmt.Fprintln(streams.err, "\nExamples:")
		fmt.Fprintln(streams.err, "  genctl run --model openai:gpt-4o-mini \"summarize README.md\"")
		fmt.Fprintln(streams.err, "  genctl run --model fast --schema verdict.json \"is this PR safe?\"")
		fmt.Fprintln(streams.err, "  genctl run --model deep --system \"be terse\" --label review \"review main.go\"")
	}
	if err := set.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	turn := strings.TrimSpace(strings.Join(set.Args(), " "))
	if turn == "" {
		return errors.New("run requires turn text")
	}
	if strings.TrimSpace(*modelFlag) == "" {
		return errors.New("run requires --model")
	}

	cfg, err := loadOptionalConfig(*configFlag)
	if err != nil {
		return err
	}
	if cfg != nil && cfg.Telemetry.Endpoint != "" {
		shutdown, err := telemetry.Init(ctx, cfg.Telemetry.Endpoint, pickString(cfg.Telemetry.ServiceName, "genctl"))
		if err != nil {
			return fmt.Errorf("init telemetry: %w", err)
		}
		defer shutdown(context.Background())
	}

	spec, err := resolveSpec(*modelFlag, cfg)
	if err != nil {
		return err
	}
	mdl, err := model.Resolve(spec)
	if err != nil {
		return err
	}

	responseSchema, err := loadSchema(*schemaFlag)
	if err != nil {
		return err
	}

	opts := run.Options{
		Model:          mdl,
		SystemPrompts:  systemFlags.slice(),
		ResponseSchema: responseSchema,
		Label:          *labelFlag,
		Retries:        *retriesFlag,
		MaxSteps:       *maxStepsFlag,
	}
	if cfg != nil {
		if opts.Retries == 0 {
			opts.Retries = cfg.Retries
		}
		if opts.MaxSteps == 0 {
			opts.MaxSteps = cfg.MaxSteps
		}
	}

	started := time.Now()
	var state *run.ExecutionState
	res, runErr := run.Run(ctx, opts, func(s *run.Setup) (string, error) {
		state = s.State
		return turn, nil
	})

	if dir := traceDir(*traceFlag, cfg); dir != "" && state != nil {
		store, serr := trace.NewStore(dir)
		if serr == nil {
			if path, serr := store.Snapshot(res, state, started, runErr); serr == nil {
				fmt.Fprintf(streams.err, "trace saved: %s\n", path)
			}
		}
	}
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	writeMarkdownResult(streams.out, res, resultMeta{Model: spec, Label: *labelFlag, Elapsed: time.Since(started)})
	return nil
}

func loadOptionalConfig(path string) (*config.Config, error) {
	loader, err := config.NewLoader(path)
	if err != nil {
		return nil, err
	}
	cfg, err := loader.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return cfg, nil
}

// resolveSpec prefers the config alias table; bare aliases fall back to the
// GEN_MODEL_* environment convention inside model.Resolve.
func resolveSpec(flagValue string, cfg *config.Config) (string, error) {
	flagValue = strings.TrimSpace(flagValue)
	if strings.Contains(flagValue, ":") || cfg == nil {
		return flagValue, nil
	}
	if spec, err := cfg.ModelSpec(flagValue); err == nil {
		return spec, nil
	}
	return flagValue, nil
}

func loadSchema(path string) (*schema.Response, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	js := &jsonschema.Schema{}
	if err := json.Unmarshal(data, js); err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", path, err)
	}
	return schema.Compile(js)
}

func traceDir(flagValue string, cfg *config.Config) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	if cfg != nil {
		return cfg.Trace.Dir
	}
	return ""
}

type resultMeta struct {
	Model   string
	Label   string
	Elapsed time.Duration
}

func writeMarkdownResult(out io.Writer, res *run.Result, meta resultMeta) {
	if out == nil || res == nil {
		return
	}
	fmt.Fprintln(out, "# genctl run")
	fmt.Fprintf(out, "- Model: `%s`\n", labelOrNA(meta.Model))
	if meta.Label != "" {
		fmt.Fprintf(out, "- Label: `%s`\n", meta.Label)
	}
	fmt.Fprintf(out, "- Elapsed: %dms\n", meta.Elapsed.Milliseconds())
	fmt.Fprintln(out, "\n## Output")
	if res.Value != nil {
		encoded, err := json.MarshalIndent(res.Value, "", "  ")
		if err == nil {
			fmt.Fprintf(out, "```json\n%s\n```\n", encoded)
		} else {
			fmt.Fprintf(out, "```\n%s\n```\n", res.Text)
		}
	} else {
		fmt.Fprintf(out, "```\n%s\n```\n", res.Text)
	}
	if res.State == nil {
		return
	}
	if usage := res.State.Usage(); usage.TotalTokens > 0 {
		fmt.Fprintln(out, "\n## Usage")
		fmt.Fprintf(out, "- Input tokens: %d\n", usage.InputTokens)
		fmt.Fprintf(out, "- Output tokens: %d\n", usage.OutputTokens)
		fmt.Fprintf(out, "- Total tokens: %d\n", usage.TotalTokens)
	}
	if attempts := res.State.Attempts(); len(attempts) > 0 {
		fmt.Fprintln(out, "\n## Validation Retries")
		for _, a := range attempts {
			fmt.Fprintf(out, "- attempt %d: %s\n", a.Attempt, a.ErrorText)
		}
	}
	calls := res.State.ToolCalls()
	if len(calls) == 0 {
		return
	}
	fmt.Fprintln(out, "\n## Tool Calls")
	for _, call := range calls {
		status := "ok"
		if call.Err != "" {
			status = "error"
		}
		fmt.Fprintf(out, "- `%s` (%s)\n", call.Tool, status)
	}
}

func pickString(primary, fallback string) string {
	primary = strings.TrimSpace(primary)
	if primary != "" {
		return primary
	}
	return strings.TrimSpace(fallback)
}

func labelOrNA(value string) string {
	if strings.TrimSpace(value) == "" {
		return "n/a"
	}
	return value
}

type multiValue []string

func (m *multiValue) String() string {
	return strings.Join(m.slice(), ",")
}

func (m *multiValue) Set(value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return errors.New("value cannot be empty")
	}
	*m = append(*m, trimmed)
	return nil
}

func (m *multiValue) slice() []string {
	if m == nil {
		return nil
	}
	return append([]string(nil), (*m)...)
}
