package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"sort"

	"github.com/cexll/genrun-go/pkg/config"
)

func configCommand(ctx context.Context, argv []string, cfgPath string, streams ioStreams) error {
	set := flag.NewFlagSet("config", flag.ContinueOnError)
	set.SetOutput(streams.err)
	configFlag := set.String("config", cfgPath, "Path to runner config file or directory.")
	set.Usage = func() {
		fmt.Fprintln(streams.err, "Usage: genctl config <show|validate|watch>")
		fmt.Fprintln(streams.err, "\nFlags:")
		set.PrintDefaults()
	}
	if err := set.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	args := set.Args()
	if len(args) == 0 {
		set.Usage()
		return errors.New("config requires a subcommand")
	}

	loader, err := config.NewLoader(*configFlag)
	if err != nil {
		return err
	}
	switch args[0] {
	case "show":
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		writeConfigSummary(streams, cfg)
		return nil
	case "validate":
		cfg, err := loader.Load()
		if err != nil {
			return err
		}
		fmt.Fprintf(streams.out, "ok: %s (%s)\n", cfg.SourcePath, cfg.SourceHash[:12])
		return nil
	case "watch":
		if _, err := loader.Load(); err != nil {
			return err
		}
		err := loader.Watch(ctx, func(cfg *config.Config, err error) {
			if err != nil {
				fmt.Fprintf(streams.err, "reload failed: %v\n", err)
				return
			}
			fmt.Fprintf(streams.out, "reloaded: %s (%s)\n", cfg.SourcePath, cfg.SourceHash[:12])
		})
		if err != nil {
			return err
		}
		<-ctx.Done()
		return ctx.Err()
	default:
		set.Usage()
		return fmt.Errorf("unknown config subcommand %q", args[0])
	}
}

func writeConfigSummary(streams ioStreams, cfg *config.Config) {
	fmt.Fprintln(streams.out, "# genctl config")
	fmt.Fprintf(streams.out, "- Source: `%s`\n", cfg.SourcePath)
	fmt.Fprintf(streams.out, "- Hash: `%s`\n", cfg.SourceHash)
	fmt.Fprintf(streams.out, "- Retries: %d\n", cfg.Retries)
	fmt.Fprintf(streams.out, "- Max steps: %d\n", cfg.MaxSteps)
	if cfg.Trace.Dir != "" {
		fmt.Fprintf(streams.out, "- Trace dir: `%s`\n", cfg.Trace.Dir)
	}
	if cfg.Telemetry.Endpoint != "" {
		fmt.Fprintf(streams.out, "- Telemetry: `%s`\n", cfg.Telemetry.Endpoint)
	}
	if len(cfg.Models) == 0 {
		return
	}
	fmt.Fprintln(streams.out, "\n## Models")
	aliases := make([]string, 0, len(cfg.Models))
	for alias := range cfg.Models {
		aliases = append(aliases, alias)
	}
	sort.Strings(aliases)
	for _, alias := range aliases {
		fmt.Fprintf(streams.out, "- `%s` -> `%s`\n", alias, cfg.Models[alias])
	}
}
