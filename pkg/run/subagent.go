package run

import (
	"context"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/cexll/genrun-go/pkg/tool"
)

// SubAgentBuildFunc assembles a nested run, with the parent's tool arguments
// in hand.
type SubAgentBuildFunc func(s *Setup, args map[string]any) (string, error)

// SubAgentTool wraps a nested run as a tool the parent model can call. The
// child run owns its own execution state, registry, and pipeline; parent and
// child share only the returned value and the notify callback carried in
// opts. Nested runs compose: a sub-agent may register sub-agents of its own.
func SubAgentTool(name, desc string, paramSchema *jsonschema.Schema, opts Options, build SubAgentBuildFunc) tool.Tool {
	return &tool.Func{
		ToolName:   name,
		ToolDesc:   desc,
		ToolSchema: paramSchema,
		Fn: func(ctx context.Context, args map[string]any) (any, error) {
			res, err := Run(ctx, opts, func(s *Setup) (string, error) {
				return build(s, args)
			})
			if err != nil {
				return nil, err
			}
			if res.Value != nil {
				return res.Value, nil
			}
			return res.Text, nil
		},
	}
}
