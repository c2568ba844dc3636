package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/tool"

	"github.com/appliance-router/server/internal/agent/llm"
	"github.com/appliance-router/server/internal/agent/model"
)

// ErrUnknownHandler is returned when a routing decision names no registered handler.
var ErrUnknownHandler = errors.New("unknown help handler")

// Registry maps handler keys to the tools that serve them.
type Registry struct {
	tools map[model.HelpIntent]tool.InvokableTool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[model.HelpIntent]tool.InvokableTool)}
}

// DefaultRegistry wires the built-in handlers. gen is used by the parts and
// symptoms handlers to reduce the request to a search term and may be nil.
func DefaultRegistry(gen llm.Generator) *Registry {
	r := NewRegistry()
	r.Register(model.HelpManual, newManualTool())
	r.Register(model.HelpParts, newPartsTool(gen))
	r.Register(model.HelpSymptoms, newSymptomsTool(gen))
	r.Register(model.HelpInstallation, newInstallationTool())
	return r
}

// Register replaces the handler for key.
func (r *Registry) Register(key model.HelpIntent, t tool.InvokableTool) {
	r.tools[key] = t
}

// names resolves each registered tool to its declared name.
func (r *Registry) names(ctx context.Context) (map[model.HelpIntent]string, []tool.BaseTool, error) {
	names := make(map[model.HelpIntent]string, len(r.tools))
	all := make([]tool.BaseTool, 0, len(r.tools))
	for key, t := range r.tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("tool info for %s: %w", key, err)
		}
		names[key] = info.Name
		all = append(all, t)
	}
	return names, all, nil
}
