package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"github.com/google/uuid"

	"github.com/appliance-router/server/internal/agent/model"
	errx "github.com/appliance-router/server/internal/core/error"
	"github.com/appliance-router/server/internal/metrics"
	logx "github.com/appliance-router/server/pkg/logger"
)

// FailureReply is what the user sees when a help handler fails.
func FailureReply(baseURL string) string {
	if baseURL == "" {
		return "Sorry, I couldn't complete that request right now. Please try again in a moment."
	}
	return fmt.Sprintf("Sorry, I couldn't complete that request right now. Please try again in a moment, or visit %s directly.", baseURL)
}

// Dispatcher invokes the help handler named by a routing decision. Handlers
// run through an Eino tools node so tool callbacks observe every call.
type Dispatcher struct {
	node    *compose.ToolsNode
	names   map[model.HelpIntent]string
	timeout time.Duration
	metrics *metrics.Metrics
}

func NewDispatcher(ctx context.Context, registry *Registry, timeout time.Duration, m *metrics.Metrics) (*Dispatcher, error) {
	if registry == nil {
		return nil, fmt.Errorf("tool registry is nil")
	}
	names, all, err := registry.names(ctx)
	if err != nil {
		return nil, err
	}

	node, err := compose.NewToolNode(ctx, &compose.ToolsNodeConfig{
		Tools:               all,
		ExecuteSequentially: true,
		ToolArgumentsHandler: func(ctx context.Context, name, arguments string) (string, error) {
			// trims the payload; undecodable arguments pass through unchanged
			var rc model.RoutingContext
			if err := json.Unmarshal([]byte(arguments), &rc); err != nil {
				return arguments, nil
			}
			rc.BaseURL = strings.TrimSpace(rc.BaseURL)
			rc.Identifier = strings.TrimSpace(rc.Identifier)
			rc.HelpIntent = strings.TrimSpace(rc.HelpIntent)
			rc.Details = strings.TrimSpace(rc.Details)
			b, err := json.Marshal(rc)
			if err != nil {
				return arguments, nil
			}
			return string(b), nil
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Failed to create tools node")
		return nil, fmt.Errorf("failed to create tools node: %w", err)
	}

	return &Dispatcher{node: node, names: names, timeout: timeout, metrics: m}, nil
}

// Dispatch runs one handler call. It does not retry.
func (d *Dispatcher) Dispatch(ctx context.Context, decision *model.RoutingDecision) (*model.HandlerResult, error) {
	name, ok := d.names[decision.HandlerKey]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHandler, decision.HandlerKey)
	}

	args, err := json.Marshal(decision.Context)
	if err != nil {
		return nil, fmt.Errorf("marshal routing context: %w", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	call := schema.AssistantMessage("", []schema.ToolCall{{
		ID:   uuid.NewString(),
		Type: "function",
		Function: schema.FunctionCall{
			Name:      name,
			Arguments: string(args),
		},
	}})

	start := time.Now()
	out, err := d.node.Invoke(ctx, call)
	if err != nil {
		d.metrics.ObserveHandler(string(decision.HandlerKey), false)
		logx.Error().
			Err(err).
			Str("handler", string(decision.HandlerKey)).
			Dur("elapsed", time.Since(start)).
			Msg("help handler failed")
		return nil, errx.WrapHandler(err)
	}
	if len(out) == 0 || out[0] == nil {
		d.metrics.ObserveHandler(string(decision.HandlerKey), false)
		return nil, errx.WrapHandler(fmt.Errorf("handler %s returned nothing", name))
	}

	var res model.HandlerResult
	if err := json.Unmarshal([]byte(out[0].Content), &res); err != nil {
		d.metrics.ObserveHandler(string(decision.HandlerKey), false)
		return nil, errx.WrapHandler(fmt.Errorf("decode handler %s result: %w", name, err))
	}

	d.metrics.ObserveHandler(string(decision.HandlerKey), res.Success)
	logx.Info().
		Str("handler", string(decision.HandlerKey)).
		Bool("success", res.Success).
		Dur("elapsed", time.Since(start)).
		Msg("help handler finished")
	return &res, nil
}
