package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/appliance-router/server/internal/agent/graph/conversations"
	"github.com/appliance-router/server/internal/agent/model"
	errx "github.com/appliance-router/server/internal/core/error"
	"github.com/appliance-router/server/internal/metrics"
	logx "github.com/appliance-router/server/pkg/logger"
)

// ErrEmptyResponse is returned when the model produced no message at all.
var ErrEmptyResponse = errors.New("empty model response")

// Generator is the text-generation capability: a prompt plus ordered history in,
// free text out. Callers parse and validate the text themselves.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []*schema.Message) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string, history []*schema.Message) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, history []*schema.Message) (string, error) {
	return f(ctx, prompt, history)
}

type GeneratorConfig struct {
	// Component labels logs, callbacks and metrics, e.g. "nlu" or "response".
	Component string
	ModelName string
	Timeout   time.Duration
	Messages  *conversations.MessagesManager
	Metrics   *metrics.Metrics
}

// ChatModelGenerator runs a Generator on top of an Eino chat model.
type ChatModelGenerator struct {
	chat     einomodel.BaseChatModel
	cfg      GeneratorConfig
	pricing  model.Pricing
	hasPrice bool
}

func NewChatModelGenerator(chat einomodel.BaseChatModel, cfg GeneratorConfig) *ChatModelGenerator {
	if cfg.Messages == nil {
		cfg.Messages = conversations.NewMessagesManager(0)
	}
	if cfg.Component == "" {
		cfg.Component = "llm"
	}
	p, ok := model.ResolvePricing(cfg.ModelName)
	return &ChatModelGenerator{chat: chat, cfg: cfg, pricing: p, hasPrice: ok}
}

func (g *ChatModelGenerator) Generate(ctx context.Context, prompt string, history []*schema.Message) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}
	// run model callbacks as a chat model even when called from inside a lambda node
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      g.cfg.Component,
		Type:      g.cfg.ModelName,
		Component: components.ComponentOfChatModel,
	})

	msgs := g.cfg.Messages.BuildMessages(history, prompt)

	start := time.Now()
	out, err := g.chat.Generate(ctx, msgs)
	if err == nil && out == nil {
		err = ErrEmptyResponse
	}
	g.cfg.Metrics.ObserveGeneration(g.cfg.Component, time.Since(start), err)
	if err != nil {
		logx.Error().
			Err(err).
			Str("component", g.cfg.Component).
			Str("model", g.cfg.ModelName).
			Int("messages", len(msgs)).
			Msg("text generation failed")
		return "", errx.WrapGeneration(err)
	}

	g.recordUsage(out)
	return strings.TrimSpace(out.Content), nil
}

func (g *ChatModelGenerator) recordUsage(out *schema.Message) {
	if out.ResponseMeta == nil || out.ResponseMeta.Usage == nil {
		return
	}
	usage := out.ResponseMeta.Usage
	ev := logx.Debug().
		Str("component", g.cfg.Component).
		Str("model", g.cfg.ModelName).
		Int("prompt_tokens", usage.PromptTokens).
		Int("completion_tokens", usage.CompletionTokens).
		Int("total_tokens", usage.TotalTokens)
	if g.hasPrice {
		inC, outC, totalC := model.ComputeCost(usage, g.pricing)
		g.cfg.Metrics.AddCost(g.cfg.ModelName, totalC)
		ev = ev.Float64("input_cost_usd", inC).
			Float64("output_cost_usd", outC).
			Float64("total_cost_usd", totalC)
	}
	ev.Msg("LLM usage")
}

var _ Generator = (*ChatModelGenerator)(nil)
