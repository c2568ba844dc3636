// Package routing maps a completed slot set onto one help handler.
package routing

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/appliance-router/server/internal/agent/graph/prompts"
	"github.com/appliance-router/server/internal/agent/intent"
	"github.com/appliance-router/server/internal/agent/llm"
	"github.com/appliance-router/server/internal/agent/model"
	"github.com/appliance-router/server/internal/metrics"
	logx "github.com/appliance-router/server/pkg/logger"
)

// ErrMissingFields means the slot set lacks an identifier or a help intent and
// must go to the fallback handler instead.
var ErrMissingFields = errors.New("routing requires identifier and help intent")

const echoPrefix = "response:"

type Decider struct {
	gen         llm.Generator
	catalogBase string
	metrics     *metrics.Metrics
}

func NewDecider(gen llm.Generator, catalogBase string, m *metrics.Metrics) *Decider {
	return &Decider{gen: gen, catalogBase: catalogBase, metrics: m}
}

// Decide picks the handler for a completed slot set. Once the inputs are
// present it always succeeds: an unusable oracle label falls back to the parts
// keywords and then to manual.
func (d *Decider) Decide(ctx context.Context, c model.SlotCompletion) (*model.RoutingDecision, error) {
	identifier := strings.TrimSpace(c.Identifier)
	helpText := strings.TrimSpace(c.HelpText)
	if helpText == "" {
		helpText = string(c.HelpIntent)
	}
	if identifier == "" || helpText == "" {
		return nil, ErrMissingFields
	}

	handler, source := d.ask(ctx, c, identifier, helpText)
	if source != model.DecisionOracle {
		if _, ok := intent.Match(helpText, intent.PartsRules); ok {
			handler, source = model.HelpParts, model.DecisionKeyword
		} else {
			handler, source = model.HelpManual, model.DecisionDefault
		}
	}

	decision := &model.RoutingDecision{
		HandlerKey: handler,
		Source:     source,
		Context: model.RoutingContext{
			BaseURL:    BaseURL(d.catalogBase, identifier),
			Identifier: identifier,
			HelpIntent: helpText,
			Details:    c.Details,
			Category:   c.Category,
		},
	}
	d.metrics.ObserveRouting(string(handler), string(source))
	logx.Info().
		Str("component", "routing").
		Str("handler", string(handler)).
		Str("source", string(source)).
		Str("base_url", decision.Context.BaseURL).
		Msg("routing decided")
	return decision, nil
}

// ask returns the oracle's label, or an empty source when it is unusable.
func (d *Decider) ask(ctx context.Context, c model.SlotCompletion, identifier, helpText string) (model.HelpIntent, model.DecisionSource) {
	prompt, err := prompts.RenderRouting(ctx, prompts.RoutingVars{
		Appliance:  c.Category.String(),
		Identifier: identifier,
		HelpNeeded: helpText,
		Details:    c.Details,
	})
	if err != nil {
		logx.Error().Err(err).Str("component", "routing").Msg("failed to render prompt")
		return model.HelpNone, ""
	}

	out, err := d.gen.Generate(ctx, prompt, nil)
	if err != nil {
		logx.Warn().Err(err).Str("component", "routing").Msg("routing oracle failed, using heuristics")
		return model.HelpNone, ""
	}

	h, ok := ParseLabel(out)
	if !ok {
		logx.Warn().Str("component", "routing").Str("raw", out).Str("help", helpText).Msg("invalid handler label")
		return model.HelpNone, ""
	}
	return h, model.DecisionOracle
}

// ParseLabel normalizes an oracle label, dropping an echoed "response:" prefix.
func ParseLabel(raw string) (model.HelpIntent, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimSpace(strings.TrimPrefix(s, echoPrefix))
	return model.ParseHelpIntent(s)
}

// BaseURL is the catalog page of a model; spaces in the identifier are dropped.
func BaseURL(catalogBase, identifier string) string {
	id := strings.ReplaceAll(strings.TrimSpace(identifier), " ", "")
	return strings.TrimRight(catalogBase, "/") + "/Models/" + url.PathEscape(id)
}
