// Package classifier decides whether a query concerns a supported appliance.
package classifier

import (
	"context"
	"strings"

	"github.com/appliance-router/server/internal/agent/graph/prompts"
	"github.com/appliance-router/server/internal/agent/llm"
	"github.com/appliance-router/server/internal/agent/model"
	"github.com/appliance-router/server/internal/metrics"
	logx "github.com/appliance-router/server/pkg/logger"
)

type Classifier struct {
	gen     llm.Generator
	metrics *metrics.Metrics
}

func New(gen llm.Generator, m *metrics.Metrics) *Classifier {
	return &Classifier{gen: gen, metrics: m}
}

// Classify returns refrigerator, dishwasher or other. Anything the oracle says
// outside those labels, including a failed call, is other.
func (c *Classifier) Classify(ctx context.Context, query string) model.Category {
	category := c.classify(ctx, query)
	c.metrics.ObserveClassification(category.String())
	return category
}

func (c *Classifier) classify(ctx context.Context, query string) model.Category {
	prompt, err := prompts.RenderClassify(ctx, query)
	if err != nil {
		logx.Error().Err(err).Str("component", "classifier").Msg("failed to render prompt")
		return model.CategoryOther
	}

	out, err := c.gen.Generate(ctx, prompt, nil)
	if err != nil {
		logx.Warn().Err(err).Str("component", "classifier").Msg("classification failed, defaulting to other")
		return model.CategoryOther
	}

	category := ParseCategory(out)
	logx.Debug().
		Str("component", "classifier").
		Str("raw", out).
		Str("category", category.String()).
		Msg("query classified")
	return category
}

// ParseCategory maps raw oracle output onto the closed label set.
func ParseCategory(raw string) model.Category {
	switch model.Category(strings.ToLower(strings.TrimSpace(raw))) {
	case model.CategoryRefrigerator:
		return model.CategoryRefrigerator
	case model.CategoryDishwasher:
		return model.CategoryDishwasher
	default:
		return model.CategoryOther
	}
}
