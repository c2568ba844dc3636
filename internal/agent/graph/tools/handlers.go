package tools

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/appliance-router/server/internal/agent/graph/prompts"
	"github.com/appliance-router/server/internal/agent/llm"
	"github.com/appliance-router/server/internal/agent/model"
	logx "github.com/appliance-router/server/pkg/logger"
)

const (
	ToolManual       = "manual_lookup"
	ToolParts        = "parts_lookup"
	ToolSymptoms     = "symptom_lookup"
	ToolInstallation = "installation_lookup"
)

const missingModelReply = "I need your appliance's model number to find that information. It's usually found on a label inside the appliance."

// routingParams describes model.RoutingContext, the payload every help handler takes.
func routingParams() *schema.ParamsOneOf {
	return schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
		"base_url": {
			Type:     "string",
			Desc:     "Catalog page of the appliance model.",
			Required: true,
		},
		"identifier": {
			Type:     "string",
			Desc:     "Validated appliance model number.",
			Required: true,
		},
		"help_intent": {
			Type: "string",
			Desc: "Help request as stated by the user.",
		},
		"details": {
			Type: "string",
			Desc: "Specific request details.",
		},
		"appliance_category": {
			Type: "string",
			Desc: "refrigerator or dishwasher.",
		},
	})
}

func applianceName(in *model.RoutingContext) string {
	if in.Category.IsAppliance() {
		return in.Category.String()
	}
	return "appliance"
}

// subject picks the most specific text the user gave.
func subject(in *model.RoutingContext) string {
	if d := strings.TrimSpace(in.Details); d != "" {
		return d
	}
	return strings.TrimSpace(in.HelpIntent)
}

func newManualTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        ToolManual,
			Desc:        "Points the user to the product manuals and care guides of an appliance model.",
			ParamsOneOf: routingParams(),
		},
		func(ctx context.Context, in *model.RoutingContext) (*model.HandlerResult, error) {
			if in.BaseURL == "" || in.Identifier == "" {
				return &model.HandlerResult{Response: missingModelReply}, nil
			}
			return &model.HandlerResult{
				Response: fmt.Sprintf("You can find the manuals and care guides for your %s model %s here: %s",
					applianceName(in), in.Identifier, in.BaseURL),
				Success: true,
			}, nil
		},
	)
}

func newPartsTool(gen llm.Generator) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        ToolParts,
			Desc:        "Finds replacement parts for an appliance model and returns a parts search link.",
			ParamsOneOf: routingParams(),
		},
		func(ctx context.Context, in *model.RoutingContext) (*model.HandlerResult, error) {
			if in.BaseURL == "" || in.Identifier == "" {
				return &model.HandlerResult{Response: missingModelReply}, nil
			}
			part := refine(ctx, gen, prompts.RenderPartType, subject(in))
			search := fmt.Sprintf("%s/Parts/?SearchTerm=%s", in.BaseURL, url.QueryEscape(part))
			return &model.HandlerResult{
				Response: fmt.Sprintf("I can help you find %s parts for your %s. Please visit: %s\n\nWould you like help finding other parts?",
					part, in.Identifier, search),
				Success: true,
			}, nil
		},
	)
}

func newSymptomsTool(gen llm.Generator) tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        ToolSymptoms,
			Desc:        "Points the user to troubleshooting information for a problem with an appliance model.",
			ParamsOneOf: routingParams(),
		},
		func(ctx context.Context, in *model.RoutingContext) (*model.HandlerResult, error) {
			if in.BaseURL == "" || in.Identifier == "" {
				return &model.HandlerResult{Response: missingModelReply}, nil
			}
			symptom := refine(ctx, gen, prompts.RenderSymptom, subject(in))
			return &model.HandlerResult{
				Response: fmt.Sprintf("Here is troubleshooting help for %q on your %s model %s: %s/Symptoms/",
					symptom, applianceName(in), in.Identifier, in.BaseURL),
				Success: true,
			}, nil
		},
	)
}

func newInstallationTool() tool.InvokableTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name:        ToolInstallation,
			Desc:        "Points the user to installation and setup instructions of an appliance model.",
			ParamsOneOf: routingParams(),
		},
		func(ctx context.Context, in *model.RoutingContext) (*model.HandlerResult, error) {
			if in.BaseURL == "" || in.Identifier == "" {
				return &model.HandlerResult{Response: missingModelReply}, nil
			}
			return &model.HandlerResult{
				Response: fmt.Sprintf("Here are the installation instructions and videos for your %s model %s: %s/Installation/",
					applianceName(in), in.Identifier, in.BaseURL),
				Success: true,
			}, nil
		},
	)
}

// refine asks the oracle to shorten text to a search term and keeps text when that fails.
func refine(ctx context.Context, gen llm.Generator, render func(context.Context, string) (string, error), text string) string {
	if gen == nil || text == "" {
		return text
	}
	prompt, err := render(ctx, text)
	if err != nil {
		logx.Error().Err(err).Str("component", "tools").Msg("failed to render prompt")
		return text
	}
	out, err := gen.Generate(ctx, prompt, nil)
	if err != nil {
		logx.Warn().Err(err).Str("component", "tools").Msg("refinement failed, using request text")
		return text
	}
	out = strings.ToLower(strings.Trim(strings.TrimSpace(out), `"'.`))
	if out == "" {
		return text
	}
	return out
}
