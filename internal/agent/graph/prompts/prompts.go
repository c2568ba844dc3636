package prompts

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

var (
	//go:embed template/classify_prompt.txt
	classifyPrompt string
	//go:embed template/extraction_prompt.txt
	extractionPrompt string
	//go:embed template/routing_prompt.txt
	routingPrompt string
	//go:embed template/fallback_prompt.txt
	fallbackPrompt string
	//go:embed template/part_type_prompt.txt
	partTypePrompt string
	//go:embed template/symptom_prompt.txt
	symptomPrompt string
)

// ExtractionVars feeds the slot-extraction prompt.
type ExtractionVars struct {
	Appliance  string
	Identifier string
	Query      string
}

// RoutingVars feeds the handler-selection prompt.
type RoutingVars struct {
	Appliance  string
	Identifier string
	HelpNeeded string
	Details    string
}

// render formats a Go template through the Eino prompt component so prompt
// callbacks fire for every rendered instruction.
func render(ctx context.Context, name, tplText string, vars map[string]any) (string, error) {
	tpl := prompt.FromMessages(schema.GoTemplate, schema.UserMessage(tplText))
	// name the run so prompt observers can tell templates apart
	ctx = callbacks.ReuseHandlers(ctx, &callbacks.RunInfo{
		Name:      name,
		Type:      tpl.GetType(),
		Component: components.ComponentOfPrompt,
	})
	msgs, err := tpl.Format(ctx, vars)
	if err != nil {
		return "", fmt.Errorf("%s prompt render: %w", name, err)
	}
	if len(msgs) == 0 || msgs[0] == nil {
		return "", fmt.Errorf("%s prompt render: empty result", name)
	}
	return msgs[0].Content, nil
}

// RenderClassify renders the closed-label category instruction.
func RenderClassify(ctx context.Context, query string) (string, error) {
	return render(ctx, "classify", classifyPrompt, map[string]any{"Query": query})
}

// RenderExtraction renders the IDENTIFIER/HELP/DETAILS extraction instruction.
func RenderExtraction(ctx context.Context, v ExtractionVars) (string, error) {
	return render(ctx, "extraction", extractionPrompt, map[string]any{
		"Appliance":  v.Appliance,
		"Identifier": v.Identifier,
		"Query":      v.Query,
	})
}

// RenderRouting renders the instruction that picks one handler label.
func RenderRouting(ctx context.Context, v RoutingVars) (string, error) {
	return render(ctx, "routing", routingPrompt, map[string]any{
		"Appliance":  v.Appliance,
		"Identifier": v.Identifier,
		"HelpNeeded": v.HelpNeeded,
		"Details":    v.Details,
	})
}

// RenderFallback renders the off-domain redirection instruction.
func RenderFallback(ctx context.Context, query string) (string, error) {
	return render(ctx, "fallback", fallbackPrompt, map[string]any{"Query": query})
}

func RenderPartType(ctx context.Context, text string) (string, error) {
	return render(ctx, "part_type", partTypePrompt, map[string]any{"Text": text})
}

func RenderSymptom(ctx context.Context, text string) (string, error) {
	return render(ctx, "symptom", symptomPrompt, map[string]any{"Text": text})
}
