// Package slotfill runs the sub-dialogue that collects an appliance model
// number and a help intent for a bound appliance category.
package slotfill

import (
	"context"
	"fmt"
	"strings"

	"github.com/appliance-router/server/internal/agent/graph/parsers"
	"github.com/appliance-router/server/internal/agent/graph/prompts"
	"github.com/appliance-router/server/internal/agent/intent"
	"github.com/appliance-router/server/internal/agent/llm"
	"github.com/appliance-router/server/internal/agent/model"
	logx "github.com/appliance-router/server/pkg/logger"
)

// Result is the outcome of one slot-filling turn. Completion is set only when
// both identifier and help intent are resolved.
type Result struct {
	Reply      string
	Completion *model.SlotCompletion
}

type Agent struct {
	gen llm.Generator
}

func New(gen llm.Generator) *Agent {
	return &Agent{gen: gen}
}

// Handle processes one user turn for a session bound to an appliance. It owns
// the whole session: every path appends the user turn and exactly one
// assistant turn.
func (a *Agent) Handle(ctx context.Context, s *model.Session, query string) (*Result, error) {
	if !s.HasActiveDialogue() {
		return nil, fmt.Errorf("slot filling without a bound category: %w", model.ErrInvalidTransition)
	}
	appliance := s.Category.String()
	first := len(s.Turns) == 0
	s.AddUserTurn(query)

	if first {
		return a.reply(s, IdentifierPrompt(appliance)), nil
	}

	ext := a.extract(ctx, s, query)

	switch s.Stage {
	case model.StageAwaitingIdentifier:
		return a.awaitIdentifier(s, ext)
	case model.StageAwaitingHelpIntent:
		return a.awaitHelpIntent(s, ext, query)
	default:
		return nil, fmt.Errorf("slot filling in stage %s: %w", s.Stage, model.ErrInvalidTransition)
	}
}

func (a *Agent) extract(ctx context.Context, s *model.Session, query string) *model.ExtractionResult {
	prompt, err := prompts.RenderExtraction(ctx, prompts.ExtractionVars{
		Appliance:  s.Category.String(),
		Identifier: s.Identifier,
		Query:      query,
	})
	if err != nil {
		logx.Error().Err(err).Str("session_key", s.Key).Str("component", "slotfill").Msg("failed to render prompt")
		return parsers.ParseExtraction("")
	}

	// the current query is already in the prompt
	history := s.Turns[:len(s.Turns)-1]
	out, err := a.gen.Generate(ctx, prompt, history)
	if err != nil {
		logx.Warn().Err(err).Str("session_key", s.Key).Str("component", "slotfill").Msg("extraction failed, continuing without oracle output")
		out = ""
	}

	ext := parsers.ParseExtraction(out)
	logx.Debug().
		Str("session_key", s.Key).
		Str("component", "slotfill").
		Str("stage", string(s.Stage)).
		Bool("has_identifier", ext.HasIdentifier).
		Bool("has_help", ext.HasHelpIntent).
		Bool("has_details", ext.HasDetails).
		Interface("parsing", ext.ParsingMetadata).
		Msg("extraction parsed")
	return ext
}

func (a *Agent) awaitIdentifier(s *model.Session, ext *model.ExtractionResult) (*Result, error) {
	appliance := s.Category.String()
	if !ext.HasIdentifier {
		return a.reply(s, AskIdentifier(appliance)), nil
	}

	id, err := ValidateIdentifier(ext.Identifier)
	if err != nil {
		logx.Info().
			Str("session_key", s.Key).
			Str("component", "slotfill").
			Str("identifier", ext.Identifier).
			Msg("identifier rejected")
		return a.reply(s, InvalidIdentifier(appliance)), nil
	}
	if err := s.SetIdentifier(id); err != nil {
		return nil, err
	}

	if h, text, ok := resolveHelp(ext); ok {
		return a.complete(s, h, text, ext.Details)
	}
	return a.menu(s), nil
}

func (a *Agent) awaitHelpIntent(s *model.Session, ext *model.ExtractionResult, query string) (*Result, error) {
	if ext.HasIdentifier {
		id, err := ValidateIdentifier(ext.Identifier)
		switch {
		case err != nil:
			logx.Debug().Str("session_key", s.Key).Str("component", "slotfill").Msg("ignoring invalid identifier correction")
		case id != s.Identifier:
			logx.Info().
				Str("session_key", s.Key).
				Str("component", "slotfill").
				Str("old", s.Identifier).
				Str("new", id).
				Msg("identifier corrected")
			if err := s.SetIdentifier(id); err != nil {
				return nil, err
			}
		}
	}

	if h, text, ok := resolveHelp(ext); ok {
		return a.complete(s, h, text, ext.Details)
	}
	if rule, ok := intent.Match(query, intent.SelectionRules); ok {
		return a.complete(s, rule.Intent, string(rule.Intent), rule.Details)
	}
	return a.menu(s), nil
}

// resolveHelp accepts any non-empty HELP line. The intent is HelpNone when
// the text maps to no known label; routing then decides from the raw text.
func resolveHelp(ext *model.ExtractionResult) (model.HelpIntent, string, bool) {
	if !ext.HasHelpIntent {
		return model.HelpNone, "", false
	}
	text := strings.TrimSpace(ext.HelpIntent)
	if text == "" {
		return model.HelpNone, "", false
	}
	h, _ := intent.Resolve(text)
	return h, text, true
}

func (a *Agent) complete(s *model.Session, h model.HelpIntent, helpText, details string) (*Result, error) {
	if helpText == "" {
		helpText = string(h)
	}
	if details == "" {
		details = intent.DefaultDetails(h)
	}
	if details == "" {
		details = helpText
	}
	if err := s.SetHelpIntent(h); err != nil {
		return nil, err
	}

	logx.Info().
		Str("session_key", s.Key).
		Str("component", "slotfill").
		Str("identifier", s.Identifier).
		Str("help", string(h)).
		Str("help_text", helpText).
		Msg("slots complete")

	res := a.reply(s, Acknowledgement(helpText, s.Identifier, details))
	res.Completion = &model.SlotCompletion{
		Identifier: s.Identifier,
		HelpIntent: h,
		HelpText:   helpText,
		Details:    details,
		Category:   s.Category,
	}
	return res, nil
}

func (a *Agent) menu(s *model.Session) *Result {
	menu := ServicesMenu(s.Category.String())
	s.LastPresentedMenu = menu
	return a.reply(s, menu)
}

func (a *Agent) reply(s *model.Session, text string) *Result {
	s.AddAssistantTurn(text)
	return &Result{Reply: text}
}
