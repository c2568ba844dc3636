// Package fallback recovers off-domain turns and turns whose slot-filling
// context is incomplete.
package fallback

import (
	"context"
	"strings"

	"github.com/appliance-router/server/internal/agent/graph/prompts"
	"github.com/appliance-router/server/internal/agent/llm"
	"github.com/appliance-router/server/internal/agent/model"
	"github.com/appliance-router/server/internal/agent/slotfill"
	logx "github.com/appliance-router/server/pkg/logger"
)

// OffDomainReply is used when the redirection cannot be generated.
const OffDomainReply = "I specialize in helping with refrigerators and dishwashers. Which appliance do you need help with?"

type Handler struct {
	gen llm.Generator
}

// New takes the free-form generator used for off-domain redirection.
func New(gen llm.Generator) *Handler {
	return &Handler{gen: gen}
}

// Handle applies the fields present in in to the session and answers from
// what the session then holds. Fields left nil in in are not touched.
func (h *Handler) Handle(ctx context.Context, s *model.Session, in model.FallbackInput) (string, error) {
	if err := h.apply(s, in); err != nil {
		return "", err
	}

	switch {
	case s.HasActiveDialogue() && s.Identifier != "":
		if err := s.Advance(model.StageAwaitingHelpIntent); err != nil {
			return "", err
		}
		s.PendingHelpIntent = model.HelpNone
		menu := slotfill.ServicesMenu(s.Category.String())
		s.LastPresentedMenu = menu
		h.record(s, in.Query, menu)
		h.log(s, "menu")
		return menu, nil

	case s.HasActiveDialogue():
		if err := s.Advance(model.StageAwaitingIdentifier); err != nil {
			return "", err
		}
		reply := slotfill.AskIdentifier(s.Category.String())
		h.record(s, in.Query, reply)
		h.log(s, "ask_identifier")
		return reply, nil

	default:
		h.log(s, "off_domain")
		return h.redirect(ctx, in.Query), nil
	}
}

func (h *Handler) apply(s *model.Session, in model.FallbackInput) error {
	if in.Category != nil && in.Category.IsAppliance() && *in.Category != s.Category {
		if s.HasActiveDialogue() {
			s.Category = *in.Category
		} else if err := s.Bind(*in.Category); err != nil {
			return err
		}
	}
	if in.Identifier != nil {
		if id, err := slotfill.ValidateIdentifier(*in.Identifier); err == nil {
			s.Identifier = id
		}
	}
	return nil
}

// record keeps the pairing of user and assistant turns inside a bound cycle.
func (h *Handler) record(s *model.Session, query, reply string) {
	if query != "" {
		s.AddUserTurn(query)
		s.AddAssistantTurn(reply)
	}
}

func (h *Handler) redirect(ctx context.Context, query string) string {
	prompt, err := prompts.RenderFallback(ctx, query)
	if err != nil {
		logx.Error().Err(err).Str("component", "fallback").Msg("failed to render prompt")
		return OffDomainReply
	}
	out, err := h.gen.Generate(ctx, prompt, nil)
	if err != nil {
		logx.Warn().Err(err).Str("component", "fallback").Msg("redirection failed, using fixed reply")
		return OffDomainReply
	}
	if out = strings.TrimSpace(out); out == "" {
		return OffDomainReply
	}
	return out
}

func (h *Handler) log(s *model.Session, branch string) {
	logx.Info().
		Str("session_key", s.Key).
		Str("component", "fallback").
		Str("stage", string(s.Stage)).
		Str("branch", branch).
		Msg("fallback handled")
}
