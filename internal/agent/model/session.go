package model

import (
	"errors"
	"time"

	"github.com/cloudwego/eino/schema"
)

// ErrHelpIntentWithoutIdentifier guards the slot ordering: a help intent is only
// accepted once an identifier has been validated.
var ErrHelpIntentWithoutIdentifier = errors.New("help intent set before identifier")

// Session is the server-side state of one conversation identity.
//
// Turns is replayed verbatim into every text-generation call of the current
// dialogue cycle, so it only ever holds complete user/assistant pairs.
type Session struct {
	Key               string            `json:"key"`
	Stage             Stage             `json:"stage"`
	Category          Category          `json:"category"`
	Identifier        string            `json:"identifier,omitempty"`
	PendingHelpIntent HelpIntent        `json:"pending_help_intent,omitempty"`
	LastPresentedMenu string            `json:"last_presented_menu,omitempty"`
	Turns             []*schema.Message `json:"turns"`
	UpdatedAt         time.Time         `json:"updated_at"`
}

// NewSession returns an empty session at the start of a dialogue cycle.
func NewSession(key string) *Session {
	return &Session{
		Key:       key,
		Stage:     StageAwaitingCategory,
		Category:  CategoryNone,
		Turns:     []*schema.Message{},
		UpdatedAt: time.Now().UTC(),
	}
}

// HasActiveDialogue reports whether a slot-filling cycle is bound to an appliance.
func (s *Session) HasActiveDialogue() bool {
	return s.Category.IsAppliance()
}

// Advance moves the session to the given stage, enforcing the transition table.
func (s *Session) Advance(to Stage) error {
	if err := Transition(s.Stage, to); err != nil {
		return err
	}
	s.Stage = to
	return nil
}

// Bind starts a dialogue cycle for an appliance category.
func (s *Session) Bind(c Category) error {
	if !c.IsAppliance() {
		return errors.New("cannot bind non-appliance category " + c.String())
	}
	if err := s.Advance(StageAwaitingIdentifier); err != nil {
		return err
	}
	s.Category = c
	return nil
}

// SetIdentifier stores a validated identifier. A later call replaces the
// previous value, which is how users correct a mistyped model number.
func (s *Session) SetIdentifier(id string) error {
	if err := s.Advance(StageAwaitingHelpIntent); err != nil {
		return err
	}
	s.Identifier = id
	return nil
}

// SetHelpIntent resolves the pending help intent and hands the session to routing.
func (s *Session) SetHelpIntent(h HelpIntent) error {
	if s.Identifier == "" {
		return ErrHelpIntentWithoutIdentifier
	}
	if err := s.Advance(StageRouting); err != nil {
		return err
	}
	s.PendingHelpIntent = h
	return nil
}

// AddUserTurn appends a user message to the dialogue history.
func (s *Session) AddUserTurn(text string) {
	s.Turns = append(s.Turns, schema.UserMessage(text))
}

// AddAssistantTurn appends an assistant message to the dialogue history.
func (s *Session) AddAssistantTurn(text string) {
	s.Turns = append(s.Turns, schema.AssistantMessage(text, nil))
}

// Reset clears the dialogue fields and history while keeping the session identity.
func (s *Session) Reset() {
	s.Stage = StageAwaitingCategory
	s.Category = CategoryNone
	s.Identifier = ""
	s.PendingHelpIntent = HelpNone
	s.LastPresentedMenu = ""
	s.Turns = []*schema.Message{}
	s.UpdatedAt = time.Now().UTC()
}

// Clone returns a deep copy so stores never share mutable state with callers.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Turns = make([]*schema.Message, 0, len(s.Turns))
	for _, m := range s.Turns {
		if m == nil {
			continue
		}
		out.Turns = append(out.Turns, &schema.Message{Role: m.Role, Content: m.Content})
	}
	return &out
}
