package slotfill

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appliance-router/server/internal/agent/llm"
	"github.com/appliance-router/server/internal/agent/model"
)

// script replays canned oracle outputs in order and records every call.
type script struct {
	outputs []string
	errs    []error
	calls   int
	prompts []string
	history [][]*schema.Message
}

func (s *script) Generate(ctx context.Context, prompt string, history []*schema.Message) (string, error) {
	i := s.calls
	s.calls++
	s.prompts = append(s.prompts, prompt)
	s.history = append(s.history, history)
	var err error
	if i < len(s.errs) {
		err = s.errs[i]
	}
	if i < len(s.outputs) {
		return s.outputs[i], err
	}
	return "", err
}

var _ llm.Generator = (*script)(nil)

func boundSession(t *testing.T, c model.Category) *model.Session {
	t.Helper()
	s := model.NewSession("test")
	require.NoError(t, s.Bind(c))
	return s
}

func assertPaired(t *testing.T, s *model.Session) {
	t.Helper()
	require.Equal(t, 0, len(s.Turns)%2, "turns must come in user/assistant pairs")
	for i, m := range s.Turns {
		if i%2 == 0 {
			assert.Equal(t, schema.User, m.Role, "turn %d", i)
		} else {
			assert.Equal(t, schema.Assistant, m.Role, "turn %d", i)
		}
	}
}

func TestAgent_FirstTurnAsksForIdentifier(t *testing.T) {
	gen := &script{}
	a := New(gen)
	s := boundSession(t, model.CategoryRefrigerator)

	res, err := a.Handle(context.Background(), s, "my fridge is leaking")
	require.NoError(t, err)
	assert.Equal(t, IdentifierPrompt("refrigerator"), res.Reply)
	assert.Nil(t, res.Completion)
	assert.Zero(t, gen.calls, "the opening prompt is fixed")
	assert.Equal(t, model.StageAwaitingIdentifier, s.Stage)
	assertPaired(t, s)
}

func TestAgent_IdentifierThenMenu(t *testing.T) {
	gen := &script{outputs: []string{"IDENTIFIER: WRT111"}}
	a := New(gen)
	s := boundSession(t, model.CategoryRefrigerator)
	ctx := context.Background()

	_, err := a.Handle(ctx, s, "my fridge is leaking")
	require.NoError(t, err)
	res, err := a.Handle(ctx, s, "model WRT111")
	require.NoError(t, err)

	assert.Equal(t, ServicesMenu("refrigerator"), res.Reply)
	assert.Equal(t, res.Reply, s.LastPresentedMenu)
	assert.Equal(t, "WRT111", s.Identifier)
	assert.Equal(t, model.HelpNone, s.PendingHelpIntent)
	assert.Equal(t, model.StageAwaitingHelpIntent, s.Stage)
	assert.Nil(t, res.Completion)

	// history handed to the oracle excludes the current query, which is in the prompt
	require.Len(t, gen.history, 1)
	assert.Len(t, gen.history[0], 2)
	assert.Contains(t, gen.prompts[0], "Current query: model WRT111")
	assertPaired(t, s)
}

func TestAgent_RejectsDenylistedIdentifier(t *testing.T) {
	gen := &script{outputs: []string{"IDENTIFIER: N/A"}}
	a := New(gen)
	s := boundSession(t, model.CategoryDishwasher)
	ctx := context.Background()

	_, _ = a.Handle(ctx, s, "how do I install my dishwasher")
	res, err := a.Handle(ctx, s, "N/A")
	require.NoError(t, err)

	assert.Equal(t, InvalidIdentifier("dishwasher"), res.Reply)
	assert.Contains(t, res.Reply, "inside the dishwasher")
	assert.Empty(t, s.Identifier)
	assert.Equal(t, model.StageAwaitingIdentifier, s.Stage)
	assertPaired(t, s)
}

func TestAgent_MissingIdentifierReasks(t *testing.T) {
	tests := []struct {
		name   string
		output string
		err    error
	}{
		{"clarifying question", "Which model do you have?", nil},
		{"oracle failure", "", errors.New("timeout")},
		{"help without identifier", "HELP: parts", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &script{outputs: []string{tt.output}, errs: []error{tt.err}}
			a := New(gen)
			s := boundSession(t, model.CategoryDishwasher)
			ctx := context.Background()

			_, _ = a.Handle(ctx, s, "dishwasher help")
			res, err := a.Handle(ctx, s, "I don't know")
			require.NoError(t, err)
			assert.Equal(t, AskIdentifier("dishwasher"), res.Reply)
			assert.Empty(t, s.Identifier)
			assert.Equal(t, model.HelpNone, s.PendingHelpIntent)
			assertPaired(t, s)
		})
	}
}

func TestAgent_CompletesInOneTurn(t *testing.T) {
	gen := &script{outputs: []string{"IDENTIFIER: WDT780SAEM1\nHELP: parts\nDETAILS: upper rack wheels"}}
	a := New(gen)
	s := boundSession(t, model.CategoryDishwasher)
	ctx := context.Background()

	_, _ = a.Handle(ctx, s, "dishwasher")
	res, err := a.Handle(ctx, s, "WDT780SAEM1 I need new upper rack wheels")
	require.NoError(t, err)

	require.NotNil(t, res.Completion)
	assert.Equal(t, model.SlotCompletion{
		Identifier: "WDT780SAEM1",
		HelpIntent: model.HelpParts,
		HelpText:   "parts",
		Details:    "upper rack wheels",
		Category:   model.CategoryDishwasher,
	}, *res.Completion)
	assert.Equal(t, "I'll help you find parts information for model WDT780SAEM1. Specifically about: upper rack wheels", res.Reply)
	assert.Equal(t, model.StageRouting, s.Stage)
	assert.Equal(t, model.HelpParts, s.PendingHelpIntent)
	assertPaired(t, s)
}

func TestAgent_OffLabelHelpCompletes(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    model.HelpIntent
		text    string
		details string
	}{
		{"unmapped label", "IDENTIFIER: WDT780SAEM1\nHELP: diagram\nDETAILS: exploded view", model.HelpNone, "diagram", "exploded view"},
		{"unmapped without details", "IDENTIFIER: WDT780SAEM1\nHELP: water filter", model.HelpNone, "water filter", "water filter"},
		{"keyword mapped", "IDENTIFIER: WDT780SAEM1\nHELP: the product manual\nDETAILS: rinse aid", model.HelpManual, "the product manual", "rinse aid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &script{outputs: []string{tt.output}}
			a := New(gen)
			s := boundSession(t, model.CategoryDishwasher)
			ctx := context.Background()

			_, _ = a.Handle(ctx, s, "dishwasher")
			res, err := a.Handle(ctx, s, "WDT780SAEM1 "+tt.text)
			require.NoError(t, err)

			require.NotNil(t, res.Completion)
			assert.Equal(t, model.SlotCompletion{
				Identifier: "WDT780SAEM1",
				HelpIntent: tt.want,
				HelpText:   tt.text,
				Details:    tt.details,
				Category:   model.CategoryDishwasher,
			}, *res.Completion)
			assert.Equal(t, Acknowledgement(tt.text, "WDT780SAEM1", tt.details), res.Reply)
			assert.Equal(t, model.StageRouting, s.Stage)
			assert.Equal(t, tt.want, s.PendingHelpIntent)
			assertPaired(t, s)
		})
	}
}

func TestAgent_BlankHelpShowsMenu(t *testing.T) {
	gen := &script{outputs: []string{"IDENTIFIER: WDT780SAEM1\nHELP:   "}}
	a := New(gen)
	s := boundSession(t, model.CategoryDishwasher)
	ctx := context.Background()

	_, _ = a.Handle(ctx, s, "dishwasher")
	res, err := a.Handle(ctx, s, "WDT780SAEM1")
	require.NoError(t, err)
	assert.Nil(t, res.Completion)
	assert.Equal(t, ServicesMenu("dishwasher"), res.Reply)
	assert.Equal(t, "WDT780SAEM1", s.Identifier)
}

func TestAgent_SecondStageKeywordFallback(t *testing.T) {
	tests := []struct {
		query   string
		want    model.HelpIntent
		details string
	}{
		{"I want the care guide", model.HelpManual, "General product manual and care guide"},
		{"help searching a part", model.HelpParts, "Part information and replacement"},
		{"there's an error code", model.HelpSymptoms, "Troubleshooting and problem resolution"},
		{"setup please", model.HelpInstallation, "Installation and setup instructions"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			gen := &script{outputs: []string{"IDENTIFIER: WRT111", "What do you need help with?"}}
			a := New(gen)
			s := boundSession(t, model.CategoryRefrigerator)
			ctx := context.Background()

			_, _ = a.Handle(ctx, s, "fridge")
			_, _ = a.Handle(ctx, s, "WRT111")
			res, err := a.Handle(ctx, s, tt.query)
			require.NoError(t, err)

			require.NotNil(t, res.Completion)
			assert.Equal(t, tt.want, res.Completion.HelpIntent)
			assert.Equal(t, tt.details, res.Completion.Details)
			assert.Equal(t, "WRT111", res.Completion.Identifier)
			assertPaired(t, s)
		})
	}
}

func TestAgent_SecondStageUnmatchedReshowsMenu(t *testing.T) {
	gen := &script{outputs: []string{"IDENTIFIER: WRT111", "Could you describe the issue?"}}
	a := New(gen)
	s := boundSession(t, model.CategoryRefrigerator)
	ctx := context.Background()

	_, _ = a.Handle(ctx, s, "my fridge is leaking")
	_, _ = a.Handle(ctx, s, "model WRT111")
	res, err := a.Handle(ctx, s, "it's leaking water")
	require.NoError(t, err)

	assert.Nil(t, res.Completion)
	assert.Equal(t, ServicesMenu("refrigerator"), res.Reply)
	assert.Equal(t, model.StageAwaitingHelpIntent, s.Stage)
	assert.Len(t, s.Turns, 6)
	assertPaired(t, s)
}

func TestAgent_SecondStageOracleSelection(t *testing.T) {
	gen := &script{outputs: []string{
		"IDENTIFIER: WRT111",
		"IDENTIFIER: WRT111\nHELP: manual\nDETAILS: General product manual and care guide",
	}}
	a := New(gen)
	s := boundSession(t, model.CategoryRefrigerator)
	ctx := context.Background()

	_, _ = a.Handle(ctx, s, "fridge")
	_, _ = a.Handle(ctx, s, "WRT111")
	res, err := a.Handle(ctx, s, "1")
	require.NoError(t, err)

	require.NotNil(t, res.Completion)
	assert.Equal(t, model.HelpManual, res.Completion.HelpIntent)
	assert.Contains(t, gen.prompts[1], "already gave this model number: WRT111")
}

func TestAgent_IdentifierCorrection(t *testing.T) {
	gen := &script{outputs: []string{
		"IDENTIFIER: WRT111",
		"IDENTIFIER: WRT112",
		"IDENTIFIER: ??",
	}}
	a := New(gen)
	s := boundSession(t, model.CategoryRefrigerator)
	ctx := context.Background()

	_, _ = a.Handle(ctx, s, "fridge")
	_, _ = a.Handle(ctx, s, "WRT111")

	res, err := a.Handle(ctx, s, "sorry, it's WRT112")
	require.NoError(t, err)
	assert.Equal(t, "WRT112", s.Identifier)
	assert.Equal(t, ServicesMenu("refrigerator"), res.Reply)

	_, err = a.Handle(ctx, s, "??")
	require.NoError(t, err)
	assert.Equal(t, "WRT112", s.Identifier, "invalid corrections are ignored")
}

func TestAgent_DefaultDetails(t *testing.T) {
	gen := &script{outputs: []string{"IDENTIFIER: WRT111\nHELP: symptoms"}}
	a := New(gen)
	s := boundSession(t, model.CategoryRefrigerator)
	ctx := context.Background()

	_, _ = a.Handle(ctx, s, "fridge")
	res, err := a.Handle(ctx, s, "WRT111 it makes noise")
	require.NoError(t, err)
	require.NotNil(t, res.Completion)
	assert.Equal(t, "Troubleshooting and problem resolution", res.Completion.Details)
}

func TestAgent_RequiresBoundCategory(t *testing.T) {
	a := New(&script{})
	s := model.NewSession("test")
	_, err := a.Handle(context.Background(), s, "hello")
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
	assert.Empty(t, s.Turns)
}
