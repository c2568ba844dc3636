package nodes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/appliance-router/server/internal/agent/classifier"
	"github.com/appliance-router/server/internal/agent/fallback"
	"github.com/appliance-router/server/internal/agent/graph/tools"
	"github.com/appliance-router/server/internal/agent/model"
	"github.com/appliance-router/server/internal/agent/routing"
	"github.com/appliance-router/server/internal/agent/slotfill"
	logx "github.com/appliance-router/server/pkg/logger"
)

// ClosingPrompt is appended to every dispatched handler response.
const ClosingPrompt = "Is there anything else I can help you with?"

// NewPathPostHandler records that node ran in this turn.
func NewPathPostHandler[T any](node string) func(context.Context, T, *model.TurnState) (T, error) {
	return func(ctx context.Context, out T, state *model.TurnState) (T, error) {
		state.Path = append(state.Path, node)
		return out, nil
	}
}

// NewSessionLoaderPreHandler seeds the turn state.
func NewSessionLoaderPreHandler() func(context.Context, model.QueryInput, *model.TurnState) (model.QueryInput, error) {
	return func(ctx context.Context, in model.QueryInput, s *model.TurnState) (model.QueryInput, error) {
		s.SessionKey = in.SessionKey
		s.StartedAt = time.Now()
		s.Path = s.Path[:0]
		return in, nil
	}
}

// NewSessionLoaderNode loads or creates the session for the turn.
func NewSessionLoaderNode(store model.SessionStore) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, in model.QueryInput) (*model.Turn, error) {
		s, err := store.GetOrCreate(ctx, in.SessionKey)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		logx.Debug().
			Str("session_key", s.Key).
			Str("stage", string(s.Stage)).
			Str("category", s.Category.String()).
			Int("turns", len(s.Turns)).
			Msg("session loaded")
		return &model.Turn{Input: in, Session: s}, nil
	})
}

// NewActiveDialogueCondition skips classification while a cycle is bound.
func NewActiveDialogueCondition() func(context.Context, *model.Turn) (string, error) {
	return func(ctx context.Context, t *model.Turn) (string, error) {
		if t.Session.HasActiveDialogue() {
			return NodeSlotFiller, nil
		}
		return NodeClassifier, nil
	}
}

// NewClassifierNode classifies the query and binds the session on an appliance verdict.
func NewClassifierNode(c *classifier.Classifier) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		t.Category = c.Classify(ctx, t.Input.Query)
		if !t.Category.IsAppliance() {
			t.Fallback = &model.FallbackInput{Query: t.Input.Query}
			return t, nil
		}
		if err := t.Session.Bind(t.Category); err != nil {
			return nil, fmt.Errorf("bind %s: %w", t.Category, err)
		}
		return t, nil
	})
}

// NewCategoryCondition sends off-domain turns to fallback.
func NewCategoryCondition() func(context.Context, *model.Turn) (string, error) {
	return func(ctx context.Context, t *model.Turn) (string, error) {
		if t.Category.IsAppliance() {
			return NodeSlotFiller, nil
		}
		return NodeFallback, nil
	}
}

func NewSlotFillerNode(a *slotfill.Agent) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		res, err := a.Handle(ctx, t.Session, t.Input.Query)
		if err != nil {
			return nil, err
		}
		t.Reply = res.Reply
		t.Completion = res.Completion
		return t, nil
	})
}

// NewCompletionCondition routes completed slot sets, otherwise answers directly.
func NewCompletionCondition() func(context.Context, *model.Turn) (string, error) {
	return func(ctx context.Context, t *model.Turn) (string, error) {
		if t.Completion != nil {
			return NodeRouter, nil
		}
		return NodeReply, nil
	}
}

// NewRouterNode decides the handler. Missing fields hand the partial context to fallback.
func NewRouterNode(d *routing.Decider) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		decision, err := d.Decide(ctx, *t.Completion)
		if errors.Is(err, routing.ErrMissingFields) {
			logx.Warn().
				Str("session_key", t.Session.Key).
				Str("component", "routing").
				Msg("completion missing fields, falling back")
			category := t.Completion.Category
			in := &model.FallbackInput{Category: &category}
			if id := strings.TrimSpace(t.Completion.Identifier); id != "" {
				in.Identifier = &id
			}
			t.Fallback = in
			return t, nil
		}
		if err != nil {
			return nil, err
		}
		t.Decision = decision
		return t, nil
	})
}

func NewRoutingCondition() func(context.Context, *model.Turn) (string, error) {
	return func(ctx context.Context, t *model.Turn) (string, error) {
		if t.Decision != nil {
			return NodeDispatcher, nil
		}
		return NodeFallback, nil
	}
}

// NewFallbackNode answers off-domain and incomplete turns. When the user turn
// was already recorded upstream, the fallback reply replaces the last assistant turn.
func NewFallbackNode(h *fallback.Handler) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		reply, err := h.Handle(ctx, t.Session, *t.Fallback)
		if err != nil {
			return nil, err
		}
		if t.Fallback.Query == "" {
			if n := len(t.Session.Turns); n > 0 && t.Session.Turns[n-1].Role == schema.Assistant {
				t.Session.Turns[n-1].Content = reply
			}
		}
		t.Reply = reply
		return t, nil
	})
}

// NewDispatcherNode invokes the help handler and resets the session whether
// or not the handler succeeded.
func NewDispatcherNode(d *tools.Dispatcher, store model.SessionStore) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		s := t.Session
		reply := ""
		res, err := d.Dispatch(ctx, t.Decision)
		if err != nil {
			logx.Error().
				Err(err).
				Str("session_key", s.Key).
				Str("handler", string(t.Decision.HandlerKey)).
				Msg("dispatch failed, resetting session")
			reply = tools.FailureReply(t.Decision.Context.BaseURL)
		} else {
			reply = res.Response
		}

		if err := s.Advance(model.StageDone); err != nil {
			return nil, err
		}
		if err := store.Reset(ctx, s.Key); err != nil {
			return nil, fmt.Errorf("reset session: %w", err)
		}
		s.Reset()

		t.Reply = reply + "\n\n" + ClosingPrompt
		t.Dispatched = true
		return t, nil
	})
}

// NewReplyNode persists the session unless dispatch already reset it.
func NewReplyNode(store model.SessionStore) *compose.Lambda {
	return compose.InvokableLambda(func(ctx context.Context, t *model.Turn) (*model.Turn, error) {
		if !t.Dispatched {
			t.Session.UpdatedAt = time.Now().UTC()
			if err := store.Save(ctx, t.Session); err != nil {
				return nil, fmt.Errorf("save session: %w", err)
			}
		}
		return t, nil
	})
}

// NewReplyPostHandler logs the path the turn took.
func NewReplyPostHandler() func(context.Context, *model.Turn, *model.TurnState) (*model.Turn, error) {
	return func(ctx context.Context, t *model.Turn, state *model.TurnState) (*model.Turn, error) {
		state.Path = append(state.Path, NodeReply)
		logx.Info().
			Str("session_key", state.SessionKey).
			Strs("path", state.Path).
			Str("stage", string(t.Session.Stage)).
			Bool("dispatched", t.Dispatched).
			Dur("elapsed", time.Since(state.StartedAt)).
			Msg("turn completed")
		return t, nil
	}
}
