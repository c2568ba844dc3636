// Package orchestrator is the per-turn entry point shared by every transport.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/appliance-router/server/internal/agent/graph"
	"github.com/appliance-router/server/internal/agent/model"
	"github.com/appliance-router/server/internal/agent/session"
	"github.com/appliance-router/server/internal/metrics"
	logx "github.com/appliance-router/server/pkg/logger"
)

// ApologyReply replaces every internal fault in the reply to the user.
const ApologyReply = "Sorry, I encountered an error while processing your request. Please try again."

// DefaultSessionKey is used when neither the caller nor the config names a key.
const DefaultSessionKey = "default"

// ErrEmptyQuery is logged when a turn carries no text.
var ErrEmptyQuery = errors.New("query is empty")

type Controller struct {
	runner     graph.Runner
	locks      *session.Manager
	defaultKey string
	metrics    *metrics.Metrics
}

func New(runner graph.Runner, locks *session.Manager, defaultKey string, m *metrics.Metrics) *Controller {
	if locks == nil {
		locks = session.NewManager()
	}
	if defaultKey == "" {
		defaultKey = DefaultSessionKey
	}
	return &Controller{runner: runner, locks: locks, defaultKey: defaultKey, metrics: m}
}

// HandleTurn runs one turn for key and always returns text for the user.
// Turns for the same key run one at a time.
func (c *Controller) HandleTurn(ctx context.Context, key, query string) string {
	start := time.Now()
	if key = strings.TrimSpace(key); key == "" {
		key = c.defaultKey
	}

	var turn *model.Turn
	err := c.locks.WithLock(ctx, key, func(ctx context.Context) error {
		var err error
		turn, err = c.run(ctx, key, query)
		return err
	})
	if err != nil {
		logx.Error().Err(err).Str("session_key", key).Msg("turn failed")
		c.metrics.ObserveTurn(metrics.OutcomeApology, time.Since(start))
		return ApologyReply
	}

	c.metrics.ObserveTurn(outcome(turn), time.Since(start))
	return turn.Reply
}

func (c *Controller) run(ctx context.Context, key, query string) (turn *model.Turn, err error) {
	defer func() {
		if r := recover(); r != nil {
			logx.Error().
				Str("session_key", key).
				Str("stack", string(debug.Stack())).
				Msgf("recovered from panic: %v", r)
			turn, err = nil, fmt.Errorf("panic in turn: %v", r)
		}
	}()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	turn, err = c.runner.Invoke(ctx, model.QueryInput{SessionKey: key, Query: query})
	if err != nil {
		return nil, err
	}
	if turn == nil {
		return nil, errors.New("turn produced no result")
	}
	return turn, nil
}

func outcome(t *model.Turn) string {
	switch {
	case t.Dispatched:
		return metrics.OutcomeDispatched
	case t.Fallback != nil:
		return metrics.OutcomeFallback
	default:
		return metrics.OutcomeReply
	}
}
