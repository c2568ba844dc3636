package model

import "time"

// TurnState stores per-invocation state for the turn graph.
// It is registered as graph local state and only touched inside eino state
// handlers or compose.ProcessState, which serialize access.
type TurnState struct {
	SessionKey string
	StartedAt  time.Time
	// Path lists the nodes visited during this turn, in order.
	Path []string
}

// QueryInput is the inbound request for one turn.
type QueryInput struct {
	SessionKey string `json:"session_id"`
	Query      string `json:"query"`
}

// Turn is the value flowing between the nodes of the turn graph.
type Turn struct {
	Input   QueryInput
	Session *Session

	// Category is the classifier verdict, set only when the classifier ran.
	Category   Category
	Completion *SlotCompletion
	Decision   *RoutingDecision
	// Fallback carries the partial context handed to the fallback handler.
	Fallback *FallbackInput

	Reply string
	// Dispatched is set once a handler ran and the session was reset.
	Dispatched bool
}

// FallbackInput is the partial update handed to the fallback handler. Nil fields
// are left untouched on the session.
type FallbackInput struct {
	Query      string
	Category   *Category
	Identifier *string
}
