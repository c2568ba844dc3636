package model

import (
	"errors"
	"fmt"
	"slices"
)

// Stage is the explicit dialogue state of a session.
type Stage string

const (
	StageAwaitingCategory   Stage = "awaiting_category"
	StageAwaitingIdentifier Stage = "awaiting_identifier"
	StageAwaitingHelpIntent Stage = "awaiting_help_intent"
	StageRouting            Stage = "routing"
	StageDone               Stage = "done"
)

// ErrInvalidTransition is returned when a stage change is not in the transition table.
var ErrInvalidTransition = errors.New("invalid stage transition")

// transitions is the dialogue state machine. Self-loops mark turns that re-ask
// without making progress.
var transitions = map[Stage][]Stage{
	StageAwaitingCategory:   {StageAwaitingIdentifier},
	StageAwaitingIdentifier: {StageAwaitingIdentifier, StageAwaitingHelpIntent},
	StageAwaitingHelpIntent: {StageAwaitingHelpIntent, StageRouting},
	// routing can fall back to slot filling when the completed slots turn out unusable
	StageRouting: {StageDone, StageAwaitingIdentifier, StageAwaitingHelpIntent},
	StageDone:    {StageAwaitingCategory},
}

// CanTransition reports whether the state machine allows from -> to.
func CanTransition(from, to Stage) bool {
	return slices.Contains(transitions[from], to)
}

// Transition validates from -> to against the transition table.
func Transition(from, to Stage) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}
