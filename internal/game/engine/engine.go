// Package engine defines the rules-engine collaborator contract for the
// session broker. The broker core treats game state and actions as opaque
// JSON; only an Engine implementation interprets them.
package engine

import (
	"encoding/json"
	"errors"
)

// ErrInvalidAction reports that the rules engine rejected a proposed action.
// Rejection is a normal outcome, not a fault: the session state is unchanged
// and the origin is expected to reconcile locally.
var ErrInvalidAction = errors.New("invalid action")

// Result is the outcome of an accepted action.
type Result struct {
	// State is the new encoded game state after the action.
	State json.RawMessage `json:"state"`
	// Detail is the engine-specific accepted-action payload, broadcast
	// verbatim to both participants.
	Detail json.RawMessage `json:"detail,omitempty"`
	// Outcome names a terminal condition reached by this action
	// (e.g. "win", "draw"), or is empty while the game continues.
	Outcome string `json:"outcome,omitempty"`
}

// Engine validates actions and produces new encoded state.
// Implementations must be safe for concurrent use.
type Engine interface {
	// InitialState returns the encoded state of a fresh game.
	InitialState() (json.RawMessage, error)

	// Apply validates action against state. It returns the accepted-action
	// Result, ErrInvalidAction (possibly wrapped) when the action is illegal,
	// or any other error on an engine fault. On rejection or fault the input
	// state remains authoritative.
	Apply(state, action json.RawMessage) (*Result, error)
}
