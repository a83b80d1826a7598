// Package session provides the in-memory session registry and lifecycle logic
// for paired two-party games: creation, pairing, action relay, reset, and
// teardown on abandon or disconnect.
package session

import "encoding/json"

// Status is the lifecycle state of a session.
type Status string

const (
	// StatusWaiting means the second participant slot is still empty.
	StatusWaiting Status = "waiting"
	// StatusActive means both participant slots are filled.
	StatusActive Status = "active"
)

// Side identifies one of the two fixed participant slots.
type Side string

const (
	// SideFirst is the creator's slot, populated at session creation.
	SideFirst Side = "first"
	// SideSecond is the joiner's slot, populated at most once at join time.
	SideSecond Side = "second"
)

// Session is one paired two-party game instance, addressed by a short code.
// Sessions are owned exclusively by the Registry; the Second slot only ever
// transitions empty to filled, and abandonment destroys the session rather
// than freeing a slot.
type Session struct {
	// Code is the immutable uppercase session identifier.
	Code string
	// State is the opaque encoded game state, produced and consumed only by
	// the rules engine.
	State json.RawMessage
	// First is the connection identity occupying the creator slot.
	First string
	// Second is the connection identity occupying the joiner slot, or empty.
	Second string
	// Status is waiting until the second slot fills, then active.
	Status Status
}

// Opponent returns the connection identity occupying the slot that does not
// equal connID, or empty if that slot is vacant.
func (s *Session) Opponent(connID string) string {
	if s.First == connID {
		return s.Second
	}
	return s.First
}

// SideOf returns the slot connID occupies.
//
// Postcondition: Returns (side, true) if connID occupies a slot, or ("", false) otherwise.
func (s *Session) SideOf(connID string) (Side, bool) {
	switch connID {
	case s.First:
		return SideFirst, true
	case s.Second:
		return SideSecond, true
	}
	return "", false
}

// Participants returns the slot-to-connection map for event payloads.
// Vacant slots are omitted.
func (s *Session) Participants() map[Side]string {
	m := make(map[Side]string, 2)
	if s.First != "" {
		m[SideFirst] = s.First
	}
	if s.Second != "" {
		m[SideSecond] = s.Second
	}
	return m
}
