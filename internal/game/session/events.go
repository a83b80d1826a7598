package session

import "encoding/json"

// Outbound event names emitted by the Registry through its Messenger.
const (
	// EventGameCreated is sent to the creator with the new session code.
	EventGameCreated = "gameCreated"
	// EventGameJoined is sent to a joiner, carrying either the seat assignment
	// or an error when the session is already full.
	EventGameJoined = "gameJoined"
	// EventOpponentJoined is sent to the creator when the second seat fills.
	EventOpponentJoined = "opponentJoined"
	// EventActionApplied is broadcast to the room with an accepted-action result.
	EventActionApplied = "actionApplied"
	// EventGameNotFound is sent to a requester referencing an unknown code.
	EventGameNotFound = "gameNotFound"
	// EventError is sent to a requester on an engine fault or broker failure.
	EventError = "error"
	// EventNewGame is broadcast to the room after a reset.
	EventNewGame = "newGame"
	// EventOpponentAbandoned is sent to the remaining participant on teardown.
	EventOpponentAbandoned = "opponentAbandoned"
	// EventAbandonSuccess acknowledges an explicit abandon to its requester.
	EventAbandonSuccess = "abandonSuccess"
	// EventChatMessage relays a chat line to sender (echo) and opponent.
	EventChatMessage = "chatMessage"
)

// GameCreatedEvent is the payload of EventGameCreated.
type GameCreatedEvent struct {
	Code   string `json:"code"`
	ConnID string `json:"connId"`
}

// GameJoinedEvent is the payload of EventGameJoined. On failure only Error is
// set; on success Error is empty and the remaining fields describe the seat.
type GameJoinedEvent struct {
	Code       string          `json:"code,omitempty"`
	Side       Side            `json:"side,omitempty"`
	State      json.RawMessage `json:"state,omitempty"`
	OpponentID string          `json:"opponentId,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// OpponentJoinedEvent is the payload of EventOpponentJoined.
type OpponentJoinedEvent struct {
	State      json.RawMessage `json:"state"`
	OpponentID string          `json:"opponentId"`
}

// NewGameEvent is the payload of EventNewGame.
type NewGameEvent struct {
	Code         string          `json:"code"`
	State        json.RawMessage `json:"state"`
	Participants map[Side]string `json:"participants"`
}

// ChatEvent is the payload of EventChatMessage. IsSender distinguishes the
// sender's echo from the opponent's copy.
type ChatEvent struct {
	Message  string `json:"message"`
	Side     string `json:"side"`
	IsSender bool   `json:"isSender"`
}
