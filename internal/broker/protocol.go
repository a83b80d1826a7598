// Package broker provides the websocket connection multiplexer and command
// dispatch that bind transport connections to the session registry.
package broker

import (
	"encoding/json"
	"fmt"
)

// Message is the envelope for all websocket traffic in both directions.
// Type routes the message; Payload stays raw JSON until a handler that knows
// its schema decodes it.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound command types issued by clients.
const (
	CmdCreate  = "create"
	CmdJoin    = "join"
	CmdAction  = "action"
	CmdReset   = "reset"
	CmdAbandon = "abandon"
	CmdChat    = "chat"
)

// JoinCommand is the payload of CmdJoin. Code is case-insensitive.
type JoinCommand struct {
	Code string `json:"code"`
}

// ActionCommand is the payload of CmdAction. Action is opaque to the broker.
type ActionCommand struct {
	Code   string          `json:"code"`
	Action json.RawMessage `json:"action"`
}

// ResetCommand is the payload of CmdReset.
type ResetCommand struct {
	Code string `json:"code"`
}

// AbandonCommand is the payload of CmdAbandon.
type AbandonCommand struct {
	Code string `json:"code"`
}

// ChatCommand is the payload of CmdChat.
type ChatCommand struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Side    string `json:"side"`
}

// encodeEvent wraps an outbound event in the wire envelope.
//
// Postcondition: Returns the marshalled frame, or an error if payload cannot
// be marshalled. A nil payload produces an envelope without a payload field.
func encodeEvent(event string, payload any) ([]byte, error) {
	msg := Message{Type: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshalling %s payload: %w", event, err)
		}
		msg.Payload = data
	}
	frame, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s envelope: %w", event, err)
	}
	return frame, nil
}
