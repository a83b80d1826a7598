package broker

import (
	"encoding/json"

	"go.uber.org/zap"

	"github.com/cory-johannsen/parlor/internal/game/session"
)

// Handler decodes inbound command envelopes and dispatches them to the
// session registry. Malformed frames and unknown commands are logged and
// dropped; a bad command never affects other sessions or connections.
type Handler struct {
	registry *session.Registry
	logger   *zap.Logger
}

// NewHandler creates a Handler with the given dependencies.
//
// Precondition: registry and logger must be non-nil.
func NewHandler(registry *session.Registry, logger *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		logger:   logger,
	}
}

// Handle processes one inbound frame from the given connection.
func (h *Handler) Handle(connID string, raw []byte) {
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Debug("malformed frame",
			zap.String("conn", connID),
			zap.Error(err),
		)
		return
	}

	switch msg.Type {
	case CmdCreate:
		h.registry.CreateSession(connID)

	case CmdJoin:
		var cmd JoinCommand
		if !h.decode(connID, msg, &cmd) {
			return
		}
		h.registry.JoinSession(cmd.Code, connID)

	case CmdAction:
		var cmd ActionCommand
		if !h.decode(connID, msg, &cmd) {
			return
		}
		h.registry.ApplyAction(cmd.Code, cmd.Action, connID)

	case CmdReset:
		var cmd ResetCommand
		if !h.decode(connID, msg, &cmd) {
			return
		}
		h.registry.ResetSession(cmd.Code)

	case CmdAbandon:
		var cmd AbandonCommand
		if !h.decode(connID, msg, &cmd) {
			return
		}
		h.registry.AbandonSession(cmd.Code, connID)

	case CmdChat:
		var cmd ChatCommand
		if !h.decode(connID, msg, &cmd) {
			return
		}
		h.registry.RelayChat(cmd.Code, cmd.Message, cmd.Side, connID)

	default:
		h.logger.Debug("unknown command",
			zap.String("conn", connID),
			zap.String("type", msg.Type),
		)
	}
}

// decode unmarshals a command payload, logging and rejecting malformed ones.
func (h *Handler) decode(connID string, msg Message, out any) bool {
	if err := json.Unmarshal(msg.Payload, out); err != nil {
		h.logger.Debug("malformed command payload",
			zap.String("conn", connID),
			zap.String("type", msg.Type),
			zap.Error(err),
		)
		return false
	}
	return true
}
