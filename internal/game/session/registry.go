package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/cory-johannsen/parlor/internal/game/code"
	"github.com/cory-johannsen/parlor/internal/game/engine"
)

// Messenger is the connection multiplexer as seen from the registry: targeted
// and room-wide delivery plus room membership. Implementations must be
// non-blocking and must silently drop sends to connections that no longer
// exist.
type Messenger interface {
	SendTo(connID, event string, payload any)
	BroadcastTo(roomCode, event string, payload any)
	JoinRoom(connID, roomCode string)
	LeaveRoom(connID, roomCode string)
}

// Registry owns all live sessions and serializes every mutating operation.
// All methods are safe for concurrent use; each operation is one atomic step,
// including the rules-engine call it makes.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session // code → session
	byConn   map[string]string   // connID → code (one slot per connection)

	engine    engine.Engine
	codes     *code.Generator
	retries   int
	messenger Messenger
	logger    *zap.Logger
}

// NewRegistry creates an empty Registry.
//
// Precondition: eng, gen, messenger, and logger must be non-nil; retries must be >= 1.
func NewRegistry(eng engine.Engine, gen *code.Generator, retries int, messenger Messenger, logger *zap.Logger) *Registry {
	if retries < 1 {
		retries = 1
	}
	return &Registry{
		sessions:  make(map[string]*Session),
		byConn:    make(map[string]string),
		engine:    eng,
		codes:     gen,
		retries:   retries,
		messenger: messenger,
		logger:    logger,
	}
}

// CreateSession allocates a fresh session with the requester in the first
// slot and emits gameCreated to the requester. A requester already seated in
// another session abandons it first, keeping the one-slot-per-connection
// invariant.
func (r *Registry) CreateSession(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked(connID)

	sessionCode, err := r.freeCodeLocked()
	if err != nil {
		r.logger.Error("allocating session code", zap.Error(err))
		r.messenger.SendTo(connID, EventError, "could not allocate a session code")
		return
	}

	state, err := r.engine.InitialState()
	if err != nil {
		r.logger.Error("initializing game state",
			zap.String("code", sessionCode),
			zap.Error(err),
		)
		r.messenger.SendTo(connID, EventError, "could not initialize the game")
		return
	}

	sess := &Session{
		Code:   sessionCode,
		State:  state,
		First:  connID,
		Status: StatusWaiting,
	}
	r.sessions[sessionCode] = sess
	r.byConn[connID] = sessionCode
	r.messenger.JoinRoom(connID, sessionCode)

	r.logger.Info("session created",
		zap.String("code", sessionCode),
		zap.String("conn", connID),
	)

	r.messenger.SendTo(connID, EventGameCreated, GameCreatedEvent{
		Code:   sessionCode,
		ConnID: connID,
	})
}

// JoinSession seats the requester in the second slot of the session with the
// given code (case-insensitive). Unknown codes yield gameNotFound; occupied
// second slots yield a gameJoined error, leaving the session unchanged. On
// success both participants are notified with targeted events.
func (r *Registry) JoinSession(rawCode, connID string) {
	sessionCode := code.Normalize(rawCode)

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionCode]
	if !ok {
		r.logger.Debug("join to unknown session",
			zap.String("code", sessionCode),
			zap.String("conn", connID),
		)
		r.messenger.SendTo(connID, EventGameNotFound, sessionCode)
		return
	}

	if sess.Second != "" {
		r.logger.Debug("join to full session",
			zap.String("code", sessionCode),
			zap.String("conn", connID),
		)
		r.messenger.SendTo(connID, EventGameJoined, GameJoinedEvent{
			Error: "the session is already full",
		})
		return
	}

	if current, seated := r.byConn[connID]; seated && current != sessionCode {
		r.evictLocked(connID)
	}

	sess.Second = connID
	sess.Status = StatusActive
	r.byConn[connID] = sessionCode
	r.messenger.JoinRoom(connID, sessionCode)

	r.logger.Info("session joined",
		zap.String("code", sessionCode),
		zap.String("conn", connID),
	)

	r.messenger.SendTo(connID, EventGameJoined, GameJoinedEvent{
		Code:       sessionCode,
		Side:       SideSecond,
		State:      sess.State,
		OpponentID: sess.First,
	})
	r.messenger.SendTo(sess.First, EventOpponentJoined, OpponentJoinedEvent{
		State:      sess.State,
		OpponentID: connID,
	})
}

// ApplyAction forwards the opaque action to the rules engine. An accepted
// result replaces the session state and is broadcast to the whole room,
// originator included, so both sides share one code path for applying it.
// A rejected action is dropped without notification; an engine fault is
// reported to the requester only and leaves the state unchanged.
func (r *Registry) ApplyAction(rawCode string, action json.RawMessage, connID string) {
	sessionCode := code.Normalize(rawCode)

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionCode]
	if !ok {
		r.logger.Debug("action for unknown session",
			zap.String("code", sessionCode),
			zap.String("conn", connID),
		)
		return
	}

	result, err := r.engine.Apply(sess.State, action)
	switch {
	case err == nil:
		sess.State = result.State
		r.logger.Debug("action applied",
			zap.String("code", sessionCode),
			zap.String("conn", connID),
			zap.String("outcome", result.Outcome),
		)
		r.messenger.BroadcastTo(sessionCode, EventActionApplied, result)
	case errors.Is(err, engine.ErrInvalidAction):
		// The origin reconciles its own optimistic state; nothing to send.
		r.logger.Debug("action rejected",
			zap.String("code", sessionCode),
			zap.String("conn", connID),
		)
	default:
		r.logger.Warn("rules engine fault",
			zap.String("code", sessionCode),
			zap.String("conn", connID),
			zap.Error(err),
		)
		r.messenger.SendTo(connID, EventError, err.Error())
	}
}

// ResetSession reinitializes the session state and broadcasts newGame to the
// room. Participants are preserved and status is forced to active, so a
// finished round can roll straight into the next one. Unknown codes are a
// no-op.
func (r *Registry) ResetSession(rawCode string) {
	sessionCode := code.Normalize(rawCode)

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionCode]
	if !ok {
		return
	}

	state, err := r.engine.InitialState()
	if err != nil {
		r.logger.Error("reinitializing game state",
			zap.String("code", sessionCode),
			zap.Error(err),
		)
		return
	}

	sess.State = state
	sess.Status = StatusActive

	r.logger.Info("session reset", zap.String("code", sessionCode))

	r.messenger.BroadcastTo(sessionCode, EventNewGame, NewGameEvent{
		Code:         sessionCode,
		State:        sess.State,
		Participants: sess.Participants(),
	})
}

// AbandonSession destroys the session at the requester's initiative. The
// opponent, if present, receives opponentAbandoned; the requester receives
// abandonSuccess. Unknown codes are a no-op.
func (r *Registry) AbandonSession(rawCode, connID string) {
	sessionCode := code.Normalize(rawCode)

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionCode]
	if !ok {
		return
	}

	opponent := sess.Opponent(connID)
	if opponent != "" {
		r.messenger.SendTo(opponent, EventOpponentAbandoned, nil)
	}
	r.messenger.SendTo(connID, EventAbandonSuccess, nil)

	r.destroyLocked(sess)
	r.messenger.LeaveRoom(connID, sessionCode)
	if opponent != "" {
		r.messenger.LeaveRoom(opponent, sessionCode)
	}

	r.logger.Info("session abandoned",
		zap.String("code", sessionCode),
		zap.String("conn", connID),
	)
}

// HandleDisconnect tears down the session the dropped connection participates
// in, if any. The surviving opponent receives exactly one opponentAbandoned;
// the dropped connection receives nothing. Connections without a session are
// a no-op.
func (r *Registry) HandleDisconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionCode, ok := r.byConn[connID]
	if !ok {
		return
	}
	sess := r.sessions[sessionCode]

	opponent := sess.Opponent(connID)
	if opponent != "" && opponent != connID {
		r.messenger.SendTo(opponent, EventOpponentAbandoned, nil)
		r.messenger.LeaveRoom(opponent, sessionCode)
	}

	r.destroyLocked(sess)

	r.logger.Info("session destroyed on disconnect",
		zap.String("code", sessionCode),
		zap.String("conn", connID),
	)
}

// RelayChat forwards a chat line to the opponent and echoes it to the sender.
// Chat is a pure pass-through: nothing is persisted and game state is
// untouched. Unknown codes are a no-op.
func (r *Registry) RelayChat(rawCode, message, side, connID string) {
	sessionCode := code.Normalize(rawCode)

	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[sessionCode]
	if !ok {
		return
	}

	opponent := sess.Opponent(connID)
	if opponent != "" {
		r.messenger.SendTo(opponent, EventChatMessage, ChatEvent{
			Message:  message,
			Side:     side,
			IsSender: false,
		})
	}
	r.messenger.SendTo(connID, EventChatMessage, ChatEvent{
		Message:  message,
		Side:     side,
		IsSender: true,
	})
}

// Get returns a snapshot of the session with the given code.
//
// Postcondition: Returns (copy, true) if found, or (zero, false) otherwise.
func (r *Registry) Get(rawCode string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.sessions[code.Normalize(rawCode)]
	if !ok {
		return Session{}, false
	}
	return *sess, true
}

// SessionFor returns the code of the session connID participates in.
//
// Postcondition: Returns (code, true) if seated, or ("", false) otherwise.
func (r *Registry) SessionFor(connID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.byConn[connID]
	return c, ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// freeCodeLocked generates a code absent from the registry, retrying a
// bounded number of times on collision.
func (r *Registry) freeCodeLocked() (string, error) {
	for attempt := 0; attempt < r.retries; attempt++ {
		c, err := r.codes.Generate()
		if err != nil {
			return "", err
		}
		if _, taken := r.sessions[c]; !taken {
			return c, nil
		}
		r.logger.Warn("session code collision",
			zap.String("code", c),
			zap.Int("attempt", attempt+1),
		)
	}
	return "", fmt.Errorf("no free session code after %d attempts", r.retries)
}

// evictLocked abandons the session connID currently participates in, if any.
// The opponent is notified; the evicted connection is not, since it is about
// to receive the events of the operation that triggered the eviction.
func (r *Registry) evictLocked(connID string) {
	sessionCode, ok := r.byConn[connID]
	if !ok {
		return
	}
	sess := r.sessions[sessionCode]

	opponent := sess.Opponent(connID)
	if opponent != "" && opponent != connID {
		r.messenger.SendTo(opponent, EventOpponentAbandoned, nil)
		r.messenger.LeaveRoom(opponent, sessionCode)
	}

	r.destroyLocked(sess)
	r.messenger.LeaveRoom(connID, sessionCode)

	r.logger.Info("session evicted",
		zap.String("code", sessionCode),
		zap.String("conn", connID),
	)
}

// destroyLocked removes the session and both reverse-index entries.
func (r *Registry) destroyLocked(sess *Session) {
	delete(r.sessions, sess.Code)
	if sess.First != "" && r.byConn[sess.First] == sess.Code {
		delete(r.byConn, sess.First)
	}
	if sess.Second != "" && r.byConn[sess.Second] == sess.Code {
		delete(r.byConn, sess.Second)
	}
}
