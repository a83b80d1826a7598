package broker

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cory-johannsen/parlor/internal/game/code"
	"github.com/cory-johannsen/parlor/internal/game/session"
	"github.com/cory-johannsen/parlor/internal/testutil"
)

const eventTimeout = 2 * time.Second

// startTestServer wires a full broker stack behind an httptest server and
// returns the ws:// URL of its endpoint.
func startTestServer(t *testing.T) (string, *session.Registry) {
	t.Helper()

	logger := zap.NewNop()
	hub := NewHub(testServerConfig(), logger)
	registry := session.NewRegistry(tickEngine{}, code.NewGenerator(code.DefaultLength), 8, hub, logger)
	hub.OnDisconnect = registry.HandleDisconnect
	srv := NewServer(testServerConfig(), hub, NewHandler(registry, logger), logger)

	ts := httptest.NewServer(http.HandlerFunc(srv.ServeWS))
	t.Cleanup(ts.Close)

	return "ws" + strings.TrimPrefix(ts.URL, "http"), registry
}

func TestServerFullSessionFlow(t *testing.T) {
	url, registry := startTestServer(t)

	creator := testutil.NewWSClient(t, url)
	creator.Send(CmdCreate, nil)

	created := creator.ReadEvent(session.EventGameCreated, eventTimeout)
	var createdPayload session.GameCreatedEvent
	require.NoError(t, json.Unmarshal(created.Payload, &createdPayload))
	require.Len(t, createdPayload.Code, code.DefaultLength)
	require.NotEmpty(t, createdPayload.ConnID)

	// The code is case-insensitive on the wire.
	joiner := testutil.NewWSClient(t, url)
	joiner.Send(CmdJoin, JoinCommand{Code: strings.ToLower(createdPayload.Code)})

	joined := joiner.ReadEvent(session.EventGameJoined, eventTimeout)
	var joinedPayload session.GameJoinedEvent
	require.NoError(t, json.Unmarshal(joined.Payload, &joinedPayload))
	assert.Empty(t, joinedPayload.Error)
	assert.Equal(t, createdPayload.Code, joinedPayload.Code)
	assert.Equal(t, session.SideSecond, joinedPayload.Side)
	assert.JSONEq(t, `{"n":0}`, string(joinedPayload.State))
	assert.Equal(t, createdPayload.ConnID, joinedPayload.OpponentID)

	opponentJoined := creator.ReadEvent(session.EventOpponentJoined, eventTimeout)
	var opponentPayload session.OpponentJoinedEvent
	require.NoError(t, json.Unmarshal(opponentJoined.Payload, &opponentPayload))
	assert.JSONEq(t, `{"n":0}`, string(opponentPayload.State))

	// An accepted action reaches both sides, originator included.
	creator.Send(CmdAction, map[string]any{
		"code":   createdPayload.Code,
		"action": map[string]string{"op": "inc"},
	})
	for _, c := range []*testutil.WSClient{creator, joiner} {
		applied := c.ReadEvent(session.EventActionApplied, eventTimeout)
		var result struct {
			State json.RawMessage `json:"state"`
		}
		require.NoError(t, json.Unmarshal(applied.Payload, &result))
		assert.JSONEq(t, `{"n":1}`, string(result.State))
	}

	// Chat reaches the opponent and echoes back to the sender.
	joiner.Send(CmdChat, ChatCommand{Code: createdPayload.Code, Message: "gg", Side: "second"})
	senderCopy := joiner.ReadEvent(session.EventChatMessage, eventTimeout)
	opponentCopy := creator.ReadEvent(session.EventChatMessage, eventTimeout)

	var senderChat, opponentChat session.ChatEvent
	require.NoError(t, json.Unmarshal(senderCopy.Payload, &senderChat))
	require.NoError(t, json.Unmarshal(opponentCopy.Payload, &opponentChat))
	assert.Equal(t, "gg", senderChat.Message)
	assert.True(t, senderChat.IsSender)
	assert.Equal(t, "gg", opponentChat.Message)
	assert.False(t, opponentChat.IsSender)

	// A dropped connection tears down the session and notifies the survivor
	// exactly once.
	joiner.Close()
	creator.ReadEvent(session.EventOpponentAbandoned, eventTimeout)

	require.Eventually(t, func() bool {
		return registry.Len() == 0
	}, eventTimeout, 10*time.Millisecond)
}

func TestServerJoinUnknownCode(t *testing.T) {
	url, _ := startTestServer(t)

	client := testutil.NewWSClient(t, url)
	client.Send(CmdJoin, JoinCommand{Code: "none"})

	notFound := client.ReadEvent(session.EventGameNotFound, eventTimeout)
	var missing string
	require.NoError(t, json.Unmarshal(notFound.Payload, &missing))
	assert.Equal(t, "NONE", missing)
}

func TestServerJoinFullSession(t *testing.T) {
	url, _ := startTestServer(t)

	creator := testutil.NewWSClient(t, url)
	creator.Send(CmdCreate, nil)
	created := creator.ReadEvent(session.EventGameCreated, eventTimeout)
	var createdPayload session.GameCreatedEvent
	require.NoError(t, json.Unmarshal(created.Payload, &createdPayload))

	joiner := testutil.NewWSClient(t, url)
	joiner.Send(CmdJoin, JoinCommand{Code: createdPayload.Code})
	joiner.ReadEvent(session.EventGameJoined, eventTimeout)

	third := testutil.NewWSClient(t, url)
	third.Send(CmdJoin, JoinCommand{Code: createdPayload.Code})

	rejected := third.ReadEvent(session.EventGameJoined, eventTimeout)
	var rejectedPayload session.GameJoinedEvent
	require.NoError(t, json.Unmarshal(rejected.Payload, &rejectedPayload))
	assert.NotEmpty(t, rejectedPayload.Error)
	assert.Empty(t, rejectedPayload.Code)
}

func TestServerAbandonTearsDownSession(t *testing.T) {
	url, registry := startTestServer(t)

	creator := testutil.NewWSClient(t, url)
	creator.Send(CmdCreate, nil)
	created := creator.ReadEvent(session.EventGameCreated, eventTimeout)
	var createdPayload session.GameCreatedEvent
	require.NoError(t, json.Unmarshal(created.Payload, &createdPayload))

	joiner := testutil.NewWSClient(t, url)
	joiner.Send(CmdJoin, JoinCommand{Code: createdPayload.Code})
	joiner.ReadEvent(session.EventGameJoined, eventTimeout)
	creator.ReadEvent(session.EventOpponentJoined, eventTimeout)

	creator.Send(CmdAbandon, AbandonCommand{Code: createdPayload.Code})

	creator.ReadEvent(session.EventAbandonSuccess, eventTimeout)
	joiner.ReadEvent(session.EventOpponentAbandoned, eventTimeout)
	assert.Zero(t, registry.Len())

	// Actions against the destroyed session vanish without traffic.
	joiner.Send(CmdAction, map[string]any{
		"code":   createdPayload.Code,
		"action": map[string]string{"op": "inc"},
	})
	joiner.ExpectSilence(200 * time.Millisecond)
}

func TestServerMalformedFramesLeaveConnectionUsable(t *testing.T) {
	url, _ := startTestServer(t)

	client := testutil.NewWSClient(t, url)
	client.SendRaw(`{broken`)
	client.SendRaw(`{"type":"warp","payload":{}}`)

	// The connection still works after garbage input.
	client.Send(CmdCreate, nil)
	client.ReadEvent(session.EventGameCreated, eventTimeout)
}
