// Package testutil provides test helpers, including a websocket test client
// for integration testing.
package testutil

import (
	"encoding/json"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Envelope mirrors the broker wire envelope so tests can assert on frames
// without importing the broker package.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// WSClient is a websocket test client for integration testing.
type WSClient struct {
	conn *websocket.Conn
	t    *testing.T
}

// NewWSClient dials the given websocket URL and returns a test client.
//
// Precondition: url must be a ws:// URL with a listening server.
// Postcondition: Returns a connected WSClient or fails the test.
func NewWSClient(t *testing.T, url string) *WSClient {
	t.Helper()
	start := time.Now()

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dialing %s: %v [%s]", url, err, time.Since(start))
	}

	t.Cleanup(func() {
		conn.Close()
	})

	client := &WSClient{
		conn: conn,
		t:    t,
	}

	t.Logf("websocket client connected to %s [%s]", url, time.Since(start))
	return client
}

// Send marshals a command envelope and writes it as a text frame.
//
// Precondition: payload must be JSON-marshallable or nil.
func (c *WSClient) Send(cmdType string, payload any) {
	c.t.Helper()

	env := Envelope{Type: cmdType}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			c.t.Fatalf("marshalling %s payload: %v", cmdType, err)
		}
		env.Payload = data
	}
	frame, err := json.Marshal(env)
	if err != nil {
		c.t.Fatalf("marshalling %s envelope: %v", cmdType, err)
	}

	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		c.t.Fatalf("sending %s: %v", cmdType, err)
	}
}

// SendRaw writes an arbitrary text frame, useful for malformed-input tests.
func (c *WSClient) SendRaw(frame string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if err := c.conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		c.t.Fatalf("sending raw frame: %v", err)
	}
}

// ReadEvent reads frames until one with the given event type arrives or the
// timeout elapses. Frames of other types are discarded.
//
// Postcondition: Returns the matching envelope, or fails the test on timeout.
func (c *WSClient) ReadEvent(eventType string, timeout time.Duration) Envelope {
	c.t.Helper()
	deadline := time.Now().Add(timeout)

	for {
		_ = c.conn.SetReadDeadline(deadline)
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.t.Fatalf("reading until %q: %v", eventType, err)
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.t.Fatalf("decoding frame %q: %v", string(data), err)
		}
		if env.Type == eventType {
			return env
		}
		c.t.Logf("skipping %s frame while waiting for %s", env.Type, eventType)
	}
}

// ExpectSilence asserts that no frame arrives within the given window. The
// read deadline it trips leaves the connection unusable for further reads,
// so call it last.
func (c *WSClient) ExpectSilence(window time.Duration) {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(window))
	_, data, err := c.conn.ReadMessage()
	if err == nil {
		c.t.Fatalf("expected no traffic, got %q", string(data))
	}
	var ne net.Error
	if !errors.As(err, &ne) || !ne.Timeout() {
		c.t.Fatalf("expected read timeout, got: %v", err)
	}
}

// Close closes the underlying connection.
func (c *WSClient) Close() {
	c.conn.Close()
}
