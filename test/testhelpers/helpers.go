// Package testhelpers provides shared utilities for integration tests: a
// test-server factory and a WebSocket wrapper that speaks the chat event
// protocol.
package testhelpers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/demohai0/chatplt/internal/chat"
)

// StartChatServer starts a hub and its HTTP surface on an httptest server.
// Both are torn down via t.Cleanup.
func StartChatServer(t *testing.T, cfg *chat.Config) (*httptest.Server, *chat.Hub) {
	t.Helper()

	if cfg == nil {
		cfg = chat.NewConfig()
	}

	hub := chat.NewHub(*cfg, zerolog.Nop())
	go hub.Run()

	service := chat.NewService(hub, *cfg, zerolog.Nop())
	server := httptest.NewServer(service.SetupRoutes())

	t.Cleanup(func() {
		server.Close()
		_ = hub.Shutdown(2 * time.Second)
	})

	return server, hub
}

// EventConn wraps a WebSocket connection and decodes the newline-batched
// JSON events the server emits.
type EventConn struct {
	t     *testing.T
	conn  *websocket.Conn
	queue []map[string]any
}

// Dial opens a WebSocket connection to the test server with an allowed
// origin header.
func Dial(t *testing.T, server *httptest.Server) *EventConn {
	t.Helper()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"

	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	headers := http.Header{}
	headers.Set("Origin", "http://localhost:8080")

	conn, resp, err := dialer.Dial(wsURL, headers)
	if resp != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		t.Fatalf("failed to dial %s: %v", wsURL, err)
	}

	ec := &EventConn{t: t, conn: conn}
	t.Cleanup(ec.Close)
	return ec
}

// Send writes one JSON frame.
func (c *EventConn) Send(frame map[string]any) {
	c.t.Helper()
	if err := c.conn.WriteJSON(frame); err != nil {
		c.t.Fatalf("failed to send frame: %v", err)
	}
}

// Join sends a join frame for username.
func (c *EventConn) Join(username string) {
	c.Send(map[string]any{"type": "join", "username": username})
}

// SendChat sends a chat message frame.
func (c *EventConn) SendChat(text string) {
	c.Send(map[string]any{"type": "message", "text": text})
}

// SendRaw writes a raw WebSocket message.
func (c *EventConn) SendRaw(messageType int, data []byte) error {
	return c.conn.WriteMessage(messageType, data)
}

// Next returns the next decoded event, reading another WebSocket frame if
// the queue is empty. A frame may batch several newline-separated events.
func (c *EventConn) Next(timeout time.Duration) (map[string]any, error) {
	if len(c.queue) > 0 {
		ev := c.queue[0]
		c.queue = c.queue[1:]
		return ev, nil
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return nil, err
	}
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}

	for _, line := range strings.Split(string(data), "\n") {
		if line == "" {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, err
		}
		c.queue = append(c.queue, ev)
	}

	return c.Next(timeout)
}

// WaitFor reads events until one of eventType arrives, failing the test on
// timeout or read error.
func (c *EventConn) WaitFor(eventType string, timeout time.Duration) map[string]any {
	c.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.t.Fatalf("timed out waiting for %q event", eventType)
			return nil
		}
		ev, err := c.Next(remaining)
		if err != nil {
			c.t.Fatalf("error waiting for %q event: %v", eventType, err)
			return nil
		}
		if ev["type"] == eventType {
			return ev
		}
	}
}

// ExpectClosed asserts that the connection is closed by the server within
// timeout, draining any remaining events first.
func (c *EventConn) ExpectClosed(timeout time.Duration) {
	c.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			c.t.Fatal("connection was not closed by the server")
			return
		}
		if _, err := c.Next(remaining); err != nil {
			return
		}
	}
}

// Close closes the underlying connection. Safe to call more than once.
func (c *EventConn) Close() {
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	_ = c.conn.Close()
}

// AdminPost sends an authenticated admin request and returns the response.
func AdminPost(t *testing.T, server *httptest.Server, path, token, username string) *http.Response {
	t.Helper()

	body := strings.NewReader(`{"username":"` + username + `"}`)
	req, err := http.NewRequest(http.MethodPost, server.URL+path, body)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("failed to make request: %v", err)
	}
	return resp
}
