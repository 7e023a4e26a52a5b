// Package chat defines the JSON wire events exchanged between clients and the
// hub, plus small helpers shared across client and hub logic.
package chat

import (
	"strings"
	"time"
)

// Inbound frame types understood by the hub.
const (
	frameJoin    = "join"
	frameMessage = "message"
	frameTyping  = "typing"
	frameIdle    = "idle"
	frameLeave   = "leave"
)

// Outbound event types emitted by the hub.
const (
	eventUserJoined = "userJoined"
	eventUserLeft   = "userLeft"
	eventMessage    = "message"
	eventUserTyping = "userTyping"
	eventError      = "error"
)

// inboundFrame is the envelope clients send over the WebSocket. Type selects
// which of the remaining fields are meaningful.
type inboundFrame struct {
	Type     string `json:"type"`
	Username string `json:"username,omitempty"`
	Text     string `json:"text,omitempty"`
	Typing   bool   `json:"typing,omitempty"`
	State    string `json:"state,omitempty"`
}

// presenceEvent announces a user joining or leaving, with the online count
// recomputed at emission time.
type presenceEvent struct {
	Type        string `json:"type"`
	Username    string `json:"username"`
	OnlineCount int    `json:"onlineCount"`
	Timestamp   int64  `json:"timestamp"`
}

// messageEvent carries one chat message, both for live broadcast and for
// history replay to a joining connection.
type messageEvent struct {
	Type      string `json:"type"`
	Username  string `json:"username"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
	OriginID  string `json:"originId"`
}

// typingEvent is an ephemeral typing indicator relayed to other connections.
type typingEvent struct {
	Type     string `json:"type"`
	Username string `json:"username"`
	Typing   bool   `json:"typing"`
}

// errorEvent reports a rejection or precondition failure to one connection.
type errorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func newMessageEvent(m Message) messageEvent {
	return messageEvent{
		Type:      eventMessage,
		Username:  m.Username,
		Text:      m.Text,
		Timestamp: m.Timestamp.UnixMilli(),
		OriginID:  m.OriginID,
	}
}

func newPresenceEvent(kind, username string, onlineCount int, at time.Time) presenceEvent {
	return presenceEvent{
		Type:        kind,
		Username:    username,
		OnlineCount: onlineCount,
		Timestamp:   at.UnixMilli(),
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
