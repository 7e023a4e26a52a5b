// Package chat manages individual WebSocket clients, handling read/write
// pumps, keepalive, and lifecycle control for each connection.
package chat

import (
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

// Client represents one WebSocket connection. The hub addresses it by its
// opaque id; outbound events are queued on send and drained by writePump.
// closed is owned by the hub loop.
type Client struct {
	id     string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
	addr   string
	closed bool
	log    zerolog.Logger
}

// NewClient creates a Client for an upgraded connection. The send channel is
// buffered so broadcast fan-out never blocks on this recipient.
func NewClient(conn *websocket.Conn, hub *Hub, addr string) *Client {
	id := uuid.NewString()
	if conn != nil {
		conn.SetReadLimit(hub.cfg.MaxMessageSize)
	}

	return &Client{
		id:   id,
		conn: conn,
		send: make(chan []byte, 256),
		hub:  hub,
		addr: addr,
		log:  hub.log.With().Str("conn", id).Str("remote", addr).Logger(),
	}
}

// ID returns the opaque connection identifier.
func (c *Client) ID() string {
	return c.id
}

func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.log.Warn().Err(err).Msg("error setting initial read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			c.log.Warn().Err(err).Msg("error setting read deadline in pong handler")
		}
		return nil
	})
}

// handleReadError logs the error appropriately and reports whether the read
// loop should stop.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		c.log.Warn().Int64("limit", c.hub.cfg.MaxMessageSize).
			Msg("frame exceeded maximum size")
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		c.log.Debug().Err(err).Msg("client disconnected")
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		c.log.Debug().Err(err).Msg("connection closed")
		return true
	}

	if websocket.IsUnexpectedCloseError(err,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
		websocket.CloseMessageTooBig) {
		c.log.Warn().Err(err).Msg("unexpected websocket error")
		return true
	}

	c.log.Warn().Err(err).Msg("websocket read error")
	return true
}

// readPump forwards raw frames to the hub loop until the connection drops,
// then signals unregistration. Decoding and all state changes happen on the
// hub side so this goroutine never touches shared state.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("error closing connection in readPump")
		}
	}()

	c.setupReadConnection()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if c.handleReadError(err) {
				return
			}
			continue
		}

		select {
		case c.hub.events <- inboundEvent{client: c, data: data}:
		case <-c.hub.ctx.Done():
			return
		}
	}
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with periodic pings. It exits when the hub closes the send channel
// or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("error closing connection in writePump")
		}
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.log.Warn().Err(err).Msg("error setting write deadline")
				return
			}
			if !ok {
				c.writeCloseMessage()
				return
			}
			if !c.writeTextMessage(payload) {
				return
			}

		case <-ticker.C:
			if !c.handlePing() {
				return
			}
		}
	}
}

func (c *Client) writeCloseMessage() {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			c.log.Warn().Err(err).Msg("error writing close message")
		}
	}
}

// writeTextMessage writes payload plus any further queued events in a single
// writer, one JSON document per line.
func (c *Client) writeTextMessage(payload []byte) bool {
	w, err := c.conn.NextWriter(websocket.TextMessage)
	if err != nil {
		c.log.Warn().Err(err).Msg("error creating writer")
		return false
	}

	if _, err := w.Write(payload); err != nil {
		c.log.Warn().Err(err).Msg("error writing message")
		return false
	}

	queued := len(c.send)
	for i := 0; i < queued; i++ {
		next, ok := <-c.send
		if !ok {
			break
		}
		if _, err := w.Write([]byte{'\n'}); err != nil {
			c.log.Warn().Err(err).Msg("error writing queued message separator")
			return false
		}
		if _, err := w.Write(next); err != nil {
			c.log.Warn().Err(err).Msg("error writing queued message")
			return false
		}
	}

	if err := w.Close(); err != nil {
		c.log.Warn().Err(err).Msg("error closing writer")
		return false
	}
	return true
}

func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		c.log.Warn().Err(err).Msg("error setting write deadline for ping")
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.log.Debug().Err(err).Msg("error writing ping message")
		return false
	}
	return true
}
