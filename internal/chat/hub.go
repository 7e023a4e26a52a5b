// Package chat coordinates presence, message broadcast, and connection
// cleanup for the chat relay via the Hub type.
package chat

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// inboundEvent is one raw frame read from a connection, queued for the hub
// loop to decode and apply.
type inboundEvent struct {
	client *Client
	data   []byte
}

// Stats is a point-in-time snapshot of hub state for the stats endpoint.
type Stats struct {
	LiveConnections  int `json:"liveConnections"`
	BufferedMessages int `json:"bufferedMessages"`
	BannedUsers      int `json:"bannedUsers"`
}

// Health reports liveness information for the health endpoint.
type Health struct {
	Status          string `json:"status"`
	LiveConnections int    `json:"liveConnections"`
	UptimeSeconds   int64  `json:"uptimeSeconds"`
	Timestamp       int64  `json:"timestamp"`
}

// Hub owns all mutable chat state: the transport-level client set, the
// presence registry, the recent-message buffer, rate-limit bookkeeping, and
// the ban list. Every mutation happens on the Run goroutine; clients, the
// reaper tick, and administrative commands all feed the same loop, so no
// further locking is needed.
type Hub struct {
	cfg Config
	log zerolog.Logger

	clients map[string]*Client
	reg     *registry
	history *historyBuffer
	limiter *rateLimiter
	bans    *banList
	names   usernamePolicy

	register   chan *Client
	unregister chan *Client
	events     chan inboundEvent
	commands   chan func()

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startedAt time.Time
}

// NewHub creates a Hub ready to run, with all collections empty and limits
// taken from cfg.
func NewHub(cfg Config, log zerolog.Logger) *Hub {
	cfg = sanitizeConfig(cfg)
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		cfg:        cfg,
		log:        log,
		clients:    make(map[string]*Client),
		reg:        newRegistry(),
		history:    newHistoryBuffer(cfg.HistorySize),
		limiter:    newRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow),
		bans:       newBanList(),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		events:     make(chan inboundEvent, 64),
		commands:   make(chan func()),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		startedAt:  time.Now(),
	}
	h.names = usernamePolicy{bans: h.bans, reg: h.reg}
	return h
}

// Register hands a freshly upgraded connection to the hub loop.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.ctx.Done():
		if c.conn != nil {
			_ = c.conn.Close()
		}
	}
}

// Run starts the hub's main event loop, handling client registration,
// inbound events, administrative commands, and the idle-reaper tick. It runs
// until Shutdown is called and should be started in its own goroutine.
func (h *Hub) Run() {
	defer close(h.done)

	reaper := time.NewTicker(h.cfg.ReaperInterval)
	defer reaper.Stop()

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case c := <-h.register:
			if c == nil {
				h.log.Warn().Msg("received nil client registration; skipping")
				continue
			}
			h.clients[c.id] = c
			h.log.Info().Str("conn", c.id).Str("remote", c.addr).
				Int("connections", len(h.clients)).Msg("client registered")

			if c.conn != nil {
				h.wg.Add(2)
				go func() {
					defer h.wg.Done()
					c.writePump()
				}()
				go func() {
					defer h.wg.Done()
					c.readPump()
				}()
			}

		case c := <-h.unregister:
			h.disconnect(c)

		case ev := <-h.events:
			h.dispatch(ev)

		case cmd := <-h.commands:
			cmd()

		case now := <-reaper.C:
			h.reap(now)
		}
	}
}

// dispatch decodes one inbound frame and applies it. A panic while handling
// a single event is recovered here so it cannot take down the loop or any
// other session.
func (h *Hub) dispatch(ev inboundEvent) {
	defer func() {
		if r := recover(); r != nil {
			connID := "unknown"
			if ev.client != nil {
				connID = ev.client.id
			}
			h.log.Error().Interface("panic", r).Str("conn", connID).
				Msg("recovered from panic while handling event")
		}
	}()

	// Frames can still be queued after their connection was removed (an
	// explicit leave, or a disconnect racing buffered reads). A Closed
	// connection must not re-enter the state machine.
	if _, registered := h.clients[ev.client.id]; !registered {
		return
	}

	var frame inboundFrame
	if err := json.Unmarshal(ev.data, &frame); err != nil {
		h.sendError(ev.client, "malformed event")
		return
	}

	switch frame.Type {
	case frameJoin:
		h.handleJoin(ev.client, frame.Username)
	case frameMessage:
		h.handleMessage(ev.client, frame.Text)
	case frameTyping:
		h.handleTyping(ev.client, frame.Typing)
	case frameIdle:
		h.handleIdle(ev.client, frame.State)
	case frameLeave:
		h.disconnect(ev.client)
	default:
		h.sendError(ev.client, "unknown event type")
	}
}

func (h *Hub) handleJoin(c *Client, rawUsername string) {
	if _, joined := h.reg.lookup(c.id); joined {
		h.sendError(c, "already joined")
		return
	}

	username, err := h.names.validate(rawUsername)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}

	now := time.Now()
	h.reg.bind(c.id, username, now)
	h.log.Info().Str("conn", c.id).Str("user", username).
		Int("online", h.reg.count()).Msg("user joined")

	h.broadcast(h.encode(newPresenceEvent(eventUserJoined, username, h.reg.count(), now)), nil)

	// Replay history to the joiner only, oldest first.
	for _, m := range h.history.snapshot() {
		if !h.deliver(c, h.encode(newMessageEvent(m))) {
			break
		}
	}
}

func (h *Hub) handleMessage(c *Client, rawText string) {
	p, joined := h.reg.lookup(c.id)
	if !joined {
		h.sendError(c, "join before sending messages")
		return
	}

	text, err := validateMessageText(rawText)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}

	now := time.Now()
	if !h.limiter.allow(p.Username, now) {
		h.sendError(c, "rate limit exceeded, slow down")
		return
	}

	m := Message{Username: p.Username, Text: text, Timestamp: now, OriginID: c.id}
	h.history.append(m)
	p.LastSeen = now

	// The origin receives its own message too, so every client renders the
	// same ordered stream.
	h.broadcast(h.encode(newMessageEvent(m)), nil)
}

func (h *Hub) handleTyping(c *Client, typing bool) {
	p, joined := h.reg.lookup(c.id)
	if !joined {
		return
	}
	h.broadcast(h.encode(typingEvent{Type: eventUserTyping, Username: p.Username, Typing: typing}), c)
}

func (h *Hub) handleIdle(c *Client, state string) {
	p, joined := h.reg.lookup(c.id)
	if !joined {
		return
	}

	switch Status(state) {
	case StatusIdle:
		p.Status = StatusIdle
	case StatusActive:
		p.Status = StatusActive
		p.LastSeen = time.Now()
	default:
		h.sendError(c, "unknown idle state")
	}
}

// disconnect removes a connection from the hub. It is idempotent: a second
// call for the same client (explicit leave followed by transport close) is a
// no-op. If the connection held a username, everyone else is told it left.
func (h *Hub) disconnect(c *Client) {
	if c == nil {
		return
	}
	if _, registered := h.clients[c.id]; !registered {
		return
	}

	delete(h.clients, c.id)
	c.closed = true
	close(c.send)

	p, removed := h.reg.remove(c.id)
	if !removed {
		h.log.Info().Str("conn", c.id).Int("connections", len(h.clients)).
			Msg("client unregistered")
		return
	}

	now := time.Now()
	h.limiter.forgetIfQuiet(p.Username, now, h.cfg.RateStateGrace)
	h.log.Info().Str("conn", c.id).Str("user", p.Username).
		Int("online", h.reg.count()).Msg("user left")
	h.broadcast(h.encode(newPresenceEvent(eventUserLeft, p.Username, h.reg.count(), now)), nil)
}

// banUser adds username to the ban list and evicts the live holder, if any,
// after telling it why.
func (h *Hub) banUser(username string) {
	h.bans.add(username)
	h.log.Info().Str("user", username).Msg("username banned")

	connID, held := h.reg.holder(username)
	if !held {
		return
	}
	if c, live := h.clients[connID]; live {
		h.deliver(c, h.encode(errorEvent{Type: eventError, Message: "you have been banned"}))
		h.disconnect(c)
	}
}

func (h *Hub) encode(ev any) []byte {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.log.Error().Err(err).Msg("failed to encode outbound event")
		return nil
	}
	return payload
}

// deliver queues payload on one client's send channel without blocking. A
// full or closed queue means the recipient is skipped, never awaited.
func (h *Hub) deliver(c *Client, payload []byte) bool {
	if payload == nil || c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// broadcast fans payload out to every registered connection except skip.
// Recipients whose queues are full are disconnected rather than stalling the
// loop.
func (h *Hub) broadcast(payload []byte, skip *Client) {
	if payload == nil {
		return
	}

	var failed []*Client
	for _, c := range h.clients {
		if c == skip {
			continue
		}
		if !h.deliver(c, payload) {
			failed = append(failed, c)
		}
	}

	for _, c := range failed {
		h.log.Warn().Str("conn", c.id).Str("remote", c.addr).
			Msg("removing client with full send buffer")
		h.disconnect(c)
	}
}

func (h *Hub) sendError(c *Client, message string) {
	h.deliver(c, h.encode(errorEvent{Type: eventError, Message: message}))
}

// do runs fn on the hub loop and waits for it to complete. It reports false
// if the hub has already shut down.
func (h *Hub) do(fn func()) bool {
	completed := make(chan struct{})
	wrapped := func() {
		fn()
		close(completed)
	}

	select {
	case h.commands <- wrapped:
	case <-h.done:
		return false
	}

	select {
	case <-completed:
		return true
	case <-h.done:
		return false
	}
}

// Ban adds username to the ban list and force-disconnects any live holder.
// It reports false only if the hub is no longer running.
func (h *Hub) Ban(username string) bool {
	return h.do(func() { h.banUser(username) })
}

// Unban removes username from the ban list. It does not reconnect anyone.
func (h *Hub) Unban(username string) bool {
	return h.do(func() { h.bans.remove(username) })
}

// Stats returns a consistent snapshot of hub state.
func (h *Hub) Stats() Stats {
	var s Stats
	h.do(func() {
		s = Stats{
			LiveConnections:  h.reg.count(),
			BufferedMessages: h.history.size(),
			BannedUsers:      h.bans.size(),
		}
	})
	return s
}

// Health reports liveness information for the health endpoint.
func (h *Hub) Health() Health {
	var health Health
	ok := h.do(func() {
		now := time.Now()
		health = Health{
			Status:          "ok",
			LiveConnections: h.reg.count(),
			UptimeSeconds:   int64(now.Sub(h.startedAt).Seconds()),
			Timestamp:       now.UnixMilli(),
		}
	})
	if !ok {
		health.Status = "shutting down"
	}
	return health
}

// shutdownClients closes all active client connections during shutdown.
func (h *Hub) shutdownClients() {
	h.log.Info().Int("connections", len(h.clients)).Msg("shutting down all client connections")

	for _, c := range h.clients {
		if c.conn != nil {
			if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.log.Warn().Err(err).Str("remote", c.addr).Msg("error closing client connection")
			}
		}
	}
}

// Shutdown initiates graceful shutdown of the hub and waits for all client
// goroutines to finish, or until the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.log.Info().Msg("initiating hub shutdown")

	h.cancel()
	<-h.done

	finished := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(finished)
	}()

	select {
	case <-finished:
		h.log.Info().Msg("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		h.log.Warn().Msg("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
