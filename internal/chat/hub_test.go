package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The hub tests below drive the handler methods synchronously, the same way
// the Run loop invokes them, and observe outbound traffic on each client's
// send queue.

func newTestHub() *Hub {
	return NewHub(defaultConfig(), zerolog.Nop())
}

func addTestClient(h *Hub) *Client {
	c := NewClient(nil, h, "test-addr")
	h.clients[c.id] = c
	return c
}

func drainEvents(t *testing.T, c *Client) []map[string]any {
	t.Helper()

	var events []map[string]any
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return events
			}
			var ev map[string]any
			require.NoError(t, json.Unmarshal(payload, &ev))
			events = append(events, ev)
		default:
			return events
		}
	}
}

func eventsOfType(events []map[string]any, eventType string) []map[string]any {
	var out []map[string]any
	for _, ev := range events {
		if ev["type"] == eventType {
			out = append(out, ev)
		}
	}
	return out
}

func TestJoinBroadcastsPresence(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	bob := addTestClient(h)

	h.handleJoin(alice, "Alice")

	events := drainEvents(t, alice)
	joined := eventsOfType(events, eventUserJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "Alice", joined[0]["username"])
	assert.Equal(t, float64(1), joined[0]["onlineCount"])

	h.handleJoin(bob, "Bob")

	aliceEvents := drainEvents(t, alice)
	joined = eventsOfType(aliceEvents, eventUserJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "Bob", joined[0]["username"])
	assert.Equal(t, float64(2), joined[0]["onlineCount"])
}

func TestJoinDuplicateUsernameRejected(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	imposter := addTestClient(h)

	h.handleJoin(alice, "Alice")
	drainEvents(t, alice)

	h.handleJoin(imposter, "ALICE")

	events := drainEvents(t, imposter)
	require.Len(t, eventsOfType(events, eventError), 1)
	assert.Empty(t, eventsOfType(events, eventUserJoined))

	// The first joiner keeps its binding.
	p, ok := h.reg.lookup(alice.id)
	require.True(t, ok)
	assert.Equal(t, "Alice", p.Username)
	assert.Equal(t, 1, h.reg.count())
}

func TestRejoinWhileJoinedRejected(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)

	h.handleJoin(alice, "Alice")
	drainEvents(t, alice)

	h.handleJoin(alice, "Alice2")

	events := drainEvents(t, alice)
	errs := eventsOfType(events, eventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "already joined", errs[0]["message"])

	p, _ := h.reg.lookup(alice.id)
	assert.Equal(t, "Alice", p.Username)
}

func TestMessageRequiresJoin(t *testing.T) {
	h := newTestHub()
	c := addTestClient(h)

	h.handleMessage(c, "hello")

	events := drainEvents(t, c)
	require.Len(t, eventsOfType(events, eventError), 1)
	assert.Empty(t, eventsOfType(events, eventMessage))
	assert.Equal(t, 0, h.history.size())
}

func TestMessageBroadcastIncludesOrigin(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	bob := addTestClient(h)

	h.handleJoin(alice, "Alice")
	h.handleJoin(bob, "Bob")
	drainEvents(t, alice)
	drainEvents(t, bob)

	h.handleMessage(alice, "<script>alert(1)</script>hello")

	for _, c := range []*Client{alice, bob} {
		events := drainEvents(t, c)
		messages := eventsOfType(events, eventMessage)
		require.Len(t, messages, 1)
		assert.Equal(t, "Alice", messages[0]["username"])
		assert.Equal(t, "hello", messages[0]["text"])
		assert.Equal(t, alice.id, messages[0]["originId"])
	}

	assert.Equal(t, 1, h.history.size())
}

func TestMessageRateLimited(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	h.handleJoin(alice, "Alice")
	drainEvents(t, alice)

	for i := 0; i < 10; i++ {
		h.handleMessage(alice, "spam")
	}
	events := drainEvents(t, alice)
	assert.Len(t, eventsOfType(events, eventMessage), 10)

	h.handleMessage(alice, "one too many")

	events = drainEvents(t, alice)
	assert.Empty(t, eventsOfType(events, eventMessage))
	require.Len(t, eventsOfType(events, eventError), 1)
	assert.Equal(t, 10, h.history.size())
}

func TestTypingSkipsOrigin(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	bob := addTestClient(h)

	h.handleJoin(alice, "Alice")
	h.handleJoin(bob, "Bob")
	drainEvents(t, alice)
	drainEvents(t, bob)

	h.handleTyping(alice, true)

	assert.Empty(t, eventsOfType(drainEvents(t, alice), eventUserTyping))

	typing := eventsOfType(drainEvents(t, bob), eventUserTyping)
	require.Len(t, typing, 1)
	assert.Equal(t, "Alice", typing[0]["username"])
	assert.Equal(t, true, typing[0]["typing"])
}

func TestTypingBeforeJoinIgnored(t *testing.T) {
	h := newTestHub()
	c := addTestClient(h)

	h.handleTyping(c, true)

	assert.Empty(t, drainEvents(t, c))
}

func TestIdleSignalUpdatesStatus(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	h.handleJoin(alice, "Alice")

	p, _ := h.reg.lookup(alice.id)
	past := time.Now().Add(-10 * time.Minute)
	p.LastSeen = past

	h.handleIdle(alice, "idle")
	assert.Equal(t, StatusIdle, p.Status)
	assert.Equal(t, past, p.LastSeen, "idle must not refresh lastSeen")

	h.handleIdle(alice, "active")
	assert.Equal(t, StatusActive, p.Status)
	assert.True(t, p.LastSeen.After(past), "active must refresh lastSeen")
}

func TestLeaveIdempotent(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	bob := addTestClient(h)

	h.handleJoin(alice, "Alice")
	h.handleJoin(bob, "Bob")
	drainEvents(t, alice)

	h.disconnect(bob)
	h.disconnect(bob)

	left := eventsOfType(drainEvents(t, alice), eventUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "Bob", left[0]["username"])
	assert.Equal(t, float64(1), left[0]["onlineCount"])
	assert.Equal(t, 1, h.reg.count())
}

func TestHistoryReplayOnJoin(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	h.handleJoin(alice, "Alice")

	for _, text := range []string{"one", "two", "three"} {
		h.handleMessage(alice, text)
	}

	bob := addTestClient(h)
	h.handleJoin(bob, "Bob")

	events := drainEvents(t, bob)
	require.GreaterOrEqual(t, len(events), 4)

	// Bob's own join broadcast precedes the replay.
	assert.Equal(t, eventUserJoined, events[0]["type"])

	replayed := eventsOfType(events, eventMessage)
	require.Len(t, replayed, 3)
	assert.Equal(t, "one", replayed[0]["text"])
	assert.Equal(t, "two", replayed[1]["text"])
	assert.Equal(t, "three", replayed[2]["text"])
}

func TestBanEvictsLiveUser(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	bob := addTestClient(h)

	h.handleJoin(alice, "Alice")
	h.handleJoin(bob, "Bob")
	drainEvents(t, alice)
	drainEvents(t, bob)

	h.banUser("ALICE")

	aliceEvents := drainEvents(t, alice)
	errs := eventsOfType(aliceEvents, eventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "you have been banned", errs[0]["message"])
	assert.True(t, alice.closed)

	left := eventsOfType(drainEvents(t, bob), eventUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "Alice", left[0]["username"])

	// Rejoining under the banned name is rejected.
	rejoin := addTestClient(h)
	h.handleJoin(rejoin, "alice")
	require.Len(t, eventsOfType(drainEvents(t, rejoin), eventError), 1)
	assert.Equal(t, 1, h.reg.count())
}

func TestBanOfflineUsernameBlocksJoin(t *testing.T) {
	h := newTestHub()

	h.banUser("troll")

	c := addTestClient(h)
	h.handleJoin(c, "Troll")
	require.Len(t, eventsOfType(drainEvents(t, c), eventError), 1)
	assert.Equal(t, 0, h.reg.count())
}

func TestReaperEvictsStaleConnections(t *testing.T) {
	h := newTestHub()
	stale := addTestClient(h)
	fresh := addTestClient(h)

	h.handleJoin(stale, "Sleeper")
	h.handleJoin(fresh, "Awake")
	drainEvents(t, fresh)

	now := time.Now()
	staleP, _ := h.reg.lookup(stale.id)
	staleP.LastSeen = now.Add(-31 * time.Minute)
	freshP, _ := h.reg.lookup(fresh.id)
	freshP.LastSeen = now.Add(-29 * time.Minute)

	h.reap(now)

	left := eventsOfType(drainEvents(t, fresh), eventUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "Sleeper", left[0]["username"])
	assert.Equal(t, float64(1), left[0]["onlineCount"])

	_, ok := h.reg.lookup(stale.id)
	assert.False(t, ok)
	_, ok = h.reg.lookup(fresh.id)
	assert.True(t, ok)
}

func TestReaperPrunesStaleRateWindows(t *testing.T) {
	h := newTestHub()
	now := time.Now()

	h.limiter.allow("ghost", now.Add(-2*time.Hour))
	h.limiter.allow("active", now)

	h.reap(now)

	assert.Equal(t, 1, h.limiter.size())
	_, ok := h.limiter.users["active"]
	assert.True(t, ok)
}

func TestDisconnectDropsQuietRateState(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	h.handleJoin(alice, "Alice")

	// Simulate a user whose last message was past the grace period.
	h.limiter.users["Alice"] = &rateWindow{
		count: 3,
		start: time.Now().Add(-10 * time.Minute),
		last:  time.Now().Add(-6 * time.Minute),
	}

	h.disconnect(alice)

	_, ok := h.limiter.users["Alice"]
	assert.False(t, ok)
}

func TestDisconnectKeepsRecentRateState(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	h.handleJoin(alice, "Alice")
	h.handleMessage(alice, "hi")

	h.disconnect(alice)

	// Recent activity survives a disconnect so a quick rejoin cannot reset
	// the window.
	_, ok := h.limiter.users["Alice"]
	assert.True(t, ok)
}

func TestJoinAfterLeaveIgnored(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	observer := addTestClient(h)
	h.handleJoin(observer, "Observer")
	drainEvents(t, observer)

	// A leave frame followed by a join frame from the same connection: the
	// join is still queued when the leave removes the client.
	h.dispatch(inboundEvent{client: alice, data: []byte(`{"type":"leave"}`)})
	h.dispatch(inboundEvent{client: alice, data: []byte(`{"type":"join","username":"Ghost"}`)})

	assert.Equal(t, 1, h.reg.count())
	_, held := h.reg.holder("ghost")
	assert.False(t, held, "closed connection must not bind a username")
	assert.Empty(t, eventsOfType(drainEvents(t, observer), eventUserJoined))

	// The name stays free for a live connection.
	fresh := addTestClient(h)
	h.handleJoin(fresh, "ghost")
	joined := eventsOfType(drainEvents(t, fresh), eventUserJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, float64(2), joined[0]["onlineCount"])
}

func TestMessageAfterDisconnectIgnored(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	observer := addTestClient(h)
	h.handleJoin(alice, "Alice")
	h.handleJoin(observer, "Observer")
	drainEvents(t, observer)

	h.disconnect(alice)
	drainEvents(t, observer)

	h.dispatch(inboundEvent{client: alice, data: []byte(`{"type":"message","text":"from beyond"}`)})

	assert.Equal(t, 0, h.history.size())
	assert.Empty(t, eventsOfType(drainEvents(t, observer), eventMessage))
}

func TestReaperBroadcastsForOrphanedPresence(t *testing.T) {
	h := newTestHub()
	observer := addTestClient(h)
	h.handleJoin(observer, "Observer")
	drainEvents(t, observer)

	now := time.Now()
	h.reg.bind("orphan-conn", "Orphan", now.Add(-31*time.Minute))

	h.reap(now)

	left := eventsOfType(drainEvents(t, observer), eventUserLeft)
	require.Len(t, left, 1)
	assert.Equal(t, "Orphan", left[0]["username"])
	assert.Equal(t, float64(1), left[0]["onlineCount"])
	assert.Equal(t, 1, h.reg.count())
}

func TestDispatchRecoversFromPanic(t *testing.T) {
	h := newTestHub()
	alice := addTestClient(h)
	bob := addTestClient(h)
	h.handleJoin(alice, "Alice")
	h.handleJoin(bob, "Bob")

	assert.NotPanics(t, func() {
		h.dispatch(inboundEvent{client: nil, data: []byte(`{"type":"message","text":"x"}`)})
	})

	// Both sessions are still intact.
	assert.Equal(t, 2, h.reg.count())
}

func TestDispatchMalformedFrame(t *testing.T) {
	h := newTestHub()
	c := addTestClient(h)

	h.dispatch(inboundEvent{client: c, data: []byte("not json")})
	require.Len(t, eventsOfType(drainEvents(t, c), eventError), 1)

	h.dispatch(inboundEvent{client: c, data: []byte(`{"type":"warp"}`)})
	require.Len(t, eventsOfType(drainEvents(t, c), eventError), 1)
}
