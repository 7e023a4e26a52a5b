// Package chat implements a fixed-window message rate limiter keyed by
// username that protects the hub from abuse.
package chat

import "time"

// rateWindow tracks one username's activity in the current window. last
// records the most recent message attempt so quiet state can be pruned
// independently of the window itself.
type rateWindow struct {
	count int
	start time.Time
	last  time.Time
}

// rateLimiter admits at most max messages per username within each fixed
// window. Windows reset on expiry rather than sliding; bursts at window
// boundaries are accepted imprecision. Access is serialized by the owning
// hub.
type rateLimiter struct {
	max    int
	window time.Duration
	users  map[string]*rateWindow
}

func newRateLimiter(max int, window time.Duration) *rateLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &rateLimiter{
		max:    max,
		window: window,
		users:  make(map[string]*rateWindow),
	}
}

// allow reports whether username may send another message at now. A rejected
// message does not consume window capacity.
func (l *rateLimiter) allow(username string, now time.Time) bool {
	w, ok := l.users[username]
	if !ok {
		l.users[username] = &rateWindow{count: 1, start: now, last: now}
		return true
	}

	w.last = now

	if now.Sub(w.start) >= l.window {
		w.count = 1
		w.start = now
		return true
	}
	if w.count < l.max {
		w.count++
		return true
	}
	return false
}

// forgetIfQuiet drops username's window when it has seen no activity for at
// least grace. Used on disconnect so a quiet user's state does not linger,
// while a recently active user keeps its window across a quick rejoin.
func (l *rateLimiter) forgetIfQuiet(username string, now time.Time, grace time.Duration) {
	w, ok := l.users[username]
	if !ok {
		return
	}
	if now.Sub(w.last) >= grace {
		delete(l.users, username)
	}
}

// prune removes every window whose start is at or before cutoff.
func (l *rateLimiter) prune(cutoff time.Time) int {
	removed := 0
	for username, w := range l.users {
		if !w.start.After(cutoff) {
			delete(l.users, username)
			removed++
		}
	}
	return removed
}

func (l *rateLimiter) size() int {
	return len(l.users)
}
