package chat

import "time"

// reap runs one idle-reaper sweep. It executes on the hub loop, so it shares
// the same serialization as every other mutation: connections whose LastSeen
// exceeds the idle timeout are evicted with a regular userLeft broadcast, and
// rate windows older than the TTL are dropped.
func (h *Hub) reap(now time.Time) {
	cutoff := now.Add(-h.cfg.IdleTimeout)
	for _, connID := range h.reg.stale(cutoff) {
		c, live := h.clients[connID]
		if !live {
			// Registry entry without a transport still gets the same
			// userLeft broadcast as an explicit leave.
			if p, removed := h.reg.remove(connID); removed {
				h.log.Info().Str("conn", connID).Str("user", p.Username).
					Msg("reaping orphaned presence entry")
				h.broadcast(h.encode(newPresenceEvent(eventUserLeft, p.Username, h.reg.count(), now)), nil)
			}
			continue
		}
		h.log.Info().Str("conn", connID).Str("remote", c.addr).
			Msg("reaping idle connection")
		h.disconnect(c)
	}

	if pruned := h.limiter.prune(now.Add(-h.cfg.RateStateTTL)); pruned > 0 {
		h.log.Debug().Int("pruned", pruned).Msg("dropped stale rate-limit windows")
	}
}
