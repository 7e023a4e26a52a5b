// Package chat implements the presence and broadcast core of the chat relay
// along with its HTTP and WebSocket glue.
//
// The Hub owns all mutable state (connection registry, recent-message buffer,
// rate-limit bookkeeping, and ban list) and serializes every mutation through
// a single event loop. Clients, the idle reaper, and the administrative
// endpoints all reach that state through the hub's channels.
package chat
