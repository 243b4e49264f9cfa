// Package relay implements the connection registry and the room-scoped publish/subscribe relay.
//
// A single actor goroutine owns the registry (connections and room memberships) and
// processes connect, join, disconnect and publish commands in order, so no locks are needed.
// Each connection gets its own writer goroutine with a bounded send buffer and a ping/pong
// heartbeat. A publish is fanned out to every other member of the room. Peers whose buffer
// is full are evicted rather than allowed to stall the loop. Payloads are opaque here.
package relay
