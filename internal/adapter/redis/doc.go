// Package redis connects relay instances through Redis pub/sub.
//
// A Bridge forwards every locally published room message to a per-room channel
// and delivers messages published by other instances to the local hub. All
// commands go through a circuit breaker so an unavailable Redis fails fast
// instead of stalling the relay.
package redis
