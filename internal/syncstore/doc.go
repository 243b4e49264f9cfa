// Package syncstore holds a client's view of the synchronized voting state.
//
// A Store applies local mutations optimistically, persists every committed
// state, and publishes the whole state to the relay. A state received from
// the relay replaces the local one wholesale; there is no merging, so the
// last delivered snapshot wins.
//
// All reads and writes run on one goroutine, so local mutations and inbound
// deliveries never interleave.
package syncstore
