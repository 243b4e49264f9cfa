// Package domain defines the core domain types shared by the relay server and the client store.
//
// Concept-oriented files (place.go, voting.go, state.go, message.go, ...) hold plain types,
// the wire envelope and payload validation. No I/O lives here.
package domain
