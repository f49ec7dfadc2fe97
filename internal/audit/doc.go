// Package audit buffers account-security events and delivers them to a sink
// on a single background goroutine.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. The Engine decides which events
// to emit.
//
// # What this package must NOT do
//
//   - Filter events based on business logic.
//   - Import linkauth or any sibling internal package.
package audit
