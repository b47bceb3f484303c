// Package audit dispatches token lifecycle events (sessions established,
// refreshes, verification failures, revocations, minted tokens) to a sink.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, zap, no-op).
//   - [Dispatcher]: buffered async relay that either drops or blocks when full.
//   - [Event]: one record with an ID, type, user, tenant, provider and IP.
//
// # Architecture boundaries
//
// This package owns buffering and delivery. The Engine decides which events
// to emit.
//
// # What this package must NOT do
//
//   - Record token values.
//   - Import goIdentity or any sibling internal package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
