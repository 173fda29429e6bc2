// Package audit implements async delivery of security notifications.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, logger, no-op).
//   - [Dispatcher]: buffered async relay with drop-if-full / block-if-full semantics.
//   - [Event]: structured notification record with id, timestamp, type, user, IP, metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which events
// to emit; that responsibility belongs to the Engine.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import dualAuth or any sibling internal package.
//   - Let a slow or failing sink block or fail the operation that emitted the event.
package audit
