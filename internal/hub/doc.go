// Package hub implements the in-memory notification delivery engine.
//
// # Overview
//
// The hub fans persisted notifications out to live subscribers keyed by
// (user ID, audience role). Each key owns a Holder with per-subscriber
// bounded buffers and a small FIFO replay history, so a client that
// reconnects with the last event ID it saw receives the events it missed
// before attaching to the live stream.
//
// # Delivery semantics
//
// Delivery is at-least-once and best-effort:
//
//   - Publish never blocks on slow consumers; a full subscriber buffer
//     drops the newest event for that subscriber.
//   - Replay is bounded by the per-channel history size, not by time.
//   - A fast reconnect may see an event both at the end of replay and on
//     the live stream; consumers must tolerate duplicates.
//
// # Background tasks
//
// Start launches two periodic tasks owned by the hub's lifecycle:
//
//   - Heartbeat: pushes a best-effort liveness event to every channel with
//     at least one subscriber, so clients and proxies detect dead TCP
//     connections.
//   - Idle reaper: removes channels with zero subscribers that have been
//     inactive longer than the idle TTL, closing their streams cleanly.
//
// Stop terminates both tasks and ends every live stream.
package hub
