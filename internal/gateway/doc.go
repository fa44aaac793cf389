// Package gateway wires the notify-gateway components together and exposes
// the transport surface.
//
// # Overview
//
// The Gateway owns startup and shutdown of the store, the delivery hub, the
// Redis Streams consumer, and the HTTP server. Notification flow:
//
//	bus entry -> consumer -> store.Save -> hub.Publish -> SSE subscribers
//
// # Endpoints
//
//   - GET /api/notifications/stream?user_id=U&role=R&last_seen_id=C
//     SSE stream of notification and heartbeat events for the (user, role)
//     channel. Each frame carries an id usable as last_seen_id on reconnect.
//   - GET /healthz
//     Engine status with active channel and subscriber counters.
package gateway
