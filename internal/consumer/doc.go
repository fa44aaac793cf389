// Package consumer bridges the external message bus into the delivery hub.
// It reads serialized notification events from a Redis Streams consumer
// group, persists them, and hands durable records to the hub, isolating the
// hub from bus-specific ack and redelivery mechanics.
package consumer
