// Package notification defines the notification record, audience roles, and
// the deliverable event variant shared by the consumer, hub, and store.
package notification
