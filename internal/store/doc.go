// Package store provides notification persistence backed by SQLite.
// The row ID assigned at insert time doubles as the replay cursor exposed
// to streaming clients.
package store
