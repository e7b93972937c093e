// Package store provides durable storage for local favorite records.
//
// FavoriteStore is the only owner of persisted FavoriteRecords. It sits on
// top of a Backend, a minimal ordered key-value interface with several
// implementations:
//   - SQLite (default): WAL mode, embedded schema, user_version migrations
//   - Badger and Pebble: embedded LSM stores for larger local caches
//   - Blob: any gocloud.dev bucket URL (file://, mem://)
//   - Memory: tests and throwaway sessions
//
// # Invariants
//
// At most one record exists per key; Put overwrites. Access to a single key
// is serialized, different keys proceed independently.
//
// Values are JSON. The older presence marker "1" still decodes, as a Liked
// record whose server code is read back from the key.
//
// All listings are ordered by key (byte order) so output is deterministic.
package store
