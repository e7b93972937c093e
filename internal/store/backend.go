package store

import (
	"context"
	"fmt"
)

// Entry is one key-value pair returned by Scan.
type Entry struct {
	Key   string
	Value []byte
}

// Backend is a persisted, ordered key-value map.
//
// Implementations must be safe for concurrent use. Scan returns entries in
// ascending byte order of key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, prefix string) ([]Entry, error)
	Close() error
}

// Driver names a Backend implementation.
type Driver string

const (
	DriverSQLite Driver = "sqlite"
	DriverBadger Driver = "badger"
	DriverPebble Driver = "pebble"
	DriverBlob   Driver = "blob"
	DriverMemory Driver = "memory"
)

// ValidDrivers lists the accepted driver names.
var ValidDrivers = []Driver{DriverSQLite, DriverBadger, DriverPebble, DriverBlob, DriverMemory}

// OpenBackend opens the backend for driver. The meaning of dsn depends on
// the driver:
//   - sqlite: database path, or ":memory:"
//   - badger, pebble: data directory; empty means in-memory
//   - blob: bucket URL such as "file:///var/lib/recipesync" or "mem://"
//   - memory: ignored; a fresh in-memory bucket, same as blob "mem://"
func OpenBackend(ctx context.Context, driver Driver, dsn string) (Backend, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(dsn)
	case DriverBadger:
		return OpenBadger(dsn)
	case DriverPebble:
		return OpenPebble(dsn)
	case DriverBlob:
		return OpenBlob(ctx, dsn, "")
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q: must be one of %v", driver, ValidDrivers)
	}
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix, or nil when no such bound exists.
func prefixEnd(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
