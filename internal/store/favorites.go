package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// FavoriteStore persists favorite records on top of a Backend.
//
// Operations on one key are serialized; operations on different keys run
// concurrently. Multi-key operations lock their keys in sorted order.
type FavoriteStore struct {
	backend Backend
	locks   *keyLocks
	now     func() time.Time
}

// Option configures a FavoriteStore.
type Option func(*FavoriteStore)

// WithClock sets the time source used to stamp UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *FavoriteStore) { s.now = now }
}

// New wraps backend. The FavoriteStore takes ownership and closes it.
func New(backend Backend, opts ...Option) *FavoriteStore {
	s := &FavoriteStore{
		backend: backend,
		locks:   newKeyLocks(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open opens a backend by driver name and wraps it.
func Open(ctx context.Context, driver Driver, dsn string, opts ...Option) (*FavoriteStore, error) {
	backend, err := OpenBackend(ctx, driver, dsn)
	if err != nil {
		return nil, err
	}
	return New(backend, opts...), nil
}

// Get returns the record under key.
func (s *FavoriteStore) Get(ctx context.Context, key string) (Record, bool, error) {
	unlock := s.locks.lock(key)
	defer unlock()
	return s.get(ctx, key)
}

func (s *FavoriteStore) get(ctx context.Context, key string) (Record, bool, error) {
	value, ok, err := s.backend.Get(ctx, key)
	if err != nil || !ok {
		return Record{}, false, err
	}
	rec, err := unmarshalRecord(key, value)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// Put stores rec, replacing any record under the same key. A zero UpdatedAt
// is stamped with the store clock.
func (s *FavoriteStore) Put(ctx context.Context, rec Record) error {
	if rec.Key == "" {
		return fmt.Errorf("put record: empty key")
	}
	if !rec.State.Valid() {
		return fmt.Errorf("put record %q: unknown state %q", rec.Key, rec.State)
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}
	value, err := marshalRecord(rec)
	if err != nil {
		return err
	}

	unlock := s.locks.lock(rec.Key)
	defer unlock()
	return s.backend.Put(ctx, rec.Key, value)
}

// Remove deletes the record under key. Removing an absent key is not an error.
func (s *FavoriteStore) Remove(ctx context.Context, key string) error {
	return s.RemoveAll(ctx, []string{key})
}

// RemoveAll deletes the records under every key.
func (s *FavoriteStore) RemoveAll(ctx context.Context, keys []string) error {
	keys = dedupe(keys)
	if len(keys) == 0 {
		return nil
	}
	unlock := s.locks.lock(keys...)
	defer unlock()
	return s.backend.Delete(ctx, keys...)
}

// Lookup returns the records found under keys, in the order of keys.
// Absent keys are skipped.
func (s *FavoriteStore) Lookup(ctx context.Context, keys []string) ([]Record, error) {
	keys = dedupe(keys)
	unlock := s.locks.lock(keys...)
	defer unlock()

	var out []Record
	for _, key := range keys {
		rec, ok, err := s.get(ctx, key)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// List returns every record whose key starts with prefix, ordered by key.
// Values that no longer decode are skipped and counted.
func (s *FavoriteStore) List(ctx context.Context, prefix string) ([]Record, int, error) {
	entries, err := s.backend.Scan(ctx, prefix)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Record, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		rec, err := unmarshalRecord(e.Key, e.Value)
		if err != nil {
			skipped++
			continue
		}
		out = append(out, rec)
	}
	return out, skipped, nil
}

// Close closes the backend.
func (s *FavoriteStore) Close() error {
	return s.backend.Close()
}

// dedupe returns keys without empty or repeated entries, keeping order.
func dedupe(keys []string) []string {
	seen := make(map[string]bool, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out
}

// keyLocks hands out one mutex per key and drops it when the last holder
// releases.
type keyLocks struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[string]*keyLock)}
}

// lock acquires every key in sorted order and returns the release func.
func (l *keyLocks) lock(keys ...string) func() {
	sorted := append([]string(nil), keys...)
	sort.Strings(sorted)

	held := make([]*keyLock, 0, len(sorted))
	for _, k := range sorted {
		l.mu.Lock()
		kl, ok := l.locks[k]
		if !ok {
			kl = &keyLock{}
			l.locks[k] = kl
		}
		kl.refs++
		l.mu.Unlock()

		kl.mu.Lock()
		held = append(held, kl)
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			kl := held[i]
			kl.mu.Unlock()

			l.mu.Lock()
			kl.refs--
			if kl.refs == 0 {
				delete(l.locks, sorted[i])
			}
			l.mu.Unlock()
		}
	}
}

// size reports how many keys currently have a lock allocated.
func (l *keyLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
