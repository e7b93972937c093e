package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble/v2"
	"github.com/cockroachdb/pebble/v2/vfs"
)

// Pebble stores favorites in a Pebble LSM directory.
type Pebble struct {
	db *pebble.DB
}

// OpenPebble opens dir as a Pebble database. An empty dir uses an in-memory
// filesystem.
func OpenPebble(dir string) (*Pebble, error) {
	opts := &pebble.Options{}
	if dir == "" {
		opts.FS = vfs.NewMem()
	}
	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, fmt.Errorf("open pebble %q: %w", dir, err)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Get(_ context.Context, key string) ([]byte, bool, error) {
	value, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	defer closer.Close()
	return append([]byte(nil), value...), true, nil
}

func (p *Pebble) Put(_ context.Context, key string, value []byte) error {
	if err := p.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (p *Pebble) Delete(_ context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	batch := p.db.NewBatch()
	defer batch.Close()
	for _, key := range keys {
		if err := batch.Delete([]byte(key), nil); err != nil {
			return fmt.Errorf("delete %q: %w", key, err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

func (p *Pebble) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	iter, err := p.db.NewIterWithContext(ctx, &pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixEnd(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("scan %q: %w", prefix, err)
	}

	var out []Entry
	for iter.First(); iter.Valid(); iter.Next() {
		out = append(out, Entry{
			Key:   string(iter.Key()),
			Value: append([]byte(nil), iter.Value()...),
		})
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("scan %q: %w", prefix, err)
	}
	return out, nil
}

func (p *Pebble) Close() error {
	return p.db.Close()
}
