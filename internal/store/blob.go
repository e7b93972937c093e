package store

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// Blob stores one object per favorite in a gocloud.dev bucket. Object names
// are the hex of the key under an optional prefix; hex keeps key prefixes and
// byte order while staying safe for every bucket driver.
type Blob struct {
	bucket *blob.Bucket
	prefix string
	owns   bool
}

// OpenBlob opens bucketURL, for example "file:///var/lib/recipesync?create_dir=true"
// or "mem://". An empty URL opens a fresh in-memory bucket.
func OpenBlob(ctx context.Context, bucketURL, prefix string) (*Blob, error) {
	if bucketURL == "" {
		bucketURL = "mem://"
	}
	bkt, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, fmt.Errorf("open bucket %q: %w", bucketURL, err)
	}
	return &Blob{bucket: bkt, prefix: normalizePrefix(prefix), owns: true}, nil
}

// NewBlob wraps an existing bucket. Close leaves the bucket open.
func NewBlob(bkt *blob.Bucket, prefix string) *Blob {
	return &Blob{bucket: bkt, prefix: normalizePrefix(prefix)}
}

func normalizePrefix(prefix string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

func (b *Blob) object(key string) string {
	return b.prefix + hex.EncodeToString([]byte(key))
}

func (b *Blob) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := b.bucket.ReadAll(ctx, b.object(key))
	if gcerrors.Code(err) == gcerrors.NotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	return data, true, nil
}

func (b *Blob) Put(ctx context.Context, key string, value []byte) error {
	if err := b.bucket.WriteAll(ctx, b.object(key), value, nil); err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (b *Blob) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		err := b.bucket.Delete(ctx, b.object(key))
		if err != nil && gcerrors.Code(err) != gcerrors.NotFound {
			return fmt.Errorf("delete %q: %w", key, err)
		}
	}
	return nil
}

func (b *Blob) Scan(ctx context.Context, prefix string) ([]Entry, error) {
	iter := b.bucket.List(&blob.ListOptions{
		Prefix: b.prefix + hex.EncodeToString([]byte(prefix)),
	})

	var out []Entry
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		if obj.IsDir {
			continue
		}
		raw, err := hex.DecodeString(strings.TrimPrefix(obj.Key, b.prefix))
		if err != nil {
			// Not one of ours.
			continue
		}
		data, err := b.bucket.ReadAll(ctx, obj.Key)
		if gcerrors.Code(err) == gcerrors.NotFound {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("scan %q: %w", prefix, err)
		}
		out = append(out, Entry{Key: string(raw), Value: data})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (b *Blob) Close() error {
	if b.owns && b.bucket != nil {
		return b.bucket.Close()
	}
	return nil
}
