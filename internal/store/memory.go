package store

import "gocloud.dev/blob/memblob"

// NewMemory returns a Blob over a fresh in-memory bucket. Nothing survives
// Close.
func NewMemory() *Blob {
	return &Blob{bucket: memblob.OpenBucket(nil), owns: true}
}
