package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backendCases opens a fresh instance of every backend.
func backendCases(t *testing.T) map[string]Backend {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	open := func(driver Driver, dsn string) Backend {
		b, err := OpenBackend(ctx, driver, dsn)
		require.NoError(t, err, "open %s", driver)
		t.Cleanup(func() { b.Close() })
		return b
	}

	return map[string]Backend{
		"sqlite":     open(DriverSQLite, filepath.Join(dir, "favorites.db")),
		"badger":     open(DriverBadger, filepath.Join(dir, "badger")),
		"badger-mem": open(DriverBadger, ""),
		"pebble":     open(DriverPebble, filepath.Join(dir, "pebble")),
		"pebble-mem": open(DriverPebble, ""),
		"blob-file":  open(DriverBlob, "file://"+filepath.ToSlash(filepath.Join(dir, "blob"))+"?create_dir=true"),
		"blob-mem":   open(DriverBlob, "mem://"),
		"memory":     open(DriverMemory, ""),
	}
}

func TestBackends_GetPutDelete(t *testing.T) {
	ctx := context.Background()
	for name, b := range backendCases(t) {
		t.Run(name, func(t *testing.T) {
			_, ok, err := b.Get(ctx, "liked:u1:0:김치볶음밥:30분")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Put(ctx, "liked:u1:0:김치볶음밥:30분", []byte(`{"state":"liked"}`)))
			require.NoError(t, b.Put(ctx, "liked:u1:0:김치볶음밥:30분", []byte(`{"state":"liked","server_code":7}`)))

			v, ok, err := b.Get(ctx, "liked:u1:0:김치볶음밥:30분")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.JSONEq(t, `{"state":"liked","server_code":7}`, string(v))

			require.NoError(t, b.Delete(ctx, "liked:u1:0:김치볶음밥:30분", "liked:absent:0:x:y"))
			_, ok, err = b.Get(ctx, "liked:u1:0:김치볶음밥:30분")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, b.Delete(ctx))
		})
	}
}

func TestBackends_ScanPrefix(t *testing.T) {
	ctx := context.Background()
	keys := []string{
		"liked:u2:0:b:",
		"liked:u1:9:잡채:40분",
		"liked:u1:0:a:",
		"liked:u10:0:a:",
		"other",
	}
	for name, b := range backendCases(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range keys {
				require.NoError(t, b.Put(ctx, k, []byte(k)))
			}

			entries, err := b.Scan(ctx, "liked:u1:")
			require.NoError(t, err)

			var got []string
			for _, e := range entries {
				got = append(got, e.Key)
				assert.Equal(t, e.Key, string(e.Value))
			}
			assert.Equal(t, []string{"liked:u1:0:a:", "liked:u1:9:잡채:40분"}, got)

			all, err := b.Scan(ctx, "")
			require.NoError(t, err)
			assert.Len(t, all, len(keys))
		})
	}
}

func TestOpenBackend_UnknownDriver(t *testing.T) {
	_, err := OpenBackend(context.Background(), "leveldb", "")
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestMemory_Isolated(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemory(), NewMemory()
	t.Cleanup(func() { a.Close(); b.Close() })

	require.NoError(t, a.Put(ctx, "liked:u1:0:잡채:", []byte("1")))
	_, ok, err := b.Get(ctx, "liked:u1:0:잡채:")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, a.Close())
	_, _, err = a.Get(ctx, "liked:u1:0:잡채:")
	assert.Error(t, err, "closed bucket")
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("liked;"), prefixEnd("liked:"))
	assert.Equal(t, []byte("b"), prefixEnd("a\xff"))
	assert.Nil(t, prefixEnd("\xff\xff"))
	assert.Nil(t, prefixEnd(""))
}
