package artifact

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStoreRoundTrip(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "ext-1", []byte(`[{"a":1}]`)))

	data, err := s.Get(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, `[{"a":1}]`, string(data))

	ok, err := s.Exists(ctx, "ext-1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFileStorePutReplaces(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "ext-1", []byte("v1")))
	require.NoError(t, s.Put(ctx, "ext-1", []byte("v2")))

	data, err := s.Get(ctx, "ext-1")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
}

func TestFileStoreDelete(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "ext-1", []byte("v1")))
	require.NoError(t, s.Delete(ctx, "ext-1"))

	ok, err := s.Exists(ctx, "ext-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting an absent identifier is not an error.
	require.NoError(t, s.Delete(ctx, "ext-1"))

	_, err = s.Get(ctx, "ext-1")
	assert.ErrorContains(t, err, "not found")
}

func TestFileStoreEmptyIdentifierRejected(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, s.Put(context.Background(), "", []byte("x")))
}

func TestFileStoreEscapesIdentifiers(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)
	ctx := context.Background()

	// Identifiers with path separators must not escape the base dir.
	require.NoError(t, s.Put(ctx, "../outside", []byte("x")))
	_, err = os.Stat(filepath.Join(filepath.Dir(dir), "outside.blob"))
	assert.True(t, os.IsNotExist(err))

	data, err := s.Get(ctx, "../outside")
	require.NoError(t, err)
	assert.Equal(t, "x", string(data))
}

func TestFileStoreNoPartialReads(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	// Writers and readers race over one identifier; every read must see a
	// complete revision, never a torn one.
	revisions := map[string]bool{"aaaaaaaa": true, "bbbbbbbb": true}
	require.NoError(t, s.Put(ctx, "ext-1", []byte("aaaaaaaa")))

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			payload := "aaaaaaaa"
			if i%2 == 1 {
				payload = "bbbbbbbb"
			}
			_ = s.Put(ctx, "ext-1", []byte(payload))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			data, err := s.Get(ctx, "ext-1")
			if err == nil {
				assert.True(t, revisions[string(data)], "torn read: %q", data)
			}
		}
	}()
	wg.Wait()
}
