package cloud

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobCache_PutThenGet(t *testing.T) {
	cache, err := NewBlobCache(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	path, err := cache.Put("key-1", []byte("hello"))
	require.NoError(t, err)

	got, ok := cache.Get("key-1")
	require.True(t, ok)
	assert.Equal(t, path, got)

	data, err := os.ReadFile(got)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestBlobCache_UnknownKeyMisses(t *testing.T) {
	cache, err := NewBlobCache(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	_, ok := cache.Get("never-stored")
	assert.False(t, ok)
}

func TestBlobCache_SurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")

	cache, err := NewBlobCache(dir)
	require.NoError(t, err)
	path, err := cache.Put("key-1", []byte("hello"))
	require.NoError(t, err)

	// A fresh cache over the same directory finds the content again; the
	// old handle is rederived, never persisted.
	reopened, err := NewBlobCache(dir)
	require.NoError(t, err)
	got, ok := reopened.Get("key-1")
	require.True(t, ok)
	assert.Equal(t, path, got)
}

func TestBlobCache_Remove(t *testing.T) {
	cache, err := NewBlobCache(filepath.Join(t.TempDir(), "cache"))
	require.NoError(t, err)

	path, err := cache.Put("key-1", []byte("hello"))
	require.NoError(t, err)

	cache.Remove("key-1")

	_, ok := cache.Get("key-1")
	assert.False(t, ok)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestBlob_FetchedOncePerContentKey(t *testing.T) {
	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		assert.Equal(t, "/blob/key-1", r.URL.Path)
		_, _ = w.Write([]byte("binary-content"))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.session.SetCredential(Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}))

	file := File{
		ID:           1,
		Name:         "photo.png",
		FileKey:      "key-1",
		PresignedURL: server.URL + "/blob/key-1",
	}

	path1, err := client.Blob(context.Background(), file)
	require.NoError(t, err)
	data, err := os.ReadFile(path1)
	require.NoError(t, err)
	assert.Equal(t, "binary-content", string(data))

	path2, err := client.Blob(context.Background(), file)
	require.NoError(t, err)
	assert.Equal(t, path1, path2)
	assert.Equal(t, int32(1), fetches.Load(), "unchanged content must not be refetched")
}

func TestBlob_NewContentKeyRefetches(t *testing.T) {
	var fetches atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_, _ = w.Write([]byte("content " + r.URL.Path))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL)
	require.NoError(t, client.session.SetCredential(Credential{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}))

	v1 := File{ID: 1, FileKey: "key-1", PresignedURL: server.URL + "/blob/key-1"}
	v2 := File{ID: 1, FileKey: "key-2", PresignedURL: server.URL + "/blob/key-2"}

	path1, err := client.Blob(context.Background(), v1)
	require.NoError(t, err)
	path2, err := client.Blob(context.Background(), v2)
	require.NoError(t, err)

	assert.NotEqual(t, path1, path2, "a rotated content key gets its own cache entry")
	assert.Equal(t, int32(2), fetches.Load())
}
