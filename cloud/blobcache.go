package cloud

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// BlobCache maps an immutable content key to a file under dir holding the
// fetched bytes, so unchanged content is downloaded at most once. The handle
// (the local path) is derived from the key on every lookup and never
// persisted: after a restart Get simply probes the cache directory again, so
// no handle from a dead process can leak into a new one.
//
// There is no automatic eviction. Remove drops a single key; wiping the
// directory resets the cache entirely.
type BlobCache struct {
	dir string

	mu    sync.Mutex
	index map[string]string
}

// NewBlobCache opens (creating if needed) the cache directory at dir.
func NewBlobCache(dir string) (*BlobCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &BlobCache{dir: dir, index: make(map[string]string)}, nil
}

// keyPath maps a content key to its on-disk location. Keys are hashed so
// arbitrary server-supplied strings can't escape the cache directory.
func (b *BlobCache) keyPath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(b.dir, hex.EncodeToString(sum[:]))
}

// Get returns the local path for key if its content is present, checking
// the in-memory index first and the directory second.
func (b *BlobCache) Get(key string) (string, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if path, ok := b.index[key]; ok {
		return path, true
	}

	path := b.keyPath(key)
	if _, err := os.Stat(path); err != nil {
		return "", false
	}
	b.index[key] = path
	return path, true
}

// Put stores data under key and returns the resulting path. The write goes
// through a temp file and atomic rename, same as the session file.
func (b *BlobCache) Put(key string, data []byte) (string, error) {
	path := b.keyPath(key)

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename blob: %w", err)
	}

	b.mu.Lock()
	b.index[key] = path
	b.mu.Unlock()
	return path, nil
}

// Remove drops the cached content for key, if present.
func (b *BlobCache) Remove(key string) {
	b.mu.Lock()
	delete(b.index, key)
	b.mu.Unlock()
	_ = os.Remove(b.keyPath(key))
}
