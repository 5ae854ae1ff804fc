// Package blob provides the blob store backends that hold caption, video and
// thumbnail payloads behind opaque refs.
package blob

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"caprev/internal/review"
)

// MemoryStore is an in-memory implementation of review.BlobStore.
// It is useful for testing and safe for concurrent use.
type MemoryStore struct {
	blobs map[string][]byte
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores the payload under name. Storing the same name twice replaces it.
func (m *MemoryStore) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	ref, err := refFromName(name)
	if err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read blob: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[ref] = data
	return ref, nil
}

// Open returns a reader over the stored payload.
func (m *MemoryStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.blobs[ref]
	if !ok {
		return nil, &review.NotFoundError{Kind: "blob", ID: ref}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes ref.
func (m *MemoryStore) Delete(ctx context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, ref)
	return nil
}

// Has reports whether ref is stored.
func (m *MemoryStore) Has(ref string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.blobs[ref]
	return ok
}

// Len returns the number of stored blobs.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blobs)
}

// Compile-time check that MemoryStore implements review.BlobStore.
var _ review.BlobStore = (*MemoryStore)(nil)
