package memory

import (
	"context"
	"sync"

	"github.com/tendant/stash/pkg/stash/blob"
)

type object struct {
	data        []byte
	contentType string
}

// Backend is an in-memory implementation of the blob.Backend interface
type Backend struct {
	mu      sync.RWMutex
	objects map[string]object
}

// New creates a new in-memory storage backend
func New() *Backend {
	return &Backend{
		objects: make(map[string]object),
	}
}

// Name implements blob.Backend
func (b *Backend) Name() string {
	return "memory"
}

// Put stores a copy of data
func (b *Backend) Put(ctx context.Context, key string, data []byte, contentType string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.objects[key] = object{
		data:        append([]byte(nil), data...),
		contentType: contentType,
	}
	return nil
}

// Get returns a copy of the stored bytes
func (b *Backend) Get(ctx context.Context, key string) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	if !exists {
		return nil, blob.ErrObjectNotFound
	}
	return append([]byte(nil), obj.data...), nil
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[key]; !exists {
		return blob.ErrObjectNotFound
	}

	delete(b.objects, key)
	return nil
}

// ContentType returns the content type recorded at upload
func (b *Backend) ContentType(key string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[key]
	return obj.contentType, exists
}

// Len reports the number of stored objects
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
