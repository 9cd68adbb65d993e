package objectstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-process Store. It honours the same preconditions as the
// DynamoDB store.
type Memory struct {
	mu      sync.Mutex
	objects map[string]Object
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{objects: map[string]Object{}}
}

func (m *Memory) Get(ctx context.Context, key string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	obj, ok := m.objects[key]
	if !ok {
		return Object{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return Object{Body: append([]byte(nil), obj.Body...), ETag: obj.ETag}, nil
}

func (m *Memory) Put(ctx context.Context, key string, body []byte, opts PutOptions) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, exists := m.objects[key]
	if opts.IfNoneMatch && exists {
		return "", &ConflictError{Key: key}
	}
	if opts.IfMatch != "" && (!exists || existing.ETag != opts.IfMatch) {
		return "", &ConflictError{Key: key, ExpectedETag: opts.IfMatch}
	}
	etag := uuid.NewString()
	m.objects[key] = Object{Body: append([]byte(nil), body...), ETag: etag}
	return etag, nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}
