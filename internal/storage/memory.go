package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/dinomatic/media/internal/namespace"
)

type memoryObject struct {
	data        []byte
	contentType string
	uploadedAt  time.Time
}

// MemoryStorage keeps objects in process. It backs local development and the
// handler tests.
type MemoryStorage struct {
	mu         sync.RWMutex
	objects    map[string]memoryObject
	publicBase string
	now        func() time.Time
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage(publicBase string) *MemoryStorage {
	return &MemoryStorage{
		objects:    make(map[string]memoryObject),
		publicBase: strings.TrimRight(publicBase, "/"),
		now:        time.Now,
	}
}

// List returns every stored object.
func (s *MemoryStorage) List(ctx context.Context) ([]namespace.LeafObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, &Error{Op: "list objects", Err: err}
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]namespace.LeafObject, 0, len(s.objects))
	for key, obj := range s.objects {
		size := int64(len(obj.data))
		out = append(out, namespace.LeafObject{
			ID:         key,
			UploadedAt: obj.uploadedAt,
			SizeBytes:  &size,
		})
	}
	return out, nil
}

// Upload reads reader fully and stores it under key.
func (s *MemoryStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return &Error{Op: "put object", Key: key, Err: err}
	}
	if size >= 0 && int64(len(data)) != size {
		return &Error{Op: "put object", Key: key, Status: 400,
			Err: fmt.Errorf("size mismatch: got %d bytes, want %d", len(data), size)}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = memoryObject{data: data, contentType: contentType, uploadedAt: s.now()}
	return nil
}

// Delete removes key. Deleting a missing key succeeds, as on S3.
func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

// PublicURL returns the configured base joined with key.
func (s *MemoryStorage) PublicURL(key string) string {
	return s.publicBase + "/" + key
}
