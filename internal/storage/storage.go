// Package storage defines the interface for object storage operations.
// Swap implementations by changing STORAGE_DRIVER: the MinIO implementation
// works with any S3-compatible provider, the S3 one uses the AWS SDK, and the
// memory one keeps everything in process for local runs and tests.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dinomatic/media/internal/namespace"
)

// Storage is the authoritative flat object store.
type Storage interface {
	// List returns every object in the bucket as a flat listing.
	List(ctx context.Context) ([]namespace.LeafObject, error)
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Delete removes an object identified by key.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}

// Config selects and configures a Storage implementation.
type Config struct {
	Driver     string // minio, s3, memory
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Bucket     string
	Region     string
	UseSSL     bool
	PublicBase string // browser-accessible base URL, e.g. "http://localhost:9000/media"
}

// Error is a failed store call. Status carries the store's HTTP status when
// it reported one.
type Error struct {
	Op     string
	Key    string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// AsError extracts a storage Error from err.
func AsError(err error) (*Error, bool) {
	var se *Error
	ok := errors.As(err, &se)
	return se, ok
}
