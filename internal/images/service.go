// Package images serves the directory view of the flat object store and the
// upload and delete operations that change it.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dinomatic/media/internal/logging"
	"github.com/dinomatic/media/internal/metrics"
	"github.com/dinomatic/media/internal/namespace"
	"github.com/dinomatic/media/internal/storage"
)

// ErrInvalidID is returned when an upload names an id that cannot live in the tree.
var ErrInvalidID = errors.New("invalid object id")

// UploadInput describes one object to store.
type UploadInput struct {
	// ID is used as-is when set. Otherwise the id is Path joined with Filename.
	ID          string
	Path        string
	Filename    string
	Body        io.Reader
	Size        int64
	ContentType string
}

// Service contains the business logic behind the images endpoints.
type Service struct {
	store storage.Storage
	cache *namespace.Cache
	now   func() time.Time
}

// NewService creates a new images Service.
func NewService(store storage.Storage, cache *namespace.Cache) *Service {
	return &Service{store: store, cache: cache, now: time.Now}
}

// Browse returns the contents of the directory at path.
func (s *Service) Browse(ctx context.Context, path string) (namespace.Listing, error) {
	tree, err := s.cache.Tree(ctx)
	if err != nil {
		return namespace.Listing{}, err
	}
	return namespace.Resolve(tree, path)
}

// Tree returns the whole directory tree.
func (s *Service) Tree(ctx context.Context) (*namespace.DirectoryNode, error) {
	return s.cache.Tree(ctx)
}

// Upload stores one object and invalidates the cached tree.
func (s *Service) Upload(ctx context.Context, in UploadInput) (namespace.LeafObject, error) {
	id := in.ID
	if id == "" {
		var err error
		if id, err = namespace.ObjectID(in.Path, in.Filename); err != nil {
			return namespace.LeafObject{}, fmt.Errorf("%w: %v", ErrInvalidID, err)
		}
	}
	if !namespace.ValidID(id) {
		return namespace.LeafObject{}, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}

	if err := s.store.Upload(ctx, id, in.Body, in.Size, in.ContentType); err != nil {
		return namespace.LeafObject{}, fmt.Errorf("upload: %w", err)
	}
	s.cache.Invalidate()
	if in.Size > 0 {
		metrics.RecordUpload(in.Size)
	}
	logging.WithContext(ctx).Info("object uploaded",
		logging.String("id", id),
		logging.Int64("size", in.Size),
		logging.String("content_type", in.ContentType),
	)

	size := in.Size
	obj := namespace.LeafObject{ID: id, Filename: filename(id), UploadedAt: s.now().UTC()}
	if size >= 0 {
		obj.SizeBytes = &size
	}
	return obj, nil
}

// Delete removes one object and invalidates the cached tree.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidID)
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	s.cache.Invalidate()
	logging.WithContext(ctx).Info("object deleted", logging.String("id", id))
	return nil
}

// PublicURL returns where browsers fetch the object with the given id.
func (s *Service) PublicURL(id string) string {
	return s.store.PublicURL(id)
}

// IsNotFound returns true when the error indicates the directory does not exist.
func (s *Service) IsNotFound(err error) bool {
	return errors.Is(err, namespace.ErrNotFound)
}

func filename(id string) string {
	segs := namespace.Segments(id)
	if len(segs) == 0 {
		return id
	}
	return segs[len(segs)-1]
}
