package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/dinomatic/media/internal/logging"
	"github.com/dinomatic/media/internal/metrics"
	"github.com/dinomatic/media/internal/namespace"
)

// MinioStorage implements Storage using a MinIO (or any S3-compatible) backend.
type MinioStorage struct {
	client     *minio.Client
	bucket     string
	publicBase string
}

// NewMinioStorage creates a MinIO client, ensures the bucket exists with a public-read
// policy, and returns a ready-to-use MinioStorage.
func NewMinioStorage(ctx context.Context, cfg Config) (*MinioStorage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket existence: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %q: %w", cfg.Bucket, err)
		}
		logging.Info("storage: created bucket", zap.String("bucket", cfg.Bucket))
	}

	if err := client.SetBucketPolicy(ctx, cfg.Bucket, publicReadPolicy(cfg.Bucket)); err != nil {
		return nil, fmt.Errorf("set bucket policy: %w", err)
	}

	return &MinioStorage{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBase, "/"),
	}, nil
}

// List walks the whole bucket recursively. Directory marker keys (ending in
// "/") carry no object and are left out.
func (s *MinioStorage) List(ctx context.Context) ([]namespace.LeafObject, error) {
	start := time.Now()
	var out []namespace.LeafObject

	for info := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if info.Err != nil {
			metrics.RecordStorageOperation("list", time.Since(start), false)
			return nil, minioError("list objects", "", info.Err)
		}
		if strings.HasSuffix(info.Key, "/") {
			continue
		}
		size := info.Size
		out = append(out, namespace.LeafObject{
			ID:         info.Key,
			UploadedAt: info.LastModified,
			SizeBytes:  &size,
		})
	}

	metrics.RecordStorageOperation("list", time.Since(start), true)
	logging.Debug("minio list", zap.Int("objects", len(out)), zap.Duration("took", time.Since(start)))
	return out, nil
}

// Upload streams reader to MinIO under key. size must be the exact byte count
// (pass -1 only if the size is genuinely unknown, MinIO will buffer it).
func (s *MinioStorage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	start := time.Now()
	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	metrics.RecordStorageOperation("put", time.Since(start), err == nil)
	if err != nil {
		return minioError("put object", key, err)
	}
	return nil
}

// Delete removes the object at key from the bucket.
func (s *MinioStorage) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	metrics.RecordStorageOperation("delete", time.Since(start), err == nil)
	if err != nil {
		return minioError("remove object", key, err)
	}
	return nil
}

// PublicURL returns the browser-accessible URL for the given key.
// For local MinIO: "http://localhost:9000/media/themes/akurai/logo.webp"
func (s *MinioStorage) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

func minioError(op, key string, err error) error {
	return &Error{
		Op:     op,
		Key:    key,
		Status: minio.ToErrorResponse(err).StatusCode,
		Err:    err,
	}
}

// publicReadPolicy returns an S3 bucket policy JSON that allows anonymous GET on all objects.
func publicReadPolicy(bucket string) string {
	policy := map[string]interface{}{
		"Version": "2012-10-17",
		"Statement": []map[string]interface{}{
			{
				"Effect":    "Allow",
				"Principal": "*",
				"Action":    "s3:GetObject",
				"Resource":  fmt.Sprintf("arn:aws:s3:::%s/*", bucket),
			},
		},
	}
	b, _ := json.Marshal(policy)
	return string(b)
}
