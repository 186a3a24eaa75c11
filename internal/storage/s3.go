package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/dinomatic/media/internal/logging"
	"github.com/dinomatic/media/internal/metrics"
	"github.com/dinomatic/media/internal/namespace"
)

// S3Storage implements Storage with the AWS SDK. It talks to AWS itself or,
// with an endpoint set, to any S3-compatible service in path-style mode.
type S3Storage struct {
	client     *s3.Client
	bucket     string
	publicBase string
}

// NewS3Storage creates an S3 client and checks that the bucket is reachable.
func NewS3Storage(ctx context.Context, cfg Config) (*S3Storage, error) {
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
			o.UsePathStyle = true
		}
	})

	s := &S3Storage{
		client:     client,
		bucket:     cfg.Bucket,
		publicBase: strings.TrimRight(cfg.PublicBase, "/"),
	}

	start := time.Now()
	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(cfg.Bucket)})
	metrics.RecordStorageOperation("head_bucket", time.Since(start), err == nil)
	if err != nil {
		return nil, s3Error("head bucket", cfg.Bucket, err)
	}
	return s, nil
}

// List pages through ListObjectsV2 for the whole bucket.
func (s *S3Storage) List(ctx context.Context) ([]namespace.LeafObject, error) {
	start := time.Now()
	var out []namespace.LeafObject

	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
	})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			metrics.RecordStorageOperation("list", time.Since(start), false)
			return nil, s3Error("list objects", "", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") { // directory marker
				continue
			}
			leaf := namespace.LeafObject{
				ID:         key,
				UploadedAt: aws.ToTime(obj.LastModified),
			}
			if obj.Size != nil {
				size := *obj.Size
				leaf.SizeBytes = &size
			}
			out = append(out, leaf)
		}
	}

	metrics.RecordStorageOperation("list", time.Since(start), true)
	logging.Debug("s3 list", zap.Int("objects", len(out)), zap.Duration("took", time.Since(start)))
	return out, nil
}

// Upload puts reader under key.
func (s *S3Storage) Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	start := time.Now()
	input := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        reader,
		ContentType: aws.String(contentType),
	}
	if size >= 0 {
		input.ContentLength = aws.Int64(size)
	}

	_, err := s.client.PutObject(ctx, input)
	metrics.RecordStorageOperation("put", time.Since(start), err == nil)
	if err != nil {
		return s3Error("put object", key, err)
	}
	logging.Debug("s3 put object", zap.String("key", key), zap.Int64("size", size))
	return nil
}

// Delete removes the object at key.
func (s *S3Storage) Delete(ctx context.Context, key string) error {
	start := time.Now()
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	metrics.RecordStorageOperation("delete", time.Since(start), err == nil)
	if err != nil {
		return s3Error("delete object", key, err)
	}
	logging.Debug("s3 delete object", zap.String("key", key))
	return nil
}

// PublicURL returns the browser-accessible URL for the given key.
func (s *S3Storage) PublicURL(key string) string {
	return s.publicBase + "/" + key
}

func s3Error(op, key string, err error) error {
	e := &Error{Op: op, Key: key, Err: err}
	var re *awshttp.ResponseError
	if errors.As(err, &re) {
		e.Status = re.HTTPStatusCode()
	}
	return e
}

func endpointURL(endpoint string, useSSL bool) string {
	if strings.Contains(endpoint, "://") {
		return endpoint
	}
	protocol := "https"
	if !useSSL {
		protocol = "http"
	}
	return fmt.Sprintf("%s://%s", protocol, endpoint)
}
