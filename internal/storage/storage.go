package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"marketplace/internal/config"
	"marketplace/pkg/log"
)

// Storage keeps product images and avatars in an S3-compatible object
// store. Buckets are created lazily with a public-read policy so image
// URLs can be served directly.
type Storage struct {
	client *minio.Client
	cfg    config.StorageConfig

	mu      sync.Mutex
	buckets map[string]bool
}

// publicReadPolicy grants anonymous GET on a bucket.
const publicReadPolicy = `{
	"Version": "2012-10-17",
	"Statement": [{
		"Effect": "Allow",
		"Principal": {"AWS": ["*"]},
		"Action": ["s3:GetObject"],
		"Resource": ["arn:aws:s3:::%s/*"]
	}]
}`

// New creates a storage client.
func New(cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	return &Storage{
		client:  client,
		cfg:     cfg,
		buckets: make(map[string]bool),
	}, nil
}

// ProductsBucket bucket for product images.
func (s *Storage) ProductsBucket() string { return s.cfg.ProductsBucket }

// AvatarsBucket bucket for user avatars.
func (s *Storage) AvatarsBucket() string { return s.cfg.AvatarsBucket }

func (s *Storage) ensureBucket(ctx context.Context, bucket string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.buckets[bucket] {
		return nil
	}

	exists, err := s.client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
		}
		policy := fmt.Sprintf(publicReadPolicy, bucket)
		if err := s.client.SetBucketPolicy(ctx, bucket, policy); err != nil {
			log.WithError(err).WithField("bucket", bucket).Warn("Failed to set bucket policy")
		}
		log.WithField("bucket", bucket).Info("Bucket created")
	}

	s.buckets[bucket] = true
	return nil
}

// Upload stores an object under a generated unique name and returns
// the object key.
func (s *Storage) Upload(ctx context.Context, bucket, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return "", err
	}

	ext := strings.ToLower(path.Ext(filename))
	key := fmt.Sprintf("%s/%s%s", time.Now().UTC().Format("2006/01"), uuid.NewString(), ext)

	_, err := s.client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filename, err)
	}
	return key, nil
}

// UploadBytes stores a byte slice.
func (s *Storage) UploadBytes(ctx context.Context, bucket, filename string, data []byte, contentType string) (string, error) {
	return s.Upload(ctx, bucket, filename, bytes.NewReader(data), int64(len(data)), contentType)
}

// Delete removes an object.
func (s *Storage) Delete(ctx context.Context, bucket, key string) error {
	return s.client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{})
}

// List returns object keys under a prefix.
func (s *Storage) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if err := s.ensureBucket(ctx, bucket); err != nil {
		return nil, err
	}

	var keys []string
	for obj := range s.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, obj.Err
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

// PresignedURL returns a temporary download URL for a private object.
func (s *Storage) PresignedURL(ctx context.Context, bucket, key string, expiry time.Duration) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, bucket, key, expiry, nil)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// PublicURL returns the permanent URL for a public object.
func (s *Storage) PublicURL(bucket, key string) string {
	base := s.cfg.PublicBaseURL
	if base == "" {
		scheme := "http"
		if s.cfg.UseSSL {
			scheme = "https"
		}
		base = fmt.Sprintf("%s://%s", scheme, s.cfg.Endpoint)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimRight(base, "/"), bucket, key)
}

// Health verifies the endpoint responds.
func (s *Storage) Health(ctx context.Context) error {
	_, err := s.client.BucketExists(ctx, s.cfg.ProductsBucket)
	return err
}
