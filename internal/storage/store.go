// AngelaMos | 2026
// store.go

package storage

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/bpa-library/library/internal/config"
)

const bytesPerGB = 1 << 30

// ObjectStore is the audio file backend. Keys are bucket-relative.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	PresignGet(ctx context.Context, key string, expiry time.Duration) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	Usage(ctx context.Context) (*Usage, error)
	Ping(ctx context.Context) error
}

type Usage struct {
	Bucket     string  `json:"bucket"`
	Objects    int64   `json:"objects"`
	UsedBytes  int64   `json:"used_bytes"`
	UsedGB     float64 `json:"used_gb"`
	QuotaGB    float64 `json:"quota_gb"`
	UsageRatio float64 `json:"usage_ratio"`
}

// newUsage reports the ratio against quota, capped at 1. A zero quota
// reports 0.
func newUsage(bucket string, objects, used int64, quotaGB float64) *Usage {
	u := &Usage{
		Bucket:    bucket,
		Objects:   objects,
		UsedBytes: used,
		UsedGB:    math.Round(float64(used)/bytesPerGB*100) / 100,
		QuotaGB:   quotaGB,
	}
	if quotaGB > 0 {
		u.UsageRatio = math.Min(float64(used)/(quotaGB*bytesPerGB), 1)
	}
	return u
}

// MinioStore talks to any S3 compatible endpoint.
type MinioStore struct {
	client  *minio.Client
	bucket  string
	quotaGB float64
}

// NewMinioStore builds a client without touching the network. Call
// EnsureBucket at startup to verify connectivity.
func NewMinioStore(cfg config.StorageConfig) (*MinioStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio client: %w", err)
	}

	return &MinioStore{
		client:  client,
		bucket:  cfg.Bucket,
		quotaGB: cfg.QuotaGB,
	}, nil
}

func (m *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}

func (m *MinioStore) Put(
	ctx context.Context,
	key string,
	r io.Reader,
	size int64,
	contentType string,
) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, r, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	return nil
}

func (m *MinioStore) PresignGet(
	ctx context.Context,
	key string,
	expiry time.Duration,
) (string, error) {
	u, err := m.client.PresignedGetObject(ctx, m.bucket, key, expiry, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign get: %w", err)
	}
	return u.String(), nil
}

func (m *MinioStore) Exists(ctx context.Context, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, m.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return false, nil
	}
	return false, fmt.Errorf("stat object: %w", err)
}

// Usage walks the whole bucket. It is meant for the admin dashboard,
// not for request paths.
func (m *MinioStore) Usage(ctx context.Context) (*Usage, error) {
	var objects, used int64
	for obj := range m.client.ListObjects(ctx, m.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list objects: %w", obj.Err)
		}
		objects++
		used += obj.Size
	}
	return newUsage(m.bucket, objects, used, m.quotaGB), nil
}

func (m *MinioStore) Ping(ctx context.Context) error {
	if _, err := m.client.BucketExists(ctx, m.bucket); err != nil {
		return fmt.Errorf("ping object store: %w", err)
	}
	return nil
}

var _ ObjectStore = (*MinioStore)(nil)
