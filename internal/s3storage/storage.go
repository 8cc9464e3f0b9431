package s3storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/dharsanguruparan/rolltrack/internal/config"
)

// ErrObjectMissing is returned when a key does not exist in its bucket.
var ErrObjectMissing = errors.New("object not found")

// objects is the slice of S3 the package relies on.
type objects interface {
	put(ctx context.Context, bucket, key string, data []byte, contentType string) error
	get(ctx context.Context, bucket, key string) ([]byte, error)
	exists(ctx context.Context, bucket, key string) (bool, error)
	list(ctx context.Context, bucket, prefix string) ([]string, error)
}

// Storage wraps MinIO/S3 interactions for ledger snapshots and lab manifests.
type Storage struct {
	client         *minio.Client
	objects        objects
	snapshotBucket string
	manifestBucket string
	region         string
	now            func() time.Time
}

// New creates a MinIO client from the S3 config section.
func New(cfg config.S3Config) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &Storage{
		client:         client,
		objects:        minioObjects{client: client},
		snapshotBucket: cfg.SnapshotBucket,
		manifestBucket: cfg.ManifestBucket,
		region:         cfg.Region,
		now:            time.Now,
	}, nil
}

// EnsureBuckets makes sure the snapshot and manifest buckets exist before use.
func (s *Storage) EnsureBuckets(ctx context.Context) error {
	for _, bucket := range []string{s.snapshotBucket, s.manifestBucket} {
		exists, err := s.client.BucketExists(ctx, bucket)
		if err != nil {
			return fmt.Errorf("check bucket %s: %w", bucket, err)
		}
		if !exists {
			if err := s.client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
				return fmt.Errorf("make bucket %s: %w", bucket, err)
			}
		}
	}
	return nil
}

// ManifestKey is the object key of a shipment's lab manifest.
func ManifestKey(project, shipmentID string) string {
	return fmt.Sprintf("manifests/%s/%s.xlsx", project, shipmentID)
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// UploadManifest stores a rendered manifest workbook.
func (s *Storage) UploadManifest(ctx context.Context, project, shipmentID string, data []byte) error {
	if err := s.objects.put(ctx, s.manifestBucket, ManifestKey(project, shipmentID), data, xlsxContentType); err != nil {
		return fmt.Errorf("upload manifest: %w", err)
	}
	return nil
}

// PresignManifestURL returns a signed GET URL for a manifest that has been
// uploaded. It returns ErrObjectMissing while the worker has not finished.
func (s *Storage) PresignManifestURL(ctx context.Context, project, shipmentID string, ttl time.Duration) (string, error) {
	key := ManifestKey(project, shipmentID)
	ok, err := s.objects.exists(ctx, s.manifestBucket, key)
	if err != nil {
		return "", fmt.Errorf("stat manifest: %w", err)
	}
	if !ok {
		return "", ErrObjectMissing
	}
	params := url.Values{}
	params.Set("response-content-disposition", fmt.Sprintf("attachment; filename=%q", shipmentID+".xlsx"))
	u, err := s.client.PresignedGetObject(ctx, s.manifestBucket, key, ttl, params)
	if err != nil {
		return "", fmt.Errorf("presign manifest: %w", err)
	}
	return u.String(), nil
}

type minioObjects struct {
	client *minio.Client
}

func (m minioObjects) put(ctx context.Context, bucket, key string, data []byte, contentType string) error {
	opts := minio.PutObjectOptions{ContentType: contentType}
	_, err := m.client.PutObject(ctx, bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	return err
}

func (m minioObjects) get(ctx context.Context, bucket, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, missingOr(err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, missingOr(err)
	}
	return buf, nil
}

func (m minioObjects) exists(ctx context.Context, bucket, key string) (bool, error) {
	_, err := m.client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if errors.Is(missingOr(err), ErrObjectMissing) {
		return false, nil
	}
	return false, err
}

func (m minioObjects) list(ctx context.Context, bucket, prefix string) ([]string, error) {
	var keys []string
	for info := range m.client.ListObjects(ctx, bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, info.Err
		}
		keys = append(keys, info.Key)
	}
	return keys, nil
}

func missingOr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return ErrObjectMissing
	}
	return err
}
