package store

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Media stores binary payloads (reference photos, captured frames, CSV
// backups) in MinIO.
type Media struct {
	client *minio.Client
	bucket string
}

// NewMedia creates a MinIO-backed media store.
func NewMedia(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*Media, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &Media{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the bucket if it doesn't exist.
func (m *Media) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

// Put uploads data under the given key.
func (m *Media) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := m.client.PutObject(ctx, m.bucket, key, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("put object %s: %w", key, err)
	}
	return nil
}

// Get retrieves data by key.
func (m *Media) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}
	return data, nil
}

// Delete removes an object.
func (m *Media) Delete(ctx context.Context, key string) error {
	return m.client.RemoveObject(ctx, m.bucket, key, minio.RemoveObjectOptions{})
}

// SavePhoto stores a student reference photo and returns its object key.
func (m *Media) SavePhoto(ctx context.Context, data []byte, contentType string) (string, error) {
	key := fmt.Sprintf("photos/%s", uuid.NewString())
	if err := m.Put(ctx, key, data, contentType); err != nil {
		return "", err
	}
	return key, nil
}

// SaveFrame archives a captured frame payload and returns its object key.
func (m *Media) SaveFrame(ctx context.Context, data []byte) (string, error) {
	key := fmt.Sprintf("frames/%s_%s", time.Now().UTC().Format("20060102_150405"), uuid.NewString())
	if err := m.Put(ctx, key, data, "application/octet-stream"); err != nil {
		return "", err
	}
	return key, nil
}

// SaveBackup writes a CSV backup document under the given prefix.
func (m *Media) SaveBackup(ctx context.Context, prefix, name string, data []byte) error {
	key := fmt.Sprintf("%s/%s", prefix, name)
	return m.Put(ctx, key, data, "text/csv")
}

// Ping checks MinIO connectivity.
func (m *Media) Ping(ctx context.Context) error {
	_, err := m.client.BucketExists(ctx, m.bucket)
	return err
}
