// Package storage reads contracts from an S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var ErrInvalidKey = errors.New("invalid object key")

// Config holds S3/MinIO client configuration.
type Config struct {
	Endpoint        string // "localhost:9002" for MinIO
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	Region          string // skips the bucket location lookup when set
}

// Client wraps the MinIO/S3 client for contract objects.
type Client struct {
	minioClient *minio.Client
	bucket      string
}

// Object describes a stored contract.
type Object struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ContentType  string    `json:"content_type,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// New creates a new S3/MinIO client.
func New(config Config) (*Client, error) {
	if config.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	minioClient, err := minio.New(config.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(config.AccessKeyID, config.SecretAccessKey, ""),
		Secure: config.UseSSL,
		Region: config.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	return &Client{
		minioClient: minioClient,
		bucket:      config.Bucket,
	}, nil
}

// Stat returns the metadata of one object.
func (c *Client) Stat(ctx context.Context, key string) (*Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	info, err := c.minioClient.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return toObject(info), nil
}

// Download writes the object at key to dest, replacing any existing file.
func (c *Client) Download(ctx context.Context, key, dest string) (*Object, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	object, err := c.minioClient.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	defer object.Close()

	info, err := object.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}

	file, err := os.Create(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", dest, err)
	}
	if _, err := file.ReadFrom(object); err != nil {
		file.Close()
		os.Remove(dest)
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", dest, err)
	}

	slog.Debug("downloaded object", "bucket", c.bucket, "key", key, "size", info.Size, "dest", dest)
	return toObject(info), nil
}

// Bucket returns the bucket name.
func (c *Client) Bucket() string {
	return c.bucket
}

func toObject(info minio.ObjectInfo) *Object {
	return &Object{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}
}

func validateKey(key string) error {
	if strings.TrimSpace(key) == "" || strings.HasSuffix(key, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return nil
}
