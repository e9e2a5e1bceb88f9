package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MirrorConfig holds the S3/MinIO settings for the upload mirror.
type MirrorConfig struct {
	Endpoint  string // "minio:9000" or "https://s3.example.com"
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string // object key prefix, e.g. "uploads/"
}

// Configured reports whether any mirror setting is present.
func (c MirrorConfig) Configured() bool {
	return c.Endpoint != "" || c.AccessKey != "" || c.SecretKey != "" || c.Bucket != ""
}

// Mirror copies stored uploads to an S3-compatible bucket.
type Mirror struct {
	client *minio.Client
	bucket string
	prefix string
}

func normaliseEndpoint(raw string) (endpoint string, secure bool, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false, fmt.Errorf("empty endpoint")
	}

	// Accept either "minio:9000" or "http://minio:9000" / "https://minio:9000".
	if strings.Contains(raw, "://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, err
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint")
		}
		if u.Path != "" && u.Path != "/" {
			return "", false, fmt.Errorf("endpoint must not contain a path")
		}
		return u.Host, u.Scheme == "https", nil
	}

	// No scheme provided, treat as host:port (insecure by default for local MinIO).
	return raw, false, nil
}

// NewMirror connects to the endpoint and checks that the bucket exists.
func NewMirror(ctx context.Context, cfg MirrorConfig) (*Mirror, error) {
	if cfg.Endpoint == "" || cfg.AccessKey == "" || cfg.SecretKey == "" || cfg.Bucket == "" {
		return nil, fmt.Errorf("mirror configuration incomplete")
	}

	endpoint, secure, err := normaliseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("mirror endpoint: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: secure,
	})
	if err != nil {
		return nil, fmt.Errorf("mirror client: %w", err)
	}

	m := &Mirror{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}
	if err := m.Ping(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// Bucket returns the target bucket name.
func (m *Mirror) Bucket() string {
	return m.bucket
}

// ObjectKey maps a stored upload name to its key in the bucket.
func (m *Mirror) ObjectKey(name string) string {
	return m.prefix + name
}

// Ping fails when the bucket is unreachable or missing.
func (m *Mirror) Ping(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return fmt.Errorf("mirror bucket check: %w", err)
	}
	if !exists {
		return fmt.Errorf("mirror bucket does not exist: %s", m.bucket)
	}
	return nil
}

// Put uploads the file at path under ObjectKey(name).
func (m *Mirror) Put(ctx context.Context, name, path, contentType string) error {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := m.client.FPutObject(ctx, m.bucket, m.ObjectKey(name), path, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("mirror put %s: %w", name, err)
	}
	return nil
}
