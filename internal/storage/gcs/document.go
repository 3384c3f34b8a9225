// Package gcs provides an archive store backend kept in a Google Cloud
// Storage object.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"

	"cloud.google.com/go/storage"
)

const contentType = "text/markdown; charset=utf-8"

// Config captures the object the store document lives in.
type Config struct {
	Bucket string
	Object string
}

// ParseLocation splits a gs://bucket/object location.
func ParseLocation(location string) (Config, error) {
	rest, ok := strings.CutPrefix(location, "gs://")
	if !ok {
		return Config{}, fmt.Errorf("location %q is not a gs:// URI", location)
	}
	bucket, object, ok := strings.Cut(rest, "/")
	if !ok || bucket == "" || strings.TrimSpace(object) == "" {
		return Config{}, fmt.Errorf("location %q must name a bucket and an object", location)
	}
	return Config{Bucket: bucket, Object: object}, nil
}

// Document reads and replaces one GCS object.
type Document struct {
	client *storage.Client
	bucket string
	object string
}

// New creates a GCS-backed document.
func New(client *storage.Client, cfg Config) (*Document, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if strings.TrimSpace(cfg.Object) == "" {
		return nil, fmt.Errorf("object name is required")
	}
	return &Document{client: client, bucket: cfg.Bucket, object: cfg.Object}, nil
}

// Read downloads the object. A missing object yields an error wrapping
// fs.ErrNotExist.
func (d *Document) Read(ctx context.Context) ([]byte, error) {
	r, err := d.client.Bucket(d.bucket).Object(d.object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, fmt.Errorf("read %s: %w", d.Location(), fs.ErrNotExist)
	}
	if err != nil {
		return nil, fmt.Errorf("open reader for %s: %w", d.Location(), err)
	}
	defer func() { _ = r.Close() }()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", d.Location(), err)
	}
	return data, nil
}

// Write uploads data as the new object contents.
func (d *Document) Write(ctx context.Context, data []byte) error {
	writer := d.client.Bucket(d.bucket).Object(d.object).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return fmt.Errorf("write object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer: %w", err)
	}
	return nil
}

// Location returns the gs:// URI of the document.
func (d *Document) Location() string {
	return fmt.Sprintf("gs://%s/%s", d.bucket, d.object)
}
