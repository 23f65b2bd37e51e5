// Package tiles serves rendered radargram imagery: the tile pyramids and
// thumbnails the processing pipeline uploads. Backed by an S3-compatible
// object store when configured, by a local directory otherwise.
package tiles

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// Store fetches tile objects by their path under the radargram static root.
type Store interface {
	Fetch(ctx context.Context, objectPath string) (io.ReadCloser, string, error)
}

type ObjectStore struct {
	client *minio.Client
	bucket string
}

func NewObjectStore(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*ObjectStore, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}
	return &ObjectStore{client: client, bucket: bucket}, nil
}

func (s *ObjectStore) Fetch(ctx context.Context, objectPath string) (io.ReadCloser, string, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, objectPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, "", fmt.Errorf("get object %s: %w", objectPath, err)
	}
	info, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, "", fmt.Errorf("stat object %s: %w", objectPath, err)
	}
	contentType := info.ContentType
	if contentType == "" {
		contentType = contentTypeFor(objectPath)
	}
	return obj, contentType, nil
}

// DirStore serves tiles from a local directory, for deployments without an
// object store and for tests.
type DirStore struct {
	root string
}

func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

func (s *DirStore) Fetch(ctx context.Context, objectPath string) (io.ReadCloser, string, error) {
	cleaned := filepath.Clean("/" + objectPath)
	f, err := os.Open(filepath.Join(s.root, cleaned))
	if err != nil {
		return nil, "", err
	}
	return f, contentTypeFor(objectPath), nil
}

func contentTypeFor(objectPath string) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(objectPath))); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
