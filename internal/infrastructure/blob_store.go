package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var (
	// ErrProviderUnavailable indicates the storage backend is not configured
	ErrProviderUnavailable = errors.New("storage provider unavailable")
	// ErrPathTraversal indicates an object key tried to escape the media root
	ErrPathTraversal = errors.New("path traversal is forbidden")
)

// GCSBlobStore stores objects in a Google Cloud Storage bucket and makes them public
type GCSBlobStore struct {
	client    *storage.Client
	bucket    string
	publicACL bool
}

// NewGCSBlobStore opens a bucket. credentialsFile may be empty to use the
// default application credentials.
func NewGCSBlobStore(ctx context.Context, bucket, credentialsFile string, publicACL bool) (*GCSBlobStore, error) {
	if bucket == "" {
		return nil, ErrProviderUnavailable
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSBlobStore{client: client, bucket: bucket, publicACL: publicACL}, nil
}

func (s *GCSBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	obj := s.client.Bucket(s.bucket).Object(key)

	w := obj.NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", fmt.Errorf("write object %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", key, err)
	}

	// Buckets with uniform access are made public at bucket level instead
	if s.publicACL {
		if err := obj.ACL().Set(ctx, storage.AllUsers, storage.RoleReader); err != nil {
			return "", fmt.Errorf("make object %s public: %w", key, err)
		}
	}

	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, key), nil
}

func (s *GCSBlobStore) Close() error {
	return s.client.Close()
}

// LocalBlobStore writes objects under a directory that the HTTP server
// exposes at baseURL.
type LocalBlobStore struct {
	root    string
	baseURL string
}

func NewLocalBlobStore(root, baseURL string) (*LocalBlobStore, error) {
	if root == "" || baseURL == "" {
		return nil, ErrProviderUnavailable
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create media directory: %w", err)
	}
	return &LocalBlobStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *LocalBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(key))
	if clean == "." || filepath.IsAbs(clean) || strings.HasPrefix(clean, "..") {
		return "", ErrPathTraversal
	}
	path := filepath.Join(s.root, clean)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("create folder: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("write %s: %w", key, err)
	}
	return s.baseURL + "/" + filepath.ToSlash(clean), nil
}

// Root is the directory to serve
func (s *LocalBlobStore) Root() string {
	return s.root
}
