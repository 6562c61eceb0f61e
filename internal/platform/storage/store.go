package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	gcs "cloud.google.com/go/storage"
)

// ErrDisabled is returned by uploads when no object store is configured.
var ErrDisabled = errors.New("storage: object storage is not configured")

// ImageStore persists product images and resolves their public URLs.
type ImageStore interface {
	Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error)
	Delete(ctx context.Context, publicURL string) error
}

// GCSImageStore writes objects to a Cloud Storage bucket.
type GCSImageStore struct {
	client  *gcs.Client
	bucket  string
	baseURL string
}

var _ ImageStore = (*GCSImageStore)(nil)

// NewGCSImageStore constructs a store for bucket. baseURL defaults to the public storage.googleapis.com endpoint.
func NewGCSImageStore(client *gcs.Client, bucket, baseURL string) (*GCSImageStore, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return nil, errors.New("storage: bucket name is required")
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "https://storage.googleapis.com/" + bucket
	}
	return &GCSImageStore{client: client, bucket: bucket, baseURL: baseURL}, nil
}

func (s *GCSImageStore) Upload(ctx context.Context, object, contentType string, body io.Reader) (string, error) {
	object = strings.TrimSpace(object)
	if object == "" {
		return "", errors.New("storage: object name is required")
	}
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	w.ContentType = contentType
	w.CacheControl = "public, max-age=31536000, immutable"
	if _, err := io.Copy(w, body); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("storage: write %s: %w", object, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("storage: finalize %s: %w", object, err)
	}
	return PublicURL(s.baseURL, object), nil
}

// Delete removes the object behind publicURL. URLs outside the bucket and missing objects are ignored.
func (s *GCSImageStore) Delete(ctx context.Context, publicURL string) error {
	object, ok := ObjectName(s.baseURL, publicURL)
	if !ok {
		return nil
	}
	err := s.client.Bucket(s.bucket).Object(object).Delete(ctx)
	if err == nil || errors.Is(err, gcs.ErrObjectNotExist) {
		return nil
	}
	return fmt.Errorf("storage: delete %s: %w", object, err)
}

// DisabledStore rejects uploads and ignores deletes.
type DisabledStore struct{}

var _ ImageStore = DisabledStore{}

func (DisabledStore) Upload(context.Context, string, string, io.Reader) (string, error) {
	return "", ErrDisabled
}

func (DisabledStore) Delete(context.Context, string) error { return nil }

// PublicURL joins baseURL and an object name, escaping each path segment.
func PublicURL(baseURL, object string) string {
	segments := strings.Split(object, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.Join(segments, "/")
}

// ObjectName reverses PublicURL. It reports false when publicURL does not live under baseURL.
func ObjectName(baseURL, publicURL string) (string, bool) {
	prefix := strings.TrimRight(baseURL, "/") + "/"
	publicURL = strings.TrimSpace(publicURL)
	if prefix == "/" || !strings.HasPrefix(publicURL, prefix) {
		return "", false
	}
	object, err := url.PathUnescape(strings.TrimPrefix(publicURL, prefix))
	if err != nil || object == "" || strings.Contains(object, "..") {
		return "", false
	}
	return object, true
}
