// README: Google Cloud Storage signer for driver document upload/view URLs.
package infra

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSSigner issues V4 signed URLs for objects in one bucket. The service
// account behind credentialsFile must be allowed to sign blobs.
type GCSSigner struct {
	client *storage.Client
	bucket string
	ttl    time.Duration
}

func NewGCSSigner(ctx context.Context, bucket, credentialsFile string, ttl time.Duration) (*GCSSigner, error) {
	opts := []option.ClientOption{}
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("storage.NewClient: %w", err)
	}
	return &GCSSigner{client: client, bucket: bucket, ttl: ttl}, nil
}

func (s *GCSSigner) SignedGetURL(_ context.Context, path string) (string, error) {
	return s.client.Bucket(s.bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:  storage.SigningSchemeV4,
		Method:  "GET",
		Expires: time.Now().Add(s.ttl),
	})
}

func (s *GCSSigner) SignedPutURL(_ context.Context, path, contentType string) (string, error) {
	return s.client.Bucket(s.bucket).SignedURL(path, &storage.SignedURLOptions{
		Scheme:      storage.SigningSchemeV4,
		Method:      "PUT",
		ContentType: contentType,
		Expires:     time.Now().Add(s.ttl),
	})
}

func (s *GCSSigner) Delete(ctx context.Context, path string) error {
	err := s.client.Bucket(s.bucket).Object(path).Delete(ctx)
	if err == storage.ErrObjectNotExist {
		return nil
	}
	return err
}

func (s *GCSSigner) Close() error {
	return s.client.Close()
}
