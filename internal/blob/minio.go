package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"caprev/internal/review"
)

// MinioOptions configures a MinioStore.
type MinioOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// MinioStore keeps blobs as objects in a MinIO bucket.
type MinioStore struct {
	client *minio.Client
	bucket string
}

// NewMinioStore connects to MinIO and creates the bucket if it does not exist.
func NewMinioStore(ctx context.Context, opts MinioOptions) (*MinioStore, error) {
	if opts.Endpoint == "" || opts.Bucket == "" {
		return nil, fmt.Errorf("minio blob store requires minio_endpoint and minio_bucket")
	}

	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("creating minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, opts.Bucket)
	if err != nil {
		return nil, fmt.Errorf("checking bucket %s: %w", opts.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, opts.Bucket, minio.MakeBucketOptions{Region: opts.Region}); err != nil {
			return nil, fmt.Errorf("creating bucket %s: %w", opts.Bucket, err)
		}
	}

	return &MinioStore{client: client, bucket: opts.Bucket}, nil
}

// Put uploads the payload; a negative size streams with multipart upload.
func (s *MinioStore) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	ref, err := refFromName(name)
	if err != nil {
		return "", err
	}
	if _, err := s.client.PutObject(ctx, s.bucket, ref, r, size, minio.PutObjectOptions{
		ContentType: ContentType(ref),
	}); err != nil {
		return "", fmt.Errorf("uploading %s: %w", ref, err)
	}
	return ref, nil
}

// Open returns the object stream. minio-go defers the request until the first
// read, so the object is stat'ed first to report missing refs up front.
func (s *MinioStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	if _, err := s.client.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, &review.NotFoundError{Kind: "blob", ID: ref}
		}
		return nil, fmt.Errorf("stat %s: %w", ref, err)
	}
	obj, err := s.client.GetObject(ctx, s.bucket, ref, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", ref, err)
	}
	return obj, nil
}

// Delete removes the object.
func (s *MinioStore) Delete(ctx context.Context, ref string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, ref, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("deleting %s: %w", ref, err)
	}
	return nil
}

// Compile-time check that MinioStore implements review.BlobStore.
var _ review.BlobStore = (*MinioStore)(nil)
