package blob

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"caprev/internal/review"
)

// S3Options configures an S3Store.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // optional, for S3-compatible services; forces path-style addressing
	AccessKey string // empty uses the default credential chain
	SecretKey string
}

// S3Store keeps blobs as objects under <prefix><ref> in one bucket.
// Uploads go through the multipart upload manager so large videos stream.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

// NewS3Store loads AWS configuration and creates the client.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("s3 blob store requires a bucket")
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{}
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   opts.Bucket,
		prefix:   opts.Prefix,
	}, nil
}

func (s *S3Store) key(ref string) string {
	return s.prefix + ref
}

// Put uploads the payload. size is informational; the upload manager streams
// r in parts.
func (s *S3Store) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	ref, err := refFromName(name)
	if err != nil {
		return "", err
	}
	if _, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key(ref)),
		Body:        r,
		ContentType: aws.String(ContentType(ref)),
	}); err != nil {
		return "", fmt.Errorf("uploading %s: %w", ref, err)
	}
	return ref, nil
}

// Open streams the object body.
func (s *S3Store) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, &review.NotFoundError{Kind: "blob", ID: ref}
		}
		return nil, fmt.Errorf("downloading %s: %w", ref, err)
	}
	return out.Body, nil
}

// Delete removes the object. S3 treats missing keys as success.
func (s *S3Store) Delete(ctx context.Context, ref string) error {
	if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key(ref)),
	}); err != nil {
		return fmt.Errorf("deleting %s: %w", ref, err)
	}
	return nil
}

// Compile-time check that S3Store implements review.BlobStore.
var _ review.BlobStore = (*S3Store)(nil)
