package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultPresignExpiry is how long presigned URLs stay valid. Generation
// jobs can run for many minutes, so the window is generous.
const DefaultPresignExpiry = 12 * time.Hour

// S3Config holds the configuration for S3 storage.
type S3Config struct {
	Region          string
	Endpoint        string // Optional: for custom S3-compatible endpoints
	AccessKeyID     string // Optional: AWS access key ID
	SecretAccessKey string // Optional: AWS secret access key
	PresignExpiry   time.Duration
}

// S3Storage implements Storage against S3.
type S3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	expiry    time.Duration
}

var _ Storage = (*S3Storage)(nil)

// NewS3Storage creates a new S3Storage instance.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	var configOpts []func(*config.LoadOptions) error
	configOpts = append(configOpts, config.WithRegion(cfg.Region))

	// Use static credentials if provided
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		configOpts = append(configOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("storage: load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	expiry := cfg.PresignExpiry
	if expiry <= 0 {
		expiry = DefaultPresignExpiry
	}

	return &S3Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		expiry:    expiry,
	}, nil
}

// PresignGet returns a signed download URL for an object.
func (s *S3Storage) PresignGet(ctx context.Context, bucket, key string) (string, error) {
	if err := requireBucketKey(bucket, key); err != nil {
		return "", err
	}

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("storage: presign get %s/%s: %w", bucket, key, err)
	}

	return req.URL, nil
}

// PresignPut returns a signed upload URL for an object.
func (s *S3Storage) PresignPut(ctx context.Context, bucket, key string) (string, error) {
	if err := requireBucketKey(bucket, key); err != nil {
		return "", err
	}

	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("storage: presign put %s/%s: %w", bucket, key, err)
	}

	return req.URL, nil
}

// List returns the object keys under a prefix.
func (s *S3Storage) List(ctx context.Context, bucket, prefix string) ([]string, error) {
	if bucket == "" {
		return nil, ErrBucketRequired
	}

	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("storage: list %s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	return keys, nil
}

// Get fetches an object. The caller must close the returned body.
func (s *S3Storage) Get(ctx context.Context, bucket, key string) (Object, error) {
	if err := requireBucketKey(bucket, key); err != nil {
		return Object{}, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return Object{}, fmt.Errorf("storage: get %s/%s: %w", bucket, key, err)
	}

	return Object{
		Body:        out.Body,
		ContentType: aws.ToString(out.ContentType),
		Length:      aws.ToInt64(out.ContentLength),
	}, nil
}

// Put stores an object under the given key.
func (s *S3Storage) Put(ctx context.Context, bucket, key, contentType string, body io.Reader) error {
	if err := requireBucketKey(bucket, key); err != nil {
		return err
	}

	input := &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("storage: put %s/%s: %w", bucket, key, err)
	}

	return nil
}

func requireBucketKey(bucket, key string) error {
	if bucket == "" {
		return ErrBucketRequired
	}
	if key == "" {
		return ErrKeyRequired
	}
	return nil
}
