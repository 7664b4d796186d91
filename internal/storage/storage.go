// Package storage provides object storage for source and generated assets.
// It defines the Storage interface (port) for hexagonal architecture and an
// S3 implementation with presigned URL support.
package storage

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrBucketRequired is returned when an operation is missing the bucket name.
	ErrBucketRequired = errors.New("storage: bucket is required")

	// ErrKeyRequired is returned when an operation is missing the object key.
	ErrKeyRequired = errors.New("storage: key is required")
)

// Object is a stored asset streamed from the backing store. The caller is
// responsible for closing the body.
type Object struct {
	Body        io.ReadCloser
	ContentType string
	Length      int64
}

// Storage defines the interface for the object store behind the gateway.
// Generation services read and write assets exclusively through presigned
// URLs, so presigning is part of the port.
type Storage interface {
	// PresignGet returns a signed download URL for an object.
	PresignGet(ctx context.Context, bucket, key string) (string, error)

	// PresignPut returns a signed upload URL for an object.
	PresignPut(ctx context.Context, bucket, key string) (string, error)

	// List returns the object keys under a prefix.
	List(ctx context.Context, bucket, prefix string) ([]string, error)

	// Get fetches an object. The caller must close the returned body.
	Get(ctx context.Context, bucket, key string) (Object, error)

	// Put stores an object under the given key.
	Put(ctx context.Context, bucket, key, contentType string, body io.Reader) error
}
