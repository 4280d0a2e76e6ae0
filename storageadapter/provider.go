// Package storageadapter materializes a test-asset bucket into a scratch
// filesystem and uploads evidence back, behind a single provider-agnostic
// interface dispatched purely from the bucket URI's scheme.
package storageadapter

import (
	"context"
	"io"
	"strings"

	"github.com/busmesh/testorch/infrastructure/errors"
)

// Provider is the narrow surface every concrete blob backend implements.
// Keys are bucket-relative and forward-slash separated; each provider
// passes them through sanitizeKey itself.
type Provider interface {
	// List returns every key under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	// Open streams a single object's contents.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Put uploads data under key.
	Put(ctx context.Context, key string, data io.Reader, contentType string) error
}

// BucketRef identifies a scheme-qualified bucket location: the provider,
// the bucket/container name, and an optional key prefix scoping every
// operation to a subtree (e.g. a tenant or test id).
type BucketRef struct {
	Scheme string
	Bucket string
	Prefix string
}

// ParseBucketURI is a pure function splitting a bucket locator into scheme,
// bucket and prefix, accepting only the schemes "local://", "s3://",
// "azure://" and "gs://". It does not pick a provider; DefaultProviderFactory
// does that from the returned Scheme. No I/O happens here.
func ParseBucketURI(uri string) (BucketRef, error) {
	parts := strings.SplitN(uri, "://", 2)
	if len(parts) != 2 || parts[1] == "" {
		return BucketRef{}, errors.InvalidBucketURI(uri, errBadFormat)
	}
	scheme, rest := parts[0], parts[1]
	switch scheme {
	case "local", "s3", "azure", "gs":
	default:
		return BucketRef{}, errors.InvalidBucketURI(uri, errUnknownScheme)
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return BucketRef{}, errors.InvalidBucketURI(uri, errBadFormat)
	}
	return BucketRef{Scheme: scheme, Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

var (
	errBadFormat     = formatError("expected scheme://bucket[/prefix]")
	errUnknownScheme = formatError("unsupported bucket scheme")
)

type formatError string

func (e formatError) Error() string { return string(e) }

// sanitizeKey mirrors the teacher's blob-storage key hygiene: strip a
// leading slash and replace every ".." with "_". An empty key is returned
// unchanged, not rejected.
func sanitizeKey(key string) string {
	key = strings.TrimPrefix(key, "/")
	key = strings.ReplaceAll(key, "..", "_")
	return key
}
