package storageadapter

import (
	"context"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/busmesh/testorch/infrastructure/errors"
)

// GCSProvider backs the "gs://" scheme: a Google Cloud Storage bucket,
// reached via application-default credentials.
type GCSProvider struct {
	client *storage.Client
	bucket string
}

// NewGCSProvider builds a client from application-default credentials and
// returns a provider scoped to bucket.
func NewGCSProvider(ctx context.Context, bucket string) (*GCSProvider, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, errors.InvalidConfiguration("failed to create GCS client: " + err.Error())
	}
	return &GCSProvider{client: client, bucket: bucket}, nil
}

func (p *GCSProvider) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	it := p.client.Bucket(p.bucket).Objects(ctx, &storage.Query{Prefix: sanitizeKey(prefix)})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.StreamingFailure(p.bucket, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

func (p *GCSProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	r, err := p.client.Bucket(p.bucket).Object(sanitizeKey(key)).NewReader(ctx)
	if err != nil {
		return nil, errors.StreamingFailure(p.bucket, key, err)
	}
	return r, nil
}

func (p *GCSProvider) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	w := p.client.Bucket(p.bucket).Object(sanitizeKey(key)).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := io.Copy(w, data); err != nil {
		w.Close()
		return errors.StreamingFailure(p.bucket, key, err)
	}
	if err := w.Close(); err != nil {
		return errors.StreamingFailure(p.bucket, key, err)
	}
	return nil
}

var _ Provider = (*GCSProvider)(nil)
