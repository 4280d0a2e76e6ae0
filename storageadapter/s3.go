package storageadapter

import (
	"context"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/busmesh/testorch/infrastructure/errors"
)

// S3Provider backs the "s3://" scheme. Credentials are resolved via the
// default AWS credential chain (env, shared config, instance role).
type S3Provider struct {
	client *s3.Client
	bucket string
}

// NewS3Provider loads the default AWS config and returns a provider scoped
// to bucket.
func NewS3Provider(ctx context.Context, bucket string) (*S3Provider, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errors.InvalidConfiguration("failed to load AWS config: " + err.Error())
	}
	return &S3Provider{client: s3.NewFromConfig(cfg), bucket: bucket}, nil
}

func (p *S3Provider) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(p.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(sanitizeKey(prefix)),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, errors.StreamingFailure(p.bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}
	return keys, nil
}

func (p *S3Provider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := p.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(sanitizeKey(key)),
	})
	if err != nil {
		return nil, errors.StreamingFailure(p.bucket, key, err)
	}
	return out.Body, nil
}

func (p *S3Provider) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(sanitizeKey(key)),
		Body:        data,
		ContentType: aws.String(contentTypeOrDefault(contentType)),
	})
	if err != nil {
		return errors.StreamingFailure(p.bucket, key, err)
	}
	return nil
}

func contentTypeOrDefault(ct string) string {
	if ct == "" {
		return "application/octet-stream"
	}
	return ct
}

var _ Provider = (*S3Provider)(nil)
