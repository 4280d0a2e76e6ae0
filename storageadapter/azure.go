package storageadapter

import (
	"context"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/busmesh/testorch/infrastructure/errors"
)

// AzureProvider backs the "azure://" scheme: a container in an Azure
// Storage account, reached via default Azure credentials.
type AzureProvider struct {
	client    *azblob.Client
	container string
}

// NewAzureProvider connects to accountURL using the default Azure
// credential chain and returns a provider scoped to container.
func NewAzureProvider(accountURL, container string) (*AzureProvider, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, errors.InvalidConfiguration("failed to resolve Azure credential: " + err.Error())
	}
	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, errors.InvalidConfiguration("failed to create Azure blob client: " + err.Error())
	}
	return &AzureProvider{client: client, container: container}, nil
}

func (p *AzureProvider) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	p2 := p.client.NewListBlobsFlatPager(p.container, &azblob.ListBlobsFlatOptions{
		Prefix: strPtr(sanitizeKey(prefix)),
	})
	for p2.More() {
		page, err := p2.NextPage(ctx)
		if err != nil {
			return nil, errors.StreamingFailure(p.container, prefix, err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name != nil {
				keys = append(keys, *item.Name)
			}
		}
	}
	return keys, nil
}

func (p *AzureProvider) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	resp, err := p.client.DownloadStream(ctx, p.container, sanitizeKey(key), nil)
	if err != nil {
		return nil, errors.StreamingFailure(p.container, key, err)
	}
	return resp.Body, nil
}

func (p *AzureProvider) Put(ctx context.Context, key string, data io.Reader, contentType string) error {
	_, err := p.client.UploadStream(ctx, p.container, sanitizeKey(key), data, nil)
	if err != nil {
		return errors.StreamingFailure(p.container, key, err)
	}
	return nil
}

func strPtr(s string) *string { return &s }

var _ Provider = (*AzureProvider)(nil)
