package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "github.com/prodimg/studio/errors"
)

// AzurePublisher uploads finished images to an Azure blob container.
type AzurePublisher struct {
	client    *azblob.Client
	container string
}

// NewAzurePublisher creates a publisher using shared-key credentials.
func NewAzurePublisher(accountName, accountKey, container string) (*AzurePublisher, error) {
	credential, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "azure.credential", err)
	}

	client, err := azblob.NewClientWithSharedKeyCredential(
		fmt.Sprintf("https://%s.blob.core.windows.net", accountName),
		credential,
		nil,
	)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryConfig, "azure.client", err)
	}

	return &AzurePublisher{client: client, container: container}, nil
}

// Publish uploads data under the given blob name.
func (p *AzurePublisher) Publish(ctx context.Context, name string, data []byte) error {
	_, err := p.client.UploadStream(ctx, p.container, name, bytes.NewReader(data), nil)
	if err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "azure.upload", err)
	}
	return nil
}
