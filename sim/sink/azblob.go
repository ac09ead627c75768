package sink

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/spf13/afero"
)

// BlobServiceURL returns the blob endpoint of a storage account.
func BlobServiceURL(account string) string {
	return fmt.Sprintf("https://%s.blob.core.windows.net", account)
}

// BlobUploader copies local snapshot artifacts to an Azure Blob Storage
// container. Blobs are named after the artifact and overwritten if present.
type BlobUploader struct {
	client    *azblob.Client
	container string
	fs        afero.Fs
}

// NewBlobUploader creates an uploader authenticated with the default Azure
// credential chain (environment, workload identity, managed identity, CLI).
func NewBlobUploader(account, container string, fs afero.Fs) (*BlobUploader, error) {
	if account == "" || container == "" {
		return nil, ErrBlobNotConfigured
	}
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating azure credential: %w", err)
	}
	return NewBlobUploaderWithCredential(account, container, fs, cred)
}

// NewBlobUploaderWithCredential creates an uploader using cred.
func NewBlobUploaderWithCredential(account, container string, fs afero.Fs, cred azcore.TokenCredential) (*BlobUploader, error) {
	if account == "" || container == "" {
		return nil, ErrBlobNotConfigured
	}
	client, err := azblob.NewClient(BlobServiceURL(account), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("creating blob client: %w", err)
	}
	return &BlobUploader{client: client, container: container, fs: fs}, nil
}

// Upload reads localPath and stores it as blobName.
func (u *BlobUploader) Upload(ctx context.Context, blobName, localPath string) error {
	data, err := afero.ReadFile(u.fs, localPath)
	if err != nil {
		return fmt.Errorf("reading %s: %w", localPath, err)
	}
	if _, err := u.client.UploadBuffer(ctx, u.container, blobName, data, nil); err != nil {
		return fmt.Errorf("uploading %s to %s: %w", blobName, u.container, err)
	}
	return nil
}
