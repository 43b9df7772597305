// Package azureblob implements the blob client against Azure Blob Storage,
// which is where the upstream writer publishes the change feed.
package azureblob

import (
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/Azure/azure-storage-blob-go/azblob"

	"github.com/tidefeed/tidefeed/internal/blob"
)

// Options configures the Azure client.
type Options struct {
	// AccountName and AccountKey authenticate with a shared key.
	AccountName string
	AccountKey  string
	// Container is the container holding the feed (the upstream writer
	// uses a dedicated one).
	Container string
	// Endpoint overrides the service URL, e.g. for Azurite. Empty means
	// https://<account>.blob.core.windows.net.
	Endpoint string
}

// Client reads the feed container through the Azure SDK.
type Client struct {
	container azblob.ContainerURL
}

// New builds a Client from shared-key credentials.
func New(opts Options) (*Client, error) {
	if opts.AccountName == "" || opts.AccountKey == "" {
		return nil, fmt.Errorf("azureblob: account name and key are required")
	}
	if opts.Container == "" {
		return nil, fmt.Errorf("azureblob: container is required")
	}
	cred, err := azblob.NewSharedKeyCredential(opts.AccountName, opts.AccountKey)
	if err != nil {
		return nil, fmt.Errorf("azureblob: credential: %w", err)
	}
	endpoint := opts.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", opts.AccountName)
	}
	u, err := url.Parse(fmt.Sprintf("%s/%s", endpoint, opts.Container))
	if err != nil {
		return nil, fmt.Errorf("azureblob: endpoint: %w", err)
	}
	pipeline := azblob.NewPipeline(cred, azblob.PipelineOptions{})
	return &Client{container: azblob.NewContainerURL(*u, pipeline)}, nil
}

// List implements blob.Client using marker-paged flat listing.
func (c *Client) List(ctx context.Context, prefix string) ([]blob.Info, error) {
	out := make([]blob.Info, 0, 64)
	marker := azblob.Marker{}
	for marker.NotDone() {
		seg, err := c.container.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{Prefix: prefix})
		if err != nil {
			return nil, fmt.Errorf("azureblob: list %q: %w", prefix, err)
		}
		for _, item := range seg.Segment.BlobItems {
			var length int64
			if item.Properties.ContentLength != nil {
				length = *item.Properties.ContentLength
			}
			out = append(out, blob.Info{Key: item.Name, Length: length})
		}
		marker = seg.NextMarker
	}
	return out, nil
}

// ReadRange implements blob.Client with a ranged download.
func (c *Client) ReadRange(ctx context.Context, key string, offset, length int64) ([]byte, error) {
	blobURL := c.container.NewBlockBlobURL(key)
	resp, err := blobURL.Download(ctx, offset, length, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		if serr, ok := err.(azblob.StorageError); ok {
			if serr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
				return nil, blob.ErrNotFound
			}
			// 416: nothing committed at or past offset yet.
			if hr := serr.Response(); hr != nil && hr.StatusCode == 416 {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("azureblob: read %s@%d: %w", key, offset, err)
	}
	body := resp.Body(azblob.RetryReaderOptions{MaxRetryRequests: 3})
	defer body.Close()
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("azureblob: read %s@%d: %w", key, offset, err)
	}
	return data, nil
}
