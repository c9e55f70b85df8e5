package blob

import (
	"context"
	"fmt"
	"io"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	azsdkblob "github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/container"

	"github.com/asad/blobgate/internal/azure"
	"github.com/asad/blobgate/internal/config"
	"github.com/asad/blobgate/internal/logging"
)

// AzureStore implements ObjectStore against Azure Blob Storage. A fresh
// service client is built per call; all state lives in the backend.
type AzureStore struct {
	cfg    *config.Config
	logger logging.Logger
}

var _ ObjectStore = (*AzureStore)(nil)

// NewAzureStore creates an Azure-backed object store for the configured
// container.
func NewAzureStore(cfg *config.Config, logger logging.Logger) *AzureStore {
	return &AzureStore{cfg: cfg, logger: logger}
}

func (s *AzureStore) client() (*azblob.Client, error) {
	return azure.NewServiceClient(s.cfg)
}

// ensureContainer provisions the container before operations that may touch
// a container that does not exist yet. Provisioning failures are tolerated;
// the operation that follows surfaces any real fault.
func (s *AzureStore) ensureContainer(ctx context.Context, client *azblob.Client) azure.EnsureOutcome {
	ep := azure.ResolveEndpoint(s.cfg)
	prov := azure.NewProvisioner(ep.IsEmulator, s.logger)
	cc := client.ServiceClient().NewContainerClient(s.cfg.Container)
	return prov.Ensure(ctx, cc, s.cfg.Container)
}

func (s *AzureStore) List(ctx context.Context) ([]Object, error) {
	client, err := s.client()
	if err != nil {
		return nil, err
	}
	s.ensureContainer(ctx, client)

	pager := client.NewListBlobsFlatPager(s.cfg.Container, &azblob.ListBlobsFlatOptions{
		Include: container.ListBlobsInclude{Metadata: true},
	})

	var objects []Object
	for pager.More() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list blobs: %w", err)
		}
		for _, item := range page.Segment.BlobItems {
			if item.Name == nil {
				continue
			}
			o := Object{
				Name:     *item.Name,
				Metadata: fromPtrMap(item.Metadata),
			}
			if p := item.Properties; p != nil {
				if p.ContentLength != nil {
					o.Size = *p.ContentLength
				}
				o.LastModified = p.LastModified
				o.CreationTime = p.CreationTime
				if p.ETag != nil {
					o.ETag = string(*p.ETag)
				}
				if p.ContentType != nil {
					o.ContentType = *p.ContentType
				}
				if p.ContentEncoding != nil {
					o.ContentEncoding = *p.ContentEncoding
				}
				if p.ContentLanguage != nil {
					o.ContentLanguage = *p.ContentLanguage
				}
				if p.CacheControl != nil {
					o.CacheControl = *p.CacheControl
				}
				if p.BlobType != nil {
					o.BlobType = string(*p.BlobType)
				}
			}
			objects = append(objects, o)
		}
	}
	return objects, nil
}

func (s *AzureStore) Get(ctx context.Context, name string) (*Object, error) {
	client, err := s.client()
	if err != nil {
		return nil, err
	}

	bc := client.ServiceClient().NewContainerClient(s.cfg.Container).NewBlobClient(name)
	props, err := bc.GetProperties(ctx, nil)
	if err != nil {
		if azure.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get blob properties: %w", err)
	}

	o := &Object{
		Name:         name,
		Metadata:     fromPtrMap(props.Metadata),
		LastModified: props.LastModified,
		CreationTime: props.CreationTime,
	}
	if props.ContentLength != nil {
		o.Size = *props.ContentLength
	}
	if props.ETag != nil {
		o.ETag = string(*props.ETag)
	}
	if props.ContentType != nil {
		o.ContentType = *props.ContentType
	}
	if props.ContentEncoding != nil {
		o.ContentEncoding = *props.ContentEncoding
	}
	if props.ContentLanguage != nil {
		o.ContentLanguage = *props.ContentLanguage
	}
	if props.CacheControl != nil {
		o.CacheControl = *props.CacheControl
	}
	if props.BlobType != nil {
		o.BlobType = string(*props.BlobType)
	}
	return o, nil
}

func (s *AzureStore) Upload(ctx context.Context, name, contentType string, body io.Reader) error {
	client, err := s.client()
	if err != nil {
		return err
	}
	s.ensureContainer(ctx, client)

	opts := &azblob.UploadStreamOptions{
		HTTPHeaders: &azsdkblob.HTTPHeaders{
			BlobContentType: to.Ptr(contentType),
		},
	}
	if _, err := client.UploadStream(ctx, s.cfg.Container, name, body, opts); err != nil {
		return fmt.Errorf("upload blob: %w", err)
	}
	return nil
}

func (s *AzureStore) SetMetadata(ctx context.Context, name string, metadata map[string]string) error {
	client, err := s.client()
	if err != nil {
		return err
	}

	bc := client.ServiceClient().NewContainerClient(s.cfg.Container).NewBlobClient(name)
	if _, err := bc.SetMetadata(ctx, toPtrMap(metadata), nil); err != nil {
		if azure.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("set blob metadata: %w", err)
	}
	return nil
}

func (s *AzureStore) Delete(ctx context.Context, name string) error {
	client, err := s.client()
	if err != nil {
		return err
	}

	if _, err := client.DeleteBlob(ctx, s.cfg.Container, name, nil); err != nil {
		if azure.IsNotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

func (s *AzureStore) Open(ctx context.Context, name string) (*Object, io.ReadCloser, error) {
	client, err := s.client()
	if err != nil {
		return nil, nil, err
	}

	resp, err := client.DownloadStream(ctx, s.cfg.Container, name, nil)
	if err != nil {
		if azure.IsNotFound(err) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("download blob: %w", err)
	}

	o := &Object{
		Name:         name,
		Metadata:     fromPtrMap(resp.Metadata),
		LastModified: resp.LastModified,
	}
	if resp.ContentLength != nil {
		o.Size = *resp.ContentLength
	}
	if resp.ETag != nil {
		o.ETag = string(*resp.ETag)
	}
	if resp.ContentType != nil {
		o.ContentType = *resp.ContentType
	}
	if resp.ContentEncoding != nil {
		o.ContentEncoding = *resp.ContentEncoding
	}
	if resp.ContentLanguage != nil {
		o.ContentLanguage = *resp.ContentLanguage
	}
	if resp.CacheControl != nil {
		o.CacheControl = *resp.CacheControl
	}
	return o, resp.Body, nil
}

func (s *AzureStore) SignedURL(ctx context.Context, name string) (string, error) {
	return azure.IssueSASURL(s.cfg, name)
}

func (s *AzureStore) Ping(ctx context.Context) error {
	client, err := s.client()
	if err != nil {
		return err
	}
	s.ensureContainer(ctx, client)

	cc := client.ServiceClient().NewContainerClient(s.cfg.Container)
	if _, err := cc.GetProperties(ctx, nil); err != nil {
		return fmt.Errorf("container properties: %w", err)
	}
	return nil
}

func fromPtrMap(m map[string]*string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v != nil {
			out[k] = *v
		}
	}
	return out
}

func toPtrMap(m map[string]string) map[string]*string {
	out := make(map[string]*string, len(m))
	for k, v := range m {
		out[k] = to.Ptr(v)
	}
	return out
}
