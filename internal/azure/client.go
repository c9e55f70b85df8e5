package azure

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	"github.com/asad/blobgate/internal/config"
)

// ErrNoConnectionString is returned when an operation needs storage but
// AZURE_STORAGE_CONNECTION_STRING was never configured. The service itself
// starts without it; the error surfaces per operation.
var ErrNoConnectionString = errors.New("AZURE_STORAGE_CONNECTION_STRING is not configured")

const (
	connectTimeout = 10 * time.Second
	readTimeout    = 30 * time.Second
	maxRetries     = 3
	retryDelay     = 500 * time.Millisecond
)

// NewServiceClient builds an authenticated blob service client from the
// configured connection string, with bounded retries and explicit
// connect/read timeouts so a dead backend cannot hang requests
// indefinitely. Creating a client per request is fine; it holds no state
// beyond the credential and transport.
func NewServiceClient(cfg *config.Config) (*azblob.Client, error) {
	if cfg.ConnectionString == "" {
		return nil, ErrNoConnectionString
	}

	opts := &azblob.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries: maxRetries,
				RetryDelay: retryDelay,
			},
			Transport: defaultTransport(),
		},
	}

	client, err := azblob.NewClientFromConnectionString(NormalizeConnectionString(cfg.ConnectionString), opts)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// defaultTransport returns an HTTP client with explicit dial and
// response-header timeouts. The SDK's retry policy sits on top of it.
func defaultTransport() policy.Transporter {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout: connectTimeout,
		}).DialContext,
		ResponseHeaderTimeout: readTimeout,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          256,
		MaxIdleConnsPerHost:   64,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &http.Client{Transport: transport}
}

// IsNotFound reports whether err is a storage-side 404.
func IsNotFound(err error) bool {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode == http.StatusNotFound
	}
	return false
}
