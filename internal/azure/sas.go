package azure

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/sas"

	"github.com/asad/blobgate/internal/config"
)

// ErrNoAccountKey is returned when no account key can be resolved for SAS
// signing. Shared-key SAS is the only scheme this service supports, so
// without a key no signed URL is possible.
var ErrNoAccountKey = errors.New("no account key available for SAS generation")

// ResolveAccountKey returns the key used to sign SAS tokens: the explicit
// ACCOUNT_KEY override when set, otherwise the AccountKey field of the
// connection string. Empty when neither is available.
func ResolveAccountKey(cfg *config.Config) string {
	if cfg.AccountKey != "" {
		return cfg.AccountKey
	}
	conn := cfg.ConnectionString
	if strings.HasPrefix(conn, devStoragePrefix) {
		return emulatorAccountKey
	}
	return ParseConnectionString(conn)["accountkey"]
}

// IssueSASURL mints a read-only signed URL for a single blob, valid for the
// configured number of minutes from now. The token is scoped to exactly the
// configured container and the named blob.
func IssueSASURL(cfg *config.Config, blobName string) (string, error) {
	ep := ResolveEndpoint(cfg)
	key := ResolveAccountKey(cfg)
	if ep.AccountName == "" || key == "" {
		return "", ErrNoAccountKey
	}

	cred, err := azblob.NewSharedKeyCredential(ep.AccountName, key)
	if err != nil {
		return "", fmt.Errorf("build shared key credential: %w", err)
	}

	expiry := time.Now().UTC().Add(time.Duration(cfg.SASExpiryMinutes) * time.Minute)
	perms := sas.BlobPermissions{Read: true}
	values := sas.BlobSignatureValues{
		Protocol:      sas.ProtocolHTTPSandHTTP,
		ExpiryTime:    expiry,
		Permissions:   perms.String(),
		ContainerName: cfg.Container,
		BlobName:      blobName,
	}

	params, err := values.SignWithSharedKey(cred)
	if err != nil {
		return "", fmt.Errorf("sign sas token: %w", err)
	}

	return fmt.Sprintf("%s/%s/%s?%s", ep.BaseURL, cfg.Container, escapeBlobPath(blobName), params.Encode()), nil
}

// escapeBlobPath escapes each path segment of a blob name individually so
// the slash separators survive in the final URL.
func escapeBlobPath(name string) string {
	segments := strings.Split(strings.TrimPrefix(name, "/"), "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return strings.Join(segments, "/")
}
