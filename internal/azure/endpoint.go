package azure

import (
	"fmt"
	"strings"

	"github.com/asad/blobgate/internal/config"
)

const (
	// devStoragePrefix is the well-known development-storage shortcut.
	devStoragePrefix = "UseDevelopmentStorage=true"

	// emulatorAccount is the fixed account name served by Azurite.
	emulatorAccount = "devstoreaccount1"

	// emulatorAccountKey is Azurite's documented well-known key.
	emulatorAccountKey = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="

	// productionDomain is the blob endpoint domain of the production service.
	productionDomain = "blob.core.windows.net"
)

// EndpointContext describes how the configured storage endpoint should be
// addressed: whether it is the local emulator or the production service, the
// storage account name, and the public base URL (account segment included)
// used when composing blob and signed URLs.
type EndpointContext struct {
	IsEmulator   bool
	IsProduction bool
	AccountName  string
	BaseURL      string
}

// ParseConnectionString splits a storage connection descriptor into its
// semicolon-separated key/value pairs. Keys are lowercased so lookups are
// case-insensitive; malformed pairs are skipped.
func ParseConnectionString(conn string) map[string]string {
	parts := make(map[string]string)
	for _, p := range strings.Split(conn, ";") {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			continue
		}
		parts[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return parts
}

// NormalizeConnectionString expands the development-storage shortcut into a
// full Azurite connection string. The SDK's connection-string parser does not
// understand the shortcut on its own.
func NormalizeConnectionString(conn string) string {
	if !strings.HasPrefix(conn, devStoragePrefix) {
		return conn
	}
	return fmt.Sprintf(
		"DefaultEndpointsProtocol=http;AccountName=%s;AccountKey=%s;BlobEndpoint=http://127.0.0.1:10000/%s;",
		emulatorAccount, emulatorAccountKey, emulatorAccount,
	)
}

// AccountName extracts the storage account name from the connection string.
func AccountName(conn string) string {
	if strings.HasPrefix(conn, devStoragePrefix) {
		return emulatorAccount
	}
	return ParseConnectionString(conn)["accountname"]
}

// IsEmulator reports whether the connection descriptor targets a local
// Azurite instance: the dev-storage shortcut, the well-known emulator
// account, or an emulator host marker in the blob endpoint.
func IsEmulator(conn string) bool {
	if strings.HasPrefix(conn, devStoragePrefix) {
		return true
	}
	parts := ParseConnectionString(conn)
	if strings.ToLower(parts["accountname"]) == emulatorAccount {
		return true
	}
	blobEndpoint := strings.ToLower(parts["blobendpoint"])
	return strings.Contains(blobEndpoint, "azurite") || strings.Contains(blobEndpoint, "127.0.0.1:10000")
}

// IsProduction reports whether the target is the production cloud service.
// A deployment-platform marker or a production blob domain in the connection
// string wins over any emulator classification.
func IsProduction(cfg *config.Config) bool {
	if cfg.ProductionMarker {
		return true
	}
	return strings.Contains(strings.ToLower(cfg.ConnectionString), productionDomain)
}

// ResolveEndpoint derives the endpoint context from the configuration. It is
// a pure function of the Config and is cheap enough to call on every request.
func ResolveEndpoint(cfg *config.Config) EndpointContext {
	account := AccountName(cfg.ConnectionString)
	emulator := IsEmulator(cfg.ConnectionString)
	production := IsProduction(cfg)
	return EndpointContext{
		IsEmulator:   emulator,
		IsProduction: production,
		AccountName:  account,
		BaseURL:      resolveBaseURL(cfg, account, emulator, production),
	}
}

// resolveBaseURL picks the public base URL for blob access. An explicit
// override is honored but upgraded to HTTPS unless it targets a loopback
// host; otherwise the emulator gets plain HTTP on the loopback and
// everything else gets the production HTTPS endpoint.
func resolveBaseURL(cfg *config.Config, account string, emulator, production bool) string {
	if base := cfg.PublicBlobBaseURL; base != "" {
		base = strings.TrimRight(base, "/")
		switch {
		case !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://"):
			return "https://" + base + "/" + account
		case strings.HasPrefix(base, "http://") && !isLoopback(base):
			return "https://" + strings.TrimPrefix(base, "http://") + "/" + account
		default:
			return base + "/" + account
		}
	}

	if emulator && !production {
		return fmt.Sprintf("http://127.0.0.1:%s/%s", cfg.AzuriteBlobHostPort, account)
	}

	return fmt.Sprintf("https://%s.%s", account, productionDomain)
}

func isLoopback(base string) bool {
	return strings.Contains(base, "localhost") || strings.Contains(base, "127.0.0.1")
}
