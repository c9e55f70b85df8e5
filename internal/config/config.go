package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
)

// Config holds the application configuration loaded from environment variables.
// It is constructed once at startup and passed explicitly to every component;
// nothing reads the environment after Load returns.
type Config struct {
	// Port is the HTTP port the API server listens on.
	Port int `envconfig:"PORT" default:"8080"`

	// ConnectionString is the Azure Storage connection descriptor. It may be
	// empty at startup: the service still boots and surfaces a configuration
	// error on the first operation that needs storage.
	ConnectionString string `envconfig:"AZURE_STORAGE_CONNECTION_STRING"`

	// Container is the blob container all operations target.
	// BLOB_CONTAINER wins over AZURE_STORAGE_CONTAINER; default "uploads".
	Container string `ignored:"true"`

	// AccountKey optionally overrides the account key parsed from the
	// connection string when minting SAS tokens.
	AccountKey string `envconfig:"ACCOUNT_KEY"`

	// SASExpiryMinutes is the lifetime of issued signed URLs.
	SASExpiryMinutes int `envconfig:"SAS_EXPIRY_MINUTES" default:"5"`

	// PublicBlobBaseURL overrides the derived blob base URL, useful when
	// Azurite runs on a non-default host/port behind a proxy.
	PublicBlobBaseURL string `envconfig:"PUBLIC_BLOB_BASE_URL"`

	// AzuriteBlobHostPort is the port used for emulator base URLs.
	AzuriteBlobHostPort string `envconfig:"AZURITE_BLOB_HOST_PORT" default:"10000"`

	// LogLevel controls the verbosity of logging (debug, info, warn, error).
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// ProductionMarker is set when a recognized cloud-platform indicator
	// variable is present (Container Apps, App Service). It forces
	// production classification during endpoint resolution.
	ProductionMarker bool `ignored:"true"`
}

// productionMarkerVars are the deployment-environment indicators set by
// Azure Container Apps and App Service.
var productionMarkerVars = []string{
	"CONTAINER_APP_NAME",
	"CONTAINER_APP_ENV_DNS_SUFFIX",
	"WEBSITE_SITE_NAME",
	"WEBSITE_INSTANCE_ID",
	"APPSETTING_WEBSITE_SITE_NAME",
}

// Load creates a Config instance by reading environment variables.
// Missing values are replaced with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	// BLOB_CONTAINER takes precedence over the legacy AZURE_STORAGE_CONTAINER.
	cfg.Container = os.Getenv("BLOB_CONTAINER")
	if cfg.Container == "" {
		cfg.Container = os.Getenv("AZURE_STORAGE_CONTAINER")
	}
	if cfg.Container == "" {
		cfg.Container = "uploads"
	}

	for _, v := range productionMarkerVars {
		if os.Getenv(v) != "" {
			cfg.ProductionMarker = true
			break
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate performs basic validation on the configuration.
// Returns an error if any invalid settings are detected.
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port >= 65536 {
		return fmt.Errorf("invalid PORT: %d (must be 1-65535)", c.Port)
	}
	if c.SASExpiryMinutes <= 0 {
		return fmt.Errorf("invalid SAS_EXPIRY_MINUTES: %d (must be positive)", c.SASExpiryMinutes)
	}
	if c.Container == "" {
		return fmt.Errorf("container name cannot be empty")
	}
	return nil
}
