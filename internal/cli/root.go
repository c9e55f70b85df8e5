package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/asad/blobgate/internal/config"
	"github.com/asad/blobgate/internal/httpx"
	"github.com/asad/blobgate/internal/logging"
	"github.com/asad/blobgate/internal/services/blob"
)

var (
	// Version is set at build time via ldflags.
	// Example: go build -ldflags "-X github.com/asad/blobgate/internal/cli.Version=1.0.0"
	Version = "dev"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "blobgate",
	Short: "HTTP facade over Azure Blob Storage",
	Long: `Blobgate is a thin HTTP API over an Azure Blob Storage container.
It lists, uploads, deletes, and streams blobs, manages user metadata on
them, and mints short-lived read-only signed URLs. It works against both
the production service and a local Azurite emulator.`,
}

// serveCmd starts the API server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the blobgate API server",
	Long: `Start the HTTP server on the configured port. Storage connectivity
is checked lazily: the server boots even when the storage backend is not
reachable and surfaces errors per request.`,
	RunE: runServe,
}

// versionCmd prints the version number.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("blobgate version %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute is the entry point for the CLI. It should be called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runServe initializes dependencies and starts the HTTP server.
func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("starting blobgate",
		logging.String("version", Version),
		logging.Int("port", cfg.Port),
		logging.String("container", cfg.Container),
		logging.String("log_level", cfg.LogLevel),
	)
	if cfg.ConnectionString == "" {
		logger.Warn("AZURE_STORAGE_CONNECTION_STRING is not set; storage operations will fail until it is configured")
	}

	store := blob.NewAzureStore(cfg, logger)
	service := blob.NewService(store, cfg.Container, logger)
	router := httpx.NewRouter(cfg, logger, service)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("listening", logging.String("address", addr))

	if err := http.ListenAndServe(addr, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
