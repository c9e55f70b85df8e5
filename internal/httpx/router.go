package httpx

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/asad/blobgate/internal/config"
	"github.com/asad/blobgate/internal/logging"
	"github.com/asad/blobgate/internal/services/blob"
)

// apiVersion is the version string surfaced by the service descriptor.
const apiVersion = "2.0"

// NewRouter assembles the HTTP surface: middleware stack, CORS, fixed
// security headers, health endpoints, and the blob API.
func NewRouter(cfg *config.Config, logger logging.Logger, blobSvc *blob.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLoggingMiddleware(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:         300,
	}))
	r.Use(securityHeaders)

	r.Get("/", handleIndex)
	r.Get("/health", handleHealth)
	r.Get("/health/storage", blobSvc.HandleStorageHealth)

	r.Route("/api/blobs", blobSvc.Routes)

	return r
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]any{
		"message": "Azure Blob Metadata API",
		"version": apiVersion,
		"endpoints": map[string]string{
			"list_blobs":      "GET /api/blobs",
			"get_blob":        "GET /api/blobs/<name>",
			"upload_blob":     "POST /api/blobs",
			"update_metadata": "PUT /api/blobs/<name>/metadata",
			"delete_blob":     "DELETE /api/blobs/<name>",
			"get_blob_url":    "GET /api/blobs/<name>/url",
			"view_blob":       "GET /api/blobs/<name>/view",
		},
	})
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"ok":true}`))
}

// requestLoggingMiddleware logs every request with method, path, status,
// and latency.
func requestLoggingMiddleware(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", ww.Status()),
				logging.Duration("latency", time.Since(start)),
				logging.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
