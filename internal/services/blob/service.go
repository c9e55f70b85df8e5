package blob

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/asad/blobgate/internal/logging"
)

// storageHealthTimeout bounds the readiness probe so a hung backend cannot
// stall the health endpoint.
const storageHealthTimeout = 3 * time.Second

// Service exposes the blob metadata HTTP API. Each request is a stateless
// cycle over the object store; the service holds no mutable state.
type Service struct {
	store     ObjectStore
	container string
	logger    logging.Logger
}

// NewService creates the blob HTTP service over the given store.
func NewService(store ObjectStore, container string, logger logging.Logger) *Service {
	return &Service{
		store:     store,
		container: container,
		logger:    logger,
	}
}

// Routes registers the blob API on a router mounted at /api/blobs.
// Blob names are path-like, so the name-scoped endpoints share a wildcard
// route and dispatch on the trailing /url, /view, and /metadata segments.
func (s *Service) Routes(r chi.Router) {
	r.Get("/", s.handleList)
	r.Post("/", s.handleUpload)
	r.Get("/*", s.handleGetDispatch)
	r.Put("/*", s.handleUpdateMetadata)
	r.Delete("/*", s.handleDelete)
}

// blobName extracts and decodes the wildcard blob name from the request.
func blobName(r *http.Request) string {
	raw := chi.URLParam(r, "*")
	if decoded, err := url.PathUnescape(raw); err == nil {
		return decoded
	}
	return raw
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	objects, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("failed to list blobs",
			logging.String("container", s.container),
			logging.ErrorField(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	items := make([]Item, 0, len(objects))
	for _, o := range objects {
		items = append(items, itemFromObject(s.container, o, false))
	}
	writeJSON(w, http.StatusOK, map[string]any{"blobs": items})
}

func (s *Service) handleGetDispatch(w http.ResponseWriter, r *http.Request) {
	name := blobName(r)
	switch {
	case strings.HasSuffix(name, "/url"):
		s.handleGetURL(w, r, strings.TrimSuffix(name, "/url"))
	case strings.HasSuffix(name, "/view"):
		s.handleView(w, r, strings.TrimSuffix(name, "/view"))
	default:
		s.handleGet(w, r, name)
	}
}

func (s *Service) handleGet(w http.ResponseWriter, r *http.Request, name string) {
	o, err := s.store.Get(r.Context(), name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("blob %s not found", name))
			return
		}
		s.logger.Error("failed to get blob",
			logging.String("blob", name),
			logging.ErrorField(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, itemFromObject(s.container, *o, true))
}

func (s *Service) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		writeError(w, http.StatusBadRequest, "Empty filename")
		return
	}

	contentType := GuessContentType(header.Filename, header.Header.Get("Content-Type"))
	if err := s.store.Upload(r.Context(), header.Filename, contentType, file); err != nil {
		s.logger.Error("failed to upload blob",
			logging.String("blob", header.Filename),
			logging.ErrorField(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("blob uploaded",
		logging.String("blob", header.Filename),
		logging.Int64("size", header.Size),
		logging.String("content_type", contentType),
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Uploaded successfully",
		"filename": header.Filename,
	})
}

func (s *Service) handleUpdateMetadata(w http.ResponseWriter, r *http.Request) {
	name := blobName(r)
	if !strings.HasSuffix(name, "/metadata") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	name = strings.TrimSuffix(name, "/metadata")

	metadata, ok := decodeMetadataBody(r.Body)
	if !ok {
		writeError(w, http.StatusBadRequest, "Metadata must be a dictionary")
		return
	}

	if err := s.store.SetMetadata(r.Context(), name, metadata); err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("blob %s not found", name))
			return
		}
		s.logger.Error("failed to update metadata",
			logging.String("blob", name),
			logging.ErrorField(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Metadata updated successfully"})
}

func (s *Service) handleDelete(w http.ResponseWriter, r *http.Request) {
	name := blobName(r)
	if err := s.store.Delete(r.Context(), name); err != nil {
		// Delete errors are not distinguished; missing blobs and backend
		// faults surface the same way.
		s.logger.Error("failed to delete blob",
			logging.String("blob", name),
			logging.ErrorField(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.logger.Info("blob deleted", logging.String("blob", name))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Blob deleted successfully"})
}

func (s *Service) handleGetURL(w http.ResponseWriter, r *http.Request, name string) {
	u, err := s.store.SignedURL(r.Context(), name)
	if err != nil {
		s.logger.Error("failed to issue signed url",
			logging.String("blob", name),
			logging.ErrorField(err),
		)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": u})
}

func (s *Service) handleView(w http.ResponseWriter, r *http.Request, name string) {
	o, rc, err := s.store.Open(r.Context(), name)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("blob %s not found", name))
			return
		}
		s.logger.Error("failed to open blob",
			logging.String("blob", name),
			logging.ErrorField(err),
		)
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	defer rc.Close()

	contentType := ResolveContentType(o.Name, o.Metadata, o.ContentType)
	filename := baseName(name)

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`inline; filename="%s"; filename*=UTF-8''%s`, filename, url.PathEscape(filename)))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	if o.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatInt(o.Size, 10))
	}
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		// Headers are gone; nothing to do but note the broken stream.
		s.logger.Warn("blob stream interrupted",
			logging.String("blob", name),
			logging.ErrorField(err),
		)
	}
}

// HandleStorageHealth is the readiness probe: it verifies the container is
// reachable within a bounded deadline.
func (s *Service) HandleStorageHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), storageHealthTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":    false,
			"error": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"container": s.container,
	})
}

// decodeMetadataBody parses {"metadata": {...}} and coerces every value to a
// string, since the storage backend only accepts string metadata. Returns
// ok=false for bodies that are not a string-keyed mapping.
func decodeMetadataBody(body io.Reader) (map[string]string, bool) {
	var payload struct {
		Metadata json.RawMessage `json:"metadata"`
	}
	dec := json.NewDecoder(body)
	if err := dec.Decode(&payload); err != nil {
		return nil, false
	}
	if len(payload.Metadata) == 0 || string(payload.Metadata) == "null" {
		return map[string]string{}, true
	}

	var raw map[string]any
	dec = json.NewDecoder(strings.NewReader(string(payload.Metadata)))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, false
	}

	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[k] = stringify(v)
	}
	return out, true
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
