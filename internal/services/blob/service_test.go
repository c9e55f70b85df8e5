package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asad/blobgate/internal/logging"
)

// fakeStore is an in-memory ObjectStore for handler tests.
type fakeStore struct {
	objects map[string]*storedObject
	listErr error
	pingErr error
	delErr  error
	url     string
	urlErr  error
}

type storedObject struct {
	object  Object
	content []byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: map[string]*storedObject{}, url: "https://example.test/sas"}
}

func (f *fakeStore) put(o Object, content []byte) {
	o.Size = int64(len(content))
	f.objects[o.Name] = &storedObject{object: o, content: content}
}

func (f *fakeStore) List(ctx context.Context) ([]Object, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []Object
	for _, so := range f.objects {
		out = append(out, so.object)
	}
	return out, nil
}

func (f *fakeStore) Get(ctx context.Context, name string) (*Object, error) {
	so, ok := f.objects[name]
	if !ok {
		return nil, ErrNotFound
	}
	o := so.object
	return &o, nil
}

func (f *fakeStore) Upload(ctx context.Context, name, contentType string, body io.Reader) error {
	content, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.put(Object{Name: name, ContentType: contentType, Metadata: map[string]string{}}, content)
	return nil
}

func (f *fakeStore) SetMetadata(ctx context.Context, name string, metadata map[string]string) error {
	so, ok := f.objects[name]
	if !ok {
		return ErrNotFound
	}
	so.object.Metadata = metadata
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, name string) error {
	if f.delErr != nil {
		return f.delErr
	}
	if _, ok := f.objects[name]; !ok {
		return errors.New("blob does not exist")
	}
	delete(f.objects, name)
	return nil
}

func (f *fakeStore) Open(ctx context.Context, name string) (*Object, io.ReadCloser, error) {
	so, ok := f.objects[name]
	if !ok {
		return nil, nil, ErrNotFound
	}
	o := so.object
	return &o, io.NopCloser(bytes.NewReader(so.content)), nil
}

func (f *fakeStore) SignedURL(ctx context.Context, name string) (string, error) {
	if f.urlErr != nil {
		return "", f.urlErr
	}
	return f.url, nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	return f.pingErr
}

var _ ObjectStore = (*fakeStore)(nil)

func setupService(t *testing.T) (*fakeStore, http.Handler) {
	t.Helper()
	logger, err := logging.NewLogger("error")
	require.NoError(t, err)

	store := newFakeStore()
	svc := NewService(store, "uploads", logger)

	r := chi.NewRouter()
	r.Get("/health/storage", svc.HandleStorageHealth)
	r.Route("/api/blobs", svc.Routes)
	return store, r
}

func doRequest(t *testing.T, h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func multipartUpload(t *testing.T, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestUploadThenList(t *testing.T) {
	_, h := setupService(t)

	content := []byte("hello blob storage")
	body, contentType := multipartUpload(t, "test.txt", content)

	req := httptest.NewRequest("POST", "/api/blobs", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, "Uploaded successfully", resp["message"])
	assert.Equal(t, "test.txt", resp["filename"])

	w = doRequest(t, h, "GET", "/api/blobs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var listResp struct {
		Blobs []Item `json:"blobs"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&listResp))
	require.Len(t, listResp.Blobs, 1)
	assert.True(t, strings.HasSuffix(listResp.Blobs[0].ID, "test.txt"))
	assert.Equal(t, int64(len(content)), listResp.Blobs[0].Size)
}

func TestUpload_NoFile(t *testing.T) {
	_, h := setupService(t)

	w := doRequest(t, h, "POST", "/api/blobs", strings.NewReader("not multipart"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No file provided", decodeBody(t, w)["error"])
}

func TestUpload_ContentTypeFromExtension(t *testing.T) {
	store, h := setupService(t)

	body, contentType := multipartUpload(t, "report.pdf", []byte("%PDF-1.4"))
	req := httptest.NewRequest("POST", "/api/blobs", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", store.objects["report.pdf"].object.ContentType)
}

func TestGet(t *testing.T) {
	store, h := setupService(t)
	modified := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	store.put(Object{
		Name:         "docs/readme.txt",
		LastModified: &modified,
		CreationTime: &modified,
		ETag:         "etag-1",
		Metadata:     map[string]string{"owner": "bob"},
		ContentType:  "text/plain",
	}, []byte("hi"))

	w := doRequest(t, h, "GET", "/api/blobs/docs/readme.txt", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var item Item
	require.NoError(t, json.NewDecoder(w.Body).Decode(&item))
	assert.Equal(t, "docs/readme.txt", item.ID)
	assert.Equal(t, "readme.txt", item.Name)
	assert.Equal(t, "uploads/docs/readme.txt", item.BlobPath)
	assert.Equal(t, "text/plain", item.Type)
	assert.NotNil(t, item.CreationTime)
}

func TestGet_NotFound(t *testing.T) {
	_, h := setupService(t)

	w := doRequest(t, h, "GET", "/api/blobs/missing.txt", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, decodeBody(t, w)["error"], "missing.txt")
}

func TestUpdateMetadata(t *testing.T) {
	store, h := setupService(t)
	store.put(Object{Name: "a.txt", Metadata: map[string]string{}}, []byte("x"))

	body := strings.NewReader(`{"metadata": {"label": "alpha", "count": 3, "flag": true}}`)
	w := doRequest(t, h, "PUT", "/api/blobs/a.txt/metadata", body)
	require.Equal(t, http.StatusOK, w.Code)

	// Values are coerced to strings before hitting the backend.
	md := store.objects["a.txt"].object.Metadata
	assert.Equal(t, "alpha", md["label"])
	assert.Equal(t, "3", md["count"])
	assert.Equal(t, "true", md["flag"])
}

func TestUpdateMetadata_NonMapping(t *testing.T) {
	store, h := setupService(t)
	store.put(Object{Name: "a.txt"}, []byte("x"))

	for _, body := range []string{
		`{"metadata": [1, 2, 3]}`,
		`{"metadata": "nope"}`,
		`[]`,
		`not json`,
	} {
		w := doRequest(t, h, "PUT", "/api/blobs/a.txt/metadata", strings.NewReader(body))
		assert.Equal(t, http.StatusBadRequest, w.Code, "body %q", body)
	}
}

func TestUpdateMetadata_NotFound(t *testing.T) {
	_, h := setupService(t)

	body := strings.NewReader(`{"metadata": {"k": "v"}}`)
	w := doRequest(t, h, "PUT", "/api/blobs/missing.txt/metadata", body)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDelete(t *testing.T) {
	store, h := setupService(t)
	store.put(Object{Name: "a.txt"}, []byte("x"))

	w := doRequest(t, h, "DELETE", "/api/blobs/a.txt", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Blob deleted successfully", decodeBody(t, w)["message"])
	assert.Empty(t, store.objects)
}

func TestDelete_ErrorsAreOpaque(t *testing.T) {
	_, h := setupService(t)

	// The delete path does not distinguish missing blobs from backend faults.
	w := doRequest(t, h, "DELETE", "/api/blobs/missing.txt", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetURL(t *testing.T) {
	store, h := setupService(t)
	store.url = "https://acct.blob.core.windows.net/uploads/a.txt?sig=x"

	w := doRequest(t, h, "GET", "/api/blobs/a.txt/url", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, store.url, decodeBody(t, w)["url"])
}

func TestGetURL_ConfigError(t *testing.T) {
	store, h := setupService(t)
	store.urlErr = errors.New("no account key available for SAS generation")

	w := doRequest(t, h, "GET", "/api/blobs/a.txt/url", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestView(t *testing.T) {
	store, h := setupService(t)
	content := []byte("%PDF-1.4 fake")
	store.put(Object{Name: "reports/q1.pdf", Metadata: map[string]string{}}, content)

	w := doRequest(t, h, "GET", "/api/blobs/reports/q1.pdf/view", nil)
	require.Equal(t, http.StatusOK, w.Code)

	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), `inline; filename="q1.pdf"`)
	assert.Equal(t, "public, max-age=3600", w.Header().Get("Cache-Control"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, content, w.Body.Bytes())
}

func TestView_NotFound(t *testing.T) {
	_, h := setupService(t)

	w := doRequest(t, h, "GET", "/api/blobs/missing.pdf/view", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// The same content-type precedence must hold on list, get, and view.
func TestContentTypeConsistency(t *testing.T) {
	store, h := setupService(t)
	store.put(Object{Name: "report.pdf", Metadata: map[string]string{}}, []byte("x"))

	w := doRequest(t, h, "GET", "/api/blobs", nil)
	var listResp struct {
		Blobs []Item `json:"blobs"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&listResp))
	require.Len(t, listResp.Blobs, 1)
	assert.Equal(t, "application/pdf", listResp.Blobs[0].Type)

	w = doRequest(t, h, "GET", "/api/blobs/report.pdf", nil)
	var item Item
	require.NoError(t, json.NewDecoder(w.Body).Decode(&item))
	assert.Equal(t, "application/pdf", item.Type)

	w = doRequest(t, h, "GET", "/api/blobs/report.pdf/view", nil)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestList_BackendError(t *testing.T) {
	store, h := setupService(t)
	store.listErr = errors.New("backend unreachable")

	w := doRequest(t, h, "GET", "/api/blobs", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "backend unreachable", decodeBody(t, w)["error"])
}

func TestStorageHealth(t *testing.T) {
	store, h := setupService(t)

	w := doRequest(t, h, "GET", "/health/storage", nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody(t, w)
	assert.Equal(t, true, resp["ok"])
	assert.Equal(t, "uploads", resp["container"])

	store.pingErr = errors.New("connection refused")
	w = doRequest(t, h, "GET", "/health/storage", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp = decodeBody(t, w)
	assert.Equal(t, false, resp["ok"])
	assert.Contains(t, resp["error"], "connection refused")
}
