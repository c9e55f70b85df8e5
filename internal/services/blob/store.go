package blob

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned when the named blob does not exist.
var ErrNotFound = errors.New("blob not found")

// ObjectStore defines the storage operations the HTTP service needs.
// The Azure-backed implementation lives in azure_store.go; tests use an
// in-memory fake.
type ObjectStore interface {
	// List returns all objects in the configured container, in backend
	// iteration order.
	List(ctx context.Context) ([]Object, error)

	// Get fetches a single object's full properties.
	Get(ctx context.Context, name string) (*Object, error)

	// Upload stores body under name, replacing any existing content.
	Upload(ctx context.Context, name, contentType string, body io.Reader) error

	// SetMetadata replaces the object's entire metadata mapping.
	SetMetadata(ctx context.Context, name string, metadata map[string]string) error

	// Delete removes the object.
	Delete(ctx context.Context, name string) error

	// Open returns the object's properties and a reader over its content.
	// The caller must close the reader.
	Open(ctx context.Context, name string) (*Object, io.ReadCloser, error)

	// SignedURL mints a read-only, time-limited URL for the object.
	SignedURL(ctx context.Context, name string) (string, error)

	// Ping verifies the container is reachable. Used by the readiness probe.
	Ping(ctx context.Context) error
}
