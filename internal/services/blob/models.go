package blob

import (
	"mime"
	"path"
	"strings"
	"time"
)

// fallbackContentType is served when no other source yields a type.
const fallbackContentType = "application/octet-stream"

// mimeTypeMetadataKey is the user-metadata key that overrides any
// backend-reported content type.
const mimeTypeMetadataKey = "mime_type"

// Object mirrors a blob's properties as reported by the storage backend.
// It is transient: rebuilt from the backend on every request, never cached.
type Object struct {
	// Name is the full path-like blob name, unique within the container.
	Name string

	// Size is the content length in bytes.
	Size int64

	// LastModified and CreationTime are nil when the backend omits them.
	LastModified *time.Time
	CreationTime *time.Time

	// ETag is the backend's opaque version token, empty when unknown.
	ETag string

	// Metadata holds the user-supplied key/value pairs.
	Metadata map[string]string

	// Content settings reported by the backend; any may be empty.
	ContentType     string
	ContentEncoding string
	ContentLanguage string
	CacheControl    string

	// BlobType is the backend's blob kind label, defaulting to BlockBlob.
	BlobType string
}

// Item is the JSON representation of an object returned by the list and get
// endpoints. Field names match the established API contract.
type Item struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Size            int64             `json:"size"`
	Type            string            `json:"type"`
	LastModified    *string           `json:"lastModified"`
	Metadata        map[string]string `json:"metadata"`
	BlobPath        string            `json:"blob_path"`
	ETag            *string           `json:"etag"`
	ContentType     string            `json:"contentType"`
	ContentEncoding string            `json:"contentEncoding"`
	ContentLanguage string            `json:"contentLanguage"`
	CacheControl    string            `json:"cacheControl"`
	BlobType        string            `json:"blobType"`
	CreationTime    *string           `json:"creationTime,omitempty"`
}

// itemFromObject converts a backend object into its API representation.
// withCreation includes the creationTime field (the get endpoint reports it,
// the list endpoint does not).
func itemFromObject(containerName string, o Object, withCreation bool) Item {
	contentType := ResolveContentType(o.Name, o.Metadata, o.ContentType)

	metadata := o.Metadata
	if metadata == nil {
		metadata = map[string]string{}
	}

	blobType := o.BlobType
	if blobType == "" {
		blobType = "BlockBlob"
	}

	item := Item{
		ID:              o.Name,
		Name:            baseName(o.Name),
		Size:            o.Size,
		Type:            contentType,
		LastModified:    formatTime(o.LastModified),
		Metadata:        metadata,
		BlobPath:        containerName + "/" + o.Name,
		ETag:            optional(o.ETag),
		ContentType:     contentType,
		ContentEncoding: o.ContentEncoding,
		ContentLanguage: o.ContentLanguage,
		CacheControl:    o.CacheControl,
		BlobType:        blobType,
	}
	if withCreation {
		item.CreationTime = formatTime(o.CreationTime)
	}
	return item
}

// ResolveContentType applies the content-type precedence shared by the list,
// get, and view operations: explicit mime_type metadata, then the backend's
// content settings, then a guess from the filename extension, then the
// octet-stream fallback.
func ResolveContentType(name string, metadata map[string]string, settingsType string) string {
	if ct := metadata[mimeTypeMetadataKey]; ct != "" {
		return ct
	}
	if settingsType != "" {
		return settingsType
	}
	if ct := mime.TypeByExtension(path.Ext(name)); ct != "" {
		return ct
	}
	return fallbackContentType
}

// GuessContentType resolves an upload's content type from its filename
// extension, falling back to the client-declared type, then octet-stream.
func GuessContentType(filename, declared string) string {
	if ct := mime.TypeByExtension(path.Ext(filename)); ct != "" {
		return ct
	}
	if declared != "" {
		return declared
	}
	return fallbackContentType
}

// baseName returns the final path segment of a blob name.
func baseName(name string) string {
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
