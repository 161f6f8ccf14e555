// Package storage provides object storage for uploaded documents.
//
// The pipeline consumes the ObjectStore interface; the default backend is
// built on github.com/casdoor/oss so deployments can point the same code at
// a local folder, S3, or any other provider the oss library supports.
package storage

import (
	"context"
)

// FileInfo describes one stored object
type FileInfo struct {
	Name string `json:"name"` // Base name of the object
	Path string `json:"path"` // Full path within the bucket
	Size int64  `json:"size"`
}

// ObjectStore is the object storage collaborator for uploaded documents
type ObjectStore interface {
	// List returns objects under the given prefix, in lexical order
	List(ctx context.Context, prefix string) ([]FileInfo, error)

	// Download returns the full contents of the object at path
	Download(ctx context.Context, path string) ([]byte, error)

	// Delete removes a single object. Deleting a missing object is not an error.
	Delete(ctx context.Context, path string) error

	// DeleteAll removes every object under the given prefix, best-effort
	DeleteAll(ctx context.Context, prefix string) error
}

// Uploader is implemented by stores that accept writes. The pipeline never
// uploads; only the HTTP layer does.
type Uploader interface {
	Upload(ctx context.Context, path string, data []byte) error
}
