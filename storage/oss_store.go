package storage

import (
	"bytes"
	"context"
	"io"
	"sort"
	"strings"

	"github.com/casdoor/oss"
	"github.com/casdoor/oss/filesystem"
	"github.com/casdoor/oss/s3"

	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
)

// Config selects and configures the storage backend
type Config struct {
	Provider string `mapstructure:"provider"` // "filesystem" or "aws-s3"
	ID       string `mapstructure:"id"`
	Secret   string `mapstructure:"secret"`
	Region   string `mapstructure:"region"`
	Bucket   string `mapstructure:"bucket"`
	Endpoint string `mapstructure:"endpoint"`
}

// OSSStore adapts an oss.StorageInterface to the ObjectStore interface
type OSSStore struct {
	backend oss.StorageInterface
}

// New creates an ObjectStore for the configured provider
func New(c *Config) (*OSSStore, error) {
	switch c.Provider {
	case "", "filesystem":
		folder := c.Bucket
		if folder == "" {
			folder = "uploads"
		}
		return &OSSStore{backend: filesystem.New(folder)}, nil
	case "aws-s3":
		return &OSSStore{backend: s3.New(&s3.Config{
			AccessID:  c.ID,
			AccessKey: c.Secret,
			Region:    c.Region,
			Bucket:    c.Bucket,
			Endpoint:  c.Endpoint,
		})}, nil
	default:
		return nil, errors.Newf("unsupported storage provider: %s", c.Provider)
	}
}

// NewWithBackend wraps an existing oss backend
func NewWithBackend(backend oss.StorageInterface) *OSSStore {
	return &OSSStore{backend: backend}
}

// List returns objects under the given prefix, in lexical order
func (s *OSSStore) List(ctx context.Context, prefix string) ([]FileInfo, error) {
	objects, err := s.backend.List(prefix)
	if err != nil {
		return nil, errors.Wrapf(err, "list objects under %q", prefix)
	}

	infos := make([]FileInfo, 0, len(objects))
	for _, obj := range objects {
		if obj == nil {
			continue
		}
		name := obj.Name
		if name == "" {
			parts := strings.Split(strings.TrimSuffix(obj.Path, "/"), "/")
			name = parts[len(parts)-1]
		}
		infos = append(infos, FileInfo{
			Name: name,
			Path: obj.Path,
		})
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].Path < infos[j].Path })
	return infos, nil
}

// Upload stores data at path, overwriting any existing object
func (s *OSSStore) Upload(ctx context.Context, path string, data []byte) error {
	if _, err := s.backend.Put(path, bytes.NewReader(data)); err != nil {
		return errors.Wrapf(err, "put object %q", path)
	}
	return nil
}

// Download returns the full contents of the object at path
func (s *OSSStore) Download(ctx context.Context, path string) ([]byte, error) {
	stream, err := s.backend.GetStream(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open object %q", path)
	}
	defer stream.Close()

	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, errors.Wrapf(err, "read object %q", path)
	}
	return data, nil
}

// Delete removes a single object
func (s *OSSStore) Delete(ctx context.Context, path string) error {
	if err := s.backend.Delete(path); err != nil {
		return errors.Wrapf(err, "delete object %q", path)
	}
	return nil
}

// DeleteAll removes every object under the given prefix, best-effort:
// the first listing error aborts, but individual delete failures are
// collected and returned together
func (s *OSSStore) DeleteAll(ctx context.Context, prefix string) error {
	infos, err := s.List(ctx, prefix)
	if err != nil {
		return err
	}

	var failed []string
	for _, info := range infos {
		if err := s.backend.Delete(info.Path); err != nil {
			failed = append(failed, info.Path)
		}
	}

	if len(failed) > 0 {
		return errors.Newf("failed to delete %d objects under %q: %s",
			len(failed), prefix, strings.Join(failed, ", "))
	}
	return nil
}
