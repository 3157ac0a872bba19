package snapshot

import (
	"context"
	"fmt"
	"net/url"
	"path/filepath"

	"github.com/deploymenttheory/go-batch-runner/internal/common/errors"
	"github.com/deploymenttheory/go-batch-runner/internal/common/fsutil"
)

// FileCache keeps one file per key under Dir
type FileCache struct {
	Dir string
}

// NewFileCache creates Dir when needed
func NewFileCache(dir string) (*FileCache, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: snapshot directory is empty", errors.ErrInvalidArgument)
	}
	if err := fsutil.CreateDirIfNotExists(dir); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	return &FileCache{Dir: dir}, nil
}

func (c *FileCache) path(key string) string {
	return filepath.Join(c.Dir, url.QueryEscape(key)+".snap")
}

// Get reads the blob stored under key
func (c *FileCache) Get(_ context.Context, key string) ([]byte, error) {
	path := c.path(key)
	if !fsutil.FileExists(path) {
		return nil, fmt.Errorf("%w: %s", errors.ErrSnapshotNotFound, key)
	}
	data, err := fsutil.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrFileReadError, err.Error())
	}
	return data, nil
}

// Put replaces the blob stored under key
func (c *FileCache) Put(_ context.Context, key string, data []byte) error {
	if err := fsutil.WriteFile(c.path(key), data, 0600); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrFileWriteError, err.Error())
	}
	return nil
}

// Delete removes key; a missing key is not an error
func (c *FileCache) Delete(_ context.Context, key string) error {
	return fsutil.DeleteFile(c.path(key))
}
