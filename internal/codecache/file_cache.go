package codecache

import (
	"errors"
	"os"
	"path/filepath"
)

// FileCache persists routines in a directory, one file per Key.
type FileCache struct {
	dirPath string
}

// NewFileCache returns a FileCache writing into dir, creating it if needed.
func NewFileCache(dir string) (*FileCache, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileCache{dirPath: dir}, nil
}

func (f *FileCache) path(key Key) string {
	return filepath.Join(f.dirPath, key.String()+".bin")
}

// Get returns the content stored for key. A missing entry is ok=false and err=nil.
func (f *FileCache) Get(key Key) (content []byte, ok bool, err error) {
	content, err = os.ReadFile(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	} else if err != nil {
		return nil, false, err
	}
	return content, true, nil
}

// Add writes content for key, replacing any existing entry.
func (f *FileCache) Add(key Key, content []byte) error {
	return os.WriteFile(f.path(key), content, 0o600)
}

// Delete removes the entry for key. Deleting a missing entry is not an error.
func (f *FileCache) Delete(key Key) (err error) {
	err = os.Remove(f.path(key))
	if errors.Is(err, os.ErrNotExist) {
		err = nil
	}
	return
}
