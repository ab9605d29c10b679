package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FileBlob stores the snapshot document in a local file. Writes go to a temp
// file in the same directory and are renamed into place.
type FileBlob struct {
	path string
}

// NewFileBlob creates a FileBlob, creating the parent directory
func NewFileBlob(path string) (*FileBlob, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	return &FileBlob{path: path}, nil
}

// NewFileStore is a SnapshotStore over a FileBlob at path
func NewFileStore(path string, opts ...SnapshotStoreOption) (*SnapshotStore, error) {
	blob, err := NewFileBlob(path)
	if err != nil {
		return nil, err
	}
	return NewSnapshotStore(blob, opts...), nil
}

// Path returns the snapshot file path
func (b *FileBlob) Path() string {
	return b.path
}

// Read implements Blob
func (b *FileBlob) Read(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

// Write implements Blob
func (b *FileBlob) Write(_ context.Context, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, b.path)
}

// Ping checks that the snapshot directory exists
func (b *FileBlob) Ping(_ context.Context) error {
	info, err := os.Stat(filepath.Dir(b.path))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", filepath.Dir(b.path))
	}
	return nil
}
