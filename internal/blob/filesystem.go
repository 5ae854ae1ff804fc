package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"caprev/internal/review"
)

// FileSystemStore keeps each blob as a file directly under root.
type FileSystemStore struct {
	root string
}

// NewFileSystemStore creates a filesystem blob store rooted at root.
func NewFileSystemStore(root string) (*FileSystemStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}
	return &FileSystemStore{root: root}, nil
}

// Path returns the on-disk location of ref, for callers such as ffmpeg that
// need a file. It fails for refs that could escape root.
func (s *FileSystemStore) Path(ref string) (string, error) {
	if !validRef.MatchString(ref) {
		return "", &review.NotFoundError{Kind: "blob", ID: ref}
	}
	return filepath.Join(s.root, ref), nil
}

// Put writes the payload atomically (temp file + rename).
func (s *FileSystemStore) Put(ctx context.Context, name string, r io.Reader, size int64) (string, error) {
	ref, err := refFromName(name)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	tmpFile, err := os.CreateTemp(s.root, ".tmp-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return "", fmt.Errorf("failed to write data: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if size >= 0 && written != size {
		return "", fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
	}

	if err := os.Rename(tmpPath, filepath.Join(s.root, ref)); err != nil {
		return "", fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return ref, nil
}

// Open opens the blob file.
func (s *FileSystemStore) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	p, err := s.Path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &review.NotFoundError{Kind: "blob", ID: ref}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

// Delete removes the blob file. Missing files are ignored.
func (s *FileSystemStore) Delete(ctx context.Context, ref string) error {
	p, err := s.Path(ref)
	if err != nil {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

// Compile-time check that FileSystemStore implements review.BlobStore.
var _ review.BlobStore = (*FileSystemStore)(nil)
