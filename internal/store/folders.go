package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"caprev/internal/model"
	"caprev/internal/review"
)

// FolderStore keeps every folder in <root>/folders.json.
type FolderStore struct {
	path string
	mu   sync.Mutex
}

// NewFolderStore creates root if needed.
func NewFolderStore(root string) (*FolderStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &FolderStore{path: filepath.Join(root, "folders.json")}, nil
}

func (s *FolderStore) load() ([]*model.Folder, error) {
	folders := []*model.Folder{}
	if _, err := readJSON(s.path, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// List returns folders in stored order.
func (s *FolderStore) List(ctx context.Context) ([]*model.Folder, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Get returns the folder with id, or *review.NotFoundError.
func (s *FolderStore) Get(ctx context.Context, id string) (*model.Folder, error) {
	folders, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, f := range folders {
		if f.ID == id {
			return f, nil
		}
	}
	return nil, &review.NotFoundError{Kind: "folder", ID: id}
}

// Create appends a folder.
func (s *FolderStore) Create(ctx context.Context, folder *model.Folder) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	folders, err := s.load()
	if err != nil {
		return err
	}
	for _, f := range folders {
		if f.ID == folder.ID {
			return fmt.Errorf("folder already exists: %s", folder.ID)
		}
	}
	return writeJSON(s.path, append(folders, folder))
}

// Delete removes a folder.
func (s *FolderStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	folders, err := s.load()
	if err != nil {
		return err
	}
	for i, f := range folders {
		if f.ID == id {
			return writeJSON(s.path, append(folders[:i], folders[i+1:]...))
		}
	}
	return &review.NotFoundError{Kind: "folder", ID: id}
}

// Compile-time check that FolderStore implements review.FolderStore.
var _ review.FolderStore = (*FolderStore)(nil)
