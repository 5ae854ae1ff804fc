package review

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"caprev/internal/model"
)

// ErrEmptyFolderName is returned when creating a folder with a blank name.
var ErrEmptyFolderName = errors.New("folder name is required")

// ListFolders returns all folders, oldest first.
func (s *Service) ListFolders(ctx context.Context) ([]*model.Folder, error) {
	folders, err := s.folders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing folders: %w", err)
	}
	sort.SliceStable(folders, func(i, j int) bool {
		return folders[i].CreatedDate.Before(folders[j].CreatedDate)
	})
	return folders, nil
}

// CreateFolder adds a folder.
func (s *Service) CreateFolder(ctx context.Context, name string) (*model.Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrEmptyFolderName
	}

	folder := &model.Folder{ID: s.idgen.New(), Name: name, CreatedDate: s.clock.Now()}
	if err := s.folders.Create(ctx, folder); err != nil {
		return nil, fmt.Errorf("creating folder: %w", err)
	}
	s.logger.Info("folder created", "folder", folder.ID, "name", name)
	return folder, nil
}

// DeleteFolder moves the folder's assets to the root scope, then removes the
// folder. Folders never own assets, so nothing else is deleted.
func (s *Service) DeleteFolder(ctx context.Context, id string) error {
	if _, err := s.folders.Get(ctx, id); err != nil {
		return fmt.Errorf("deleting folder: %w", err)
	}

	assets, err := s.assets.List(ctx)
	if err != nil {
		return fmt.Errorf("listing assets: %w", err)
	}
	detached := 0
	for _, a := range assets {
		if a.FolderID == nil || *a.FolderID != id {
			continue
		}
		if _, err := s.assets.Update(ctx, a.ID, func(a *model.Asset) error {
			if a.FolderID != nil && *a.FolderID == id {
				a.FolderID = nil
			}
			return nil
		}); err != nil && !IsNotFound(err) {
			return fmt.Errorf("detaching asset %s: %w", a.ID, err)
		}
		detached++
	}

	if err := s.folders.Delete(ctx, id); err != nil {
		return fmt.Errorf("deleting folder: %w", err)
	}
	s.logger.Info("folder deleted", "folder", id, "detached", detached)
	return nil
}
