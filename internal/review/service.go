// Package review holds the caption review core: matching uploads to assets,
// stacking versions, batch ingest, and the asset, comment and folder
// operations the HTTP and CLI layers expose.
package review

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Service is the orchestration layer that coordinates the asset directory,
// the blob store and thumbnail generation.
type Service struct {
	assets    AssetDirectory
	folders   FolderStore
	blobs     BlobStore
	thumbs    ThumbnailGenerator
	scheduler ThumbnailScheduler
	logger    Logger
	clock     Clock
	idgen     IDGenerator
}

// NewService creates a Service with the provided dependencies.
// thumbs and scheduler may be nil, in which case assets never get thumbnails.
func NewService(assets AssetDirectory, folders FolderStore, blobs BlobStore, thumbs ThumbnailGenerator, scheduler ThumbnailScheduler, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		assets:    assets,
		folders:   folders,
		blobs:     blobs,
		thumbs:    thumbs,
		scheduler: scheduler,
		logger:    logger,
		clock:     clock,
		idgen:     idgen,
	}
}

// Stage puts an uploaded payload into the blob store and returns the
// descriptor the ingest entry points expect.
func (s *Service) Stage(ctx context.Context, originalName string, r io.Reader, size int64) (Upload, error) {
	name := s.idgen.New() + strings.ToLower(filepath.Ext(originalName))
	ref, err := s.blobs.Put(ctx, name, r, size)
	if err != nil {
		return Upload{}, fmt.Errorf("storing %s: %w", originalName, err)
	}
	s.logger.Debug("upload staged", "name", originalName, "ref", ref)
	return Upload{Ref: ref, OriginalName: originalName}, nil
}

// Discard deletes staged uploads that will not be ingested.
func (s *Service) Discard(ctx context.Context, uploads ...Upload) {
	for _, u := range uploads {
		s.deleteBlob(ctx, u.Ref)
	}
}

// deleteBlob removes a blob and logs failures. Callers only delete blobs after
// the metadata write that dropped the reference has succeeded.
func (s *Service) deleteBlob(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.blobs.Delete(context.WithoutCancel(ctx), ref); err != nil {
		s.logger.Warn("deleting blob failed", "ref", ref, "error", err)
	}
}

// folderExists fails with *NotFoundError unless folderID is nil or names a folder.
func (s *Service) folderExists(ctx context.Context, folderID *string) error {
	if folderID == nil {
		return nil
	}
	if _, err := s.folders.Get(ctx, *folderID); err != nil {
		return fmt.Errorf("checking folder: %w", err)
	}
	return nil
}
