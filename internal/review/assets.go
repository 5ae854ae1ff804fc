package review

import (
	"context"
	"fmt"
	"sort"
	"time"

	"caprev/internal/model"
	"caprev/internal/naming"
)

// ungroupedKey labels assets without a group key in grouped listings.
const ungroupedKey = "ungrouped"

// AssetSummary is the listing view of an asset.
type AssetSummary struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	UploadDate     time.Time `json:"uploadDate"`
	LastModified   time.Time `json:"lastModified"`
	Completed      bool      `json:"completed"`
	FolderID       *string   `json:"folderId"`
	GroupKey       string    `json:"groupKey"`
	RowCount       int       `json:"rowCount"`
	HasVideo       bool      `json:"hasVideo"`
	ThumbnailFile  *string   `json:"thumbnailFile"`
	CommentCount   int       `json:"commentCount"`
	VersionCount   int       `json:"versionCount"`
	IsStacked      bool      `json:"isStacked"`
	CurrentVersion string    `json:"currentVersion,omitempty"`
}

// AssetGroup is a run of summaries sharing a group key.
type AssetGroup struct {
	Key    string         `json:"key"`
	Assets []AssetSummary `json:"assets"`
}

func summarize(a *model.Asset) AssetSummary {
	sum := AssetSummary{
		ID:            a.ID,
		Name:          a.OriginalName,
		UploadDate:    a.UploadDate,
		LastModified:  a.LastModified,
		Completed:     a.Completed,
		FolderID:      a.FolderID,
		GroupKey:      a.GroupKey,
		RowCount:      len(a.Segments),
		HasVideo:      a.HasVideo(),
		ThumbnailFile: a.ThumbnailFile,
		CommentCount:  len(a.Comments),
		VersionCount:  len(a.Versions),
		IsStacked:     len(a.Versions) > 0,
	}
	if v := ActiveVersion(a); v != nil {
		sum.CurrentVersion = v.VersionTag
	}
	return sum
}

// ListAssets returns the assets in a folder, newest upload first. A nil
// folderID lists every asset, whatever folder it is in.
func (s *Service) ListAssets(ctx context.Context, folderID *string) ([]AssetSummary, error) {
	assets, err := s.assets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}

	var scoped []*model.Asset
	for _, a := range assets {
		if folderID == nil || a.InFolder(folderID) {
			scoped = append(scoped, a)
		}
	}
	sort.SliceStable(scoped, func(i, j int) bool {
		if !scoped[i].UploadDate.Equal(scoped[j].UploadDate) {
			return scoped[i].UploadDate.After(scoped[j].UploadDate)
		}
		return scoped[i].ID < scoped[j].ID
	})

	summaries := make([]AssetSummary, len(scoped))
	for i, a := range scoped {
		summaries[i] = summarize(a)
	}
	return summaries, nil
}

// ListGrouped returns ListAssets grouped by group key. Groups appear in the
// order of their newest asset.
func (s *Service) ListGrouped(ctx context.Context, folderID *string) ([]AssetGroup, error) {
	summaries, err := s.ListAssets(ctx, folderID)
	if err != nil {
		return nil, err
	}

	var groups []AssetGroup
	index := make(map[string]int)
	for _, sum := range summaries {
		key := sum.GroupKey
		if key == "" {
			key = ungroupedKey
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, AssetGroup{Key: key})
		}
		groups[i].Assets = append(groups[i].Assets, sum)
	}
	return groups, nil
}

// GetAsset returns the full asset record.
func (s *Service) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	return s.assets.Get(ctx, id)
}

// UpdateSegments replaces the active segments with reviewer edits. Timing is
// clamped and durations recomputed. completed, when non-nil, sets the
// completion flag. Stored versions are not touched.
func (s *Service) UpdateSegments(ctx context.Context, id string, segments []model.Segment, completed *bool) (*model.Asset, error) {
	normalized := make([]model.Segment, len(segments))
	for i, seg := range segments {
		normalized[i] = seg.Normalized()
	}

	now := s.clock.Now()
	asset, err := s.assets.Update(ctx, id, func(a *model.Asset) error {
		a.Segments = normalized
		if completed != nil {
			a.Completed = *completed
		}
		a.LastModified = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("updating segments: %w", err)
	}
	s.logger.Info("segments updated", "asset", id, "rows", len(normalized))
	return asset, nil
}

// MoveToFolder reassigns an asset to a folder; nil moves it to the root.
func (s *Service) MoveToFolder(ctx context.Context, id string, folderID *string) (*model.Asset, error) {
	if err := s.folderExists(ctx, folderID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	asset, err := s.assets.Update(ctx, id, func(a *model.Asset) error {
		a.FolderID = copyRef(folderID)
		a.LastModified = now
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("moving asset: %w", err)
	}
	return asset, nil
}

// ReplaceVideo attaches a new staged video to the active state and queues a
// thumbnail for it. The previous video and thumbnail blobs are deleted after
// the write unless a stored version still references them. On failure the
// staged video is deleted.
func (s *Service) ReplaceVideo(ctx context.Context, id string, video Upload) (*model.Asset, error) {
	if !naming.IsVideo(video.OriginalName) {
		s.Discard(ctx, video)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, video.OriginalName)
	}

	var oldRefs []string
	now := s.clock.Now()
	newRef := video.Ref
	asset, err := s.assets.Update(ctx, id, func(a *model.Asset) error {
		oldRefs = oldRefs[:0]
		for _, ref := range []*string{a.VideoFile, a.ThumbnailFile} {
			if ref != nil && *ref != "" && *ref != newRef && !referencedByVersion(a, *ref) {
				oldRefs = append(oldRefs, *ref)
			}
		}
		a.VideoFile = &newRef
		a.ThumbnailFile = nil
		a.LastModified = now
		return nil
	})
	if err != nil {
		s.Discard(ctx, video)
		return nil, fmt.Errorf("replacing video: %w", err)
	}

	for _, ref := range oldRefs {
		s.deleteBlob(ctx, ref)
	}
	s.logger.Info("video replaced", "asset", id, "file", video.OriginalName)

	s.scheduleThumbnail(id, newRef)
	return asset, nil
}

// DeleteAsset removes an asset with all its versions, then deletes every blob
// the asset or its versions referenced.
func (s *Service) DeleteAsset(ctx context.Context, id string) error {
	asset, err := s.assets.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting asset: %w", err)
	}

	for _, ref := range asset.BlobRefs() {
		s.deleteBlob(ctx, ref)
	}
	s.logger.Info("asset deleted", "asset", id, "versions", len(asset.Versions))
	return nil
}

// FindTranslated returns the asset in the same folder whose base name is this
// asset's base name with a _translated suffix. For an asset that is itself a
// translation it returns the original instead.
func (s *Service) FindTranslated(ctx context.Context, id string) (*model.Asset, error) {
	asset, err := s.assets.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	base, isTranslation := naming.TranslatedBase(asset.BaseName)
	if !isTranslation {
		base = asset.BaseName + "_translated"
	}
	counterpart, err := s.assets.FindByBaseName(ctx, asset.FolderID, base)
	if err != nil {
		return nil, fmt.Errorf("finding translated asset: %w", err)
	}
	if counterpart == nil {
		return nil, &NotFoundError{Kind: "translated asset", ID: base}
	}
	return counterpart, nil
}
