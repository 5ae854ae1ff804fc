package review

import (
	"context"
	"fmt"

	"caprev/internal/model"
)

// ThumbnailReport summarizes a RegenerateThumbnails run.
type ThumbnailReport struct {
	Generated int `json:"generated"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// scheduleThumbnail queues thumbnail generation for a committed video.
func (s *Service) scheduleThumbnail(assetID, videoRef string) {
	if s.thumbs == nil || s.scheduler == nil {
		return
	}
	s.scheduler.Schedule("thumbnail "+assetID, func(ctx context.Context) error {
		return s.generateThumbnail(ctx, assetID, videoRef)
	})
}

// generateThumbnail renders and attaches a thumbnail for videoRef.
// Failures come back as *ThumbnailError and leave the asset untouched.
func (s *Service) generateThumbnail(ctx context.Context, assetID, videoRef string) error {
	thumbRef, err := s.thumbs.Generate(ctx, videoRef)
	if err != nil {
		terr := &ThumbnailError{AssetID: assetID, VideoRef: videoRef, Err: err}
		s.logger.Warn("thumbnail generation failed", "asset", assetID, "video", videoRef, "error", err)
		return terr
	}

	attached, err := s.attachThumbnail(ctx, assetID, videoRef, thumbRef)
	if err != nil || !attached {
		// The asset is gone or no longer shows this video.
		s.deleteBlob(ctx, thumbRef)
		if err != nil {
			return &ThumbnailError{AssetID: assetID, VideoRef: videoRef, Err: err}
		}
		return nil
	}

	s.logger.Debug("thumbnail attached", "asset", assetID, "thumbnail", thumbRef)
	return nil
}

// attachThumbnail fills thumbRef into every empty thumbnail slot belonging to
// videoRef: the active state and any version holding that video. This is the
// only write a stored version ever receives.
func (s *Service) attachThumbnail(ctx context.Context, assetID, videoRef, thumbRef string) (bool, error) {
	attached := false
	_, err := s.assets.Update(ctx, assetID, func(a *model.Asset) error {
		attached = false
		if a.VideoFile != nil && *a.VideoFile == videoRef && a.ThumbnailFile == nil {
			a.ThumbnailFile = copyRef(&thumbRef)
			attached = true
		}
		for _, v := range a.Versions {
			if v.VideoFile != nil && *v.VideoFile == videoRef && v.ThumbnailFile == nil {
				v.ThumbnailFile = copyRef(&thumbRef)
				attached = true
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("attaching thumbnail: %w", err)
	}
	return attached, nil
}

// RegenerateThumbnails synchronously renders thumbnails for every asset that
// has a video but no thumbnail.
func (s *Service) RegenerateThumbnails(ctx context.Context) (*ThumbnailReport, error) {
	if s.thumbs == nil {
		return nil, fmt.Errorf("no thumbnail generator configured")
	}

	assets, err := s.assets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}

	report := &ThumbnailReport{}
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if !a.HasVideo() || a.ThumbnailFile != nil {
			report.Skipped++
			continue
		}
		if err := s.generateThumbnail(ctx, a.ID, *a.VideoFile); err != nil {
			report.Failed++
			continue
		}
		report.Generated++
	}

	s.logger.Info("thumbnails regenerated", "generated", report.Generated, "skipped", report.Skipped, "failed", report.Failed)
	return report, nil
}
