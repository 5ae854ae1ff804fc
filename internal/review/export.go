package review

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"caprev/internal/caption"
	"caprev/internal/naming"
)

// ExportTabular serializes the asset's active segments as CSV, keeping the
// recorded header and passthrough columns. It returns the payload and a
// download filename.
func (s *Service) ExportTabular(ctx context.Context, id string) ([]byte, string, error) {
	asset, err := s.assets.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	if err := caption.WriteTabular(&buf, asset.Columns, asset.Segments); err != nil {
		return nil, "", fmt.Errorf("exporting %s: %w", id, err)
	}
	return buf.Bytes(), naming.StripExtension(asset.OriginalName) + ".csv", nil
}

// ExportSubtitle serializes every active segment as numbered subtitle blocks.
func (s *Service) ExportSubtitle(ctx context.Context, id string, opts caption.SubtitleOptions) ([]byte, string, error) {
	asset, err := s.assets.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	var buf bytes.Buffer
	if err := caption.WriteSubtitle(&buf, asset.Segments, opts); err != nil {
		return nil, "", fmt.Errorf("exporting %s: %w", id, err)
	}
	return buf.Bytes(), naming.StripExtension(asset.OriginalName) + ".srt", nil
}

// ExportTranslationText returns the translated counterpart's text as plain
// lines, one per segment. An asset that is itself a translation exports its
// own text.
func (s *Service) ExportTranslationText(ctx context.Context, id string) ([]byte, string, error) {
	asset, err := s.assets.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if _, isTranslation := naming.TranslatedBase(asset.BaseName); !isTranslation {
		if asset, err = s.FindTranslated(ctx, id); err != nil {
			return nil, "", err
		}
	}

	var buf bytes.Buffer
	for _, seg := range asset.Segments {
		buf.WriteString(strings.Join(strings.Fields(seg.Text), " "))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), naming.StripExtension(asset.OriginalName) + ".txt", nil
}
