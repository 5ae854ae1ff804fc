package review

import (
	"context"
	"fmt"

	"caprev/internal/caption"
	"caprev/internal/model"
	"caprev/internal/naming"
)

// Batch is one bulk upload: staged captions and videos plus the folder scope
// they land in. A nil FolderID is the root scope.
type Batch struct {
	Captions []Upload
	Videos   []Upload
	FolderID *string
}

// StackKind tags a stacked version with the upload that caused it.
type StackKind string

const (
	StackKindCaption StackKind = "caption"
	StackKindVideo   StackKind = "video"
)

// IngestReport is the outcome of one batch. It is always complete, even when
// some files failed.
type IngestReport struct {
	Created   []CreatedAsset   `json:"created"`
	Matched   []MatchedPair    `json:"matched"`
	Stacked   []StackedVersion `json:"stacked"`
	Warnings  []Warning        `json:"warnings"`
	Unmatched Unmatched        `json:"unmatched"`
	Errors    []FileError      `json:"errors"`
	Abandoned []string         `json:"abandoned"`
}

type CreatedAsset struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	HasVideo bool   `json:"hasVideo"`
	GroupKey string `json:"groupKey"`
}

type MatchedPair struct {
	Caption string `json:"caption"`
	Video   string `json:"video"`
	AssetID string `json:"assetId"`
}

type StackedVersion struct {
	AssetID    string    `json:"assetId"`
	Name       string    `json:"name"`
	File       string    `json:"file"`
	Caption    string    `json:"caption,omitempty"`
	VersionTag string    `json:"versionTag"`
	Kind       StackKind `json:"kind"`
}

type Warning struct {
	File    string `json:"file"`
	Message string `json:"message"`
}

type Unmatched struct {
	Captions []string `json:"captions"`
	Videos   []string `json:"videos"`
}

// FileError is a per-file failure. Err keeps the typed error for callers
// that inspect it with errors.As.
type FileError struct {
	File  string `json:"file"`
	Error string `json:"error"`
	Err   error  `json:"-"`
}

func newIngestReport() *IngestReport {
	return &IngestReport{
		Created:   []CreatedAsset{},
		Matched:   []MatchedPair{},
		Stacked:   []StackedVersion{},
		Warnings:  []Warning{},
		Unmatched: Unmatched{Captions: []string{}, Videos: []string{}},
		Errors:    []FileError{},
		Abandoned: []string{},
	}
}

func (r *IngestReport) addError(file string, err error) {
	r.Errors = append(r.Errors, FileError{File: file, Error: err.Error(), Err: err})
}

// Ingest matches a staged batch against existing assets and commits every
// decision independently. A failing file is recorded in the report and never
// stops the rest of the batch.
//
// Blobs of discarded videos, failed files and consumed captions are deleted
// after all metadata writes. If ctx is cancelled, files already committed stay
// committed; the rest are listed as abandoned, their blobs are deleted, and
// ctx.Err() is returned alongside the report.
func (s *Service) Ingest(ctx context.Context, batch Batch) (*IngestReport, error) {
	report := newIngestReport()

	if err := s.folderExists(ctx, batch.FolderID); err != nil {
		s.Discard(ctx, batch.Captions...)
		s.Discard(ctx, batch.Videos...)
		return nil, err
	}

	var pending []string
	captions := s.filterUploads(batch.Captions, naming.IsCaption, report, &pending)
	videos := s.filterUploads(batch.Videos, naming.IsVideo, report, &pending)

	plan, err := Match(captions, videos, func(baseName string) (*model.Asset, error) {
		return s.assets.FindByBaseName(ctx, batch.FolderID, baseName)
	})
	if err != nil {
		s.Discard(ctx, captions...)
		s.Discard(ctx, videos...)
		s.Discard(ctx, uploadsFromRefs(pending)...)
		return nil, fmt.Errorf("matching batch: %w", err)
	}

	for i, d := range plan.Decisions {
		if ctx.Err() != nil {
			for _, rest := range plan.Decisions[i:] {
				report.Abandoned = append(report.Abandoned, rest.Files()...)
				pending = append(pending, decisionRefs(rest)...)
			}
			break
		}
		pending = append(pending, s.apply(ctx, batch, d, report)...)
	}

	for _, ref := range pending {
		s.deleteBlob(ctx, ref)
	}

	s.logger.Info("batch ingested",
		"created", len(report.Created),
		"matched", len(report.Matched),
		"stacked", len(report.Stacked),
		"warnings", len(report.Warnings),
		"errors", len(report.Errors),
		"abandoned", len(report.Abandoned))

	return report, ctx.Err()
}

// filterUploads drops uploads whose extension does not fit the list they
// were submitted in, recording an error for each and queueing its blob.
func (s *Service) filterUploads(uploads []Upload, ok func(string) bool, report *IngestReport, pending *[]string) []Upload {
	var kept []Upload
	for _, u := range uploads {
		if !ok(u.OriginalName) {
			report.addError(u.OriginalName, fmt.Errorf("%w: %s", ErrUnsupportedFile, u.OriginalName))
			*pending = append(*pending, u.Ref)
			continue
		}
		kept = append(kept, u)
	}
	return kept
}

// apply commits one decision and returns the blob refs to delete once the
// whole batch has been written.
func (s *Service) apply(ctx context.Context, batch Batch, d Decision, report *IngestReport) []string {
	switch d.Kind {
	case StackVideo:
		return s.stackVideo(ctx, d, report)
	case CreatePair:
		return s.createPair(ctx, batch, d, report)
	case StackCaption:
		return s.stackCaption(ctx, d, report)
	case CreateCaption:
		return s.createCaption(ctx, batch, d, report)
	case DiscardVideo:
		report.Unmatched.Videos = append(report.Unmatched.Videos, d.Video.OriginalName)
		s.logger.Info("discarding unmatched video", "file", d.Video.OriginalName)
		return []string{d.Video.Ref}
	default:
		report.addError(fmt.Sprint(d.Files()), fmt.Errorf("unknown decision %s", d.Kind))
		return decisionRefs(d)
	}
}

func (s *Service) stackVideo(ctx context.Context, d Decision, report *IngestReport) []string {
	var pending []string
	var track *caption.Track
	if d.Caption != nil {
		pending = append(pending, d.Caption.Ref)
		t, err := s.readCaption(ctx, *d.Caption)
		if err != nil {
			report.addError(d.Caption.OriginalName, err)
		} else {
			track = t
		}
	}

	now := s.clock.Now()
	videoRef := d.Video.Ref
	asset, err := s.assets.Update(ctx, d.Asset.ID, func(a *model.Asset) error {
		v := &model.Version{
			VersionTag:   d.VersionTag,
			OriginalName: d.Video.OriginalName,
			UploadDate:   now,
			VideoFile:    &videoRef,
		}
		if track != nil {
			v.Segments = track.Segments
			v.Columns = track.Columns
		} else {
			v.Segments = model.CloneSegments(a.Segments)
			v.Columns = append([]string(nil), a.Columns...)
		}
		if err := AppendVersion(a, v); err != nil {
			return err
		}
		PromoteToActive(a, v, now)
		return nil
	})
	if err != nil {
		report.addError(d.Video.OriginalName, fmt.Errorf("stacking %s onto asset %s: %w", d.VersionTag, d.Asset.ID, err))
		return append(pending, videoRef)
	}

	if track == nil {
		report.Warnings = append(report.Warnings, Warning{
			File: d.Video.OriginalName,
			Message: fmt.Sprintf("no caption uploaded for %s: version %s keeps the current segments of %s until a matching caption is supplied",
				d.Video.OriginalName, d.VersionTag, asset.ID),
		})
	}

	stacked := StackedVersion{
		AssetID:    asset.ID,
		Name:       asset.OriginalName,
		File:       d.Video.OriginalName,
		VersionTag: d.VersionTag,
		Kind:       StackKindVideo,
	}
	if track != nil {
		stacked.Caption = d.Caption.OriginalName
	}
	report.Stacked = append(report.Stacked, stacked)
	s.logger.Info("video version stacked", "asset", asset.ID, "version", d.VersionTag, "file", d.Video.OriginalName)

	s.scheduleThumbnail(asset.ID, videoRef)
	return pending
}

func (s *Service) stackCaption(ctx context.Context, d Decision, report *IngestReport) []string {
	pending := []string{d.Caption.Ref}
	track, err := s.readCaption(ctx, *d.Caption)
	if err != nil {
		report.addError(d.Caption.OriginalName, err)
		return pending
	}

	now := s.clock.Now()
	asset, err := s.assets.Update(ctx, d.Asset.ID, func(a *model.Asset) error {
		v := &model.Version{
			VersionTag:   d.VersionTag,
			OriginalName: d.Caption.OriginalName,
			UploadDate:   now,
			Columns:      track.Columns,
			Segments:     track.Segments,
		}
		if err := AppendVersion(a, v); err != nil {
			return err
		}
		PromoteToActive(a, v, now)
		return nil
	})
	if err != nil {
		report.addError(d.Caption.OriginalName, fmt.Errorf("stacking %s onto asset %s: %w", d.VersionTag, d.Asset.ID, err))
		return pending
	}

	report.Stacked = append(report.Stacked, StackedVersion{
		AssetID:    asset.ID,
		Name:       asset.OriginalName,
		File:       d.Caption.OriginalName,
		Caption:    d.Caption.OriginalName,
		VersionTag: d.VersionTag,
		Kind:       StackKindCaption,
	})
	s.logger.Info("caption version stacked", "asset", asset.ID, "version", d.VersionTag, "file", d.Caption.OriginalName)
	return pending
}

func (s *Service) createPair(ctx context.Context, batch Batch, d Decision, report *IngestReport) []string {
	pending := []string{d.Caption.Ref}
	track, err := s.readCaption(ctx, *d.Caption)
	if err != nil {
		report.addError(d.Caption.OriginalName, err)
		report.Unmatched.Videos = append(report.Unmatched.Videos, d.Video.OriginalName)
		return append(pending, d.Video.Ref)
	}

	asset := s.newAsset(batch.FolderID, d.Caption.OriginalName, track)
	videoRef := d.Video.Ref
	asset.VideoFile = &videoRef
	if err := s.assets.Create(ctx, asset); err != nil {
		err = fmt.Errorf("creating asset: %w", err)
		report.addError(d.Caption.OriginalName, err)
		report.addError(d.Video.OriginalName, err)
		return append(pending, videoRef)
	}

	report.Created = append(report.Created, createdEntry(asset))
	report.Matched = append(report.Matched, MatchedPair{
		Caption: d.Caption.OriginalName,
		Video:   d.Video.OriginalName,
		AssetID: asset.ID,
	})
	s.logger.Info("asset created", "asset", asset.ID, "caption", d.Caption.OriginalName, "video", d.Video.OriginalName)

	s.scheduleThumbnail(asset.ID, videoRef)
	return pending
}

func (s *Service) createCaption(ctx context.Context, batch Batch, d Decision, report *IngestReport) []string {
	pending := []string{d.Caption.Ref}
	track, err := s.readCaption(ctx, *d.Caption)
	if err != nil {
		report.addError(d.Caption.OriginalName, err)
		return pending
	}

	asset := s.newAsset(batch.FolderID, d.Caption.OriginalName, track)
	if err := s.assets.Create(ctx, asset); err != nil {
		report.addError(d.Caption.OriginalName, fmt.Errorf("creating asset: %w", err))
		return pending
	}

	report.Created = append(report.Created, createdEntry(asset))
	report.Unmatched.Captions = append(report.Unmatched.Captions, d.Caption.OriginalName)
	s.logger.Info("asset created without video", "asset", asset.ID, "caption", d.Caption.OriginalName)
	return pending
}

// readCaption parses a staged caption blob.
func (s *Service) readCaption(ctx context.Context, u Upload) (*caption.Track, error) {
	rc, err := s.blobs.Open(ctx, u.Ref)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", u.OriginalName, err)
	}
	defer rc.Close()

	return caption.Parse(caption.Format(naming.CaptionFormat(u.OriginalName)), rc)
}

func (s *Service) newAsset(folderID *string, name string, track *caption.Track) *model.Asset {
	now := s.clock.Now()
	base, _ := naming.StackKey(name)
	return &model.Asset{
		ID:           s.idgen.New(),
		OriginalName: name,
		BaseName:     base,
		UploadDate:   now,
		LastModified: now,
		FolderID:     copyRef(folderID),
		GroupKey:     naming.GroupKey(name),
		Columns:      track.Columns,
		Segments:     track.Segments,
		Comments:     []*model.Comment{},
		Versions:     []*model.Version{},
	}
}

func createdEntry(a *model.Asset) CreatedAsset {
	return CreatedAsset{ID: a.ID, Name: a.OriginalName, HasVideo: a.HasVideo(), GroupKey: a.GroupKey}
}

func decisionRefs(d Decision) []string {
	var refs []string
	if d.Caption != nil {
		refs = append(refs, d.Caption.Ref)
	}
	if d.Video != nil {
		refs = append(refs, d.Video.Ref)
	}
	return refs
}

func uploadsFromRefs(refs []string) []Upload {
	uploads := make([]Upload, len(refs))
	for i, ref := range refs {
		uploads[i] = Upload{Ref: ref}
	}
	return uploads
}
