package review_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"caprev/internal/caption"
	"caprev/internal/model"
	"caprev/internal/review"
	"caprev/internal/testutil"
)

const twoRowCSV = "start_seconds,end_seconds,text\n0,1.5,hello\n1.5,3,world\n"

func TestIngest_PairsAndLeftovers(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	aCSV := h.Stage(t, "a.csv", twoRowCSV)
	bCSV := h.Stage(t, "b.csv", twoRowCSV)
	aMP4 := h.Stage(t, "a.mp4", "video-a")
	cMP4 := h.Stage(t, "c.mp4", "video-c")

	report, err := h.Service.Ingest(ctx, review.Batch{
		Captions: []review.Upload{aCSV, bCSV},
		Videos:   []review.Upload{aMP4, cMP4},
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(report.Created) != 2 {
		t.Fatalf("Created = %+v, want 2 assets", report.Created)
	}
	if !report.Created[0].HasVideo || report.Created[1].HasVideo {
		t.Errorf("HasVideo flags = %v/%v", report.Created[0].HasVideo, report.Created[1].HasVideo)
	}
	wantMatched := []review.MatchedPair{{Caption: "a.csv", Video: "a.mp4", AssetID: report.Created[0].ID}}
	if !reflect.DeepEqual(report.Matched, wantMatched) {
		t.Errorf("Matched = %+v, want %+v", report.Matched, wantMatched)
	}
	if !reflect.DeepEqual(report.Unmatched.Captions, []string{"b.csv"}) {
		t.Errorf("Unmatched.Captions = %v", report.Unmatched.Captions)
	}
	if !reflect.DeepEqual(report.Unmatched.Videos, []string{"c.mp4"}) {
		t.Errorf("Unmatched.Videos = %v", report.Unmatched.Videos)
	}
	if len(report.Errors) != 0 || len(report.Abandoned) != 0 {
		t.Errorf("Errors = %+v, Abandoned = %v", report.Errors, report.Abandoned)
	}

	if h.Blobs.Has(cMP4.Ref) {
		t.Error("unmatched video blob was not deleted")
	}
	if h.Blobs.Has(aCSV.Ref) || h.Blobs.Has(bCSV.Ref) {
		t.Error("consumed caption blobs were not deleted")
	}
	if !h.Blobs.Has(aMP4.Ref) {
		t.Error("matched video blob was deleted")
	}

	a := h.Asset(t, report.Created[0].ID)
	if a.BaseName != "a" || a.GroupKey != "a" || len(a.Segments) != 2 {
		t.Errorf("asset a = %+v", a)
	}
	if a.ThumbnailFile == nil || !h.Blobs.Has(*a.ThumbnailFile) {
		t.Errorf("thumbnail not attached: %v", a.ThumbnailFile)
	}
	if a.Comments == nil || a.Versions == nil {
		t.Error("new asset should have empty comment and version lists")
	}
}

func seedScene(t *testing.T, h *testutil.Harness, folderID *string) *model.Asset {
	t.Helper()
	old := h.Stage(t, "scene1.mp4", "old-video")
	a := &model.Asset{
		ID:           "scene1-id",
		OriginalName: "scene1.csv",
		BaseName:     "scene1",
		UploadDate:   h.Clock.Now(),
		LastModified: h.Clock.Now(),
		FolderID:     folderID,
		GroupKey:     "scene1",
		VideoFile:    testutil.Ptr(old.Ref),
		Columns:      []string{"start_seconds", "end_seconds", "text"},
		Segments:     []model.Segment{{Index: "1", StartSeconds: 0, EndSeconds: 2, DurationSeconds: 2, Text: "original"}},
		Comments:     []*model.Comment{},
		Versions:     []*model.Version{},
	}
	h.Seed(t, a)
	return a
}

func TestIngest_StackVideoWithoutCaption(t *testing.T) {
	h := testutil.NewHarness(t)
	seeded := seedScene(t, h, nil)
	video := h.Stage(t, "scene1_v002.mp4", "new-video")

	report, err := h.Service.Ingest(context.Background(), review.Batch{Videos: []review.Upload{video}})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}

	if len(report.Warnings) != 1 || report.Warnings[0].File != "scene1_v002.mp4" {
		t.Errorf("Warnings = %+v", report.Warnings)
	}
	want := []review.StackedVersion{{
		AssetID: "scene1-id", Name: "scene1_v002.mp4", File: "scene1_v002.mp4",
		VersionTag: "v002", Kind: review.StackKindVideo,
	}}
	if !reflect.DeepEqual(report.Stacked, want) {
		t.Errorf("Stacked = %+v, want %+v", report.Stacked, want)
	}
	if len(report.Created) != 0 {
		t.Errorf("Created = %+v, want none", report.Created)
	}

	a := h.Asset(t, "scene1-id")
	if len(a.Versions) < 2 {
		t.Fatalf("len(Versions) = %d, want >= 2", len(a.Versions))
	}
	if a.Versions[0].VersionTag != "v001" || *a.Versions[0].VideoFile != *seeded.VideoFile {
		t.Errorf("snapshot = %+v", a.Versions[0])
	}
	if *a.VideoFile != video.Ref {
		t.Errorf("VideoFile = %s, want %s", *a.VideoFile, video.Ref)
	}
	if a.Segments[0].Text != "original" {
		t.Errorf("segments should be inherited, got %+v", a.Segments)
	}
	if a.ThumbnailFile == nil || a.Versions[1].ThumbnailFile == nil || *a.ThumbnailFile != *a.Versions[1].ThumbnailFile {
		t.Errorf("thumbnail not attached to active state and version")
	}
	if a.Versions[0].ThumbnailFile != nil {
		t.Errorf("snapshot thumbnail changed: %v", *a.Versions[0].ThumbnailFile)
	}
	if !h.Blobs.Has(*seeded.VideoFile) {
		t.Error("previous video must stay for the snapshot version")
	}
}

func TestIngest_StackVideoWithCaption(t *testing.T) {
	h := testutil.NewHarness(t)
	seedScene(t, h, nil)
	capt := h.Stage(t, "scene1_v002.csv", twoRowCSV)
	video := h.Stage(t, "scene1_v002.mp4", "new-video")

	report, err := h.Service.Ingest(context.Background(), review.Batch{
		Captions: []review.Upload{capt},
		Videos:   []review.Upload{video},
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(report.Warnings) != 0 {
		t.Errorf("Warnings = %+v", report.Warnings)
	}
	if len(report.Stacked) != 1 || report.Stacked[0].Caption != "scene1_v002.csv" {
		t.Errorf("Stacked = %+v", report.Stacked)
	}

	a := h.Asset(t, "scene1-id")
	if len(a.Segments) != 2 || a.Segments[1].Text != "world" {
		t.Errorf("Segments = %+v", a.Segments)
	}
	if h.Blobs.Has(capt.Ref) {
		t.Error("caption blob should be deleted after stacking")
	}
}

func TestIngest_StackCaptionKeepsVideo(t *testing.T) {
	h := testutil.NewHarness(t)
	seeded := seedScene(t, h, nil)
	capt := h.Stage(t, "scene1_v003.srt", "1\n00:00:00,000 --> 00:00:01,000\nrevised\n")

	report, err := h.Service.Ingest(context.Background(), review.Batch{Captions: []review.Upload{capt}})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(report.Stacked) != 1 || report.Stacked[0].Kind != review.StackKindCaption || report.Stacked[0].VersionTag != "v003" {
		t.Fatalf("Stacked = %+v", report.Stacked)
	}

	a := h.Asset(t, "scene1-id")
	if *a.VideoFile != *seeded.VideoFile {
		t.Errorf("VideoFile = %s, want unchanged %s", *a.VideoFile, *seeded.VideoFile)
	}
	if a.Segments[0].Text != "revised" || a.Columns != nil {
		t.Errorf("active data = %+v / %v", a.Segments, a.Columns)
	}
	if v := a.FindVersion("v003"); v == nil || v.VideoFile != nil {
		t.Errorf("caption-only version = %+v", v)
	}
}

func TestIngest_VersionConflict(t *testing.T) {
	h := testutil.NewHarness(t)
	seedScene(t, h, nil)
	video := h.Stage(t, "scene1_v001.mp4", "dup")

	report, err := h.Service.Ingest(context.Background(), review.Batch{Videos: []review.Upload{video}})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(report.Errors) != 1 {
		t.Fatalf("Errors = %+v", report.Errors)
	}
	var conflict *review.ConflictError
	if !errors.As(report.Errors[0].Err, &conflict) {
		t.Errorf("error = %v, want *ConflictError", report.Errors[0].Err)
	}
	if h.Blobs.Has(video.Ref) {
		t.Error("conflicting video blob should be deleted")
	}
	if a := h.Asset(t, "scene1-id"); len(a.Versions) != 0 {
		t.Errorf("asset modified on conflict: %d versions", len(a.Versions))
	}
}

func TestIngest_EmptyCaption(t *testing.T) {
	h := testutil.NewHarness(t)
	capt := h.Stage(t, "empty.csv", "start_seconds,end_seconds,text\n")

	report, err := h.Service.Ingest(context.Background(), review.Batch{Captions: []review.Upload{capt}})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(report.Created) != 0 {
		t.Errorf("Created = %+v, want none", report.Created)
	}
	if len(report.Errors) != 1 || report.Errors[0].File != "empty.csv" {
		t.Fatalf("Errors = %+v", report.Errors)
	}
	var perr *caption.ParseError
	if !errors.As(report.Errors[0].Err, &perr) {
		t.Errorf("error = %v, want *caption.ParseError", report.Errors[0].Err)
	}

	assets, err := h.Service.ListAssets(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 0 {
		t.Errorf("ListAssets() = %d assets, want 0", len(assets))
	}
}

func TestIngest_BadPairCaptionDropsVideo(t *testing.T) {
	h := testutil.NewHarness(t)
	capt := h.Stage(t, "x.srt", "not a subtitle")
	video := h.Stage(t, "x.mp4", "video")

	report, err := h.Service.Ingest(context.Background(), review.Batch{
		Captions: []review.Upload{capt},
		Videos:   []review.Upload{video},
	})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(report.Errors) != 1 || !reflect.DeepEqual(report.Unmatched.Videos, []string{"x.mp4"}) {
		t.Errorf("Errors = %+v, Unmatched = %+v", report.Errors, report.Unmatched)
	}
	if h.Blobs.Len() != 0 {
		t.Errorf("%d blobs left behind", h.Blobs.Len())
	}
}

func TestIngest_UnsupportedFile(t *testing.T) {
	h := testutil.NewHarness(t)
	notes := h.Stage(t, "notes.txt", "hi")

	report, err := h.Service.Ingest(context.Background(), review.Batch{Captions: []review.Upload{notes}})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(report.Errors) != 1 || !errors.Is(report.Errors[0].Err, review.ErrUnsupportedFile) {
		t.Errorf("Errors = %+v", report.Errors)
	}
	if h.Blobs.Has(notes.Ref) {
		t.Error("rejected blob should be deleted")
	}
}

func TestIngest_FolderScope(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()
	folder, err := h.Service.CreateFolder(ctx, "Season 1")
	if err != nil {
		t.Fatal(err)
	}
	seedScene(t, h, testutil.Ptr(folder.ID))

	t.Run("other scope does not stack", func(t *testing.T) {
		video := h.Stage(t, "scene1_v002.mp4", "v")
		report, err := h.Service.Ingest(ctx, review.Batch{Videos: []review.Upload{video}})
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Stacked) != 0 || len(report.Unmatched.Videos) != 1 {
			t.Errorf("report = %+v", report)
		}
	})

	t.Run("same scope stacks", func(t *testing.T) {
		video := h.Stage(t, "scene1_v002.mp4", "v")
		report, err := h.Service.Ingest(ctx, review.Batch{Videos: []review.Upload{video}, FolderID: &folder.ID})
		if err != nil {
			t.Fatal(err)
		}
		if len(report.Stacked) != 1 {
			t.Errorf("report = %+v", report)
		}
	})

	t.Run("created assets land in folder", func(t *testing.T) {
		capt := h.Stage(t, "other.csv", twoRowCSV)
		report, err := h.Service.Ingest(ctx, review.Batch{Captions: []review.Upload{capt}, FolderID: &folder.ID})
		if err != nil {
			t.Fatal(err)
		}
		a := h.Asset(t, report.Created[0].ID)
		if a.FolderID == nil || *a.FolderID != folder.ID {
			t.Errorf("FolderID = %v", a.FolderID)
		}
	})
}

func TestIngest_MissingFolder(t *testing.T) {
	h := testutil.NewHarness(t)
	capt := h.Stage(t, "a.csv", twoRowCSV)

	_, err := h.Service.Ingest(context.Background(), review.Batch{
		Captions: []review.Upload{capt},
		FolderID: testutil.Ptr("nope"),
	})
	if !review.IsNotFound(err) {
		t.Fatalf("Ingest() error = %v, want not found", err)
	}
	if h.Blobs.Has(capt.Ref) {
		t.Error("staged blob should be discarded")
	}
}

// cancelScheduler cancels the batch context the first time a job is scheduled,
// which happens right after the first asset with a video is committed.
type cancelScheduler struct {
	cancel context.CancelFunc
}

func (s *cancelScheduler) Schedule(string, func(context.Context) error) { s.cancel() }

func TestIngest_Cancelled(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	svc := review.NewService(h.Assets, h.Folders, h.Blobs, h.Thumbs, &cancelScheduler{cancel: cancel},
		review.NewNopLogger(), h.Clock, h.IDs)

	aCSV := h.Stage(t, "a.csv", twoRowCSV)
	bCSV := h.Stage(t, "b.csv", twoRowCSV)
	aMP4 := h.Stage(t, "a.mp4", "a")
	bMP4 := h.Stage(t, "b.mp4", "b")

	report, err := svc.Ingest(ctx, review.Batch{
		Captions: []review.Upload{aCSV, bCSV},
		Videos:   []review.Upload{aMP4, bMP4},
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Ingest() error = %v, want context.Canceled", err)
	}
	if report == nil {
		t.Fatal("report should be returned on cancellation")
	}
	if len(report.Created) != 1 || report.Created[0].Name != "a.csv" {
		t.Errorf("Created = %+v", report.Created)
	}
	if !reflect.DeepEqual(report.Abandoned, []string{"b.csv", "b.mp4"}) {
		t.Errorf("Abandoned = %v", report.Abandoned)
	}
	if h.Blobs.Has(bCSV.Ref) || h.Blobs.Has(bMP4.Ref) {
		t.Error("abandoned blobs should be deleted")
	}
	if !h.Blobs.Has(aMP4.Ref) {
		t.Error("committed video must survive cancellation")
	}
}
