package review_test

import (
	"context"
	"errors"
	"testing"

	"caprev/internal/model"
	"caprev/internal/review"
	"caprev/internal/testutil"
)

func TestIngest_ThumbnailFailureDoesNotFailBatch(t *testing.T) {
	h := testutil.NewHarness(t)
	h.Thumbs.Err = errors.New("ffmpeg missing")

	capt := h.Stage(t, "a.csv", twoRowCSV)
	video := h.Stage(t, "a.mp4", "v")
	report, err := h.Service.Ingest(context.Background(), review.Batch{Captions: []review.Upload{capt}, Videos: []review.Upload{video}})
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(report.Created) != 1 || len(report.Errors) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if a := h.Asset(t, report.Created[0].ID); a.ThumbnailFile != nil {
		t.Errorf("ThumbnailFile = %v, want nil", *a.ThumbnailFile)
	}

	var terr *review.ThumbnailError
	if !errors.As(h.Scheduler.Err(), &terr) || terr.VideoRef != video.Ref {
		t.Errorf("scheduler error = %v, want *ThumbnailError", h.Scheduler.Err())
	}
}

func TestRegenerateThumbnails(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	video := h.Stage(t, "v.mp4", "v")
	thumbed := h.Stage(t, "t.mp4", "t")
	h.Seed(t, &model.Asset{ID: "needs", OriginalName: "v.csv", BaseName: "v", VideoFile: &video.Ref})
	h.Seed(t, &model.Asset{ID: "has", OriginalName: "t.csv", BaseName: "t", VideoFile: &thumbed.Ref, ThumbnailFile: testutil.Ptr("existing.jpg")})
	h.Seed(t, &model.Asset{ID: "novideo", OriginalName: "n.csv", BaseName: "n"})

	report, err := h.Service.RegenerateThumbnails(ctx)
	if err != nil {
		t.Fatalf("RegenerateThumbnails() error = %v", err)
	}
	want := review.ThumbnailReport{Generated: 1, Skipped: 2}
	if *report != want {
		t.Errorf("report = %+v, want %+v", *report, want)
	}
	if a := h.Asset(t, "needs"); a.ThumbnailFile == nil {
		t.Error("thumbnail not attached")
	}
	if calls := h.Thumbs.Calls(); len(calls) != 1 || calls[0] != video.Ref {
		t.Errorf("generator calls = %v", calls)
	}

	h.Thumbs.Err = errors.New("boom")
	h.Seed(t, &model.Asset{ID: "broken", OriginalName: "b.csv", BaseName: "b", VideoFile: testutil.Ptr("gone.mp4")})
	report, err = h.Service.RegenerateThumbnails(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if report.Failed != 1 || report.Generated != 0 {
		t.Errorf("report = %+v", *report)
	}
}

func TestRegenerateThumbnails_NoGenerator(t *testing.T) {
	h := testutil.NewHarness(t)
	svc := review.NewService(h.Assets, h.Folders, h.Blobs, nil, nil, review.NewNopLogger(), h.Clock, h.IDs)
	if _, err := svc.RegenerateThumbnails(context.Background()); err == nil {
		t.Error("expected error without a generator")
	}
}
