package review_test

import (
	"errors"
	"testing"
	"time"

	"caprev/internal/model"
	"caprev/internal/review"
)

func ptr(s string) *string { return &s }

func seedAsset(name string) *model.Asset {
	return &model.Asset{
		ID:           "asset-1",
		OriginalName: name,
		BaseName:     "scene1",
		UploadDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		VideoFile:    ptr("old.mp4"),
		Columns:      []string{"start_seconds", "end_seconds", "text"},
		Segments:     []model.Segment{{Index: "1", StartSeconds: 0, EndSeconds: 1, DurationSeconds: 1, Text: "old"}},
	}
}

func TestAppendVersion_SnapshotsFirst(t *testing.T) {
	tests := []struct {
		name    string
		orig    string
		wantTag string
	}{
		{"unversioned name", "scene1.csv", "v001"},
		{"versioned name", "scene1_v7.csv", "v007"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := seedAsset(tt.orig)
			v := &model.Version{VersionTag: "v010", VideoFile: ptr("new.mp4")}
			if err := review.AppendVersion(a, v); err != nil {
				t.Fatalf("AppendVersion() error = %v", err)
			}
			if len(a.Versions) != 2 {
				t.Fatalf("len(Versions) = %d, want 2", len(a.Versions))
			}
			snap := a.Versions[0]
			if snap.VersionTag != tt.wantTag || snap.OriginalName != tt.orig {
				t.Errorf("snapshot = %s %s", snap.VersionTag, snap.OriginalName)
			}
			if *snap.VideoFile != "old.mp4" || snap.Segments[0].Text != "old" {
				t.Errorf("snapshot lost active data: %+v", snap)
			}
			if review.ActiveVersion(a) != v {
				t.Error("ActiveVersion() is not the appended version")
			}
		})
	}
}

func TestAppendVersion_Conflicts(t *testing.T) {
	t.Run("snapshot tag", func(t *testing.T) {
		a := seedAsset("scene1.csv")
		err := review.AppendVersion(a, &model.Version{VersionTag: "v001"})
		var conflict *review.ConflictError
		if !errors.As(err, &conflict) {
			t.Fatalf("AppendVersion() error = %v, want *ConflictError", err)
		}
		if len(a.Versions) != 0 {
			t.Errorf("asset modified on conflict: %d versions", len(a.Versions))
		}
	})

	t.Run("existing tag", func(t *testing.T) {
		a := seedAsset("scene1.csv")
		if err := review.AppendVersion(a, &model.Version{VersionTag: "v002"}); err != nil {
			t.Fatal(err)
		}
		err := review.AppendVersion(a, &model.Version{VersionTag: "v002"})
		var conflict *review.ConflictError
		if !errors.As(err, &conflict) || conflict.VersionTag != "v002" {
			t.Fatalf("AppendVersion() error = %v", err)
		}
		if len(a.Versions) != 2 {
			t.Errorf("len(Versions) = %d, want 2", len(a.Versions))
		}
	})
}

func TestPromoteToActive(t *testing.T) {
	now := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	t.Run("video version", func(t *testing.T) {
		a := seedAsset("scene1.csv")
		a.ThumbnailFile = ptr("old.jpg")
		v := &model.Version{
			VersionTag:   "v002",
			OriginalName: "scene1_v002.mp4",
			VideoFile:    ptr("new.mp4"),
			Segments:     []model.Segment{{Text: "new"}},
		}
		review.PromoteToActive(a, v, now)

		if *a.VideoFile != "new.mp4" || a.ThumbnailFile != nil {
			t.Errorf("video/thumbnail = %v/%v", a.VideoFile, a.ThumbnailFile)
		}
		if a.OriginalName != "scene1_v002.mp4" || !a.LastModified.Equal(now) {
			t.Errorf("name/modified = %s/%v", a.OriginalName, a.LastModified)
		}

		a.Segments[0].Text = "edited"
		if v.Segments[0].Text != "new" {
			t.Error("editing active segments changed the stored version")
		}
	})

	t.Run("caption-only version keeps video", func(t *testing.T) {
		a := seedAsset("scene1.csv")
		a.ThumbnailFile = ptr("old.jpg")
		v := &model.Version{VersionTag: "v002", OriginalName: "scene1_v002.csv", Segments: []model.Segment{{Text: "new"}}}
		review.PromoteToActive(a, v, now)

		if *a.VideoFile != "old.mp4" || *a.ThumbnailFile != "old.jpg" {
			t.Errorf("video/thumbnail replaced: %v/%v", *a.VideoFile, a.ThumbnailFile)
		}
		if a.Segments[0].Text != "new" {
			t.Errorf("segments not promoted: %+v", a.Segments)
		}
	})
}
