package review_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"caprev/internal/review"
	"caprev/internal/testutil"
)

func TestFolders(t *testing.T) {
	h := testutil.NewHarness(t)
	ctx := context.Background()

	if _, err := h.Service.CreateFolder(ctx, " "); !errors.Is(err, review.ErrEmptyFolderName) {
		t.Errorf("CreateFolder(blank) error = %v", err)
	}

	first, err := h.Service.CreateFolder(ctx, "Season 1")
	if err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	h.Clock.Advance(time.Second)
	second, err := h.Service.CreateFolder(ctx, "Season 2")
	if err != nil {
		t.Fatal(err)
	}

	folders, err := h.Service.ListFolders(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(folders) != 2 || folders[0].ID != first.ID || folders[1].ID != second.ID {
		t.Errorf("ListFolders() = %+v", folders)
	}

	inside := ingestCaption(t, h, "a.csv", twoRowCSV, &first.ID)
	if err := h.Service.DeleteFolder(ctx, first.ID); err != nil {
		t.Fatalf("DeleteFolder() error = %v", err)
	}
	if a := h.Asset(t, inside); a.FolderID != nil {
		t.Errorf("asset still in deleted folder %v", *a.FolderID)
	}

	if err := h.Service.DeleteFolder(ctx, first.ID); !review.IsNotFound(err) {
		t.Errorf("second DeleteFolder() error = %v", err)
	}
}
