// Package testutil holds fixtures shared by package tests: deterministic
// clocks and ids, thumbnail stubs and a fully wired review service backed by
// a temp directory.
package testutil

import (
	"context"
	"strings"
	"testing"

	"caprev/internal/blob"
	"caprev/internal/model"
	"caprev/internal/review"
	"caprev/internal/store"
)

// Harness bundles a Service with direct handles on its collaborators so
// tests can seed and inspect state.
type Harness struct {
	Service   *review.Service
	Assets    *store.AssetDirectory
	Folders   *store.FolderStore
	Blobs     *blob.MemoryStore
	Thumbs    *StubThumbnailGenerator
	Scheduler *InlineScheduler
	Clock     *StubClock
	IDs       *StubIDGenerator
}

// NewHarness wires a Service over a temp-dir store and an in-memory blob
// store. Thumbnails are generated inline by a stub.
func NewHarness(t testing.TB) *Harness {
	t.Helper()
	root := t.TempDir()

	assets, err := store.NewAssetDirectory(root)
	if err != nil {
		t.Fatalf("NewAssetDirectory() error = %v", err)
	}
	folders, err := store.NewFolderStore(root)
	if err != nil {
		t.Fatalf("NewFolderStore() error = %v", err)
	}

	h := &Harness{
		Assets:    assets,
		Folders:   folders,
		Blobs:     blob.NewMemoryStore(),
		Scheduler: &InlineScheduler{},
		Clock:     FixedClock(),
		IDs:       NewStubIDGenerator(),
	}
	h.Thumbs = &StubThumbnailGenerator{Blobs: h.Blobs}
	h.Service = review.NewService(h.Assets, h.Folders, h.Blobs, h.Thumbs, h.Scheduler,
		review.NewNopLogger(), h.Clock, h.IDs)
	return h
}

// Stage uploads content under name and returns the staged handle.
func (h *Harness) Stage(t testing.TB, name, content string) review.Upload {
	t.Helper()
	u, err := h.Service.Stage(context.Background(), name, strings.NewReader(content), int64(len(content)))
	if err != nil {
		t.Fatalf("Stage(%q) error = %v", name, err)
	}
	return u
}

// Seed writes asset straight into the directory.
func (h *Harness) Seed(t testing.TB, asset *model.Asset) {
	t.Helper()
	if err := h.Assets.Create(context.Background(), asset); err != nil {
		t.Fatalf("Create(%q) error = %v", asset.ID, err)
	}
}

// Asset reads an asset back, failing the test if it is missing.
func (h *Harness) Asset(t testing.TB, id string) *model.Asset {
	t.Helper()
	a, err := h.Assets.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get(%q) error = %v", id, err)
	}
	return a
}

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T { return &v }
