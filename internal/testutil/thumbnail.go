package testutil

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"

	"caprev/internal/review"
)

// StubThumbnailGenerator stores a tiny fake JPEG next to each video.
// Set Err to make every call fail.
type StubThumbnailGenerator struct {
	Blobs review.BlobStore
	Err   error

	mu    sync.Mutex
	calls []string
}

func (g *StubThumbnailGenerator) Generate(ctx context.Context, videoRef string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, videoRef)
	g.mu.Unlock()

	if g.Err != nil {
		return "", g.Err
	}
	name := strings.TrimSuffix(videoRef, path.Ext(videoRef)) + "-thumb.jpg"
	return g.Blobs.Put(ctx, name, strings.NewReader("jpeg"), 4)
}

// Calls returns the video refs Generate was called with, in order.
func (g *StubThumbnailGenerator) Calls() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.calls...)
}

// InlineScheduler runs jobs immediately on the caller's goroutine and keeps
// their errors.
type InlineScheduler struct {
	mu   sync.Mutex
	errs []error
}

func (s *InlineScheduler) Schedule(name string, job func(ctx context.Context) error) {
	if err := job(context.Background()); err != nil {
		s.mu.Lock()
		s.errs = append(s.errs, err)
		s.mu.Unlock()
	}
}

// Err joins the errors returned by every job so far.
func (s *InlineScheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.errs...)
}

var (
	_ review.ThumbnailGenerator = (*StubThumbnailGenerator)(nil)
	_ review.ThumbnailScheduler = (*InlineScheduler)(nil)
)
