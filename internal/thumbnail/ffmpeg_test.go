package thumbnail

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"caprev/internal/blob"
	"caprev/internal/config"
	"caprev/internal/testutil"
)

// fakeFFmpeg writes frame to the output path unless the seek offset is in
// skipOffsets, recording every invocation.
type fakeFFmpeg struct {
	frame       string
	skipOffsets map[string]bool
	err         error
	calls       [][]string
}

func (f *fakeFFmpeg) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return []byte("Invalid data found when processing input"), f.err
	}
	offset := args[2]
	if f.skipOffsets[offset] {
		return nil, nil
	}
	out := args[len(args)-1]
	return nil, os.WriteFile(out, []byte(f.frame), 0o644)
}

func newTestGenerator(t *testing.T, fake *fakeFFmpeg) (*Generator, *blob.MemoryStore) {
	t.Helper()
	blobs := blob.NewMemoryStore()
	g, err := NewGenerator(config.ThumbnailConfig{FFmpegPath: "/usr/bin/ffmpeg", Width: 160, Timeout: "5s"}, blobs, testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	g.tmpDir = t.TempDir()
	g.run = fake.run
	return g, blobs
}

func putVideo(t *testing.T, blobs *blob.MemoryStore, name string) string {
	t.Helper()
	ref, err := blobs.Put(context.Background(), name, strings.NewReader("video-bytes"), -1)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	return ref
}

func readBlob(t *testing.T, blobs *blob.MemoryStore, ref string) string {
	t.Helper()
	rc, err := blobs.Open(context.Background(), ref)
	if err != nil {
		t.Fatalf("Open(%q) error = %v", ref, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	return string(data)
}

func TestGenerator_Generate(t *testing.T) {
	fake := &fakeFFmpeg{frame: "jpeg"}
	g, blobs := newTestGenerator(t, fake)
	video := putVideo(t, blobs, "clip.mp4")

	ref, err := g.Generate(context.Background(), video)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if ref != "id-1.jpg" {
		t.Errorf("ref = %q, want id-1.jpg", ref)
	}
	if got := readBlob(t, blobs, ref); got != "jpeg" {
		t.Errorf("thumbnail = %q, want jpeg", got)
	}

	if len(fake.calls) != 1 {
		t.Fatalf("ffmpeg called %d times, want 1", len(fake.calls))
	}
	args := strings.Join(fake.calls[0], " ")
	for _, want := range []string{"/usr/bin/ffmpeg", "-ss 00:00:01", "-vframes 1", "scale=160:-1"} {
		if !strings.Contains(args, want) {
			t.Errorf("args %q missing %q", args, want)
		}
	}
}

func TestGenerator_ShortClipFallsBackToFirstFrame(t *testing.T) {
	fake := &fakeFFmpeg{frame: "first", skipOffsets: map[string]bool{"00:00:01": true}}
	g, blobs := newTestGenerator(t, fake)
	video := putVideo(t, blobs, "short.mp4")

	ref, err := g.Generate(context.Background(), video)
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if len(fake.calls) != 2 || fake.calls[1][3] != "0" {
		t.Errorf("expected retry at offset 0, calls = %v", fake.calls)
	}
	if got := readBlob(t, blobs, ref); got != "first" {
		t.Errorf("thumbnail = %q", got)
	}
}

func TestGenerator_NoFrame(t *testing.T) {
	fake := &fakeFFmpeg{skipOffsets: map[string]bool{"00:00:01": true, "0": true}}
	g, blobs := newTestGenerator(t, fake)
	video := putVideo(t, blobs, "empty.mp4")

	if _, err := g.Generate(context.Background(), video); err == nil {
		t.Fatal("Generate() expected error when no frame is produced")
	}
	if blobs.Len() != 1 {
		t.Errorf("blob count = %d, want only the video", blobs.Len())
	}
}

func TestGenerator_FFmpegFailure(t *testing.T) {
	fake := &fakeFFmpeg{err: errors.New("exit status 1")}
	g, blobs := newTestGenerator(t, fake)
	video := putVideo(t, blobs, "broken.mp4")

	_, err := g.Generate(context.Background(), video)
	if err == nil {
		t.Fatal("Generate() expected error")
	}
	if !strings.Contains(err.Error(), "Invalid data found") {
		t.Errorf("error should carry ffmpeg output, got %v", err)
	}
}

func TestGenerator_MissingVideo(t *testing.T) {
	g, _ := newTestGenerator(t, &fakeFFmpeg{frame: "x"})
	if _, err := g.Generate(context.Background(), "nope.mp4"); err == nil {
		t.Fatal("Generate() expected error for missing video")
	}
}

func TestNewGenerator_Defaults(t *testing.T) {
	g, err := NewGenerator(config.ThumbnailConfig{}, blob.NewMemoryStore(), testutil.NewStubIDGenerator())
	if err != nil {
		t.Fatalf("NewGenerator() error = %v", err)
	}
	if g.ffmpeg != "ffmpeg" || g.offset != "00:00:01" || g.width != 320 || g.timeout != 0 {
		t.Errorf("defaults = %q %q %d %v", g.ffmpeg, g.offset, g.width, g.timeout)
	}

	if _, err := NewGenerator(config.ThumbnailConfig{Timeout: "soon"}, blob.NewMemoryStore(), testutil.NewStubIDGenerator()); err == nil {
		t.Error("NewGenerator() expected error for bad timeout")
	}
}
