// Package thumbnail renders still frames for stored videos with ffmpeg and
// runs that work on a bounded background pool.
package thumbnail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"caprev/internal/config"
	"caprev/internal/review"
)

// runFunc executes an external command and returns its combined output.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRun(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	err := cmd.Run()
	return out.Bytes(), err
}

// Generator extracts one JPEG frame per video and stores it as a blob.
type Generator struct {
	blobs   review.BlobStore
	idgen   review.IDGenerator
	ffmpeg  string
	offset  string
	width   int
	timeout time.Duration
	tmpDir  string
	run     runFunc
}

// NewGenerator creates a Generator from configuration.
func NewGenerator(cfg config.ThumbnailConfig, blobs review.BlobStore, idgen review.IDGenerator) (*Generator, error) {
	g := &Generator{
		blobs:  blobs,
		idgen:  idgen,
		ffmpeg: cfg.FFmpegPath,
		offset: cfg.Offset,
		width:  cfg.Width,
		run:    execRun,
	}
	if g.ffmpeg == "" {
		g.ffmpeg = "ffmpeg"
	}
	if g.offset == "" {
		g.offset = "00:00:01"
	}
	if g.width <= 0 {
		g.width = 320
	}
	if cfg.Timeout != "" {
		d, err := time.ParseDuration(cfg.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid thumbnail timeout %q: %w", cfg.Timeout, err)
		}
		g.timeout = d
	}
	return g, nil
}

// Generate copies the video to a scratch directory, grabs a frame at the
// configured offset (falling back to the first frame for clips shorter than
// the offset) and stores the image.
func (g *Generator) Generate(ctx context.Context, videoRef string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	work, err := os.MkdirTemp(g.tmpDir, "caprev-thumb-*")
	if err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}
	defer os.RemoveAll(work)

	input := filepath.Join(work, "input"+filepath.Ext(videoRef))
	if err := g.fetch(ctx, videoRef, input); err != nil {
		return "", err
	}

	output := filepath.Join(work, "thumb.jpg")
	if err := g.extract(ctx, input, output, g.offset); err != nil {
		return "", err
	}
	if !nonEmpty(output) {
		if err := g.extract(ctx, input, output, "0"); err != nil {
			return "", err
		}
		if !nonEmpty(output) {
			return "", fmt.Errorf("ffmpeg produced no frame for %s", videoRef)
		}
	}

	f, err := os.Open(output)
	if err != nil {
		return "", fmt.Errorf("opening thumbnail: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat thumbnail: %w", err)
	}

	ref, err := g.blobs.Put(ctx, g.idgen.New()+".jpg", f, info.Size())
	if err != nil {
		return "", fmt.Errorf("storing thumbnail: %w", err)
	}
	return ref, nil
}

func (g *Generator) fetch(ctx context.Context, videoRef, dest string) error {
	rc, err := g.blobs.Open(ctx, videoRef)
	if err != nil {
		return fmt.Errorf("opening video: %w", err)
	}
	defer rc.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating scratch video: %w", err)
	}
	if _, err := io.Copy(f, rc); err != nil {
		f.Close()
		return fmt.Errorf("copying video: %w", err)
	}
	return f.Close()
}

func (g *Generator) extract(ctx context.Context, input, output, offset string) error {
	out, err := g.run(ctx, g.ffmpeg,
		"-y",
		"-ss", offset,
		"-i", input,
		"-vframes", "1",
		"-vf", "scale="+strconv.Itoa(g.width)+":-1",
		output,
	)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w\n%s", err, tail(out, 512))
	}
	return nil
}

func nonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

// tail keeps the last n bytes of ffmpeg output, where the error usually is.
func tail(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[len(b)-n:]
}

// Compile-time check that Generator implements review.ThumbnailGenerator.
var _ review.ThumbnailGenerator = (*Generator)(nil)
