package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"caprev/internal/blob"
	"caprev/internal/caption"
	"caprev/internal/config"
	localfs "caprev/internal/fs"
	"caprev/internal/naming"
	"caprev/internal/review"
	"caprev/internal/store"
	"caprev/internal/thumbnail"
)

// Options carries the per-invocation inputs that do not live in the config file.
type Options struct {
	// Operation names the CLI command being run (e.g. "serve", "ingest").
	Operation string
	// Passphrase unlocks the age private key when encryption is enabled.
	Passphrase string
	// Stderr receives a copy of every log line. Defaults to os.Stderr.
	Stderr io.Writer
}

// CaprevApp is the application layer between the CLI/HTTP server and the
// review service. It constructs all dependencies from config, exposes
// path-based operations for the CLI, and drains background work on Close.
type CaprevApp struct {
	cfg     *config.Config
	blobs   review.BlobStore
	queue   *thumbnail.Queue
	service *review.Service
	logger  *slog.Logger
	logFile io.Closer
	op      *Operation
}

// NewCaprevApp creates a fully wired CaprevApp from the given config.
// The caller must call Close when done.
func NewCaprevApp(ctx context.Context, cfg *config.Config, opts Options) (*CaprevApp, error) {
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Operation == "" {
		opts.Operation = "run"
	}

	op := NewOperation(opts.Operation, time.Now())
	logger, logFile, err := newLogger(cfg.LogDir, cfg.Log, op.ID, opts.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	adapter := &slogAdapter{l: logger}

	blobs, err := newBlobStore(ctx, cfg, opts.Passphrase)
	if err != nil {
		logFile.Close()
		return nil, err
	}

	assets, err := store.NewAssetDirectory(cfg.Store.DataDir)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening asset directory: %w", err)
	}
	folders, err := store.NewFolderStore(cfg.Store.DataDir)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening folder store: %w", err)
	}

	var (
		gen   review.ThumbnailGenerator
		queue *thumbnail.Queue
		sched review.ThumbnailScheduler
	)
	if cfg.Thumbnail.Enabled {
		g, err := thumbnail.NewGenerator(cfg.Thumbnail, blobs, review.UUIDGenerator{})
		if err != nil {
			logFile.Close()
			return nil, fmt.Errorf("creating thumbnail generator: %w", err)
		}
		gen = g
		queue = thumbnail.NewQueue(cfg.Thumbnail.Workers, adapter)
		sched = queue
	}

	svc := review.NewService(assets, folders, blobs, gen, sched, adapter, review.RealClock{}, review.UUIDGenerator{})
	logger.Debug("application started", "operation", op.Name, "blob", cfg.Blob.Type, "encrypted", cfg.Encryption.Enabled)

	return &CaprevApp{
		cfg:     cfg,
		blobs:   blobs,
		queue:   queue,
		service: svc,
		logger:  logger,
		logFile: logFile,
		op:      op,
	}, nil
}

// newBlobStore builds the configured backend, wrapped in age encryption when enabled.
func newBlobStore(ctx context.Context, cfg *config.Config, passphrase string) (review.BlobStore, error) {
	blobs, err := blob.NewStoreFromConfig(ctx, cfg.Blob)
	if err != nil {
		return nil, fmt.Errorf("creating blob store: %w", err)
	}
	if !cfg.Encryption.Enabled {
		return blobs, nil
	}

	keys := blob.AgeKeys{PublicKeyPath: cfg.Encryption.PublicKeyPath, PrivateKeyPath: cfg.Encryption.PrivateKeyPath}
	if !keys.IsConfigured() {
		return nil, fmt.Errorf("encryption is enabled but no keys exist at %s", cfg.Encryption.PublicKeyPath)
	}
	identity, recipient, err := keys.Unlock(passphrase)
	if err != nil {
		return nil, fmt.Errorf("unlocking encryption key: %w", err)
	}
	return blob.NewEncryptedStore(blobs, identity, recipient, ""), nil
}

// Service returns the review service.
func (a *CaprevApp) Service() *review.Service { return a.service }

// Config returns the loaded configuration.
func (a *CaprevApp) Config() *config.Config { return a.cfg }

// Logger returns the application logger.
func (a *CaprevApp) Logger() *slog.Logger { return a.logger }

// ReviewLogger returns the application logger as a review.Logger.
func (a *CaprevApp) ReviewLogger() review.Logger { return &slogAdapter{l: a.logger} }

// Blobs returns the blob store, for streaming media to HTTP clients.
func (a *CaprevApp) Blobs() review.BlobStore { return a.blobs }

// Fail marks the current operation as failed for the closing log line.
func (a *CaprevApp) Fail() { a.op.Fail() }

// IngestFiles stages local files and runs them through the ingest pipeline
// as one batch. Directories are expanded to the captions and videos inside
// them, descending into subdirectories when recursive is set. Files are
// classified by extension; anything that is not a video goes in with the
// captions so the report names it as unsupported.
func (a *CaprevApp) IngestFiles(ctx context.Context, paths []string, folderID *string, recursive bool) (*review.IngestReport, error) {
	files, err := localfs.Collector{Recursive: recursive}.Collect(paths)
	if err != nil {
		return nil, fmt.Errorf("collecting files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no caption or video files found")
	}

	batch := review.Batch{FolderID: folderID}
	staged := make([]review.Upload, 0, len(files))
	for _, p := range files {
		u, err := a.stageFile(ctx, p)
		if err != nil {
			a.service.Discard(ctx, staged...)
			return nil, err
		}
		staged = append(staged, u)
		if naming.IsVideo(u.OriginalName) {
			batch.Videos = append(batch.Videos, u)
		} else {
			batch.Captions = append(batch.Captions, u)
		}
	}
	a.logger.Info("ingesting files", "count", len(files), "recursive", recursive)

	return a.service.Ingest(ctx, batch)
}

func (a *CaprevApp) stageFile(ctx context.Context, path string) (review.Upload, error) {
	f, err := os.Open(path)
	if err != nil {
		return review.Upload{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return review.Upload{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return review.Upload{}, fmt.Errorf("%s is a directory", path)
	}
	return a.service.Stage(ctx, filepath.Base(path), f, info.Size())
}

// ExportFile writes an asset's captions into destDir as "csv" or "srt" and
// returns the written path.
func (a *CaprevApp) ExportFile(ctx context.Context, assetID, format, destDir string) (string, error) {
	var (
		data []byte
		name string
		err  error
	)
	switch caption.Format(format) {
	case caption.FormatCSV:
		data, name, err = a.service.ExportTabular(ctx, assetID)
	case caption.FormatSRT:
		data, name, err = a.service.ExportSubtitle(ctx, assetID, a.SubtitleOptions())
	default:
		return "", fmt.Errorf("unknown export format %q", format)
	}
	if err != nil {
		return "", err
	}

	dest := filepath.Join(destDir, name)
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	return dest, nil
}

// SubtitleOptions returns the configured subtitle export settings.
func (a *CaprevApp) SubtitleOptions() caption.SubtitleOptions {
	return caption.SubtitleOptions{FontColor: a.cfg.Export.SubtitleFontColor}
}

// Close waits for queued thumbnails (bounded by ctx) and closes the log file.
func (a *CaprevApp) Close(ctx context.Context) error {
	var firstErr error
	if a.queue != nil {
		if err := a.queue.Shutdown(ctx); err != nil {
			firstErr = fmt.Errorf("draining thumbnail queue: %w", err)
		}
	}

	a.logger.Info("operation finished", "operation", a.op.Name, "status", a.op.Status,
		"elapsed", a.op.Elapsed(time.Now()).Round(time.Millisecond))

	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
