package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"

	"caprev/internal/config"
)

// lineHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<opID>\t<message>\t<key=value ...>
type lineHandler struct {
	w     io.Writer
	opID  string
	min   slog.Level
	attrs []slog.Attr
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool { return level >= h.min }

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")

	_, err := fmt.Fprintf(h.w, "%s\t%s\t%s\t%s", ts, r.Level.String(), h.opID, r.Message)
	if err != nil {
		return err
	}

	for _, a := range h.attrs {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(h.w, "\t%s=%v", a.Key, a.Value)
		return true
	})

	_, err = fmt.Fprintln(h.w)
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &lineHandler{
		w:     h.w,
		opID:  h.opID,
		min:   h.min,
		attrs: append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *lineHandler) WithGroup(string) slog.Handler { return h }

// newLogger creates a structured logger that writes to a rotating
// logDir/caprev.log and to stderr. The returned closer releases the log file.
func newLogger(logDir string, cfg config.LogConfig, opID string, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "caprev.log"),
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}

	min := slog.LevelInfo
	if cfg.Debug {
		min = slog.LevelDebug
	}
	handler := &lineHandler{w: io.MultiWriter(file, stderr), opID: opID, min: min}
	return slog.New(handler), file, nil
}

// slogAdapter wraps *slog.Logger to satisfy the review.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
