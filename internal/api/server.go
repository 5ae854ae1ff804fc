// Package api is the HTTP adapter over the review service: JSON endpoints for
// the review UI, multipart upload, media streaming and the admin session.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"caprev/internal/caption"
	"caprev/internal/review"
)

// Options tunes the server.
type Options struct {
	// MaxUploadBytes caps a multipart upload request. Zero means no cap.
	MaxUploadBytes int64
	// Subtitle controls SRT export formatting.
	Subtitle caption.SubtitleOptions
	// RequestLimit applies to every route, UploadLimit to upload routes on
	// top of it.
	RequestLimit RateLimit
	UploadLimit  RateLimit
}

// Server exposes the review service over HTTP.
type Server struct {
	svc      *review.Service
	blobs    review.BlobStore
	auth     *Authenticator
	opts     Options
	logger   review.Logger
	validate *validator.Validate
	requests *ipLimiter
	uploads  *ipLimiter
}

// NewServer creates a Server.
func NewServer(svc *review.Service, blobs review.BlobStore, auth *Authenticator, opts Options, logger review.Logger) *Server {
	return &Server{
		svc:      svc,
		blobs:    blobs,
		auth:     auth,
		opts:     opts,
		logger:   logger,
		validate: validator.New(),
		requests: newIPLimiter(opts.RequestLimit, tooManyRequests),
		uploads:  newIPLimiter(opts.UploadLimit, tooManyUploads),
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	admin := s.auth.RequireAdmin
	upload := func(h http.HandlerFunc) http.HandlerFunc { return admin(s.uploads.wrap(h)) }
	r := mux.NewRouter()

	r.HandleFunc("/api/login", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/logout", s.handleLogout).Methods(http.MethodPost)
	r.HandleFunc("/api/auth-status", s.handleAuthStatus).Methods(http.MethodGet)

	r.HandleFunc("/api/upload", upload(s.handleUpload)).Methods(http.MethodPost)
	r.HandleFunc("/api/upload-bulk", upload(s.handleUploadBulk)).Methods(http.MethodPost)
	r.HandleFunc("/api/generate-thumbnails", admin(s.handleGenerateThumbnails)).Methods(http.MethodPost)

	r.HandleFunc("/api/folders", s.handleListFolders).Methods(http.MethodGet)
	r.HandleFunc("/api/folders", admin(s.handleCreateFolder)).Methods(http.MethodPost)
	r.HandleFunc("/api/folders/{id}", admin(s.handleDeleteFolder)).Methods(http.MethodDelete)

	r.HandleFunc("/api/files", s.handleListFiles).Methods(http.MethodGet)
	r.HandleFunc("/api/files/{id}", s.handleGetFile).Methods(http.MethodGet)
	r.HandleFunc("/api/files/{id}", s.handleUpdateFile).Methods(http.MethodPut)
	r.HandleFunc("/api/files/{id}", admin(s.handleDeleteFile)).Methods(http.MethodDelete)
	r.HandleFunc("/api/files/{id}/folder", admin(s.handleMoveFile)).Methods(http.MethodPut)
	r.HandleFunc("/api/files/{id}/download", admin(s.handleDownloadCSV)).Methods(http.MethodGet)
	r.HandleFunc("/api/files/{id}/export-srt", admin(s.handleExportSRT)).Methods(http.MethodGet)
	r.HandleFunc("/api/files/{id}/export-translation-text", admin(s.handleExportTranslationText)).Methods(http.MethodGet)
	r.HandleFunc("/api/files/{id}/upload-video", upload(s.handleUploadVideo)).Methods(http.MethodPost)
	r.HandleFunc("/api/files/{id}/translated", s.handleTranslated).Methods(http.MethodGet)

	r.HandleFunc("/api/files/{id}/comments", s.handleListComments).Methods(http.MethodGet)
	r.HandleFunc("/api/files/{id}/comments", s.handleAddComment).Methods(http.MethodPost)
	r.HandleFunc("/api/files/{id}/comments/{commentId}", s.handleUpdateComment).Methods(http.MethodPut)
	r.HandleFunc("/api/files/{id}/comments/{commentId}", s.handleDeleteComment).Methods(http.MethodDelete)

	r.HandleFunc("/api/videos/{ref}", s.handleMedia).Methods(http.MethodGet, http.MethodHead)
	r.HandleFunc("/api/thumbnails/{ref}", s.handleMedia).Methods(http.MethodGet, http.MethodHead)

	r.Use(s.logRequests, s.requests.middleware)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status,
			"duration", time.Since(start).Round(time.Millisecond))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}
