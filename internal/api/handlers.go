package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"caprev/internal/blob"
	"caprev/internal/model"
	"caprev/internal/naming"
	"caprev/internal/review"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	cookie, err := s.auth.Login(req.Username, req.Password)
	if errors.Is(err, ErrInvalidCredentials) {
		s.logger.Warn("failed login", "username", req.Username, "remote", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "Invalid credentials"})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	http.SetCookie(w, cookie)
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, s.auth.Logout())
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"isAdmin": s.auth.IsAdmin(r)})
}

// handleUploadBulk streams every "files" part into the blob store, then runs
// the batch through the ingest pipeline.
func (s *Server) handleUploadBulk(w http.ResponseWriter, r *http.Request) {
	batch, err := s.readUpload(w, r, "files")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.svc.Ingest(r.Context(), batch)
	if err != nil && report == nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type uploadResponse struct {
	Success  bool   `json:"success"`
	FileID   string `json:"fileId"`
	FileName string `json:"fileName"`
}

// handleUpload ingests the single caption in the "file" part.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	batch, err := s.readUpload(w, r, "file")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(batch.Captions) != 1 || len(batch.Videos) != 0 {
		s.svc.Discard(r.Context(), append(batch.Captions, batch.Videos...)...)
		s.writeError(w, r, fmt.Errorf("%w: expected one caption file", review.ErrUnsupportedFile))
		return
	}
	name := batch.Captions[0].OriginalName

	report, err := s.svc.Ingest(r.Context(), batch)
	if err != nil && report == nil {
		s.writeError(w, r, err)
		return
	}
	if len(report.Errors) > 0 {
		s.writeError(w, r, report.Errors[0].Err)
		return
	}

	resp := uploadResponse{Success: true, FileName: name}
	switch {
	case len(report.Created) > 0:
		resp.FileID = report.Created[0].ID
	case len(report.Stacked) > 0:
		resp.FileID = report.Stacked[0].AssetID
	}
	writeJSON(w, http.StatusOK, resp)
}

// readUpload stages every file part named field and reads the optional
// folderId. On error nothing staged is left behind.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, field string) (review.Batch, error) {
	var batch review.Batch
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		return batch, fmt.Errorf("%w: %w", errBadRequest, err)
	}

	var staged []review.Upload
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err == nil {
			err = s.readUploadPart(r, part, field, &batch, &staged)
		} else {
			err = fmt.Errorf("%w: reading upload: %w", errBadRequest, err)
		}
		if err != nil {
			s.svc.Discard(r.Context(), staged...)
			return review.Batch{}, err
		}
	}

	if len(staged) == 0 {
		return batch, fmt.Errorf("%w: no files uploaded", errBadRequest)
	}
	return batch, nil
}

func (s *Server) readUploadPart(r *http.Request, part *multipart.Part, field string, batch *review.Batch, staged *[]review.Upload) error {
	defer part.Close()

	switch {
	case part.FormName() == "folderId" && part.FileName() == "":
		id, err := readField(part)
		if err != nil {
			return err
		}
		if id != "" {
			batch.FolderID = &id
		}
	case part.FormName() == field && part.FileName() != "":
		u, err := s.svc.Stage(r.Context(), part.FileName(), part, -1)
		if err != nil {
			return err
		}
		*staged = append(*staged, u)
		if naming.IsVideo(u.OriginalName) {
			batch.Videos = append(batch.Videos, u)
		} else {
			batch.Captions = append(batch.Captions, u)
		}
	}
	return nil
}

func readField(part *multipart.Part) (string, error) {
	b, err := io.ReadAll(io.LimitReader(part, 1024))
	if err != nil {
		return "", fmt.Errorf("%w: reading field %s: %v", errBadRequest, part.FormName(), err)
	}
	return string(b), nil
}

func (s *Server) handleGenerateThumbnails(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.RegenerateThumbnails(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Success bool `json:"success"`
		*review.ThumbnailReport
		Message string `json:"message"`
	}{
		Success:         true,
		ThumbnailReport: report,
		Message: fmt.Sprintf("Generated %d thumbnails. Skipped: %d, Failed: %d",
			report.Generated, report.Skipped, report.Failed),
	})
}

func (s *Server) handleListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.svc.ListFolders(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if folders == nil {
		folders = []*model.Folder{}
	}
	writeJSON(w, http.StatusOK, folders)
}

type createFolderRequest struct {
	Name string `json:"name" validate:"required,max=200"`
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	var req createFolderRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	folder, err := s.svc.CreateFolder(r.Context(), req.Name)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, folder)
}

func (s *Server) handleDeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteFolder(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func folderParam(r *http.Request) *string {
	if id := r.URL.Query().Get("folderId"); id != "" {
		return &id
	}
	return nil
}

func (s *Server) handleListFiles(w http.ResponseWriter, r *http.Request) {
	folderID := folderParam(r)
	if r.URL.Query().Get("grouped") == "true" {
		groups, err := s.svc.ListGrouped(r.Context(), folderID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if groups == nil {
			groups = []review.AssetGroup{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"grouped": true, "groups": groups})
		return
	}

	files, err := s.svc.ListAssets(r.Context(), folderID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if files == nil {
		files = []review.AssetSummary{}
	}
	writeJSON(w, http.StatusOK, files)
}

func (s *Server) handleGetFile(w http.ResponseWriter, r *http.Request) {
	asset, err := s.svc.GetAsset(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

type updateFileRequest struct {
	Data      []segmentRequest `json:"data" validate:"required,dive"`
	Completed *bool            `json:"completed"`
}

type segmentRequest struct {
	Index           string            `json:"index"`
	StartSeconds    float64           `json:"start_seconds"`
	EndSeconds      float64           `json:"end_seconds"`
	DurationSeconds float64           `json:"duration_seconds"`
	Text            string            `json:"text"`
	Action          model.Action      `json:"action" validate:"omitempty,oneof=keep cut"`
	Reason          string            `json:"reason"`
	Extra           map[string]string `json:"extra"`
}

func (seg segmentRequest) model() model.Segment {
	return model.Segment{
		Index:           seg.Index,
		StartSeconds:    seg.StartSeconds,
		EndSeconds:      seg.EndSeconds,
		DurationSeconds: seg.DurationSeconds,
		Text:            seg.Text,
		Action:          seg.Action,
		Reason:          seg.Reason,
		Extra:           seg.Extra,
	}
}

func (s *Server) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	var req updateFileRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	segments := make([]model.Segment, len(req.Data))
	for i, seg := range req.Data {
		segments[i] = seg.model()
	}

	asset, err := s.svc.UpdateSegments(r.Context(), mux.Vars(r)["id"], segments, req.Completed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "completed": asset.Completed})
}

func (s *Server) handleDeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteAsset(r.Context(), mux.Vars(r)["id"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

type moveFileRequest struct {
	FolderID *string `json:"folderId"`
}

func (s *Server) handleMoveFile(w http.ResponseWriter, r *http.Request) {
	var req moveFileRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.FolderID != nil && *req.FolderID == "" {
		req.FolderID = nil
	}
	if _, err := s.svc.MoveToFolder(r.Context(), mux.Vars(r)["id"], req.FolderID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (s *Server) handleDownloadCSV(w http.ResponseWriter, r *http.Request) {
	data, name, err := s.svc.ExportTabular(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	attachment(w, "text/csv", name)
	s.writeBody(w, r, data)
}

func (s *Server) handleExportSRT(w http.ResponseWriter, r *http.Request) {
	data, name, err := s.svc.ExportSubtitle(r.Context(), mux.Vars(r)["id"], s.opts.Subtitle)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	attachment(w, "application/x-subrip", name)
	s.writeBody(w, r, data)
}

func (s *Server) handleExportTranslationText(w http.ResponseWriter, r *http.Request) {
	data, name, err := s.svc.ExportTranslationText(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	attachment(w, "text/plain; charset=utf-8", name)
	s.writeBody(w, r, data)
}

func (s *Server) writeBody(w http.ResponseWriter, r *http.Request, data []byte) {
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("writing response failed", "path", r.URL.Path, "error", err)
	}
}

// handleUploadVideo replaces an asset's video with the "video" part.
func (s *Server) handleUploadVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if _, err := s.svc.GetAsset(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	if s.opts.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		s.writeError(w, r, fmt.Errorf("%w: %w", errBadRequest, err))
		return
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.writeError(w, r, fmt.Errorf("%w: reading upload: %w", errBadRequest, err))
			return
		}
		u, ok, err := s.stageVideoPart(r, part)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if !ok {
			continue
		}

		asset, err := s.svc.ReplaceVideo(r.Context(), id, u)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":       true,
			"videoFile":     asset.VideoFile,
			"thumbnailFile": asset.ThumbnailFile,
		})
		return
	}
	s.writeError(w, r, fmt.Errorf("%w: no video uploaded", errBadRequest))
}

// stageVideoPart stages part when it is the "video" file. ok is false for
// parts that are skipped.
func (s *Server) stageVideoPart(r *http.Request, part *multipart.Part) (u review.Upload, ok bool, err error) {
	defer part.Close()

	if part.FormName() != "video" || part.FileName() == "" {
		return u, false, nil
	}
	if !naming.IsVideo(part.FileName()) {
		return u, false, fmt.Errorf("%w: %s", review.ErrUnsupportedFile, part.FileName())
	}
	u, err = s.svc.Stage(r.Context(), part.FileName(), part, -1)
	return u, err == nil, err
}

func (s *Server) handleTranslated(w http.ResponseWriter, r *http.Request) {
	asset, err := s.svc.FindTranslated(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (s *Server) handleListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := s.svc.ListComments(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"comments": comments})
}

type commentRequest struct {
	Text      string   `json:"text" validate:"required,max=5000"`
	Timestamp *float64 `json:"timestamp" validate:"omitempty,gte=0"`
}

func (s *Server) handleAddComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	author := model.AuthorUser
	if s.auth.IsAdmin(r) {
		author = model.AuthorAdmin
	}
	comment, err := s.svc.AddComment(r.Context(), mux.Vars(r)["id"], req.Text, req.Timestamp, author)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "comment": comment})
}

func (s *Server) handleUpdateComment(w http.ResponseWriter, r *http.Request) {
	var req commentRequest
	if err := s.decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	vars := mux.Vars(r)
	comment, err := s.svc.UpdateComment(r.Context(), vars["id"], vars["commentId"], req.Text, req.Timestamp)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "comment": comment})
}

func (s *Server) handleDeleteComment(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := s.svc.DeleteComment(r.Context(), vars["id"], vars["commentId"]); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

// handleMedia streams a video or thumbnail blob. Seekable blobs (the
// filesystem backend) get range support for scrubbing.
func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["ref"]
	if naming.IsCaption(ref) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "Not found"})
		return
	}
	rc, err := s.blobs.Open(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", blob.ContentType(ref))
	if rs, ok := rc.(io.ReadSeeker); ok {
		http.ServeContent(w, r, ref, time.Time{}, rs)
		return
	}
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn("streaming media failed", "ref", ref, "error", err)
	}
}
