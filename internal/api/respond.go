package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-playground/validator/v10"

	"caprev/internal/caption"
	"caprev/internal/review"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 10 << 20

type errorBody struct {
	Error   string   `json:"error"`
	Details []string `json:"details,omitempty"`
}

type successBody struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	var (
		nf       *review.NotFoundError
		conflict *review.ConflictError
		perr     *caption.ParseError
		verrs    validator.ValidationErrors
		tooLarge *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &nf):
		return http.StatusNotFound
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &perr), errors.As(err, &verrs), errors.Is(err, errBadRequest),
		errors.Is(err, review.ErrUnsupportedFile), errors.Is(err, review.ErrEmptyComment),
		errors.Is(err, review.ErrEmptyFolderName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		body = errorBody{Error: "validation failed", Details: formatValidationErrors(verrs)}
	}
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body.Error = "internal server error"
	}
	writeJSON(w, status, body)
}

// formatValidationErrors renders validator errors as one line per field.
func formatValidationErrors(verrs validator.ValidationErrors) []string {
	out := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		line := fmt.Sprintf("field '%s' failed on the '%s' tag", fe.Field(), fe.Tag())
		if fe.Param() != "" {
			line = fmt.Sprintf("%s (value: %s)", line, fe.Param())
		}
		out = append(out, line)
	}
	return out
}

var errBadRequest = errors.New("bad request")

// decode reads a JSON body into v and validates its struct tags.
func (s *Server) decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", errBadRequest, err)
	}
	return s.validate.Struct(v)
}

// attachment sets download headers for a generated file.
func attachment(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
}
