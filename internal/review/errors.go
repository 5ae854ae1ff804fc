package review

import (
	"errors"
	"fmt"
)

// NotFoundError reports a referenced asset, version, comment, folder or blob
// that does not exist. No mutation happened.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// ConflictError reports a version tag that already exists on the asset.
// The asset was left unchanged.
type ConflictError struct {
	AssetID    string
	VersionTag string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("asset %s already has version %s", e.AssetID, e.VersionTag)
}

// ThumbnailError reports a failed thumbnail generation. It is never fatal:
// the asset keeps a null thumbnail reference.
type ThumbnailError struct {
	AssetID  string
	VideoRef string
	Err      error
}

func (e *ThumbnailError) Error() string {
	return fmt.Sprintf("generating thumbnail for asset %s (video %s): %v", e.AssetID, e.VideoRef, e.Err)
}

func (e *ThumbnailError) Unwrap() error { return e.Err }

// IsNotFound reports whether err wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ErrUnsupportedFile is returned when an upload's extension is neither a
// known caption nor a known video format.
var ErrUnsupportedFile = errors.New("unsupported file type")
