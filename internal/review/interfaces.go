package review

import (
	"context"
	"io"

	"caprev/internal/model"
)

// BlobStore holds caption, video and thumbnail payloads behind opaque refs.
// The core never assumes a ref maps to a filesystem path.
type BlobStore interface {
	// Put stores size bytes read from r under a backend-chosen ref derived from name.
	Put(ctx context.Context, name string, r io.Reader, size int64) (string, error)

	// Open returns a stream for ref. Missing refs fail with *NotFoundError.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)

	// Delete removes ref. Deleting a missing ref is not an error.
	Delete(ctx context.Context, ref string) error
}

// AssetDirectory persists asset records.
type AssetDirectory interface {
	// Get returns the asset with id, or *NotFoundError.
	Get(ctx context.Context, id string) (*model.Asset, error)

	// List returns every asset in unspecified order.
	List(ctx context.Context) ([]*model.Asset, error)

	// FindByBaseName returns the asset in folder scope whose BaseName equals
	// baseName, or nil when there is none. A nil folderID is the root scope.
	FindByBaseName(ctx context.Context, folderID *string, baseName string) (*model.Asset, error)

	// Create stores a new asset. The id must not exist yet.
	Create(ctx context.Context, asset *model.Asset) error

	// Update runs fn on the current record and persists the result atomically.
	// Calls for the same id are serialized. If fn returns an error nothing is written.
	Update(ctx context.Context, id string, fn func(*model.Asset) error) (*model.Asset, error)

	// Delete removes the record and returns its last state.
	Delete(ctx context.Context, id string) (*model.Asset, error)
}

// FolderStore persists folder records.
type FolderStore interface {
	List(ctx context.Context) ([]*model.Folder, error)
	Get(ctx context.Context, id string) (*model.Folder, error)
	Create(ctx context.Context, folder *model.Folder) error
	Delete(ctx context.Context, id string) error
}

// ThumbnailGenerator renders a still frame for a stored video and returns the
// ref of the stored image.
type ThumbnailGenerator interface {
	Generate(ctx context.Context, videoRef string) (string, error)
}

// ThumbnailScheduler runs thumbnail jobs off the request path.
// Job failures must never reach the caller of Schedule.
type ThumbnailScheduler interface {
	Schedule(name string, job func(ctx context.Context) error)
}
