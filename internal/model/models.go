package model

import "time"

// Action marks whether a segment survives the edit.
// The zero value means the caption file carried no action; consumers treat it as keep.
type Action string

const (
	ActionKeep Action = "keep"
	ActionCut  Action = "cut"
)

// Author identifies which role wrote a comment.
type Author string

const (
	AuthorAdmin Author = "Admin"
	AuthorUser  Author = "User"
)

// Segment is one caption row or subtitle block.
type Segment struct {
	Index           string            `json:"index"`
	StartSeconds    float64           `json:"start_seconds"`
	EndSeconds      float64           `json:"end_seconds"`
	DurationSeconds float64           `json:"duration_seconds"`
	Text            string            `json:"text"`
	Action          Action            `json:"action,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	Extra           map[string]string `json:"extra,omitempty"` // passthrough tabular columns
}

// EffectiveAction returns the action with the absent case resolved to keep.
func (s Segment) EffectiveAction() Action {
	if s.Action == "" {
		return ActionKeep
	}
	return s.Action
}

// Normalized clamps the timing so that 0 <= start <= end and recomputes the duration.
func (s Segment) Normalized() Segment {
	if s.StartSeconds < 0 {
		s.StartSeconds = 0
	}
	if s.EndSeconds < s.StartSeconds {
		s.EndSeconds = s.StartSeconds
	}
	s.DurationSeconds = s.EndSeconds - s.StartSeconds
	return s
}

// CloneSegments deep-copies a segment sequence, including passthrough maps.
func CloneSegments(segments []Segment) []Segment {
	if segments == nil {
		return nil
	}
	out := make([]Segment, len(segments))
	for i, seg := range segments {
		if seg.Extra != nil {
			extra := make(map[string]string, len(seg.Extra))
			for k, v := range seg.Extra {
				extra[k] = v
			}
			seg.Extra = extra
		}
		out[i] = seg
	}
	return out
}

// Asset is a logical caption+video pairing.
type Asset struct {
	ID            string     `json:"id"`
	OriginalName  string     `json:"originalName"`
	BaseName      string     `json:"baseName"` // stacking key, derived from the first upload
	UploadDate    time.Time  `json:"uploadDate"`
	LastModified  time.Time  `json:"lastModified"`
	Completed     bool       `json:"completed"`
	FolderID      *string    `json:"folderId"`
	GroupKey      string     `json:"groupKey"`
	VideoFile     *string    `json:"videoFile"`
	ThumbnailFile *string    `json:"thumbnailFile"`
	Columns       []string   `json:"columns,omitempty"` // tabular header of the active data
	Segments      []Segment  `json:"data"`
	Comments      []*Comment `json:"videoComments"`
	Versions      []*Version `json:"versions"`
}

// HasVideo reports whether a video blob is attached to the active state.
func (a *Asset) HasVideo() bool {
	return a.VideoFile != nil && *a.VideoFile != ""
}

// InFolder reports whether the asset belongs to the given folder scope.
// A nil scope means the root (no folder).
func (a *Asset) InFolder(folderID *string) bool {
	if folderID == nil || a.FolderID == nil {
		return folderID == nil && a.FolderID == nil
	}
	return *folderID == *a.FolderID
}

// FindVersion returns the version with the given tag, or nil.
func (a *Asset) FindVersion(tag string) *Version {
	for _, v := range a.Versions {
		if v.VersionTag == tag {
			return v
		}
	}
	return nil
}

// FindComment returns the index of the comment with the given id, or -1.
func (a *Asset) FindComment(id string) int {
	for i, c := range a.Comments {
		if c.ID == id {
			return i
		}
	}
	return -1
}

// BlobRefs returns every blob referenced by the asset and its versions, deduplicated.
func (a *Asset) BlobRefs() []string {
	seen := make(map[string]bool)
	var refs []string
	add := func(ref *string) {
		if ref == nil || *ref == "" || seen[*ref] {
			return
		}
		seen[*ref] = true
		refs = append(refs, *ref)
	}
	add(a.VideoFile)
	add(a.ThumbnailFile)
	for _, v := range a.Versions {
		add(v.VideoFile)
		add(v.ThumbnailFile)
	}
	return refs
}

// Version is an immutable historical snapshot of an asset's data.
type Version struct {
	VersionTag    string    `json:"versionTag"`
	OriginalName  string    `json:"originalName"`
	UploadDate    time.Time `json:"uploadDate"`
	Columns       []string  `json:"columns,omitempty"`
	Segments      []Segment `json:"data"`
	VideoFile     *string   `json:"videoFile"`
	ThumbnailFile *string   `json:"thumbnailFile"`
}

// Comment is a reviewer note, optionally pinned to a point in the video.
type Comment struct {
	ID        string     `json:"id"`
	Text      string     `json:"text"`
	Timestamp *float64   `json:"timestamp"`
	Author    Author     `json:"author"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
}

// Folder groups assets for display and sharing. It never owns them.
type Folder struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedDate time.Time `json:"createdDate"`
}
