package review

import (
	"time"

	"caprev/internal/model"
	"caprev/internal/naming"
)

// initialVersionTag labels the self-snapshot of an asset whose name carries no version.
const initialVersionTag = "v001"

// AppendVersion stacks v onto the asset's history.
// On the first stack the current active state is snapshotted first so it is
// never lost. A tag already present (including the snapshot's own tag) fails
// with *ConflictError and leaves the asset untouched.
func AppendVersion(asset *model.Asset, v *model.Version) error {
	if asset.FindVersion(v.VersionTag) != nil {
		return &ConflictError{AssetID: asset.ID, VersionTag: v.VersionTag}
	}

	if len(asset.Versions) == 0 {
		self := snapshot(asset)
		if self.VersionTag == v.VersionTag {
			return &ConflictError{AssetID: asset.ID, VersionTag: v.VersionTag}
		}
		asset.Versions = append(asset.Versions, self)
	}

	asset.Versions = append(asset.Versions, v)
	return nil
}

// PromoteToActive copies a version's data onto the asset's active fields.
// The video and thumbnail are only replaced when the version carries a video,
// so a caption-only version keeps the current video playing. Stored versions
// are never modified.
func PromoteToActive(asset *model.Asset, v *model.Version, now time.Time) {
	asset.Segments = model.CloneSegments(v.Segments)
	asset.Columns = append([]string(nil), v.Columns...)
	asset.OriginalName = v.OriginalName
	if v.VideoFile != nil {
		asset.VideoFile = copyRef(v.VideoFile)
		asset.ThumbnailFile = copyRef(v.ThumbnailFile)
	}
	asset.LastModified = now
}

// ActiveVersion returns the most recently stacked version, or nil.
func ActiveVersion(asset *model.Asset) *model.Version {
	if len(asset.Versions) == 0 {
		return nil
	}
	return asset.Versions[len(asset.Versions)-1]
}

// snapshot captures the asset's active state as a version.
func snapshot(asset *model.Asset) *model.Version {
	_, tag := naming.StackKey(asset.OriginalName)
	if tag == "" {
		tag = initialVersionTag
	}
	return &model.Version{
		VersionTag:    tag,
		OriginalName:  asset.OriginalName,
		UploadDate:    asset.UploadDate,
		Columns:       append([]string(nil), asset.Columns...),
		Segments:      model.CloneSegments(asset.Segments),
		VideoFile:     copyRef(asset.VideoFile),
		ThumbnailFile: copyRef(asset.ThumbnailFile),
	}
}

// referencedByVersion reports whether any stored version points at ref.
func referencedByVersion(asset *model.Asset, ref string) bool {
	for _, v := range asset.Versions {
		if (v.VideoFile != nil && *v.VideoFile == ref) || (v.ThumbnailFile != nil && *v.ThumbnailFile == ref) {
			return true
		}
	}
	return false
}

func copyRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	r := *ref
	return &r
}
