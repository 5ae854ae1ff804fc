package review

import (
	"fmt"

	"caprev/internal/model"
	"caprev/internal/naming"
)

// Upload describes a file already put into the blob store for a batch.
type Upload struct {
	Ref          string `json:"ref"`
	OriginalName string `json:"originalName"`
}

// AssetLookup finds the existing asset with the given base name in the
// batch's folder scope. It returns nil when there is none.
type AssetLookup func(baseName string) (*model.Asset, error)

// DecisionKind says what the ingest pipeline does with one or two uploads.
type DecisionKind int

const (
	// StackVideo appends a video (and its caption, if one was found) as a
	// new version of an existing asset.
	StackVideo DecisionKind = iota
	// CreatePair creates a new asset from a caption and its matching video.
	CreatePair
	// StackCaption appends a caption-only version to an existing asset.
	StackCaption
	// CreateCaption creates a new asset with no video.
	CreateCaption
	// DiscardVideo drops a video nothing matched.
	DiscardVideo
)

func (k DecisionKind) String() string {
	switch k {
	case StackVideo:
		return "stack-video"
	case CreatePair:
		return "create-pair"
	case StackCaption:
		return "stack-caption"
	case CreateCaption:
		return "create-caption"
	case DiscardVideo:
		return "discard-video"
	default:
		return fmt.Sprintf("DecisionKind(%d)", int(k))
	}
}

// Decision is the matcher's verdict for one unit of work.
type Decision struct {
	Kind    DecisionKind
	Caption *Upload
	Video   *Upload

	// Asset and VersionTag are set for the stacking kinds.
	Asset      *model.Asset
	VersionTag string
}

// Files returns the original names of the uploads the decision covers.
func (d Decision) Files() []string {
	var names []string
	if d.Caption != nil {
		names = append(names, d.Caption.OriginalName)
	}
	if d.Video != nil {
		names = append(names, d.Video.OriginalName)
	}
	return names
}

// Plan is the ordered list of decisions for one batch.
// Every upload appears in exactly one decision.
type Plan struct {
	Decisions []Decision
}

// Match pairs a batch of captions and videos and decides how each is stored.
//
// Decisions come out in the order they are considered: version-stack
// candidates first, then caption/video pairs by match key, then leftover
// captions, then leftover videos. Within each step files are taken in upload
// order and the first match wins; every file is consumed at most once.
func Match(captions, videos []Upload, lookup AssetLookup) (*Plan, error) {
	m := &matcher{lookup: lookup, cache: make(map[string]*model.Asset)}
	return m.run(captions, videos)
}

type matcher struct {
	lookup AssetLookup
	cache  map[string]*model.Asset
}

func (m *matcher) find(baseName string) (*model.Asset, error) {
	if a, ok := m.cache[baseName]; ok {
		return a, nil
	}
	a, err := m.lookup(baseName)
	if err != nil {
		return nil, fmt.Errorf("looking up asset %q: %w", baseName, err)
	}
	m.cache[baseName] = a
	return a, nil
}

func (m *matcher) run(captions, videos []Upload) (*Plan, error) {
	plan := &Plan{}
	captionUsed := make([]bool, len(captions))
	videoUsed := make([]bool, len(videos))

	// Videos carrying a version whose base name resolves to an existing asset.
	for vi := range videos {
		base, version := naming.StackKey(videos[vi].OriginalName)
		if version == "" {
			continue
		}
		asset, err := m.find(base)
		if err != nil {
			return nil, err
		}
		if asset == nil {
			continue
		}
		videoUsed[vi] = true

		d := Decision{Kind: StackVideo, Video: &videos[vi], Asset: asset, VersionTag: version}
		for ci := range captions {
			if captionUsed[ci] {
				continue
			}
			cbase, cversion := naming.StackKey(captions[ci].OriginalName)
			if cbase == base && cversion == version {
				captionUsed[ci] = true
				d.Caption = &captions[ci]
				break
			}
		}
		plan.Decisions = append(plan.Decisions, d)
	}

	// Remaining captions pair with remaining videos by match key.
	for ci := range captions {
		if captionUsed[ci] {
			continue
		}
		key := naming.MatchKey(captions[ci].OriginalName)
		for vi := range videos {
			if videoUsed[vi] || naming.MatchKey(videos[vi].OriginalName) != key {
				continue
			}
			captionUsed[ci] = true
			videoUsed[vi] = true
			plan.Decisions = append(plan.Decisions, Decision{Kind: CreatePair, Caption: &captions[ci], Video: &videos[vi]})
			break
		}
	}

	// Unmatched captions stack as caption-only versions or become new assets.
	for ci := range captions {
		if captionUsed[ci] {
			continue
		}
		captionUsed[ci] = true
		d := Decision{Kind: CreateCaption, Caption: &captions[ci]}
		if base, version := naming.StackKey(captions[ci].OriginalName); version != "" {
			asset, err := m.find(base)
			if err != nil {
				return nil, err
			}
			if asset != nil {
				d = Decision{Kind: StackCaption, Caption: &captions[ci], Asset: asset, VersionTag: version}
			}
		}
		plan.Decisions = append(plan.Decisions, d)
	}

	for vi := range videos {
		if !videoUsed[vi] {
			plan.Decisions = append(plan.Decisions, Decision{Kind: DiscardVideo, Video: &videos[vi]})
		}
	}

	return plan, nil
}
