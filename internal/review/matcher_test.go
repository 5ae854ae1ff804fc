package review_test

import (
	"errors"
	"reflect"
	"testing"

	"caprev/internal/model"
	"caprev/internal/review"
)

func uploads(names ...string) []review.Upload {
	out := make([]review.Upload, len(names))
	for i, n := range names {
		out[i] = review.Upload{Ref: "ref-" + n, OriginalName: n}
	}
	return out
}

// lookupOf resolves base names against a fixed set of existing assets and
// counts how often each name is asked for.
func lookupOf(existing map[string]*model.Asset, calls map[string]int) review.AssetLookup {
	return func(base string) (*model.Asset, error) {
		if calls != nil {
			calls[base]++
		}
		return existing[base], nil
	}
}

type decisionSummary struct {
	Kind    review.DecisionKind
	Caption string
	Video   string
	Tag     string
}

func summarizePlan(p *review.Plan) []decisionSummary {
	var out []decisionSummary
	for _, d := range p.Decisions {
		s := decisionSummary{Kind: d.Kind, Tag: d.VersionTag}
		if d.Caption != nil {
			s.Caption = d.Caption.OriginalName
		}
		if d.Video != nil {
			s.Video = d.Video.OriginalName
		}
		out = append(out, s)
	}
	return out
}

func TestMatch(t *testing.T) {
	scene1 := &model.Asset{ID: "asset-1", BaseName: "scene1"}

	tests := []struct {
		name     string
		captions []string
		videos   []string
		existing map[string]*model.Asset
		want     []decisionSummary
	}{
		{
			name:     "pairs by match key",
			captions: []string{"a.csv", "b.csv"},
			videos:   []string{"a.mp4", "c.mp4"},
			want: []decisionSummary{
				{Kind: review.CreatePair, Caption: "a.csv", Video: "a.mp4"},
				{Kind: review.CreateCaption, Caption: "b.csv"},
				{Kind: review.DiscardVideo, Video: "c.mp4"},
			},
		},
		{
			name:     "split caption pairs with plain video",
			captions: []string{"talk_split.srt"},
			videos:   []string{"talk.MP4"},
			want: []decisionSummary{
				{Kind: review.CreatePair, Caption: "talk_split.srt", Video: "talk.MP4"},
			},
		},
		{
			name:     "versioned video stacks with matching caption",
			captions: []string{"scene1_v2.csv"},
			videos:   []string{"scene1_v002.mp4"},
			existing: map[string]*model.Asset{"scene1": scene1},
			want: []decisionSummary{
				{Kind: review.StackVideo, Caption: "scene1_v2.csv", Video: "scene1_v002.mp4", Tag: "v002"},
			},
		},
		{
			name:     "versioned video stacks alone when caption version differs",
			captions: []string{"scene1_v003.csv"},
			videos:   []string{"scene1_v002.mp4"},
			existing: map[string]*model.Asset{"scene1": scene1},
			want: []decisionSummary{
				{Kind: review.StackVideo, Video: "scene1_v002.mp4", Tag: "v002"},
				{Kind: review.StackCaption, Caption: "scene1_v003.csv", Tag: "v003"},
			},
		},
		{
			name:     "versioned files without an asset pair normally",
			captions: []string{"scene9_v002.csv"},
			videos:   []string{"scene9_v002.mp4"},
			want: []decisionSummary{
				{Kind: review.CreatePair, Caption: "scene9_v002.csv", Video: "scene9_v002.mp4"},
			},
		},
		{
			name:     "first caption wins",
			captions: []string{"a.csv", "a.srt"},
			videos:   []string{"a.mp4"},
			want: []decisionSummary{
				{Kind: review.CreatePair, Caption: "a.csv", Video: "a.mp4"},
				{Kind: review.CreateCaption, Caption: "a.srt"},
			},
		},
		{
			name:   "empty batch",
			videos: nil,
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := review.Match(uploads(tt.captions...), uploads(tt.videos...), lookupOf(tt.existing, nil))
			if err != nil {
				t.Fatalf("Match() error = %v", err)
			}
			got := summarizePlan(plan)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Match() =\n %+v\nwant\n %+v", got, tt.want)
			}
		})
	}
}

func TestMatch_StackDecisionCarriesAsset(t *testing.T) {
	scene1 := &model.Asset{ID: "asset-1", BaseName: "scene1"}
	plan, err := review.Match(nil, uploads("scene1_v2.webm"), lookupOf(map[string]*model.Asset{"scene1": scene1}, nil))
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if len(plan.Decisions) != 1 || plan.Decisions[0].Asset != scene1 {
		t.Fatalf("Decisions = %+v", plan.Decisions)
	}
}

func TestMatch_CachesLookups(t *testing.T) {
	calls := make(map[string]int)
	_, err := review.Match(
		uploads("x_v002.csv", "x_v003.csv"),
		uploads("x_v004.mp4", "x_v005.mp4"),
		lookupOf(nil, calls),
	)
	if err != nil {
		t.Fatalf("Match() error = %v", err)
	}
	if calls["x"] != 1 {
		t.Errorf("lookup of x called %d times, want 1", calls["x"])
	}
}

func TestMatch_LookupError(t *testing.T) {
	boom := errors.New("disk on fire")
	_, err := review.Match(nil, uploads("x_v002.mp4"), func(string) (*model.Asset, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("Match() error = %v, want wrapped %v", err, boom)
	}
}

func TestDecisionKind_String(t *testing.T) {
	if got := review.StackCaption.String(); got != "stack-caption" {
		t.Errorf("String() = %q", got)
	}
	if got := review.DecisionKind(42).String(); got != "DecisionKind(42)" {
		t.Errorf("String() = %q", got)
	}
}
