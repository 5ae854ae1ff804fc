package caption

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"caprev/internal/model"
)

var (
	blockSplitRe = regexp.MustCompile(`\n[ \t]*\n`)
	indexLineRe  = regexp.MustCompile(`^\d+$`)
	timingLineRe = regexp.MustCompile(`^(\d+:\d{2}:\d{2}[,.]\d{1,3})\s*-->\s*(\d+:\d{2}:\d{2}[,.]\d{1,3})`)
	markupTagRe  = regexp.MustCompile(`<[^>]*>`)
)

// ParseSubtitle reads blank-line separated subtitle blocks.
// Each block is an optional digits-only index line, a timing line and one or
// more text lines joined with a single space. Blocks with fewer than two
// non-empty lines or a malformed timing line are dropped without error.
// Input with no usable block fails with *ParseError.
func ParseSubtitle(r io.Reader) (*Track, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, &ParseError{Format: FormatSRT, Reason: "reading input", Err: err}
	}

	content := strings.ReplaceAll(string(raw), "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	content = strings.TrimPrefix(content, "\ufeff")

	var segments []model.Segment
	for _, block := range blockSplitRe.Split(content, -1) {
		seg, ok := parseBlock(block, len(segments)+1)
		if ok {
			segments = append(segments, seg)
		}
	}

	if len(segments) == 0 {
		return nil, &ParseError{Format: FormatSRT, Reason: "no valid subtitle blocks"}
	}
	return &Track{Segments: segments}, nil
}

func parseBlock(block string, next int) (model.Segment, bool) {
	var lines []string
	for _, l := range strings.Split(block, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) < 2 {
		return model.Segment{}, false
	}

	index := strconv.Itoa(next)
	if indexLineRe.MatchString(lines[0]) {
		index = lines[0]
		lines = lines[1:]
	}

	m := timingLineRe.FindStringSubmatch(lines[0])
	if m == nil {
		return model.Segment{}, false
	}
	start, err := ParseTimestamp(m[1])
	if err != nil {
		return model.Segment{}, false
	}
	end, err := ParseTimestamp(m[2])
	if err != nil {
		return model.Segment{}, false
	}

	text := markupTagRe.ReplaceAllString(strings.Join(lines[1:], " "), "")
	return newSegment(index, start, end, strings.TrimSpace(text)), true
}

// SubtitleOptions tunes subtitle export.
type SubtitleOptions struct {
	// FontColor, when set, wraps every text line in <font color=...>.
	FontColor string
}

// WriteSubtitle writes every segment as a block numbered from 1,
// ignoring original index labels and keep/cut actions.
func WriteSubtitle(w io.Writer, segments []model.Segment, opts SubtitleOptions) error {
	bw := bufio.NewWriter(w)
	for i, seg := range segments {
		text := blockText(seg.Text)
		if opts.FontColor != "" {
			text = fmt.Sprintf("<font color=%s>%s</font>", opts.FontColor, text)
		}
		if _, err := fmt.Fprintf(bw, "%d\n%s --> %s\n%s\n\n",
			i+1, FormatTimestamp(seg.StartSeconds), FormatTimestamp(seg.EndSeconds), text); err != nil {
			return fmt.Errorf("writing block %d: %w", i+1, err)
		}
	}
	return bw.Flush()
}

// blockText drops blank lines from segment text so it cannot end a block early.
func blockText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, "\n")
}
