// Package caption parses and serializes caption payloads.
//
// Two formats map onto one ordered sequence of model.Segment:
//
//	csv  header + comma-delimited records with RFC 4180 quoting
//	srt  numbered subtitle blocks: index, "HH:MM:SS,mmm --> HH:MM:SS,mmm", text
//
// Segments keep ingestion order and are never re-sorted.
package caption

import (
	"fmt"
	"io"

	"caprev/internal/model"
)

// Format names a caption serialization.
type Format string

const (
	FormatCSV Format = "csv"
	FormatSRT Format = "srt"
)

// Track is the result of parsing one caption payload.
// Columns is the tabular header in file order; it is nil for subtitle input.
type Track struct {
	Columns  []string
	Segments []model.Segment
}

// ParseError reports a caption payload that yielded no usable segments
// or could not be decoded.
type ParseError struct {
	Format Format
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parsing %s captions: %s: %v", e.Format, e.Reason, e.Err)
	}
	return fmt.Sprintf("parsing %s captions: %s", e.Format, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse dispatches to the parser for format.
func Parse(format Format, r io.Reader) (*Track, error) {
	switch format {
	case FormatCSV:
		return ParseTabular(r)
	case FormatSRT:
		return ParseSubtitle(r)
	default:
		return nil, &ParseError{Format: format, Reason: "unsupported caption format"}
	}
}

// newSegment builds a segment with clamped timing and the derived duration.
func newSegment(index string, start, end float64, text string) model.Segment {
	return model.Segment{
		Index:        index,
		StartSeconds: start,
		EndSeconds:   end,
		Text:         text,
	}.Normalized()
}
