package caption

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"

	"caprev/internal/model"
)

// Column names with a typed home on model.Segment.
// Every other column is carried in Segment.Extra.
const (
	ColIndex  = "index"
	ColStart  = "start_seconds"
	ColEnd    = "end_seconds"
	ColText   = "text"
	ColAction = "action"
	ColReason = "reason"
)

// DefaultColumns is the header used when a track has no recorded header,
// e.g. data that was first ingested from a subtitle file.
var DefaultColumns = []string{ColIndex, ColStart, ColEnd, ColText, ColAction, ColReason}

func isKnownColumn(name string) bool {
	switch name {
	case ColIndex, ColStart, ColEnd, ColText, ColAction, ColReason:
		return true
	}
	return false
}

// ParseTabular reads a header row and one segment per record.
// Fields are trimmed and blank lines skipped. A payload with no data rows
// fails with *ParseError.
func ParseTabular(r io.Reader) (*Track, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ParseError{Format: FormatCSV, Reason: "empty file"}
	}
	if err != nil {
		return nil, &ParseError{Format: FormatCSV, Reason: "reading header", Err: err}
	}

	columns := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		columns[i] = h
	}

	var segments []model.Segment
	for row := 1; ; row++ {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Format: FormatCSV, Reason: fmt.Sprintf("reading row %d", row), Err: err}
		}
		if len(record) > len(columns) {
			return nil, &ParseError{
				Format: FormatCSV,
				Reason: fmt.Sprintf("row %d has %d fields, header has %d", row, len(record), len(columns)),
			}
		}

		seg, err := segmentFromRecord(columns, record, len(segments)+1)
		if err != nil {
			return nil, &ParseError{Format: FormatCSV, Reason: fmt.Sprintf("row %d", row), Err: err}
		}
		segments = append(segments, seg)
	}

	if len(segments) == 0 {
		return nil, &ParseError{Format: FormatCSV, Reason: "no data rows"}
	}

	return &Track{Columns: columns, Segments: segments}, nil
}

// segmentFromRecord maps one record onto a segment. position is the 1-based
// row number used as the index when the file has no index column.
func segmentFromRecord(columns, record []string, position int) (model.Segment, error) {
	values := make(map[string]string, len(columns))
	var extra map[string]string
	for i, col := range columns {
		v := ""
		if i < len(record) {
			v = strings.TrimSpace(record[i])
		}
		values[col] = v
		if !isKnownColumn(col) {
			if extra == nil {
				extra = make(map[string]string)
			}
			extra[col] = v
		}
	}

	start, err := parseSeconds(values[ColStart])
	if err != nil {
		return model.Segment{}, fmt.Errorf("%s: %w", ColStart, err)
	}
	end, err := parseSeconds(values[ColEnd])
	if err != nil {
		return model.Segment{}, fmt.Errorf("%s: %w", ColEnd, err)
	}
	action, err := parseAction(values[ColAction])
	if err != nil {
		return model.Segment{}, err
	}

	index := values[ColIndex]
	if index == "" {
		index = strconv.Itoa(position)
	}

	seg := newSegment(index, start, end, values[ColText])
	seg.Action = action
	seg.Reason = values[ColReason]
	seg.Extra = extra
	return seg, nil
}

func parseSeconds(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	return v, nil
}

func parseAction(s string) (model.Action, error) {
	switch strings.ToLower(s) {
	case "":
		return "", nil
	case string(model.ActionKeep):
		return model.ActionKeep, nil
	case string(model.ActionCut):
		return model.ActionCut, nil
	default:
		return "", fmt.Errorf("invalid action %q", s)
	}
}

// WriteTabular writes a header row followed by one record per segment.
// columns is the recorded header; known fields set on any segment but missing
// from it, and passthrough keys it does not list, are appended so edits are
// never dropped.
func WriteTabular(w io.Writer, columns []string, segments []model.Segment) error {
	header := ExportColumns(columns, segments)

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, seg := range segments {
		record := make([]string, len(header))
		for j, col := range header {
			record[j] = fieldValue(seg, col)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ExportColumns resolves the header WriteTabular will use.
func ExportColumns(columns []string, segments []model.Segment) []string {
	if len(columns) == 0 {
		columns = DefaultColumns
	}
	header := append([]string(nil), columns...)
	present := make(map[string]bool, len(header))
	for _, c := range header {
		present[c] = true
	}

	for _, col := range []string{ColText, ColAction, ColReason} {
		if present[col] {
			continue
		}
		for _, seg := range segments {
			if fieldValue(seg, col) != "" {
				header = append(header, col)
				present[col] = true
				break
			}
		}
	}

	var extra []string
	for _, seg := range segments {
		for k := range seg.Extra {
			if !present[k] {
				present[k] = true
				extra = append(extra, k)
			}
		}
	}
	sort.Strings(extra)
	return append(header, extra...)
}

func fieldValue(seg model.Segment, col string) string {
	switch col {
	case ColIndex:
		return seg.Index
	case ColStart:
		return formatSeconds(seg.StartSeconds)
	case ColEnd:
		return formatSeconds(seg.EndSeconds)
	case ColText:
		return seg.Text
	case ColAction:
		return string(seg.Action)
	case ColReason:
		return seg.Reason
	default:
		return seg.Extra[col]
	}
}

func formatSeconds(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
