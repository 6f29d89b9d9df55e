package patch

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// ErrOutOfRange is returned when an edit span does not fit the original text.
var ErrOutOfRange = errors.New("edit span out of range")

// OverlapError reports two edits whose original-text spans overlap. It means the
// edit planner produced an inconsistent set and the file must not be written.
type OverlapError struct {
	File   string
	First  Edit
	Second Edit
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("%s: overlapping edits %s and %s", e.File, e.First, e.Second)
}

// Result is the outcome of applying a set of edits to one file.
type Result struct {
	Text    []byte
	Diff    string
	Applied int

	edits []Edit
}

// Changed reports whether the output differs from the input.
func (r *Result) Changed() bool {
	return r.Diff != ""
}

// MapOffset translates an offset of the original text into the output text.
// Offsets inside a replaced span map to the start of its replacement.
func (r *Result) MapOffset(orig int) int {
	delta := 0
	for _, e := range r.edits {
		if e.Offset > orig {
			break
		}
		if e.End <= orig {
			delta += e.Delta()
			continue
		}
		return e.Offset + delta
	}
	return orig + delta
}

// Apply sorts edits by (Offset, Seq), checks that no two spans overlap and
// replays them left to right into a single output buffer.
func Apply(path string, text []byte, edits []Edit) (*Result, error) {
	sorted := append([]Edit(nil), edits...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Offset != sorted[j].Offset {
			return sorted[i].Offset < sorted[j].Offset
		}
		return sorted[i].Seq < sorted[j].Seq
	})

	for i, e := range sorted {
		if e.Offset < 0 || e.End < e.Offset || e.End > len(text) {
			return nil, fmt.Errorf("%s: %s: %w", path, e, ErrOutOfRange)
		}
		for j := 0; j < i; j++ {
			if spansConflict(sorted[j], e) {
				return nil, &OverlapError{File: path, First: sorted[j], Second: e}
			}
		}
	}

	var out bytes.Buffer
	out.Grow(len(text) + totalDelta(sorted))
	cursor := 0
	for _, e := range sorted {
		out.Write(text[cursor:e.Offset])
		out.WriteString(e.Text)
		cursor = e.End
	}
	out.Write(text[cursor:])

	newText := out.Bytes()
	return &Result{
		Text:    newText,
		Diff:    UnifiedDiff(path, text, newText),
		Applied: len(sorted),
		edits:   sorted,
	}, nil
}

// spansConflict reports whether two edits' spans overlap.
// Spans are half-open. Two insertions never conflict; an insertion conflicts
// with a replacement when Start <= pos < End.
func spansConflict(a, b Edit) bool {
	if a.IsInsertion() && b.IsInsertion() {
		return false
	}
	if a.IsInsertion() {
		return b.Offset <= a.Offset && a.Offset < b.End
	}
	if b.IsInsertion() {
		return a.Offset <= b.Offset && b.Offset < a.End
	}
	return a.Offset < b.End && b.Offset < a.End
}

func totalDelta(edits []Edit) int {
	n := 0
	for _, e := range edits {
		if d := e.Delta(); d > 0 {
			n += d
		}
	}
	return n
}
