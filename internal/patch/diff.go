package patch

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

const contextLines = 3

type lineOp struct {
	kind   diffmatchpatch.Operation
	text   string
	oldPos int // old lines consumed before this op
	newPos int // new lines consumed before this op
}

// UnifiedDiff renders a line-based unified diff between before and after.
// It returns "" when both texts are identical.
func UnifiedDiff(path string, before, after []byte) string {
	if bytes.Equal(before, after) {
		return ""
	}

	var enc lineEncoder
	a, b := enc.encode(string(before)), enc.encode(string(after))
	diffs := diffmatchpatch.New().DiffMainRunes(a, b, false)

	var ops []lineOp
	oldPos, newPos := 0, 0
	for _, d := range diffs {
		for _, line := range enc.decode(d.Text) {
			ops = append(ops, lineOp{kind: d.Type, text: line, oldPos: oldPos, newPos: newPos})
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				oldPos++
				newPos++
			case diffmatchpatch.DiffDelete:
				oldPos++
			case diffmatchpatch.DiffInsert:
				newPos++
			}
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "--- a/%s\n+++ b/%s\n", path, path)
	for _, h := range hunks(ops) {
		writeHunk(&sb, ops[h[0]:h[1]])
	}
	return sb.String()
}

// hunks groups changed ops with their surrounding context into [start, end) ranges.
func hunks(ops []lineOp) [][2]int {
	var out [][2]int
	i := 0
	for i < len(ops) {
		if ops[i].kind == diffmatchpatch.DiffEqual {
			i++
			continue
		}
		start := max(0, i-contextLines)
		end := i
		for end < len(ops) {
			if ops[end].kind != diffmatchpatch.DiffEqual {
				end++
				continue
			}
			run := end
			for run < len(ops) && ops[run].kind == diffmatchpatch.DiffEqual {
				run++
			}
			if run < len(ops) && run-end <= 2*contextLines {
				end = run
				continue
			}
			end = min(len(ops), end+contextLines)
			break
		}
		out = append(out, [2]int{start, end})
		i = end
	}
	return out
}

func writeHunk(sb *strings.Builder, ops []lineOp) {
	oldCount, newCount := 0, 0
	for _, op := range ops {
		switch op.kind {
		case diffmatchpatch.DiffEqual:
			oldCount++
			newCount++
		case diffmatchpatch.DiffDelete:
			oldCount++
		case diffmatchpatch.DiffInsert:
			newCount++
		}
	}
	oldStart, newStart := ops[0].oldPos+1, ops[0].newPos+1
	if oldCount == 0 {
		oldStart--
	}
	if newCount == 0 {
		newStart--
	}
	fmt.Fprintf(sb, "@@ -%s +%s @@\n", hunkRange(oldStart, oldCount), hunkRange(newStart, newCount))

	for _, op := range ops {
		prefix := " "
		switch op.kind {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		}
		sb.WriteString(prefix)
		sb.WriteString(op.text)
		if !strings.HasSuffix(op.text, "\n") {
			sb.WriteString("\n\\ No newline at end of file\n")
		}
	}
}

func hunkRange(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}

// lineEncoder maps every distinct line to one rune so DiffMainRunes
// compares whole lines. Runes skip the surrogate range, which does not
// survive the conversion to Diff.Text.
type lineEncoder struct {
	index map[string]rune
	lines []string
}

const surrogateMin, surrogateMax = 0xD800, 0xDFFF

func (e *lineEncoder) encode(text string) []rune {
	if e.index == nil {
		e.index = make(map[string]rune)
	}
	var out []rune
	for _, line := range splitLines(text) {
		r, ok := e.index[line]
		if !ok {
			r = rune(len(e.lines) + 1)
			if r >= surrogateMin {
				r += surrogateMax - surrogateMin + 1
			}
			e.index[line] = r
			e.lines = append(e.lines, line)
		}
		out = append(out, r)
	}
	return out
}

func (e *lineEncoder) decode(text string) []string {
	var out []string
	for _, r := range text {
		if r > surrogateMax {
			r -= surrogateMax - surrogateMin + 1
		}
		out = append(out, e.lines[r-1])
	}
	return out
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	parts := strings.SplitAfter(text, "\n")
	if parts[len(parts)-1] == "" {
		parts = parts[:len(parts)-1]
	}
	return parts
}
