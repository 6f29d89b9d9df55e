package docstring

import (
	"regexp"
	"strings"
)

var googleHeader = regexp.MustCompile(`^(\w+(?: \w+)?):\s*$`)

var googleParamHeaders = map[string]bool{
	"args":              true,
	"arguments":         true,
	"parameters":        true,
	"params":            true,
	"keyword args":      true,
	"keyword arguments": true,
	"other parameters":  true,
}

var googleReturnHeaders = map[string]bool{
	"returns": true,
	"return":  true,
}

var googleKnownHeaders = map[string]bool{
	"yields": true, "raises": true, "examples": true, "example": true, "note": true,
	"notes": true, "attributes": true, "see also": true, "todo": true, "warning": true,
	"warnings": true, "references": true,
}

type googleBlock struct {
	header string
	lines  []string
}

func googleBlocks(lines []string) []googleBlock {
	var out []googleBlock
	for i := 0; i < len(lines); i++ {
		m := googleHeader.FindStringSubmatch(strings.TrimSpace(lines[i]))
		if m == nil {
			continue
		}
		h := strings.ToLower(m[1])
		if !googleParamHeaders[h] && !googleReturnHeaders[h] && !googleKnownHeaders[h] {
			continue
		}
		base := indentOf(lines[i])
		blk := googleBlock{header: h}
		j := i + 1
		for ; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) != "" && indentOf(lines[j]) <= base {
				break
			}
			blk.lines = append(blk.lines, lines[j])
		}
		out = append(out, blk)
		i = j - 1
	}
	return out
}

// entries groups block lines by the indentation of the first entry; deeper
// lines are continuations. Bracket continuations are joined onto the entry.
func (b googleBlock) entries() []string {
	entryIndent := -1
	var out []string
	for i := 0; i < len(b.lines); i++ {
		line := b.lines[i]
		if strings.TrimSpace(line) == "" {
			continue
		}
		if entryIndent < 0 {
			entryIndent = indentOf(line)
		}
		if indentOf(line) > entryIndent {
			continue
		}
		entry, last := joinBalanced(b.lines, i)
		out = append(out, entry)
		i = last
	}
	return out
}

// parseGoogle reads `name (type): description` entries under `Args:` and
// `type: description` under `Returns:`.
func parseGoogle(text string) (*Section, bool) {
	blocks := googleBlocks(strings.Split(text, "\n"))
	sec := &Section{Format: FormatGoogle}
	found := false

	for _, blk := range blocks {
		switch {
		case googleParamHeaders[blk.header]:
			found = true
			for _, entry := range blk.entries() {
				name, typ := splitGoogleParam(entry)
				sec.addParam(name, typ)
			}
		case googleReturnHeaders[blk.header]:
			found = true
			entries := blk.entries()
			if len(entries) == 0 {
				continue
			}
			first := entries[0]
			if idx := topLevelIndex(first, ':'); idx >= 0 {
				if t := CleanType(first[:idx]); topLevelIndex(t, ' ') < 0 {
					sec.setReturn(t)
				}
			} else if t := strings.TrimSuffix(first, "."); looksLikeType(t) {
				sec.setReturn(t)
			}
		}
	}
	if !found {
		return nil, false
	}
	sec.finish()
	return sec, true
}

func splitGoogleParam(entry string) (name, typ string) {
	colon := topLevelIndex(entry, ':')
	head := entry
	if colon >= 0 {
		head = entry[:colon]
	}
	open := strings.IndexByte(head, '(')
	if open < 0 {
		return strings.TrimSpace(head), ""
	}
	closing := matchParen(head, open)
	if closing < 0 {
		return strings.TrimSpace(head[:open]), ""
	}
	return strings.TrimSpace(head[:open]), head[open+1 : closing]
}

// matchParen returns the index of the bracket closing s[open], or -1.
func matchParen(s string, open int) int {
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{':
			depth++
		case ')', ']', '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
