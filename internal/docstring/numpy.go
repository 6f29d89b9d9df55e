package docstring

import (
	"strings"
)

var numpyParamSections = map[string]bool{
	"parameters":         true,
	"params":             true,
	"arguments":          true,
	"other parameters":   true,
	"keyword arguments":  true,
	"keyword parameters": true,
}

var numpyReturnSections = map[string]bool{
	"returns": true,
	"return":  true,
}

type numpySection struct {
	title  string
	indent int
	body   []string
}

func isUnderline(line string) bool {
	t := strings.TrimSpace(line)
	return len(t) >= 3 && strings.Trim(t, "-") == ""
}

func numpySections(lines []string) []numpySection {
	var out []numpySection
	for i := 0; i+1 < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == "" || !isUnderline(lines[i+1]) {
			continue
		}
		sec := numpySection{title: strings.ToLower(strings.TrimSpace(lines[i])), indent: indentOf(lines[i])}
		j := i + 2
		for ; j < len(lines); j++ {
			if j+1 < len(lines) && strings.TrimSpace(lines[j]) != "" && isUnderline(lines[j+1]) {
				break
			}
			sec.body = append(sec.body, lines[j])
		}
		out = append(out, sec)
		i = j - 1
	}
	return out
}

// parseNumpy reads `name : type` entries under underlined section headers.
func parseNumpy(text string) (*Section, bool) {
	sections := numpySections(strings.Split(text, "\n"))
	sec := &Section{Format: FormatNumpy}
	found := false

	for _, ns := range sections {
		switch {
		case numpyParamSections[ns.title]:
			found = true
			for _, entry := range numpyEntries(ns) {
				names, typ := entry, ""
				if idx := strings.Index(entry, ":"); idx >= 0 {
					names, typ = entry[:idx], entry[idx+1:]
				}
				for _, name := range strings.Split(names, ",") {
					sec.addParam(name, typ)
				}
			}
		case numpyReturnSections[ns.title]:
			found = true
			var types []string
			for _, entry := range numpyEntries(ns) {
				typ := entry
				if idx := topLevelIndex(entry, ':'); idx >= 0 {
					typ = entry[idx+1:]
				}
				if typ = CleanType(typ); typ != "" {
					types = append(types, typ)
				}
			}
			switch len(types) {
			case 0:
			case 1:
				sec.setReturn(types[0])
			default:
				sec.setReturn("Tuple[" + strings.Join(types, ", ") + "]")
			}
		}
	}
	if !found {
		return nil, false
	}
	sec.finish()
	return sec, true
}

// numpyEntries returns the definition lines of a section: lines at the
// section's own indentation, with bracket continuations joined.
func numpyEntries(ns numpySection) []string {
	var out []string
	for i := 0; i < len(ns.body); i++ {
		line := ns.body[i]
		if strings.TrimSpace(line) == "" || indentOf(line) > ns.indent {
			continue
		}
		entry, last := joinBalanced(ns.body, i)
		out = append(out, entry)
		i = last
	}
	return out
}
