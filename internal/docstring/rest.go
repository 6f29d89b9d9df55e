package docstring

import (
	"strings"
)

type restField struct {
	kind  string
	arg   string
	value string
}

var restParamKinds = map[string]bool{
	"param": true, "parameter": true, "arg": true, "argument": true, "key": true, "keyword": true,
}

// restFields collects `:kind arg: value` fields; indented lines that follow a
// field continue its value.
func restFields(lines []string) []restField {
	var out []restField
	cur := -1
	curIndent := 0
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if f, ok := splitRestField(trimmed); ok {
			out = append(out, f)
			cur = len(out) - 1
			curIndent = indentOf(line)
			continue
		}
		if cur >= 0 && trimmed != "" && indentOf(line) > curIndent {
			out[cur].value += " " + trimmed
			continue
		}
		cur = -1
	}
	return out
}

func splitRestField(line string) (restField, bool) {
	if !strings.HasPrefix(line, ":") {
		return restField{}, false
	}
	rest := line[1:]
	end := topLevelIndex(rest, ':')
	if end <= 0 {
		return restField{}, false
	}
	head := strings.TrimSpace(rest[:end])
	kind, arg := head, ""
	if sp := strings.IndexByte(head, ' '); sp >= 0 {
		kind, arg = head[:sp], strings.TrimSpace(head[sp+1:])
	}
	return restField{kind: strings.ToLower(kind), arg: arg, value: strings.TrimSpace(rest[end+1:])}, true
}

// parseRest reads reStructuredText field lists (`:param T x:`, `:type x:`,
// `:rtype:`).
func parseRest(text string) (*Section, bool) {
	sec := &Section{Format: FormatRest}
	found := false

	for _, f := range restFields(strings.Split(text, "\n")) {
		switch {
		case restParamKinds[f.kind]:
			found = true
			if f.arg == "" {
				continue
			}
			name, typ := f.arg, ""
			if sp := strings.LastIndexByte(f.arg, ' '); sp >= 0 {
				typ, name = f.arg[:sp], f.arg[sp+1:]
			}
			sec.addParam(name, typ)
		case f.kind == "type":
			found = true
			sec.addParam(f.arg, f.value)
		case f.kind == "rtype" || f.kind == "returntype":
			found = true
			sec.setReturn(f.value)
		case f.kind == "returns" || f.kind == "return":
			found = true
		}
	}
	if !found {
		return nil, false
	}
	sec.finish()
	return sec, true
}
