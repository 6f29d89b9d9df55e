// Package docstring extracts parameter and return types from the three common
// Python docstring conventions.
package docstring

import (
	"fmt"
	"regexp"
	"strings"
)

// Supported conventions.
const (
	FormatNumpy  = "numpydoc"
	FormatGoogle = "googledoc"
	FormatRest   = "restdoc"
	FormatAuto   = "auto"
	FormatOff    = "off"
)

// Formats lists every accepted value of the doc format option.
var Formats = []string{FormatAuto, FormatNumpy, FormatGoogle, FormatRest, FormatOff}

// Param is one documented parameter. Type is empty when the docstring names
// the parameter without giving a type.
type Param struct {
	Name string
	Type string
}

// Section is what a docstring declares about a signature.
type Section struct {
	Format string
	Params []Param

	Returns string
	// ReturnDocumented separates "no return type documented" from "returns None".
	ReturnDocumented bool

	Warnings []string
}

// ParamType returns the documented type of name, ignoring leading stars.
func (s *Section) ParamType(name string) (string, bool) {
	name = strings.TrimLeft(name, "*")
	for _, p := range s.Params {
		if p.Name == name && p.Type != "" {
			return p.Type, true
		}
	}
	return "", false
}

// Empty reports whether the section declares no type at all.
func (s *Section) Empty() bool {
	if s.ReturnDocumented {
		return false
	}
	for _, p := range s.Params {
		if p.Type != "" {
			return false
		}
	}
	return true
}

func (s *Section) addParam(name, typ string) {
	name = strings.TrimLeft(strings.TrimSpace(name), "*")
	if name == "" {
		return
	}
	typ = CleanType(typ)
	for i := range s.Params {
		if s.Params[i].Name == name {
			if typ != "" {
				s.Params[i].Type = typ
			}
			return
		}
	}
	s.Params = append(s.Params, Param{Name: name, Type: typ})
}

func (s *Section) setReturn(typ string) {
	typ = CleanType(typ)
	if typ == "" {
		return
	}
	s.Returns = typ
	s.ReturnDocumented = true
}

func (s *Section) finish() {
	for _, p := range s.Params {
		if p.Type == "" {
			s.Warnings = append(s.Warnings, fmt.Sprintf("parameter %q is documented without a type", p.Name))
		}
	}
}

type parser func(text string) (*Section, bool)

var parsers = map[string]parser{
	FormatNumpy:  parseNumpy,
	FormatGoogle: parseGoogle,
	FormatRest:   parseRest,
}

// autoOrder is the order in which auto detection tries the conventions.
var autoOrder = []string{FormatRest, FormatNumpy, FormatGoogle}

// Parse reads docstring text in the given convention. It returns false when
// the convention's structural markers are absent. With FormatAuto the first
// convention yielding a non-empty section wins.
func Parse(format, text string) (*Section, bool) {
	text = CleanDoc(text)
	switch format {
	case FormatOff, "":
		return nil, false
	case FormatAuto:
		for _, name := range autoOrder {
			if sec, ok := parsers[name](text); ok && !sec.Empty() {
				return sec, true
			}
		}
		return nil, false
	}
	p, ok := parsers[format]
	if !ok {
		return nil, false
	}
	return p(text)
}

// CleanDoc normalizes a docstring like inspect.cleandoc: tabs expanded, the
// common indentation of all lines after the first removed, and blank lines
// trimmed at both ends.
func CleanDoc(doc string) string {
	doc = strings.ReplaceAll(doc, "\r\n", "\n")
	doc = strings.ReplaceAll(doc, "\t", "        ")
	lines := strings.Split(doc, "\n")

	margin := -1
	for _, l := range lines[1:] {
		if strings.TrimSpace(l) == "" {
			continue
		}
		if ind := indentOf(l); margin < 0 || ind < margin {
			margin = ind
		}
	}
	lines[0] = strings.TrimSpace(lines[0])
	if margin > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) >= margin {
				lines[i] = lines[i][margin:]
			} else {
				lines[i] = strings.TrimLeft(lines[i], " ")
			}
		}
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

func indentOf(line string) int {
	return len(line) - len(strings.TrimLeft(line, " "))
}

var (
	defaultSuffix  = regexp.MustCompile(`(?i)\s*,?\s*\bdefaults?\b\s*(?:is\b|[:=])?.*$`)
	optionalSuffix = regexp.MustCompile(`(?i)\s*,?\s*\boptional\s*$`)
	spaceRun       = regexp.MustCompile(`\s+`)
)

// CleanType normalizes a documented type: whitespace collapsed, bracket
// padding removed, and ", optional" / default-value suffixes dropped.
func CleanType(t string) string {
	t = spaceRun.ReplaceAllString(strings.TrimSpace(t), " ")
	t = defaultSuffix.ReplaceAllString(t, "")
	for {
		stripped := optionalSuffix.ReplaceAllString(t, "")
		if stripped == t {
			break
		}
		t = stripped
	}
	t = strings.ReplaceAll(t, "[ ", "[")
	t = strings.ReplaceAll(t, " ]", "]")
	t = strings.ReplaceAll(t, " ,", ",")
	return strings.TrimSpace(strings.TrimRight(t, ", "))
}

// bracketDepth returns the net count of open brackets in s.
func bracketDepth(s string) int {
	depth := 0
	for _, r := range s {
		switch r {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		}
	}
	return depth
}

// topLevelIndex finds the first sep outside brackets, or -1.
func topLevelIndex(s string, sep byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(', '{':
			depth++
		case ']', ')', '}':
			depth--
		case sep:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// joinBalanced appends lines[i+1:] to lines[i] while brackets stay open and
// returns the joined text with the index of the last consumed line.
func joinBalanced(lines []string, i int) (string, int) {
	text := strings.TrimSpace(lines[i])
	for bracketDepth(text) > 0 && i+1 < len(lines) {
		i++
		text += " " + strings.TrimSpace(lines[i])
	}
	return text, i
}

var typeLike = regexp.MustCompile(`^[\w.]+(\[.*\])?$`)

// looksLikeType accepts a single bare type expression such as `int` or `List[str]`.
func looksLikeType(s string) bool {
	return typeLike.MatchString(strings.TrimSpace(s))
}
