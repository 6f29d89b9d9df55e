package typeinfo

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Signature is the positional form of a suggestion: argument types in
// source order (implicit self/cls omitted, `*`/`**` prefixes allowed) and the
// return type.
type Signature struct {
	ArgTypes   []string `json:"arg_types"`
	ReturnType string   `json:"return_type"`
}

// Record is one entry of the JSON type-info input or of a command reply.
type Record struct {
	Path          string    `json:"path"`
	Line          int       `json:"line"`
	FuncName      string    `json:"func_name"`
	Signature     Signature `json:"signature"`
	SignatureText string    `json:"signature_text,omitempty"`

	// Collection format.
	TypeComments []string `json:"type_comments,omitempty"`
	Samples      int      `json:"samples,omitempty"`

	ContainsAny bool    `json:"contains_any,omitempty"`
	Confidence  float64 `json:"confidence,omitempty"`
}

// HasSignature reports whether the record carries a usable signature.
func (r *Record) HasSignature() bool {
	return r.Signature.ReturnType != "" || len(r.Signature.ArgTypes) > 0
}

// Simple reports whether every type of the signature is a single token.
func (r *Record) Simple() bool {
	for _, t := range append(append([]string(nil), r.Signature.ArgTypes...), r.Signature.ReturnType) {
		if !IsSimple(t) {
			return false
		}
	}
	return true
}

// LoadOptions control how type info is read.
type LoadOptions struct {
	// UsesSignature skips the collection format and expects signatures only.
	UsesSignature bool
	// OnlySimple drops records whose types are not all single tokens.
	OnlySimple bool
}

// Decode reads a JSON array of records, or a single record object.
func Decode(r io.Reader) ([]Record, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}
	if data[0] == '{' {
		var one Record
		if err := json.Unmarshal(data, &one); err != nil {
			return nil, fmt.Errorf("failed to decode type info: %w", err)
		}
		return []Record{one}, nil
	}
	var many []Record
	if err := json.Unmarshal(data, &many); err != nil {
		return nil, fmt.Errorf("failed to decode type info: %w", err)
	}
	return many, nil
}

// Load decodes records and normalizes the collection format into signatures.
func Load(r io.Reader, opts LoadOptions) ([]Record, error) {
	records, err := Decode(r)
	if err != nil {
		return nil, err
	}
	out := records[:0]
	for _, rec := range records {
		if !opts.UsesSignature && !rec.HasSignature() && len(rec.TypeComments) > 0 {
			sig, err := UnifyTypeComments(rec.TypeComments)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %s: %w", rec.Path, rec.Line, rec.FuncName, err)
			}
			rec.Signature = sig
		}
		if !rec.HasSignature() {
			continue
		}
		if opts.OnlySimple && !rec.Simple() {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// LoadFile is Load on a file path.
func LoadFile(path string, opts LoadOptions) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open type info file: %w", err)
	}
	defer f.Close()
	return Load(f, opts)
}

// Table indexes records by function name for per-file lookups.
type Table struct {
	byFunc map[string][]Record
	topDir string
	count  int
}

// NewTable builds a read-only table. Relative record paths are also tried
// against topDir.
func NewTable(records []Record, topDir string) *Table {
	t := &Table{byFunc: make(map[string][]Record), topDir: topDir, count: len(records)}
	for _, r := range records {
		t.byFunc[r.FuncName] = append(t.byFunc[r.FuncName], r)
	}
	return t
}

// Len is the number of records in the table.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.count
}

// Lookup returns the records for funcName that belong to path.
func (t *Table) Lookup(path, funcName string) []Record {
	if t == nil {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	var out []Record
	for _, r := range t.byFunc[funcName] {
		if t.samePath(r.Path, path, abs) {
			out = append(out, r)
		}
	}
	return out
}

func (t *Table) samePath(recPath, path, abs string) bool {
	if recPath == path || filepath.Clean(recPath) == filepath.Clean(path) {
		return true
	}
	if filepath.IsAbs(recPath) {
		return filepath.Clean(recPath) == abs
	}
	return t.topDir != "" && filepath.Join(t.topDir, recPath) == abs
}

// UnifyTypeComments merges collected `(A, B) -> R` comments into one
// signature. Positions that saw several types become a Union; None among
// other types becomes Optional.
func UnifyTypeComments(comments []string) (Signature, error) {
	var args [][]string
	var rets []string
	for _, c := range comments {
		argTypes, ret, err := ParseTypeComment(c)
		if err != nil {
			return Signature{}, err
		}
		if args == nil {
			args = make([][]string, len(argTypes))
		} else if len(argTypes) != len(args) {
			return Signature{}, fmt.Errorf("type comments disagree on argument count: %q", c)
		}
		for i, a := range argTypes {
			args[i] = appendUnique(args[i], a)
		}
		rets = appendUnique(rets, ret)
	}
	sig := Signature{ArgTypes: make([]string, len(args)), ReturnType: unionOf(rets)}
	for i, alts := range args {
		sig.ArgTypes[i] = unionOf(alts)
	}
	return sig, nil
}

// ParseTypeComment splits `(A, B) -> R` into its argument types and return type.
func ParseTypeComment(c string) ([]string, string, error) {
	c = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(c), "# type:"))
	if !strings.HasPrefix(c, "(") {
		return nil, "", fmt.Errorf("malformed type comment %q", c)
	}
	depth, closing := 0, -1
	for i := 0; i < len(c) && closing < 0; i++ {
		switch c[i] {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth == 0 {
				closing = i
			}
		}
	}
	if closing < 0 {
		return nil, "", fmt.Errorf("malformed type comment %q", c)
	}
	rest := strings.TrimSpace(c[closing+1:])
	if !strings.HasPrefix(rest, "->") {
		return nil, "", fmt.Errorf("type comment %q has no return type", c)
	}
	return SplitTopLevel(c[1:closing]), strings.TrimSpace(rest[2:]), nil
}

// SplitTopLevel splits a comma separated type list, ignoring commas nested
// in brackets.
func SplitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	if last := strings.TrimSpace(s[start:]); last != "" || len(out) > 0 {
		out = append(out, last)
	}
	return out
}

func appendUnique(list []string, v string) []string {
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func unionOf(alts []string) string {
	var stars string
	var rest []string
	hasNone := false
	for _, a := range alts {
		switch {
		case strings.HasPrefix(a, "**"):
			stars, a = "**", a[2:]
		case strings.HasPrefix(a, "*"):
			stars, a = "*", a[1:]
		}
		if a == "None" {
			hasNone = true
			continue
		}
		rest = appendUnique(rest, a)
	}
	var t string
	switch len(rest) {
	case 0:
		t = "None"
		hasNone = false
	case 1:
		t = rest[0]
	default:
		t = "Union[" + strings.Join(rest, ", ") + "]"
	}
	if hasNone {
		t = "Optional[" + t + "]"
	}
	return stars + t
}
