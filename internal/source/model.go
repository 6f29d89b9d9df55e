package source

import (
	"fmt"
	"strings"
)

// ParamKind tells how a parameter binds arguments.
type ParamKind int

const (
	KindNormal ParamKind = iota
	KindVarArgs
	KindKwArgs
	// KindSeparator is a bare `*` or `/` marker. It never carries a type.
	KindSeparator
)

func (k ParamKind) String() string {
	switch k {
	case KindVarArgs:
		return "*"
	case KindKwArgs:
		return "**"
	case KindSeparator:
		return "sep"
	default:
		return "normal"
	}
}

// Param is one entry of a parameter list. All offsets index the original text.
type Param struct {
	Name     string    `json:"name"`
	Kind     ParamKind `json:"kind"`
	Implicit bool      `json:"implicit"` // self / cls of a method
	Default  string    `json:"default,omitempty"`

	Annotation string `json:"annotation,omitempty"`
	Line       int    `json:"line"`

	Start        int `json:"start"`
	End          int `json:"end"`
	NameEnd      int `json:"name_end"`
	AnnStart     int `json:"ann_start"`
	AnnEnd       int `json:"ann_end"`
	DefaultStart int `json:"default_start"`
	DefaultEnd   int `json:"default_end"`

	// CommaEnd is the offset just past the comma following the parameter, or -1.
	CommaEnd int `json:"comma_end"`
	// GapEnd is where the next parameter (or the closing paren) starts.
	GapEnd int `json:"gap_end"`
	// Comment holds the comments found between this parameter and GapEnd.
	Comment string `json:"comment,omitempty"`
}

// HasDefault reports whether the parameter has a default value.
func (p *Param) HasDefault() bool { return p.Default != "" }

// Annotated reports whether the parameter already carries an inline annotation.
func (p *Param) Annotated() bool { return p.Annotation != "" }

// Star returns the `*` / `**` prefix matching the parameter kind.
func (p *Param) Star() string {
	switch p.Kind {
	case KindVarArgs:
		return "*"
	case KindKwArgs:
		return "**"
	}
	return ""
}

// CallSite is one function definition.
type CallSite struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	QualName string `json:"qual_name"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
	Index    int    `json:"index"`

	Params []*Param `json:"params"`
	// Items is the full parameter list, separators included, in source order.
	Items []*Param `json:"-"`

	ReturnAnnotation string `json:"return_annotation,omitempty"`
	RetStart         int    `json:"ret_start"`
	RetEnd           int    `json:"ret_end"`

	Signature  string   `json:"signature"`
	Docstring  string   `json:"docstring,omitempty"`
	Decorators []string `json:"decorators,omitempty"`

	IsMethod      bool `json:"is_method"`
	IsAsync       bool `json:"is_async"`
	IsGenerator   bool `json:"is_generator"`
	HasReturnExpr bool `json:"has_return_expr"`
	OneLiner      bool `json:"one_liner"`
	TypeCommented bool `json:"type_commented"`

	// Class is the enclosing class of a method, nil otherwise.
	Class *ClassInfo `json:"-"`

	DefStart  int `json:"def_start"` // start of the `def` keyword line
	LParen    int `json:"lparen"`
	RParen    int `json:"rparen"`
	Colon     int `json:"colon"`
	BodyStart int `json:"body_start"`

	// Indent is the indentation of the `def` line; BodyIndent the one of the first statement.
	Indent     string `json:"indent"`
	BodyIndent string `json:"body_indent"`
}

// ClassInfo describes the class that owns a method.
type ClassInfo struct {
	Name      string
	QualName  string
	Docstring string
}

// HasDecorator reports whether a simple decorator with that name is applied.
func (s *CallSite) HasDecorator(name string) bool {
	for _, d := range s.Decorators {
		if d == name {
			return true
		}
	}
	return false
}

func (s *CallSite) IsStatic() bool      { return s.HasDecorator("staticmethod") }
func (s *CallSite) IsClassMethod() bool { return s.HasDecorator("classmethod") }

// Annotated reports whether any inline annotation exists on the signature.
func (s *CallSite) Annotated() bool {
	if s.ReturnAnnotation != "" {
		return true
	}
	for _, p := range s.Params {
		if p.Annotated() {
			return true
		}
	}
	return false
}

// Explicit returns the parameters that take a type, i.e. all but self/cls.
func (s *CallSite) Explicit() []*Param {
	out := make([]*Param, 0, len(s.Params))
	for _, p := range s.Params {
		if !p.Implicit {
			out = append(out, p)
		}
	}
	return out
}

// Param looks a parameter up by name.
func (s *CallSite) Param(name string) *Param {
	for _, p := range s.Params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

func (s *CallSite) String() string {
	return fmt.Sprintf("%s:%d:%s", s.Path, s.Line, s.QualName)
}

// Import is one name bound by a top-level import statement.
type Import struct {
	Module  string // "" for `import x`
	Name    string // imported name (`x` or `a.b` for plain imports)
	Binding string // name visible in the module
	Line    int
	// Guarded marks imports living under `if TYPE_CHECKING:`.
	Guarded bool
}

// TypeCheckingBlock is an existing `if TYPE_CHECKING:` statement at module level.
type TypeCheckingBlock struct {
	Line int
	// InsertAt is the offset right after the last line of the block body.
	InsertAt int
	Indent   string
}

// SyntaxError means the file could not be parsed; the file is left untouched.
type SyntaxError struct {
	Path   string
	Line   int
	Column int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: syntax error: %s", e.Path, e.Line, e.Column, e.Msg)
}

// ParseOptions tune how a file is parsed.
type ParseOptions struct {
	// PrintFunction rejects files that still use the print statement.
	PrintFunction bool
	// Module overrides the dotted module name computed from the path.
	Module string
}

// normalizeSignature collapses whitespace runs to single spaces.
func normalizeSignature(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
