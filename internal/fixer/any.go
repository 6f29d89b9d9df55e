package fixer

import (
	"context"
	"regexp"
	"strings"

	"typeright/internal/source"
	"typeright/internal/typeinfo"
)

// Any annotates every parameter with Any, narrowing to the type of a
// literal default where there is one.
type Any struct {
	pythonMajor int
}

// NewAny returns the blanket fixer. pythonMajor decides whether u'' string
// defaults are `unicode` (2) or `str`.
func NewAny(pythonMajor int) *Any {
	return &Any{pythonMajor: pythonMajor}
}

func (a *Any) Name() string      { return NameAny }
func (a *Any) MayOverride() bool { return false }

func (a *Any) Resolve(ctx context.Context, site *source.CallSite, file *source.File) (*typeinfo.TypeInfo, error) {
	ti := typeinfo.New(NameAny)
	for _, p := range site.Params {
		if p.Implicit {
			continue
		}
		typ := "Any"
		if p.Kind == source.KindNormal && p.HasDefault() {
			if lit := a.literalType(p.Default); lit != "" {
				typ = lit
			}
		}
		ti.SetParam(p.Name, typ, false)
	}
	if (site.IsMethod && site.Name == "__init__") || !site.HasReturnExpr {
		ti.SetReturn("None", false)
	} else {
		ti.SetReturn("Any", false)
	}
	return ti, nil
}

var (
	intLiteral   = regexp.MustCompile(`^-?(0[xXoObB][0-9a-fA-F_]+|\d[\d_]*)[lL]?$`)
	floatLiteral = regexp.MustCompile(`^-?(\d[\d_]*\.?[\d_]*([eE][-+]?\d+)?|\.\d[\d_]*([eE][-+]?\d+)?)$`)
	strPrefix    = regexp.MustCompile(`^([rRuUbBfF]{0,2})['"]`)
)

func (a *Any) literalType(def string) string {
	def = strings.TrimSpace(def)
	switch {
	case def == "True" || def == "False":
		return "bool"
	case intLiteral.MatchString(def):
		return "int"
	case floatLiteral.MatchString(def):
		return "float"
	}
	if m := strPrefix.FindStringSubmatch(def); m != nil {
		prefix := strings.ToLower(m[1])
		switch {
		case strings.Contains(prefix, "b"):
			if a.pythonMajor >= 3 {
				return "bytes"
			}
			return "str"
		case strings.Contains(prefix, "u") && a.pythonMajor < 3:
			return "unicode"
		}
		return "str"
	}
	return ""
}
