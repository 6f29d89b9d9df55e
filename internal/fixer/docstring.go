package fixer

import (
	"context"
	"log/slog"

	"typeright/internal/docstring"
	"typeright/internal/source"
	"typeright/internal/typeinfo"
)

// Docstring resolves sites from the types their docstrings declare.
type Docstring struct {
	format        string
	defaultReturn string
	logger        *slog.Logger
}

// NewDocstring returns a fixer reading docstrings in format. defaultReturn is
// used when a docstring documents parameters but no return value.
func NewDocstring(format, defaultReturn string, logger *slog.Logger) *Docstring {
	if defaultReturn == "" {
		defaultReturn = "Any"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Docstring{format: format, defaultReturn: defaultReturn, logger: logger}
}

func (d *Docstring) Name() string { return NameDocstring }

// MayOverride is true: an author's documented types beat recorded ones.
func (d *Docstring) MayOverride() bool { return true }

func (d *Docstring) Resolve(ctx context.Context, site *source.CallSite, file *source.File) (*typeinfo.TypeInfo, error) {
	isInit := site.IsMethod && site.Name == "__init__"
	doc := site.Docstring
	if doc == "" && isInit && site.Class != nil {
		doc = site.Class.Docstring
	}
	if doc == "" {
		return nil, nil
	}
	sec, ok := docstring.Parse(d.format, doc)
	if !ok || sec.Empty() {
		return nil, nil
	}
	for _, w := range sec.Warnings {
		d.logger.Warn(w, "site", site.String(), "format", sec.Format)
	}

	ti := typeinfo.New(NameDocstring)
	for _, p := range site.Params {
		if p.Implicit {
			continue
		}
		if typ, ok := sec.ParamType(p.Name); ok {
			ti.SetParam(p.Name, typ, false)
		} else {
			ti.SetParam(p.Name, "Any", true)
		}
	}
	switch {
	case sec.ReturnDocumented:
		ti.SetReturn(sec.Returns, false)
	case isInit:
		ti.SetReturn("None", true)
	default:
		ti.SetReturn(d.defaultReturn, true)
	}
	return ti, nil
}
