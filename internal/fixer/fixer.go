// Package fixer turns the different sources of type information into
// per-site resolutions and merges them in precedence order.
package fixer

import (
	"context"

	"typeright/internal/source"
	"typeright/internal/typeinfo"
)

// Names of the built-in fixers, in chain order.
const (
	NameJSON      = "json"
	NameCommand   = "command"
	NameDocstring = "docstring"
	NameAny       = "any"
)

// Fixer produces a resolution for one call site. A nil or empty TypeInfo
// means "no resolution".
type Fixer interface {
	Name() string
	// MayOverride lets the fixer replace slots already committed by earlier
	// fixers, and existing inline annotations.
	MayOverride() bool
	Resolve(ctx context.Context, site *source.CallSite, file *source.File) (*typeinfo.TypeInfo, error)
}

// candidateNames lists the function names to look a site up under: the
// qualified name, then the bare name for static and class methods, whose
// class external tools often cannot tell.
func candidateNames(site *source.CallSite) []string {
	names := []string{site.QualName}
	if (site.IsStatic() || site.IsClassMethod()) && site.Name != site.QualName {
		names = append(names, site.Name)
	}
	return names
}
