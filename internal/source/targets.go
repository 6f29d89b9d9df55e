package source

import (
	"errors"
	"fmt"
)

// ErrNoTarget is returned when a site has nothing at the requested anchor.
var ErrNoTarget = errors.New("no such insertion target")

// Anchor names a position inside a function signature.
type Anchor int

const (
	AnchorParamName Anchor = iota
	AnchorParam
	AnchorRParen
	AnchorColon
	AnchorBody
)

// Target is an anchor plus the parameter index it refers to.
type Target struct {
	Anchor Anchor
	Index  int
}

var (
	FirstParam = Target{Anchor: AnchorParam}
	RParen     = Target{Anchor: AnchorRParen}
	Colon      = Target{Anchor: AnchorColon}
	Body       = Target{Anchor: AnchorBody}
)

func ParamName(i int) Target  { return Target{Anchor: AnchorParamName, Index: i} }
func WholeParam(i int) Target { return Target{Anchor: AnchorParam, Index: i} }

func (t Target) String() string {
	switch t.Anchor {
	case AnchorParamName:
		return fmt.Sprintf("param-name[%d]", t.Index)
	case AnchorParam:
		return fmt.Sprintf("param[%d]", t.Index)
	case AnchorRParen:
		return "rparen"
	case AnchorColon:
		return "colon"
	default:
		return "body"
	}
}

// InsertBefore returns the offset at which text lands just before target.
// For AnchorBody that is the start of the line after the signature, or the
// first body statement of a one-line function.
func (f *File) InsertBefore(site *CallSite, t Target) (int, error) {
	switch t.Anchor {
	case AnchorParamName, AnchorParam:
		p, err := paramAt(site, t)
		if err != nil {
			return 0, err
		}
		return p.Start, nil
	case AnchorRParen:
		return site.RParen, nil
	case AnchorColon:
		return site.Colon, nil
	default:
		if site.OneLiner {
			return site.BodyStart, nil
		}
		return f.LineEnd(site.Colon), nil
	}
}

// InsertAfter returns the offset just past target.
func (f *File) InsertAfter(site *CallSite, t Target) (int, error) {
	switch t.Anchor {
	case AnchorParamName:
		p, err := paramAt(site, t)
		if err != nil {
			return 0, err
		}
		return p.NameEnd, nil
	case AnchorParam:
		p, err := paramAt(site, t)
		if err != nil {
			return 0, err
		}
		return p.End, nil
	case AnchorRParen:
		return site.RParen + 1, nil
	case AnchorColon:
		return site.Colon + 1, nil
	default:
		return f.LineEnd(site.BodyStart), nil
	}
}

func paramAt(site *CallSite, t Target) (*Param, error) {
	if t.Index < 0 || t.Index >= len(site.Params) {
		return nil, fmt.Errorf("%s: %s: %w", site, t, ErrNoTarget)
	}
	return site.Params[t.Index], nil
}
