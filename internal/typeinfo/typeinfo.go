// Package typeinfo holds resolved signature types and the JSON type-info input.
package typeinfo

import (
	"regexp"
	"strings"
)

// Slot is the type of one parameter or of the return value.
type Slot struct {
	Name string `json:"name,omitempty"`
	Type string `json:"type"`
	// Defaulted marks a filler type (e.g. the default return type) rather
	// than one the source actually declared.
	Defaulted bool `json:"defaulted,omitempty"`
	// Source is the fixer that committed the slot.
	Source string `json:"source,omitempty"`
	// Qualified types may carry module paths (`pkg.mod.Cls`).
	Qualified bool `json:"qualified,omitempty"`
}

// TypeInfo is the resolution of one call site. Parameter slots keep the
// order of the signature.
type TypeInfo struct {
	Params []Slot `json:"params"`
	Return *Slot  `json:"return,omitempty"`
	Source string `json:"source"`
	// Qualified means types may carry module paths that still need to be
	// turned into imports.
	Qualified bool `json:"qualified,omitempty"`
}

// New returns an empty TypeInfo attributed to source.
func New(source string) *TypeInfo {
	return &TypeInfo{Source: source}
}

// Empty reports "no resolution".
func (ti *TypeInfo) Empty() bool {
	return ti == nil || (len(ti.Params) == 0 && ti.Return == nil)
}

// Param returns the slot for name, or nil.
func (ti *TypeInfo) Param(name string) *Slot {
	if ti == nil {
		return nil
	}
	for i := range ti.Params {
		if ti.Params[i].Name == name {
			return &ti.Params[i]
		}
	}
	return nil
}

// SetParam adds or replaces the slot for name.
func (ti *TypeInfo) SetParam(name, typ string, defaulted bool) {
	slot := Slot{Name: name, Type: typ, Defaulted: defaulted, Source: ti.Source, Qualified: ti.Qualified}
	if s := ti.Param(name); s != nil {
		*s = slot
		return
	}
	ti.Params = append(ti.Params, slot)
}

// SetReturn sets the return slot.
func (ti *TypeInfo) SetReturn(typ string, defaulted bool) {
	ti.Return = &Slot{Type: typ, Defaulted: defaulted, Source: ti.Source, Qualified: ti.Qualified}
}

// Types lists every type of the resolution, return last.
func (ti *TypeInfo) Types() []string {
	if ti == nil {
		return nil
	}
	out := make([]string, 0, len(ti.Params)+1)
	for _, p := range ti.Params {
		out = append(out, p.Type)
	}
	if ti.Return != nil {
		out = append(out, ti.Return.Type)
	}
	return out
}

var simpleType = regexp.MustCompile(`^\*{0,2}[\w.:]+$`)

// Simple reports whether every type is a single token, without subscripts.
func (ti *TypeInfo) Simple() bool {
	for _, t := range ti.Types() {
		if !IsSimple(t) {
			return false
		}
	}
	return true
}

// IsSimple reports whether t is a single, unsubscripted type name.
func IsSimple(t string) bool {
	return simpleType.MatchString(strings.TrimSpace(t))
}

// ContainsAny reports whether any type mentions Any.
func (ti *TypeInfo) ContainsAny() bool {
	for _, t := range ti.Types() {
		if MentionsAny(t) {
			return true
		}
	}
	return false
}

var anyWord = regexp.MustCompile(`\bAny\b`)

// MentionsAny reports whether the type expression references Any.
func MentionsAny(t string) bool {
	return anyWord.MatchString(t)
}

// Clone returns a deep copy.
func (ti *TypeInfo) Clone() *TypeInfo {
	if ti == nil {
		return nil
	}
	out := *ti
	out.Params = append([]Slot(nil), ti.Params...)
	if ti.Return != nil {
		r := *ti.Return
		out.Return = &r
	}
	return &out
}
