// Package render turns resolved types into text edits against the original
// source: inline annotations or `# type:` comments.
package render

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"typeright/internal/patch"
	"typeright/internal/source"
	"typeright/internal/typeinfo"
)

// Forms a rendered site can take.
const (
	FormInline = "inline"
	FormSingle = "single"
	FormMulti  = "multi"
)

// maxShortWidth is the widest `(A, B) -> R` comment auto style keeps on one line.
const maxShortWidth = 64

// maxShortArgs is the most parameters auto style keeps on one line.
const maxShortArgs = 5

// Rendered is the edit set of one call site.
type Rendered struct {
	Site  *source.CallSite
	Form  string
	Edits []patch.Edit
}

// Renderer renders the sites of one file. Edits are numbered from a single
// sequencer so their order is deterministic.
type Renderer struct {
	file    *source.File
	style   Style
	seq     *patch.Sequencer
	imports *ImportPlan
}

// New returns a renderer for file.
func New(file *source.File, style Style) *Renderer {
	seq := &patch.Sequencer{}
	return &Renderer{
		file:    file,
		style:   style,
		seq:     seq,
		imports: NewImportPlan(file, seq),
	}
}

// Style returns the style in use.
func (r *Renderer) Style() Style { return r.style }

// UseStyle switches the style for the sites rendered from now on.
func (r *Renderer) UseStyle(s Style) { r.style = s }

// ImportEdits returns the import lines the rendered types need.
func (r *Renderer) ImportEdits() []patch.Edit { return r.imports.Edits() }

// Render produces the edits annotating site with ti. Sites that already
// carry inline annotations are always completed inline. Inline rendering
// for Python 2 fails with *UnsupportedStyleError before anything is
// recorded.
func (r *Renderer) Render(ti *typeinfo.TypeInfo, site *source.CallSite) (*Rendered, error) {
	out := &Rendered{Site: site}
	if ti.Empty() {
		return out, nil
	}
	if site.Annotated() {
		out.Form = FormInline
		out.Edits = r.inline(ti, site)
		return out, nil
	}
	if r.style.Surface == SurfaceInline {
		if r.style.PythonMajor < 3 {
			return nil, &UnsupportedStyleError{Surface: SurfaceInline, PythonMajor: r.style.PythonMajor}
		}
		out.Form = FormInline
		out.Edits = r.inline(ti, site)
		return out, nil
	}
	var err error
	out.Form, out.Edits, err = r.comment(ti, site)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Renderer) typeOf(s *typeinfo.Slot) string {
	return r.imports.Rewrite(s.Type, s.Qualified)
}

func (r *Renderer) inline(ti *typeinfo.TypeInfo, site *source.CallSite) []patch.Edit {
	path := r.file.Path
	var edits []patch.Edit
	for i := range ti.Params {
		slot := &ti.Params[i]
		p := site.Param(slot.Name)
		if p == nil || p.Implicit || p.Kind == source.KindSeparator {
			continue
		}
		t := r.typeOf(slot)
		switch {
		case p.Annotated():
			if t != p.Annotation {
				edits = append(edits, patch.Replace(path, p.AnnStart, p.AnnEnd, t, r.seq.Next()))
			}
		case p.HasDefault():
			edits = append(edits, patch.Replace(path, p.NameEnd, p.DefaultStart, ": "+t+" = ", r.seq.Next()))
		default:
			edits = append(edits, patch.Insert(path, p.NameEnd, ": "+t, r.seq.Next()))
		}
	}
	if ti.Return != nil {
		t := r.typeOf(ti.Return)
		switch {
		case site.ReturnAnnotation == "":
			edits = append(edits, patch.Insert(path, site.RParen+1, " -> "+t, r.seq.Next()))
		case t != site.ReturnAnnotation:
			edits = append(edits, patch.Replace(path, site.RetStart, site.RetEnd, t, r.seq.Next()))
		}
	}
	return edits
}

// commentTypes lists the comment type of every explicit parameter, in
// order, with `*`/`**` prefixes, and the return type.
func (r *Renderer) commentTypes(ti *typeinfo.TypeInfo, site *source.CallSite) (params map[*source.Param]string, args []string, ret string) {
	def := r.style.Default
	if def == "" {
		def = "Any"
	}
	params = make(map[*source.Param]string)
	for _, p := range site.Explicit() {
		var t string
		if slot := ti.Param(p.Name); slot != nil {
			t = r.typeOf(slot)
		} else {
			t = r.imports.Rewrite(def, false)
		}
		params[p] = t
		args = append(args, p.Star()+t)
	}
	if ti.Return != nil {
		ret = r.typeOf(ti.Return)
	} else {
		ret = r.imports.Rewrite(def, false)
	}
	return params, args, ret
}

func (r *Renderer) comment(ti *typeinfo.TypeInfo, site *source.CallSite) (string, []patch.Edit, error) {
	params, args, ret := r.commentTypes(ti, site)
	short := "(" + strings.Join(args, ", ") + ") -> " + ret
	degen := "(...) -> " + ret

	multi := false
	switch r.style.Granularity {
	case GranularityMulti:
		multi = len(site.Items) > 0
	case GranularityAuto:
		multi = (runewidth.StringWidth(short) > maxShortWidth || len(args) > maxShortArgs) && len(short) > len(degen)
	}

	if !multi {
		e, err := r.bodyComment(site, "# type: "+short)
		if err != nil {
			return "", nil, err
		}
		return FormSingle, []patch.Edit{e}, nil
	}

	edits := r.paramComments(site, params)
	e, err := r.bodyComment(site, "# type: "+degen)
	if err != nil {
		return "", nil, err
	}
	return FormMulti, append(edits, e), nil
}

// bodyComment places line as the first line of the body, splitting a
// one-line function so the body gets its own line.
func (r *Renderer) bodyComment(site *source.CallSite, line string) (patch.Edit, error) {
	path := r.file.Path
	if site.Colon < 0 {
		return patch.Edit{}, fmt.Errorf("%s: %w", site, source.ErrNoTarget)
	}
	if site.OneLiner {
		text := "\n" + site.BodyIndent + line + "\n" + site.BodyIndent
		return patch.Replace(path, site.Colon+1, site.BodyStart, text, r.seq.Next()), nil
	}
	at, err := r.file.InsertBefore(site, source.Body)
	if err != nil {
		return patch.Edit{}, err
	}
	return patch.Insert(path, at, site.BodyIndent+line+"\n", r.seq.Next()), nil
}

// paramComments puts every parameter on its own line followed by its type
// comment, and the closing paren on a line of its own.
func (r *Renderer) paramComments(site *source.CallSite, params map[*source.Param]string) []patch.Edit {
	path := r.file.Path
	items := site.Items
	first := items[0].Start
	indent := strings.Repeat(" ", first-r.file.LineStart(first))

	var edits []patch.Edit
	for i, it := range items {
		annotation := ""
		if t, ok := params[it]; ok {
			annotation = "  # type: " + t
		}
		if it.Comment != "" {
			annotation += "  " + it.Comment
		}

		if i < len(items)-1 {
			edits = append(edits, patch.Replace(path, it.CommaEnd, it.GapEnd, annotation+"\n"+indent, r.seq.Next()))
			continue
		}

		start, comma := it.CommaEnd, ""
		if start < 0 {
			start = it.End
			if it.Kind != source.KindVarArgs && it.Kind != source.KindKwArgs {
				comma = ","
			}
		}
		edits = append(edits, patch.Replace(path, start, site.RParen, comma+annotation+"\n"+indent, r.seq.Next()))
	}
	return edits
}
