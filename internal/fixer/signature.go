package fixer

import (
	"fmt"
	"strings"

	"typeright/internal/source"
	"typeright/internal/typeinfo"
)

// ArityError means a positional signature does not fit the parameter list
// of the site it was reported for.
type ArityError struct {
	Site       string
	Params     int
	Annotation int
}

func (e *ArityError) Error() string {
	return fmt.Sprintf("%s: source has %d args, annotation has %d -- skipping", e.Site, e.Params, e.Annotation)
}

// fromSignature maps a positional signature onto the parameters of site.
// Tools reporting positional signatures often leave out *args/**kwargs and
// always leave out a leading self/cls, so both are patched up before the
// counts are compared.
func fromSignature(site *source.CallSite, sig typeinfo.Signature, name string) (*typeinfo.TypeInfo, error) {
	args := append([]string(nil), sig.ArgTypes...)
	params := site.Params
	count := len(params)

	var selfish, star, starstar bool
	for i, p := range params {
		switch p.Kind {
		case source.KindVarArgs:
			star = true
		case source.KindKwArgs:
			starstar = true
		}
		if i == 0 && (p.Name == "self" || p.Name == "cls") {
			selfish = true
		}
	}
	for _, a := range args {
		if strings.HasPrefix(a, "**") {
			starstar = false
		} else if strings.HasPrefix(a, "*") {
			star = false
		}
	}
	if star {
		args = append(args, "*Any")
	}
	if starstar {
		args = append(args, "**Any")
	}

	skipFirst := false
	if count > 0 && (selfish || params[0].Implicit) && len(args) == count-1 {
		if params[0].Implicit {
			count--
			skipFirst = true
		} else {
			args = append([]string{"Any"}, args...)
		}
	}
	if len(args) != count {
		return nil, &ArityError{Site: site.String(), Params: count, Annotation: len(args)}
	}
	if !skipFirst && count > 0 && params[0].Implicit {
		// The tool typed self/cls explicitly; comments and inline
		// annotations leave it out.
		args = args[1:]
		skipFirst = true
	}

	ti := typeinfo.New(name)
	ti.Qualified = true
	explicit := params
	if skipFirst {
		explicit = params[1:]
	}
	for i, p := range explicit {
		ti.SetParam(p.Name, strings.TrimLeft(args[i], "*"), false)
	}
	ti.SetReturn(adaptReturn(site, sig.ReturnType), false)
	return ti, nil
}

// adaptReturn fixes the return type for bodies the reporting tool tends to
// misjudge: `None` on a function that returns values, and generators.
func adaptReturn(site *source.CallSite, ret string) string {
	if ret == "" {
		ret = "Any"
	}
	if ret == "None" && site.HasReturnExpr {
		ret = "Optional[Any]"
	}
	if site.IsGenerator && ret != "Iterator" && !strings.HasPrefix(ret, "Iterator[") {
		if strings.HasPrefix(ret, "Optional[") && strings.HasSuffix(ret, "]") {
			ret = ret[len("Optional[") : len(ret)-1]
		}
		ret = "Iterator[" + ret + "]"
	}
	return ret
}
