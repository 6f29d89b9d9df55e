package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"typeright/internal/patch"
	"typeright/internal/source"
	"typeright/internal/typeinfo"
)

// sig builds a TypeInfo from name/type pairs.
func sig(ret string, pairs ...string) *typeinfo.TypeInfo {
	ti := typeinfo.New("test")
	for i := 0; i+1 < len(pairs); i += 2 {
		ti.SetParam(pairs[i], pairs[i+1], false)
	}
	if ret != "" {
		ti.SetReturn(ret, false)
	}
	return ti
}

func qualified(ti *typeinfo.TypeInfo) *typeinfo.TypeInfo {
	ti.Qualified = true
	for i := range ti.Params {
		ti.Params[i].Qualified = true
	}
	if ti.Return != nil {
		ti.Return.Qualified = true
	}
	return ti
}

func renderAll(t *testing.T, src string, module string, style Style, tis map[string]*typeinfo.TypeInfo) (string, []*Rendered) {
	t.Helper()
	file, err := source.Parse("m.py", []byte(src), source.ParseOptions{Module: module})
	require.NoError(t, err)

	r := New(file, style)
	var edits []patch.Edit
	var out []*Rendered
	for _, site := range file.Sites {
		ti, ok := tis[site.QualName]
		if !ok {
			continue
		}
		rendered, err := r.Render(ti, site)
		require.NoError(t, err)
		out = append(out, rendered)
		edits = append(edits, rendered.Edits...)
	}
	edits = append(edits, r.ImportEdits()...)

	res, err := patch.Apply(file.Path, file.Text(), edits)
	require.NoError(t, err)
	return string(res.Text), out
}

var (
	py3       = Style{Surface: SurfaceInline, Granularity: GranularityAuto, PythonMajor: 3, Default: "Any"}
	py2Single = Style{Surface: SurfaceComment, Granularity: GranularitySingle, PythonMajor: 2, Default: "Any"}
	py2Multi  = Style{Surface: SurfaceComment, Granularity: GranularityMulti, PythonMajor: 2, Default: "Any"}
	py2Auto   = Style{Surface: SurfaceComment, Granularity: GranularityAuto, PythonMajor: 2, Default: "Any"}
)

const docFunc = `def f(a, b):
    """Check.

    :param int a: first
    :param str b: second
    :rtype: bool
    """
    return a == b
`

func TestRender_InlineDocstringScenario(t *testing.T) {
	got, rendered := renderAll(t, docFunc, "", py3, map[string]*typeinfo.TypeInfo{
		"f": sig("bool", "a", "int", "b", "str"),
	})
	assert.Contains(t, got, "def f(a: int, b: str) -> bool:\n")
	require.Len(t, rendered, 1)
	assert.Equal(t, FormInline, rendered[0].Form)
}

func TestRender_MultiCommentScenario(t *testing.T) {
	got, rendered := renderAll(t, docFunc, "", py2Multi, map[string]*typeinfo.TypeInfo{
		"f": sig("bool", "a", "int", "b", "str"),
	})
	want := `def f(a,  # type: int
      b,  # type: str
      ):
    # type: (...) -> bool
    """Check.
`
	assert.Equal(t, want, got[:len(want)])
	assert.Equal(t, FormMulti, rendered[0].Form)
}

func TestRender_MultiKeepsCommentsAndStars(t *testing.T) {
	src := "def f(a,  # the a\n      *args, **kw):\n    pass\n"
	got, _ := renderAll(t, src, "", py2Multi, map[string]*typeinfo.TypeInfo{
		"f": sig("None", "a", "int", "args", "str", "kw", "bool"),
	})
	want := "def f(a,  # type: int  # the a\n" +
		"      *args,  # type: str\n" +
		"      **kw  # type: bool\n" +
		"      ):\n" +
		"    # type: (...) -> None\n" +
		"    pass\n"
	assert.Equal(t, want, got)
}

func TestRender_SingleComment(t *testing.T) {
	tests := []struct {
		name string
		src  string
		tis  map[string]*typeinfo.TypeInfo
		want string
	}{
		{
			name: "one-liner is split",
			src:  "def one(x): return x\n",
			tis:  map[string]*typeinfo.TypeInfo{"one": sig("int", "x", "int")},
			want: "def one(x):\n    # type: (int) -> int\n    return x\n",
		},
		{
			name: "method omits self",
			src:  "class A:\n    def m(self, x):\n        pass\n",
			tis:  map[string]*typeinfo.TypeInfo{"A.m": sig("None", "x", "int")},
			want: "class A:\n    def m(self, x):\n        # type: (int) -> None\n        pass\n",
		},
		{
			name: "existing comment is pushed down",
			src:  "def g(x):\n    # note\n    pass\n",
			tis:  map[string]*typeinfo.TypeInfo{"g": sig("None", "x", "int")},
			want: "def g(x):\n    # type: (int) -> None\n    # note\n    pass\n",
		},
		{
			name: "stars in comment",
			src:  "def h(*args, **kw):\n    pass\n",
			tis:  map[string]*typeinfo.TypeInfo{"h": sig("None", "args", "int", "kw", "str")},
			want: "def h(*args, **kw):\n    # type: (*int, **str) -> None\n    pass\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := renderAll(t, tt.src, "", py2Single, tt.tis)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRender_ResolvedCommentAddsNoImport(t *testing.T) {
	tis := map[string]*typeinfo.TypeInfo{"f": sig("bool", "a", "int", "b", "str")}
	for _, style := range []Style{py2Single, py2Multi} {
		got, rendered := renderAll(t, "def f(a, b):\n    pass\n", "", style, tis)
		require.Len(t, rendered, 1)
		assert.True(t, strings.HasPrefix(got, "def f("), "got %q", got)
		assert.NotContains(t, got, "import")
	}
}

func TestRender_UnresolvedCommentSlotsGetDefault(t *testing.T) {
	got, _ := renderAll(t, "def f(a, b):\n    pass\n", "", py2Single, map[string]*typeinfo.TypeInfo{
		"f": sig("None", "a", "int"),
	})
	assert.Equal(t, "from typing import Any\ndef f(a, b):\n    # type: (int, Any) -> None\n    pass\n", got)
}

func TestRender_AutoGranularity(t *testing.T) {
	src := "def many(a, b, c, d, e, f):\n    pass\n"
	tis := map[string]*typeinfo.TypeInfo{
		"many": sig("None", "a", "int", "b", "int", "c", "int", "d", "int", "e", "int", "f", "int"),
	}
	_, rendered := renderAll(t, src, "", py2Auto, tis)
	assert.Equal(t, FormMulti, rendered[0].Form)

	_, rendered = renderAll(t, "def few(a):\n    pass\n", "", py2Auto, map[string]*typeinfo.TypeInfo{
		"few": sig("None", "a", "int"),
	})
	assert.Equal(t, FormSingle, rendered[0].Form)
}

func TestRender_InlineDefaultsAndOverrides(t *testing.T) {
	src := "def f(a, b=1, *args, c: int = 2) -> int:\n    return a\n"
	got, _ := renderAll(t, src, "", py2Single, map[string]*typeinfo.TypeInfo{
		"f": sig("float", "a", "str", "b", "int", "args", "bytes", "c", "bool"),
	})
	assert.Equal(t, "def f(a: str, b: int = 1, *args: bytes, c: bool = 2) -> float:\n    return a\n", got,
		"annotated sites render inline whatever the style")
}

func TestRender_InlineNeedsPython3(t *testing.T) {
	file, err := source.Parse("m.py", []byte("def f(a):\n    pass\n"), source.ParseOptions{})
	require.NoError(t, err)

	r := New(file, Style{Surface: SurfaceInline, PythonMajor: 2})
	_, err = r.Render(sig("None", "a", "int"), file.Sites[0])
	var unsupported *UnsupportedStyleError
	require.ErrorAs(t, err, &unsupported)
	assert.True(t, r.imports.Empty())

	r.UseStyle(r.Style().Comment())
	rendered, err := r.Render(sig("None", "a", "int"), file.Sites[0])
	require.NoError(t, err)
	assert.Equal(t, FormSingle, rendered.Form)
}

func TestRender_EmptyTypeInfo(t *testing.T) {
	file, err := source.Parse("m.py", []byte("def f(a):\n    pass\n"), source.ParseOptions{})
	require.NoError(t, err)
	rendered, err := New(file, py3).Render(nil, file.Sites[0])
	require.NoError(t, err)
	assert.Empty(t, rendered.Edits)
}

func TestImports_ExistingBlockAndTyping(t *testing.T) {
	src := `"""Doc."""
import os

from typing import TYPE_CHECKING

if TYPE_CHECKING:
    from pkg.models import User


def load(path, user):
    return os.path.exists(path)
`
	got, _ := renderAll(t, src, "", py3, map[string]*typeinfo.TypeInfo{
		"load": qualified(sig("Dict[str, pkg.other.Thing]", "path", "str", "user", "pkg.models.User")),
	})
	want := `"""Doc."""
import os

from typing import TYPE_CHECKING
from typing import Dict

if TYPE_CHECKING:
    from pkg.models import User
    from pkg.other import Thing


def load(path: str, user: User) -> Dict[str, Thing]:
    return os.path.exists(path)
`
	assert.Equal(t, want, got)
}

func TestImports_NewTypeCheckingBlock(t *testing.T) {
	src := "import os\n\n\ndef f(x):\n    pass\n"
	got, _ := renderAll(t, src, "", py3, map[string]*typeinfo.TypeInfo{
		"f": qualified(sig("None", "x", "pkg.mod.Cls")),
	})
	want := "import os\nfrom typing import TYPE_CHECKING\nif TYPE_CHECKING:\n    from pkg.mod import Cls\n\n\ndef f(x: Cls) -> None:\n    pass\n"
	assert.Equal(t, want, got)
}

func TestImportPlan_Rewrite(t *testing.T) {
	src := "import pkg.mod\nimport typing\nfrom collections import OrderedDict as OD\n\ndef f():\n    pass\n"
	file, err := source.Parse("m.py", []byte(src), source.ParseOptions{Module: "app.core"})
	require.NoError(t, err)
	plan := NewImportPlan(file, &patch.Sequencer{})

	tests := []struct {
		in        string
		qualified bool
		want      string
	}{
		{in: "pkg.mod.Cls", qualified: true, want: "pkg.mod.Cls"},
		{in: "List[int]", qualified: false, want: "typing.List[int]"},
		{in: "app.core.Local", qualified: true, want: "Local"},
		{in: "builtins.str", qualified: true, want: "str"},
		{in: "collections.OrderedDict", qualified: true, want: "OD"},
		{in: "other:Outer.Inner", qualified: true, want: "Outer.Inner"},
		{in: "np.ndarray", qualified: false, want: "np.ndarray"},
		{in: "Tuple[int, ...]", qualified: true, want: "typing.Tuple[int, ...]"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, plan.Rewrite(tt.in, tt.qualified))
		})
	}
	assert.True(t, plan.guarded[importKey{"other", "Outer"}])
	assert.Empty(t, plan.plain)
}

func TestStyleFor(t *testing.T) {
	s, err := StyleFor("auto", "auto", 2)
	require.NoError(t, err)
	assert.Equal(t, SurfaceComment, s.Surface)

	s, err = StyleFor("auto", "multi", 3)
	require.NoError(t, err)
	assert.Equal(t, SurfaceInline, s.Surface)
	assert.Equal(t, GranularityMulti, s.Granularity)

	_, err = StyleFor("py4", "auto", 3)
	assert.Error(t, err)
	_, err = StyleFor("py2", "double", 3)
	assert.Error(t, err)
}
