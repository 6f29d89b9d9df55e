package typeinfo

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeInfo_Slots(t *testing.T) {
	ti := New("json")
	assert.True(t, ti.Empty())

	ti.SetParam("a", "int", false)
	ti.SetParam("b", "List[str]", false)
	ti.SetReturn("None", true)
	ti.SetParam("a", "float", false)

	require.Len(t, ti.Params, 2)
	assert.Equal(t, "float", ti.Param("a").Type)
	assert.Equal(t, "json", ti.Param("a").Source)
	assert.True(t, ti.Return.Defaulted)
	assert.Equal(t, []string{"float", "List[str]", "None"}, ti.Types())
	assert.False(t, ti.Simple())
	assert.False(t, ti.ContainsAny())

	clone := ti.Clone()
	clone.SetParam("a", "Any", false)
	assert.Equal(t, "float", ti.Param("a").Type)
	assert.True(t, clone.ContainsAny())
}

func TestIsSimple(t *testing.T) {
	assert.True(t, IsSimple("int"))
	assert.True(t, IsSimple("*str"))
	assert.True(t, IsSimple("pkg.mod.Cls"))
	assert.False(t, IsSimple("List[int]"))
	assert.False(t, IsSimple("Union[int, str]"))
	assert.False(t, MentionsAny("AnyStr"))
	assert.True(t, MentionsAny("List[Any]"))
}

func TestLoad_SignatureAndCollectionFormats(t *testing.T) {
	input := `[
	  {"path": "pkg/m.py", "line": 3, "func_name": "f",
	   "signature": {"arg_types": ["int", "str"], "return_type": "None"}},
	  {"path": "pkg/m.py", "line": 9, "func_name": "g",
	   "type_comments": ["(int, None) -> str", "(str, int) -> str"], "samples": 4},
	  {"path": "pkg/m.py", "line": 12, "func_name": "h",
	   "signature": {"arg_types": ["List[int]"], "return_type": "int"}}
	]`

	recs, err := Load(strings.NewReader(input), LoadOptions{})
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"Union[int, str]", "Optional[int]"}, recs[1].Signature.ArgTypes)
	assert.Equal(t, "str", recs[1].Signature.ReturnType)

	recs, err = Load(strings.NewReader(input), LoadOptions{OnlySimple: true})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "f", recs[0].FuncName)

	recs, err = Load(strings.NewReader(input), LoadOptions{UsesSignature: true})
	require.NoError(t, err)
	assert.Len(t, recs, 2, "collection records are ignored when signatures are expected")
}

func TestDecode_SingleObject(t *testing.T) {
	recs, err := Decode(strings.NewReader(`{"func_name": "f", "signature": {"arg_types": [], "return_type": "int"}}`))
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "int", recs[0].Signature.ReturnType)

	_, err = Decode(strings.NewReader(`[{"func_name": `))
	assert.Error(t, err)
}

func TestParseTypeComment(t *testing.T) {
	args, ret, err := ParseTypeComment("# type: (Dict[str, int], *Any) -> Tuple[int, str]")
	require.NoError(t, err)
	assert.Equal(t, []string{"Dict[str, int]", "*Any"}, args)
	assert.Equal(t, "Tuple[int, str]", ret)

	args, ret, err = ParseTypeComment("() -> None")
	require.NoError(t, err)
	assert.Empty(t, args)
	assert.Equal(t, "None", ret)

	_, _, err = ParseTypeComment("int -> None")
	assert.Error(t, err)
	_, _, err = ParseTypeComment("(int)")
	assert.Error(t, err)
}

func TestUnifyTypeComments_ArityMismatch(t *testing.T) {
	_, err := UnifyTypeComments([]string{"(int) -> None", "(int, str) -> None"})
	assert.Error(t, err)
}

func TestTable_Lookup(t *testing.T) {
	top := t.TempDir()
	abs := filepath.Join(top, "pkg", "m.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))

	table := NewTable([]Record{
		{Path: "pkg/m.py", Line: 3, FuncName: "f"},
		{Path: abs, Line: 20, FuncName: "f"},
		{Path: "other.py", Line: 3, FuncName: "f"},
		{Path: "pkg/m.py", Line: 5, FuncName: "g"},
	}, top)

	assert.Equal(t, 4, table.Len())
	got := table.Lookup(abs, "f")
	require.Len(t, got, 2)
	assert.Equal(t, 3, got[0].Line)
	assert.Equal(t, 20, got[1].Line)

	assert.Empty(t, table.Lookup(abs, "missing"))

	var nilTable *Table
	assert.Nil(t, nilTable.Lookup(abs, "f"))
}
