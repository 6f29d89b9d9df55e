package render

import (
	"regexp"
	"sort"
	"strings"

	"typeright/internal/patch"
	"typeright/internal/source"
)

// typingNames are the public names of the typing module that rendered
// types may use unqualified.
var typingNames = map[string]bool{}

func init() {
	for _, n := range strings.Fields(`
		AbstractSet Annotated Any AnyStr AsyncContextManager AsyncGenerator AsyncIterable
		AsyncIterator Awaitable BinaryIO ByteString Callable ChainMap ClassVar Collection
		Container ContextManager Coroutine Counter DefaultDict Deque Dict Final FrozenSet
		Generator Generic Hashable IO ItemsView Iterable Iterator KeysView List Literal
		Mapping MappingView Match MutableMapping MutableSequence MutableSet NamedTuple
		NewType NoReturn Optional OrderedDict Pattern Protocol Reversible Sequence Set
		Sized SupportsAbs SupportsBytes SupportsComplex SupportsFloat SupportsIndex
		SupportsInt SupportsRound Text TextIO Tuple Type TypeVar TypedDict Union
		ValuesView`) {
		typingNames[n] = true
	}
}

type importKey struct {
	module string
	name   string
}

// ImportPlan rewrites the types of one file to names the file can resolve
// and collects the imports that makes necessary.
type ImportPlan struct {
	file    *source.File
	seq     [2]int
	plain   map[importKey]bool
	guarded map[importKey]bool
}

// NewImportPlan reserves the sequence numbers of the import edits up front
// so they sort before annotation edits sharing an offset.
func NewImportPlan(file *source.File, seq *patch.Sequencer) *ImportPlan {
	return &ImportPlan{
		file:    file,
		seq:     [2]int{seq.Next(), seq.Next()},
		plain:   make(map[importKey]bool),
		guarded: make(map[importKey]bool),
	}
}

var typeWord = regexp.MustCompile(`[\w.:]+`)

// Rewrite returns t with names adjusted to the file's imports. Bare typing
// names are imported from typing. When qualified is set, dotted names
// (`pkg.mod.Cls` or `pkg.mod:Cls.Inner`) are shortened to an existing
// binding, or imported (under TYPE_CHECKING unless the module is already
// imported at top level).
func (p *ImportPlan) Rewrite(t string, qualified bool) string {
	return typeWord.ReplaceAllStringFunc(t, func(word string) string {
		if word == "..." {
			return word
		}
		if !strings.ContainsAny(word, ".:") {
			return p.bare(word)
		}
		if !qualified {
			return word
		}
		return p.dotted(word)
	})
}

func (p *ImportPlan) bare(word string) string {
	if !typingNames[word] {
		return word
	}
	if binding, ok := p.file.Lookup("typing", word); ok {
		return binding
	}
	p.plain[importKey{"typing", word}] = true
	return word
}

func (p *ImportPlan) dotted(word string) string {
	var mod, name, toImport string
	if i := strings.IndexByte(word, ':'); i >= 0 {
		mod, name = word[:i], word[i+1:]
		toImport, _, _ = strings.Cut(name, ".")
	} else {
		i := strings.LastIndexByte(word, '.')
		mod, name = word[:i], word[i+1:]
		toImport = name
	}
	if mod == "" || toImport == "" || (word[0] >= '0' && word[0] <= '9') {
		return word
	}

	switch mod {
	case "builtins", "__builtin__":
		return name
	case p.file.Module:
		return name
	}
	if binding, ok := p.file.Lookup(mod, toImport); ok {
		return binding + name[len(toImport):]
	}

	key := importKey{mod, toImport}
	if mod == "typing" || p.file.ImportsModule(mod) {
		p.plain[key] = true
	} else {
		p.guarded[key] = true
	}
	return name
}

// Empty reports whether no import is needed.
func (p *ImportPlan) Empty() bool {
	return len(p.plain) == 0 && len(p.guarded) == 0
}

// Edits returns the import insertions: one line per name after the top-level
// imports, and guarded imports in the existing TYPE_CHECKING block or in a
// new one.
func (p *ImportPlan) Edits() []patch.Edit {
	if p.Empty() {
		return nil
	}
	plain := sortedKeys(p.plain)
	guarded := sortedKeys(p.guarded)

	var top strings.Builder
	block := p.file.TypeChecking
	cond := ""
	if len(guarded) > 0 && block == nil {
		binding, ok := p.file.Lookup("typing", "TYPE_CHECKING")
		if !ok {
			binding = "TYPE_CHECKING"
			if !p.plain[importKey{"typing", "TYPE_CHECKING"}] {
				plain = append(plain, importKey{"typing", "TYPE_CHECKING"})
				sortImportKeys(plain)
			}
		}
		cond = binding
	}
	for _, k := range plain {
		top.WriteString(importLine(k))
	}
	if cond != "" {
		top.WriteString("if " + cond + ":\n")
		for _, k := range guarded {
			top.WriteString("    " + importLine(k))
		}
	}

	var edits []patch.Edit
	if top.Len() > 0 {
		edits = append(edits, p.insertLines(p.file.ImportInsertAt, top.String(), p.seq[0]))
	}
	if block != nil && len(guarded) > 0 {
		var b strings.Builder
		for _, k := range guarded {
			b.WriteString(block.Indent + importLine(k))
		}
		edits = append(edits, p.insertLines(block.InsertAt, b.String(), p.seq[1]))
	}
	return edits
}

// insertLines inserts whole lines at offset, which is a line start or the
// end of a file without a trailing newline.
func (p *ImportPlan) insertLines(offset int, lines string, seq int) patch.Edit {
	text := p.file.Text()
	if offset == len(text) && offset > 0 && text[offset-1] != '\n' {
		lines = "\n" + lines
	}
	return patch.Insert(p.file.Path, offset, lines, seq)
}

func importLine(k importKey) string {
	return "from " + k.module + " import " + k.name + "\n"
}

func sortedKeys(m map[importKey]bool) []importKey {
	out := make([]importKey, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sortImportKeys(out)
	return out
}

func sortImportKeys(keys []importKey) {
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].module != keys[j].module {
			return keys[i].module < keys[j].module
		}
		return keys[i].name < keys[j].name
	})
}
