package source

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

func isImportStmt(n *sitter.Node) bool {
	switch n.Type() {
	case "import_statement", "import_from_statement", "future_import_statement":
		return true
	}
	return false
}

func (b *builder) collectImports(root *sitter.Node) {
	f := b.file
	lastImport := -1
	inRun, runDone := false, false
	var docEnd = -1

	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		switch {
		case n.Type() == "comment":
			continue
		case isImportStmt(n):
			f.Imports = append(f.Imports, b.importsOf(n, false)...)
			if !runDone {
				inRun = true
				lastImport = offset(n.EndByte())
			}
			continue
		case n.Type() == "if_statement" && isTypeCheckingCond(n, b.src):
			b.typeCheckingBlock(n)
		case i == 0 && b.docstring(n) != "":
			docEnd = offset(n.EndByte())
		}
		if inRun {
			runDone = true
		}
	}

	switch {
	case lastImport >= 0:
		f.ImportInsertAt = f.LineEnd(lastImport)
	case docEnd >= 0:
		f.ImportInsertAt = f.LineEnd(docEnd)
	default:
		f.ImportInsertAt = b.leadingCommentsEnd()
	}
}

// leadingCommentsEnd skips a shebang and encoding lines at the top of the file.
func (b *builder) leadingCommentsEnd() int {
	f := b.file
	pos := 0
	for line := 0; line < 2 && line < len(f.lineStarts); line++ {
		start := f.lineStarts[line]
		end := f.LineEnd(start)
		text := string(b.src[start:end])
		if strings.HasPrefix(text, "#!") || (strings.HasPrefix(text, "#") && strings.Contains(text, "coding")) {
			pos = end
			continue
		}
		break
	}
	return pos
}

func isTypeCheckingCond(n *sitter.Node, src []byte) bool {
	cond := n.ChildByFieldName("condition")
	if cond == nil {
		return false
	}
	switch strings.TrimSpace(cond.Content(src)) {
	case "TYPE_CHECKING", "typing.TYPE_CHECKING":
		return true
	}
	return false
}

func (b *builder) typeCheckingBlock(n *sitter.Node) {
	f := b.file
	body := n.ChildByFieldName("consequence")
	if body == nil || f.TypeChecking != nil {
		return
	}
	line, _ := f.Position(offset(n.StartByte()))
	block := &TypeCheckingBlock{Line: line}

	var lastEnd int
	for i := 0; i < int(body.NamedChildCount()); i++ {
		c := body.NamedChild(i)
		if c.Type() == "comment" {
			continue
		}
		if block.Indent == "" {
			start := offset(c.StartByte())
			block.Indent = string(b.src[f.LineStart(start):start])
		}
		if isImportStmt(c) {
			f.Imports = append(f.Imports, b.importsOf(c, true)...)
		}
		lastEnd = offset(c.EndByte())
	}
	if block.Indent == "" {
		return
	}
	block.InsertAt = f.LineEnd(lastEnd)
	f.TypeChecking = block
}

func (b *builder) importsOf(n *sitter.Node, guarded bool) []Import {
	f := b.file
	line, _ := f.Position(offset(n.StartByte()))
	var out []Import

	module, moduleStart := "", -1
	if m := n.ChildByFieldName("module_name"); m != nil {
		module, moduleStart = m.Content(b.src), offset(m.StartByte())
	}
	if n.Type() == "future_import_statement" {
		module = "__future__"
	}

	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "comment", "wildcard_import":
			continue
		}
		if offset(c.StartByte()) == moduleStart {
			continue
		}
		var full, binding string
		switch c.Type() {
		case "aliased_import":
			if name := c.ChildByFieldName("name"); name != nil {
				full = name.Content(b.src)
			}
			if alias := c.ChildByFieldName("alias"); alias != nil {
				binding = alias.Content(b.src)
			}
		default:
			full = c.Content(b.src)
		}
		if full == "" {
			continue
		}
		imp := Import{Line: line, Guarded: guarded}
		if n.Type() == "import_statement" {
			// `import a.b.c` binds the dotted path; it is recorded as a.b / c.
			if dot := strings.LastIndexByte(full, '.'); dot >= 0 {
				imp.Module, imp.Name = full[:dot], full[dot+1:]
			} else {
				imp.Name = full
			}
			if binding == "" {
				binding = full
			}
		} else {
			imp.Module, imp.Name = module, full
			if binding == "" {
				binding = full
			}
		}
		imp.Binding = binding
		out = append(out, imp)
	}
	return out
}

// Lookup returns the name under which module.name is reachable through an
// existing import, either imported directly or through its module.
func (f *File) Lookup(module, name string) (string, bool) {
	for _, imp := range f.Imports {
		if imp.Module == module && imp.Name == name {
			return imp.Binding, true
		}
	}
	pkg, mod := "", module
	if dot := strings.LastIndexByte(module, '.'); dot >= 0 {
		pkg, mod = module[:dot], module[dot+1:]
	}
	for _, imp := range f.Imports {
		if imp.Module == pkg && imp.Name == mod {
			return imp.Binding + "." + name, true
		}
	}
	return "", false
}

// ImportsModule reports whether an unguarded top-level import already loads
// module, either as `from module import ...` or `import module`.
func (f *File) ImportsModule(module string) bool {
	for _, imp := range f.Imports {
		if imp.Guarded {
			continue
		}
		if imp.Module == module || imp.Module+"."+imp.Name == module || (imp.Module == "" && imp.Name == module) {
			return true
		}
	}
	return false
}
