package source

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"fortio.org/safecast"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

var typeCommentRe = regexp.MustCompile(`^#\s*type:`)

// File is a parsed Python module. The original bytes are kept untouched.
type File struct {
	Path   string
	Module string
	Sites  []*CallSite

	Imports      []Import
	TypeChecking *TypeCheckingBlock
	// ImportInsertAt is where new top-level import lines go: after the first
	// import block, else after the module docstring, else at the top.
	ImportInsertAt int

	text       []byte
	lineStarts []int

	hashOnce sync.Once
	hash     string
}

// Text returns the original bytes.
func (f *File) Text() []byte { return f.text }

// Hash is the hex SHA-256 of the original bytes.
func (f *File) Hash() string {
	f.hashOnce.Do(func() {
		sum := sha256.Sum256(f.text)
		f.hash = hex.EncodeToString(sum[:])
	})
	return f.hash
}

// Position converts a byte offset to a 1-based line and 0-based column.
func (f *File) Position(offset int) (line, col int) {
	i := sort.Search(len(f.lineStarts), func(i int) bool { return f.lineStarts[i] > offset }) - 1
	if i < 0 {
		i = 0
	}
	return i + 1, offset - f.lineStarts[i]
}

// LineStart returns the offset of the first byte of the line holding offset.
func (f *File) LineStart(offset int) int {
	line, _ := f.Position(offset)
	return f.lineStarts[line-1]
}

// LineEnd returns the offset just past the newline ending the line that holds
// offset, or len(text) on the last line.
func (f *File) LineEnd(offset int) int {
	line, _ := f.Position(offset)
	if line < len(f.lineStarts) {
		return f.lineStarts[line]
	}
	return len(f.text)
}

// Parse builds the source model of one file.
func Parse(path string, text []byte, opts ParseOptions) (*File, error) {
	return ParseCtx(context.Background(), path, text, opts)
}

// ParseCtx is Parse with a context for the tree-sitter run.
func ParseCtx(ctx context.Context, path string, text []byte, opts ParseOptions) (*File, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, text)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file %s: %w", path, err)
	}
	defer tree.Close()

	f := &File{Path: path, Module: opts.Module, text: text, lineStarts: lineStarts(text)}
	root := tree.RootNode()

	if root.HasError() {
		bad := firstBroken(root)
		if bad == nil {
			bad = root
		}
		msg := "invalid syntax"
		if bad.IsMissing() {
			msg = fmt.Sprintf("missing %q", bad.Type())
		}
		return nil, f.syntaxError(bad, msg)
	}
	if opts.PrintFunction {
		if n := findFirst(root, "print_statement"); n != nil {
			return nil, f.syntaxError(n, "print statement used with print_function")
		}
	}

	b := &builder{file: f, src: text}
	b.collectComments(root)
	b.collectImports(root)
	b.walk(root, nil, nil)
	for i, s := range f.Sites {
		s.Index = i
	}
	return f, nil
}

func (f *File) syntaxError(n *sitter.Node, msg string) *SyntaxError {
	line, col := f.Position(offset(n.StartByte()))
	return &SyntaxError{Path: f.Path, Line: line, Column: col, Msg: msg}
}

func lineStarts(text []byte) []int {
	starts := []int{0}
	for i, c := range text {
		if c == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func offset(v uint32) int {
	n, err := safecast.Conv[int](v)
	if err != nil || n < 0 {
		n = 0
	}
	return n
}

func firstBroken(n *sitter.Node) *sitter.Node {
	if n.Type() == "ERROR" || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil || (!c.HasError() && !c.IsMissing()) {
			continue
		}
		if bad := firstBroken(c); bad != nil {
			return bad
		}
	}
	return nil
}

func findFirst(n *sitter.Node, typ string) *sitter.Node {
	if n.Type() == typ {
		return n
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if found := findFirst(n.NamedChild(i), typ); found != nil {
			return found
		}
	}
	return nil
}

type span struct {
	start, end int
	text       string
}

type builder struct {
	file     *File
	src      []byte
	comments []span
}

func (b *builder) collectComments(n *sitter.Node) {
	if n.Type() == "comment" {
		b.comments = append(b.comments, span{offset(n.StartByte()), offset(n.EndByte()), n.Content(b.src)})
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		b.collectComments(n.Child(i))
	}
}

// commentsIn returns the comments starting inside [start, end).
func (b *builder) commentsIn(start, end int) []span {
	i := sort.Search(len(b.comments), func(i int) bool { return b.comments[i].start >= start })
	var out []span
	for ; i < len(b.comments) && b.comments[i].start < end; i++ {
		out = append(out, b.comments[i])
	}
	return out
}

// textWithoutComments returns src[start:end] with comment bodies dropped.
func (b *builder) textWithoutComments(start, end int) string {
	var sb strings.Builder
	cur := start
	for _, c := range b.commentsIn(start, end) {
		sb.Write(b.src[cur:c.start])
		cur = c.end
	}
	if cur < end {
		sb.Write(b.src[cur:end])
	}
	return sb.String()
}

func (b *builder) walk(n *sitter.Node, scope []string, owner *ClassInfo) {
	switch n.Type() {
	case "class_definition":
		name := n.ChildByFieldName("name")
		if name == nil {
			return
		}
		qual := appendScope(scope, name.Content(b.src))
		ci := &ClassInfo{Name: name.Content(b.src), QualName: strings.Join(qual, ".")}
		body := n.ChildByFieldName("body")
		if body != nil {
			ci.Docstring = b.docstring(firstStatement(body))
			b.walkChildren(body, qual, ci)
		}
		return
	case "function_definition":
		site := b.site(n, scope, owner)
		if site == nil {
			return
		}
		b.file.Sites = append(b.file.Sites, site)
		if body := n.ChildByFieldName("body"); body != nil {
			b.walkChildren(body, appendScope(scope, site.Name), nil)
		}
		return
	}
	b.walkChildren(n, scope, owner)
}

func (b *builder) walkChildren(n *sitter.Node, scope []string, owner *ClassInfo) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		b.walk(n.NamedChild(i), scope, owner)
	}
}

func appendScope(scope []string, name string) []string {
	out := make([]string, 0, len(scope)+1)
	out = append(out, scope...)
	return append(out, name)
}

func (b *builder) site(n *sitter.Node, scope []string, owner *ClassInfo) *CallSite {
	nameNode := n.ChildByFieldName("name")
	paramsNode := n.ChildByFieldName("parameters")
	body := n.ChildByFieldName("body")
	if nameNode == nil || paramsNode == nil || body == nil {
		return nil
	}
	f := b.file
	name := nameNode.Content(b.src)
	start := offset(n.StartByte())
	line, col := f.Position(start)

	s := &CallSite{
		Path:     f.Path,
		Name:     name,
		QualName: strings.Join(appendScope(scope, name), "."),
		Line:     line,
		Column:   col,
		IsMethod: owner != nil,
		Class:    owner,
		DefStart: f.LineStart(start),
		LParen:   offset(paramsNode.StartByte()),
		RParen:   offset(paramsNode.EndByte()) - 1,
		Indent:   string(b.src[f.LineStart(start):start]),
	}
	s.IsAsync = n.Child(0) != nil && n.Child(0).Type() == "async"

	if parent := n.Parent(); parent != nil && parent.Type() == "decorated_definition" {
		for i := 0; i < int(parent.NamedChildCount()); i++ {
			d := parent.NamedChild(i)
			if d.Type() != "decorator" {
				continue
			}
			s.Decorators = append(s.Decorators, strings.TrimSpace(strings.TrimPrefix(d.Content(b.src), "@")))
		}
	}

	s.Colon = -1
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c.Type() == ":" && offset(c.StartByte()) > s.RParen {
			s.Colon = offset(c.StartByte())
			break
		}
	}
	if ret := n.ChildByFieldName("return_type"); ret != nil {
		s.ReturnAnnotation = ret.Content(b.src)
		s.RetStart, s.RetEnd = offset(ret.StartByte()), offset(ret.EndByte())
	}

	b.params(s, paramsNode)

	first := firstStatement(body)
	if first == nil {
		first = body
	}
	s.BodyStart = offset(first.StartByte())
	s.BodyIndent = string(b.src[f.LineStart(s.BodyStart):s.BodyStart])
	colonLine, _ := f.Position(s.Colon)
	bodyLine, _ := f.Position(s.BodyStart)
	s.OneLiner = colonLine == bodyLine
	if s.OneLiner {
		s.BodyIndent = s.Indent + "    "
	}
	s.Docstring = b.docstring(first)
	s.HasReturnExpr = containsNode(body, isReturnExpr)
	s.IsGenerator = containsNode(body, func(n *sitter.Node) bool { return n.Type() == "yield" })

	for _, c := range b.commentsIn(s.LParen, s.BodyStart) {
		if typeCommentRe.MatchString(c.text) {
			s.TypeCommented = true
			break
		}
	}

	sigStart := offset(nameNode.StartByte())
	s.Signature = normalizeSignature("def " + b.textWithoutComments(sigStart, s.Colon))
	return s
}

func (b *builder) params(s *CallSite, paramsNode *sitter.Node) {
	var last *Param
	for i := 0; i < int(paramsNode.ChildCount()); i++ {
		c := paramsNode.Child(i)
		switch c.Type() {
		case "(", ")", "comment":
		case ",":
			if last != nil {
				last.CommaEnd = offset(c.EndByte())
			}
		default:
			p := b.param(c)
			s.Items = append(s.Items, p)
			last = p
		}
	}

	for i, p := range s.Items {
		gapStart := p.End
		if p.CommaEnd >= 0 {
			gapStart = p.CommaEnd
		}
		p.GapEnd = s.RParen
		if i+1 < len(s.Items) {
			p.GapEnd = s.Items[i+1].Start
		}
		var comments []string
		for _, c := range b.commentsIn(gapStart, p.GapEnd) {
			comments = append(comments, c.text)
		}
		p.Comment = strings.Join(comments, "  ")

		if p.Kind == KindSeparator {
			continue
		}
		if len(s.Params) == 0 && s.IsMethod && !s.IsStatic() && p.Kind == KindNormal &&
			(p.Name == "self" || p.Name == "cls" || s.IsClassMethod()) {
			p.Implicit = true
		}
		s.Params = append(s.Params, p)
	}
}

func (b *builder) param(n *sitter.Node) *Param {
	f := b.file
	p := &Param{
		Start:        offset(n.StartByte()),
		End:          offset(n.EndByte()),
		CommaEnd:     -1,
		AnnStart:     -1,
		AnnEnd:       -1,
		DefaultStart: -1,
		DefaultEnd:   -1,
	}
	p.Line, _ = f.Position(p.Start)

	setName := func(id *sitter.Node) {
		switch id.Type() {
		case "list_splat_pattern":
			p.Kind = KindVarArgs
			if inner := firstNamed(id, "identifier"); inner != nil {
				id = inner
			}
		case "dictionary_splat_pattern":
			p.Kind = KindKwArgs
			if inner := firstNamed(id, "identifier"); inner != nil {
				id = inner
			}
		}
		p.Name = id.Content(b.src)
		p.NameEnd = offset(id.EndByte())
	}

	switch n.Type() {
	case "keyword_separator", "positional_separator":
		p.Kind = KindSeparator
		p.Name = n.Content(b.src)
		p.NameEnd = p.End
	case "list_splat_pattern", "dictionary_splat_pattern":
		if firstNamed(n, "identifier") == nil {
			p.Kind = KindSeparator
			p.Name = n.Content(b.src)
			p.NameEnd = p.End
			break
		}
		setName(n)
	case "typed_parameter":
		if id := n.NamedChild(0); id != nil {
			setName(id)
		}
	case "default_parameter", "typed_default_parameter":
		if id := n.ChildByFieldName("name"); id != nil {
			setName(id)
		}
		if v := n.ChildByFieldName("value"); v != nil {
			p.Default = v.Content(b.src)
			p.DefaultStart, p.DefaultEnd = offset(v.StartByte()), offset(v.EndByte())
		}
	default:
		setName(n)
	}

	if t := n.ChildByFieldName("type"); t != nil {
		p.Annotation = t.Content(b.src)
		p.AnnStart, p.AnnEnd = offset(t.StartByte()), offset(t.EndByte())
	}
	return p
}

func firstNamed(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func firstStatement(block *sitter.Node) *sitter.Node {
	for i := 0; i < int(block.NamedChildCount()); i++ {
		if c := block.NamedChild(i); c.Type() != "comment" {
			return c
		}
	}
	return nil
}

func (b *builder) docstring(stmt *sitter.Node) string {
	if stmt == nil || stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		return ""
	}
	lit := stmt.NamedChild(0)
	switch lit.Type() {
	case "string":
		return unquote(lit.Content(b.src))
	case "concatenated_string":
		var sb strings.Builder
		for i := 0; i < int(lit.NamedChildCount()); i++ {
			if c := lit.NamedChild(i); c.Type() == "string" {
				sb.WriteString(unquote(c.Content(b.src)))
			}
		}
		return sb.String()
	}
	return ""
}

func unquote(lit string) string {
	i := 0
	for i < len(lit) && strings.IndexByte("rRuUbBfF", lit[i]) >= 0 {
		i++
	}
	body := lit[i:]
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if len(body) >= 2*len(q) && strings.HasPrefix(body, q) && strings.HasSuffix(body, q) {
			return body[len(q) : len(body)-len(q)]
		}
	}
	return body
}

func isReturnExpr(n *sitter.Node) bool {
	if n.Type() != "return_statement" {
		return false
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if n.NamedChild(i).Type() != "comment" {
			return true
		}
	}
	return false
}

// containsNode searches below n without entering nested functions, classes or lambdas.
func containsNode(n *sitter.Node, match func(*sitter.Node) bool) bool {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if match(c) {
			return true
		}
		switch c.Type() {
		case "function_definition", "class_definition", "lambda", "decorated_definition":
			continue
		}
		if containsNode(c, match) {
			return true
		}
	}
	return false
}
