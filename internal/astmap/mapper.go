//go:build cgo

package astmap

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/rust"

	"remedy/internal/diagnostic"
	"remedy/internal/errors"
)

// Mapper parses source files and resolves diagnostic spans to nodes.
// A Mapper is not safe for concurrent use; create one per goroutine.
type Mapper struct {
	parser *sitter.Parser
}

// NewMapper creates a new tree-sitter backed mapper.
func NewMapper() *Mapper {
	return &Mapper{parser: sitter.NewParser()}
}

// IsAvailable reports whether syntax mapping is available in this build.
func IsAvailable() bool {
	return true
}

func getLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangRust:
		return rust.GetLanguage(), nil
	case LangGo:
		return golang.GetLanguage(), nil
	default:
		return nil, errors.Newf(errors.ParseFailure, "unsupported language: %s", lang)
	}
}

// parse returns the root node, rejecting partial trees: if the grammar
// reports any error node the whole file is unusable for this run.
func (m *Mapper) parse(ctx context.Context, source []byte, lang Language) (*sitter.Node, error) {
	tsLang, err := getLanguage(lang)
	if err != nil {
		return nil, err
	}

	m.parser.SetLanguage(tsLang)
	tree, err := m.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, errors.New(errors.ParseFailure, "tree-sitter parse failed", err)
	}

	root := tree.RootNode()
	if root == nil {
		return nil, errors.Newf(errors.ParseFailure, "tree-sitter produced no tree")
	}
	if root.HasError() {
		return nil, errors.Newf(errors.ParseFailure, "source contains syntax errors")
	}
	return root, nil
}

// CheckParses reports whether the source parses cleanly. Used by the
// safe application engine to verify post-substitution content.
func (m *Mapper) CheckParses(ctx context.Context, source []byte, lang Language) error {
	_, err := m.parse(ctx, source, lang)
	return err
}

// Map resolves a diagnostic span to the smallest node containing it and
// captures the surrounding semantic context. When no node fully contains
// the span, the smallest overlapping node is used and SpanApproximate is
// set. Mapping fails wholesale with a ParseFailure when the file does
// not parse.
func (m *Mapper) Map(ctx context.Context, path string, source []byte, lang Language, span diagnostic.Span) (*Context, error) {
	root, err := m.parse(ctx, source, lang)
	if err != nil {
		return nil, err
	}

	approximate := false
	node := smallestContaining(root, span)
	if node == nil {
		node = smallestOverlapping(root, span)
		if node == nil {
			return nil, errors.Newf(errors.ParseFailure,
				"span %s maps to no node in %s", span, path)
		}
		approximate = true
	}

	mc := &Context{
		Path:            path,
		Language:        lang,
		Source:          source,
		NodeKind:        node.Type(),
		Span:            nodeSpan(node),
		Text:            node.Content(source),
		Fields:          make(map[string]string),
		FieldSpans:      make(map[string]diagnostic.Span),
		SpanApproximate: approximate,
	}

	for _, name := range contextFieldNames {
		if child := node.ChildByFieldName(name); child != nil {
			mc.Fields[name] = child.Content(source)
			mc.FieldSpans[name] = nodeSpan(child)
		}
	}

	for p := node.Parent(); p != nil; p = p.Parent() {
		mc.AncestorKinds = append(mc.AncestorKinds, p.Type())
	}

	decl := enclosingDecl(node, lang)
	if decl != nil {
		mc.Enclosing = declInfo(decl, source, lang)
		mc.LocalBindings = collectBindings(decl, source, lang)
	} else {
		mc.LocalBindings = map[string]string{}
	}

	mc.Imports = collectImports(root, source, lang)
	mc.ScopeIdentifiers = collectIdentifiers(root, source, lang)

	return mc, nil
}

// NodeAt re-resolves a span against current content and returns the kind
// and text of the smallest node containing it. exact is false when only
// an overlapping node was found. The safe application engine calls this
// immediately before writing.
func (m *Mapper) NodeAt(ctx context.Context, source []byte, lang Language, span diagnostic.Span) (kind, text string, exact bool, err error) {
	root, err := m.parse(ctx, source, lang)
	if err != nil {
		return "", "", false, err
	}

	if node := smallestContaining(root, span); node != nil {
		return node.Type(), node.Content(source), true, nil
	}
	if node := smallestOverlapping(root, span); node != nil {
		return node.Type(), node.Content(source), false, nil
	}
	return "", "", false, errors.Newf(errors.ParseFailure, "span %s maps to no node", span)
}

func nodeSpan(n *sitter.Node) diagnostic.Span {
	return diagnostic.Span{Start: n.StartByte(), End: n.EndByte()}
}

func nodeContains(n *sitter.Node, span diagnostic.Span) bool {
	return n.StartByte() <= span.Start && span.End <= n.EndByte()
}

func nodeOverlaps(n *sitter.Node, span diagnostic.Span) bool {
	return nodeSpan(n).Overlaps(span) || nodeContains(n, span)
}

// smallestContaining descends from root following the first (pre-order)
// named child that fully contains the span. Returns nil when root itself
// does not contain it.
func smallestContaining(root *sitter.Node, span diagnostic.Span) *sitter.Node {
	if !nodeContains(root, span) {
		return nil
	}
	cur := root
	for {
		// A zero-length span is an insertion point; it anchors to the
		// outermost node below the root starting there, not to a
		// leading child that shares the same start byte.
		if span.Len() == 0 && cur != root && cur.StartByte() == span.Start {
			return cur
		}
		var next *sitter.Node
		for i := 0; i < int(cur.NamedChildCount()); i++ {
			child := cur.NamedChild(i)
			if child != nil && nodeContains(child, span) {
				next = child
				break
			}
		}
		if next == nil {
			return cur
		}
		cur = next
	}
}

// smallestOverlapping walks the whole tree and returns the smallest
// named node overlapping the span, preferring the earlier node in
// pre-order on equal sizes.
func smallestOverlapping(root *sitter.Node, span diagnostic.Span) *sitter.Node {
	var best *sitter.Node
	bestLen := -1

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || !nodeOverlaps(n, span) {
			return
		}
		length := int(n.EndByte()) - int(n.StartByte())
		if best == nil || length < bestLen {
			best = n
			bestLen = length
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return best
}

// enclosingDecl finds the nearest declaration at or above the node.
func enclosingDecl(node *sitter.Node, lang Language) *sitter.Node {
	kinds := declKinds(lang)
	for n := node; n != nil; n = n.Parent() {
		if kinds[n.Type()] {
			return n
		}
	}
	return nil
}

func declInfo(decl *sitter.Node, source []byte, lang Language) *DeclInfo {
	info := &DeclInfo{
		Kind: decl.Type(),
		Span: nodeSpan(decl),
		Text: decl.Content(source),
	}
	if name := decl.ChildByFieldName("name"); name != nil {
		info.Name = name.Content(source)
	}

	body := decl.ChildByFieldName("body")
	info.HasBody = body != nil

	if kind := awaitKind(lang); kind != "" {
		scope := decl
		if body != nil {
			scope = body
		}
		info.AwaitCount = countKind(scope, kind)
	}
	return info
}

func countKind(root *sitter.Node, kind string) int {
	count := 0
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		if n.Type() == kind {
			count++
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return count
}

// collectBindings gathers parameters and local variable declarations
// inside one declaration, mapping each identifier to its declared type
// text (empty when untyped).
func collectBindings(decl *sitter.Node, source []byte, lang Language) map[string]string {
	bindings := make(map[string]string)

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch lang {
		case LangRust:
			switch n.Type() {
			case "let_declaration", "parameter":
				bindRustPattern(n, source, bindings)
			}
		case LangGo:
			switch n.Type() {
			case "parameter_declaration", "var_spec":
				bindGoNames(n, source, bindings)
			case "short_var_declaration":
				if left := n.ChildByFieldName("left"); left != nil {
					for i := 0; i < int(left.NamedChildCount()); i++ {
						child := left.NamedChild(i)
						if child != nil && child.Type() == "identifier" {
							bindings[child.Content(source)] = ""
						}
					}
				}
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(decl)
	return bindings
}

func bindRustPattern(n *sitter.Node, source []byte, bindings map[string]string) {
	pattern := n.ChildByFieldName("pattern")
	if pattern == nil {
		return
	}
	typeText := ""
	if t := n.ChildByFieldName("type"); t != nil {
		typeText = t.Content(source)
	}

	var names func(p *sitter.Node)
	names = func(p *sitter.Node) {
		if p == nil {
			return
		}
		if p.Type() == "identifier" {
			bindings[p.Content(source)] = typeText
			return
		}
		for i := 0; i < int(p.NamedChildCount()); i++ {
			names(p.NamedChild(i))
		}
	}
	names(pattern)
}

func bindGoNames(n *sitter.Node, source []byte, bindings map[string]string) {
	typeText := ""
	if t := n.ChildByFieldName("type"); t != nil {
		typeText = t.Content(source)
	}
	if name := n.ChildByFieldName("name"); name != nil {
		bindings[name.Content(source)] = typeText
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if child != nil && child.Type() == "identifier" {
			bindings[child.Content(source)] = typeText
		}
	}
}

func collectImports(root *sitter.Node, source []byte, lang Language) []string {
	imports := make([]string, 0)

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil {
			return
		}
		switch {
		case lang == LangRust && n.Type() == "use_declaration":
			if arg := n.ChildByFieldName("argument"); arg != nil {
				imports = append(imports, arg.Content(source))
			}
			return
		case lang == LangGo && n.Type() == "import_spec":
			if path := n.ChildByFieldName("path"); path != nil {
				imports = append(imports, strings.Trim(path.Content(source), `"`))
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return imports
}

// collectIdentifiers gathers distinct identifier references in the file,
// skipping import/use declarations, in order of first appearance.
func collectIdentifiers(root *sitter.Node, source []byte, lang Language) []string {
	idKinds := identifierKinds(lang)
	skip := importKind(lang)
	seen := make(map[string]bool)
	out := make([]string, 0)

	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if n == nil || n.Type() == skip {
			return
		}
		if idKinds[n.Type()] {
			text := n.Content(source)
			if !seen[text] {
				seen[text] = true
				out = append(out, text)
			}
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			walk(n.NamedChild(i))
		}
	}
	walk(root)
	return out
}
