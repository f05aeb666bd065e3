//go:build cgo

package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"
	"golang.org/x/sync/errgroup"

	"github.com/felipestanzani/beyondsight/internal/graph"
)

// JavaAvailable reports whether Java analysis is compiled in.
func JavaAvailable() bool { return true }

// JavaProducer extracts facts from Java sources with tree-sitter. Files are
// parsed in parallel; facts are applied in path order so node IDs are
// stable across runs.
type JavaProducer struct {
	logger  *slog.Logger
	workers int
}

// NewJavaProducer creates a Java fact producer.
func NewJavaProducer(logger *slog.Logger) *JavaProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &JavaProducer{logger: logger, workers: runtime.NumCPU()}
}

// Language implements LanguageProducer.
func (p *JavaProducer) Language() string { return "java" }

// Detect implements LanguageProducer.
func (p *JavaProducer) Detect(root string) bool {
	return hasFile(root, ".java")
}

// Produce implements Producer.
func (p *JavaProducer) Produce(ctx context.Context, root string, sink graph.Sink) error {
	paths, err := findFiles(ctx, root, ".java")
	if err != nil {
		return fmt.Errorf("scan %s: %w", root, err)
	}

	files := make([]javaFile, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, path := range paths {
		g.Go(func() error {
			abs, err := filepath.Abs(path)
			if err != nil {
				return err
			}
			src, err := os.ReadFile(abs)
			if err != nil {
				return err
			}
			f, err := parseJavaSource(gctx, abs, src)
			if err != nil {
				return fmt.Errorf("parse %s: %w", abs, err)
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	p.logger.Debug("java sources parsed", "files", len(files))
	return applyJavaFacts(files, sink)
}

// parseJavaSource extracts the facts of one compilation unit.
func parseJavaSource(ctx context.Context, path string, src []byte) (javaFile, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(java.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return javaFile{}, err
	}
	defer tree.Close()

	x := &javaExtractor{src: src}
	x.collectTypes(tree.RootNode(), nil)
	return javaFile{path: path, classes: x.classes}, nil
}

var javaTypeDecls = map[string]bool{
	"class_declaration":           true,
	"interface_declaration":       true,
	"enum_declaration":            true,
	"record_declaration":          true,
	"annotation_type_declaration": true,
}

type javaExtractor struct {
	src     []byte
	classes []javaClass
}

func (x *javaExtractor) text(n *sitter.Node) string {
	return n.Content(x.src)
}

func nodeLine(n *sitter.Node) int {
	return int(n.StartPoint().Row) + 1
}

// compact drops whitespace from type text: "Map<String, User>" -> "Map<String,User>".
func compact(s string) string {
	return strings.Join(strings.Fields(s), "")
}

func namedChildren(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	count := int(n.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, n.NamedChild(i))
	}
	return out
}

func isComment(n *sitter.Node) bool {
	return n.Type() == "line_comment" || n.Type() == "block_comment"
}

// collectTypes declares top-level type declarations under n.
func (x *javaExtractor) collectTypes(n *sitter.Node, outer map[string]bool) {
	for _, child := range namedChildren(n) {
		if javaTypeDecls[child.Type()] {
			x.declareType(child, outer)
		}
	}
}

// members returns the member declarations of a type body. Enum constants
// and the declarations following them are flattened.
func members(body *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, child := range namedChildren(body) {
		if child.Type() == "enum_body_declarations" {
			out = append(out, namedChildren(child)...)
			continue
		}
		out = append(out, child)
	}
	return out
}

func (x *javaExtractor) declareType(n *sitter.Node, outer map[string]bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return
	}
	c := javaClass{name: x.text(nameNode), line: nodeLine(n)}
	body := n.ChildByFieldName("body")

	if n.Type() == "record_declaration" {
		for _, p := range namedChildren(n.ChildByFieldName("parameters")) {
			if p.Type() != "formal_parameter" {
				continue
			}
			if name, typ := p.ChildByFieldName("name"), p.ChildByFieldName("type"); name != nil && typ != nil {
				c.fields = append(c.fields, javaField{name: x.text(name), typ: compact(x.text(typ)), line: nodeLine(name)})
			}
		}
	}

	decls := members(body)
	for _, m := range decls {
		switch m.Type() {
		case "field_declaration", "constant_declaration":
			t := m.ChildByFieldName("type")
			if t == nil {
				continue
			}
			typ := compact(x.text(t))
			for _, d := range namedChildren(m) {
				if d.Type() != "variable_declarator" {
					continue
				}
				if name := d.ChildByFieldName("name"); name != nil {
					c.fields = append(c.fields, javaField{name: x.text(name), typ: typ, line: nodeLine(name)})
				}
			}
		case "enum_constant":
			if name := m.ChildByFieldName("name"); name != nil {
				c.fields = append(c.fields, javaField{name: x.text(name), typ: c.name, line: nodeLine(name)})
			}
		}
	}

	visible := make(map[string]bool, len(outer)+len(c.fields))
	for k := range outer {
		visible[k] = true
	}
	for _, f := range c.fields {
		visible[f.name] = true
	}

	for _, m := range decls {
		switch m.Type() {
		case "method_declaration", "constructor_declaration", "compact_constructor_declaration":
			if method, ok := x.method(m, c.name, visible); ok {
				c.methods = append(c.methods, method)
			}
		}
	}
	x.classes = append(x.classes, c)

	for _, m := range decls {
		if javaTypeDecls[m.Type()] {
			x.declareType(m, visible)
		}
	}
}

func (x *javaExtractor) method(n *sitter.Node, className string, fields map[string]bool) (javaMethod, bool) {
	nameNode := n.ChildByFieldName("name")
	if nameNode == nil {
		return javaMethod{}, false
	}
	m := javaMethod{name: x.text(nameNode), line: nodeLine(n)}
	if t := n.ChildByFieldName("type"); t != nil {
		m.returnType = compact(x.text(t))
	}

	locals := make(map[string]bool)
	for _, p := range namedChildren(n.ChildByFieldName("parameters")) {
		switch p.Type() {
		case "formal_parameter":
			if t := p.ChildByFieldName("type"); t != nil {
				m.params = append(m.params, compact(x.text(t)))
			}
			if name := p.ChildByFieldName("name"); name != nil {
				locals[x.text(name)] = true
			}
		case "spread_parameter":
			for _, c := range namedChildren(p) {
				switch c.Type() {
				case "modifiers":
				case "variable_declarator":
					if name := c.ChildByFieldName("name"); name != nil {
						locals[x.text(name)] = true
					}
				default:
					m.params = append(m.params, compact(x.text(c))+"...")
				}
			}
		}
	}

	if body := n.ChildByFieldName("body"); body != nil {
		x.collectLocals(body, locals)
		w := &javaBodyWalker{x: x, m: &m, className: className, fields: fields, locals: locals}
		w.walk(body)
	}
	return m, true
}

// collectLocals records every name declared inside a body. Scoping is
// method-wide: a local anywhere in the method shadows a field everywhere.
func (x *javaExtractor) collectLocals(n *sitter.Node, locals map[string]bool) {
	switch n.Type() {
	case "variable_declarator", "formal_parameter", "catch_formal_parameter",
		"enhanced_for_statement", "resource", "instanceof_expression":
		if name := n.ChildByFieldName("name"); name != nil && name.Type() == "identifier" {
			locals[x.text(name)] = true
		}
	case "lambda_expression":
		if p := n.ChildByFieldName("parameters"); p != nil {
			if p.Type() == "identifier" {
				locals[x.text(p)] = true
			}
			if p.Type() == "inferred_parameters" {
				for _, id := range namedChildren(p) {
					locals[x.text(id)] = true
				}
			}
		}
	}
	for _, c := range namedChildren(n) {
		x.collectLocals(c, locals)
	}
}

// javaBodyWalker records calls and field accesses inside one method body.
type javaBodyWalker struct {
	x         *javaExtractor
	m         *javaMethod
	className string
	fields    map[string]bool
	locals    map[string]bool
}

func (w *javaBodyWalker) isField(name string) bool {
	return w.fields[name] && !w.locals[name]
}

func (w *javaBodyWalker) call(name string, args *sitter.Node, line int) {
	count := 0
	for _, a := range namedChildren(args) {
		if !isComment(a) {
			count++
		}
	}
	w.m.calls = append(w.m.calls, javaCall{name: name, args: count, line: line})
}

func (w *javaBodyWalker) walkField(n *sitter.Node, name string) {
	if c := n.ChildByFieldName(name); c != nil {
		w.walk(c)
	}
}

func (w *javaBodyWalker) walk(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "method_invocation":
		if name := n.ChildByFieldName("name"); name != nil {
			w.call(w.x.text(name), n.ChildByFieldName("arguments"), nodeLine(name))
		}
		w.walkField(n, "object")
		w.walkField(n, "arguments")
		return

	case "object_creation_expression":
		if t := n.ChildByFieldName("type"); t != nil {
			w.call(simpleTypeName(w.x.text(t)), n.ChildByFieldName("arguments"), nodeLine(n))
		}
		w.walkField(n, "arguments")
		for _, c := range namedChildren(n) {
			if c.Type() == "class_body" {
				w.walk(c)
			}
		}
		return

	case "explicit_constructor_invocation":
		if c := n.ChildByFieldName("constructor"); c != nil && w.x.text(c) == "this" {
			w.call(w.className, n.ChildByFieldName("arguments"), nodeLine(n))
		}
		w.walkField(n, "arguments")
		return

	case "assignment_expression":
		w.target(n.ChildByFieldName("left"))
		w.walkField(n, "right")
		return

	case "update_expression":
		for _, c := range namedChildren(n) {
			w.target(c)
		}
		return

	case "field_access":
		if f := n.ChildByFieldName("field"); f != nil {
			w.m.reads = append(w.m.reads, javaAccess{name: w.x.text(f), line: nodeLine(f)})
		}
		w.walkField(n, "object")
		return

	case "identifier":
		if name := w.x.text(n); w.isField(name) {
			w.m.reads = append(w.m.reads, javaAccess{name: name, line: nodeLine(n)})
		}
		return

	case "variable_declarator":
		w.walkField(n, "value")
		return

	case "enhanced_for_statement":
		w.walkField(n, "value")
		w.walkField(n, "body")
		return

	case "lambda_expression":
		w.walkField(n, "body")
		return

	case "instanceof_expression":
		w.walkField(n, "left")
		return

	case "formal_parameter", "catch_formal_parameter", "method_reference",
		"marker_annotation", "annotation", "scoped_identifier",
		"break_statement", "continue_statement", "line_comment", "block_comment":
		return

	case "labeled_statement":
		for _, c := range namedChildren(n) {
			if c.Type() != "identifier" {
				w.walk(c)
			}
		}
		return
	}

	for _, c := range namedChildren(n) {
		w.walk(c)
	}
}

// target records the left side of an assignment or update as a write.
func (w *javaBodyWalker) target(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "identifier":
		if name := w.x.text(n); w.isField(name) {
			w.m.writes = append(w.m.writes, javaAccess{name: name, line: nodeLine(n)})
		}
	case "field_access":
		if f := n.ChildByFieldName("field"); f != nil {
			w.m.writes = append(w.m.writes, javaAccess{name: w.x.text(f), line: nodeLine(f)})
		}
		w.walkField(n, "object")
	case "parenthesized_expression":
		for _, c := range namedChildren(n) {
			w.target(c)
		}
	default:
		w.walk(n)
	}
}

// simpleTypeName strips type arguments and qualifiers: "java.util.List<X>" -> "List".
func simpleTypeName(s string) string {
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSpace(s)
}
