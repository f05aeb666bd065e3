package analyzer

import (
	"context"
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/felipestanzani/beyondsight/internal/graph"
)

// GoProducer extracts facts from a Go module. Named types become classes,
// struct fields become fields, and methods are declared on their receiver
// type. Package-level functions are declared on a class named after the
// package. Calls and field accesses are resolved through go/types and kept
// only when they target the project's own packages.
type GoProducer struct {
	logger *slog.Logger
}

// NewGoProducer creates a Go fact producer.
func NewGoProducer(logger *slog.Logger) *GoProducer {
	if logger == nil {
		logger = slog.Default()
	}
	return &GoProducer{logger: logger}
}

// Language implements LanguageProducer.
func (p *GoProducer) Language() string { return "go" }

// Detect implements LanguageProducer.
func (p *GoProducer) Detect(root string) bool {
	return fileExists(filepath.Join(root, "go.mod"))
}

// Produce implements Producer.
func (p *GoProducer) Produce(ctx context.Context, root string, sink graph.Sink) error {
	pkgs, err := LoadPackages(ctx, root, p.logger)
	if err != nil {
		return err
	}
	pkgs = FilterMainPackages(pkgs)
	sort.Slice(pkgs, func(i, j int) bool { return pkgs[i].PkgPath < pkgs[j].PkgPath })

	project := make(map[string]bool, len(pkgs))
	for _, pkg := range pkgs {
		project[pkg.PkgPath] = true
	}

	files := 0
	for _, pkg := range pkgs {
		for _, file := range pkg.Syntax {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := pkg.Fset.Position(file.Package).Filename
			if strings.HasSuffix(path, "_test.go") {
				continue
			}
			abs, err := filepath.Abs(path)
			if err != nil {
				return fmt.Errorf("resolve %s: %w", path, err)
			}
			fileID, err := sink.UpsertFile(filepath.Base(abs), abs)
			if err != nil {
				return err
			}
			gf := &goFile{
				sink:    sink,
				pkg:     pkg,
				file:    file,
				project: project,
				path:    abs,
				fileID:  fileID,
			}
			if err := gf.produce(); err != nil {
				return fmt.Errorf("%s: %w", abs, err)
			}
			files++
		}
	}
	p.logger.Debug("go sources analyzed", "packages", len(pkgs), "files", files)
	return nil
}

// goFile emits the facts of one parsed file.
type goFile struct {
	sink    graph.Sink
	pkg     *packages.Package
	file    *ast.File
	project map[string]bool
	path    string
	fileID  int64

	pkgClass int64
}

func (g *goFile) line(pos token.Pos) int {
	return g.pkg.Fset.Position(pos).Line
}

func (g *goFile) info() *types.Info {
	return g.pkg.TypesInfo
}

func (g *goFile) produce() error {
	for _, decl := range g.file.Decls {
		switch d := decl.(type) {
		case *ast.GenDecl:
			if d.Tok != token.TYPE {
				continue
			}
			for _, spec := range d.Specs {
				if err := g.declareType(spec.(*ast.TypeSpec)); err != nil {
					return err
				}
			}
		case *ast.FuncDecl:
			if err := g.declareFunc(d); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *goFile) declareType(ts *ast.TypeSpec) error {
	obj, ok := g.info().Defs[ts.Name].(*types.TypeName)
	if !ok || obj.IsAlias() {
		return nil
	}
	classID, err := g.sink.UpsertType(obj.Name(), g.path)
	if err != nil {
		return err
	}
	if err := g.sink.DeclareType(g.fileID, classID, g.line(ts.Pos())); err != nil {
		return err
	}

	switch t := ts.Type.(type) {
	case *ast.StructType:
		for _, f := range t.Fields.List {
			typeText := types.ExprString(f.Type)
			if len(f.Names) == 0 {
				if name := embeddedName(f.Type); name != "" {
					if err := g.declareField(classID, name, typeText, f.Pos()); err != nil {
						return err
					}
				}
				continue
			}
			for _, name := range f.Names {
				if err := g.declareField(classID, name.Name, typeText, name.Pos()); err != nil {
					return err
				}
			}
		}
	case *ast.InterfaceType:
		iface, ok := obj.Type().Underlying().(*types.Interface)
		if !ok {
			return nil
		}
		for i := 0; i < iface.NumExplicitMethods(); i++ {
			fn := iface.ExplicitMethod(i)
			if _, err := g.declareMethod(classID, fn, g.line(fn.Pos())); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *goFile) declareField(classID int64, name, typeText string, pos token.Pos) error {
	fieldID, err := g.sink.UpsertField(name)
	if err != nil {
		return err
	}
	if err := g.sink.SetFieldType(fieldID, typeText); err != nil {
		return err
	}
	return g.sink.DeclareField(classID, fieldID, g.line(pos))
}

func (g *goFile) declareMethod(classID int64, fn *types.Func, line int) (int64, error) {
	sig, ret, params := goSignature(fn)
	methodID, err := g.sink.UpsertMethod(sig)
	if err != nil {
		return 0, err
	}
	if err := g.sink.SetMethodTypes(methodID, ret, params); err != nil {
		return 0, err
	}
	return methodID, g.sink.DeclareMethod(classID, methodID, line)
}

// packageClass returns the class holding package-level functions, declared
// in this file at the package clause.
func (g *goFile) packageClass() (int64, error) {
	if g.pkgClass != 0 {
		return g.pkgClass, nil
	}
	id, err := g.sink.UpsertType(g.pkg.Name, g.path)
	if err != nil {
		return 0, err
	}
	if err := g.sink.DeclareType(g.fileID, id, g.line(g.file.Package)); err != nil {
		return 0, err
	}
	g.pkgClass = id
	return id, nil
}

func (g *goFile) declareFunc(fd *ast.FuncDecl) error {
	fn, ok := g.info().Defs[fd.Name].(*types.Func)
	if !ok {
		return nil
	}

	var classID int64
	var err error
	if fd.Recv != nil {
		name := receiverTypeName(fn)
		if name == "" {
			return nil
		}
		// The receiver type is declared in its own file
		classID, err = g.sink.UpsertType(name, "")
	} else {
		classID, err = g.packageClass()
	}
	if err != nil {
		return err
	}

	methodID, err := g.declareMethod(classID, fn, g.line(fd.Name.Pos()))
	if err != nil {
		return err
	}
	if fd.Body == nil {
		return nil
	}
	return g.walkBody(methodID, fd.Body)
}

// walkBody records calls, reads and writes made inside a function body,
// function literals included. Compound assignments and inc/dec statements
// both read and write their target.
func (g *goFile) walkBody(methodID int64, body *ast.BlockStmt) error {
	uses := make(map[*ast.SelectorExpr]access)
	var firstErr error
	fail := func(err error) bool {
		if err != nil && firstErr == nil {
			firstErr = err
		}
		return firstErr == nil
	}

	ast.Inspect(body, func(n ast.Node) bool {
		if firstErr != nil {
			return false
		}
		switch x := n.(type) {
		case *ast.AssignStmt:
			mode := accessWrite
			if x.Tok != token.ASSIGN && x.Tok != token.DEFINE {
				mode = accessReadWrite
			}
			for _, lhs := range x.Lhs {
				if sel, ok := ast.Unparen(lhs).(*ast.SelectorExpr); ok {
					uses[sel] = mode
				}
			}
		case *ast.IncDecStmt:
			if sel, ok := ast.Unparen(x.X).(*ast.SelectorExpr); ok {
				uses[sel] = accessReadWrite
			}
		case *ast.CallExpr:
			return fail(g.recordCall(methodID, x))
		case *ast.SelectorExpr:
			return fail(g.recordSelector(methodID, x, uses[x]))
		case *ast.CompositeLit:
			for _, elt := range x.Elts {
				kv, ok := elt.(*ast.KeyValueExpr)
				if !ok {
					continue
				}
				if key, ok := kv.Key.(*ast.Ident); ok {
					if !fail(g.recordFieldIdent(methodID, key)) {
						return false
					}
				}
			}
		}
		return true
	})
	return firstErr
}

// access is how a statement uses a selected field.
type access int

const (
	accessRead access = iota
	accessWrite
	accessReadWrite
)

func (g *goFile) inProject(pkg *types.Package) bool {
	return pkg != nil && g.project[pkg.Path()]
}

func (g *goFile) recordCall(methodID int64, call *ast.CallExpr) error {
	fn, ok := typeutil.Callee(g.info(), call).(*types.Func)
	if !ok || !g.inProject(fn.Pkg()) {
		return nil
	}
	sig, _, _ := goSignature(fn.Origin())
	calleeID, err := g.sink.UpsertMethod(sig)
	if err != nil {
		return err
	}
	return g.sink.RecordCall(methodID, calleeID, g.line(call.Lparen))
}

func (g *goFile) recordSelector(methodID int64, sel *ast.SelectorExpr, mode access) error {
	selection, ok := g.info().Selections[sel]
	if !ok || selection.Kind() != types.FieldVal {
		return nil
	}
	v, ok := selection.Obj().(*types.Var)
	if !ok || !g.inProject(v.Pkg()) {
		return nil
	}
	fieldID, err := g.sink.UpsertField(v.Name())
	if err != nil {
		return err
	}
	line := g.line(sel.Sel.Pos())
	if mode != accessWrite {
		if err := g.sink.RecordRead(methodID, fieldID, line); err != nil {
			return err
		}
	}
	if mode != accessRead {
		return g.sink.RecordWrite(methodID, fieldID, line)
	}
	return nil
}

// recordFieldIdent records a keyed composite literal element as a write.
func (g *goFile) recordFieldIdent(methodID int64, key *ast.Ident) error {
	v, ok := g.info().Uses[key].(*types.Var)
	if !ok || !v.IsField() || !g.inProject(v.Pkg()) {
		return nil
	}
	fieldID, err := g.sink.UpsertField(v.Name())
	if err != nil {
		return err
	}
	return g.sink.RecordWrite(methodID, fieldID, g.line(key.Pos()))
}

// goSignature renders name(T1,T2) with types qualified by package name
// relative to the function's own package.
func goSignature(fn *types.Func) (signature, returnType string, params []string) {
	sig := fn.Type().(*types.Signature)
	q := packageNameQualifier(fn.Pkg())

	n := sig.Params().Len()
	for i := 0; i < n; i++ {
		t := sig.Params().At(i).Type()
		if sig.Variadic() && i == n-1 {
			if s, ok := t.(*types.Slice); ok {
				params = append(params, "..."+types.TypeString(s.Elem(), q))
				continue
			}
		}
		params = append(params, types.TypeString(t, q))
	}

	results := make([]string, sig.Results().Len())
	for i := range results {
		results[i] = types.TypeString(sig.Results().At(i).Type(), q)
	}
	switch len(results) {
	case 0:
	case 1:
		returnType = results[0]
	default:
		returnType = "(" + strings.Join(results, ",") + ")"
	}

	return graph.FormatSignature(fn.Name(), params), returnType, params
}

func packageNameQualifier(pkg *types.Package) types.Qualifier {
	return func(other *types.Package) string {
		if other == pkg {
			return ""
		}
		return other.Name()
	}
}

func receiverTypeName(fn *types.Func) string {
	recv := fn.Type().(*types.Signature).Recv()
	if recv == nil {
		return ""
	}
	t := recv.Type()
	if p, ok := t.(*types.Pointer); ok {
		t = p.Elem()
	}
	if named, ok := t.(*types.Named); ok {
		return named.Obj().Name()
	}
	return ""
}

func embeddedName(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.StarExpr:
		return embeddedName(t.X)
	case *ast.SelectorExpr:
		return t.Sel.Name
	case *ast.Ident:
		return t.Name
	case *ast.IndexExpr:
		return embeddedName(t.X)
	case *ast.IndexListExpr:
		return embeddedName(t.X)
	}
	return ""
}
