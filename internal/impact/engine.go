// Package impact answers "what breaks if I change this field, method or
// class" over the reference graph.
//
// Fields and methods are matched by name and signature across every class
// that declares them, so results over-approximate: an unrelated class that
// happens to share a field name shows up too. Full queries are scoped by
// the declaring class of the target; flat queries by name or signature only.
package impact

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	bserrors "github.com/felipestanzani/beyondsight/internal/errors"
	"github.com/felipestanzani/beyondsight/internal/graph"
	"github.com/felipestanzani/beyondsight/internal/metrics"
)

// Engine runs impact queries against the graph published in a store. Each
// query reads one snapshot, so queries never see a half-built graph and may
// run concurrently.
type Engine struct {
	store    *graph.Store
	maxNodes int
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxNodes caps every transitive closure at n nodes; results computed
// under a hit cap are flagged as truncated. Zero means unbounded.
func WithMaxNodes(n int) Option {
	return func(e *Engine) { e.maxNodes = n }
}

// WithLogger sets the logger used for query diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine over store.
func NewEngine(store *graph.Store, opts ...Option) *Engine {
	e := &Engine{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// query carries per-call state: the snapshot and the truncation flag.
type query struct {
	ctx       context.Context
	g         *graph.Graph
	opts      []graph.TraverseOption
	truncated bool
}

func (e *Engine) begin(ctx context.Context) *query {
	q := &query{ctx: ctx, g: e.store.Snapshot()}
	if e.maxNodes > 0 {
		q.opts = append(q.opts, graph.WithMaxNodes(e.maxNodes))
	}
	return q
}

func (q *query) callers(seeds idSet) ([]int64, error) {
	c, err := graph.TransitiveClosureBackward(q.ctx, q.g, seeds.sorted(), graph.EdgeKindCalls, q.opts...)
	if err != nil {
		return nil, err
	}
	q.truncated = q.truncated || c.Truncated
	return c.Nodes, nil
}

func (q *query) callees(seeds idSet) ([]int64, error) {
	c, err := graph.TransitiveClosureForward(q.ctx, q.g, seeds.sorted(), graph.EdgeKindCalls, q.opts...)
	if err != nil {
		return nil, err
	}
	q.truncated = q.truncated || c.Truncated
	return c.Nodes, nil
}

// accessors returns methods that read or write any of fields.
func (q *query) accessors(fields idSet) idSet {
	result := make(idSet)
	for _, f := range fields.sorted() {
		result.add(q.g.Predecessors(f, graph.EdgeKindReads)...)
		result.add(q.g.Predecessors(f, graph.EdgeKindWrites)...)
	}
	return result
}

// similar returns methods matched to any of methods by pred.
func (q *query) similar(methods idSet, pred func(method, candidate *graph.Node) bool) idSet {
	result := make(idSet)
	for _, id := range methods.sorted() {
		m, _ := q.g.Node(id)
		for _, cid := range q.g.MethodsNamed(m.Name) {
			c, _ := q.g.Node(cid)
			if pred(m, c) {
				result.add(cid)
			}
		}
	}
	return result
}

// filesOf returns the files declaring the types that declare methods.
func (q *query) filesOf(methods idSet) idSet {
	files := make(idSet)
	for _, id := range methods.sorted() {
		for _, classID := range q.g.DeclaringTypes(id) {
			files.add(q.g.DeclaringFiles(classID)...)
		}
	}
	return files
}

func (q *query) declares(classID, memberID int64) bool {
	for _, id := range q.g.DeclaringTypes(memberID) {
		if id == classID {
			return true
		}
	}
	return false
}

func requireParam(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return bserrors.InvalidParameterf("%s must not be blank", name)
	}
	return nil
}

// FieldImpact computes the full impact of changing fieldName declared on
// className: every method that reads or writes the field, their transitive
// callers, and signature variants of the direct accessors with their
// callers. The field node is shared by every class declaring the name, so
// accessors of the same field on other classes are included.
func (e *Engine) FieldImpact(ctx context.Context, fieldName, className string) (report *Report, err error) {
	defer observe("field", time.Now(), &err)
	if err := requireParam("fieldName", fieldName); err != nil {
		return nil, err
	}
	if err := requireParam("className", className); err != nil {
		return nil, err
	}

	q := e.begin(ctx)
	fieldID, ok := q.g.FindField(fieldName)
	if !ok {
		return nil, bserrors.NotFoundf("field %q not found", fieldName)
	}
	classID, ok := q.g.FindType(className)
	if !ok || !q.declares(classID, fieldID) {
		return nil, bserrors.NotFoundf("field %q not found in class %q", fieldName, className)
	}

	direct := q.accessors(newIDSet(fieldID))
	chain := newIDSet(direct.sorted()...)

	callers, err := q.callers(direct)
	if err != nil {
		return nil, err
	}
	chain.add(callers...)

	variants := q.similar(direct, IsSignatureVariant)
	chain.add(variants.sorted()...)
	variantCallers, err := q.callers(variants)
	if err != nil {
		return nil, err
	}
	chain.add(variantCallers...)

	files := q.filesOf(chain)
	files.add(q.g.DeclaringFiles(classID)...)

	report = &Report{
		Target: Target{Kind: "field", Name: fieldName, ClassName: className},
		Files: assemble(q.g, assembly{
			files:  files,
			chain:  chain,
			fields: newIDSet(fieldID),
			target: newIDSet(classID),
		}),
		Truncated: q.truncated,
	}
	e.logTruncation(report)
	return report, nil
}

// MethodImpact computes the full impact of changing the method with the
// given signature declared on className: its transitive callers and
// callees, other accessors of the fields it touches and their callers, and
// same-name methods with a different signature and their callers.
func (e *Engine) MethodImpact(ctx context.Context, methodSignature, className string) (report *Report, err error) {
	defer observe("method", time.Now(), &err)
	if err := requireParam("methodSignature", methodSignature); err != nil {
		return nil, err
	}
	if err := requireParam("className", className); err != nil {
		return nil, err
	}

	q := e.begin(ctx)
	methodID, ok := q.g.FindMethod(methodSignature)
	if !ok {
		return nil, bserrors.NotFoundf("method %q not found", methodSignature)
	}
	classID, ok := q.g.FindType(className)
	if !ok || !q.declares(classID, methodID) {
		return nil, bserrors.NotFoundf("method %q not found in class %q", methodSignature, className)
	}

	target := newIDSet(methodID)
	chain := newIDSet(methodID)

	callers, err := q.callers(target)
	if err != nil {
		return nil, err
	}
	chain.add(callers...)

	callees, err := q.callees(target)
	if err != nil {
		return nil, err
	}
	chain.add(callees...)

	fields := newIDSet(q.g.Successors(methodID, graph.EdgeKindReads)...)
	fields.add(q.g.Successors(methodID, graph.EdgeKindWrites)...)
	coAccessors := q.accessors(fields)
	chain.add(coAccessors.sorted()...)
	coCallers, err := q.callers(coAccessors)
	if err != nil {
		return nil, err
	}
	chain.add(coCallers...)

	overrides := q.similar(target, IsOverrideCandidate)
	chain.add(overrides.sorted()...)
	overrideCallers, err := q.callers(overrides)
	if err != nil {
		return nil, err
	}
	chain.add(overrideCallers...)

	files := q.filesOf(chain)
	files.add(q.g.DeclaringFiles(classID)...)

	m, _ := q.g.Node(methodID)
	report = &Report{
		Target: Target{Kind: "method", Name: m.Name, ClassName: className, Signature: methodSignature},
		Files: assemble(q.g, assembly{
			files:  files,
			chain:  chain,
			fields: fields,
			target: newIDSet(classID),
		}),
		Truncated: q.truncated,
	}
	e.logTruncation(report)
	return report, nil
}

// ClassImpact computes the full impact of changing className: callers and
// callees of its methods, accessors of its fields and their callers,
// methods and fields whose type text references the class, and override
// candidates of its methods with their callers. It fails with NotFound when
// nothing outside the class refers to it.
func (e *Engine) ClassImpact(ctx context.Context, className string) (report *Report, err error) {
	defer observe("class", time.Now(), &err)
	if err := requireParam("className", className); err != nil {
		return nil, err
	}

	q := e.begin(ctx)
	classID, ok := q.g.FindType(className)
	if !ok {
		return nil, bserrors.NotFoundf("class %q not found", className)
	}

	methods := newIDSet(q.g.Successors(classID, graph.EdgeKindContains)...)
	ownFields := newIDSet(q.g.Successors(classID, graph.EdgeKindHasField)...)
	chain := newIDSet(methods.sorted()...)

	callers, err := q.callers(methods)
	if err != nil {
		return nil, err
	}
	chain.add(callers...)

	callees, err := q.callees(methods)
	if err != nil {
		return nil, err
	}
	chain.add(callees...)

	accessors := q.accessors(ownFields)
	chain.add(accessors.sorted()...)
	accessorCallers, err := q.callers(accessors)
	if err != nil {
		return nil, err
	}
	chain.add(accessorCallers...)

	typeRefMethods := make(idSet)
	for _, m := range q.g.NodesOfKind(graph.NodeKindMethod) {
		if MethodReferencesType(m, className) {
			typeRefMethods.add(m.ID)
		}
	}
	chain.add(typeRefMethods.sorted()...)
	typeRefCallers, err := q.callers(typeRefMethods)
	if err != nil {
		return nil, err
	}
	chain.add(typeRefCallers...)

	overrides := q.similar(methods, IsOverrideCandidate)
	chain.add(overrides.sorted()...)
	overrideCallers, err := q.callers(overrides)
	if err != nil {
		return nil, err
	}
	chain.add(overrideCallers...)

	typeRefFields := make(idSet)
	for _, f := range q.g.NodesOfKind(graph.NodeKindField) {
		if FieldReferencesType(f, className) {
			typeRefFields.add(f.ID)
		}
	}

	if len(callers) == 0 && len(typeRefFields) == 0 && len(typeRefMethods) == 0 {
		return nil, bserrors.NotFoundf("no references found for class %q", className)
	}

	fields := newIDSet(ownFields.sorted()...)
	fields.add(typeRefFields.sorted()...)

	files := q.filesOf(chain)
	files.add(q.g.DeclaringFiles(classID)...)
	for _, f := range typeRefFields.sorted() {
		for _, owner := range q.g.DeclaringTypes(f) {
			files.add(q.g.DeclaringFiles(owner)...)
		}
	}

	report = &Report{
		Target: Target{Kind: "class", Name: className, ClassName: className},
		Files: assemble(q.g, assembly{
			files:  files,
			chain:  chain,
			fields: fields,
			target: newIDSet(classID),
		}),
		Truncated: q.truncated,
	}
	e.logTruncation(report)
	return report, nil
}

// FieldWriters lists the methods that directly write fieldName.
func (e *Engine) FieldWriters(ctx context.Context, fieldName string) (list *MethodList, err error) {
	defer observe("writers", time.Now(), &err)
	return e.fieldAccessors(ctx, fieldName, graph.EdgeKindWrites, "writers")
}

// FieldReaders lists the methods that directly read fieldName.
func (e *Engine) FieldReaders(ctx context.Context, fieldName string) (list *MethodList, err error) {
	defer observe("readers", time.Now(), &err)
	return e.fieldAccessors(ctx, fieldName, graph.EdgeKindReads, "readers")
}

func (e *Engine) fieldAccessors(ctx context.Context, fieldName string, kind graph.EdgeKind, what string) (*MethodList, error) {
	if err := requireParam("fieldName", fieldName); err != nil {
		return nil, err
	}
	q := e.begin(ctx)
	fieldID, ok := q.g.FindField(fieldName)
	if !ok {
		return nil, bserrors.NotFoundf("field %q not found", fieldName)
	}
	methods := q.g.Predecessors(fieldID, kind)
	if len(methods) == 0 {
		return nil, bserrors.NotFoundf("no %s found for field %q", what, fieldName)
	}
	return &MethodList{Methods: q.describe(methods)}, nil
}

// UpstreamCallers lists every method that transitively calls any method
// named methodName. Overloads are not distinguished, and the named methods
// themselves are never listed.
func (e *Engine) UpstreamCallers(ctx context.Context, methodName string) (list *MethodList, err error) {
	defer observe("upstream", time.Now(), &err)
	if err := requireParam("methodName", methodName); err != nil {
		return nil, err
	}
	q := e.begin(ctx)
	seeds := q.g.MethodsNamed(methodName)
	if len(seeds) == 0 {
		return nil, bserrors.NotFoundf("method %q not found", methodName)
	}
	callers, err := q.callers(newIDSet(seeds...))
	if err != nil {
		return nil, err
	}
	if len(callers) == 0 {
		return nil, bserrors.NotFoundf("no upstream callers found for method %q", methodName)
	}
	return &MethodList{Methods: q.describe(callers), Truncated: q.truncated}, nil
}

// DownstreamCallees lists every method transitively called by the method
// with the exact signature. The start method is never listed, even when it
// is recursive or sits on a call cycle; a method whose only callee is
// itself has no downstream callees.
func (e *Engine) DownstreamCallees(ctx context.Context, methodSignature string) (list *MethodList, err error) {
	defer observe("downstream", time.Now(), &err)
	if err := requireParam("methodSignature", methodSignature); err != nil {
		return nil, err
	}
	q := e.begin(ctx)
	methodID, ok := q.g.FindMethod(methodSignature)
	if !ok {
		return nil, bserrors.NotFoundf("method %q not found", methodSignature)
	}
	callees, err := q.callees(newIDSet(methodID))
	if err != nil {
		return nil, err
	}
	if len(callees) == 0 {
		return nil, bserrors.NotFoundf("no downstream callees found for method %q", methodSignature)
	}
	return &MethodList{Methods: q.describe(callees), Truncated: q.truncated}, nil
}

// describe returns one descriptor per (method, declaring file).
func (q *query) describe(methods []int64) []MethodDescriptor {
	type key struct {
		id   int64
		path string
	}
	seen := make(map[key]struct{})
	var result []MethodDescriptor
	add := func(m *graph.Node, path string) {
		k := key{m.ID, path}
		if _, ok := seen[k]; ok {
			return
		}
		seen[k] = struct{}{}
		result = append(result, MethodDescriptor{Name: m.Name, Signature: m.Signature, FilePath: path})
	}

	for _, id := range methods {
		m, ok := q.g.Node(id)
		if !ok {
			continue
		}
		classes := q.g.DeclaringTypes(id)
		if len(classes) == 0 {
			add(m, "")
			continue
		}
		for _, classID := range classes {
			files := q.g.DeclaringFiles(classID)
			if len(files) == 0 {
				c, _ := q.g.Node(classID)
				add(m, c.FilePath)
				continue
			}
			for _, fileID := range files {
				f, _ := q.g.Node(fileID)
				add(m, f.AbsolutePath)
			}
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Signature != b.Signature {
			return a.Signature < b.Signature
		}
		return a.FilePath < b.FilePath
	})
	return result
}

func observe(query string, start time.Time, err *error) {
	metrics.ObserveQuery(query, start, *err)
}

func (e *Engine) logTruncation(r *Report) {
	if r.Truncated {
		e.logger.Warn("impact result truncated",
			"kind", r.Target.Kind,
			"target", r.Target.Name,
			"class", r.Target.ClassName,
			"max_nodes", e.maxNodes)
	}
}
