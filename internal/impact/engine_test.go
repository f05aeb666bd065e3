package impact

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bserrors "github.com/felipestanzani/beyondsight/internal/errors"
	"github.com/felipestanzani/beyondsight/internal/graph"
)

// fixture builds a graph where every class lives in /src/<Class>.java.
type fixture struct {
	t       *testing.T
	b       *graph.Builder
	classes map[string]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return &fixture{t: t, b: graph.NewBuilder(), classes: make(map[string]int64)}
}

func (f *fixture) class(name string) int64 {
	f.t.Helper()
	if id, ok := f.classes[name]; ok {
		return id
	}
	path := "/src/" + name + ".java"
	file, err := f.b.UpsertFile(name+".java", path)
	require.NoError(f.t, err)
	id, err := f.b.UpsertType(name, path)
	require.NoError(f.t, err)
	require.NoError(f.t, f.b.DeclareType(file, id, 1))
	f.classes[name] = id
	return id
}

func (f *fixture) field(class, name, typ string, line int) int64 {
	f.t.Helper()
	id, err := f.b.UpsertField(name)
	require.NoError(f.t, err)
	require.NoError(f.t, f.b.SetFieldType(id, typ))
	require.NoError(f.t, f.b.DeclareField(f.class(class), id, line))
	return id
}

func (f *fixture) method(class, signature string, line int) int64 {
	f.t.Helper()
	id, err := f.b.UpsertMethod(signature)
	require.NoError(f.t, err)
	require.NoError(f.t, f.b.DeclareMethod(f.class(class), id, line))
	return id
}

func (f *fixture) typedMethod(class, signature, returnType string, params []string, line int) int64 {
	f.t.Helper()
	id := f.method(class, signature, line)
	require.NoError(f.t, f.b.SetMethodTypes(id, returnType, params))
	return id
}

func (f *fixture) calls(caller, callee int64, line int) {
	f.t.Helper()
	require.NoError(f.t, f.b.RecordCall(caller, callee, line))
}

func (f *fixture) reads(method, field int64, line int) {
	f.t.Helper()
	require.NoError(f.t, f.b.RecordRead(method, field, line))
}

func (f *fixture) writes(method, field int64, line int) {
	f.t.Helper()
	require.NoError(f.t, f.b.RecordWrite(method, field, line))
}

func (f *fixture) engine(opts ...Option) *Engine {
	store := graph.NewStore()
	store.Swap(f.b.Freeze())
	return NewEngine(store, opts...)
}

func findType(t *testing.T, r *Report, name string) TypeResponse {
	t.Helper()
	for _, f := range r.Files {
		for _, ty := range f.Types {
			if ty.Name == name {
				return ty
			}
		}
	}
	require.Failf(t, "type not in report", "type %s", name)
	return TypeResponse{}
}

func findMember(t *testing.T, ty TypeResponse, signature string) MemberResponse {
	t.Helper()
	for _, m := range ty.Members {
		if m.Signature == signature {
			return m
		}
	}
	require.Failf(t, "member not in type", "member %s in %s", signature, ty.Name)
	return MemberResponse{}
}

func hasType(r *Report, name string) bool {
	for _, f := range r.Files {
		for _, ty := range f.Types {
			if ty.Name == name {
				return true
			}
		}
	}
	return false
}

func filePaths(r *Report) []string {
	paths := make([]string, len(r.Files))
	for i, f := range r.Files {
		paths[i] = f.AbsolutePath
	}
	return paths
}

func signatures(l *MethodList) []string {
	sigs := make([]string, len(l.Methods))
	for i, m := range l.Methods {
		sigs[i] = m.Signature
	}
	return sigs
}

func TestFieldImpact_ConcreteScenario(t *testing.T) {
	f := newFixture(t)
	x := f.field("A", "x", "int", 3)
	m := f.method("B", "m()", 5)
	n := f.method("C", "n()", 7)
	f.reads(m, x, 6)
	f.calls(n, m, 8)

	r, err := f.engine().FieldImpact(context.Background(), "x", "A")
	require.NoError(t, err)

	assert.Equal(t, []string{"/src/A.java", "/src/B.java", "/src/C.java"}, filePaths(r))

	a := findType(t, r, "A")
	assert.Equal(t, []FieldRef{{Name: "x", LineNumber: 3}}, a.Fields)
	assert.Empty(t, a.Members)

	bm := findMember(t, findType(t, r, "B"), "m()")
	assert.Equal(t, []FieldRef{{Name: "x", LineNumber: 6}}, bm.ReadFields)
	assert.Empty(t, bm.WrittenFields)

	cn := findMember(t, findType(t, r, "C"), "n()")
	assert.Equal(t, []CallRef{{Name: "m", Signature: "m()", LineNumber: 8}}, cn.CalledMethods)
	assert.False(t, r.Truncated)
}

func TestFieldImpact_RoundTrip(t *testing.T) {
	f := newFixture(t)
	bar := f.field("Foo", "bar", "String", 2)
	read := f.method("Foo", "read()", 4)
	caller := f.method("Foo", "caller()", 9)
	f.reads(read, bar, 5)
	f.calls(caller, read, 10)

	r, err := f.engine().FieldImpact(context.Background(), "bar", "Foo")
	require.NoError(t, err)

	foo := findType(t, r, "Foo")
	require.Len(t, foo.Members, 2)
	assert.Equal(t, "read()", foo.Members[0].Signature)
	assert.Equal(t, "caller()", foo.Members[1].Signature)
	assert.Equal(t, "read()", foo.Members[1].CalledMethods[0].Signature)
}

func TestFieldImpact_SharedFieldNameAcrossClasses(t *testing.T) {
	f := newFixture(t)
	f.field("Base", "name", "String", 2)
	derived := f.field("Derived", "name", "String", 3)
	getName := f.method("Derived", "getName()", 5)
	f.reads(getName, derived, 6)
	f.method("Unrelated", "noop()", 2)

	r, err := f.engine().FieldImpact(context.Background(), "name", "Base")
	require.NoError(t, err)

	findType(t, r, "Base")
	d := findType(t, r, "Derived")
	assert.Equal(t, "getName()", findMember(t, d, "getName()").Signature)
	assert.Equal(t, []FieldRef{{Name: "name", LineNumber: 3}}, d.Fields)
	assert.False(t, hasType(r, "Unrelated"))
}

func TestFieldImpact_SignatureVariantCallers(t *testing.T) {
	f := newFixture(t)
	total := f.field("Order", "total", "int", 2)
	update := f.method("Order", "update(int)", 4)
	f.writes(update, total, 5)
	variant := f.method("SpecialOrder", "update(int,String)", 3)
	client := f.method("Client", "run()", 10)
	f.calls(client, variant, 11)

	r, err := f.engine().FieldImpact(context.Background(), "total", "Order")
	require.NoError(t, err)

	findMember(t, findType(t, r, "SpecialOrder"), "update(int,String)")
	findMember(t, findType(t, r, "Client"), "run()")
	assert.Equal(t, []FieldRef{{Name: "total", LineNumber: 5}},
		findMember(t, findType(t, r, "Order"), "update(int)").WrittenFields)
}

func TestFieldImpact_TargetTypeAlwaysEmitted(t *testing.T) {
	f := newFixture(t)
	f.field("Lonely", "flag", "boolean", 2)

	r, err := f.engine().FieldImpact(context.Background(), "flag", "Lonely")
	require.NoError(t, err)
	require.Len(t, r.Files, 1)
	assert.Equal(t, "Lonely", r.Files[0].Types[0].Name)
}

func TestFieldImpact_Errors(t *testing.T) {
	f := newFixture(t)
	f.field("A", "x", "int", 2)
	f.class("B")
	e := f.engine()
	ctx := context.Background()

	_, err := e.FieldImpact(ctx, " ", "A")
	assert.True(t, bserrors.HasCode(err, bserrors.InvalidParameter))
	_, err = e.FieldImpact(ctx, "x", "")
	assert.True(t, bserrors.HasCode(err, bserrors.InvalidParameter))
	_, err = e.FieldImpact(ctx, "missing", "A")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound))
	_, err = e.FieldImpact(ctx, "x", "B")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound), "field not declared on class")
	_, err = e.FieldImpact(ctx, "x", "Nope")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound))
}

func TestMethodImpact_TargetPreservation(t *testing.T) {
	f := newFixture(t)
	f.method("Island", "alone()", 4)

	r, err := f.engine().MethodImpact(context.Background(), "alone()", "Island")
	require.NoError(t, err)
	require.Len(t, r.Files, 1)
	island := findType(t, r, "Island")
	findMember(t, island, "alone()")
	assert.Equal(t, "alone", r.Target.Name)
}

func TestMethodImpact_Chain(t *testing.T) {
	f := newFixture(t)
	count := f.field("Counter", "count", "int", 2)
	inc := f.method("Counter", "inc()", 4)
	reset := f.method("Counter", "reset()", 8)
	helper := f.method("Util", "log(String)", 3)
	user := f.method("App", "main()", 5)
	admin := f.method("Admin", "wipe()", 7)
	overload := f.method("Counter", "inc(int)", 12)
	batch := f.method("Batch", "run()", 2)

	f.writes(inc, count, 5)
	f.writes(reset, count, 9)
	f.calls(inc, helper, 6)
	f.calls(user, inc, 6)
	f.calls(admin, reset, 8)
	f.calls(batch, overload, 3)

	r, err := f.engine().MethodImpact(context.Background(), "inc()", "Counter")
	require.NoError(t, err)

	counter := findType(t, r, "Counter")
	for _, sig := range []string{"inc()", "reset()", "inc(int)"} {
		findMember(t, counter, sig)
	}
	assert.Equal(t, []FieldRef{{Name: "count", LineNumber: 9}}, findMember(t, counter, "reset()").WrittenFields)
	assert.Equal(t, []FieldRef{{Name: "count", LineNumber: 2}}, counter.Fields)

	findMember(t, findType(t, r, "Util"), "log(String)")
	findMember(t, findType(t, r, "App"), "main()")
	findMember(t, findType(t, r, "Admin"), "wipe()")
	findMember(t, findType(t, r, "Batch"), "run()")
}

func TestMethodImpact_WrongClass(t *testing.T) {
	f := newFixture(t)
	f.method("A", "go()", 2)
	f.class("B")

	_, err := f.engine().MethodImpact(context.Background(), "go()", "B")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound))
}

func TestClassImpact_FieldTypeReference(t *testing.T) {
	f := newFixture(t)
	f.method("Target", "work()", 3)
	f.field("Other", "target", "Target", 4)

	r, err := f.engine().ClassImpact(context.Background(), "Target")
	require.NoError(t, err)

	other := findType(t, r, "Other")
	assert.Equal(t, []FieldRef{{Name: "target", LineNumber: 4}}, other.Fields)
	findType(t, r, "Target")
}

func TestClassImpact_Aggregation(t *testing.T) {
	f := newFixture(t)
	id := f.field("User", "id", "long", 2)
	getID := f.method("User", "getId()", 4)
	f.reads(getID, id, 5)
	repo := f.typedMethod("UserRepo", "save(User)", "void", []string{"User"}, 6)
	service := f.method("UserService", "register()", 3)
	f.calls(service, repo, 4)
	caller := f.method("Controller", "show()", 9)
	f.calls(caller, getID, 10)
	audit := f.method("Audit", "track()", 2)
	other := f.field("Audit", "id", "long", 1)
	f.reads(audit, other, 3)

	r, err := f.engine().ClassImpact(context.Background(), "User")
	require.NoError(t, err)

	findMember(t, findType(t, r, "User"), "getId()")
	findMember(t, findType(t, r, "UserRepo"), "save(User)")
	findMember(t, findType(t, r, "UserService"), "register()")
	findMember(t, findType(t, r, "Controller"), "show()")
	findMember(t, findType(t, r, "Audit"), "track()")
}

func TestClassImpact_NotFound(t *testing.T) {
	f := newFixture(t)
	f.method("Quiet", "hush()", 2)
	e := f.engine()

	_, err := e.ClassImpact(context.Background(), "Quiet")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound), "no references")

	_, err = e.ClassImpact(context.Background(), "Ghost")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound))

	_, err = e.ClassImpact(context.Background(), "")
	assert.True(t, bserrors.HasCode(err, bserrors.InvalidParameter))
}

func TestFieldWritersAndReaders(t *testing.T) {
	f := newFixture(t)
	x := f.field("A", "x", "int", 2)
	y := f.field("A", "y", "int", 3)
	set := f.method("A", "setX(int)", 4)
	get := f.method("B", "getX()", 4)
	f.writes(set, x, 5)
	f.reads(get, x, 5)
	f.reads(get, y, 6)
	e := f.engine()
	ctx := context.Background()

	w, err := e.FieldWriters(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []MethodDescriptor{{Name: "setX", Signature: "setX(int)", FilePath: "/src/A.java"}}, w.Methods)

	rd, err := e.FieldReaders(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []string{"getX()"}, signatures(rd))

	_, err = e.FieldWriters(ctx, "y")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound), "no writers")
	_, err = e.FieldReaders(ctx, "missing")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound))
	_, err = e.FieldReaders(ctx, "")
	assert.True(t, bserrors.HasCode(err, bserrors.InvalidParameter))
}

func TestUpstreamCallers_OverloadInsensitive(t *testing.T) {
	f := newFixture(t)
	save1 := f.method("Repo", "save(User)", 2)
	save2 := f.method("Repo", "save(Order)", 4)
	a := f.method("A", "a()", 2)
	b := f.method("B", "b()", 2)
	c := f.method("C", "c()", 2)
	f.calls(a, save1, 3)
	f.calls(b, save2, 3)
	f.calls(c, a, 3)
	f.calls(a, c, 4) // cycle

	list, err := f.engine().UpstreamCallers(context.Background(), "save")
	require.NoError(t, err)
	assert.Equal(t, []string{"a()", "b()", "c()"}, signatures(list))

	_, err = f.engine().UpstreamCallers(context.Background(), "a")
	require.NoError(t, err)
}

func TestDownstreamCallees(t *testing.T) {
	f := newFixture(t)
	run := f.method("Job", "run()", 2)
	step := f.method("Job", "step(int)", 5)
	other := f.method("Job", "run(int)", 9)
	leaf := f.method("Lib", "leaf()", 1)
	f.calls(run, step, 3)
	f.calls(step, leaf, 6)
	f.calls(other, leaf, 10)
	e := f.engine()

	list, err := e.DownstreamCallees(context.Background(), "run()")
	require.NoError(t, err)
	assert.Equal(t, []string{"leaf()", "step(int)"}, signatures(list))

	_, err = e.DownstreamCallees(context.Background(), "leaf()")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound), "no callees")
	_, err = e.DownstreamCallees(context.Background(), "nope()")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound))
}

func TestDownstreamCallees_RecursionExcludesStart(t *testing.T) {
	f := newFixture(t)
	walk := f.method("Tree", "walk()", 2)
	visit := f.method("Tree", "visit()", 8)
	self := f.method("Tree", "again()", 14)
	f.calls(walk, walk, 3)
	f.calls(walk, visit, 4)
	f.calls(visit, walk, 9)
	f.calls(self, self, 15)
	e := f.engine()

	list, err := e.DownstreamCallees(context.Background(), "walk()")
	require.NoError(t, err)
	assert.Equal(t, []string{"visit()"}, signatures(list))

	_, err = e.DownstreamCallees(context.Background(), "again()")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound))
}

func TestDescriptors_OnePerDeclaringFile(t *testing.T) {
	f := newFixture(t)
	x := f.field("A", "x", "int", 1)
	f.method("A", "toString()", 3)
	shared := f.method("B", "toString()", 3)
	f.reads(shared, x, 4)
	orphan, err := f.b.UpsertMethod("orphan()")
	require.NoError(t, err)
	f.reads(orphan, x, 1)

	list, err := f.engine().FieldReaders(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, []MethodDescriptor{
		{Name: "orphan", Signature: "orphan()", FilePath: ""},
		{Name: "toString", Signature: "toString()", FilePath: "/src/A.java"},
		{Name: "toString", Signature: "toString()", FilePath: "/src/B.java"},
	}, list.Methods)
}

func TestEngine_MaxNodesTruncates(t *testing.T) {
	f := newFixture(t)
	x := f.field("A", "x", "int", 1)
	m0 := f.method("A", "m0()", 2)
	f.reads(m0, x, 3)
	prev := m0
	for _, sig := range []string{"m1()", "m2()", "m3()", "m4()"} {
		m := f.method("B", sig, 1)
		f.calls(m, prev, 2)
		prev = m
	}

	r, err := f.engine(WithMaxNodes(2)).FieldImpact(context.Background(), "x", "A")
	require.NoError(t, err)
	assert.True(t, r.Truncated)

	list, err := f.engine(WithMaxNodes(2)).UpstreamCallers(context.Background(), "m0")
	require.NoError(t, err)
	assert.Len(t, list.Methods, 2)
	assert.True(t, list.Truncated)
}

func TestEngine_QueriesSeePublishedSnapshot(t *testing.T) {
	store := graph.NewStore()
	e := NewEngine(store)

	_, err := e.ClassImpact(context.Background(), "A")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound))

	f := newFixture(t)
	f.field("Other", "a", "A", 2)
	f.class("A")
	store.Swap(f.b.Freeze())

	r, err := e.ClassImpact(context.Background(), "A")
	require.NoError(t, err)
	assert.True(t, hasType(r, "Other"))
}
