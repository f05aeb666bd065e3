package analyzer

import (
	"path/filepath"

	"github.com/felipestanzani/beyondsight/internal/graph"
)

// javaFile holds the facts extracted from one Java source file.
type javaFile struct {
	path    string
	classes []javaClass
}

type javaClass struct {
	name    string
	line    int
	fields  []javaField
	methods []javaMethod
}

type javaField struct {
	name string
	typ  string
	line int
}

type javaMethod struct {
	name       string
	params     []string
	returnType string
	line       int
	calls      []javaCall
	reads      []javaAccess
	writes     []javaAccess
}

func (m javaMethod) signature() string {
	return graph.FormatSignature(m.name, m.params)
}

// javaCall is an unresolved invocation: only the name and argument count
// are known.
type javaCall struct {
	name string
	args int
	line int
}

type javaAccess struct {
	name string
	line int
}

// javaIndex maps invocation names to declared method signatures by arity.
type javaIndex struct {
	methods map[string]map[int][]string
	fields  map[string]bool
}

func newJavaIndex(files []javaFile) *javaIndex {
	idx := &javaIndex{
		methods: make(map[string]map[int][]string),
		fields:  make(map[string]bool),
	}
	seen := make(map[string]bool)
	for _, f := range files {
		for _, c := range f.classes {
			for _, fld := range c.fields {
				idx.fields[fld.name] = true
			}
			for _, m := range c.methods {
				sig := m.signature()
				if seen[sig] {
					continue
				}
				seen[sig] = true
				if idx.methods[m.name] == nil {
					idx.methods[m.name] = make(map[int][]string)
				}
				idx.methods[m.name][len(m.params)] = append(idx.methods[m.name][len(m.params)], sig)
			}
		}
	}
	return idx
}

// resolve returns every declared signature a call may bind to. Calls to
// methods outside the project resolve to nothing. Varargs are not matched.
func (idx *javaIndex) resolve(call javaCall) []string {
	return idx.methods[call.name][call.args]
}

// applyJavaFacts feeds extracted facts into sink. Every declaration is
// ingested before any call is resolved, so forward references bind.
func applyJavaFacts(files []javaFile, sink graph.Sink) error {
	idx := newJavaIndex(files)

	type pending struct {
		id int64
		m  javaMethod
	}
	var bodies []pending

	for _, f := range files {
		fileID, err := sink.UpsertFile(filepath.Base(f.path), f.path)
		if err != nil {
			return err
		}
		for _, c := range f.classes {
			classID, err := sink.UpsertType(c.name, f.path)
			if err != nil {
				return err
			}
			if err := sink.DeclareType(fileID, classID, c.line); err != nil {
				return err
			}
			for _, fld := range c.fields {
				fieldID, err := sink.UpsertField(fld.name)
				if err != nil {
					return err
				}
				if err := sink.SetFieldType(fieldID, fld.typ); err != nil {
					return err
				}
				if err := sink.DeclareField(classID, fieldID, fld.line); err != nil {
					return err
				}
			}
			for _, m := range c.methods {
				methodID, err := sink.UpsertMethod(m.signature())
				if err != nil {
					return err
				}
				if err := sink.SetMethodTypes(methodID, m.returnType, m.params); err != nil {
					return err
				}
				if err := sink.DeclareMethod(classID, methodID, m.line); err != nil {
					return err
				}
				bodies = append(bodies, pending{id: methodID, m: m})
			}
		}
	}

	for _, b := range bodies {
		for _, call := range b.m.calls {
			for _, sig := range idx.resolve(call) {
				calleeID, err := sink.UpsertMethod(sig)
				if err != nil {
					return err
				}
				if err := sink.RecordCall(b.id, calleeID, call.line); err != nil {
					return err
				}
			}
		}
		for _, r := range b.m.reads {
			if !idx.fields[r.name] {
				continue
			}
			fieldID, err := sink.UpsertField(r.name)
			if err != nil {
				return err
			}
			if err := sink.RecordRead(b.id, fieldID, r.line); err != nil {
				return err
			}
		}
		for _, w := range b.m.writes {
			if !idx.fields[w.name] {
				continue
			}
			fieldID, err := sink.UpsertField(w.name)
			if err != nil {
				return err
			}
			if err := sink.RecordWrite(b.id, fieldID, w.line); err != nil {
				return err
			}
		}
	}
	return nil
}
