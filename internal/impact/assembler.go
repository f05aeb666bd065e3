package impact

import (
	"sort"

	"github.com/felipestanzani/beyondsight/internal/graph"
)

type idSet map[int64]struct{}

func newIDSet(ids ...int64) idSet {
	s := make(idSet, len(ids))
	s.add(ids...)
	return s
}

func (s idSet) add(ids ...int64) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s idSet) has(id int64) bool {
	_, ok := s[id]
	return ok
}

func (s idSet) sorted() []int64 {
	ids := make([]int64, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// assembly is the input of the result assembler.
type assembly struct {
	files  idSet // file node IDs to emit
	chain  idSet // impacted methods
	fields idSet // impacted fields
	target idSet // types always emitted, even when empty
}

// assemble groups the impact chain as file -> type -> member. A type is
// emitted when it has an impacted member or field, or when it is a target
// type; a file is emitted when at least one of its types is.
func assemble(g *graph.Graph, in assembly) []FileResponse {
	files := make([]FileResponse, 0, len(in.files))
	for _, fileID := range in.files.sorted() {
		file, ok := g.Node(fileID)
		if !ok {
			continue
		}

		var types []TypeResponse
		declared := make(idSet)
		for _, decl := range g.Outgoing(fileID, graph.EdgeKindContains) {
			if declared.has(decl.ToID) {
				continue
			}
			declared.add(decl.ToID)
			tr, keep := assembleType(g, decl, in)
			if keep {
				types = append(types, tr)
			}
		}
		if len(types) == 0 {
			continue
		}
		sort.SliceStable(types, func(i, j int) bool {
			if types[i].LineNumber != types[j].LineNumber {
				return types[i].LineNumber < types[j].LineNumber
			}
			return types[i].Name < types[j].Name
		})
		files = append(files, FileResponse{
			Name:         file.Name,
			AbsolutePath: file.AbsolutePath,
			Types:        types,
		})
	}
	sort.SliceStable(files, func(i, j int) bool {
		return files[i].AbsolutePath < files[j].AbsolutePath
	})
	return files
}

func assembleType(g *graph.Graph, decl *graph.Edge, in assembly) (TypeResponse, bool) {
	class, _ := g.Node(decl.ToID)
	tr := TypeResponse{
		Name:       class.Name,
		LineNumber: decl.Line,
		Fields:     []FieldRef{},
		Members:    []MemberResponse{},
	}

	for _, e := range g.Outgoing(class.ID, graph.EdgeKindHasField) {
		if !in.fields.has(e.ToID) {
			continue
		}
		f, _ := g.Node(e.ToID)
		tr.Fields = appendFieldRef(tr.Fields, FieldRef{Name: f.Name, LineNumber: e.Line})
	}
	sortFieldRefs(tr.Fields)

	seen := make(map[int64]int) // method ID -> index in Members
	for _, e := range g.Outgoing(class.ID, graph.EdgeKindContains) {
		if !in.chain.has(e.ToID) {
			continue
		}
		if i, ok := seen[e.ToID]; ok {
			if e.Line < tr.Members[i].LineNumber {
				tr.Members[i].LineNumber = e.Line
			}
			continue
		}
		seen[e.ToID] = len(tr.Members)
		tr.Members = append(tr.Members, assembleMember(g, e.ToID, e.Line, in))
	}
	sort.SliceStable(tr.Members, func(i, j int) bool {
		if tr.Members[i].LineNumber != tr.Members[j].LineNumber {
			return tr.Members[i].LineNumber < tr.Members[j].LineNumber
		}
		return tr.Members[i].Signature < tr.Members[j].Signature
	})

	keep := len(tr.Fields) > 0 || len(tr.Members) > 0 || in.target.has(class.ID)
	return tr, keep
}

func assembleMember(g *graph.Graph, methodID int64, line int, in assembly) MemberResponse {
	m, _ := g.Node(methodID)
	mr := MemberResponse{
		Name:          m.Name,
		Signature:     m.Signature,
		LineNumber:    line,
		CalledMethods: []CallRef{},
		ReadFields:    []FieldRef{},
		WrittenFields: []FieldRef{},
	}

	type callKey struct {
		sig  string
		line int
	}
	calls := make(map[callKey]struct{})
	for _, e := range g.Outgoing(methodID, graph.EdgeKindCalls) {
		if !in.chain.has(e.ToID) {
			continue
		}
		callee, _ := g.Node(e.ToID)
		k := callKey{callee.Signature, e.Line}
		if _, dup := calls[k]; dup {
			continue
		}
		calls[k] = struct{}{}
		mr.CalledMethods = append(mr.CalledMethods, CallRef{
			Name:       callee.Name,
			Signature:  callee.Signature,
			LineNumber: e.Line,
		})
	}
	sort.SliceStable(mr.CalledMethods, func(i, j int) bool {
		a, b := mr.CalledMethods[i], mr.CalledMethods[j]
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		return a.Signature < b.Signature
	})

	mr.ReadFields = fieldAccesses(g, methodID, graph.EdgeKindReads, in.fields)
	mr.WrittenFields = fieldAccesses(g, methodID, graph.EdgeKindWrites, in.fields)
	return mr
}

func fieldAccesses(g *graph.Graph, methodID int64, kind graph.EdgeKind, fields idSet) []FieldRef {
	refs := []FieldRef{}
	for _, e := range g.Outgoing(methodID, kind) {
		if !fields.has(e.ToID) {
			continue
		}
		f, _ := g.Node(e.ToID)
		refs = appendFieldRef(refs, FieldRef{Name: f.Name, LineNumber: e.Line})
	}
	sortFieldRefs(refs)
	return refs
}

func appendFieldRef(refs []FieldRef, ref FieldRef) []FieldRef {
	for _, r := range refs {
		if r == ref {
			return refs
		}
	}
	return append(refs, ref)
}

func sortFieldRefs(refs []FieldRef) {
	sort.SliceStable(refs, func(i, j int) bool {
		if refs[i].LineNumber != refs[j].LineNumber {
			return refs[i].LineNumber < refs[j].LineNumber
		}
		return refs[i].Name < refs[j].Name
	})
}
