// Package graph holds the code reference graph: typed nodes, labelled
// edges and the indices the impact engine traverses.
//
// A Graph is written by a single Builder and becomes read-only after
// Freeze(). Frozen graphs are shared by concurrent queries through a Store.
package graph

import "sort"

// Graph is an in-memory reference graph.
type Graph struct {
	nodes  []*Node // nodes[id-1]
	keys   map[NodeKind]map[string]int64
	edges  []*Edge
	out    map[EdgeKind]map[int64][]*Edge
	in     map[EdgeKind]map[int64][]*Edge
	seen   map[edgeKey]struct{}
	byName map[string][]int64 // method simple name -> method IDs
	frozen bool
}

func newGraph() *Graph {
	return &Graph{
		keys: map[NodeKind]map[string]int64{
			NodeKindFile:   {},
			NodeKindClass:  {},
			NodeKindField:  {},
			NodeKindMethod: {},
		},
		out:    make(map[EdgeKind]map[int64][]*Edge),
		in:     make(map[EdgeKind]map[int64][]*Edge),
		seen:   make(map[edgeKey]struct{}),
		byName: make(map[string][]int64),
	}
}

// Empty returns a frozen graph with no nodes.
func Empty() *Graph {
	g := newGraph()
	g.frozen = true
	return g
}

// Frozen reports whether the graph is read-only.
func (g *Graph) Frozen() bool { return g.frozen }

// NodeCount returns the number of nodes.
func (g *Graph) NodeCount() int { return len(g.nodes) }

// EdgeCount returns the number of edges.
func (g *Graph) EdgeCount() int { return len(g.edges) }

// Node returns the node with the given ID.
func (g *Graph) Node(id int64) (*Node, bool) {
	if id < 1 || id > int64(len(g.nodes)) {
		return nil, false
	}
	return g.nodes[id-1], true
}

// Nodes returns all nodes in ID order.
func (g *Graph) Nodes() []*Node { return g.nodes }

// Edges returns all edges in insertion order.
func (g *Graph) Edges() []*Edge { return g.edges }

// NodesOfKind returns every node of kind in ID order.
func (g *Graph) NodesOfKind(kind NodeKind) []*Node {
	var result []*Node
	for _, n := range g.nodes {
		if n.Kind == kind {
			result = append(result, n)
		}
	}
	return result
}

func (g *Graph) find(kind NodeKind, key string) (int64, bool) {
	id, ok := g.keys[kind][key]
	return id, ok
}

// FindFile looks up a file by absolute path.
func (g *Graph) FindFile(absolutePath string) (int64, bool) {
	return g.find(NodeKindFile, absolutePath)
}

// FindType looks up a class by simple name.
func (g *Graph) FindType(name string) (int64, bool) {
	return g.find(NodeKindClass, name)
}

// FindField looks up a field by name.
func (g *Graph) FindField(name string) (int64, bool) {
	return g.find(NodeKindField, name)
}

// FindMethod looks up a method by exact signature.
func (g *Graph) FindMethod(signature string) (int64, bool) {
	return g.find(NodeKindMethod, signature)
}

// MethodsNamed returns every method whose simple name is name, in ID order.
func (g *Graph) MethodsNamed(name string) []int64 {
	return g.byName[name]
}

// Outgoing returns the edges of kind leaving id. The slice is shared and
// must not be modified.
func (g *Graph) Outgoing(id int64, kind EdgeKind) []*Edge {
	return g.out[kind][id]
}

// Incoming returns the edges of kind arriving at id. The slice is shared.
func (g *Graph) Incoming(id int64, kind EdgeKind) []*Edge {
	return g.in[kind][id]
}

// Successors returns the distinct targets of kind edges leaving id.
func (g *Graph) Successors(id int64, kind EdgeKind) []int64 {
	return distinct(g.out[kind][id], func(e *Edge) int64 { return e.ToID })
}

// Predecessors returns the distinct sources of kind edges arriving at id.
func (g *Graph) Predecessors(id int64, kind EdgeKind) []int64 {
	return distinct(g.in[kind][id], func(e *Edge) int64 { return e.FromID })
}

// DeclaringTypes returns the classes that declare a method (CONTAINS) or a
// field (HAS_FIELD).
func (g *Graph) DeclaringTypes(id int64) []int64 {
	n, ok := g.Node(id)
	if !ok {
		return nil
	}
	switch n.Kind {
	case NodeKindMethod:
		return g.Predecessors(id, EdgeKindContains)
	case NodeKindField:
		return g.Predecessors(id, EdgeKindHasField)
	}
	return nil
}

// DeclaringFiles returns the files that contain a class.
func (g *Graph) DeclaringFiles(classID int64) []int64 {
	return g.Predecessors(classID, EdgeKindContains)
}

// CountByKind returns node counts per kind.
func (g *Graph) CountByKind() map[NodeKind]int {
	counts := make(map[NodeKind]int, 4)
	for _, n := range g.nodes {
		counts[n.Kind]++
	}
	return counts
}

func distinct(edges []*Edge, pick func(*Edge) int64) []int64 {
	if len(edges) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(edges))
	result := make([]int64, 0, len(edges))
	for _, e := range edges {
		id := pick(e)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}
