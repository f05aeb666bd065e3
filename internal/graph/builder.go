package graph

import (
	"fmt"
	"strings"
	"time"
)

// Builder ingests source facts into a staging graph. Upserts are keyed so
// repeated facts reuse the same node, and identical edges (same kind,
// endpoints and line) are stored once.
//
// Builder is not safe for concurrent use. Call Freeze() once all facts are
// in; the returned graph is read-only and may be shared.
type Builder struct {
	g   *Graph
	now func() time.Time
}

// NewBuilder creates a builder over an empty graph.
func NewBuilder() *Builder {
	return &Builder{g: newGraph(), now: time.Now}
}

// NodeCount returns the number of nodes ingested so far.
func (b *Builder) NodeCount() int { return b.g.NodeCount() }

// EdgeCount returns the number of edges ingested so far.
func (b *Builder) EdgeCount() int { return b.g.EdgeCount() }

// Clear drops every node and edge ingested so far.
func (b *Builder) Clear() error {
	if b.g.frozen {
		return ErrGraphFrozen
	}
	b.g = newGraph()
	return nil
}

// Freeze finalizes the graph and returns it. Further mutations through the
// builder fail with ErrGraphFrozen.
func (b *Builder) Freeze() *Graph {
	b.g.frozen = true
	return b.g
}

func (b *Builder) upsert(kind NodeKind, key string, init func(*Node)) (int64, error) {
	if b.g.frozen {
		return 0, ErrGraphFrozen
	}
	if strings.TrimSpace(key) == "" {
		return 0, fmt.Errorf("upsert %s: %w", kind, ErrEmptyKey)
	}
	if id, ok := b.g.keys[kind][key]; ok {
		return id, nil
	}
	n := &Node{ID: int64(len(b.g.nodes)) + 1, Kind: kind, Key: key}
	init(n)
	b.g.nodes = append(b.g.nodes, n)
	b.g.keys[kind][key] = n.ID
	return n.ID, nil
}

// UpsertFile returns the file node keyed by absolutePath.
func (b *Builder) UpsertFile(name, absolutePath string) (int64, error) {
	return b.upsert(NodeKindFile, absolutePath, func(n *Node) {
		n.Name = name
		n.AbsolutePath = absolutePath
	})
}

// UpsertType returns the class node keyed by its simple name. The first
// non-empty filePath seen for the name is kept.
func (b *Builder) UpsertType(name, filePath string) (int64, error) {
	id, err := b.upsert(NodeKindClass, name, func(n *Node) {
		n.Name = name
	})
	if err != nil {
		return 0, err
	}
	if n := b.g.nodes[id-1]; n.FilePath == "" {
		n.FilePath = filePath
	}
	return id, nil
}

// UpsertField returns the field node keyed by name.
func (b *Builder) UpsertField(name string) (int64, error) {
	return b.upsert(NodeKindField, name, func(n *Node) {
		n.Name = name
	})
}

// UpsertMethod returns the method node keyed by signature.
func (b *Builder) UpsertMethod(signature string) (int64, error) {
	return b.upsert(NodeKindMethod, signature, func(n *Node) {
		n.Name = MethodName(signature)
		n.Signature = signature
		b.g.byName[n.Name] = append(b.g.byName[n.Name], n.ID)
	})
}

func (b *Builder) node(id int64, kind NodeKind) (*Node, error) {
	if b.g.frozen {
		return nil, ErrGraphFrozen
	}
	n, ok := b.g.Node(id)
	if !ok {
		return nil, fmt.Errorf("node %d: %w", id, ErrNodeNotFound)
	}
	if n.Kind != kind {
		return nil, fmt.Errorf("node %d is %s, want %s: %w", id, n.Kind, kind, ErrNodeNotFound)
	}
	return n, nil
}

// SetFieldType records a declared type for a field. A field node is shared
// by every class declaring that name, so distinct types accumulate.
func (b *Builder) SetFieldType(fieldID int64, typeText string) error {
	n, err := b.node(fieldID, NodeKindField)
	if err != nil {
		return err
	}
	if typeText == "" {
		return nil
	}
	for _, t := range n.FieldTypes {
		if t == typeText {
			return nil
		}
	}
	n.FieldTypes = append(n.FieldTypes, typeText)
	return nil
}

// SetMethodTypes records return and parameter type text for a method.
// The first non-empty values win.
func (b *Builder) SetMethodTypes(methodID int64, returnType string, paramTypes []string) error {
	n, err := b.node(methodID, NodeKindMethod)
	if err != nil {
		return err
	}
	if n.ReturnType == "" {
		n.ReturnType = returnType
	}
	if len(n.ParameterTypes) == 0 && len(paramTypes) > 0 {
		n.ParameterTypes = append([]string(nil), paramTypes...)
	}
	return nil
}

// DeclareType adds File -CONTAINS-> Class.
func (b *Builder) DeclareType(fileID, classID int64, line int) error {
	return b.link(EdgeKindContains, fileID, classID, line)
}

// DeclareField adds Class -HAS_FIELD-> Field.
func (b *Builder) DeclareField(classID, fieldID int64, line int) error {
	return b.link(EdgeKindHasField, classID, fieldID, line)
}

// DeclareMethod adds Class -CONTAINS-> Method.
func (b *Builder) DeclareMethod(classID, methodID int64, line int) error {
	return b.link(EdgeKindContains, classID, methodID, line)
}

// RecordCall adds Method -CALLS-> Method.
func (b *Builder) RecordCall(callerID, calleeID int64, line int) error {
	return b.link(EdgeKindCalls, callerID, calleeID, line)
}

// RecordRead adds Method -READS-> Field.
func (b *Builder) RecordRead(methodID, fieldID int64, line int) error {
	return b.link(EdgeKindReads, methodID, fieldID, line)
}

// RecordWrite adds Method -WRITES-> Field.
func (b *Builder) RecordWrite(methodID, fieldID int64, line int) error {
	return b.link(EdgeKindWrites, methodID, fieldID, line)
}

func (b *Builder) link(kind EdgeKind, from, to int64, line int) error {
	return b.AddEdge(&Edge{
		FromID:     from,
		ToID:       to,
		Kind:       kind,
		Line:       line,
		CreatedAt:  b.now(),
		Confidence: DefaultConfidence,
	})
}

// AddEdge inserts a prepared edge, keeping its CreatedAt and Confidence.
// It is used when replaying a persisted snapshot. The edge ID is assigned
// by the graph.
func (b *Builder) AddEdge(e *Edge) error {
	if b.g.frozen {
		return ErrGraphFrozen
	}
	from, ok := b.g.Node(e.FromID)
	if !ok {
		return fmt.Errorf("%s edge source %d: %w", e.Kind, e.FromID, ErrNodeNotFound)
	}
	to, ok := b.g.Node(e.ToID)
	if !ok {
		return fmt.Errorf("%s edge target %d: %w", e.Kind, e.ToID, ErrNodeNotFound)
	}
	if !validEndpoints(e.Kind, from.Kind, to.Kind) {
		return fmt.Errorf("%s from %s to %s: %w", e.Kind, from.Kind, to.Kind, ErrInvalidEdgeType)
	}

	k := e.key()
	if _, dup := b.g.seen[k]; dup {
		return nil
	}
	b.g.seen[k] = struct{}{}

	edge := *e
	edge.ID = int64(len(b.g.edges)) + 1
	if edge.CreatedAt.IsZero() {
		edge.CreatedAt = b.now()
	}
	b.g.edges = append(b.g.edges, &edge)

	if b.g.out[edge.Kind] == nil {
		b.g.out[edge.Kind] = make(map[int64][]*Edge)
		b.g.in[edge.Kind] = make(map[int64][]*Edge)
	}
	b.g.out[edge.Kind][edge.FromID] = append(b.g.out[edge.Kind][edge.FromID], &edge)
	b.g.in[edge.Kind][edge.ToID] = append(b.g.in[edge.Kind][edge.ToID], &edge)
	return nil
}
