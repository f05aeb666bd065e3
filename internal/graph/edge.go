package graph

import "time"

// EdgeKind represents the type of relationship between nodes
type EdgeKind string

const (
	EdgeKindContains EdgeKind = "CONTAINS"  // File→Class, Class→Method
	EdgeKindHasField EdgeKind = "HAS_FIELD" // Class→Field
	EdgeKindCalls    EdgeKind = "CALLS"     // Method→Method
	EdgeKindReads    EdgeKind = "READS"     // Method→Field
	EdgeKindWrites   EdgeKind = "WRITES"    // Method→Field
)

// DefaultConfidence is the score carried by every edge produced today.
const DefaultConfidence = 1.0

// Edge represents a relationship between two nodes
type Edge struct {
	ID         int64     `json:"id"`
	FromID     int64     `json:"from_id"`
	ToID       int64     `json:"to_id"`
	Kind       EdgeKind  `json:"kind"`
	Line       int       `json:"line"`
	CreatedAt  time.Time `json:"created_at"`
	Confidence float64   `json:"confidence"`
}

type edgeKey struct {
	kind     EdgeKind
	from, to int64
	line     int
}

func (e *Edge) key() edgeKey {
	return edgeKey{kind: e.Kind, from: e.FromID, to: e.ToID, line: e.Line}
}

// validEndpoints reports whether kind may connect a node of kind from to a
// node of kind to.
func validEndpoints(kind EdgeKind, from, to NodeKind) bool {
	switch kind {
	case EdgeKindContains:
		return (from == NodeKindFile && to == NodeKindClass) ||
			(from == NodeKindClass && to == NodeKindMethod)
	case EdgeKindHasField:
		return from == NodeKindClass && to == NodeKindField
	case EdgeKindCalls:
		return from == NodeKindMethod && to == NodeKindMethod
	case EdgeKindReads, EdgeKindWrites:
		return from == NodeKindMethod && to == NodeKindField
	}
	return false
}
