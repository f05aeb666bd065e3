package graph

import "errors"

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	// Once Freeze() is called the graph is read-only.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrNodeNotFound is returned when an edge or setter references a
	// node ID that was never upserted.
	ErrNodeNotFound = errors.New("node not found")

	// ErrInvalidEdgeType is returned when an edge label does not match
	// the kinds of its endpoints (e.g. CALLS from a Field).
	ErrInvalidEdgeType = errors.New("invalid edge type for endpoints")

	// ErrEmptyKey is returned when upserting a node with a blank key.
	ErrEmptyKey = errors.New("node key must not be empty")
)
