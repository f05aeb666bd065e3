package graph

import "sync/atomic"

// Store publishes the current frozen graph to concurrent readers. Readers
// take one Snapshot per query and never observe a partially built graph.
type Store struct {
	current atomic.Pointer[Graph]
}

// NewStore creates a store holding an empty graph.
func NewStore() *Store {
	s := &Store{}
	s.current.Store(Empty())
	return s
}

// Snapshot returns the graph currently published.
func (s *Store) Snapshot() *Graph {
	return s.current.Load()
}

// Swap freezes g, publishes it and returns the previous graph.
func (s *Store) Swap(g *Graph) *Graph {
	g.frozen = true
	return s.current.Swap(g)
}

// Clear publishes an empty graph.
func (s *Store) Clear() {
	s.current.Store(Empty())
}
