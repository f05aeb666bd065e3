package graph

import "context"

// contextCheckInterval is how often traversal polls for cancellation.
const contextCheckInterval = 256

// TraverseOptions bounds a closure computation.
type TraverseOptions struct {
	// MaxNodes caps the closure size. Zero means unbounded.
	MaxNodes int
}

// TraverseOption configures a traversal.
type TraverseOption func(*TraverseOptions)

// WithMaxNodes stops expansion once n nodes were collected. n <= 0 leaves
// the traversal unbounded.
func WithMaxNodes(n int) TraverseOption {
	return func(o *TraverseOptions) {
		if n < 0 {
			n = 0
		}
		o.MaxNodes = n
	}
}

// Closure is the result of a transitive closure. Seeds are excluded even
// when a cycle leads back to them; callers union them in when needed.
type Closure struct {
	// Nodes holds reachable node IDs in discovery order.
	Nodes []int64
	// Truncated is true if MaxNodes stopped the expansion early.
	Truncated bool

	set map[int64]struct{}
}

// Contains reports whether id is in the closure.
func (c Closure) Contains(id int64) bool {
	_, ok := c.set[id]
	return ok
}

// Len returns the closure size.
func (c Closure) Len() int { return len(c.Nodes) }

// TransitiveClosureForward returns every node reachable from seeds over
// outgoing kind edges, one or more hops. Each node is visited once, so
// cycles terminate.
func TransitiveClosureForward(ctx context.Context, g *Graph, seeds []int64, kind EdgeKind, opts ...TraverseOption) (Closure, error) {
	return closure(ctx, seeds, func(id int64) []*Edge { return g.Outgoing(id, kind) },
		func(e *Edge) int64 { return e.ToID }, opts)
}

// TransitiveClosureBackward is TransitiveClosureForward over incoming
// edges: for CALLS it answers "who transitively calls the seeds".
func TransitiveClosureBackward(ctx context.Context, g *Graph, seeds []int64, kind EdgeKind, opts ...TraverseOption) (Closure, error) {
	return closure(ctx, seeds, func(id int64) []*Edge { return g.Incoming(id, kind) },
		func(e *Edge) int64 { return e.FromID }, opts)
}

func closure(ctx context.Context, seeds []int64, adjacent func(int64) []*Edge, next func(*Edge) int64, opts []TraverseOption) (Closure, error) {
	var options TraverseOptions
	for _, opt := range opts {
		opt(&options)
	}

	result := Closure{set: make(map[int64]struct{})}
	visited := make(map[int64]struct{}, len(seeds))
	queue := make([]int64, 0, len(seeds))
	for _, s := range seeds {
		if _, ok := visited[s]; ok {
			continue
		}
		visited[s] = struct{}{}
		queue = append(queue, s)
	}

	visits := 0
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		visits++
		if visits%contextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return Closure{}, err
			}
		}

		for _, e := range adjacent(current) {
			n := next(e)
			if _, ok := visited[n]; ok {
				continue
			}
			if options.MaxNodes > 0 && len(result.Nodes) >= options.MaxNodes {
				result.Truncated = true
				return result, nil
			}
			visited[n] = struct{}{}
			result.set[n] = struct{}{}
			result.Nodes = append(result.Nodes, n)
			queue = append(queue, n)
		}
	}
	return result, nil
}
