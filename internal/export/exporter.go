// Package export renders the reference graph as a markdown inventory.
package export

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/felipestanzani/beyondsight/internal/display"
	"github.com/felipestanzani/beyondsight/internal/graph"
	"github.com/felipestanzani/beyondsight/internal/storage"
)

// Exporter generates documentation from a graph snapshot
type Exporter struct {
	g   *graph.Graph
	now func() time.Time
}

// NewExporter creates a new exporter
func NewExporter(g *graph.Graph) *Exporter {
	return &Exporter{g: g, now: time.Now}
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	IncludeMermaid    bool
	IncludeCallChains bool
	ProjectName       string
	// ImpactRows limits the impact table; 0 lists every called method
	ImpactRows int
}

// DefaultExportOptions returns default export options
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		IncludeMermaid:    true,
		IncludeCallChains: true,
		ProjectName:       "Project",
		ImpactRows:        20,
	}
}

// Export generates the complete inventory
func (e *Exporter) Export(w io.Writer, opts ExportOptions) error {
	counts := e.g.CountByKind()

	fmt.Fprintf(w, "# %s reference graph\n\n", opts.ProjectName)
	fmt.Fprintf(w, "> Generated: %s\n", e.now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "> Files: %d | Types: %d | Fields: %d | Methods: %d | Edges: %d\n\n",
		counts[graph.NodeKindFile], counts[graph.NodeKindClass],
		counts[graph.NodeKindField], counts[graph.NodeKindMethod], e.g.EdgeCount())

	files := e.g.NodesOfKind(graph.NodeKindFile)
	sort.Slice(files, func(i, j int) bool { return files[i].AbsolutePath < files[j].AbsolutePath })

	if opts.IncludeMermaid && len(files) > 0 {
		e.writeDependencyDiagram(w)
	}

	fmt.Fprintf(w, "---\n\n## Files\n\n")
	for _, f := range files {
		e.writeFileSection(w, f, opts)
	}

	e.writeImpactTable(w, opts.ImpactRows)
	return nil
}

// writeDependencyDiagram writes a Mermaid diagram of type-to-type calls
func (e *Exporter) writeDependencyDiagram(w io.Writer) {
	fmt.Fprintf(w, "## Type dependencies\n\n```mermaid\nflowchart LR\n")

	types := e.g.NodesOfKind(graph.NodeKindClass)
	sort.Slice(types, func(i, j int) bool { return types[i].Name < types[j].Name })
	for _, t := range types {
		fmt.Fprintf(w, "    %s[%s]\n", makeNodeID(t.Name), t.Name)
	}

	type link struct{ from, to string }
	seen := make(map[link]bool)
	var links []link
	for _, e2 := range e.g.Edges() {
		if e2.Kind != graph.EdgeKindCalls {
			continue
		}
		for _, from := range e.typeNames(e2.FromID) {
			for _, to := range e.typeNames(e2.ToID) {
				l := link{from, to}
				if from == to || seen[l] {
					continue
				}
				seen[l] = true
				links = append(links, l)
			}
		}
	}
	sort.Slice(links, func(i, j int) bool {
		if links[i].from != links[j].from {
			return links[i].from < links[j].from
		}
		return links[i].to < links[j].to
	})
	for _, l := range links {
		fmt.Fprintf(w, "    %s --> %s\n", makeNodeID(l.from), makeNodeID(l.to))
	}

	fmt.Fprintf(w, "```\n\n")
}

func (e *Exporter) typeNames(memberID int64) []string {
	var names []string
	for _, id := range e.g.DeclaringTypes(memberID) {
		if n, ok := e.g.Node(id); ok {
			names = append(names, n.Name)
		}
	}
	return names
}

// writeFileSection writes the types declared in one file
func (e *Exporter) writeFileSection(w io.Writer, file *graph.Node, opts ExportOptions) {
	fmt.Fprintf(w, "### 📄 %s\n\n", display.ShortPath(file.AbsolutePath))
	fmt.Fprintf(w, "`%s`\n\n", file.AbsolutePath)

	written := make(map[int64]bool)
	for _, decl := range sortedByLine(e.g.Outgoing(file.ID, graph.EdgeKindContains)) {
		if written[decl.ToID] {
			continue
		}
		written[decl.ToID] = true
		t, _ := e.g.Node(decl.ToID)
		fmt.Fprintf(w, "#### %s (line %d)\n\n", t.Name, decl.Line)

		fields := sortedByLine(e.g.Outgoing(t.ID, graph.EdgeKindHasField))
		if len(fields) > 0 {
			fmt.Fprintf(w, "| Field | Type | Line | Readers | Writers |\n")
			fmt.Fprintf(w, "|-------|------|------|---------|---------|\n")
			for _, fe := range fields {
				f, _ := e.g.Node(fe.ToID)
				fmt.Fprintf(w, "| `%s` | %s | %d | %d | %d |\n",
					f.Name, orDash(strings.Join(f.FieldTypes, ", ")), fe.Line,
					len(e.g.Predecessors(f.ID, graph.EdgeKindReads)),
					len(e.g.Predecessors(f.ID, graph.EdgeKindWrites)))
			}
			fmt.Fprintf(w, "\n")
		}

		methods := sortedByLine(e.g.Outgoing(t.ID, graph.EdgeKindContains))
		if len(methods) > 0 {
			fmt.Fprintf(w, "| Method | Returns | Line | Called by | Calls |\n")
			fmt.Fprintf(w, "|--------|---------|------|-----------|-------|\n")
			for _, me := range methods {
				m, _ := e.g.Node(me.ToID)
				fmt.Fprintf(w, "| `%s` | %s | %d | %d | %d |\n",
					m.Signature, orDash(m.ReturnType), me.Line,
					len(e.g.Predecessors(m.ID, graph.EdgeKindCalls)),
					len(e.g.Successors(m.ID, graph.EdgeKindCalls)))
			}
			fmt.Fprintf(w, "\n")

			if opts.IncludeCallChains {
				for _, me := range methods {
					e.writeCallChain(w, me.ToID)
				}
			}
		}
	}
}

// writeCallChain lists direct callers and callees of a called method
func (e *Exporter) writeCallChain(w io.Writer, methodID int64) {
	callers := e.g.Predecessors(methodID, graph.EdgeKindCalls)
	callees := e.g.Successors(methodID, graph.EdgeKindCalls)
	if len(callers) == 0 && len(callees) == 0 {
		return
	}
	m, _ := e.g.Node(methodID)
	fmt.Fprintf(w, "- `%s`\n", m.Signature)
	if len(callers) > 0 {
		fmt.Fprintf(w, "  - **Called by**: %s\n", e.signatures(callers))
	}
	if len(callees) > 0 {
		fmt.Fprintf(w, "  - **Calls**: %s\n", e.signatures(callees))
	}
	fmt.Fprintf(w, "\n")
}

func (e *Exporter) signatures(ids []int64) string {
	names := make([]string, 0, len(ids))
	for _, id := range ids {
		if n, ok := e.g.Node(id); ok {
			names = append(names, "`"+n.Signature+"`")
		}
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// writeImpactTable writes a summary table for impact analysis
func (e *Exporter) writeImpactTable(w io.Writer, limit int) {
	type methodStats struct {
		m       *graph.Node
		callers int
		callees int
	}

	var stats []methodStats
	for _, m := range e.g.NodesOfKind(graph.NodeKindMethod) {
		callers := len(e.g.Predecessors(m.ID, graph.EdgeKindCalls))
		if callers == 0 {
			continue
		}
		stats = append(stats, methodStats{m, callers, len(e.g.Successors(m.ID, graph.EdgeKindCalls))})
	}
	if len(stats) == 0 {
		return
	}

	// Most called first
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].callers != stats[j].callers {
			return stats[i].callers > stats[j].callers
		}
		return stats[i].m.Signature < stats[j].m.Signature
	})
	if limit > 0 && len(stats) > limit {
		stats = stats[:limit]
	}

	fmt.Fprintf(w, "---\n\n## Change impact quick reference\n\n")
	fmt.Fprintf(w, "| Method | Declared in | Called by | Calls | Risk |\n")
	fmt.Fprintf(w, "|--------|-------------|-----------|-------|------|\n")
	for _, s := range stats {
		level := storage.CalculateRiskLevelFast(s.callers)
		fmt.Fprintf(w, "| `%s` | %s | %d | %d | %s %s |\n",
			s.m.Signature,
			orDash(strings.Join(e.typeNames(s.m.ID), ", ")),
			s.callers,
			s.callees,
			display.RiskIcon(level), level,
		)
	}
	fmt.Fprintf(w, "\n")
}

// sortedByLine returns a line-ordered copy; graph adjacency is shared.
func sortedByLine(edges []*graph.Edge) []*graph.Edge {
	out := append([]*graph.Edge(nil), edges...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Line < out[j].Line })
	return out
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func makeNodeID(name string) string {
	// Create a valid Mermaid node ID
	r := strings.NewReplacer("(", "", ")", "", "*", "", ".", "_", "$", "_", "<", "_", ">", "_", " ", "_")
	return "t_" + r.Replace(name)
}
