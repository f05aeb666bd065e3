package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felipestanzani/beyondsight/internal/graph"
)

func inventoryGraph(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	must := func(id int64, err error) int64 {
		require.NoError(t, err)
		return id
	}

	orderFile := must(b.UpsertFile("Order.java", "/src/shop/Order.java"))
	cartFile := must(b.UpsertFile("Cart.java", "/src/shop/Cart.java"))
	order := must(b.UpsertType("Order", "/src/shop/Order.java"))
	cart := must(b.UpsertType("Cart", "/src/shop/Cart.java"))
	total := must(b.UpsertField("total"))
	add := must(b.UpsertMethod("add(int)"))
	checkout := must(b.UpsertMethod("checkout()"))

	require.NoError(t, b.SetFieldType(total, "int"))
	require.NoError(t, b.SetMethodTypes(add, "void", []string{"int"}))
	require.NoError(t, b.DeclareType(orderFile, order, 3))
	require.NoError(t, b.DeclareType(cartFile, cart, 1))
	require.NoError(t, b.DeclareField(order, total, 4))
	require.NoError(t, b.DeclareMethod(order, add, 6))
	require.NoError(t, b.DeclareMethod(cart, checkout, 2))
	require.NoError(t, b.RecordWrite(add, total, 7))
	require.NoError(t, b.RecordCall(checkout, add, 3))
	return b.Freeze()
}

func TestExport(t *testing.T) {
	e := NewExporter(inventoryGraph(t))
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }

	var buf bytes.Buffer
	opts := DefaultExportOptions()
	opts.ProjectName = "shop"
	require.NoError(t, e.Export(&buf, opts))
	out := buf.String()

	assert.Contains(t, out, "# shop reference graph")
	assert.Contains(t, out, "> Generated: 2024-05-01 12:00:00")
	assert.Contains(t, out, "Files: 2 | Types: 2 | Fields: 1 | Methods: 2 | Edges: 7")
	assert.Contains(t, out, "t_Cart --> t_Order")
	assert.Contains(t, out, "| `total` | int | 4 | 0 | 1 |")
	assert.Contains(t, out, "| `add(int)` | void | 6 | 1 | 0 |")
	assert.Contains(t, out, "**Called by**: `checkout()`")
	assert.Contains(t, out, "| `add(int)` | Order | 1 | 0 | 🟢 low |")

	// Files are ordered by absolute path
	assert.Less(t, bytes.Index(buf.Bytes(), []byte("Cart.java")), bytes.Index(buf.Bytes(), []byte("Order.java")))
}

func TestExport_WithoutDiagram(t *testing.T) {
	var buf bytes.Buffer
	opts := DefaultExportOptions()
	opts.IncludeMermaid = false
	opts.IncludeCallChains = false
	require.NoError(t, NewExporter(inventoryGraph(t)).Export(&buf, opts))

	assert.NotContains(t, buf.String(), "mermaid")
	assert.NotContains(t, buf.String(), "Called by**")
}

func TestExport_EmptyGraph(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewExporter(graph.Empty()).Export(&buf, DefaultExportOptions()))
	assert.Contains(t, buf.String(), "Files: 0")
	assert.NotContains(t, buf.String(), "quick reference")
}
