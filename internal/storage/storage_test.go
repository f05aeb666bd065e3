package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bserrors "github.com/felipestanzani/beyondsight/internal/errors"
	"github.com/felipestanzani/beyondsight/internal/graph"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// sampleGraph builds Order.java with two methods calling a shared helper.
func sampleGraph(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	must := func(id int64, err error) int64 {
		require.NoError(t, err)
		return id
	}

	file := must(b.UpsertFile("Order.java", "/src/Order.java"))
	order := must(b.UpsertType("Order", "/src/Order.java"))
	total := must(b.UpsertField("total"))
	add := must(b.UpsertMethod("add(int)"))
	sum := must(b.UpsertMethod("sum()"))
	check := must(b.UpsertMethod("check()"))

	require.NoError(t, b.SetFieldType(total, "int"))
	require.NoError(t, b.SetFieldType(total, "long"))
	require.NoError(t, b.SetMethodTypes(add, "void", []string{"int"}))
	require.NoError(t, b.DeclareType(file, order, 1))
	require.NoError(t, b.DeclareField(order, total, 2))
	for i, m := range []int64{add, sum, check} {
		require.NoError(t, b.DeclareMethod(order, m, 4+i))
	}
	require.NoError(t, b.RecordWrite(add, total, 5))
	require.NoError(t, b.RecordRead(sum, total, 8))
	require.NoError(t, b.RecordCall(add, check, 6))
	require.NoError(t, b.RecordCall(sum, check, 9))
	require.NoError(t, b.RecordCall(sum, check, 10))
	return b.Freeze()
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	g := sampleGraph(t)

	require.NoError(t, db.Save(ctx, g))
	loaded, err := db.Load(ctx)
	require.NoError(t, err)

	assert.True(t, loaded.Frozen())
	assert.Equal(t, g.NodeCount(), loaded.NodeCount())
	assert.Equal(t, g.EdgeCount(), loaded.EdgeCount())

	total, ok := loaded.FindField("total")
	require.True(t, ok)
	n, _ := loaded.Node(total)
	assert.Equal(t, []string{"int", "long"}, n.FieldTypes)

	add, ok := loaded.FindMethod("add(int)")
	require.True(t, ok)
	n, _ = loaded.Node(add)
	assert.Equal(t, "void", n.ReturnType)
	assert.Equal(t, []string{"int"}, n.ParameterTypes)
	assert.Equal(t, "add", n.Name)

	order, _ := loaded.FindType("Order")
	n, _ = loaded.Node(order)
	assert.Equal(t, "/src/Order.java", n.FilePath)

	for i, e := range g.Edges() {
		got := loaded.Edges()[i]
		assert.Equal(t, e.Kind, got.Kind)
		assert.Equal(t, e.Line, got.Line)
		assert.Equal(t, e.Confidence, got.Confidence)
		assert.True(t, e.CreatedAt.Equal(got.CreatedAt), "edge %d createdAt", e.ID)
	}
}

func TestSave_ReplacesSnapshot(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Save(ctx, sampleGraph(t)))

	b := graph.NewBuilder()
	_, err := b.UpsertMethod("only()")
	require.NoError(t, err)
	require.NoError(t, db.Save(ctx, b.Freeze()))

	stats, err := db.GetStats(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stats.Nodes)
	assert.EqualValues(t, 0, stats.Edges)
	assert.WithinDuration(t, time.Now(), stats.SavedAt, time.Minute)
}

func TestLoad_Empty(t *testing.T) {
	db := openTestDB(t)
	g, err := db.Load(context.Background())
	require.NoError(t, err)
	assert.Zero(t, g.NodeCount())

	stats, err := db.GetStats(context.Background())
	require.NoError(t, err)
	assert.True(t, stats.SavedAt.IsZero())
}

func TestRiskQueries(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	require.NoError(t, db.Save(ctx, sampleGraph(t)))

	top, err := db.GetTopRiskyMethods(ctx, 2)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, "check()", top[0].Signature)
	assert.Equal(t, 2, top[0].DirectCallers)
	assert.Equal(t, "/src/Order.java", top[0].FilePath)
	assert.Equal(t, "low", top[0].RiskLevel)

	score, err := db.GetRiskScore(ctx, "check()")
	require.NoError(t, err)
	assert.Equal(t, 2, score.DirectCallers)
	assert.Equal(t, 2, score.TotalCallers)

	_, err = db.GetRiskScore(ctx, "missing()")
	assert.True(t, bserrors.HasCode(err, bserrors.NotFound))
}

func TestCalculateRiskLevel(t *testing.T) {
	tests := []struct {
		direct, total int
		want          string
	}{
		{0, 0, "low"},
		{5, 0, "medium"},
		{0, 30, "medium"},
		{20, 0, "high"},
		{0, 100, "high"},
		{50, 0, "critical"},
		{1, 200, "critical"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CalculateRiskLevel(tt.direct, tt.total), "%d/%d", tt.direct, tt.total)
	}
	assert.Equal(t, "medium", CalculateRiskLevelFast(7))
}
