package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	bserrors "github.com/felipestanzani/beyondsight/internal/errors"
	"github.com/felipestanzani/beyondsight/internal/graph"
	"github.com/felipestanzani/beyondsight/internal/impact"
	"github.com/felipestanzani/beyondsight/internal/indexer"
	"github.com/felipestanzani/beyondsight/internal/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type producerFunc func(ctx context.Context, root string, sink graph.Sink) error

func (f producerFunc) Produce(ctx context.Context, root string, sink graph.Sink) error {
	return f(ctx, root, sink)
}

// shopGraph: Order.add(int) writes total, Order.getTotal() reads it and
// Cart.checkout() calls add(int).
func shopGraph(t *testing.T) *graph.Graph {
	t.Helper()
	b := graph.NewBuilder()
	must := func(id int64, err error) int64 {
		require.NoError(t, err)
		return id
	}
	orderFile := must(b.UpsertFile("Order.java", "/src/Order.java"))
	cartFile := must(b.UpsertFile("Cart.java", "/src/Cart.java"))
	order := must(b.UpsertType("Order", "/src/Order.java"))
	cart := must(b.UpsertType("Cart", "/src/Cart.java"))
	total := must(b.UpsertField("total"))
	add := must(b.UpsertMethod("add(int)"))
	get := must(b.UpsertMethod("getTotal()"))
	checkout := must(b.UpsertMethod("checkout()"))

	require.NoError(t, b.DeclareType(orderFile, order, 1))
	require.NoError(t, b.DeclareType(cartFile, cart, 1))
	require.NoError(t, b.DeclareField(order, total, 2))
	require.NoError(t, b.DeclareMethod(order, add, 4))
	require.NoError(t, b.DeclareMethod(order, get, 8))
	require.NoError(t, b.DeclareMethod(cart, checkout, 3))
	require.NoError(t, b.RecordWrite(add, total, 5))
	require.NoError(t, b.RecordRead(get, total, 9))
	require.NoError(t, b.RecordCall(checkout, add, 4))
	return b.Freeze()
}

func newTestServer(t *testing.T, p producerFunc) (*Server, *indexer.Indexer) {
	t.Helper()
	store := graph.NewStore()
	store.Swap(shopGraph(t))
	if p == nil {
		p = func(context.Context, string, graph.Sink) error { return nil }
	}
	ix := indexer.New(store, p, indexer.WithLogger(logging.Discard()))
	return NewServer(impact.NewEngine(store), ix, logging.Discard()), ix
}

func do(t *testing.T, s *Server, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(method, target, nil))
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) bserrors.ErrorCode {
	t.Helper()
	var body struct {
		Code    bserrors.ErrorCode `json:"code"`
		Message string             `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Message)
	return body.Code
}

func TestFieldImpact(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := do(t, s, http.MethodGet, "/api/v1/impact/field/full?fieldName=total&className=Order")
	require.Equal(t, http.StatusOK, w.Code)

	var report impact.Report
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, "field", report.Target.Kind)

	var paths []string
	for _, f := range report.Files {
		paths = append(paths, f.AbsolutePath)
	}
	assert.Equal(t, []string{"/src/Cart.java", "/src/Order.java"}, paths)
}

func TestFlatQueries(t *testing.T) {
	s, _ := newTestServer(t, nil)

	tests := []struct {
		target string
		want   []string
	}{
		{"/api/v1/impact/field/writers?fieldName=total", []string{"add(int)"}},
		{"/api/v1/impact/field/readers?fieldName=total", []string{"getTotal()"}},
		{"/api/v1/impact/method/upstream?methodName=add", []string{"checkout()"}},
		{"/api/v1/impact/method/downstream?methodSignature=checkout()", []string{"add(int)"}},
	}
	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			w := do(t, s, http.MethodGet, tt.target)
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())

			var list impact.MethodList
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
			var sigs []string
			for _, m := range list.Methods {
				sigs = append(sigs, m.Signature)
			}
			assert.Equal(t, tt.want, sigs)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/api/v1/impact/class/full?className=")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, bserrors.InvalidParameter, decodeError(t, w))

	w = do(t, s, http.MethodGet, "/api/v1/impact/field/full?fieldName=missing&className=Order")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, bserrors.NotFound, decodeError(t, w))

	w = do(t, s, http.MethodGet, "/api/v1/impact/method/full?methodSignature=add(int)")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRescanAndStatus(t *testing.T) {
	release := make(chan struct{})
	s, ix := newTestServer(t, func(ctx context.Context, _ string, sink graph.Sink) error {
		<-release
		_, err := sink.UpsertMethod("fresh()")
		return err
	})
	dir := t.TempDir()

	w := do(t, s, http.MethodPost, "/api/v1/index/rescan?path="+dir)
	require.Equal(t, http.StatusAccepted, w.Code)

	w = do(t, s, http.MethodPost, "/api/v1/index/rescan?path="+dir)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, bserrors.Conflict, decodeError(t, w))

	close(release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, ix.Wait(ctx))

	w = do(t, s, http.MethodGet, "/api/v1/index/status")
	require.Equal(t, http.StatusOK, w.Code)
	var status indexer.Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, indexer.StateCompleted, status.State)
	assert.Equal(t, 1, status.Nodes)

	w = do(t, s, http.MethodPost, "/api/v1/index/rescan")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	s, _ := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	// Populate at least one impact series
	do(t, s, http.MethodGet, "/api/v1/impact/field/writers?fieldName=total")
	w = do(t, s, http.MethodGet, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "beyondsight_impact_query_duration_seconds")
}
