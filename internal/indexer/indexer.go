// Package indexer rebuilds the reference graph in the background and
// publishes it to a graph.Store.
//
// At most one rebuild runs at a time. A rebuild ingests into a private
// staging builder; only a successful build replaces the published
// snapshot, so queries keep answering from the previous graph while a
// rebuild runs or after one fails.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felipestanzani/beyondsight/internal/analyzer"
	bserrors "github.com/felipestanzani/beyondsight/internal/errors"
	"github.com/felipestanzani/beyondsight/internal/graph"
	"github.com/felipestanzani/beyondsight/internal/metrics"
)

// State is the rebuild state.
type State string

const (
	StateIdle      State = "IDLE"
	StateRunning   State = "RUNNING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Status describes the latest rebuild.
type Status struct {
	State      State     `json:"state"`
	RunID      string    `json:"runId,omitempty"`
	Path       string    `json:"path,omitempty"`
	StartedAt  time.Time `json:"startedAt,omitzero"`
	FinishedAt time.Time `json:"finishedAt,omitzero"`
	Error      string    `json:"error,omitempty"`
	// PersistError is set when the published graph could not be saved.
	PersistError string `json:"persistError,omitempty"`
	Nodes      int       `json:"nodes"`
	Edges      int       `json:"edges"`
}

// Persister stores a published snapshot.
type Persister interface {
	Save(ctx context.Context, g *graph.Graph) error
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithPersister saves every successfully published graph.
func WithPersister(p Persister) Option {
	return func(ix *Indexer) { ix.persister = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(ix *Indexer) { ix.logger = logger }
}

// Indexer owns the rebuild state machine.
type Indexer struct {
	store     *graph.Store
	producer  analyzer.Producer
	persister Persister
	logger    *slog.Logger

	mu      sync.Mutex
	status  Status
	lastErr error
	done    chan struct{}
}

// New creates an idle indexer publishing into store.
func New(store *graph.Store, producer analyzer.Producer, opts ...Option) *Indexer {
	ix := &Indexer{
		store:    store,
		producer: producer,
		logger:   slog.Default(),
		status:   Status{State: StateIdle},
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Status returns a copy of the current status.
func (ix *Indexer) Status() Status {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.status
}

// Rescan starts a background rebuild of the project at path and returns
// immediately. It fails with CONFLICT while a rebuild is running and with
// INVALID_PARAMETER when path is blank or not a directory.
func (ix *Indexer) Rescan(ctx context.Context, path string) (Status, error) {
	if strings.TrimSpace(path) == "" {
		return Status{}, bserrors.InvalidParameterf("path must not be blank")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Status{}, bserrors.Wrap(bserrors.InvalidParameter, "invalid path", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return Status{}, bserrors.Wrap(bserrors.InvalidParameter, "invalid path "+abs, err)
	}
	if !info.IsDir() {
		return Status{}, bserrors.InvalidParameterf("not a directory: %s", abs)
	}

	ix.mu.Lock()
	if ix.status.State == StateRunning {
		ix.mu.Unlock()
		metrics.RecordRescanConflict()
		return Status{}, bserrors.New(bserrors.Conflict, "a rescan is already running")
	}
	ix.status = Status{
		State:     StateRunning,
		RunID:     uuid.NewString(),
		Path:      abs,
		StartedAt: time.Now(),
	}
	ix.lastErr = nil
	ix.done = make(chan struct{})
	status := ix.status
	done := ix.done
	ix.mu.Unlock()

	// The rebuild outlives the request that started it
	go ix.run(context.WithoutCancel(ctx), status, done)
	return status, nil
}

// Wait blocks until the running rebuild, if any, has finished.
func (ix *Indexer) Wait(ctx context.Context) error {
	ix.mu.Lock()
	done := ix.done
	ix.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run rebuilds synchronously and returns the final status. A failed
// rebuild returns its INGESTION_FAILURE error. A rebuild whose graph was
// published but could not be saved returns an INTERNAL_ERROR.
func (ix *Indexer) Run(ctx context.Context, path string) (Status, error) {
	if _, err := ix.Rescan(ctx, path); err != nil {
		return Status{}, err
	}
	if err := ix.Wait(ctx); err != nil {
		return ix.Status(), err
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.status, ix.lastErr
}

func (ix *Indexer) run(ctx context.Context, status Status, done chan struct{}) {
	logger := ix.logger.With("run_id", status.RunID, "path", status.Path)
	logger.Info("rebuild started")

	g, err := ix.build(ctx, status.Path)
	var perr error
	if err == nil {
		ix.store.Swap(g)
		metrics.SetGraphSize(g.NodeCount(), g.EdgeCount())
		if ix.persister != nil {
			if perr = ix.persister.Save(ctx, g); perr != nil {
				logger.Error("failed to persist graph", "err", perr)
			}
		}
	}

	finished := time.Now()
	duration := finished.Sub(status.StartedAt)
	metrics.RecordRebuild(duration, err)

	ix.mu.Lock()
	ix.status.FinishedAt = finished
	if err != nil {
		ix.status.State = StateFailed
		ix.status.Error = err.Error()
		ix.lastErr = err
	} else {
		ix.status.State = StateCompleted
		ix.status.Nodes = g.NodeCount()
		ix.status.Edges = g.EdgeCount()
		if perr != nil {
			ix.status.PersistError = perr.Error()
			ix.lastErr = bserrors.Wrap(bserrors.Internal, "graph published but not saved", perr)
		}
	}
	ix.mu.Unlock()
	close(done)

	if err != nil {
		logger.Error("rebuild failed", "duration", duration, "err", err)
		return
	}
	logger.Info("rebuild completed", "duration", duration, "nodes", g.NodeCount(), "edges", g.EdgeCount())
}

// build ingests the project into a fresh builder. Panics raised by a
// producer are reported as ingestion failures.
func (ix *Indexer) build(ctx context.Context, path string) (g *graph.Graph, err error) {
	defer func() {
		if r := recover(); r != nil {
			g = nil
			err = bserrors.New(bserrors.IngestionFailure, fmt.Sprintf("rebuild panicked: %v", r))
		}
	}()

	b := graph.NewBuilder()
	if err := ix.producer.Produce(ctx, path, b); err != nil {
		return nil, bserrors.Wrap(bserrors.IngestionFailure, "failed to build graph", err)
	}
	return b.Freeze(), nil
}
