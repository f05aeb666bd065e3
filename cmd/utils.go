package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felipestanzani/beyondsight/internal/analyzer"
	"github.com/felipestanzani/beyondsight/internal/display"
	"github.com/felipestanzani/beyondsight/internal/graph"
	"github.com/felipestanzani/beyondsight/internal/impact"
	"github.com/felipestanzani/beyondsight/internal/indexer"
	"github.com/felipestanzani/beyondsight/internal/storage"
)

// app wires the database, the published graph, the impact engine and the
// indexer for one command run.
type app struct {
	db      *storage.DB
	store   *graph.Store
	engine  *impact.Engine
	indexer *indexer.Indexer
}

// openApp opens the database and publishes its stored snapshot.
func openApp(ctx context.Context) (*app, error) {
	db, err := storage.Open(cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	g, err := db.Load(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load graph: %w", err)
	}
	store := graph.NewStore()
	store.Swap(g)
	if g.NodeCount() == 0 {
		logger.Warn("stored graph is empty, run `beyondsight analyze` first", "db", cfg.Database.Path)
	} else {
		logger.Debug("graph loaded", "db", cfg.Database.Path, "nodes", g.NodeCount(), "edges", g.EdgeCount())
	}

	producer, err := analyzer.New(cfg.Analyzer.Languages, logger)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &app{
		db:    db,
		store: store,
		engine: impact.NewEngine(store,
			impact.WithMaxNodes(cfg.Query.MaxNodes),
			impact.WithLogger(logger),
		),
		indexer: indexer.New(store, producer,
			indexer.WithPersister(db),
			indexer.WithLogger(logger),
		),
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func projectArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

func addFormatFlag(cmd *cobra.Command, format *string) {
	cmd.Flags().StringVarP(format, "format", "f", "text", "output format: text, json, markdown")
}

func writeReport(w io.Writer, format string, r *impact.Report) error {
	switch format {
	case "json":
		return display.WriteJSON(w, r)
	case "markdown":
		_, err := io.WriteString(w, r.FormatMarkdown())
		return err
	case "text":
		if _, err := io.WriteString(w, r.FormatTree()); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "\n%s\n", r.Summary())
		return err
	}
	return fmt.Errorf("unknown format: %s", format)
}

func writeList(w io.Writer, format string, l *impact.MethodList) error {
	switch format {
	case "json":
		return display.WriteJSON(w, l)
	case "markdown":
		_, err := io.WriteString(w, l.FormatMarkdown())
		return err
	case "text":
		_, err := io.WriteString(w, l.FormatTree())
		return err
	}
	return fmt.Errorf("unknown format: %s", format)
}
