package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/felipestanzani/beyondsight/internal/indexer"
	"github.com/felipestanzani/beyondsight/internal/mcp"
	"github.com/felipestanzani/beyondsight/internal/watcher"
	"github.com/felipestanzani/beyondsight/internal/web"
)

func serveCmd() *cobra.Command {
	var addr string
	var watch bool

	cmd := &cobra.Command{
		Use:   "serve [project-path]",
		Short: "Serve the REST API",
		Long: `Start the REST API over the stored graph. When a project path is
given it is rescanned in the background at startup; --watch keeps
rescanning it as sources change.

Examples:
  beyondsight serve
  beyondsight serve . --watch --addr :8080`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) > 0 {
				if _, err := a.indexer.Rescan(ctx, args[0]); err != nil {
					return err
				}
				if watch {
					w, err := startWatcher(args[0], a.indexer)
					if err != nil {
						return err
					}
					defer w.Stop()
				}
			}

			if addr == "" {
				addr = cfg.Server.Addr
			}
			err = web.NewServer(a.engine, a.indexer, logger).Run(ctx, addr)
			return errors.Join(err, drain(a.indexer))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config, :9998)")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "rescan the project when sources change")
	return cmd
}

func mcpCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp [project-path]",
		Short: "Start the MCP (Model Context Protocol) server on stdio",
		Long: `Start an MCP server so that AI assistants can query change impact.

Tools:
  - getFieldReferences, getMethodReferences, getClassReferences
  - getFieldWriters, getFieldReaders
  - getUpstreamCallers, getDownstreamCallees
  - rescanProject, getParseStatus

When a project path is given it is rescanned in the background at startup.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) > 0 {
				if _, err := a.indexer.Rescan(ctx, args[0]); err != nil {
					return err
				}
			}
			err = mcp.NewServer(a.engine, a.indexer, logger).Run(ctx)
			return errors.Join(err, drain(a.indexer))
		},
	}
	return cmd
}

func watchCmd() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [project-path]",
		Short: "Rebuild the graph whenever sources change",
		Long: `Analyze the project, then watch it and rebuild the stored graph when
Go or Java sources change.

Features:
  - recursive watch of every source directory
  - debounced, so a burst of saves triggers one rebuild
  - ignores tests (_test.go), hidden, vendor and build directories

Examples:
  beyondsight watch .
  beyondsight watch . --debounce 1s`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			path := projectArg(args)
			fmt.Fprintln(out, "Running initial analysis...")
			status, err := a.indexer.Run(ctx, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Initial analysis done: %d nodes, %d edges\n", status.Nodes, status.Edges)

			if cmd.Flags().Changed("debounce") {
				cfg.Watch.Debounce = debounce
			}
			w, err := startWatcher(path, a.indexer)
			if err != nil {
				return err
			}
			defer w.Stop()

			fmt.Fprintf(out, "Watching %s (debounce %s), press Ctrl+C to stop\n", status.Path, cfg.Watch.Debounce)
			<-ctx.Done()
			fmt.Fprintln(out, "Stopping...")

			return drain(a.indexer)
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "debounce delay")
	return cmd
}

// drain lets a running rebuild finish so its snapshot is persisted before
// the database closes.
func drain(ix *indexer.Indexer) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return ix.Wait(ctx)
}

func startWatcher(path string, ix *indexer.Indexer) (*watcher.Watcher, error) {
	w, err := watcher.New(path, ix,
		watcher.WithDebounceDelay(cfg.Watch.Debounce),
		watcher.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	w.Start()
	return w, nil
}
