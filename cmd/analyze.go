package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felipestanzani/beyondsight/internal/display"
	"github.com/felipestanzani/beyondsight/internal/graph"
)

func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze [project-path]",
		Short: "Build the reference graph of a project and store it",
		Long: `Analyze a Go or Java project and store its reference graph in the
database. The previous graph is replaced only when the analysis succeeds.

Examples:
  beyondsight analyze .
  beyondsight analyze ~/src/shop -d shop.db`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.indexer.Run(ctx, projectArg(args))
			out := cmd.OutOrStdout()
			fmt.Fprint(out, display.FormatStatus(status))
			if err != nil {
				return err
			}

			counts := a.store.Snapshot().CountByKind()
			fmt.Fprintf(out, "          %d files, %d types, %d fields, %d methods\n",
				counts[graph.NodeKindFile], counts[graph.NodeKindClass],
				counts[graph.NodeKindField], counts[graph.NodeKindMethod])

			stats, err := a.db.GetStats(ctx)
			if err != nil {
				return fmt.Errorf("read stored graph: %w", err)
			}
			fmt.Fprintf(out, "Saved to: %s (%d nodes, %d edges at %s)\n", cfg.Database.Path,
				stats.Nodes, stats.Edges, stats.SavedAt.Local().Format("2006-01-02 15:04:05"))
			return nil
		},
	}
	return cmd
}
