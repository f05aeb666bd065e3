package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/felipestanzani/beyondsight/internal/export"
)

func exportCmd() *cobra.Command {
	var outputFile string
	var projectName string
	var noMermaid bool
	var noChains bool
	var rows int

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the stored graph as Markdown",
		Long: `Export the stored reference graph as a Markdown document: a type
dependency diagram, per-file field and method tables, call chains and an
impact quick reference. The document works well as context for AI coding
assistants.

Examples:
  beyondsight export -o GRAPH.md
  beyondsight export --no-mermaid --rows 50`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			opts := export.DefaultExportOptions()
			opts.IncludeMermaid = !noMermaid
			opts.IncludeCallChains = !noChains
			opts.ImpactRows = rows
			if projectName != "" {
				opts.ProjectName = projectName
			}

			var w io.Writer = cmd.OutOrStdout()
			if outputFile != "" && outputFile != "-" {
				f, err := os.Create(outputFile)
				if err != nil {
					return fmt.Errorf("create output file: %w", err)
				}
				defer f.Close()
				w = f
			}

			return export.NewExporter(a.store.Snapshot()).Export(w, opts)
		},
	}

	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file (default stdout)")
	cmd.Flags().StringVar(&projectName, "name", "", "project name used in the title")
	cmd.Flags().BoolVar(&noMermaid, "no-mermaid", false, "omit the Mermaid diagram")
	cmd.Flags().BoolVar(&noChains, "no-chains", false, "omit call chains")
	cmd.Flags().IntVar(&rows, "rows", 20, "rows in the impact table (0 for all)")

	return cmd
}
