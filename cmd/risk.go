package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felipestanzani/beyondsight/internal/display"
)

func riskCmd() *cobra.Command {
	var limit int
	var format string

	cmd := &cobra.Command{
		Use:   "risk [signature]",
		Short: "Rank methods by change risk",
		Long: `Assess the change risk of methods from their caller counts.

Risk levels:
  - critical: direct callers >= 50 or total callers >= 200
  - high:     direct callers >= 20 or total callers >= 100
  - medium:   direct callers >= 5 or total callers >= 30
  - low:      everything else

Examples:
  beyondsight risk 'deposit(long)'   # one method
  beyondsight risk --top --limit 20  # the riskiest methods`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			showTop, _ := cmd.Flags().GetBool("top")
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			if showTop || len(args) == 0 {
				scores, err := a.db.GetTopRiskyMethods(ctx, limit)
				if err != nil {
					return fmt.Errorf("query risky methods: %w", err)
				}
				if format == "json" {
					return display.WriteJSON(out, scores)
				}
				if len(scores) == 0 {
					fmt.Fprintln(out, "No methods in the graph. Run 'beyondsight analyze' first.")
					return nil
				}
				fmt.Fprintf(out, "Riskiest methods (top %d)\n\n", limit)
				fmt.Fprint(out, display.FormatRiskTable(scores))
				fmt.Fprintln(out, "\nUse 'beyondsight risk <signature>' for details.")
				return nil
			}

			score, err := a.db.GetRiskScore(ctx, args[0])
			if err != nil {
				return err
			}
			if format == "json" {
				return display.WriteJSON(out, score)
			}
			fmt.Fprint(out, display.FormatRiskScore(score))
			fmt.Fprintf(out, "\n%s\n", riskAdvice(score.RiskLevel))
			return nil
		},
	}

	cmd.Flags().Bool("top", false, "list the riskiest methods")
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "number of methods to list")
	cmd.Flags().StringVarP(&format, "format", "f", "text", "output format: text or json")

	return cmd
}

func riskAdvice(level string) string {
	switch level {
	case "critical":
		return "Change with great care: review every caller and add tests before touching it."
	case "high":
		return "Review the main callers and run the affected tests after changing it."
	case "medium":
		return "Check the direct callers after changing it."
	default:
		return "Low impact: it can be changed with confidence."
	}
}
