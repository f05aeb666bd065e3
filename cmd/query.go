package cmd

import (
	"github.com/spf13/cobra"

	"github.com/felipestanzani/beyondsight/internal/impact"
)

// reportCmd builds a full impact query command.
func reportCmd(use, short, long string, nargs int, run func(*impact.Engine, *cobra.Command, []string) (*impact.Report, error)) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := run(a.engine, cmd, args)
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), format, report)
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

// listCmd builds a flat query command taking one argument.
func listCmd(use, short string, run func(*impact.Engine, *cobra.Command, string) (*impact.MethodList, error)) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			list, err := run(a.engine, cmd, args[0])
			if err != nil {
				return err
			}
			return writeList(cmd.OutOrStdout(), format, list)
		},
	}
	addFormatFlag(cmd, &format)
	return cmd
}

func fieldCmd() *cobra.Command {
	return reportCmd("field <class-name> <field-name>",
		"Full change impact of a field",
		`Show every file, type and member affected by changing a field:
its readers and writers, their transitive callers, and signature
variants of the accessors.

Example:
  beyondsight field Account balance`,
		2,
		func(e *impact.Engine, cmd *cobra.Command, args []string) (*impact.Report, error) {
			return e.FieldImpact(cmd.Context(), args[1], args[0])
		})
}

func methodCmd() *cobra.Command {
	return reportCmd("method <class-name> <signature>",
		"Full change impact of a method",
		`Show every file, type and member affected by changing a method:
transitive callers and callees, other accessors of the fields it touches,
and same-name overloads.

Example:
  beyondsight method Account 'deposit(long)'`,
		2,
		func(e *impact.Engine, cmd *cobra.Command, args []string) (*impact.Report, error) {
			return e.MethodImpact(cmd.Context(), args[1], args[0])
		})
}

func classCmd() *cobra.Command {
	return reportCmd("class <class-name>",
		"Full change impact of a class",
		`Show every file, type and member affected by changing a class:
callers of its methods, overrides in other types, and fields or methods
whose types reference it.

Example:
  beyondsight class Account`,
		1,
		func(e *impact.Engine, cmd *cobra.Command, args []string) (*impact.Report, error) {
			return e.ClassImpact(cmd.Context(), args[0])
		})
}

func writersCmd() *cobra.Command {
	return listCmd("writers <field-name>", "List methods that write a field",
		func(e *impact.Engine, cmd *cobra.Command, name string) (*impact.MethodList, error) {
			return e.FieldWriters(cmd.Context(), name)
		})
}

func readersCmd() *cobra.Command {
	return listCmd("readers <field-name>", "List methods that read a field",
		func(e *impact.Engine, cmd *cobra.Command, name string) (*impact.MethodList, error) {
			return e.FieldReaders(cmd.Context(), name)
		})
}

func upstreamCmd() *cobra.Command {
	return listCmd("upstream <method-name>", "List transitive callers of every method with a name",
		func(e *impact.Engine, cmd *cobra.Command, name string) (*impact.MethodList, error) {
			return e.UpstreamCallers(cmd.Context(), name)
		})
}

func downstreamCmd() *cobra.Command {
	return listCmd("downstream <signature>", "List methods transitively called by a method",
		func(e *impact.Engine, cmd *cobra.Command, sig string) (*impact.MethodList, error) {
			return e.DownstreamCallees(cmd.Context(), sig)
		})
}
