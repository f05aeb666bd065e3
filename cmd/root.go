package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/felipestanzani/beyondsight/internal/config"
	"github.com/felipestanzani/beyondsight/internal/logging"
)

var (
	DbPath     string
	ConfigFile string
	LogLevel   string

	cfg    *config.Config
	logger *slog.Logger
)

// NewRootCmd builds the beyondsight command tree
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "beyondsight",
		Short: "Code reference graph and change impact analysis",
		Long: `beyondsight indexes Go and Java projects into a reference graph of
files, types, fields and methods, and answers change impact questions:
what is affected if this field, method or class changes.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setup(cmd)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&DbPath, "db", "d", ".beyondsight.db", "database file path")
	rootCmd.PersistentFlags().StringVarP(&ConfigFile, "config", "c", "", "config file (default .beyondsight.yaml in the working directory or $HOME)")
	rootCmd.PersistentFlags().StringVar(&LogLevel, "log-level", "info", "log level: debug, info, warn, error")

	RegisterCommands(rootCmd)
	return rootCmd
}

// RegisterCommands adds all subcommands to the root command
func RegisterCommands(rootCmd *cobra.Command) {
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(fieldCmd())
	rootCmd.AddCommand(methodCmd())
	rootCmd.AddCommand(classCmd())
	rootCmd.AddCommand(writersCmd())
	rootCmd.AddCommand(readersCmd())
	rootCmd.AddCommand(upstreamCmd())
	rootCmd.AddCommand(downstreamCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(mcpCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(riskCmd())
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

// setup loads configuration and builds the logger. Explicit flags win over
// the config file and environment.
func setup(cmd *cobra.Command) error {
	c, err := config.Load(ConfigFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		c.Database.Path = DbPath
	}
	if flags.Changed("log-level") {
		c.Logging.Level = LogLevel
	}

	l, err := logging.New(os.Stderr, c.Logging.Level, c.Logging.Format)
	if err != nil {
		return err
	}
	slog.SetDefault(l)

	cfg, logger = c, l
	return nil
}
