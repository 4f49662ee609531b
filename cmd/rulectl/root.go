package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/ruleengine/pkg/cli"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "rulectl",
	Short: "Compile, store and evaluate business rules",
	Long: `rulectl compiles textual business rules into predicate trees, stores
them in a file, SQLite or in-memory backend, and evaluates them against
JSON records.

Rules combine field comparisons with AND, OR and NOT:

  age > 30 AND department == 'Sales'
  NOT contractor == true OR salary >= 50000.0

NOT binds tighter than AND, which binds tighter than OR.

Configuration is read from --config (YAML) and RULES_* environment
variables; without a file the defaults apply.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(cli.ExitCode(err))
	}
}

func init() {
	// Global persistent flags (available to all subcommands)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default: built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
}
