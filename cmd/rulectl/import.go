package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/ruleengine/pkg/cli"
	"mercator-hq/ruleengine/pkg/rule/rulefile"
)

var importFlags struct {
	skipTests bool
	disabled  bool
	progress  bool
}

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Store every rule of YAML bundles",
	Long: `Load YAML rule bundles, run their tests and save each enabled rule
in the configured store under its bundle name.

Nothing is stored when a bundle fails to load or a test fails, unless
--skip-tests is given.

Examples:
  rulectl import rules.yaml
  rulectl import rules/*.yaml --include-disabled`,
	Args: cobra.MinimumNArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().BoolVar(&importFlags.skipTests, "skip-tests", false, "import without running bundle tests")
	importCmd.Flags().BoolVar(&importFlags.disabled, "include-disabled", false, "also import disabled rules")
	importCmd.Flags().BoolVar(&importFlags.progress, "progress", false, "show a progress bar")
}

func runImport(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, a *app) error {
		loader := rulefile.NewLoader().WithParser(newParser(a.cfg))

		var bundles []*rulefile.Bundle
		total := 0
		for _, file := range args {
			bundle, err := loader.Load(file)
			if err != nil {
				return cli.NewCommandError("import", fmt.Errorf("failed to load %s: %w", file, err))
			}
			if !importFlags.skipTests {
				if report := rulefile.RunTests(bundle); !report.OK() {
					return cli.NewCommandError("import",
						fmt.Errorf("%s: %d of %d tests failed (run rulectl test %s)", file, report.Failed, len(report.Results), file))
				}
			}
			bundles = append(bundles, bundle)
			total += len(bundle.Rules)
		}

		return importBundles(ctx, cmd, a, bundles, total)
	})
}

func importBundles(ctx context.Context, cmd *cobra.Command, a *app, bundles []*rulefile.Bundle, total int) error {
	var progress cli.ProgressReporter
	if importFlags.progress {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "rules")
		progress.Start(int64(total))
	}

	out := cmd.OutOrStdout()
	done, saved, skipped := 0, 0, 0
	for _, bundle := range bundles {
		for _, r := range bundle.Rules {
			done++
			if !r.Enabled && !importFlags.disabled {
				skipped++
				continue
			}
			if _, err := a.engine.Define(ctx, r.Name, r.Expression); err != nil {
				if progress != nil {
					progress.Error(err)
				}
				return cli.NewCommandError("import", fmt.Errorf("rule %s (%s): %w", r.Name, r.Location, err))
			}
			saved++
			if progress != nil {
				progress.Update(int64(done))
			} else {
				fmt.Fprintf(out, "✓ %s\n", r.Name)
			}
		}
	}
	if progress != nil {
		progress.Finish()
	}

	fmt.Fprintf(out, "Imported %d rules (%d disabled skipped)\n", saved, skipped)
	return nil
}
