package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ruleengine/pkg/cli"
	"mercator-hq/ruleengine/pkg/telemetry/health"
)

var doctorFlags struct {
	format  string
	timeout time.Duration
}

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that the configured store and registry are usable",
	Long: `Run health checks against the configured components and report the
result. The store check lists the stored rules; with the registry enabled,
the registry check loads every rule and fails if any could not be decoded.
With tracing enabled, pending spans are flushed to the collector.

Exits with status 1 if any check fails.

Examples:
  rulectl doctor
  rulectl doctor --format json --timeout 2s`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)

	doctorCmd.Flags().StringVar(&doctorFlags.format, "format", "text", "output format: text, json")
	doctorCmd.Flags().DurationVar(&doctorFlags.timeout, "timeout", 5*time.Second, "timeout for each check")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(doctorFlags.format)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		checker := health.New(doctorFlags.timeout)
		a.engine.RegisterHealthChecks(checker)
		if a.tracer.Enabled() {
			checker.Register("tracing", a.tracer.ForceFlush)
		}

		report := checker.Run(ctx)

		out := cmd.OutOrStdout()
		if format == cli.FormatJSON {
			encoder := json.NewEncoder(out)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(report); err != nil {
				return err
			}
		} else {
			outputDoctorText(out, a.cfg.Store.Backend, report)
		}

		if !report.Healthy() {
			return &cli.ExitError{Code: 1}
		}
		return nil
	})
}

func outputDoctorText(w io.Writer, backend string, report health.Report) {
	fmt.Fprintf(w, "Checking %s store...\n", backend)
	for _, c := range report.Checks {
		if c.Status == health.StatusOK {
			fmt.Fprintf(w, "✓ %s (%s)\n", c.Name, c.Duration.Round(time.Microsecond))
			continue
		}
		fmt.Fprintf(w, "✗ %s: %s\n", c.Name, c.Message)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Status: %s\n", report.Status)
}
