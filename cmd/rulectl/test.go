package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"mercator-hq/ruleengine/pkg/cli"
	"mercator-hq/ruleengine/pkg/rule/rulefile"
)

var testFlags struct {
	format  string
	verbose bool
}

var testCmd = &cobra.Command{
	Use:   "test <file>...",
	Short: "Run rule bundle tests",
	Long: `Execute the test cases of YAML rule bundles.

Each test evaluates one rule, or several combined with AND, against a
record and checks the result or the expected error.

Test Case Format (YAML):
  tests:
    - name: senior sales rep
      rule: senior-sales
      context: {age: 35, department: Sales}
      expect: true
    - name: both rules
      combine: [senior-sales, well-paid]
      context: {age: 40, department: Sales, salary: 55000}
      expect: true
    - name: no department
      rule: senior-sales
      context: {age: 40}
      expect_error: missing_field   # or type_mismatch

Examples:
  rulectl test rules.yaml
  rulectl test rules.yaml --format json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTests,
}

func init() {
	rootCmd.AddCommand(testCmd)

	testCmd.Flags().StringVar(&testFlags.format, "format", "text", "output format: text, json")
	testCmd.Flags().BoolVar(&testFlags.verbose, "show-passed", false, "list passing tests too")
}

// TestSummary is the JSON form of one bundle's test run.
type TestSummary struct {
	File    string       `json:"file"`
	Passed  int          `json:"passed"`
	Failed  int          `json:"failed"`
	Results []TestOutput `json:"results"`
}

// TestOutput is the JSON form of one test case.
type TestOutput struct {
	Name       string   `json:"name"`
	Rules      []string `json:"rules"`
	Passed     bool     `json:"passed"`
	Message    string   `json:"message,omitempty"`
	DurationMS float64  `json:"duration_ms"`
}

func runTests(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(testFlags.format)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loader := rulefile.NewLoader().WithParser(newParser(cfg))

	summaries := make([]TestSummary, 0, len(args))
	failed := 0
	for _, file := range args {
		bundle, err := loader.Load(file)
		if err != nil {
			return cli.NewCommandError("test", fmt.Errorf("failed to load %s: %w", file, err))
		}
		if len(bundle.Tests) == 0 {
			return cli.NewCommandError("test", fmt.Errorf("no test cases found in %s", file))
		}

		report := rulefile.RunTests(bundle)
		failed += report.Failed
		summaries = append(summaries, summarize(report))
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(summaries); err != nil {
			return err
		}
	} else {
		outputTestText(out, summaries)
	}

	if failed > 0 {
		return &cli.ExitError{Code: 1}
	}
	return nil
}

func summarize(report *rulefile.Report) TestSummary {
	s := TestSummary{
		File:    report.Source,
		Passed:  report.Passed,
		Failed:  report.Failed,
		Results: make([]TestOutput, 0, len(report.Results)),
	}
	for _, r := range report.Results {
		s.Results = append(s.Results, TestOutput{
			Name:       r.Case.Name,
			Rules:      r.Case.Rules,
			Passed:     r.Passed,
			Message:    r.Message,
			DurationMS: r.Duration.Seconds() * 1000,
		})
	}
	return s
}

func outputTestText(w io.Writer, summaries []TestSummary) {
	total, passed := 0, 0
	for _, s := range summaries {
		fmt.Fprintf(w, "Running tests in %s...\n", s.File)
		for _, r := range s.Results {
			switch {
			case !r.Passed:
				fmt.Fprintf(w, "✗ %s\n", r.Name)
				fmt.Fprintf(w, "  %s\n", r.Message)
			case testFlags.verbose:
				fmt.Fprintf(w, "✓ %s (%.3fms)\n", r.Name, r.DurationMS)
			}
		}
		total += s.Passed + s.Failed
		passed += s.Passed
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  %d tests run, %d passed, %d failed\n", total, passed, total-passed)
}

