package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"mercator-hq/ruleengine/pkg/cli"
	"mercator-hq/ruleengine/pkg/rule/ast"
	ruleErrors "mercator-hq/ruleengine/pkg/rule/errors"
	"mercator-hq/ruleengine/pkg/rule/rulefile"
)

var lintFlags struct {
	dir    string
	expr   string
	strict bool
	format string
}

var lintCmd = &cobra.Command{
	Use:   "lint [file]...",
	Short: "Validate rule bundles or rule text",
	Long: `Validate YAML rule bundles, or a single rule expression.

The lint command loads each bundle and reports every problem at once:
  - YAML syntax errors
  - Missing or duplicate rule names and expressions
  - Rule expression parse errors, with offsets
  - Tests referring to unknown rules

Warnings are reported for disabled rules and rules no test covers.

Examples:
  # Lint bundle files
  rulectl lint rules.yaml more-rules.yaml

  # Lint every bundle in a directory
  rulectl lint --dir rules/

  # Strict mode (warnings as errors)
  rulectl lint rules.yaml --strict

  # Check a single expression
  rulectl lint --expr "age > 30 AND department = 'Sales'"

  # JSON output for CI/CD
  rulectl lint rules.yaml --format json`,
	RunE: lintRules,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.dir, "dir", "d", "", "directory of bundle files")
	lintCmd.Flags().StringVarP(&lintFlags.expr, "expr", "e", "", "rule expression to check")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat warnings as errors")
	lintCmd.Flags().StringVar(&lintFlags.format, "format", "text", "output format: text, json")
}

// LintResult is the validation result for one bundle file or expression.
type LintResult struct {
	File     string      `json:"file"`
	Valid    bool        `json:"valid"`
	Rules    int         `json:"rules"`
	Tests    int         `json:"tests"`
	Errors   []LintIssue `json:"errors,omitempty"`
	Warnings []LintIssue `json:"warnings,omitempty"`
}

// LintIssue is a single error or warning.
type LintIssue struct {
	Line       int    `json:"line,omitempty"`
	Column     int    `json:"column,omitempty"`
	Offset     *int   `json:"offset,omitempty"`
	Rule       string `json:"rule,omitempty"`
	Message    string `json:"message"`
	Type       string `json:"type,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

func lintRules(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(lintFlags.format)
	if err != nil {
		return err
	}

	files := append([]string(nil), args...)
	if lintFlags.dir != "" {
		for _, pattern := range []string{"*.yaml", "*.yml"} {
			matches, err := filepath.Glob(filepath.Join(lintFlags.dir, pattern))
			if err != nil {
				return fmt.Errorf("failed to list bundle files: %w", err)
			}
			files = append(files, matches...)
		}
	}
	if len(files) == 0 && lintFlags.expr == "" {
		return errors.New("no input: give bundle files, --dir or --expr")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	loader := rulefile.NewLoader().WithParser(newParser(cfg))

	results := make([]LintResult, 0, len(files)+1)
	if lintFlags.expr != "" {
		results = append(results, lintExpression(cfg.Engine.MaxDepth, cfg.Engine.MaxRuleLength, lintFlags.expr))
	}
	for _, file := range files {
		results = append(results, lintBundle(loader, file))
	}

	out := cmd.OutOrStdout()
	if format == cli.FormatJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			return err
		}
		return lintOutcome(results, lintFlags.strict)
	}
	outputLintText(out, results, lintFlags.strict)
	return lintOutcome(results, lintFlags.strict)
}

func lintExpression(maxDepth, maxLength int, expr string) LintResult {
	result := LintResult{File: "<expr>", Valid: true, Rules: 1}
	p := newParserWith(maxDepth, maxLength)
	if _, err := p.Parse(expr); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, issueFromError(err))
	}
	return result
}

func lintBundle(loader *rulefile.Loader, path string) LintResult {
	result := LintResult{File: path, Valid: true}

	bundle, err := loader.Load(path)
	if err != nil {
		result.Valid = false
		var list *ruleErrors.ErrorList
		if errors.As(err, &list) {
			for _, e := range list.Errors {
				result.Errors = append(result.Errors, issueFromError(e))
			}
		} else {
			result.Errors = append(result.Errors, issueFromError(err))
		}
		return result
	}

	result.Rules = len(bundle.Rules)
	result.Tests = len(bundle.Tests)

	tested := make(map[string]bool)
	for _, tc := range bundle.Tests {
		for _, name := range tc.Rules {
			tested[name] = true
		}
	}
	for _, r := range bundle.Rules {
		if !r.Enabled {
			result.Warnings = append(result.Warnings, LintIssue{
				Line:    r.Location.Line,
				Column:  r.Location.Column,
				Rule:    r.Name,
				Message: "rule is disabled and will not be imported",
			})
		}
		if !tested[r.Name] {
			result.Warnings = append(result.Warnings, LintIssue{
				Line:    r.Location.Line,
				Column:  r.Location.Column,
				Rule:    r.Name,
				Message: fmt.Sprintf("no test covers this rule (fields: %v)", ast.Fields(r.Tree)),
			})
		}
	}
	return result
}

func issueFromError(err error) LintIssue {
	issue := LintIssue{Message: err.Error()}

	var bundleErr *ruleErrors.Error
	if errors.As(err, &bundleErr) {
		issue.Line = bundleErr.Location.Line
		issue.Column = bundleErr.Location.Column
		issue.Type = string(bundleErr.Type)
		issue.Suggestion = bundleErr.Suggestion
		issue.Message = bundleErr.Message
	}

	var pe *ruleErrors.ParseError
	if errors.As(err, &pe) {
		offset := pe.Position
		issue.Offset = &offset
		issue.Type = string(pe.Kind)
		issue.Suggestion = pe.Suggestion
		issue.Message = pe.Message
	}
	return issue
}

func outputLintText(w io.Writer, results []LintResult, strict bool) {
	totalErrors, totalWarnings := 0, 0

	for _, result := range results {
		fmt.Fprintf(w, "Validating %s...\n", result.File)

		if len(result.Errors) == 0 {
			fmt.Fprintf(w, "✓ %d rules, %d tests\n", result.Rules, result.Tests)
		}
		for _, issue := range result.Errors {
			fmt.Fprintf(w, "✗ Error: %s%s\n", issue.Message, issueLocation(issue))
			if issue.Suggestion != "" {
				fmt.Fprintf(w, "  suggestion: %s\n", issue.Suggestion)
			}
			totalErrors++
		}
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "⚠  Warning: %s: %s%s\n", warn.Rule, warn.Message, issueLocation(warn))
			totalWarnings++
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  %d error(s), %d warning(s)\n", totalErrors, totalWarnings)
	if strict && totalWarnings > 0 {
		fmt.Fprintln(w, "  Strict mode enabled: treating warnings as errors")
	}
}

func issueLocation(issue LintIssue) string {
	var loc string
	switch {
	case issue.Line > 0 && issue.Column > 0:
		loc = fmt.Sprintf("line %d, col %d", issue.Line, issue.Column)
	case issue.Line > 0:
		loc = fmt.Sprintf("line %d", issue.Line)
	}
	if issue.Offset != nil {
		if loc != "" {
			loc += ", "
		}
		loc += fmt.Sprintf("offset %d", *issue.Offset)
	}
	if loc == "" {
		return ""
	}
	return " (" + loc + ")"
}

func lintOutcome(results []LintResult, strict bool) error {
	for _, r := range results {
		if len(r.Errors) > 0 || (strict && len(r.Warnings) > 0) {
			return &cli.ExitError{Code: 1}
		}
	}
	return nil
}
