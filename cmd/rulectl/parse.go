package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"mercator-hq/ruleengine/pkg/config"
	"mercator-hq/ruleengine/pkg/rule/ast"
	"mercator-hq/ruleengine/pkg/rule/codec"
	ruleErrors "mercator-hq/ruleengine/pkg/rule/errors"
	"mercator-hq/ruleengine/pkg/rule/parser"
)

var parseFlags struct {
	file   string
	output string
}

var parseCmd = &cobra.Command{
	Use:   "parse [rule]",
	Short: "Parse a rule and print its tree",
	Long: `Parse rule text without storing it.

Output modes:
  tree      indented operator/operand tree (default)
  text      canonical rule text
  encoding  the JSON encoding that would be stored

Parse errors are reported with the offending position marked.

Examples:
  rulectl parse "age > 30 AND department == 'Sales'"
  rulectl parse --output encoding --file rule.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)

	parseCmd.Flags().StringVarP(&parseFlags.file, "file", "f", "", "read rule text from file (- for stdin)")
	parseCmd.Flags().StringVarP(&parseFlags.output, "output", "o", "tree", "output mode: tree, text, encoding")
}

func runParse(cmd *cobra.Command, args []string) error {
	text, err := ruleText(cmd, args, parseFlags.file)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	rule, err := newParser(cfg).Parse(text)
	if err != nil {
		return describeParseError(err)
	}

	out := cmd.OutOrStdout()
	switch parseFlags.output {
	case "tree":
		printTree(out, rule, "")
	case "text":
		fmt.Fprintln(out, rule)
	case "encoding":
		enc, err := codec.Serialize(rule)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, enc)
	default:
		return fmt.Errorf("unknown output mode %q (valid: tree, text, encoding)", parseFlags.output)
	}
	return nil
}

func newParser(cfg *config.Config) *parser.Parser {
	return newParserWith(cfg.Engine.MaxDepth, cfg.Engine.MaxRuleLength)
}

func newParserWith(maxDepth, maxLength int) *parser.Parser {
	return parser.NewParser().WithMaxDepth(maxDepth).WithMaxLength(maxLength)
}

// ruleText returns the rule from the positional argument or --file.
func ruleText(cmd *cobra.Command, args []string, file string) (string, error) {
	switch {
	case len(args) > 0 && file != "":
		return "", errors.New("give the rule as an argument or with --file, not both")
	case len(args) > 0:
		return args[0], nil
	case file == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read rule file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", errors.New("no rule given: pass rule text as an argument or use --file")
}

// detailedParseError prints a parse error with its source line and caret.
type detailedParseError struct {
	err *ruleErrors.ParseError
}

func (e *detailedParseError) Error() string {
	return strings.TrimRight(e.err.Detailed(), "\n")
}

func (e *detailedParseError) Unwrap() error {
	return e.err
}

func describeParseError(err error) error {
	var pe *ruleErrors.ParseError
	if errors.As(err, &pe) {
		return &detailedParseError{err: pe}
	}
	return err
}

// printTree writes one node per line, children indented.
func printTree(w io.Writer, n *ast.Node, indent string) {
	if n.IsOperand() {
		fmt.Fprintf(w, "%s%s %s %s (%s)\n", indent, n.Field(), n.Comparator(), n.Value(), n.Value().Type())
		return
	}
	fmt.Fprintf(w, "%s%s\n", indent, n.Op())
	for _, child := range n.Children() {
		printTree(w, child, indent+"  ")
	}
}
