package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"mercator-hq/ruleengine/pkg/cli"
	"mercator-hq/ruleengine/pkg/engine"
	"mercator-hq/ruleengine/pkg/rule/eval"
)

var saveFlags struct {
	file string
}

var saveCmd = &cobra.Command{
	Use:   "save <name> [rule]",
	Short: "Parse a rule and store it under a name",
	Long: `Parse rule text, encode it and save it in the configured store,
replacing any rule stored under the same name.

Examples:
  rulectl save senior-sales "age > 30 AND department == 'Sales'"
  rulectl save senior-sales --file senior-sales.rule`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSave,
}

var showCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a stored rule",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			rule, err := a.engine.Get(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), rule)
			return nil
		})
	},
}

var evalFlags struct {
	data     string
	dataFile string
	text     string
	explain  bool
}

var evalCmd = &cobra.Command{
	Use:   "eval [name]",
	Short: "Evaluate a rule against a JSON record",
	Long: `Load a stored rule, decode it and evaluate it against a record.
Prints true or false.

The record is a flat JSON object given with --data or --data-file.
Use --text to evaluate rule text directly without storing it.

Examples:
  rulectl eval senior-sales --data '{"age": 35, "department": "Sales"}'
  rulectl eval senior-sales --data-file employee.json --explain
  rulectl eval --text "salary > 50000" --data '{"salary": 60000}'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEval,
}

var combineCmd = &cobra.Command{
	Use:   "combine <target> <name>...",
	Short: "AND stored rules together into a new rule",
	Long: `Load the named rules, join them with AND from left to right and
store the result under target. With one source the rule is copied.

Example:
  rulectl combine senior-well-paid senior-sales well-paid`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			rule, err := a.engine.Combine(ctx, args[0], args[1:]...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s = %s\n", args[0], rule)
			return nil
		})
	},
}

var listFlags struct {
	format string
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored rules",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var deleteCmd = &cobra.Command{
	Use:     "delete <name>...",
	Aliases: []string{"rm"},
	Short:   "Delete stored rules",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(ctx context.Context, a *app) error {
			for _, name := range args {
				if err := a.engine.Delete(ctx, name); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ deleted %s\n", name)
			}
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(saveCmd, showCmd, evalCmd, combineCmd, listCmd, deleteCmd)

	saveCmd.Flags().StringVarP(&saveFlags.file, "file", "f", "", "read rule text from file (- for stdin)")

	evalCmd.Flags().StringVarP(&evalFlags.data, "data", "d", "", "record as a JSON object")
	evalCmd.Flags().StringVar(&evalFlags.dataFile, "data-file", "", "file holding the record as a JSON object")
	evalCmd.Flags().StringVarP(&evalFlags.text, "text", "t", "", "evaluate rule text instead of a stored rule")
	evalCmd.Flags().BoolVar(&evalFlags.explain, "explain", false, "print each comparison performed")

	listCmd.Flags().StringVar(&listFlags.format, "format", "text", "output format: text, json, csv")
}

func runSave(cmd *cobra.Command, args []string) error {
	name := args[0]
	text, err := ruleText(cmd, args[1:], saveFlags.file)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		rule, err := a.engine.Define(ctx, name, text)
		if err != nil {
			return describeParseError(err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ saved %s: %s\n", name, rule)
		return nil
	})
}

func runEval(cmd *cobra.Command, args []string) error {
	if (len(args) == 0) == (evalFlags.text == "") {
		return errors.New("give either a rule name or --text")
	}
	record, err := readRecord(evalFlags.data, evalFlags.dataFile)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		var (
			res *engine.Result
			err error
		)
		switch {
		case evalFlags.text != "":
			res, err = a.engine.EvaluateText(ctx, evalFlags.text, record)
		case evalFlags.explain:
			res, err = a.engine.Explain(ctx, args[0], record)
		default:
			res, err = a.engine.Evaluate(ctx, args[0], record)
		}
		if err != nil {
			return describeParseError(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, res.Matched)
		if evalFlags.explain && res.Trace != nil {
			for _, step := range res.Trace.Steps {
				fmt.Fprintf(out, "  %s %s %s: actual %s → %t\n",
					step.Field, step.Comparator, step.Literal, step.Actual, step.Result)
			}
			if res.Trace.ShortCircuits > 0 {
				fmt.Fprintf(out, "  short-circuited %d subtrees (%d operands skipped)\n",
					res.Trace.ShortCircuits, res.Trace.SkippedOperands)
			}
		}
		return nil
	})
}

// readRecord parses the record from --data or --data-file.
func readRecord(data, file string) (eval.Context, error) {
	switch {
	case data != "" && file != "":
		return nil, errors.New("use --data or --data-file, not both")
	case file != "":
		raw, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read record: %w", err)
		}
		return eval.ParseContextJSON(raw)
	case data != "":
		return eval.ParseContextJSON([]byte(data))
	}
	return eval.Context{}, nil
}

func runList(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseFormat(listFlags.format)
	if err != nil {
		return err
	}

	return withApp(cmd, func(ctx context.Context, a *app) error {
		records, err := a.engine.List(ctx)
		if err != nil {
			return err
		}

		table := &cli.Table{Headers: []string{"name", "id", "size", "checksum", "updated"}}
		for _, rec := range records {
			table.AddRow(
				rec.Name,
				rec.ID,
				strconv.Itoa(rec.Size),
				rec.Checksum[:12],
				rec.UpdatedAt.Format(time.RFC3339),
			)
		}
		return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), table)
	})
}
