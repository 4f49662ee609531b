/*
Package cli provides command-line helpers for rulectl.

Output Formatting:

Commands print results as text, JSON or CSV. Tabular results use Table:

	table := &cli.Table{Headers: []string{"name", "size"}}
	table.AddRow("senior-sales", "142")
	if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, table); err != nil {
		return err
	}

Progress Reporting:

For long-running operations such as bundle imports and benchmarks:

	progress := cli.NewProgressReporter(os.Stderr, "evals")
	progress.Start(total)
	for i := 0; i < total; i++ {
		// Do work
		progress.Update(int64(i + 1))
	}
	progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Exit Codes:

Commands that have already reported a failure return an *ExitError;
ExitCode maps any error to the process exit status.
*/
package cli
