/*
Package cli provides command-line interface utilities for the guardrails
command.

Output Formatting:

Results can be rendered as text, JSON or CSV. Values that implement Table
are column aligned in text output and written row by row as CSV:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, rules); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Exit Codes:

Commands return an *ExitError to end with a specific status without
printing an error, and main uses ExitCode to pick the status.
*/
package cli
