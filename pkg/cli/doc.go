/*
Package cli provides command-line helpers for the trafficdump command.

Output Formatting:

Commands that print tables (catalog list) support text, JSON and CSV:

	formatter := cli.NewFormatter(cli.FormatCSV)
	if err := formatter.FormatTo(os.Stdout, table); err != nil {
		return err
	}

Progress Reporting:

Verifying a whole log directory reports progress on stderr:

	progress := cli.NewProgress(os.Stderr)
	progress.Start(int64(len(files)))
	for _, f := range files {
		progress.Advance(verify(f) != nil)
	}
	progress.Finish()

Errors:

ExitCode maps command errors to exit codes: 2 for configuration
errors, 3 when replay files fail verification, 1 otherwise.
*/
package cli
