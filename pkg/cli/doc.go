/*
Package cli holds the pieces shared by guardian's commands: output
formatting, exit codes, progress bars and signal handling.

Output Formatting:

Commands render their results in text, JSON or CSV:

	format, err := cli.ParseOutputFormat(flagValue)
	if err != nil {
		return err
	}
	formatter := cli.NewFormatter(format, cli.NewPalette(true))
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Text output uses the result's WriteText method when it has one, a table
when it is Tabular, and %v otherwise. CSV requires a Tabular result.

Exit Codes:

Commands return errors and leave exiting to main:

	os.Exit(cli.ExitCode(err))

A rejected verdict is reported with an *ExitError carrying ExitRejected.
A *ConfigError maps to ExitUsage and anything else to ExitFailure.

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()
*/
package cli
