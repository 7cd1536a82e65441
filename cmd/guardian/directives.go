package main

import (
	"github.com/spf13/cobra"

	"candela-hq/guardian/pkg/cli"
	"candela-hq/guardian/pkg/ruleset"
)

var directivesFlags struct {
	ruleset string
	format  string
}

var directivesCmd = &cobra.Command{
	Use:   "directives",
	Short: "List the directives of a ruleset",
	Long: `Print the directive inventory of a ruleset: its hash, tier counts, the
number of machine-checkable directives, and one row per directive.

Examples:
  guardian directives
  guardian directives --ruleset baseline --format csv > directives.csv`,
	Args: cobra.NoArgs,
	RunE: runDirectives,
}

func init() {
	rootCmd.AddCommand(directivesCmd)

	directivesCmd.Flags().StringVarP(&directivesFlags.ruleset, "ruleset", "r", "", "ruleset file or built-in name (default: from config)")
	directivesCmd.Flags().StringVarP(&directivesFlags.format, "format", "f", "text", "output format: text, json, csv")
}

func runDirectives(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(directivesFlags.format)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.loadRuleset(directivesFlags.ruleset); err != nil {
		return cli.NewCommandError("directives", err)
	}

	report := ruleset.NewReport(a.provider.Current())
	var out any = reportView{report}
	if format == cli.FormatJSON {
		out = report
	}
	return cli.NewFormatter(format, cli.NewPalette(!noColor)).FormatTo(cmd.OutOrStdout(), out)
}
