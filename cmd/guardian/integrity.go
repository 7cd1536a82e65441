package main

import (
	"github.com/spf13/cobra"

	"candela-hq/guardian/pkg/cli"
	"candela-hq/guardian/pkg/integrity"
)

var integrityFlags struct {
	ruleset string
	format  string
}

var integrityCmd = &cobra.Command{
	Use:   "integrity",
	Short: "Compare the ruleset hash with the anchored one",
	Long: `Recompute the canonical hash of the ruleset and compare it with the latest
hash anchored under the same name.

The command exits with status 3 on a mismatch. A ruleset that was never
anchored is reported as unrecorded and does not fail the command; anchor
it with "guardian anchor --ruleset".

Examples:
  guardian integrity
  guardian integrity --ruleset rulesets/custom.yaml --format json`,
	Args: cobra.NoArgs,
	RunE: runIntegrity,
}

func init() {
	rootCmd.AddCommand(integrityCmd)

	integrityCmd.Flags().StringVarP(&integrityFlags.ruleset, "ruleset", "r", "", "ruleset file or built-in name (default: from config)")
	integrityCmd.Flags().StringVarP(&integrityFlags.format, "format", "f", "text", "output format: text, json")
}

func runIntegrity(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(integrityFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return cli.NewConfigError("format", "integrity supports text and json output")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.loadRuleset(integrityFlags.ruleset); err != nil {
		return cli.NewCommandError("integrity", err)
	}
	if err := a.openAnchorer(); err != nil {
		return cli.NewCommandError("integrity", err)
	}

	// A file is re-read from disk so the hash reflects what is there now.
	var res *integrity.Result
	if a.source != nil {
		res, err = integrity.Check(cmd.Context(), a.source.Path(), a.anchorer)
		if err != nil {
			return cli.NewCommandError("integrity", err)
		}
	} else {
		records, err := a.ledger(cmd.Context())
		if err != nil {
			return cli.NewCommandError("integrity", err)
		}
		res = integrity.Compare(a.provider.Current(), records)
	}

	if err := cli.NewFormatter(format, cli.NewPalette(!noColor)).FormatTo(cmd.OutOrStdout(), integrityView{res}); err != nil {
		return err
	}
	switch res.Status {
	case integrity.StatusMismatch:
		return &cli.ExitError{Code: cli.ExitRejected, Reason: "ruleset hash mismatch"}
	case integrity.StatusUnrecorded:
		a.logger.Warn("ruleset has never been anchored", "ruleset", res.RulesetName)
	}
	return nil
}
