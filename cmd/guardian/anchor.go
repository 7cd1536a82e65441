package main

import (
	"github.com/spf13/cobra"

	"candela-hq/guardian/pkg/anchor"
	"candela-hq/guardian/pkg/cli"
	"candela-hq/guardian/pkg/integrity"
)

var anchorFlags struct {
	dryRun  bool
	ruleset bool
	format  string
}

var anchorCmd = &cobra.Command{
	Use:   "anchor",
	Short: "Anchor the Merkle root of pending audit lines",
	Long: `Compute the Merkle root of every audit line written since the last
anchored batch, submit it to the configured sink, and record the receipt
in the anchor ledger.

With --ruleset the canonical hash of the configured ruleset is anchored
instead, which later lets 'guardian integrity' detect edits to it.

Examples:
  # Show the root that would be submitted
  guardian anchor --dry-run

  # Anchor pending output lines
  guardian anchor

  # Record the current ruleset hash
  guardian anchor --ruleset`,
	Args: cobra.NoArgs,
	RunE: runAnchor,
}

func init() {
	rootCmd.AddCommand(anchorCmd)

	anchorCmd.Flags().BoolVar(&anchorFlags.dryRun, "dry-run", false, "compute the root without submitting or recording it")
	anchorCmd.Flags().BoolVar(&anchorFlags.ruleset, "ruleset", false, "anchor the ruleset hash instead of audit lines")
	anchorCmd.Flags().StringVarP(&anchorFlags.format, "format", "f", "text", "output format: text, json")
}

func runAnchor(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(anchorFlags.format)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if !anchorFlags.dryRun && a.cfg.Anchor.Sink.URL == "" {
		return cli.NewConfigError("anchor.sink.url", "a sink URL is required unless --dry-run is given")
	}
	if err := a.openAnchorer(); err != nil {
		return cli.NewCommandError("anchor", err)
	}

	var out any
	if anchorFlags.ruleset {
		if err := a.loadRuleset(""); err != nil {
			return cli.NewCommandError("anchor", err)
		}
		rs := a.provider.Current()
		rec, err := a.anchorer.AnchorRuleset(cmd.Context(), integrity.Name(rs), rs.Hash, anchorFlags.dryRun)
		if err != nil {
			return cli.NewCommandError("anchor", err)
		}
		out = rulesetAnchorView{Record: rec, DryRun: anchorFlags.dryRun}
	} else {
		res, err := a.anchorer.Run(cmd.Context(), anchor.RunOptions{DryRun: anchorFlags.dryRun})
		if err != nil {
			return cli.NewCommandError("anchor", err)
		}
		out = anchorView{res}
	}

	return cli.NewFormatter(format, cli.NewPalette(!noColor)).FormatTo(cmd.OutOrStdout(), out)
}
