package main

import (
	"github.com/spf13/cobra"

	"candela-hq/guardian/pkg/audit"
	"candela-hq/guardian/pkg/cli"
	"candela-hq/guardian/pkg/latency"
)

var statsFlags struct {
	format string
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarize check latency and anchoring progress",
	Long: `Print per-mode latency percentiles from the latency log, the cache hit
rate, and how many audit lines are anchored or pending.

Examples:
  guardian stats
  guardian stats --format csv`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVarP(&statsFlags.format, "format", "f", "text", "output format: text, json, csv")
}

func runStats(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(statsFlags.format)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	records, skipped, err := latency.ReadRecords(a.cfg.Audit.LatencyLogPath)
	if err != nil {
		return cli.NewCommandError("stats", err)
	}
	lines, err := audit.ReadLines(a.cfg.Audit.LogPath)
	if err != nil {
		return cli.NewCommandError("stats", err)
	}
	if err := a.openAnchorer(); err != nil {
		return cli.NewCommandError("stats", err)
	}
	state, err := a.anchorer.State(cmd.Context())
	if err != nil {
		return cli.NewCommandError("stats", err)
	}

	view := statsView{
		AuditLines:    len(lines),
		AnchoredLines: state.AnchoredLines,
		Pending:       max(len(lines)-state.AnchoredLines, 0),
		Records:       len(records),
		Skipped:       skipped,
		Modes:         latency.Summarize(records),
	}
	return cli.NewFormatter(format, cli.NewPalette(!noColor)).FormatTo(cmd.OutOrStdout(), view)
}
