package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"candela-hq/guardian/pkg/audit"
	"candela-hq/guardian/pkg/audit/index"
	"candela-hq/guardian/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Query, reindex and export the audit log",
	Long: `Work with the append-only audit log.

The log itself is the source of truth. The SQLite index is a derived view
used by "audit query"; rebuild it with "audit reindex" whenever it was
disabled while checks ran or the file was lost.`,
}

var auditQueryFlags struct {
	passed      bool
	failed      bool
	mode        string
	rulesetHash string
	textHash    string
	directive   int
	since       string
	until       string
	corrections bool
	limit       int
	offset      int
	format      string
}

var auditQueryCmd = &cobra.Command{
	Use:   "query",
	Short: "Filter audit entries through the index",
	Long: `Filter indexed audit entries. Filters combine with AND; times are RFC 3339.

Examples:
  guardian audit query --failed --directive 3
  guardian audit query --since 2026-01-01T00:00:00Z --mode strict --format csv
  guardian audit query --corrections`,
	Args: cobra.NoArgs,
	RunE: runAuditQuery,
}

var auditReindexFlags struct {
	quiet bool
}

var auditReindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the audit index from the log",
	Args:  cobra.NoArgs,
	RunE:  runAuditReindex,
}

var auditExportFlags struct {
	format string
	output string
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the audit log as JSON or CSV",
	Long: `Export every decodable audit entry. The CSV form flattens each verdict
into passed, score and violation columns.

Examples:
  guardian audit export --format csv -o audit.csv
  guardian audit export > audit.json`,
	Args: cobra.NoArgs,
	RunE: runAuditExport,
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditQueryCmd, auditReindexCmd, auditExportCmd)

	qf := auditQueryCmd.Flags()
	qf.BoolVar(&auditQueryFlags.passed, "passed", false, "only passing verdicts")
	qf.BoolVar(&auditQueryFlags.failed, "failed", false, "only failing verdicts")
	qf.StringVarP(&auditQueryFlags.mode, "mode", "m", "", "only entries checked in this mode")
	qf.StringVar(&auditQueryFlags.rulesetHash, "ruleset-hash", "", "only entries checked against this ruleset hash")
	qf.StringVar(&auditQueryFlags.textHash, "text-hash", "", "only entries for this text hash")
	qf.IntVarP(&auditQueryFlags.directive, "directive", "d", 0, "only entries violating this directive id")
	qf.StringVar(&auditQueryFlags.since, "since", "", "entries at or after this time (RFC 3339)")
	qf.StringVar(&auditQueryFlags.until, "until", "", "entries before this time (RFC 3339)")
	qf.BoolVar(&auditQueryFlags.corrections, "corrections", false, "only corrections written by background rechecks")
	qf.IntVar(&auditQueryFlags.limit, "limit", 100, "maximum number of rows")
	qf.IntVar(&auditQueryFlags.offset, "offset", 0, "rows to skip")
	qf.StringVarP(&auditQueryFlags.format, "format", "f", "text", "output format: text, json, csv")
	auditQueryCmd.MarkFlagsMutuallyExclusive("passed", "failed")

	auditReindexCmd.Flags().BoolVarP(&auditReindexFlags.quiet, "quiet", "q", false, "no progress bar")

	auditExportCmd.Flags().StringVarP(&auditExportFlags.format, "format", "f", "json", "export format: json, csv")
	auditExportCmd.Flags().StringVarP(&auditExportFlags.output, "output", "o", "", "output file (default: stdout)")
}

func parseTimeFlag(name, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return nil, cli.NewConfigError(name, fmt.Sprintf("invalid time %q: expected RFC 3339", value))
	}
	return &t, nil
}

func buildQuery() (*index.Query, error) {
	f := auditQueryFlags
	if f.limit <= 0 {
		return nil, cli.NewConfigError("limit", "must be positive")
	}
	if f.offset < 0 {
		return nil, cli.NewConfigError("offset", "must not be negative")
	}

	q := &index.Query{
		Mode:            f.mode,
		RulesetHash:     f.rulesetHash,
		TextHash:        f.textHash,
		DirectiveID:     f.directive,
		CorrectionsOnly: f.corrections,
		Limit:           f.limit,
		Offset:          f.offset,
	}
	switch {
	case f.passed:
		q.Passed = new(bool)
		*q.Passed = true
	case f.failed:
		q.Passed = new(bool)
	}

	var err error
	if q.Since, err = parseTimeFlag("since", f.since); err != nil {
		return nil, err
	}
	if q.Until, err = parseTimeFlag("until", f.until); err != nil {
		return nil, err
	}
	return q, nil
}

func runAuditQuery(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(auditQueryFlags.format)
	if err != nil {
		return err
	}
	q, err := buildQuery()
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.openIndex(); err != nil {
		return cli.NewCommandError("audit query", err)
	}
	rows, err := a.index.Query(cmd.Context(), q)
	if err != nil {
		return cli.NewCommandError("audit query", err)
	}
	if len(rows) == 0 && format == cli.FormatText {
		fmt.Fprintln(cmd.OutOrStdout(), "No matching entries.")
		return nil
	}
	return cli.NewFormatter(format, cli.NewPalette(!noColor)).FormatTo(cmd.OutOrStdout(), rowsView(rows))
}

func runAuditReindex(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.openIndex(); err != nil {
		return cli.NewCommandError("audit reindex", err)
	}

	var progress cli.ProgressReporter = cli.NopProgress{}
	if !auditReindexFlags.quiet {
		progress = cli.NewProgressReporter(cmd.ErrOrStderr(), "reindex", "entries")
	}
	n, err := a.index.Reindex(cmd.Context(), a.cfg.Audit.LogPath, progress)
	if err != nil {
		return cli.NewCommandError("audit reindex", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d entries from %s\n", n, a.cfg.Audit.LogPath)
	return nil
}

func runAuditExport(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var exporter audit.Exporter
	switch auditExportFlags.format {
	case "json":
		exporter = &audit.JSONExporter{Pretty: a.cfg.Audit.Export.JSONPretty}
	case "csv":
		exporter = &audit.CSVExporter{IncludeHeader: a.cfg.Audit.Export.CSVIncludeHeader}
	default:
		return cli.NewConfigError("format", fmt.Sprintf("unsupported export format %q (valid: json, csv)", auditExportFlags.format))
	}

	skipped := 0
	entries, err := audit.ReadEntries(a.cfg.Audit.LogPath, func(line int, err error) {
		skipped++
		a.logger.Warn("skipping undecodable audit line", "line", line, "error", err)
	})
	if err != nil {
		return cli.NewCommandError("audit export", err)
	}

	var w io.Writer = cmd.OutOrStdout()
	if auditExportFlags.output != "" {
		f, err := os.Create(auditExportFlags.output)
		if err != nil {
			return cli.NewCommandError("audit export", err)
		}
		defer f.Close()
		w = f
	}

	if err := exporter.Export(cmd.Context(), entries, w); err != nil {
		return cli.NewCommandError("audit export", err)
	}
	a.logger.Info("audit log exported",
		"entries", len(entries)-skipped,
		"skipped", skipped,
		"format", auditExportFlags.format,
	)
	return nil
}
