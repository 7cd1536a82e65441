package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"candela-hq/guardian/pkg/cli"
	"candela-hq/guardian/pkg/formats"
	"candela-hq/guardian/pkg/rules"
)

var lintFlags struct {
	text              string
	input             string
	requireConfidence bool
	requireUncertain  bool
	noMicroformats    bool
	strict            bool
	format            string
}

var lintCmd = &cobra.Command{
	Use:   "lint",
	Short: "Check the structure of an answer",
	Long: `Check an answer against the format rules: the confidence tag, the
[uncertain] tag, and the Premise/Inference, Related and First-principles
micro-formats when the answer uses their markers.

Format rules do not touch the ruleset or the audit log. The command exits
with status 3 on a violation, or on any finding with --strict.

Examples:
  guardian lint --input answer.md
  guardian lint --require-confidence --strict < answer.txt
  guardian lint --text "Premise: ...\nInference: ..." --format json`,
	Args: cobra.NoArgs,
	RunE: runLint,
}

func init() {
	rootCmd.AddCommand(lintCmd)

	lintCmd.Flags().StringVarP(&lintFlags.text, "text", "t", "", "text to lint")
	lintCmd.Flags().StringVarP(&lintFlags.input, "input", "i", "", "file to lint (default: stdin)")
	lintCmd.Flags().BoolVar(&lintFlags.requireConfidence, "require-confidence", false, "a missing confidence tag is a violation")
	lintCmd.Flags().BoolVar(&lintFlags.requireUncertain, "require-uncertain", false, "require an [uncertain] tag")
	lintCmd.Flags().BoolVar(&lintFlags.noMicroformats, "no-microformats", false, "skip the marker-triggered formats")
	lintCmd.Flags().BoolVar(&lintFlags.strict, "strict", false, "treat advisories as failures")
	lintCmd.Flags().StringVarP(&lintFlags.format, "format", "f", "text", "output format: text, json")
}

type lintView struct {
	Passed   bool              `json:"passed"`
	Findings []formats.Finding `json:"findings"`
}

func (v lintView) WriteText(w io.Writer, p *cli.Palette) error {
	fmt.Fprintln(w, p.Status(v.Passed))
	for _, f := range v.Findings {
		label := p.Warn("advisory")
		if f.Level == rules.LevelViolation {
			label = p.Fail("violation")
		}
		fmt.Fprintf(w, "  %-5s %-9s %s\n", f.Key, label, f.Message)
	}
	return nil
}

func runLint(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(lintFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return cli.NewConfigError("format", "lint supports text and json output")
	}

	text, err := readInput(cmd, lintFlags.text, lintFlags.input)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts := formats.Options{
		RequireConfidence: cfg.Lint.RequireConfidence || lintFlags.requireConfidence,
		RequireUncertain:  cfg.Lint.RequireUncertain || lintFlags.requireUncertain,
		Microformats:      cfg.Lint.Microformats && !lintFlags.noMicroformats,
	}

	findings := formats.Validate(text, opts)
	view := lintView{
		Passed:   formats.Passed(findings, lintFlags.strict),
		Findings: findings,
	}
	if view.Findings == nil {
		view.Findings = []formats.Finding{}
	}
	if err := cli.NewFormatter(format, cli.NewPalette(!noColor)).FormatTo(cmd.OutOrStdout(), view); err != nil {
		return err
	}
	if !view.Passed {
		return &cli.ExitError{Code: cli.ExitRejected, Reason: "format check failed"}
	}
	return nil
}
