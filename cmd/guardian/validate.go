package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"candela-hq/guardian/pkg/cli"
	"candela-hq/guardian/pkg/guard"
)

var validateFlags struct {
	text     string
	input    string
	mode     string
	allModes bool
	ruleset  string
	format   string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check a text against the ruleset",
	Long: `Check a text against the directive ruleset and record the verdict in
the audit log.

The text is taken from --text, from the file given with --input, or from
standard input. The command exits with status 3 when a verdict fails.

Examples:
  # Check a literal text
  guardian validate --text "Contact me at jane@example.com"

  # Check a file in every mode
  guardian validate --input answer.md --all-modes

  # Use another ruleset and print JSON
  guardian validate --ruleset privacy_strict --format json < answer.txt`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringVarP(&validateFlags.text, "text", "t", "", "text to check")
	validateCmd.Flags().StringVarP(&validateFlags.input, "input", "i", "", "file to check (default: stdin)")
	validateCmd.Flags().StringVarP(&validateFlags.mode, "mode", "m", "", "strict, sync_light or regex_only (default: from config)")
	validateCmd.Flags().BoolVar(&validateFlags.allModes, "all-modes", false, "check in strict, sync_light and regex_only")
	validateCmd.Flags().StringVarP(&validateFlags.ruleset, "ruleset", "r", "", "ruleset file or built-in name (default: from config)")
	validateCmd.Flags().StringVarP(&validateFlags.format, "format", "f", "text", "output format: text, json")
}

// readInput returns the text from --text, the --input file, or stdin.
func readInput(cmd *cobra.Command, text, input string) (string, error) {
	switch {
	case text != "" && input != "":
		return "", cli.NewConfigError("input", "--text and --input are mutually exclusive")
	case cmd.Flags().Changed("text"):
		return text, nil
	case input != "":
		data, err := os.ReadFile(input)
		if err != nil {
			return "", fmt.Errorf("read input: %w", err)
		}
		return string(data), nil
	default:
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(validateFlags.format)
	if err != nil {
		return err
	}
	if format == cli.FormatCSV {
		return cli.NewConfigError("format", "validate supports text and json output")
	}
	if validateFlags.allModes && validateFlags.mode != "" {
		return cli.NewConfigError("mode", "--mode and --all-modes are mutually exclusive")
	}

	text, err := readInput(cmd, validateFlags.text, validateFlags.input)
	if err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	modes := guard.Modes
	if !validateFlags.allModes {
		mode, err := a.configuredMode(validateFlags.mode)
		if err != nil {
			return err
		}
		modes = []guard.Mode{mode}
	}

	if err := a.loadRuleset(validateFlags.ruleset); err != nil {
		return cli.NewCommandError("validate", err)
	}
	if err := a.openAudit(); err != nil {
		return cli.NewCommandError("validate", err)
	}

	var results checkResults
	for _, mode := range modes {
		res, err := checkOnce(cmd, a, mode, text)
		if err != nil {
			return cli.NewCommandError("validate", err)
		}
		results = append(results, res)
	}

	var out any = results
	if len(results) == 1 && format == cli.FormatJSON {
		out = results[0]
	}
	if err := cli.NewFormatter(format, cli.NewPalette(!noColor)).FormatTo(cmd.OutOrStdout(), out); err != nil {
		return err
	}

	if !results.passed() {
		return &cli.ExitError{Code: cli.ExitRejected, Reason: "verdict failed"}
	}
	return nil
}

// checkOnce runs one check with a dedicated runtime. Closing the runtime
// waits for a queued sync_light recheck, so its correction is in the log
// before the command returns.
func checkOnce(cmd *cobra.Command, a *app, mode guard.Mode, text string) (checkResult, error) {
	rt, err := a.newRuntime(mode)
	if err != nil {
		return checkResult{}, err
	}
	defer rt.Close()

	v, info, err := rt.CheckWithInfo(cmd.Context(), text)
	if err != nil {
		return checkResult{}, err
	}
	return checkResult{
		Mode:    mode,
		Cached:  info.Cached,
		Line:    info.Line,
		EntryID: info.EntryID,
		Verdict: v,
	}, nil
}
