package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"candela-hq/guardian/pkg/cli"
	"candela-hq/guardian/pkg/guard"
	"candela-hq/guardian/pkg/latency"
)

var benchFlags struct {
	iterations  int
	concurrency int
	mode        string
	allModes    bool
	input       string
	cached      bool
	ruleset     string
	progress    bool
	format      string
}

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure check latency and throughput in-process",
	Long: `Run concurrent checks against the ruleset and report throughput and
latency percentiles per runtime mode.

Checks are written to a throwaway audit log in a temporary directory, so
the configured audit log, latency log and index are never touched.

By default every check uses a distinct text, so each one misses the cache.
With --cached the sample texts repeat and later checks are cache hits.

Examples:
  guardian bench
  guardian bench --all-modes --iterations 1000 --concurrency 16
  guardian bench --input samples.txt --cached --format json`,
	Args: cobra.NoArgs,
	RunE: runBench,
}

func init() {
	rootCmd.AddCommand(benchCmd)

	benchCmd.Flags().IntVarP(&benchFlags.iterations, "iterations", "n", 200, "checks per mode")
	benchCmd.Flags().IntVarP(&benchFlags.concurrency, "concurrency", "c", 4, "concurrent checks")
	benchCmd.Flags().StringVarP(&benchFlags.mode, "mode", "m", "", "runtime mode (default: configured mode)")
	benchCmd.Flags().BoolVar(&benchFlags.allModes, "all-modes", false, "benchmark every runtime mode")
	benchCmd.Flags().StringVarP(&benchFlags.input, "input", "i", "", "file of sample texts, one per line")
	benchCmd.Flags().BoolVar(&benchFlags.cached, "cached", false, "repeat sample texts so later checks hit the cache")
	benchCmd.Flags().StringVarP(&benchFlags.ruleset, "ruleset", "r", "", "ruleset file or built-in name (default: configured)")
	benchCmd.Flags().BoolVar(&benchFlags.progress, "progress", false, "draw a progress bar on stderr")
	benchCmd.Flags().StringVarP(&benchFlags.format, "format", "f", "text", "output format: text, json, csv")
}

var benchSamples = []string{
	"The capital of France is Paris.\nConfidence: High",
	"Water boils at 100 degrees Celsius at sea level.\nConfidence: High",
	"Premise: All prime numbers above 2 are odd.\nInference: 7 is odd.\nConfidence: Medium",
	"I am not sure about the exact figure. [uncertain]\nConfidence: Low",
	"Related: memoization\nBoth trade memory for repeated work.\nUse it when inputs repeat.\nConfidence: High",
	"The meeting was moved to Thursday afternoon.",
}

// benchResult is the outcome of one mode's run. Latencies are wall times
// measured around each check, in milliseconds.
type benchResult struct {
	Mode       string  `json:"mode"`
	Checks     int     `json:"checks"`
	Passed     int     `json:"passed"`
	Rejected   int     `json:"rejected"`
	CacheHits  int     `json:"cache_hits"`
	ElapsedMS  float64 `json:"elapsed_ms"`
	Throughput float64 `json:"checks_per_second"`
	P50        float64 `json:"p50_ms"`
	P95        float64 `json:"p95_ms"`
	P99        float64 `json:"p99_ms"`
	Max        float64 `json:"max_ms"`
}

type benchView struct {
	Iterations  int           `json:"iterations"`
	Concurrency int           `json:"concurrency"`
	Cached      bool          `json:"cached"`
	RulesetHash string        `json:"ruleset_hash"`
	Results     []benchResult `json:"results"`
}

func (v benchView) WriteText(w io.Writer, p *cli.Palette) error {
	fmt.Fprintf(w, "%d checks per mode, concurrency %d", v.Iterations, v.Concurrency)
	if v.Cached {
		fmt.Fprint(w, ", cached")
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, p.Dim("ruleset "+v.RulesetHash))
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%-11s %9s %7s %9s %9s %9s %9s %9s\n",
		"MODE", "CHECKS/S", "HITS", "P50 ms", "P95 ms", "P99 ms", "MAX ms", "REJECTED")
	for _, r := range v.Results {
		fmt.Fprintf(w, "%-11s %9.0f %7d %9.3f %9.3f %9.3f %9.3f %9d\n",
			r.Mode, r.Throughput, r.CacheHits, r.P50, r.P95, r.P99, r.Max, r.Rejected)
	}
	return nil
}

func (v benchView) Header() []string {
	return []string{"mode", "checks", "passed", "rejected", "cache_hits", "elapsed_ms",
		"checks_per_second", "p50_ms", "p95_ms", "p99_ms", "max_ms"}
}

func (v benchView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Results))
	for _, r := range v.Results {
		rows = append(rows, []string{
			r.Mode,
			strconv.Itoa(r.Checks),
			strconv.Itoa(r.Passed),
			strconv.Itoa(r.Rejected),
			strconv.Itoa(r.CacheHits),
			fmtFloat(r.ElapsedMS),
			fmtFloat(r.Throughput),
			fmtFloat(r.P50),
			fmtFloat(r.P95),
			fmtFloat(r.P99),
			fmtFloat(r.Max),
		})
	}
	return rows
}

func fmtFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

func runBench(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(benchFlags.format)
	if err != nil {
		return err
	}
	if benchFlags.iterations < 1 {
		return cli.NewConfigError("iterations", "at least one iteration is required")
	}
	if benchFlags.concurrency < 1 {
		return cli.NewConfigError("concurrency", "concurrency must be at least 1")
	}
	if benchFlags.allModes && benchFlags.mode != "" {
		return cli.NewConfigError("mode", "--mode and --all-modes are mutually exclusive")
	}

	samples := benchSamples
	if benchFlags.input != "" {
		samples, err = readSamples(benchFlags.input)
		if err != nil {
			return cli.NewCommandError("bench", err)
		}
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	var modes []guard.Mode
	if benchFlags.allModes {
		modes = guard.Modes
	} else {
		mode, err := a.configuredMode(benchFlags.mode)
		if err != nil {
			return err
		}
		modes = []guard.Mode{mode}
	}

	dir, err := os.MkdirTemp("", "guardian-bench-*")
	if err != nil {
		return cli.NewCommandError("bench", err)
	}
	defer os.RemoveAll(dir)
	a.cfg.Audit.LogPath = filepath.Join(dir, "audit.jsonl")
	a.cfg.Audit.LatencyLogPath = filepath.Join(dir, "latency.jsonl")
	a.cfg.Audit.Index.Enabled = false

	if err := a.loadRuleset(benchFlags.ruleset); err != nil {
		return cli.NewCommandError("bench", err)
	}
	if err := a.openAudit(); err != nil {
		return cli.NewCommandError("bench", err)
	}

	view := benchView{
		Iterations:  benchFlags.iterations,
		Concurrency: benchFlags.concurrency,
		Cached:      benchFlags.cached,
		RulesetHash: a.provider.Current().Hash,
	}
	for _, mode := range modes {
		var progress cli.ProgressReporter = cli.NopProgress{}
		if benchFlags.progress {
			progress = cli.NewProgressReporter(cmd.ErrOrStderr(), string(mode), "checks")
		}
		res, err := benchMode(cmd, a, mode, samples, progress)
		if err != nil {
			return cli.NewCommandError("bench", fmt.Errorf("%s: %w", mode, err))
		}
		a.logger.Debug("bench mode finished", "mode", mode, "checks", res.Checks, "elapsed_ms", res.ElapsedMS)
		view.Results = append(view.Results, res)
	}

	return cli.NewFormatter(format, cli.NewPalette(!noColor)).FormatTo(cmd.OutOrStdout(), view)
}

func benchMode(cmd *cobra.Command, a *app, mode guard.Mode, samples []string, progress cli.ProgressReporter) (benchResult, error) {
	rt, err := a.newRuntime(mode)
	if err != nil {
		return benchResult{}, err
	}
	defer rt.Close()

	n := benchFlags.iterations
	durations := make([]float64, n)
	var passed, hits atomic.Int64

	progress.Start(int64(n))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(benchFlags.concurrency)

	start := time.Now()
	for i := range n {
		text := samples[i%len(samples)]
		if !benchFlags.cached {
			text = fmt.Sprintf("%s\n[bench %s #%d]", text, mode, i)
		}
		g.Go(func() error {
			t0 := time.Now()
			v, info, err := rt.CheckWithInfo(ctx, text)
			if err != nil {
				return err
			}
			durations[i] = float64(time.Since(t0).Microseconds()) / 1000
			if v.Passed {
				passed.Add(1)
			}
			if info.Cached {
				hits.Add(1)
			}
			progress.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return benchResult{}, err
	}
	elapsed := time.Since(start)
	progress.Finish()

	sort.Float64s(durations)
	res := benchResult{
		Mode:      string(mode),
		Checks:    n,
		Passed:    int(passed.Load()),
		Rejected:  n - int(passed.Load()),
		CacheHits: int(hits.Load()),
		ElapsedMS: float64(elapsed.Microseconds()) / 1000,
		P50:       latency.Percentile(durations, 0.50),
		P95:       latency.Percentile(durations, 0.95),
		P99:       latency.Percentile(durations, 0.99),
		Max:       durations[n-1],
	}
	if s := elapsed.Seconds(); s > 0 {
		res.Throughput = float64(n) / s
	}
	return res, nil
}

// readSamples reads one sample text per non-blank line. A literal \n in a
// line becomes a newline so that multi-line answers fit on one line.
func readSamples(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var samples []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		samples = append(samples, strings.ReplaceAll(line, `\n`, "\n"))
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(samples) == 0 {
		return nil, fmt.Errorf("%s: no sample texts", path)
	}
	return samples, nil
}
