package main

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"candela-hq/guardian/pkg/anchor"
	"candela-hq/guardian/pkg/audit/index"
	"candela-hq/guardian/pkg/cli"
	"candela-hq/guardian/pkg/guard"
	"candela-hq/guardian/pkg/integrity"
	"candela-hq/guardian/pkg/latency"
	"candela-hq/guardian/pkg/rules"
	"candela-hq/guardian/pkg/ruleset"
)

// checkResult is one verdict as printed by validate.
type checkResult struct {
	Mode    guard.Mode     `json:"mode"`
	Cached  bool           `json:"cached"`
	Line    int            `json:"audit_line,omitempty"`
	EntryID string         `json:"entry_id,omitempty"`
	Verdict *guard.Verdict `json:"verdict"`
}

type checkResults []checkResult

func (rs checkResults) WriteText(w io.Writer, p *cli.Palette) error {
	for i, r := range rs {
		if i > 0 {
			fmt.Fprintln(w)
		}
		v := r.Verdict
		fmt.Fprintf(w, "[%s] %s  score=%.2f  time=%.1fms", r.Mode, p.Status(v.Passed), v.Score, v.WallTimeMS)
		if r.Cached {
			fmt.Fprint(w, p.Dim("  (cached)"))
		} else if r.Line > 0 {
			fmt.Fprint(w, p.Dim(fmt.Sprintf("  audit line %d", r.Line)))
		}
		fmt.Fprintln(w)

		for _, f := range v.Findings {
			label := p.Warn("advisory")
			if f.Level == rules.LevelViolation {
				label = p.Fail("violation")
			}
			title := f.Title
			if title == "" {
				title = "directive " + strconv.Itoa(f.DirectiveID)
			}
			fmt.Fprintf(w, "  #%-3d %-9s %s: %s\n", f.DirectiveID, label, title, f.Message)
		}
		for _, n := range v.Notes {
			fmt.Fprintf(w, "  note: %s\n", n)
		}
	}
	return nil
}

// passed reports whether every verdict passed.
func (rs checkResults) passed() bool {
	for _, r := range rs {
		if !r.Verdict.Passed {
			return false
		}
	}
	return true
}

// anchorView prints an anchoring pass.
type anchorView struct {
	*anchor.Result
}

func (v anchorView) WriteText(w io.Writer, p *cli.Palette) error {
	switch {
	case v.Lines == 0:
		fmt.Fprintln(w, "Nothing to anchor: every audit line is already anchored.")
	case v.DryRun:
		fmt.Fprintf(w, "%s lines %d-%d (%d lines)\n", p.Warn("DRY RUN"), v.StartLine, v.EndLine, v.Lines)
		fmt.Fprintf(w, "  root: %s\n", v.Root)
	default:
		fmt.Fprintf(w, "%s lines %d-%d (%d lines)\n", p.Pass("ANCHORED"), v.StartLine, v.EndLine, v.Lines)
		fmt.Fprintf(w, "  root:    %s\n", v.Root)
		if v.Record != nil {
			fmt.Fprintf(w, "  receipt: %s\n", v.Record.Receipt)
			fmt.Fprintf(w, "  sink:    %s\n", v.Record.Sink)
		}
	}
	return nil
}

// rulesetAnchorView prints a ruleset anchoring.
type rulesetAnchorView struct {
	Record *anchor.LedgerRecord `json:"record"`
	DryRun bool                 `json:"dry_run"`
}

func (v rulesetAnchorView) WriteText(w io.Writer, p *cli.Palette) error {
	status := p.Pass("ANCHORED")
	if v.DryRun {
		status = p.Warn("DRY RUN")
	}
	fmt.Fprintf(w, "%s ruleset %s\n", status, v.Record.RulesetName)
	fmt.Fprintf(w, "  hash:    %s\n", v.Record.Root)
	if v.Record.Receipt != "" {
		fmt.Fprintf(w, "  receipt: %s\n", v.Record.Receipt)
	}
	return nil
}

// proofView prints an inclusion proof.
type proofView struct {
	*anchor.InclusionProof
}

func (v proofView) WriteText(w io.Writer, p *cli.Palette) error {
	fmt.Fprintf(w, "Entry #%d:\n%s\n\n", v.Line, v.Entry)
	fmt.Fprintf(w, "Leaf:        %s\n", v.Leaf)
	fmt.Fprintf(w, "Merkle root: %s\n", v.Root)
	fmt.Fprintln(w, "Proof (sibling, position):")
	for _, s := range v.Steps {
		fmt.Fprintf(w, "  %s %s\n", s.Sibling, s.Direction)
	}
	fmt.Fprintln(w)

	if !v.Anchored {
		fmt.Fprintln(w, p.Warn("Not anchored yet.")+" The root covers the pending lines and is what the next pass would submit.")
		return nil
	}
	fmt.Fprintf(w, "Batch:   lines %d-%d, anchored %s\n", v.Batch.StartLine, v.Batch.EndLine, v.Batch.AnchoredAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Receipt: %s\n", v.Batch.Receipt)
	if v.Verified {
		fmt.Fprintln(w, p.Pass("VERIFIED")+" recomputed root matches the anchored root")
	} else {
		fmt.Fprintln(w, p.Fail("MISMATCH")+" recomputed root differs from the anchored root "+v.Batch.Root)
	}
	return nil
}

// integrityView prints an integrity check.
type integrityView struct {
	*integrity.Result
}

func (v integrityView) WriteText(w io.Writer, p *cli.Palette) error {
	var status string
	switch v.Status {
	case integrity.StatusMatch:
		status = p.Pass("MATCH")
	case integrity.StatusMismatch:
		status = p.Fail("MISMATCH")
	default:
		status = p.Warn("UNRECORDED")
	}
	fmt.Fprintf(w, "%s ruleset %s\n", status, v.RulesetName)
	if v.Path != "" {
		fmt.Fprintf(w, "  path:     %s\n", v.Path)
	}
	fmt.Fprintf(w, "  live:     %s\n", v.LiveHash)
	if v.RecordedHash != "" {
		fmt.Fprintf(w, "  recorded: %s\n", v.RecordedHash)
	}
	if v.RecordedAt != nil {
		fmt.Fprintf(w, "  at:       %s\n", v.RecordedAt.Format(time.RFC3339))
	}
	if v.Receipt != "" {
		fmt.Fprintf(w, "  receipt:  %s\n", v.Receipt)
	}
	if v.HistoricalMatch {
		fmt.Fprintln(w, "  an older anchored version has this hash: the ruleset was rolled back")
	}
	return nil
}

// reportView prints the directive inventory.
type reportView struct {
	*ruleset.Report
}

func (v reportView) Header() []string {
	return []string{"id", "tier", "title", "checks"}
}

func (v reportView) Rows() [][]string {
	rows := make([][]string, 0, len(v.Report.Rows))
	for _, r := range v.Report.Rows {
		rows = append(rows, []string{strconv.Itoa(r.ID), string(r.Tier), r.Title, strings.Join(r.Checks, " ")})
	}
	return rows
}

func (v reportView) WriteText(w io.Writer, p *cli.Palette) error {
	name := v.Name
	if name == "" {
		name = v.Origin
	}
	fmt.Fprintf(w, "Ruleset %s", name)
	if v.Version != "" {
		fmt.Fprintf(w, " v%s", v.Version)
	}
	fmt.Fprintf(w, "\n  hash: %s\n", v.Hash)
	fmt.Fprintf(w, "  directives: %d (%d unique ids)\n", v.Total, len(v.UniqueIDs))
	fmt.Fprintf(w, "  tiers: BLOCK=%d WARN=%d\n", v.ByTier[ruleset.TierBlock], v.ByTier[ruleset.TierWarn])
	fmt.Fprintf(w, "  machine-checkable: %d, not checkable: %d", v.Checkable, v.NotCheckable)
	if v.UnknownChecks > 0 {
		fmt.Fprintf(w, ", %s", p.Warn(fmt.Sprintf("unknown check kinds: %d", v.UnknownChecks)))
	}
	fmt.Fprintln(w)

	kinds := make([]string, 0, len(v.ChecksByKind))
	for k := range v.ChecksByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(w, "    %-18s %d\n", k, v.ChecksByKind[k])
	}
	fmt.Fprintln(w)

	return (&cli.TextFormatter{Palette: p}).FormatTo(w, tableOnly{v})
}

// tableOnly hides a TextWriter so that its Tabular side is rendered.
type tableOnly struct {
	cli.Tabular
}

// statsView prints latency percentiles and anchoring progress.
type statsView struct {
	AuditLines    int                   `json:"audit_lines"`
	AnchoredLines int                   `json:"anchored_lines"`
	Pending       int                   `json:"pending_lines"`
	Records       int                   `json:"latency_records"`
	Skipped       int                   `json:"latency_skipped"`
	Modes         []latency.ModeSummary `json:"modes"`
}

func (v statsView) Header() []string {
	return []string{"mode", "checks", "cache_hit_rate", "fast_p50_ms", "fast_p95_ms", "fast_max_ms", "sem_p50_ms", "sem_p95_ms"}
}

func (v statsView) Rows() [][]string {
	ms := func(f float64) string { return strconv.FormatFloat(f, 'f', 2, 64) }
	rows := make([][]string, 0, len(v.Modes))
	for _, m := range v.Modes {
		semP50, semP95 := "-", "-"
		if m.Semantic != nil {
			semP50, semP95 = ms(m.Semantic.P50), ms(m.Semantic.P95)
		}
		rows = append(rows, []string{
			m.Mode, strconv.Itoa(m.Checks), strconv.FormatFloat(m.HitRate(), 'f', 2, 64),
			ms(m.Fast.P50), ms(m.Fast.P95), ms(m.Fast.Max), semP50, semP95,
		})
	}
	return rows
}

func (v statsView) WriteText(w io.Writer, p *cli.Palette) error {
	fmt.Fprintf(w, "Audit log: %d lines, %d anchored, %d pending\n", v.AuditLines, v.AnchoredLines, v.Pending)
	fmt.Fprintf(w, "Latency log: %d records", v.Records)
	if v.Skipped > 0 {
		fmt.Fprintf(w, " (%s)", p.Warn(fmt.Sprintf("%d unreadable lines skipped", v.Skipped)))
	}
	fmt.Fprintln(w)
	if len(v.Modes) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	return (&cli.TextFormatter{Palette: p}).FormatTo(w, tableOnly{v})
}

// rowsView prints audit index query results.
type rowsView []*index.Row

func (v rowsView) Header() []string {
	return []string{"line", "ts", "mode", "passed", "score", "violations", "text_hash", "correction_of"}
}

func (v rowsView) Rows() [][]string {
	rows := make([][]string, 0, len(v))
	for _, r := range v {
		ids := make([]string, len(r.Violations))
		for i, id := range r.Violations {
			ids[i] = strconv.Itoa(id)
		}
		rows = append(rows, []string{
			strconv.Itoa(r.Line),
			r.Timestamp.UTC().Format(time.RFC3339),
			r.Mode,
			strconv.FormatBool(r.Passed),
			strconv.FormatFloat(r.Score, 'f', 2, 64),
			strings.Join(ids, " "),
			r.TextHash,
			r.CorrectionOf,
		})
	}
	return rows
}
