package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"candela-hq/guardian/pkg/audit"
	"candela-hq/guardian/pkg/canonical"
	"candela-hq/guardian/pkg/cli"
)

const (
	ssnText   = "My SSN is 123-45-6789."
	cleanText = "Guardian checks model output.\nConfidence: High"
)

type workspace struct {
	dir    string
	config string
}

func (w *workspace) path(name string) string {
	return filepath.Join(w.dir, name)
}

// newWorkspace writes a config whose files all live in a temp dir. extra is
// appended to the anchor section.
func newWorkspace(t *testing.T, rulesetRef, sinkURL string) *workspace {
	t.Helper()
	dir := t.TempDir()
	w := &workspace{dir: dir, config: filepath.Join(dir, "guardian.yaml")}

	if rulesetRef == "" {
		rulesetRef = "baseline"
	}
	cfg := fmt.Sprintf(`ruleset:
  path: %q
  watch: false
runtime:
  mode: regex_only
semantic:
  enabled: false
audit:
  log_path: %q
  latency_log_path: %q
  index:
    enabled: true
    path: %q
anchor:
  backend: file
  state_path: %q
  ledger_path: %q
  sink:
    url: %q
telemetry:
  logging:
    level: error
`, rulesetRef,
		w.path("output_log.jsonl"),
		w.path("latency_log.jsonl"),
		w.path("audit_index.db"),
		w.path("anchor_state.json"),
		w.path("anchor_ledger.jsonl"),
		sinkURL,
	)
	if err := os.WriteFile(w.config, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return w
}

// appendConfig adds YAML sections to w's config file.
func (w *workspace) appendConfig(t *testing.T, yaml string) {
	t.Helper()
	f, err := os.OpenFile(w.config, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if _, err := f.WriteString(yaml); err != nil {
		t.Fatal(err)
	}
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// run executes the root command with args against w's config and returns
// what it wrote to stdout.
func (w *workspace) run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetArgs(append([]string{"--config", w.config, "--no-color"}, args...))
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	defer func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (w *workspace) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := w.run(t, "", args...)
	if err != nil {
		t.Fatalf("guardian %s: %v\n%s", strings.Join(args, " "), err, out)
	}
	return out
}

// newSink serves anchor_submitRoot with increasing receipts.
func newSink(t *testing.T) *httptest.Server {
	t.Helper()
	n := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Method string   `json:"method"`
			Params []string `json:"params"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Method != "anchor_submitRoot" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		n++
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"receipt":"0xreceipt%d"}}`, n)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestValidate(t *testing.T) {
	w := newWorkspace(t, "", "")

	out, err := w.run(t, "", "validate", "--text", ssnText)
	if code := cli.ExitCode(err); code != cli.ExitRejected {
		t.Fatalf("exit code = %d (err %v), want %d", code, err, cli.ExitRejected)
	}
	if !strings.Contains(out, "FAIL") || !strings.Contains(out, "#3") {
		t.Errorf("output should report the SSN violation:\n%s", out)
	}
	if !strings.Contains(out, "audit line 1") {
		t.Errorf("output should name the audit line:\n%s", out)
	}

	out = w.mustRun(t, "validate", "--text", cleanText)
	if !strings.Contains(out, "PASS") {
		t.Errorf("clean text should pass:\n%s", out)
	}

	lines, err := audit.ReadLines(w.path("output_log.jsonl"))
	if err != nil {
		t.Fatalf("ReadLines() error = %v", err)
	}
	if len(lines) != 2 {
		t.Errorf("audit log has %d lines, want 2", len(lines))
	}
}

func TestValidate_JSONAndStdin(t *testing.T) {
	w := newWorkspace(t, "", "")

	out, err := w.run(t, ssnText, "validate", "--format", "json")
	if cli.ExitCode(err) != cli.ExitRejected {
		t.Fatalf("exit code = %d, want %d", cli.ExitCode(err), cli.ExitRejected)
	}

	var res struct {
		Mode    string `json:"mode"`
		Line    int    `json:"audit_line"`
		Verdict struct {
			Passed     bool  `json:"passed"`
			Violations []int `json:"violations"`
		} `json:"verdict"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("output is not a single JSON object: %v\n%s", err, out)
	}
	if res.Mode != "regex_only" || res.Line != 1 || res.Verdict.Passed {
		t.Errorf("unexpected result %+v", res)
	}
	if len(res.Verdict.Violations) != 1 || res.Verdict.Violations[0] != 3 {
		t.Errorf("violations = %v, want [3]", res.Verdict.Violations)
	}
}

func TestValidate_AllModes(t *testing.T) {
	w := newWorkspace(t, "", "")

	out := w.mustRun(t, "validate", "--all-modes", "--text", cleanText)
	for _, mode := range []string{"[strict]", "[sync_light]", "[regex_only]"} {
		if !strings.Contains(out, mode) {
			t.Errorf("output missing %s:\n%s", mode, out)
		}
	}
}

func TestValidate_UsageErrors(t *testing.T) {
	w := newWorkspace(t, "", "")

	tests := []struct {
		name string
		args []string
	}{
		{"csv output", []string{"validate", "--text", "x", "--format", "csv"}},
		{"unknown format", []string{"validate", "--text", "x", "--format", "xml"}},
		{"unknown mode", []string{"validate", "--text", "x", "--mode", "fast"}},
		{"mode with all modes", []string{"validate", "--text", "x", "--mode", "strict", "--all-modes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.run(t, "", tt.args...)
			if code := cli.ExitCode(err); code != cli.ExitUsage {
				t.Errorf("exit code = %d (err %v), want %d", code, err, cli.ExitUsage)
			}
		})
	}
}

func TestAnchor_DryRunNeedsNoSink(t *testing.T) {
	w := newWorkspace(t, "", "")
	w.mustRun(t, "validate", "--text", cleanText)
	w.run(t, "", "validate", "--text", ssnText)

	out := w.mustRun(t, "anchor", "--dry-run")
	if !strings.Contains(out, "DRY RUN lines 1-2") {
		t.Errorf("unexpected dry run output:\n%s", out)
	}
	if _, err := os.Stat(w.path("anchor_ledger.jsonl")); err == nil {
		t.Error("dry run must not write the ledger")
	}

	_, err := w.run(t, "", "anchor")
	if code := cli.ExitCode(err); code != cli.ExitUsage {
		t.Errorf("anchor without sink: exit code = %d, want %d", code, cli.ExitUsage)
	}
}

func TestAnchorAndVerify(t *testing.T) {
	sink := newSink(t)
	w := newWorkspace(t, "", sink.URL)

	w.mustRun(t, "validate", "--text", cleanText)
	w.run(t, "", "validate", "--text", ssnText)

	out := w.mustRun(t, "anchor")
	if !strings.Contains(out, "ANCHORED lines 1-2") || !strings.Contains(out, "0xreceipt1") {
		t.Fatalf("unexpected anchor output:\n%s", out)
	}

	out = w.mustRun(t, "anchor")
	if !strings.Contains(out, "Nothing to anchor") {
		t.Errorf("second pass should find nothing:\n%s", out)
	}

	out = w.mustRun(t, "verify", "--line", "2")
	if !strings.Contains(out, "VERIFIED") {
		t.Errorf("anchored line should verify:\n%s", out)
	}

	out = w.mustRun(t, "verify", "--hash", canonical.HashString(ssnText), "--format", "json")
	var proof struct {
		Line     int  `json:"line"`
		Anchored bool `json:"anchored"`
		Verified bool `json:"verified"`
	}
	if err := json.Unmarshal([]byte(out), &proof); err != nil {
		t.Fatalf("decode proof: %v\n%s", err, out)
	}
	if proof.Line != 2 || !proof.Anchored || !proof.Verified {
		t.Errorf("unexpected proof %+v", proof)
	}

	w.mustRun(t, "validate", "--text", "one more line\nConfidence: Low")
	out = w.mustRun(t, "verify", "--line", "3")
	if !strings.Contains(out, "Not anchored yet") {
		t.Errorf("pending line should say so:\n%s", out)
	}

	// Rewrite the first entry's text hash in place.
	logPath := w.path("output_log.jsonl")
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatal(err)
	}
	tampered := strings.Replace(string(data), canonical.HashString(cleanText), canonical.HashString("edited"), 1)
	if err := os.WriteFile(logPath, []byte(tampered), 0o644); err != nil {
		t.Fatal(err)
	}

	out, err = w.run(t, "", "verify", "--line", "1")
	if code := cli.ExitCode(err); code != cli.ExitRejected {
		t.Fatalf("tampered line: exit code = %d (err %v), want %d", code, err, cli.ExitRejected)
	}
	if !strings.Contains(out, "MISMATCH") {
		t.Errorf("tampered line should report a mismatch:\n%s", out)
	}
}

func TestVerify_Errors(t *testing.T) {
	w := newWorkspace(t, "", "")

	if _, err := w.run(t, "", "verify", "--line", "1"); cli.ExitCode(err) != cli.ExitFailure {
		t.Errorf("empty log: exit code = %d, want %d", cli.ExitCode(err), cli.ExitFailure)
	}

	w.mustRun(t, "validate", "--text", cleanText)
	if _, err := w.run(t, "", "verify", "--line", "5"); cli.ExitCode(err) != cli.ExitUsage {
		t.Errorf("line out of range: exit code = %d, want %d", cli.ExitCode(err), cli.ExitUsage)
	}
	if _, err := w.run(t, "", "verify", "--hash", "feed"); cli.ExitCode(err) != cli.ExitFailure {
		t.Errorf("unknown hash: exit code = %d, want %d", cli.ExitCode(err), cli.ExitFailure)
	}
	if _, err := w.run(t, "", "verify"); err == nil {
		t.Error("verify without --line or --hash should fail")
	}
}

func TestIntegrity_BuiltinRuleset(t *testing.T) {
	sink := newSink(t)
	w := newWorkspace(t, "", sink.URL)

	out := w.mustRun(t, "integrity")
	if !strings.Contains(out, "UNRECORDED ruleset baseline") {
		t.Errorf("never anchored ruleset should be unrecorded:\n%s", out)
	}

	w.mustRun(t, "anchor", "--ruleset")
	out = w.mustRun(t, "integrity")
	if !strings.Contains(out, "MATCH ruleset baseline") {
		t.Errorf("anchored ruleset should match:\n%s", out)
	}
}

func TestIntegrity_EditedFile(t *testing.T) {
	sink := newSink(t)
	dir := t.TempDir()
	rulesetPath := filepath.Join(dir, "custom.json")
	doc := `{"name": "custom", "directives": [{"id": 1, "title": "No SSN", "tier": "BLOCK",
		"checks": [{"type": "regex_forbid", "patterns": {"ssn": "\\b\\d{3}-\\d{2}-\\d{4}\\b"}}]}]}`
	if err := os.WriteFile(rulesetPath, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	w := newWorkspace(t, rulesetPath, sink.URL)

	out := w.mustRun(t, "anchor", "--ruleset")
	if !strings.Contains(out, "ANCHORED ruleset custom") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	w.mustRun(t, "integrity")

	edited := strings.Replace(doc, `"No SSN"`, `"No SSNs"`, 1)
	if err := os.WriteFile(rulesetPath, []byte(edited), 0o644); err != nil {
		t.Fatal(err)
	}
	out, err := w.run(t, "", "integrity", "--format", "json")
	if code := cli.ExitCode(err); code != cli.ExitRejected {
		t.Fatalf("exit code = %d (err %v), want %d", code, err, cli.ExitRejected)
	}
	var res struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil || res.Status != "mismatch" {
		t.Errorf("status = %q (err %v), want mismatch", res.Status, err)
	}
}

func TestDirectives(t *testing.T) {
	w := newWorkspace(t, "", "")

	out := w.mustRun(t, "directives", "--format", "csv")
	rows := strings.Split(strings.TrimSpace(out), "\n")
	if rows[0] != "id,tier,title,checks" {
		t.Errorf("header = %q", rows[0])
	}
	if len(rows) != 13 {
		t.Errorf("got %d rows, want header plus 12 directives", len(rows))
	}

	out = w.mustRun(t, "directives")
	if !strings.Contains(out, "Ruleset baseline vE1.0") {
		t.Errorf("text output should name the ruleset:\n%s", out)
	}

	out = w.mustRun(t, "directives", "--ruleset", "privacy_strict", "--format", "json")
	if !json.Valid([]byte(out)) {
		t.Errorf("json output is not valid JSON:\n%s", out)
	}
}

func TestStats(t *testing.T) {
	w := newWorkspace(t, "", "")
	w.mustRun(t, "validate", "--text", cleanText)
	w.mustRun(t, "validate", "--text", cleanText)

	out := w.mustRun(t, "stats", "--format", "json")
	var stats struct {
		AuditLines int `json:"audit_lines"`
		Pending    int `json:"pending_lines"`
		Records    int `json:"latency_records"`
		Modes      []struct {
			Mode      string `json:"mode"`
			Checks    int    `json:"checks"`
			CacheHits int    `json:"cache_hits"`
		} `json:"modes"`
	}
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v\n%s", err, out)
	}
	if stats.AuditLines != 2 || stats.Pending != 2 {
		t.Errorf("audit lines = %d, pending = %d, want 2 and 2", stats.AuditLines, stats.Pending)
	}
	if len(stats.Modes) != 1 || stats.Modes[0].Mode != "regex_only" || stats.Modes[0].Checks != 2 {
		t.Errorf("unexpected modes %+v", stats.Modes)
	}
}

func TestAudit(t *testing.T) {
	w := newWorkspace(t, "", "")
	w.mustRun(t, "validate", "--text", cleanText)
	w.run(t, "", "validate", "--text", ssnText)

	out := w.mustRun(t, "audit", "query", "--failed", "--format", "json")
	var rows []struct {
		Line       int   `json:"line"`
		Passed     bool  `json:"passed"`
		Violations []int `json:"violations"`
	}
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode rows: %v\n%s", err, out)
	}
	if len(rows) != 1 || rows[0].Line != 2 || rows[0].Passed {
		t.Errorf("unexpected rows %+v", rows)
	}

	out = w.mustRun(t, "audit", "query", "--directive", "9")
	if !strings.Contains(out, "No matching entries") {
		t.Errorf("expected no rows:\n%s", out)
	}

	if _, err := w.run(t, "", "audit", "query", "--since", "yesterday"); cli.ExitCode(err) != cli.ExitUsage {
		t.Errorf("bad --since: exit code = %d, want %d", cli.ExitCode(err), cli.ExitUsage)
	}

	out = w.mustRun(t, "audit", "reindex", "--quiet")
	if !strings.Contains(out, "Indexed 2 entries") {
		t.Errorf("unexpected reindex output:\n%s", out)
	}

	csvPath := filepath.Join(w.dir, "export.csv")
	w.mustRun(t, "audit", "export", "--format", "csv", "--output", csvPath)
	data, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 || !strings.HasPrefix(lines[0], "line,id,ts") {
		t.Errorf("unexpected export:\n%s", data)
	}

	out = w.mustRun(t, "audit", "export")
	var entries []map[string]any
	if err := json.Unmarshal([]byte(out), &entries); err != nil || len(entries) != 2 {
		t.Errorf("json export: %d entries (err %v)", len(entries), err)
	}
}

func TestVersionCommand(t *testing.T) {
	w := newWorkspace(t, "", "")
	out := w.mustRun(t, "version")
	if !strings.Contains(out, "Guardian "+Version) {
		t.Errorf("unexpected version output:\n%s", out)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"validate", "anchor", "verify", "integrity", "directives", "stats", "audit", "serve", "lint", "bench", "keys", "certs", "version", "completion"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("command %q not registered", name)
		}
	}
}

func TestKeysGenerate(t *testing.T) {
	w := newWorkspace(t, "", "")

	out := w.mustRun(t, "keys", "generate", "--name", "ci", "--format", "json")
	var v keyView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if v.Name != "ci" || !strings.HasPrefix(v.Key, apiKeyPrefix) || len(v.Key) < 40 {
		t.Errorf("unexpected key view %+v", v)
	}

	again := w.mustRun(t, "keys", "generate", "--name", "ci", "--format", "json")
	if again == out {
		t.Error("two generated keys are identical")
	}

	for _, args := range [][]string{
		{"keys", "generate", "--name", "Bad Name"},
		{"keys", "generate", "--bytes", "8"},
		{"keys", "generate", "--format", "csv"},
	} {
		if _, err := w.run(t, "", args...); cli.ExitCode(err) != cli.ExitUsage {
			t.Errorf("%v: exit code = %d, want %d (%v)", args, cli.ExitCode(err), cli.ExitUsage, err)
		}
	}
}

func TestKeysGenerate_SecretsDirFeedsConfig(t *testing.T) {
	w := newWorkspace(t, "", "")
	secretsDir := w.path("secrets")
	w.appendConfig(t, fmt.Sprintf(`server:
  auth:
    enabled: true
    keys:
      - name: ci
        key: "${secret:guardian-ci}"
secrets:
  dir: %q
`, secretsDir))

	// The reference cannot be resolved before the secrets dir exists.
	if _, err := w.run(t, "", "stats"); cli.ExitCode(err) != cli.ExitUsage {
		t.Fatalf("stats with missing secrets dir: exit %d (%v)", cli.ExitCode(err), err)
	}

	out := w.mustRun(t, "keys", "generate", "--name", "guardian-ci", "--secrets-dir", secretsDir)
	if !strings.Contains(out, "${secret:guardian-ci}") {
		t.Errorf("output should print the reference:\n%s", out)
	}
	if strings.Contains(out, apiKeyPrefix) {
		t.Errorf("key leaked to output:\n%s", out)
	}

	info, err := os.Stat(filepath.Join(secretsDir, "guardian-ci"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secret file mode = %o, want 600", perm)
	}

	w.mustRun(t, "stats")

	// Existing secrets are not overwritten.
	if _, err := w.run(t, "", "keys", "generate", "--name", "guardian-ci", "--secrets-dir", secretsDir); cli.ExitCode(err) != cli.ExitFailure {
		t.Errorf("overwrite: exit code = %d (%v)", cli.ExitCode(err), err)
	}
}

func TestCertsGenerateAndInfo(t *testing.T) {
	w := newWorkspace(t, "", "")
	dir := w.path("tls")

	out := w.mustRun(t, "certs", "generate", "--host", "localhost,127.0.0.1", "--validity", "10", "--output", dir)
	if !strings.Contains(out, "cert_file:") {
		t.Errorf("missing config snippet:\n%s", out)
	}

	keyInfo, err := os.Stat(filepath.Join(dir, "key.pem"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := keyInfo.Mode().Perm(); perm != 0o600 {
		t.Errorf("key mode = %o, want 600", perm)
	}

	out = w.mustRun(t, "certs", "info", filepath.Join(dir, "cert.pem"), "--format", "json")
	var v certView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if v.Expired || !v.SelfSigned {
		t.Errorf("expired=%v self_signed=%v", v.Expired, v.SelfSigned)
	}
	if v.DaysToExpiry < 9 || v.DaysToExpiry > 10 {
		t.Errorf("days_to_expiry = %d", v.DaysToExpiry)
	}
	if len(v.DNSNames) != 1 || v.DNSNames[0] != "localhost" {
		t.Errorf("dns_names = %v", v.DNSNames)
	}
	if len(v.IPAddresses) != 1 || v.IPAddresses[0] != "127.0.0.1" {
		t.Errorf("ip_addresses = %v", v.IPAddresses)
	}

	if _, err := w.run(t, "", "certs", "info", filepath.Join(dir, "key.pem")); cli.ExitCode(err) != cli.ExitFailure {
		t.Errorf("info on a key: exit code = %d (%v)", cli.ExitCode(err), err)
	}
	if _, err := w.run(t, "", "certs", "generate", "--key-size", "1024", "--output", dir); cli.ExitCode(err) != cli.ExitUsage {
		t.Errorf("bad key size: exit code = %d (%v)", cli.ExitCode(err), err)
	}
}

func TestLint(t *testing.T) {
	w := newWorkspace(t, "", "")

	out := w.mustRun(t, "lint", "--text", cleanText)
	if !strings.Contains(out, "PASS") {
		t.Errorf("expected PASS:\n%s", out)
	}

	out, err := w.run(t, "Premise: a.\nInference: no period\nConfidence: High", "lint", "--format", "json")
	if cli.ExitCode(err) != cli.ExitRejected {
		t.Fatalf("exit code = %d (%v)", cli.ExitCode(err), err)
	}
	var v lintView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if v.Passed || len(v.Findings) != 1 || v.Findings[0].Key != "6c" {
		t.Errorf("unexpected result %+v", v)
	}

	if _, err := w.run(t, "", "lint", "--text", "no tag"); err != nil {
		t.Errorf("advisory should pass without --strict: %v", err)
	}
	if _, err := w.run(t, "", "lint", "--text", "no tag", "--strict"); cli.ExitCode(err) != cli.ExitRejected {
		t.Errorf("--strict: exit code = %d (%v)", cli.ExitCode(err), err)
	}
	if _, err := w.run(t, "", "lint", "--text", "Inference: x", "--no-microformats"); err != nil {
		t.Errorf("--no-microformats should pass: %v", err)
	}

	lines, err := audit.ReadLines(w.path("output_log.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	if len(lines) != 0 {
		t.Errorf("lint wrote %d audit lines", len(lines))
	}
}

func TestBench(t *testing.T) {
	w := newWorkspace(t, "", "")

	out := w.mustRun(t, "bench", "--all-modes", "--iterations", "12", "--concurrency", "3", "--format", "json")
	var v benchView
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if len(v.Results) != 3 {
		t.Fatalf("results = %d, want one per mode", len(v.Results))
	}
	for _, r := range v.Results {
		if r.Checks != 12 || r.Passed+r.Rejected != 12 {
			t.Errorf("%s: checks %d passed %d rejected %d", r.Mode, r.Checks, r.Passed, r.Rejected)
		}
		if r.CacheHits != 0 {
			t.Errorf("%s: unique texts should never hit the cache, got %d hits", r.Mode, r.CacheHits)
		}
		if r.P50 > r.P95 || r.P95 > r.P99 || r.P99 > r.Max {
			t.Errorf("%s: percentiles out of order %+v", r.Mode, r)
		}
	}

	for _, name := range []string{"output_log.jsonl", "latency_log.jsonl"} {
		if _, err := os.Stat(w.path(name)); !os.IsNotExist(err) {
			t.Errorf("bench touched %s", name)
		}
	}
}

func TestBench_CachedSamples(t *testing.T) {
	w := newWorkspace(t, "", "")
	samples := w.path("samples.txt")
	if err := os.WriteFile(samples, []byte("first sample\\nConfidence: High\n\nsecond sample\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	out := w.mustRun(t, "bench", "--input", samples, "--cached", "--iterations", "10", "--concurrency", "1", "--format", "csv")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[1], "regex_only,10,") {
		t.Fatalf("unexpected csv:\n%s", out)
	}
	fields := strings.Split(lines[1], ",")
	if fields[4] != "8" {
		t.Errorf("cache hits = %s, want 8 with two samples checked sequentially", fields[4])
	}
}

func TestBench_UsageErrors(t *testing.T) {
	w := newWorkspace(t, "", "")
	for _, args := range [][]string{
		{"bench", "--iterations", "0"},
		{"bench", "--concurrency", "0"},
		{"bench", "--mode", "fast"},
		{"bench", "--mode", "strict", "--all-modes"},
	} {
		_, err := w.run(t, "", args...)
		if code := cli.ExitCode(err); code != cli.ExitUsage {
			t.Errorf("%v: exit code %d, want %d", args, code, cli.ExitUsage)
		}
	}
}
