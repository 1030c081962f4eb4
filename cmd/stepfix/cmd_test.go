package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ormasoftchile/stepfix/pkg/diff"
	"github.com/ormasoftchile/stepfix/pkg/ecosystem/tui"
	"github.com/ormasoftchile/stepfix/pkg/rewrite"
)

const (
	legacyFixture    = "../../testdata/templates/legacy.json"
	canonicalFixture = "../../testdata/templates/canonical.json"
	noIfFixture      = "../../testdata/invalid/no-if.json"
	brokenFixture    = "../../testdata/invalid/broken.json"
)

type result struct {
	stdout string
	stderr string
	err    error
}

func execute(t *testing.T, a *app, args ...string) result {
	t.Helper()
	if a == nil {
		a = newApp()
	}
	var out, errOut bytes.Buffer
	cmd := newRootCmdFor(a)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return result{stdout: out.String(), stderr: errOut.String(), err: err}
}

func copyFixture(t *testing.T, src string) string {
	t.Helper()
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	dst := filepath.Join(t.TempDir(), filepath.Base(src))
	require.NoError(t, os.WriteFile(dst, data, 0o644))
	return dst
}

func readFile(t *testing.T, path string) []byte {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func TestValidate(t *testing.T) {
	r := execute(t, nil, "validate", canonicalFixture)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "✓ "+canonicalFixture+" is valid")

	r = execute(t, nil, "validate", noIfFixture)
	require.Error(t, r.err)
	assert.Contains(t, r.stderr, "structure not found")

	r = execute(t, nil, "validate", "--json", canonicalFixture, noIfFixture)
	require.Error(t, r.err)
	var findings map[string][]map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &findings))
	assert.Len(t, findings, 2)
	assert.NotEmpty(t, findings[noIfFixture])
}

func TestValidate_RejectsYAML(t *testing.T) {
	r := execute(t, nil, "validate", "profile.yaml")
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "templates are JSON")
}

func TestRewrite_ToStdout(t *testing.T) {
	r := execute(t, nil, "rewrite", legacyFixture)
	require.NoError(t, r.err)
	assert.Equal(t, string(readFile(t, canonicalFixture)), r.stdout)
}

func TestRewrite_ReportGoesToStderrWithDocument(t *testing.T) {
	r := execute(t, nil, "rewrite", "--report", "json", legacyFixture)
	require.NoError(t, r.err)

	var rep rewrite.Report
	require.NoError(t, json.Unmarshal([]byte(r.stderr), &rep))
	assert.True(t, rep.Changed())
	assert.NotEmpty(t, rep.RunID)
	assert.Equal(t, legacyFixture, rep.Source)
}

func TestRewrite_InPlace(t *testing.T) {
	path := copyFixture(t, legacyFixture)

	r := execute(t, nil, "rewrite", "--in-place", "--backup", "--report", "md", path)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, readFile(t, canonicalFixture), readFile(t, path))
	assert.Equal(t, readFile(t, legacyFixture), readFile(t, path+".bak"))
	assert.Contains(t, r.stdout, "# Rewrite report")
	assert.Contains(t, r.stdout, "✓ "+path)

	r = execute(t, nil, "rewrite", "--in-place", path)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "is up to date")
}

func TestRewrite_Out(t *testing.T) {
	target := filepath.Join(t.TempDir(), "out.json")
	r := execute(t, nil, "rewrite", "--out", target, legacyFixture)
	require.NoError(t, r.err, r.stderr)
	assert.Equal(t, readFile(t, canonicalFixture), readFile(t, target))
}

func TestRewrite_DryRun(t *testing.T) {
	path := copyFixture(t, legacyFixture)
	before := readFile(t, path)

	r := execute(t, nil, "rewrite", "--dry-run", path)
	require.NoError(t, r.err)
	assert.Equal(t, before, readFile(t, path), "dry run must not write")
	assert.Contains(t, r.stdout, "@@")
	assert.Contains(t, r.stdout, "+")
	assert.Contains(t, r.stdout, "retryInputWithValidation")
	assert.NotContains(t, r.stdout, "\x1b[", "no colors when stdout is not a terminal")
}

func TestRewrite_Strategy(t *testing.T) {
	r := execute(t, nil, "rewrite", "--strategy", "confirm", "--report", "json", legacyFixture)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, `"ArrowDown"`)

	var rep rewrite.Report
	require.NoError(t, json.Unmarshal([]byte(r.stderr), &rep))
	assert.Equal(t, "confirm", rep.Strategy)
}

func TestRewrite_StrategyFromEnv(t *testing.T) {
	t.Setenv("STEPFIX_REWRITE_STRATEGY", "confirm")
	r := execute(t, nil, "rewrite", "--report", "json", legacyFixture)
	require.NoError(t, r.err)
	assert.Contains(t, r.stderr, `"strategy": "confirm"`)
}

func TestRewrite_FlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad report", []string{"rewrite", "--report", "xml", legacyFixture}, "--report"},
		{"out and in-place", []string{"rewrite", "--out", "x.json", "--in-place", legacyFixture}, "mutually exclusive"},
		{"out with many", []string{"rewrite", "--out", "x.json", legacyFixture, canonicalFixture}, "single template"},
		{"many to stdout", []string{"rewrite", legacyFixture, canonicalFixture}, "--in-place or --dry-run"},
		{"review without target", []string{"rewrite", "--review", legacyFixture}, "--review needs"},
		{"bad strategy", []string{"rewrite", "--strategy", "inline", legacyFixture}, "rewrite.strategy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := execute(t, nil, tt.args...)
			require.Error(t, r.err)
			assert.Contains(t, r.err.Error(), tt.want)
		})
	}
}

func TestRewrite_FailuresAreIndependent(t *testing.T) {
	good := copyFixture(t, legacyFixture)
	bad := copyFixture(t, noIfFixture)

	r := execute(t, nil, "rewrite", "--in-place", bad, good)
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "1 of 2 template(s) failed")
	assert.Contains(t, r.stderr, "✗ "+bad)
	assert.Equal(t, readFile(t, canonicalFixture), readFile(t, good))
	assert.Equal(t, readFile(t, noIfFixture), readFile(t, bad))
}

func TestRewrite_Repair(t *testing.T) {
	r := execute(t, nil, "rewrite", brokenFixture)
	require.Error(t, r.err)

	r = execute(t, nil, "rewrite", "--repair", brokenFixture)
	require.Error(t, r.err, "repaired document still has no branch structure")
	assert.Contains(t, r.err.Error(), "structure not found")
}

func TestRewrite_Review(t *testing.T) {
	tests := []struct {
		decision tui.Decision
		written  bool
	}{
		{tui.Approved, true},
		{tui.Aborted, false},
	}
	for _, tt := range tests {
		t.Run(tt.decision.String(), func(t *testing.T) {
			path := copyFixture(t, legacyFixture)
			a := newApp()
			var reviewed *diff.DiffResult
			a.review = func(source string, rep *rewrite.Report, d *diff.DiffResult) (tui.Decision, error) {
				reviewed = d
				return tt.decision, nil
			}

			r := execute(t, a, "rewrite", "--in-place", "--review", path)
			require.NoError(t, r.err)
			require.NotNil(t, reviewed)
			assert.True(t, reviewed.Changed())

			want := readFile(t, legacyFixture)
			if tt.written {
				want = readFile(t, canonicalFixture)
			}
			assert.Equal(t, want, readFile(t, path))
		})
	}
}

func TestVerify(t *testing.T) {
	r := execute(t, nil, "verify", canonicalFixture)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "✓ "+canonicalFixture)
	assert.Contains(t, r.stdout, "regular")

	r = execute(t, nil, "verify", legacyFixture)
	require.Error(t, r.err)
	assert.Contains(t, r.err.Error(), "1 of 1 template(s) need rewriting")
	assert.Contains(t, r.stdout, "pending edit(s)")

	r = execute(t, nil, "verify", "--json", legacyFixture, canonicalFixture)
	require.Error(t, r.err)
	var got map[string]rewrite.Verification
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &got))
	assert.False(t, got[legacyFixture].Branches[0].UpToDate)
	assert.True(t, got[canonicalFixture].Branches[1].UpToDate)
}

func TestInspect(t *testing.T) {
	r := execute(t, nil, "inspect", canonicalFixture)
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "┌")

	r = execute(t, nil, "inspect", "--format", "mermaid", "--branch", "else", canonicalFixture)
	require.NoError(t, r.err)
	assert.True(t, strings.HasPrefix(r.stdout, "flowchart"), r.stdout)
	assert.Contains(t, r.stdout, "overtime")

	r = execute(t, nil, "inspect", "--branch", "sideways", canonicalFixture)
	require.Error(t, r.err)

	r = execute(t, nil, "inspect", "--format", "svg", canonicalFixture)
	require.Error(t, r.err)
}

func TestSchema(t *testing.T) {
	r := execute(t, nil, "schema")
	require.NoError(t, r.err)
	assert.True(t, json.Valid([]byte(r.stdout)))
	assert.Contains(t, r.stdout, "template-v0.json")

	out := filepath.Join(t.TempDir(), "profile.schema.json")
	r = execute(t, nil, "schema", "profile", "--out", out)
	require.NoError(t, r.err)
	assert.True(t, json.Valid(readFile(t, out)))

	r = execute(t, nil, "schema", "runbook")
	require.Error(t, r.err)
}

func TestPreview(t *testing.T) {
	r := execute(t, nil, "preview", "--charge-job", "(A1) Plant/Line 2", canonicalFixture)
	require.NoError(t, r.err, r.stderr)
	assert.Contains(t, r.stdout, "2 part(s), 3 field(s)")
	assert.Contains(t, r.stdout, `"value": "Plant"`)
	assert.Contains(t, r.stdout, `"value": "Line 2"`)
	assert.Contains(t, r.stdout, "${employee.ChargeJob}", "unknown variables are left in place")

	r = execute(t, nil, "preview", canonicalFixture)
	require.Error(t, r.err, "--charge-job is required")

	r = execute(t, nil, "preview", "--charge-job", "X/Y", "--var", "bad", canonicalFixture)
	require.Error(t, r.err)
}

func TestProfile(t *testing.T) {
	r := execute(t, nil, "profile", "--sentinel", "anywhere")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "anywhere")

	r = execute(t, nil, "profile", "--default")
	require.NoError(t, r.err)
	assert.Contains(t, r.stdout, "apiVersion: stepfix/v0")
}

func TestVersion(t *testing.T) {
	r := execute(t, nil, "version")
	require.NoError(t, r.err)
	assert.Equal(t, "stepfix dev (build: unknown)\n", r.stdout)
}
