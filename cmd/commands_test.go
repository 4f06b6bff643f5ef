package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/lockplane/cfplane/internal/cluster"
	"github.com/lockplane/cfplane/internal/executor"
	"github.com/lockplane/cfplane/internal/planner"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

const projectConfig = `default_environment = "local"

[environments.local]
cluster_url = "sqlite://.cfplane/cluster.db"
`

func eventsSchema(maxFileSizeMB int) string {
	return fmt.Sprintf(`tables:
  - name: events
    maxFileSizeMB: %d
    owner: ops
    key:
      - {name: source, type: String, length: 16}
    columnFamilies:
      - name: d
        columns:
          - {name: payload, type: Byte}
`, maxFileSizeMB)
}

// newProject writes cfplane.toml and schema/tables.yaml backed by a SQLite
// cluster inside a temp dir.
func newProject(t *testing.T, schemaYAML string) string {
	t.Helper()
	resetFlags(t)
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "cfplane.toml"), projectConfig)
	writeFile(t, filepath.Join(dir, "schema", "tables.yaml"), schemaYAML)
	return dir
}

func setSchema(t *testing.T, dir, schemaYAML string) {
	t.Helper()
	writeFile(t, filepath.Join(dir, "schema", "tables.yaml"), schemaYAML)
}

func autoApprove() applyOptions {
	return applyOptions{autoApprove: true, parallelism: -1, output: "text"}
}

func TestPlanCommand(t *testing.T) {
	dir := newProject(t, eventsSchema(256))

	var out bytes.Buffer
	if err := planIn(context.Background(), &out, dir, "", "text"); err != nil {
		t.Fatalf("plan returned error: %v", err)
	}
	if !strings.Contains(out.String(), "create:    1  events") {
		t.Errorf("expected events to be created:\n%s", out.String())
	}
	if _, err := os.Stat(filepath.Join(dir, ".cfplane", "cluster.db")); err != nil {
		t.Errorf("expected the SQLite cluster next to cfplane.toml: %v", err)
	}
}

func TestPlanCommandJSONAndOut(t *testing.T) {
	dir := newProject(t, eventsSchema(256))
	planFile := filepath.Join(dir, "plan.json")

	var out bytes.Buffer
	if err := planIn(context.Background(), &out, dir, planFile, "json"); err != nil {
		t.Fatalf("plan returned error: %v", err)
	}

	var printed planner.Plan
	if err := json.Unmarshal(out.Bytes(), &printed); err != nil {
		t.Fatalf("stdout is not a plan: %v\n%s", err, out.String())
	}
	saved, err := readPlanFile(planFile)
	if err != nil {
		t.Fatalf("readPlanFile returned error: %v", err)
	}
	if len(saved.Actions) != 1 || saved.Actions[0].Kind != planner.ActionCreate {
		t.Errorf("unexpected saved actions %+v", saved.Actions)
	}
	if saved.SourceHash != printed.SourceHash {
		t.Errorf("saved and printed plans differ: %q vs %q", saved.SourceHash, printed.SourceHash)
	}
}

func TestPlanCommandRejectsUnknownOutput(t *testing.T) {
	dir := newProject(t, eventsSchema(256))
	if err := planIn(context.Background(), &bytes.Buffer{}, dir, "", "yaml"); err == nil {
		t.Fatal("expected an error for an unknown output format")
	}
}

func TestApplyCommandConverges(t *testing.T) {
	dir := newProject(t, eventsSchema(256))

	var out bytes.Buffer
	if err := applyIn(context.Background(), strings.NewReader(""), &out, dir, autoApprove()); err != nil {
		t.Fatalf("apply returned error: %v\n%s", err, out.String())
	}
	for _, want := range []string{"CREATE  applied   events", "post-validation passed", "Apply complete"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("expected %q in output:\n%s", want, out.String())
		}
	}

	out.Reset()
	if err := applyIn(context.Background(), strings.NewReader(""), &out, dir, autoApprove()); err != nil {
		t.Fatalf("second apply returned error: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "already matches") {
		t.Errorf("expected a converged cluster on the second apply:\n%s", out.String())
	}
}

func TestApplyCommandAltersAndIntrospects(t *testing.T) {
	dir := newProject(t, eventsSchema(256))
	if err := applyIn(context.Background(), nil, &bytes.Buffer{}, dir, autoApprove()); err != nil {
		t.Fatalf("initial apply returned error: %v", err)
	}

	setSchema(t, dir, eventsSchema(257))
	var out bytes.Buffer
	if err := applyIn(context.Background(), nil, &out, dir, autoApprove()); err != nil {
		t.Fatalf("alter apply returned error: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "events:MAX_FILESIZE: 268435456 -> 269484032") {
		t.Errorf("expected the MAX_FILESIZE change:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "ALTER   applied   events (describe, disable, modify, enable)") {
		t.Errorf("expected the alter sequence:\n%s", out.String())
	}

	out.Reset()
	if err := introspectIn(context.Background(), &out, dir, nil); err != nil {
		t.Fatalf("introspect returned error: %v", err)
	}
	var states []cluster.TableState
	if err := json.Unmarshal(out.Bytes(), &states); err != nil {
		t.Fatalf("introspect output is not JSON: %v\n%s", err, out.String())
	}
	if len(states) != 1 || !states[0].Exists || !states[0].Enabled {
		t.Fatalf("unexpected states %+v", states)
	}
	if v, _ := states[0].TableAttribute("MAX_FILESIZE"); v != "269484032" {
		t.Errorf("expected MAX_FILESIZE 269484032, got %q", v)
	}
}

func TestApplyCommandPromptDeclined(t *testing.T) {
	dir := newProject(t, eventsSchema(256))
	opts := autoApprove()
	opts.autoApprove = false

	var out bytes.Buffer
	if err := applyIn(context.Background(), strings.NewReader("n\n"), &out, dir, opts); err != nil {
		t.Fatalf("apply returned error: %v", err)
	}
	if !strings.Contains(out.String(), "Apply cancelled") {
		t.Errorf("expected cancellation:\n%s", out.String())
	}

	out.Reset()
	if err := introspectIn(context.Background(), &out, dir, nil); err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(out.String()) != "[]" {
		t.Errorf("cluster should be untouched, got %s", out.String())
	}
}

func TestApplyCommandDryRun(t *testing.T) {
	dir := newProject(t, eventsSchema(256))
	opts := autoApprove()
	opts.autoApprove = false
	opts.dryRun = true

	var out bytes.Buffer
	if err := applyIn(context.Background(), nil, &out, dir, opts); err != nil {
		t.Fatalf("dry run returned error: %v", err)
	}
	if !strings.Contains(out.String(), "Dry run") {
		t.Errorf("expected dry run notice:\n%s", out.String())
	}

	out.Reset()
	if err := introspectIn(context.Background(), &out, dir, []string{"events"}); err != nil {
		t.Fatal(err)
	}
	var states []cluster.TableState
	if err := json.Unmarshal(out.Bytes(), &states); err != nil {
		t.Fatal(err)
	}
	if len(states) != 1 || states[0].Exists {
		t.Errorf("dry run must not create tables, got %+v", states)
	}
}

// TestApplySavedPlanDetectsDrift saves an ALTER, changes the table behind
// its back and expects the saved plan to stop at pre-validation.
func TestApplySavedPlanDetectsDrift(t *testing.T) {
	dir := newProject(t, eventsSchema(256))
	if err := applyIn(context.Background(), nil, &bytes.Buffer{}, dir, autoApprove()); err != nil {
		t.Fatalf("initial apply returned error: %v", err)
	}

	planFile := filepath.Join(dir, "plan.json")
	setSchema(t, dir, eventsSchema(257))
	if err := planIn(context.Background(), &bytes.Buffer{}, dir, planFile, "text"); err != nil {
		t.Fatalf("plan returned error: %v", err)
	}

	setSchema(t, dir, eventsSchema(512))
	if err := applyIn(context.Background(), nil, &bytes.Buffer{}, dir, autoApprove()); err != nil {
		t.Fatalf("drifting apply returned error: %v", err)
	}

	opts := autoApprove()
	opts.planFile = planFile
	var out bytes.Buffer
	err := applyIn(context.Background(), nil, &out, dir, opts)
	if code := exitCode(err); code != executor.ExitPreValidation {
		t.Fatalf("expected exit code %d, got %d (%v)\n%s", executor.ExitPreValidation, code, err, out.String())
	}
	if !strings.Contains(out.String(), `events:MAX_FILESIZE: expected "268435456", found "536870912"`) {
		t.Errorf("expected the drifted attribute to be reported:\n%s", out.String())
	}
}

func TestApplyCommandJSON(t *testing.T) {
	dir := newProject(t, eventsSchema(256))
	opts := autoApprove()
	opts.output = "json"

	var out bytes.Buffer
	if err := applyIn(context.Background(), nil, &out, dir, opts); err != nil {
		t.Fatalf("apply returned error: %v", err)
	}
	var decoded struct {
		ExitCode int `json:"exit_code"`
		Plan     struct {
			Actions []planner.Action `json:"actions"`
		} `json:"plan"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("apply output is not JSON: %v\n%s", err, out.String())
	}
	if decoded.ExitCode != 0 || len(decoded.Plan.Actions) != 1 {
		t.Fatalf("unexpected outcome %+v", decoded)
	}
	if r := decoded.Plan.Actions[0].Result; r == nil || r.Status != planner.StatusApplied {
		t.Errorf("expected an applied record, got %+v", r)
	}
}

func TestReadPlanFileRejectsAppliedPlan(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	plan := &planner.Plan{Actions: []planner.Action{{
		Kind: planner.ActionCreate, Table: "events",
		Result: &planner.ExecutionRecord{Status: planner.StatusApplied},
	}}}
	if err := writePlanFile(path, plan); err != nil {
		t.Fatal(err)
	}
	if _, err := readPlanFile(path); err == nil {
		t.Fatal("expected an error for a plan that carries execution records")
	}
}

func TestConfirm(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"y\n", true},
		{"YES\n", true},
		{"n\n", false},
		{"\n", false},
		{"", false},
		{"y", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.input), func(t *testing.T) {
			got, err := confirm(strings.NewReader(tt.input), &bytes.Buffer{}, "local")
			if err != nil {
				t.Fatalf("confirm returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("confirm(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestValidatePath(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	writeFile(t, good, eventsSchema(256))

	var out bytes.Buffer
	if err := validatePath(&out, good); err != nil {
		t.Fatalf("validatePath returned error: %v", err)
	}
	if !strings.Contains(out.String(), "1 tables valid") {
		t.Errorf("unexpected output:\n%s", out.String())
	}

	bad := filepath.Join(dir, "bad.yaml")
	writeFile(t, bad, `tables:
  - name: events
    maxFileSizeMB: 0.3
    key:
      - {name: k, type: String, length: 8}
    columnFamilies:
      - name: d
      - name: d
`)
	out.Reset()
	err := validatePath(&out, bad)
	if code := exitCode(err); code != 1 {
		t.Fatalf("expected exit code 1, got %d (%v)", code, err)
	}
	if strings.Count(out.String(), "✗") < 2 {
		t.Errorf("expected every configuration error to be listed:\n%s", out.String())
	}
}
