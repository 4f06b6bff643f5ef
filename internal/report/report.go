// Package report renders plans, validation results and execution outcomes
// for people and for machines.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"

	"github.com/lockplane/cfplane/internal/executor"
	"github.com/lockplane/cfplane/internal/planner"
	"github.com/lockplane/cfplane/internal/validation"
)

var (
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
	cyan   = color.New(color.FgCyan)
	bold   = color.New(color.Bold)
	faint  = color.New(color.Faint)
)

// WritePlan renders the plan summary: counts and names per action kind,
// then the attribute changes of every ALTER in plan order.
func WritePlan(w io.Writer, plan *planner.Plan) {
	s := plan.Summary()

	_, _ = bold.Fprintln(w, "Migration plan")
	writeGroup(w, green, "create", s.Create)
	writeGroup(w, yellow, "alter", s.Alter)
	writeGroup(w, red, "drop", s.Drop)
	writeGroup(w, faint, "ignore", s.Ignore)
	writeGroup(w, faint, "unchanged", s.Unchanged)

	for _, a := range plan.Actions {
		if a.Kind != planner.ActionAlter {
			continue
		}
		_, _ = fmt.Fprintln(w)
		_, _ = yellow.Fprintf(w, "~ %s\n", a.Table)
		for _, c := range a.Changes {
			old := c.Old
			if c.Missing {
				old = "(unset)"
			}
			_, _ = fmt.Fprintf(w, "    %s: %s -> %s\n", c.Path(a.Table), abbreviate(old), abbreviate(c.New))
		}
	}

	_, _ = fmt.Fprintln(w)
	if !plan.HasMutations() {
		_, _ = green.Fprintln(w, "✓ Cluster already matches the declarations")
		return
	}
	_, _ = fmt.Fprintf(w, "%d pre-checks, %d post-checks\n", len(plan.PreChecks), len(plan.PostChecks))
}

func writeGroup(w io.Writer, c *color.Color, label string, tables []string) {
	_, _ = c.Fprintf(w, "  %-10s %d", label+":", len(tables))
	if len(tables) > 0 {
		_, _ = fmt.Fprintf(w, "  %s", strings.Join(tables, ", "))
	}
	_, _ = fmt.Fprintln(w)
}

// abbreviate shortens long values such as the full-schema fingerprint to
// at most 72 runes.
func abbreviate(v string) string {
	const max = 72
	if utf8.RuneCountInString(v) <= max {
		return v
	}
	runes := []rune(v)
	return string(runes[:max-3]) + "..."
}

// WriteValidation renders the findings of one validation phase.
func WriteValidation(w io.Writer, result *validation.Result) {
	if result == nil {
		return
	}
	errs, warns := result.Errors(), result.Warnings()
	if len(errs) == 0 && len(warns) == 0 {
		_, _ = green.Fprintf(w, "✓ %s-validation passed (%d checks)\n", result.Phase, result.Checked)
		return
	}

	for _, f := range errs {
		_, _ = red.Fprintf(w, "✗ error: %s\n", f)
	}
	for _, f := range warns {
		_, _ = yellow.Fprintf(w, "⚠ warning: %s\n", f)
	}
	_, _ = fmt.Fprintf(w, "%s-validation: %d checks, %d errors, %d warnings\n",
		result.Phase, result.Checked, len(errs), len(warns))
}

// WriteOutcome renders both validation phases and the execution record of
// every action that was attempted.
func WriteOutcome(w io.Writer, plan *planner.Plan, out *executor.Outcome) {
	WriteValidation(w, out.PreValidation)

	if out.Executed {
		_, _ = fmt.Fprintln(w)
		_, _ = bold.Fprintln(w, "Execution")
		for _, a := range plan.Actions {
			if !a.Kind.Mutates() || a.Result == nil {
				continue
			}
			writeRecord(w, a)
		}
		_, _ = fmt.Fprintln(w)
	}

	WriteValidation(w, out.PostValidation)

	switch {
	case out.Err != nil:
		_, _ = red.Fprintf(w, "✗ %v\n", out.Err)
	case out.DryRun:
		_, _ = cyan.Fprintln(w, "Dry run: no changes were made")
	default:
		_, _ = green.Fprintln(w, "✓ Apply complete")
	}
}

func writeRecord(w io.Writer, a planner.Action) {
	r := a.Result
	line := fmt.Sprintf("  %-7s %-9s %s", a.Kind, r.Status, a.Table)
	if len(r.Steps) > 0 {
		line += " (" + strings.Join(r.Steps, ", ") + ")"
	}

	switch r.Status {
	case planner.StatusApplied:
		_, _ = green.Fprintln(w, line)
	case planner.StatusFailed:
		_, _ = red.Fprintln(w, line)
		_, _ = red.Fprintf(w, "          %s\n", r.Error)
	case planner.StatusSkipped:
		_, _ = yellow.Fprintln(w, line)
	default:
		_, _ = faint.Fprintln(w, line)
	}
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// OutcomeJSON is the machine-readable result of an apply.
type OutcomeJSON struct {
	Plan     *planner.Plan     `json:"plan"`
	Outcome  *executor.Outcome `json:"outcome"`
	Error    string            `json:"error,omitempty"`
	ExitCode int               `json:"exit_code"`
}

// NewOutcomeJSON bundles a plan and its outcome for WriteJSON.
func NewOutcomeJSON(plan *planner.Plan, out *executor.Outcome) OutcomeJSON {
	o := OutcomeJSON{Plan: plan, Outcome: out, ExitCode: out.ExitCode()}
	if out.Err != nil {
		o.Error = out.Err.Error()
	}
	return o
}
