package validation

import (
	"fmt"

	"github.com/lockplane/cfplane/internal/planner"
)

// Finding is a check that did not hold.
type Finding struct {
	Check   planner.ValidationCheck `json:"check"`
	Actual  string                  `json:"actual,omitempty"`
	Message string                  `json:"message"`
}

func (f Finding) String() string {
	return fmt.Sprintf("[%s %s] %s: %s", f.Check.Phase, f.Check.Action, f.Check.Subject(), f.Message)
}

// Result collects the findings of one validation phase. It is returned to
// the caller rather than accumulated in shared state.
type Result struct {
	Phase    planner.Phase `json:"phase"`
	Checked  int           `json:"checked"`
	Findings []Finding     `json:"findings"`
}

// Add records a finding under the check's own severity.
func (r *Result) Add(f Finding) {
	r.Findings = append(r.Findings, f)
}

// Errors returns only error findings.
func (r *Result) Errors() []Finding {
	return r.filter(planner.SeverityError)
}

// Warnings returns only warning findings.
func (r *Result) Warnings() []Finding {
	return r.filter(planner.SeverityWarning)
}

// HasErrors reports whether any finding is an error.
func (r *Result) HasErrors() bool {
	for _, f := range r.Findings {
		if f.Check.Severity == planner.SeverityError {
			return true
		}
	}
	return false
}

func (r *Result) filter(sev planner.Severity) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Check.Severity == sev {
			out = append(out, f)
		}
	}
	return out
}
