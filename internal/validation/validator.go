// Package validation evaluates plan checks against freshly observed cluster
// state.
package validation

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/lockplane/cfplane/internal/cluster"
	"github.com/lockplane/cfplane/internal/planner"
)

// Validator evaluates ValidationChecks.
type Validator struct {
	admin  cluster.Admin
	logger *slog.Logger
}

func New(admin cluster.Admin, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Validator{admin: admin, logger: logger}
}

// Run evaluates every check of one phase. Each table is described once per
// call; nothing is cached between calls. All failing checks are collected.
// The returned error is reserved for failures to reach the cluster.
func (v *Validator) Run(ctx context.Context, phase planner.Phase, checks []planner.ValidationCheck) (*Result, error) {
	result := &Result{Phase: phase}
	states := map[string]cluster.TableState{}

	for _, check := range checks {
		state, ok := states[check.Table]
		if !ok {
			var err error
			state, err = v.admin.Describe(ctx, check.Table)
			if err != nil {
				return result, fmt.Errorf("failed to describe %s during %s-validation: %w", check.Table, phase, err)
			}
			states[check.Table] = state
		}

		result.Checked++
		if f, failed := Evaluate(check, state); failed {
			v.logger.Debug("check failed", "phase", phase, "table", check.Table, "subject", check.Subject(), "severity", check.Severity)
			result.Add(f)
		}
	}

	v.logger.Info("validation finished",
		"phase", phase,
		"checked", result.Checked,
		"errors", len(result.Errors()),
		"warnings", len(result.Warnings()))
	return result, nil
}

// Evaluate checks one assertion against an observed state. Attribute checks
// on a missing table are not reported separately; the table's existence
// check already covers that.
func Evaluate(check planner.ValidationCheck, state cluster.TableState) (Finding, bool) {
	switch check.Kind {
	case planner.CheckExists:
		if !state.Exists {
			return Finding{Check: check, Message: "expected table to exist but it does not"}, true
		}
	case planner.CheckAbsent:
		if state.Exists {
			return Finding{Check: check, Message: "expected table to be absent but it exists"}, true
		}
	case planner.CheckAttribute:
		if !state.Exists {
			return Finding{}, false
		}
		var (
			actual string
			ok     bool
		)
		if check.Family != "" {
			actual, ok = state.FamilyAttribute(check.Family, check.Attribute)
		} else {
			actual, ok = state.TableAttribute(check.Attribute)
		}
		if !ok {
			return Finding{Check: check, Message: fmt.Sprintf("expected %q but the attribute is not set", check.Expected)}, true
		}
		if actual != check.Expected {
			return Finding{Check: check, Actual: actual, Message: fmt.Sprintf("expected %q, found %q", check.Expected, actual)}, true
		}
	default:
		return Finding{Check: check, Message: fmt.Sprintf("unknown check kind %q", check.Kind)}, true
	}
	return Finding{}, false
}
