package planner

import (
	"fmt"

	"github.com/lockplane/cfplane/internal/schema"
)

// ActionKind classifies what the plan does with one table.
type ActionKind string

const (
	ActionDrop   ActionKind = "DROP"
	ActionCreate ActionKind = "CREATE"
	ActionAlter  ActionKind = "ALTER"
	ActionIgnore ActionKind = "IGNORE"
	// ActionUnchanged marks a managed table that already matches its
	// declaration. It is never mutated but still post-validated.
	ActionUnchanged ActionKind = "UNCHANGED"
)

// Rank is the position of the kind in the execution order: drops, then
// creates, then alters. Kinds that never mutate sort last.
func (k ActionKind) Rank() int {
	switch k {
	case ActionDrop:
		return 0
	case ActionCreate:
		return 1
	case ActionAlter:
		return 2
	case ActionUnchanged:
		return 3
	}
	return 4
}

// Mutates reports whether the kind changes the cluster.
func (k ActionKind) Mutates() bool {
	return k == ActionDrop || k == ActionCreate || k == ActionAlter
}

// Scope tells whether a change applies to the table or to one family.
type Scope string

const (
	ScopeTable  Scope = "table"
	ScopeFamily Scope = "family"
)

// PropertyChange is one attribute whose effective value differs from what
// the cluster reports.
type PropertyChange struct {
	Scope     Scope  `json:"scope"`
	Family    string `json:"family,omitempty"`
	Attribute string `json:"attribute"`
	Old       string `json:"old"`
	New       string `json:"new"`
	// Missing is set when the cluster does not report the attribute at all.
	Missing bool `json:"missing,omitempty"`
}

// Path names the changed attribute as table:attribute or
// table:family:attribute.
func (c PropertyChange) Path(table string) string {
	if c.Scope == ScopeFamily {
		return fmt.Sprintf("%s:%s:%s", table, c.Family, c.Attribute)
	}
	return fmt.Sprintf("%s:%s", table, c.Attribute)
}

// Severity of a failed check.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Phase of a check relative to execution.
type Phase string

const (
	PhasePre  Phase = "pre"
	PhasePost Phase = "post"
)

// CheckKind selects what a check asserts.
type CheckKind string

const (
	CheckExists    CheckKind = "exists"
	CheckAbsent    CheckKind = "absent"
	CheckAttribute CheckKind = "attribute"
)

// ValidationCheck is one assertion about cluster state.
type ValidationCheck struct {
	Table     string     `json:"table"`
	Phase     Phase      `json:"phase"`
	Action    ActionKind `json:"action"`
	Kind      CheckKind  `json:"kind"`
	Family    string     `json:"family,omitempty"`
	Attribute string     `json:"attribute,omitempty"`
	Expected  string     `json:"expected,omitempty"`
	Severity  Severity   `json:"severity"`
}

// Subject names what the check looks at.
func (c ValidationCheck) Subject() string {
	switch {
	case c.Kind != CheckAttribute:
		return c.Table
	case c.Family != "":
		return fmt.Sprintf("%s:%s:%s", c.Table, c.Family, c.Attribute)
	}
	return fmt.Sprintf("%s:%s", c.Table, c.Attribute)
}

// ExecutionStatus is the outcome recorded on an action after apply.
type ExecutionStatus string

const (
	StatusApplied ExecutionStatus = "applied"
	StatusNoop    ExecutionStatus = "noop"
	StatusFailed  ExecutionStatus = "failed"
	StatusSkipped ExecutionStatus = "skipped"
)

// ExecutionRecord is appended to an action by the executor.
type ExecutionRecord struct {
	Status ExecutionStatus `json:"status"`
	Steps  []string        `json:"steps,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// Action is the plan entry for one table.
type Action struct {
	Kind  ActionKind `json:"kind"`
	Table string     `json:"table"`
	// Effective is the declared target. It is nil for cluster tables that
	// have no declaration at all.
	Effective *schema.EffectiveTable `json:"effective,omitempty"`
	Changes   []PropertyChange       `json:"changes,omitempty"`
	Result    *ExecutionRecord       `json:"result,omitempty"`
}

// Plan is computed without mutating the cluster and consumed once by the
// executor.
type Plan struct {
	SourceHash string            `json:"source_hash,omitempty"`
	Actions    []Action          `json:"actions"`
	PreChecks  []ValidationCheck `json:"pre_checks"`
	PostChecks []ValidationCheck `json:"post_checks"`
}

// Summary groups table names by action kind.
type Summary struct {
	Create    []string `json:"create"`
	Alter     []string `json:"alter"`
	Drop      []string `json:"drop"`
	Ignore    []string `json:"ignore"`
	Unchanged []string `json:"unchanged"`
}

// Summary groups the plan's tables by action kind, in plan order.
func (p *Plan) Summary() Summary {
	var s Summary
	for _, a := range p.Actions {
		switch a.Kind {
		case ActionCreate:
			s.Create = append(s.Create, a.Table)
		case ActionAlter:
			s.Alter = append(s.Alter, a.Table)
		case ActionDrop:
			s.Drop = append(s.Drop, a.Table)
		case ActionIgnore:
			s.Ignore = append(s.Ignore, a.Table)
		case ActionUnchanged:
			s.Unchanged = append(s.Unchanged, a.Table)
		}
	}
	return s
}

// Action returns the action for a table, or nil.
func (p *Plan) Action(table string) *Action {
	for i := range p.Actions {
		if p.Actions[i].Table == table {
			return &p.Actions[i]
		}
	}
	return nil
}

// HasMutations reports whether executing the plan would change the cluster.
func (p *Plan) HasMutations() bool {
	for _, a := range p.Actions {
		if a.Kind.Mutates() {
			return true
		}
	}
	return false
}

// Checks returns the checks for one phase.
func (p *Plan) Checks(phase Phase) []ValidationCheck {
	if phase == PhasePre {
		return p.PreChecks
	}
	return p.PostChecks
}
