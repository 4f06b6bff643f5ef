package planner

import (
	"github.com/lockplane/cfplane/internal/cluster"
	"github.com/lockplane/cfplane/internal/schema"
)

// severityFor returns the severity of every check attached to kind. Drop
// checks never block.
func severityFor(kind ActionKind) Severity {
	if kind == ActionDrop {
		return SeverityWarning
	}
	return SeverityError
}

func (p *Planner) preChecks(a *Action, observed cluster.TableState) []ValidationCheck {
	sev := severityFor(a.Kind)
	check := func(kind CheckKind) ValidationCheck {
		return ValidationCheck{Table: a.Table, Phase: PhasePre, Action: a.Kind, Kind: kind, Severity: sev}
	}

	switch a.Kind {
	case ActionCreate:
		return []ValidationCheck{check(CheckAbsent)}

	case ActionDrop:
		checks := []ValidationCheck{check(CheckExists)}
		return append(checks, attributeChecks(a.Effective, PhasePre, a.Kind, sev)...)

	case ActionAlter:
		checks := []ValidationCheck{check(CheckExists)}
		if base, ok := p.baseline[a.Table]; ok {
			return append(checks, attributeChecks(base, PhasePre, a.Kind, sev)...)
		}
		return append(checks, observedChecks(a.Effective, observed, sev)...)
	}
	return nil
}

func postChecks(a *Action) []ValidationCheck {
	sev := severityFor(a.Kind)
	switch a.Kind {
	case ActionDrop:
		return []ValidationCheck{{Table: a.Table, Phase: PhasePost, Action: a.Kind, Kind: CheckAbsent, Severity: sev}}
	case ActionCreate, ActionAlter, ActionUnchanged:
		checks := []ValidationCheck{{Table: a.Table, Phase: PhasePost, Action: a.Kind, Kind: CheckExists, Severity: sev}}
		return append(checks, attributeChecks(a.Effective, PhasePost, a.Kind, sev)...)
	}
	return nil
}

// attributeChecks asserts every attribute of eff.
func attributeChecks(eff *schema.EffectiveTable, phase Phase, kind ActionKind, sev Severity) []ValidationCheck {
	if eff == nil {
		return nil
	}
	var checks []ValidationCheck
	for _, attr := range eff.Attributes() {
		checks = append(checks, ValidationCheck{
			Table: eff.Name, Phase: phase, Action: kind, Kind: CheckAttribute,
			Attribute: attr.Name, Expected: attr.Value, Severity: sev,
		})
	}
	for i := range eff.Families {
		f := &eff.Families[i]
		for _, attr := range f.Attributes() {
			checks = append(checks, ValidationCheck{
				Table: eff.Name, Phase: phase, Action: kind, Kind: CheckAttribute,
				Family: f.Name, Attribute: attr.Name, Expected: attr.Value, Severity: sev,
			})
		}
	}
	return checks
}

// observedChecks pins the attributes of eff to the values seen while
// planning, so a change made between planning and execution aborts the
// plan. Attributes the cluster did not report are skipped.
func observedChecks(eff *schema.EffectiveTable, state cluster.TableState, sev Severity) []ValidationCheck {
	var checks []ValidationCheck
	for _, attr := range eff.Attributes() {
		if v, ok := state.TableAttribute(attr.Name); ok {
			checks = append(checks, ValidationCheck{
				Table: eff.Name, Phase: PhasePre, Action: ActionAlter, Kind: CheckAttribute,
				Attribute: attr.Name, Expected: v, Severity: sev,
			})
		}
	}
	for i := range eff.Families {
		f := &eff.Families[i]
		for _, attr := range f.Attributes() {
			if v, ok := state.FamilyAttribute(f.Name, attr.Name); ok {
				checks = append(checks, ValidationCheck{
					Table: eff.Name, Phase: PhasePre, Action: ActionAlter, Kind: CheckAttribute,
					Family: f.Name, Attribute: attr.Name, Expected: v, Severity: sev,
				})
			}
		}
	}
	return checks
}
