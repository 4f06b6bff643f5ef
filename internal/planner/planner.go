package planner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/lockplane/cfplane/internal/cluster"
	"github.com/lockplane/cfplane/internal/schema"
)

// Options tune plan generation.
type Options struct {
	// Baseline is the declaration set that was last applied. When a table
	// appears in it, pre-checks for an ALTER expect the baseline values
	// instead of the values observed while planning.
	Baseline []schema.Table
	Logger   *slog.Logger
}

// Planner computes migration plans. It only reads from the cluster.
type Planner struct {
	admin    cluster.Admin
	baseline map[string]*schema.EffectiveTable
	logger   *slog.Logger
}

// New validates the baseline, if any, and returns a Planner.
func New(admin cluster.Admin, opts Options) (*Planner, error) {
	p := &Planner{
		admin:    admin,
		baseline: map[string]*schema.EffectiveTable{},
		logger:   opts.Logger,
	}
	if p.logger == nil {
		p.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if len(opts.Baseline) > 0 {
		if err := schema.Validate(opts.Baseline); err != nil {
			return nil, fmt.Errorf("invalid baseline: %w", err)
		}
		for _, t := range opts.Baseline {
			if t.Intent.Normalize() != schema.IntentCreateOrAlter {
				continue
			}
			eff, err := schema.Effective(t)
			if err != nil {
				return nil, fmt.Errorf("invalid baseline: %w", err)
			}
			p.baseline[t.Name] = eff
		}
	}
	return p, nil
}

// Plan classifies every declared table and every undeclared cluster table,
// computes attribute changes and builds both check lists. Declarations are
// validated before the cluster is contacted.
func (p *Planner) Plan(ctx context.Context, declared []schema.Table) (*Plan, error) {
	if err := schema.Validate(declared); err != nil {
		return nil, err
	}

	plan := &Plan{
		SourceHash: schema.Hash(declared),
		Actions:    make([]Action, 0, len(declared)),
	}
	// Observed states used to build ALTER pre-checks when no baseline
	// covers the table.
	observed := map[string]cluster.TableState{}

	managed := make(map[string]bool, len(declared))
	for _, t := range declared {
		managed[t.Name] = true

		eff, err := schema.Effective(t)
		if err != nil {
			return nil, err
		}

		switch eff.Intent {
		case schema.IntentDrop:
			plan.Actions = append(plan.Actions, Action{Kind: ActionDrop, Table: t.Name, Effective: eff})
		case schema.IntentIgnore:
			plan.Actions = append(plan.Actions, Action{Kind: ActionIgnore, Table: t.Name, Effective: eff})
		default:
			state, err := p.admin.Describe(ctx, t.Name)
			if err != nil {
				return nil, fmt.Errorf("failed to describe %s: %w", t.Name, err)
			}
			action := classify(eff, state)
			if action.Kind == ActionAlter {
				observed[t.Name] = state
			}
			plan.Actions = append(plan.Actions, action)
		}
		p.logger.Debug("classified table", "table", t.Name, "action", plan.Actions[len(plan.Actions)-1].Kind)
	}

	existing, err := p.admin.ListTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list cluster tables: %w", err)
	}
	sort.Strings(existing)
	for _, name := range existing {
		if managed[name] {
			continue
		}
		plan.Actions = append(plan.Actions, Action{Kind: ActionIgnore, Table: name})
		p.logger.Debug("ignoring undeclared table", "table", name)
	}

	SortActions(plan.Actions)

	for i := range plan.Actions {
		a := &plan.Actions[i]
		plan.PreChecks = append(plan.PreChecks, p.preChecks(a, observed[a.Table])...)
		plan.PostChecks = append(plan.PostChecks, postChecks(a)...)
	}

	p.logger.Info("computed plan",
		"actions", len(plan.Actions),
		"pre_checks", len(plan.PreChecks),
		"post_checks", len(plan.PostChecks))
	return plan, nil
}

// classify turns an effective create-or-alter table and its observed state
// into CREATE, ALTER or UNCHANGED.
func classify(eff *schema.EffectiveTable, state cluster.TableState) Action {
	if !state.Exists {
		return Action{Kind: ActionCreate, Table: eff.Name, Effective: eff}
	}
	changes := Diff(eff, state)
	if len(changes) == 0 {
		return Action{Kind: ActionUnchanged, Table: eff.Name, Effective: eff}
	}
	return Action{Kind: ActionAlter, Table: eff.Name, Effective: eff, Changes: changes}
}

// Diff compares every effective attribute with its observed string value.
// Table attributes come first in name order, then each declared family in
// declaration order. Attributes the cluster reports but the declaration does
// not model are never compared.
func Diff(eff *schema.EffectiveTable, state cluster.TableState) []PropertyChange {
	var changes []PropertyChange

	for _, a := range eff.Attributes() {
		old, ok := state.TableAttribute(a.Name)
		if ok && old == a.Value {
			continue
		}
		changes = append(changes, PropertyChange{
			Scope:     ScopeTable,
			Attribute: a.Name,
			Old:       old,
			New:       a.Value,
			Missing:   !ok,
		})
	}

	for i := range eff.Families {
		f := &eff.Families[i]
		for _, a := range f.Attributes() {
			old, ok := state.FamilyAttribute(f.Name, a.Name)
			if ok && old == a.Value {
				continue
			}
			changes = append(changes, PropertyChange{
				Scope:     ScopeFamily,
				Family:    f.Name,
				Attribute: a.Name,
				Old:       old,
				New:       a.Value,
				Missing:   !ok,
			})
		}
	}
	return changes
}

// SortActions puts actions in execution order. Within a kind, declaration
// order is kept.
func SortActions(actions []Action) {
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].Kind.Rank() < actions[j].Kind.Rank()
	})
}
