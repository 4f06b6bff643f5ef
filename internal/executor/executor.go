// Package executor applies a migration plan to a cluster.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/lockplane/cfplane/internal/cluster"
	"github.com/lockplane/cfplane/internal/planner"
)

// ExecutionError is a failed administrative call. It halts the plan;
// actions that already completed stay applied.
type ExecutionError struct {
	Table  string
	Action planner.ActionKind
	Step   string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s %s: %s failed: %v", e.Action, e.Table, e.Step, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Phases in which actions run. The order is fixed: drops free names and
// regions before creates, creates land before alters.
var phases = []planner.ActionKind{planner.ActionDrop, planner.ActionCreate, planner.ActionAlter}

// Options tune execution.
type Options struct {
	// Parallelism bounds how many tables of the same action kind are
	// applied at once. Values below 2 run strictly sequentially.
	Parallelism int
	// DryRun stops Run after pre-validation.
	DryRun bool
	Logger *slog.Logger
}

// Executor drives plan actions against a cluster.Admin.
type Executor struct {
	admin  cluster.Admin
	opts   Options
	logger *slog.Logger
}

func New(admin cluster.Admin, opts Options) *Executor {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Executor{admin: admin, opts: opts, logger: logger}
}

// Apply executes every mutating action of the plan, all drops first, then
// creates, then alters, and appends an ExecutionRecord to each action. The
// first failure stops the plan: actions not yet started are marked skipped
// and the *ExecutionError is returned.
func (e *Executor) Apply(ctx context.Context, plan *planner.Plan) error {
	for i := range plan.Actions {
		if !plan.Actions[i].Kind.Mutates() {
			plan.Actions[i].Result = &planner.ExecutionRecord{Status: planner.StatusNoop}
		}
	}

	for n, kind := range phases {
		var group []*planner.Action
		for i := range plan.Actions {
			if plan.Actions[i].Kind == kind {
				group = append(group, &plan.Actions[i])
			}
		}
		if len(group) == 0 {
			continue
		}

		e.logger.Info("applying actions", "action", kind, "tables", len(group))
		if err := e.applyGroup(ctx, group); err != nil {
			for _, later := range phases[n+1:] {
				for i := range plan.Actions {
					if plan.Actions[i].Kind == later && plan.Actions[i].Result == nil {
						plan.Actions[i].Result = &planner.ExecutionRecord{Status: planner.StatusSkipped}
					}
				}
			}
			return err
		}
	}
	return nil
}

func (e *Executor) applyGroup(ctx context.Context, group []*planner.Action) error {
	if e.opts.Parallelism < 2 {
		for i, a := range group {
			if err := e.applyAction(ctx, a); err != nil {
				for _, rest := range group[i+1:] {
					rest.Result = &planner.ExecutionRecord{Status: planner.StatusSkipped}
				}
				return err
			}
		}
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Parallelism)
	for _, a := range group {
		a := a
		g.Go(func() error {
			if gctx.Err() != nil {
				a.Result = &planner.ExecutionRecord{Status: planner.StatusSkipped}
				return nil
			}
			// A started action runs to completion under the caller's context;
			// a failing sibling only stops actions that have not begun.
			return e.applyAction(ctx, a)
		})
	}
	return g.Wait()
}

func (e *Executor) applyAction(ctx context.Context, a *planner.Action) error {
	record := &planner.ExecutionRecord{Status: planner.StatusApplied}
	a.Result = record

	step := func(name string, fn func() error) error {
		if err := fn(); err != nil {
			record.Status = planner.StatusFailed
			record.Error = err.Error()
			e.logger.Error("action failed", "table", a.Table, "action", a.Kind, "step", name, "error", err)
			return &ExecutionError{Table: a.Table, Action: a.Kind, Step: name, Err: err}
		}
		record.Steps = append(record.Steps, name)
		e.logger.Debug("step complete", "table", a.Table, "action", a.Kind, "step", name)
		return nil
	}

	var err error
	switch a.Kind {
	case planner.ActionDrop:
		err = e.drop(ctx, a, record, step)
	case planner.ActionCreate:
		err = e.create(ctx, a, step)
	case planner.ActionAlter:
		err = e.alter(ctx, a, step)
	default:
		record.Status = planner.StatusNoop
		return nil
	}
	if err == nil {
		e.logger.Info("action applied", "table", a.Table, "action", a.Kind, "status", record.Status)
	}
	return err
}

type stepFunc func(name string, fn func() error) error

func (e *Executor) drop(ctx context.Context, a *planner.Action, record *planner.ExecutionRecord, step stepFunc) error {
	var exists bool
	if err := step("exists", func() (err error) {
		exists, err = e.admin.Exists(ctx, a.Table)
		return err
	}); err != nil {
		return err
	}
	if !exists {
		record.Status = planner.StatusNoop
		return nil
	}

	var enabled bool
	if err := step("isEnabled", func() (err error) {
		enabled, err = e.admin.IsEnabled(ctx, a.Table)
		return err
	}); err != nil {
		return err
	}
	if enabled {
		if err := step("disable", func() error { return e.admin.DisableTable(ctx, a.Table) }); err != nil {
			return err
		}
	}
	return step("delete", func() error { return e.admin.DeleteTable(ctx, a.Table) })
}

func (e *Executor) create(ctx context.Context, a *planner.Action, step stepFunc) error {
	if a.Effective == nil {
		return step("create", func() error { return errors.New("action has no table definition") })
	}
	desc := cluster.NewDescriptor(a.Effective)
	return step("create", func() error {
		return e.admin.CreateTable(ctx, desc, a.Effective.PreSplitRegions)
	})
}

// alter merges the full effective definition onto the live descriptor and
// swaps it in while the table is offline.
func (e *Executor) alter(ctx context.Context, a *planner.Action, step stepFunc) error {
	if a.Effective == nil {
		return step("describe", func() error { return errors.New("action has no table definition") })
	}

	var state cluster.TableState
	if err := step("describe", func() (err error) {
		state, err = e.admin.Describe(ctx, a.Table)
		if err == nil && !state.Exists {
			err = fmt.Errorf("%s: %w", a.Table, cluster.ErrTableNotFound)
		}
		return err
	}); err != nil {
		return err
	}

	desc := state.Descriptor.Clone()
	if desc == nil {
		desc = &cluster.Descriptor{Name: a.Table}
	}
	desc.Apply(a.Effective)

	if state.Enabled {
		if err := step("disable", func() error { return e.admin.DisableTable(ctx, a.Table) }); err != nil {
			return err
		}
	}
	if err := step("modify", func() error { return e.admin.ModifyTable(ctx, a.Table, desc) }); err != nil {
		if state.Enabled {
			// Leave the table serving its old schema rather than offline.
			if enableErr := e.admin.EnableTable(context.WithoutCancel(ctx), a.Table); enableErr != nil {
				e.logger.Error("failed to re-enable table after modify failure", "table", a.Table, "error", enableErr)
			}
		}
		return err
	}
	if state.Enabled {
		return step("enable", func() error { return e.admin.EnableTable(ctx, a.Table) })
	}
	return nil
}
