package executor

import (
	"context"
	"errors"

	"github.com/lockplane/cfplane/internal/planner"
	"github.com/lockplane/cfplane/internal/validation"
)

var (
	// ErrPreValidation means a blocking pre-check failed and nothing was
	// executed.
	ErrPreValidation = errors.New("pre-validation failed")
	// ErrPostValidation means every action ran but the cluster does not
	// match the declarations afterwards.
	ErrPostValidation = errors.New("post-validation failed")
)

// Process exit codes for the apply pipeline.
const (
	ExitOK             = 0
	ExitFailure        = 1
	ExitPreValidation  = 2
	ExitExecution      = 3
	ExitPostValidation = 4
)

// Outcome is the result of Run.
type Outcome struct {
	PreValidation  *validation.Result `json:"pre_validation,omitempty"`
	PostValidation *validation.Result `json:"post_validation,omitempty"`
	// Executed is set once mutations were attempted.
	Executed bool  `json:"executed"`
	DryRun   bool  `json:"dry_run,omitempty"`
	Err      error `json:"-"`
}

// ExitCode maps the outcome to a process exit code.
func (o *Outcome) ExitCode() int {
	var execErr *ExecutionError
	switch {
	case o.Err == nil:
		return ExitOK
	case errors.Is(o.Err, ErrPreValidation):
		return ExitPreValidation
	case errors.As(o.Err, &execErr):
		return ExitExecution
	case errors.Is(o.Err, ErrPostValidation):
		return ExitPostValidation
	}
	return ExitFailure
}

// Run validates, executes and re-validates a plan. Pre-validation error
// findings stop the run before any mutation; warnings are reported only.
// In dry-run mode the run ends after pre-validation.
func (e *Executor) Run(ctx context.Context, plan *planner.Plan) *Outcome {
	out := &Outcome{DryRun: e.opts.DryRun}
	v := validation.New(e.admin, e.logger)

	pre, err := v.Run(ctx, planner.PhasePre, plan.Checks(planner.PhasePre))
	out.PreValidation = pre
	if err != nil {
		out.Err = err
		return out
	}
	for _, w := range pre.Warnings() {
		e.logger.Warn("pre-validation warning", "finding", w.String())
	}
	if pre.HasErrors() {
		for i := range plan.Actions {
			if plan.Actions[i].Kind.Mutates() {
				plan.Actions[i].Result = &planner.ExecutionRecord{Status: planner.StatusSkipped}
			}
		}
		out.Err = ErrPreValidation
		return out
	}
	if e.opts.DryRun {
		e.logger.Info("dry run: skipping execution")
		return out
	}

	out.Executed = true
	if err := e.Apply(ctx, plan); err != nil {
		out.Err = err
		return out
	}

	post, err := v.Run(ctx, planner.PhasePost, plan.Checks(planner.PhasePost))
	out.PostValidation = post
	if err != nil {
		out.Err = err
		return out
	}
	if post.HasErrors() {
		out.Err = ErrPostValidation
	}
	return out
}
