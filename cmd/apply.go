package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lockplane/cfplane/internal/executor"
	"github.com/lockplane/cfplane/internal/planner"
	"github.com/lockplane/cfplane/internal/report"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply the declared schema to the cluster",
	Long: `Apply plans the declared tables (or loads a plan saved with
'cfplane plan --out'), checks that the cluster still matches what the plan
expects, then drops, creates and alters tables in that order and checks the
result.

Exit codes:
  0  success
  1  usage, configuration or connection failure
  2  pre-validation failed, nothing was changed
  3  a cluster operation failed
  4  post-validation failed`,
	Example: `  # Plan and apply after confirmation
  cfplane apply

  # Apply a saved plan without prompting
  cfplane apply --plan plan.json --auto-approve

  # Only run pre-validation
  cfplane apply --dry-run`,
	RunE: runApply,
}

type applyOptions struct {
	planFile    string
	dryRun      bool
	autoApprove bool
	parallelism int
	output      string
}

var applyOpts applyOptions

func init() {
	rootCmd.AddCommand(applyCmd)

	applyCmd.Flags().StringVar(&applyOpts.planFile, "plan", "", "Apply a plan saved with 'cfplane plan --out'")
	applyCmd.Flags().BoolVar(&applyOpts.dryRun, "dry-run", false, "Run pre-validation only")
	applyCmd.Flags().BoolVar(&applyOpts.autoApprove, "auto-approve", false, "Skip the confirmation prompt")
	applyCmd.Flags().IntVar(&applyOpts.parallelism, "parallelism", 0, "Tables of one action kind to apply concurrently (default from environment)")
	applyCmd.Flags().StringVarP(&applyOpts.output, "output", "o", "text", "Output format: text or json")
}

func runApply(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	opts := applyOpts
	if !cmd.Flags().Changed("parallelism") {
		opts.parallelism = -1
	}
	return applyIn(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), dir, opts)
}

// applyIn runs apply from dir. A negative parallelism means "use the
// environment's setting".
func applyIn(ctx context.Context, in io.Reader, w io.Writer, dir string, opts applyOptions) error {
	if opts.output != "text" && opts.output != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", opts.output)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := loadEnvironment(dir)
	if err != nil {
		return err
	}
	parallelism := opts.parallelism
	if parallelism < 0 {
		parallelism = env.Parallelism
	}

	admin, err := openCluster(ctx, env)
	if err != nil {
		return err
	}
	defer func() { _ = admin.Close() }()

	var plan *planner.Plan
	if opts.planFile != "" {
		plan, err = readPlanFile(opts.planFile)
		logger.Debug("loaded saved plan", "path", opts.planFile, "source_hash", planHash(plan))
	} else {
		plan, err = buildPlan(ctx, admin, env)
	}
	if err != nil {
		return err
	}

	if opts.output == "text" {
		report.WritePlan(w, plan)
		_, _ = fmt.Fprintln(w)
	}

	if plan.HasMutations() && !opts.dryRun && !opts.autoApprove {
		ok, err := confirm(in, w, env.Name)
		if err != nil {
			return err
		}
		if !ok {
			_, _ = fmt.Fprintln(w, "Apply cancelled")
			return nil
		}
	}

	ex := executor.New(admin, executor.Options{
		Parallelism: parallelism,
		DryRun:      opts.dryRun,
		Logger:      logger,
	})
	out := ex.Run(ctx, plan)

	if opts.output == "json" {
		if err := report.WriteJSON(w, report.NewOutcomeJSON(plan, out)); err != nil {
			return err
		}
	} else {
		report.WriteOutcome(w, plan, out)
	}

	if code := out.ExitCode(); code != executor.ExitOK {
		// The report already shows the failure.
		return &exitError{code: code}
	}
	return nil
}

func planHash(plan *planner.Plan) string {
	if plan == nil {
		return ""
	}
	return plan.SourceHash
}

// confirm asks before mutating the cluster. Anything but y or yes declines.
func confirm(in io.Reader, w io.Writer, envName string) (bool, error) {
	_, _ = color.New(color.Bold).Fprintf(w, "Apply these changes to %q? [y/N] ", envName)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, err
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
