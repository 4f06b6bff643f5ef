package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lockplane/cfplane/internal/planner"
	"github.com/lockplane/cfplane/internal/report"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the changes needed to reconcile the cluster with the declarations",
	Long: `Plan loads the declared tables, reads the current cluster state and
prints the tables that would be created, altered, dropped or ignored, with
every attribute change. The cluster is never modified.`,
	Example: `  # Plan against the default environment
  cfplane plan

  # Save the plan for a later apply
  cfplane plan --out plan.json

  # Plan against an explicit cluster and schema
  cfplane plan --cluster http://rest-gateway:8080 --schema schema/`,
	RunE: runPlan,
}

var (
	planOutFile string
	planOutput  string
)

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVar(&planOutFile, "out", "", "Write the plan as JSON to this file")
	planCmd.Flags().StringVarP(&planOutput, "output", "o", "text", "Output format: text or json")
}

func runPlan(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	return planIn(cmd.Context(), cmd.OutOrStdout(), dir, planOutFile, planOutput)
}

func planIn(ctx context.Context, w io.Writer, dir, outFile, output string) error {
	if output != "text" && output != "json" {
		return fmt.Errorf("unknown output format %q (want text or json)", output)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	env, err := loadEnvironment(dir)
	if err != nil {
		return err
	}
	admin, err := openCluster(ctx, env)
	if err != nil {
		return err
	}
	defer func() { _ = admin.Close() }()

	plan, err := buildPlan(ctx, admin, env)
	if err != nil {
		return err
	}

	if outFile != "" {
		if err := writePlanFile(outFile, plan); err != nil {
			return err
		}
	}

	if output == "json" {
		return report.WriteJSON(w, plan)
	}
	report.WritePlan(w, plan)
	if outFile != "" {
		_, _ = fmt.Fprintf(w, "Plan written to %s\n", outFile)
	}
	return nil
}

func writePlanFile(path string, plan *planner.Plan) error {
	data, err := json.MarshalIndent(plan, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode plan: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write plan: %w", err)
	}
	return nil
}

func readPlanFile(path string) (*planner.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan: %w", err)
	}
	var plan planner.Plan
	if err := json.Unmarshal(data, &plan); err != nil {
		return nil, fmt.Errorf("failed to decode plan %s: %w", path, err)
	}
	for _, a := range plan.Actions {
		if a.Result != nil {
			return nil, fmt.Errorf("plan %s has already been applied (%s %s: %s)", path, a.Kind, a.Table, a.Result.Status)
		}
	}
	return &plan, nil
}
