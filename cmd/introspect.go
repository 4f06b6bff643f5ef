package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/lockplane/cfplane/internal/cluster"
	"github.com/lockplane/cfplane/internal/report"
)

var introspectCmd = &cobra.Command{
	Use:   "introspect",
	Short: "Print the observed state of cluster tables as JSON",
	Long: `Introspect describes every table on the cluster, or only the tables named
with --table, and prints the observed attributes as JSON.`,
	Example: `  # Every table on the default environment's cluster
  cfplane introspect > cluster.json

  # One table on an explicit cluster
  cfplane introspect --cluster http://rest-gateway:8080 --table events`,
	RunE: runIntrospect,
}

var introspectTables []string

func init() {
	rootCmd.AddCommand(introspectCmd)

	introspectCmd.Flags().StringSliceVar(&introspectTables, "table", nil, "Only describe these tables (repeatable)")
}

func runIntrospect(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	return introspectIn(cmd.Context(), cmd.OutOrStdout(), dir, introspectTables)
}

func introspectIn(ctx context.Context, w io.Writer, dir string, tables []string) error {
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

	states, err := describeTables(ctx, admin, tables)
	if err != nil {
		return err
	}
	return report.WriteJSON(w, states)
}

// describeTables snapshots names, or every cluster table when names is
// empty. Requested tables that do not exist are reported with exists=false.
func describeTables(ctx context.Context, admin cluster.Admin, names []string) ([]cluster.TableState, error) {
	if len(names) == 0 {
		listed, err := admin.ListTables(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list tables: %w", err)
		}
		names = listed
	}
	names = append([]string(nil), names...)
	sort.Strings(names)

	states := make([]cluster.TableState, 0, len(names))
	for _, name := range names {
		state, err := admin.Describe(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("failed to describe %s: %w", name, err)
		}
		states = append(states, state)
	}
	return states, nil
}
