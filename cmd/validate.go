package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/lockplane/cfplane/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate [path]",
	Short: "Check schema declarations without contacting the cluster",
	Long: `Validate loads schema declarations, checks them against the declaration
format and the naming and sizing rules, and computes the effective value of
every attribute. The cluster is not contacted.

Without a path the environment's schema path is used.`,
	Example: `  # Validate the environment's schema directory
  cfplane validate

  # Validate one file
  cfplane validate schema/tables.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	path := ""
	if len(args) == 1 {
		path = args[0]
	} else {
		dir, err := os.Getwd()
		if err != nil {
			return err
		}
		env, err := loadEnvironment(dir)
		if err != nil {
			return err
		}
		path = env.SchemaPath
	}
	return validatePath(cmd.OutOrStdout(), path)
}

// validatePath prints every configuration error found under path and
// returns a non-nil error when there is at least one.
func validatePath(w io.Writer, path string) error {
	tables, err := schema.LoadSchema(path)
	if err != nil {
		var errs schema.ConfigurationErrors
		if !errors.As(err, &errs) {
			return err
		}
		red := color.New(color.FgRed)
		for _, e := range errs {
			_, _ = red.Fprintf(w, "✗ %s\n", e)
		}
		return &exitError{code: 1, err: fmt.Errorf("%s: %d configuration errors", path, len(errs))}
	}

	_, _ = color.New(color.FgGreen).Fprintf(w, "✓ %s: %d tables valid (hash %s)\n", path, len(tables), shortHash(schema.Hash(tables)))
	return nil
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
