package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lockplane/cfplane/internal/wizard"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a cfplane project",
	Long: `Init walks through connecting to a cluster and writes cfplane.toml,
one .env.<environment> file per environment and a starter schema in the
current directory. An existing cfplane.toml is merged, not replaced.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := os.Getwd()
	if err != nil {
		return err
	}
	result, err := wizard.Run(dir)
	if err != nil {
		return fmt.Errorf("init failed: %w", err)
	}
	if result == nil {
		// Quit before any files were written.
		return nil
	}
	logger.Debug("init complete", "config", result.ConfigPath, "env_files", len(result.EnvFiles))
	return nil
}
