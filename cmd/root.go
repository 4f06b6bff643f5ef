package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	environmentName string
	clusterOverride string
	schemaOverride  string
	baselinePath    string
	verbose         bool
	noColor         bool

	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
)

var rootCmd = &cobra.Command{
	Use:   "cfplane",
	Short: "Declarative schema management for column-family stores",
	Long: `cfplane reconciles declared table schemas with a live column-family
cluster. It plans creates, alters and drops, checks the cluster before and
after every change, and applies the plan in a fixed order.`,
	Version:       getVersion(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
		if noColor {
			color.NoColor = true
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&environmentName, "environment", "e", "", "Environment from cfplane.toml (defaults to default_environment)")
	flags.StringVar(&clusterOverride, "cluster", "", "Cluster URL (overrides the environment)")
	flags.StringVar(&schemaOverride, "schema", "", "Schema file or directory (overrides the environment)")
	flags.StringVar(&baselinePath, "baseline", "", "Previously applied schema file or directory")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
	flags.BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	if e.err == nil {
		return fmt.Sprintf("exit status %d", e.code)
	}
	return e.err.Error()
}

func (e *exitError) Unwrap() error { return e.err }

// exitCode maps a command error onto the process exit code.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func Execute() {
	err := rootCmd.Execute()
	if err == nil {
		return
	}
	var ee *exitError
	if !errors.As(err, &ee) || ee.err != nil {
		_, _ = color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(exitCode(err))
}
