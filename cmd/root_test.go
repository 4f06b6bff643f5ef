package cmd

import (
	"errors"
	"fmt"
	"testing"
)

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "cfplane" {
		t.Errorf("expected Use to be 'cfplane', got %q", rootCmd.Use)
	}
	if rootCmd.Version == "" {
		t.Error("rootCmd.Version should not be empty")
	}
}

func TestCommandsRegistered(t *testing.T) {
	expected := map[string]bool{
		"plan":       false,
		"apply":      false,
		"validate":   false,
		"introspect": false,
		"init":       false,
		"version":    false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := expected[cmd.Name()]; ok {
			expected[cmd.Name()] = true
		}
	}
	for name, registered := range expected {
		if !registered {
			t.Errorf("expected command %q to be registered", name)
		}
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, name := range []string{"environment", "cluster", "schema", "baseline", "verbose", "no-color"} {
		if rootCmd.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected persistent flag --%s", name)
		}
	}
	if f := rootCmd.PersistentFlags().ShorthandLookup("e"); f == nil || f.Name != "environment" {
		t.Error("expected -e to be short for --environment")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"plain error", errors.New("boom"), 1},
		{"exit error", &exitError{code: 3}, 3},
		{"wrapped exit error", fmt.Errorf("apply: %w", &exitError{code: 4}), 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestGetVersion(t *testing.T) {
	if v := getVersion(); v == "" {
		t.Error("version should not be empty")
	}
}
