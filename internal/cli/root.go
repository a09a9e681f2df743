// Package cli implements the fleet command-line interface.
package cli

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleet/internal/config"
	fleeterrors "github.com/randalmurphal/fleet/internal/errors"
	"github.com/randalmurphal/fleet/internal/logging"

	// Tracker providers register themselves at init.
	_ "github.com/randalmurphal/fleet/internal/tracker/ghcli"
	_ "github.com/randalmurphal/fleet/internal/tracker/github"
	_ "github.com/randalmurphal/fleet/internal/tracker/gitlab"
)

var (
	flagWorkspace string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "fleet",
	Short: "Multi-project task orchestrator",
	Long: `fleet scans task files across registered projects, scores the pending
work, and dispatches the best candidate to a worker subprocess. Task
files are the source of truth; fleet records every status transition it
makes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if flagLogLevel != "" {
			logging.SetupWithLevel(flagLogLevel)
		} else {
			logging.Setup()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagWorkspace, "workspace", "w", ".", "workspace root containing projects.json")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "minimum log level (debug, info, warn, error)")
}

// loadConfig resolves the workspace configuration for a command.
func loadConfig() (*config.Config, error) {
	return config.Load(flagWorkspace)
}

// Execute runs the CLI and returns the process exit code: 0 on success,
// 1 on a runtime failure, 2 on a configuration error.
func Execute() int {
	err := rootCmd.Execute()
	if err == nil {
		return 0
	}

	var fe *fleeterrors.FleetError
	if stderrors.As(err, &fe) {
		fmt.Fprintln(os.Stderr, fe.UserMessage())
		switch fe.Code {
		case fleeterrors.CodeRegistryNotFound, fleeterrors.CodeRegistryMalformed:
			return 2
		}
		return 1
	}

	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return 1
}
