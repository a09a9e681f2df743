package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleet/internal/executor"
	"github.com/randalmurphal/fleet/internal/logging"
	"github.com/randalmurphal/fleet/internal/orchestrator"
	"github.com/randalmurphal/fleet/internal/registry"
	"github.com/randalmurphal/fleet/internal/runlog"
)

var (
	runFocus    string
	runMaxIter  int
	runDryRun   bool
	runShowLogs bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the orchestrator loop until no eligible work remains",
	Long: `run repeatedly scans the workspace, scores the pending tasks, and
executes the best candidate with a worker subprocess. SIGINT and SIGTERM
stop the loop cooperatively: the running worker finishes and its outcome
is recorded before fleet exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := registry.Load(flagWorkspace)
		if err != nil {
			return err
		}

		runs, err := runlog.Open(flagWorkspace)
		if err != nil {
			logging.Module("cli").Warn("run log unavailable", "error", err)
			runs = nil
		}
		if runs != nil {
			defer runs.Close()
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var execOpts executor.Options
		if runShowLogs {
			execOpts.OnStdout = func(line string) { fmt.Println(line) }
			execOpts.OnStderr = func(line string) { fmt.Fprintln(os.Stderr, line) }
		}

		orch := orchestrator.New(flagWorkspace, cfg, reg, runs)
		sum, err := orch.Run(ctx, orchestrator.Options{
			FocusLabel:    runFocus,
			MaxIterations: runMaxIter,
			DryRun:        runDryRun,
			ExecOptions:   execOpts,
		})
		if err != nil {
			return err
		}

		fmt.Printf("iterations=%d succeeded=%d failed=%d stopped=%s\n",
			sum.Iterations, sum.Succeeded, sum.Failed, sum.Stopped)
		if sum.Failed > 0 {
			return fmt.Errorf("%d worker run(s) failed", sum.Failed)
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runFocus, "focus", "", "label to prioritize")
	runCmd.Flags().IntVar(&runMaxIter, "max-iterations", 0, "stop after this many worker runs (0 = unbounded)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "select and claim the next task without executing it")
	runCmd.Flags().BoolVar(&runShowLogs, "show-output", false, "stream worker output to the terminal")
	rootCmd.AddCommand(runCmd)
}
