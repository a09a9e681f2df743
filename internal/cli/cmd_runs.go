package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleet/internal/runlog"
)

var (
	runsTask  string
	runsLimit int
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recorded worker runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := runlog.Open(flagWorkspace)
		if err != nil {
			return err
		}
		defer store.Close()

		var runs []runlog.Run
		if runsTask != "" {
			runs, err = store.RunsForTask(cmd.Context(), runsTask)
		} else {
			runs, err = store.ListRuns(cmd.Context(), runsLimit)
		}
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STARTED\tTASK\tTIER\tEXIT\tDURATION\tRUN")
		for _, r := range runs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.TaskID, r.Tier, r.ExitCode,
				r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond),
				shortID(r.RunID),
			)
		}
		return w.Flush()
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	runsCmd.Flags().StringVar(&runsTask, "task", "", "only runs of this task id")
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "max runs to list")
	rootCmd.AddCommand(runsCmd)
}
