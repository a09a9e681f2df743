package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleet/internal/journal"
	"github.com/randalmurphal/fleet/internal/registry"
	"github.com/randalmurphal/fleet/internal/taskfile"
)

var (
	statusSet     string
	statusSummary string
)

var statusCmd = &cobra.Command{
	Use:   "status <task-id>",
	Short: "Show or change a task's status",
	Long: `Without --set, status prints the task's current status and history.
With --set, it records a transition through the journal, which appends a
history entry and rejects starting an already-running task.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		taskID := args[0]
		reg, err := registry.Load(flagWorkspace)
		if err != nil {
			return err
		}
		j := journal.New(flagWorkspace, reg)

		if statusSet != "" {
			err := j.UpdateStatus(taskID, taskfile.Status(statusSet), journal.UpdateOptions{
				Summary: statusSummary,
			})
			if err != nil {
				return err
			}
			fmt.Printf("%s → %s\n", taskID, statusSet)
			return nil
		}

		loc, err := j.Locate(taskID)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %s\n", loc.Task.ID, loc.Task.Status)
		for _, h := range loc.Task.History {
			line := fmt.Sprintf("  %s  %s → %s", h.Timestamp.Format("2006-01-02 15:04:05"), h.FromStatus, h.ToStatus)
			if h.AgentSummary != "" {
				line += "  (" + h.AgentSummary + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusSet, "set", "", "new status (pending, in_progress, completed, failed, blocked)")
	statusCmd.Flags().StringVar(&statusSummary, "summary", "", "summary recorded on the history entry")
	rootCmd.AddCommand(statusCmd)
}
