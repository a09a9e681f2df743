package cli

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleet/internal/registry"
	"github.com/randalmurphal/fleet/internal/scanner"
	"github.com/randalmurphal/fleet/internal/scorer"
	"github.com/randalmurphal/fleet/internal/watcher"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch task files and re-rank on every change",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := registry.Load(flagWorkspace)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		printTop(reg)
		w := watcher.New(flagWorkspace, reg, watchDebounce)
		return w.Run(ctx, func(paths []string) {
			printTop(reg)
		})
	},
}

// printTop prints the current top five candidates.
func printTop(reg *registry.Registry) {
	res, err := scanner.Scan(flagWorkspace, reg, scanner.Options{})
	if err != nil {
		fmt.Printf("scan failed: %v\n", err)
		return
	}
	scored := scorer.ScoreTasks(res.Tasks, scorer.Options{})
	if len(scored) > 5 {
		scored = scored[:5]
	}
	fmt.Printf("--- %s ---\n", time.Now().Format("15:04:05"))
	for _, s := range scored {
		fmt.Printf("%7.2f  %-12s %s\n", s.Score.Total, s.Task.Status, s.Task.ID)
	}
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", watcher.DefaultDebounce, "event coalescing window")
	rootCmd.AddCommand(watchCmd)
}
