package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleet/internal/scanner"
	"github.com/randalmurphal/fleet/internal/scorer"
)

var (
	scoreFocus string
	scoreAll   bool
	scoreJSON  bool
	scoreTop   int
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Score and rank all pending tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, _, err := scanner.ScanWorkspace(flagWorkspace, scanner.Options{})
		if err != nil {
			return err
		}

		scored := scorer.ScoreTasks(res.Tasks, scorer.Options{
			FocusLabel:      scoreFocus,
			IncludeTerminal: scoreAll,
		})
		if scoreTop > 0 && len(scored) > scoreTop {
			scored = scored[:scoreTop]
		}

		if scoreJSON {
			return printScoreJSON(scored)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TASK\tSCORE\tMAT\tIMP\tDEP\tEFF\tPREF\tSTATUS")
		for _, s := range scored {
			mark := ""
			if s.Score.Overridden {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%.2f%s\t%.0f\t%.0f\t%.0f\t%.2f\t%.0f\t%s\n",
				s.Task.ID, s.Score.Total, mark,
				s.Score.Maturity, s.Score.Impact, s.Score.Dependency,
				s.Score.Effort, s.Score.Preference, s.Task.Status)
		}
		return w.Flush()
	},
}

func printScoreJSON(scored []scorer.Scored) error {
	type row struct {
		ID    string       `json:"id"`
		Title string       `json:"title"`
		Score scorer.Score `json:"score"`
	}
	rows := make([]row, 0, len(scored))
	for _, s := range scored {
		rows = append(rows, row{ID: s.Task.ID, Title: s.Task.Title, Score: s.Score})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

func init() {
	scoreCmd.Flags().StringVar(&scoreFocus, "focus", "", "label to prioritize")
	scoreCmd.Flags().BoolVar(&scoreAll, "all", false, "include completed and failed tasks")
	scoreCmd.Flags().BoolVar(&scoreJSON, "json", false, "emit JSON")
	scoreCmd.Flags().IntVar(&scoreTop, "top", 0, "show only the top N tasks")
	rootCmd.AddCommand(scoreCmd)
}
