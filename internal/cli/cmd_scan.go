package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleet/internal/scanner"
)

var (
	scanStrict bool
	scanJSON   bool
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan all registered projects and list their tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, _, err := scanner.ScanWorkspace(flagWorkspace, scanner.Options{Strict: scanStrict})
		if err != nil {
			return err
		}

		if scanJSON {
			return printScanJSON(res)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "TASK\tSTATUS\tCOMPLEXITY\tPROJECT")
		for _, t := range res.Tasks {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", t.ID, t.Status, t.GetComplexity(), t.ProjectName)
		}
		w.Flush()

		for _, e := range res.Errors {
			fmt.Fprintf(os.Stderr, "error: %s\n", e)
		}
		for _, e := range res.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", e)
		}
		fmt.Printf("%d task(s), %d error(s), %d warning(s)\n",
			len(res.Tasks), len(res.Errors), len(res.Warnings))
		return nil
	},
}

func printScanJSON(res *scanner.Result) error {
	type task struct {
		ID      string `json:"id"`
		Title   string `json:"title"`
		Status  string `json:"status"`
		Project string `json:"project"`
	}
	out := struct {
		Tasks    []task          `json:"tasks"`
		Errors   []scanner.Error `json:"errors,omitempty"`
		Warnings []scanner.Error `json:"warnings,omitempty"`
	}{Errors: res.Errors, Warnings: res.Warnings}
	for _, t := range res.Tasks {
		out.Tasks = append(out.Tasks, task{
			ID: t.ID, Title: t.Title, Status: string(t.Status), Project: t.ProjectName,
		})
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func init() {
	scanCmd.Flags().BoolVar(&scanStrict, "strict", false, "fail on any error or warning")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "emit JSON")
	rootCmd.AddCommand(scanCmd)
}
