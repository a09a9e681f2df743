package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleet/internal/jira"
	"github.com/randalmurphal/fleet/internal/registry"
)

var (
	importProject string
	importJQL     string
	importDryRun  bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import tasks from an external system",
}

var importJiraCmd = &cobra.Command{
	Use:   "jira",
	Short: "Import Jira issues into a project's task file",
	Long: `import jira runs a JQL query and merges the results into the given
project's task file. Imports are idempotent on the Jira issue key:
re-running refreshes titles, descriptions, labels, and blockers of
previously imported tasks without touching their status or history.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if importProject == "" || importJQL == "" {
			return fmt.Errorf("import jira requires --project and --jql")
		}
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := registry.Load(flagWorkspace)
		if err != nil {
			return err
		}

		client, err := jira.NewClient(cfg.Jira)
		if err != nil {
			return err
		}
		if err := client.CheckAuth(cmd.Context()); err != nil {
			return err
		}

		im := jira.NewImporter(client, flagWorkspace, reg)
		res, err := im.Import(cmd.Context(), importProject, importJQL, importDryRun)
		if err != nil {
			return err
		}
		fmt.Printf("fetched=%d added=%d updated=%d unchanged=%d\n",
			res.Fetched, res.Added, res.Updated, res.Skipped)
		return nil
	},
}

func init() {
	importJiraCmd.Flags().StringVar(&importProject, "project", "", "registry project to import into")
	importJiraCmd.Flags().StringVar(&importJQL, "jql", "", "JQL query selecting the issues")
	importJiraCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "report without writing the task file")
	importCmd.AddCommand(importJiraCmd)
	rootCmd.AddCommand(importCmd)
}
