package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleet/internal/bridge"
	"github.com/randalmurphal/fleet/internal/journal"
	"github.com/randalmurphal/fleet/internal/registry"
	"github.com/randalmurphal/fleet/internal/scanner"
	"github.com/randalmurphal/fleet/internal/tracker"
)

var (
	syncPush   bool
	syncPull   bool
	syncDryRun bool
	syncRepo   string
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Sync tasks with the configured issue tracker",
	Long: `sync mirrors tasks outward (--push: create, update, and close issues)
and applies remote changes inward (--pull: derive statuses from issue
state and labels). With neither flag, sync pushes then pulls. The
tracker repository comes from --repo, or from the first registry project
with a repo configured.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := registry.Load(flagWorkspace)
		if err != nil {
			return err
		}

		repo := syncRepo
		if repo == "" {
			for i := range reg.Projects {
				if reg.Projects[i].Repo != "" {
					repo = reg.Projects[i].Repo
					break
				}
			}
		}
		if repo == "" {
			return fmt.Errorf("no tracker repository: pass --repo or set repo on a registry project")
		}
		owner, name, err := tracker.ParseOwnerRepo(repo)
		if err != nil {
			return err
		}

		provider, err := tracker.NewProvider(cfg.Tracker.Provider, tracker.Config{
			Owner:   owner,
			Repo:    name,
			BaseURL: cfg.Tracker.BaseURL,
			Token:   tracker.TokenFromEnv(cfg.Tracker.Provider, cfg.Tracker.TokenEnvVar),
		})
		if err != nil {
			return err
		}
		if err := provider.CheckAuth(cmd.Context()); err != nil {
			return err
		}

		j := journal.New(flagWorkspace, reg)
		b := bridge.New(flagWorkspace, provider, j, cfg.Tracker.Concurrency)
		opts := bridge.Options{DryRun: syncDryRun}

		doPush, doPull := syncPush, syncPull
		if !doPush && !doPull {
			doPush, doPull = true, true
		}

		if doPush {
			res, err := scanner.Scan(flagWorkspace, reg, scanner.Options{})
			if err != nil {
				return err
			}
			out, err := b.Push(cmd.Context(), res.Tasks, opts)
			if err != nil {
				return err
			}
			fmt.Printf("push: created=%d updated=%d closed=%d errors=%d\n",
				out.Created, out.Updated, out.Closed, len(out.Errors))
			printSyncErrors(out)
		}
		if doPull {
			out, err := b.Pull(cmd.Context(), opts)
			if err != nil {
				return err
			}
			fmt.Printf("pull: applied=%d skipped=%d errors=%d\n",
				out.Applied, out.Skipped, len(out.Errors))
			printSyncErrors(out)
		}
		return nil
	},
}

func printSyncErrors(res *bridge.SyncResult) {
	for _, e := range res.Errors {
		if e.TaskID != "" {
			fmt.Printf("  error [%s %s]: %s\n", e.Op, e.TaskID, e.Err)
		} else {
			fmt.Printf("  error [%s #%d]: %s\n", e.Op, e.Issue, e.Err)
		}
	}
}

func init() {
	syncCmd.Flags().BoolVar(&syncPush, "push", false, "mirror tasks to the tracker")
	syncCmd.Flags().BoolVar(&syncPull, "pull", false, "apply tracker state to tasks")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "report without changing anything")
	syncCmd.Flags().StringVar(&syncRepo, "repo", "", "tracker repository (owner/name or URL)")
	rootCmd.AddCommand(syncCmd)
}
