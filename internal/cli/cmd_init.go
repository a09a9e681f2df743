package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/fleet/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default fleet.yaml into the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := config.WriteDefault(flagWorkspace)
		if err != nil {
			return err
		}
		fmt.Printf("wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
