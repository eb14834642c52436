package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sitevisit/backend/cli/internal/api"
	"github.com/sitevisit/backend/cli/internal/output"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	Aliases: []string{"project"},
	Short:   "Browse the projects you can book visits for",
}

var projectsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List projects available for booking",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp api.Response[[]api.Project]
		if err := apiClient.Get("/projects/for-selection", nil, &resp); err != nil {
			return fmt.Errorf("listing projects: %w", err)
		}

		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		output.ProjectTable(resp.Data)
		return nil
	},
}

func init() {
	projectsCmd.AddCommand(projectsLsCmd)
	rootCmd.AddCommand(projectsCmd)
}
