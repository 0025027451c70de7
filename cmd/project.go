package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:   "projects",
	Short: "List projects",
	Long:  "List all project names under the configured entity",
	RunE:  listProjects,
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}

func listProjects(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	projects, err := client.Projects(context.Background())
	if err != nil {
		return fmt.Errorf("failed to list projects: %w", err)
	}

	for _, name := range projects {
		fmt.Println(name)
	}
	return nil
}
