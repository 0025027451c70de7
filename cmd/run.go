package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aind/wandb-results/internal/flatten"
	"github.com/aind/wandb-results/internal/models"
	"github.com/aind/wandb-results/internal/query"
	"github.com/aind/wandb-results/internal/wandb"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Inspect runs",
	Long:  "List runs and fetch run metadata",
}

var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs in a project",
	Long: `List runs in a project with optional filters and ordering.
Filters are clauses over run fields, e.g. state=finished, summary.loss<0.5,
tags in baseline,ablation. Multiple --filter flags are conjoined.`,
	Example: `  # Finished runs, most recent first
  wandb-results run list --filter state=finished --order -created_at

  # Runs whose final loss beat a threshold, as a merged table
  wandb-results run list --filter "summary.loss<0.35" --output table`,
	RunE: runList,
}

var runGetCmd = &cobra.Command{
	Use:   "get <run-id>",
	Short: "Get one run",
	Long:  "Fetch the configuration, summary, and tags of a single run by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.AddCommand(runListCmd)
	runCmd.AddCommand(runGetCmd)

	// List command flags
	runListCmd.Flags().StringArray("filter", []string{}, "Filter clause (can be specified multiple times)")
	runListCmd.Flags().String("order", "", "Sort field; prefix with - for descending")
	runListCmd.Flags().Int("limit", 0, "Stop after this many runs (0 = all)")
	runListCmd.Flags().Int("page-size", 0, "Runs per page (default from config)")
	runListCmd.Flags().String("output", "table", "Output format (table/json/yaml)")

	// Get command flags
	runGetCmd.Flags().String("output", "yaml", "Output format (json/yaml)")
}

func runList(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	clauses, _ := cmd.Flags().GetStringArray("filter")
	order, _ := cmd.Flags().GetString("order")
	limit, _ := cmd.Flags().GetInt("limit")
	pageSize, _ := cmd.Flags().GetInt("page-size")
	output, _ := cmd.Flags().GetString("output")

	filter, err := query.ParseAll(clauses)
	if err != nil {
		return err
	}

	it, err := client.Runs(wandb.ListRunsOptions{
		Filter:   filter,
		Order:    order,
		PageSize: pageSize,
	})
	if err != nil {
		return err
	}

	ctx := context.Background()
	var runs []*models.Run
	for it.Next(ctx) {
		runs = append(runs, it.Run())
		if limit > 0 && len(runs) >= limit {
			break
		}
	}
	if err := it.Err(); err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	table, err := flatten.NewTable(runs)
	if err != nil {
		return err
	}
	return render(output, runs, table)
}

func runGet(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	output, _ := cmd.Flags().GetString("output")

	run, err := client.GetRun(context.Background(), args[0], "")
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}
	return render(output, run, nil)
}
