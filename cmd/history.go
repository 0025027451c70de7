package cmd

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aind/wandb-results/internal/models"
	"github.com/aind/wandb-results/internal/wandb"
)

var historyCmd = &cobra.Command{
	Use:   "history <run-id>",
	Short: "Fetch metric history of a run",
	Long: `Fetch the step-indexed metric history of a run. Each row carries the
step, the absolute timestamp, and the elapsed wall time since the run's
first record.`,
	Example: `  # Full history as CSV
  wandb-results history abc123 --output csv

  # Only the loss curve
  wandb-results history abc123 --key loss`,
	Args: cobra.ExactArgs(1),
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringArray("key", []string{}, "Metric key to retain (can be specified multiple times; default all)")
	historyCmd.Flags().String("output", "csv", "Output format (csv/json/yaml)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	keys, _ := cmd.Flags().GetStringArray("key")
	output, _ := cmd.Flags().GetString("output")

	rows, err := client.History(context.Background(), args[0], wandb.HistoryOptions{Keys: keys})
	if err != nil {
		return fmt.Errorf("failed to get history: %w", err)
	}

	if output == "csv" {
		return writeHistoryCSV(rows)
	}
	return render(output, rows, nil)
}

func writeHistoryCSV(rows []models.HistoryRow) error {
	// Union of metric names across rows, since metrics are sparse.
	seen := make(map[string]bool)
	var metrics []string
	for _, row := range rows {
		for key := range row.Metrics {
			if !seen[key] {
				seen[key] = true
				metrics = append(metrics, key)
			}
		}
	}
	sort.Strings(metrics)

	w := csv.NewWriter(os.Stdout)
	header := append([]string{"step", "timestamp", "elapsed_seconds"}, metrics...)
	if err := w.Write(header); err != nil {
		return err
	}
	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.Step, 10),
			row.Timestamp.Format("2006-01-02T15:04:05.000Z07:00"),
			strconv.FormatFloat(row.Elapsed.Seconds(), 'g', -1, 64),
		}
		for _, key := range metrics {
			if v, ok := row.Metrics[key]; ok {
				record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
			} else {
				record = append(record, "")
			}
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
