package wandb

import (
	"context"
	"sort"

	"github.com/aind/wandb-results/internal/models"
)

// HistoryOptions shape a history fetch. Keys restricts the metrics retained
// per row; step and elapsed wall time are always present. A key that was
// never logged is simply absent from the output, not an error.
type HistoryOptions struct {
	Project string
	Keys    []string
}

// History reconstructs the step-indexed metric history of a run. Rows come
// back sorted ascending by step, duplicate steps preserved in the order the
// backend sent them. Elapsed is each row's timestamp minus the timestamp of
// the first record the backend returned, so the first recorded row is always
// 0 regardless of key projection.
func (c *Client) History(ctx context.Context, runID string, opts HistoryOptions) ([]models.HistoryRow, error) {
	project, err := c.config.ResolveProject(opts.Project)
	if err != nil {
		return nil, err
	}

	var records []models.HistoryRecord
	err = c.call(ctx, "get history", func(ctx context.Context) error {
		var err error
		records, err = c.backend.GetHistory(ctx, HistoryRequest{
			Entity:  c.config.Entity,
			Project: project,
			RunID:   runID,
			Keys:    opts.Keys,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	// The wall-clock base is the first record actually returned, captured
	// before sorting and before any key projection.
	base := records[0].Timestamp

	rows := make([]models.HistoryRow, 0, len(records))
	for _, rec := range records {
		rows = append(rows, models.HistoryRow{
			Step:      rec.Step,
			Timestamp: rec.Timestamp,
			Elapsed:   rec.Timestamp.Sub(base),
			Metrics:   projectKeys(rec.Metrics, opts.Keys),
		})
	}

	// Stable sort keeps backend order for duplicate steps; the backend,
	// not this layer, owns step uniqueness.
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Step < rows[j].Step })
	return rows, nil
}

func projectKeys(metrics map[string]float64, keys []string) map[string]float64 {
	if len(keys) == 0 {
		return metrics
	}
	out := make(map[string]float64, len(keys))
	for _, key := range keys {
		if v, ok := metrics[key]; ok {
			out[key] = v
		}
	}
	return out
}
