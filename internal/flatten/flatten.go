package flatten

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aind/wandb-results/internal/models"
)

// CollisionError reports two nesting paths producing the same dot-path key,
// e.g. {"a": {"b": 1}, "a.b": 2}.
type CollisionError struct {
	Key string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("flatten: key collision on %q", e.Key)
}

// Flatten descends nested mappings joining keys with "." under prefix.
// Leaves are scalars and sequences. Colliding result keys fail with
// CollisionError instead of silently overwriting.
func Flatten(m map[string]any, prefix string) (map[string]any, error) {
	out := make(map[string]any, len(m))
	if err := flattenInto(out, m, prefix); err != nil {
		return nil, err
	}
	return out, nil
}

func flattenInto(out map[string]any, m map[string]any, prefix string) error {
	for key, value := range m {
		path := prefix + key
		if KindOf(value) == KindMapping {
			if err := flattenInto(out, value.(map[string]any), path+"."); err != nil {
				return err
			}
			continue
		}
		if _, exists := out[path]; exists {
			return &CollisionError{Key: path}
		}
		out[path] = value
	}
	return nil
}

// RunRow flattens one run into a table row: the fixed name/state/tags/
// created_at columns plus config.* and summary.* dot-path columns.
func RunRow(run *models.Run) (map[string]any, error) {
	row := map[string]any{
		"name":       run.Name,
		"state":      string(run.State),
		"tags":       strings.Join(run.Tags, ","),
		"created_at": run.CreatedAt,
	}
	if err := flattenInto(row, run.Config, "config."); err != nil {
		return nil, fmt.Errorf("run %s config: %w", run.ID, err)
	}
	if err := flattenInto(row, run.Summary, "summary."); err != nil {
		return nil, fmt.Errorf("run %s summary: %w", run.ID, err)
	}
	return row, nil
}

// Table is the merged tabular view across runs. Columns is the union of all
// row keys; cells a run never produced hold Absent.
type Table struct {
	Columns []string
	Rows    []map[string]any
}

// fixed columns come first, in this order, before the dynamic dot-path ones.
var fixedColumns = []string{"name", "state", "tags", "created_at"}

// NewTable flattens each run and merges the rows. Runs logging different
// metrics keep their rows; the missing cells are filled with Absent.
func NewTable(runs []*models.Run) (*Table, error) {
	rows := make([]map[string]any, 0, len(runs))
	seen := make(map[string]bool, len(fixedColumns))
	for _, c := range fixedColumns {
		seen[c] = true
	}
	var dynamic []string
	for _, run := range runs {
		row, err := RunRow(run)
		if err != nil {
			return nil, err
		}
		for key := range row {
			if !seen[key] {
				seen[key] = true
				dynamic = append(dynamic, key)
			}
		}
		rows = append(rows, row)
	}
	sort.Strings(dynamic)

	columns := append(append([]string{}, fixedColumns...), dynamic...)
	for _, row := range rows {
		for _, col := range columns {
			if _, ok := row[col]; !ok {
				row[col] = Absent
			}
		}
	}
	return &Table{Columns: columns, Rows: rows}, nil
}
