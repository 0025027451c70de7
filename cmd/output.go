package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aind/wandb-results/internal/flatten"
)

// Output formats supported by the read commands
var validOutputs = map[string]bool{
	"table": true, "json": true, "yaml": true,
}

func render(format string, v any, table *flatten.Table) error {
	switch format {
	case "json":
		return renderJSON(v)
	case "yaml":
		return renderYAML(v)
	case "table":
		if table == nil {
			return renderYAML(v)
		}
		return renderTable(table)
	default:
		return fmt.Errorf("invalid output format: %s (valid: table, json, yaml)", format)
	}
}

func renderJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func renderYAML(v any) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	return encoder.Encode(v)
}

func renderTable(table *flatten.Table) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for i, col := range table.Columns {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, col)
	}
	fmt.Fprintln(w)
	for _, row := range table.Rows {
		for i, col := range table.Columns {
			if i > 0 {
				fmt.Fprint(w, "\t")
			}
			fmt.Fprint(w, formatCell(row[col]))
		}
		fmt.Fprintln(w)
	}
	return w.Flush()
}

func formatCell(v any) string {
	switch value := v.(type) {
	case nil:
		return "null"
	case time.Time:
		return value.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	case fmt.Stringer:
		return value.String()
	default:
		return fmt.Sprintf("%v", value)
	}
}
