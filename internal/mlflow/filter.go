package mlflow

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/aind/wandb-results/internal/query"
)

// MLflow's search dialect is a conjunction of comparisons over attributes,
// params, metrics, and tags. The client's document-style filter translates
// clause by clause; disjunction and membership have no equivalent there and
// are rejected with UnsupportedFilterError.

var comparatorByOp = map[string]string{
	query.OpNe:  "!=",
	query.OpGt:  ">",
	query.OpGte: ">=",
	query.OpLt:  "<",
	query.OpLte: "<=",
}

// Run states map onto MLflow run statuses.
var statusByState = map[string]string{
	"running":  "RUNNING",
	"finished": "FINISHED",
	"failed":   "FAILED",
	"crashed":  "FAILED",
	"killed":   "KILLED",
}

// translateFilter converts the encoded filter document into an MLflow search
// filter string. The empty document translates to the empty filter.
func translateFilter(doc string) (string, error) {
	if doc == "" || doc == "{}" {
		return "", nil
	}
	var parsed map[string]any
	if err := json.Unmarshal([]byte(doc), &parsed); err != nil {
		return "", fmt.Errorf("failed to parse filter document: %w", err)
	}
	clauses, err := translateNode(parsed)
	if err != nil {
		return "", err
	}
	return strings.Join(clauses, " and "), nil
}

func translateNode(node map[string]any) ([]string, error) {
	// Deterministic clause order regardless of map iteration.
	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	for _, key := range keys {
		value := node[key]
		switch key {
		case query.OpAnd:
			subs, ok := value.([]any)
			if !ok {
				return nil, &query.UnsupportedFilterError{Clause: key}
			}
			for _, sub := range subs {
				subNode, ok := sub.(map[string]any)
				if !ok {
					return nil, &query.UnsupportedFilterError{Clause: fmt.Sprintf("%v", sub)}
				}
				translated, err := translateNode(subNode)
				if err != nil {
					return nil, err
				}
				clauses = append(clauses, translated...)
			}
		case query.OpOr:
			return nil, &query.UnsupportedFilterError{Clause: "$or has no MLflow search equivalent"}
		default:
			clause, err := translateComparison(key, value)
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, clause)
		}
	}
	return clauses, nil
}

func translateComparison(field string, value any) (string, error) {
	op := "="
	if nested, ok := value.(map[string]any); ok {
		if len(nested) != 1 {
			return "", &query.UnsupportedFilterError{Clause: field}
		}
		for rawOp, rawValue := range nested {
			comparator, ok := comparatorByOp[rawOp]
			if !ok {
				return "", &query.UnsupportedFilterError{Clause: fmt.Sprintf("%s %s", field, rawOp)}
			}
			op = comparator
			value = rawValue
		}
	}
	column, literal, err := mapField(field, value)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s %s %s", column, op, literal), nil
}

func mapField(field string, value any) (column, literal string, err error) {
	switch {
	case field == "state":
		status, ok := statusByState[fmt.Sprintf("%v", value)]
		if !ok {
			return "", "", &query.UnsupportedFilterError{Clause: fmt.Sprintf("state=%v", value)}
		}
		return "attributes.status", quote(status), nil
	case field == "name" || field == "display_name":
		return "tags.`mlflow.runName`", quoteAny(value), nil
	case field == "created_at":
		return "attributes.start_time", bare(value), nil
	case strings.HasPrefix(field, "config."):
		return "params.`" + strings.TrimPrefix(field, "config.") + "`", quoteAny(value), nil
	case strings.HasPrefix(field, "summary."):
		return "metrics.`" + strings.TrimPrefix(field, "summary.") + "`", bare(value), nil
	case strings.HasPrefix(field, "tags."):
		return "tags.`" + strings.TrimPrefix(field, "tags.") + "`", quoteAny(value), nil
	default:
		return "", "", &query.UnsupportedFilterError{Clause: field}
	}
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteAny(v any) string {
	return quote(fmt.Sprintf("%v", v))
}

func bare(v any) string {
	return fmt.Sprintf("%v", v)
}

// translateOrder converts the "-field" descending convention into an MLflow
// ORDER BY term. Unknown fields pass through as attribute names.
func translateOrder(order string) string {
	if order == "" {
		return ""
	}
	direction := "ASC"
	field := order
	if strings.HasPrefix(order, "-") {
		direction = "DESC"
		field = order[1:]
	}
	var column string
	switch {
	case field == "created_at":
		column = "attributes.start_time"
	case field == "name" || field == "display_name":
		column = "tags.`mlflow.runName`"
	case strings.HasPrefix(field, "summary."):
		column = "metrics.`" + strings.TrimPrefix(field, "summary.") + "`"
	case strings.HasPrefix(field, "config."):
		column = "params.`" + strings.TrimPrefix(field, "config.") + "`"
	default:
		column = "attributes." + field
	}
	return column + " " + direction
}
