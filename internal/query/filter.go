// Package query builds the declarative run filters the tracking service
// accepts. Filters are a structured predicate over run fields (state, tags,
// config/summary leaves) encoded into the service's document-style query
// JSON. Only the comparison and logical-combinator subset is supported;
// anything else is rejected at construction instead of being passed through
// and silently mishandled.
package query

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Operators accepted by the service that this client guarantees.
const (
	OpEq  = "$eq"
	OpNe  = "$ne"
	OpGt  = "$gt"
	OpGte = "$gte"
	OpLt  = "$lt"
	OpLte = "$lte"
	OpIn  = "$in"
	OpAnd = "$and"
	OpOr  = "$or"
)

var comparisonOps = map[string]bool{
	OpEq: true, OpNe: true, OpGt: true, OpGte: true, OpLt: true, OpLte: true, OpIn: true,
}

// UnsupportedFilterError reports a filter clause outside the guaranteed
// operator subset.
type UnsupportedFilterError struct {
	Clause string
}

func (e *UnsupportedFilterError) Error() string {
	return fmt.Sprintf("unsupported filter clause: %s", e.Clause)
}

// Filter is one node of a filter expression tree.
type Filter interface {
	// Encode renders the node into the service's query document.
	Encode() (map[string]any, error)
}

type comparison struct {
	field string
	op    string
	value any
}

func (c comparison) Encode() (map[string]any, error) {
	if !comparisonOps[c.op] {
		return nil, &UnsupportedFilterError{Clause: fmt.Sprintf("%s %s %v", c.field, c.op, c.value)}
	}
	if c.op == OpEq {
		return map[string]any{c.field: c.value}, nil
	}
	return map[string]any{c.field: map[string]any{c.op: c.value}}, nil
}

type combinator struct {
	op      string
	clauses []Filter
}

func (c combinator) Encode() (map[string]any, error) {
	encoded := make([]map[string]any, 0, len(c.clauses))
	for _, clause := range c.clauses {
		m, err := clause.Encode()
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, m)
	}
	return map[string]any{c.op: encoded}, nil
}

func Eq(field string, value any) Filter  { return comparison{field, OpEq, value} }
func Ne(field string, value any) Filter  { return comparison{field, OpNe, value} }
func Gt(field string, value any) Filter  { return comparison{field, OpGt, value} }
func Gte(field string, value any) Filter { return comparison{field, OpGte, value} }
func Lt(field string, value any) Filter  { return comparison{field, OpLt, value} }
func Lte(field string, value any) Filter { return comparison{field, OpLte, value} }

// In matches runs whose field value is one of values. For the tags field the
// service treats this as set membership.
func In(field string, values ...any) Filter { return comparison{field, OpIn, values} }

func And(clauses ...Filter) Filter { return combinator{OpAnd, clauses} }
func Or(clauses ...Filter) Filter  { return combinator{OpOr, clauses} }

// Op builds a comparison with an explicit operator string. Operators outside
// the supported set fail at Encode with UnsupportedFilterError; this is the
// escape hatch for callers constructing filters from external input.
func Op(field, operator string, value any) Filter {
	return comparison{field, operator, value}
}

// MarshalFilter encodes a filter tree to the JSON document sent to the
// service. A nil filter encodes to the empty document (match everything).
func MarshalFilter(f Filter) (string, error) {
	if f == nil {
		return "{}", nil
	}
	doc, err := f.Encode()
	if err != nil {
		return "", err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("failed to marshal filter: %w", err)
	}
	return string(raw), nil
}

// parse operators ordered so two-character forms win over their prefixes.
var parseOps = []struct {
	token string
	op    string
}{
	{"!=", OpNe},
	{">=", OpGte},
	{"<=", OpLte},
	{"=", OpEq},
	{">", OpGt},
	{"<", OpLt},
}

// Parse converts one textual clause (e.g. "state=finished",
// "summary.loss<0.5", "tags in baseline,ablation") into a Filter. Multiple
// clauses are combined by the caller with And.
func Parse(clause string) (Filter, error) {
	trimmed := strings.TrimSpace(clause)

	if field, rest, ok := strings.Cut(trimmed, " in "); ok {
		values := make([]any, 0)
		for _, v := range strings.Split(rest, ",") {
			values = append(values, coerce(strings.TrimSpace(v)))
		}
		return In(strings.TrimSpace(field), values...), nil
	}

	for _, p := range parseOps {
		if field, value, ok := strings.Cut(trimmed, p.token); ok {
			return comparison{
				field: strings.TrimSpace(field),
				op:    p.op,
				value: coerce(strings.TrimSpace(value)),
			}, nil
		}
	}
	return nil, &UnsupportedFilterError{Clause: clause}
}

// ParseAll parses each clause and conjoins them. No clauses means no filter.
func ParseAll(clauses []string) (Filter, error) {
	if len(clauses) == 0 {
		return nil, nil
	}
	parsed := make([]Filter, 0, len(clauses))
	for _, c := range clauses {
		f, err := Parse(c)
		if err != nil {
			return nil, err
		}
		parsed = append(parsed, f)
	}
	if len(parsed) == 1 {
		return parsed[0], nil
	}
	return And(parsed...), nil
}

func coerce(s string) any {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}
