package query

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMarshalComparisons(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   string
	}{
		{"eq", Eq("state", "finished"), `{"state":"finished"}`},
		{"ne", Ne("state", "crashed"), `{"state":{"$ne":"crashed"}}`},
		{"gt", Gt("summary.loss", 0.5), `{"summary.loss":{"$gt":0.5}}`},
		{"gte", Gte("config.epochs", 10), `{"config.epochs":{"$gte":10}}`},
		{"lt", Lt("summary.loss", 0.5), `{"summary.loss":{"$lt":0.5}}`},
		{"lte", Lte("summary.loss", 0.5), `{"summary.loss":{"$lte":0.5}}`},
		{"in", In("tags", "baseline", "ablation"), `{"tags":{"$in":["baseline","ablation"]}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MarshalFilter(tt.filter)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, got)
		})
	}
}

func TestMarshalCombinators(t *testing.T) {
	got, err := MarshalFilter(And(
		Eq("state", "finished"),
		Or(Gt("summary.acc", 0.9), Lt("summary.loss", 0.1)),
	))
	require.NoError(t, err)
	require.JSONEq(t,
		`{"$and":[{"state":"finished"},{"$or":[{"summary.acc":{"$gt":0.9}},{"summary.loss":{"$lt":0.1}}]}]}`,
		got)
}

func TestMarshalNilFilterMatchesEverything(t *testing.T) {
	got, err := MarshalFilter(nil)
	require.NoError(t, err)
	require.Equal(t, "{}", got)
}

func TestUnsupportedOperatorIsRejected(t *testing.T) {
	_, err := MarshalFilter(Op("state", "$regex", "fin.*"))
	var unsupported *UnsupportedFilterError
	require.ErrorAs(t, err, &unsupported)
	require.Contains(t, unsupported.Clause, "$regex")
	require.Contains(t, unsupported.Clause, "state")
}

func TestUnsupportedOperatorInsideCombinator(t *testing.T) {
	_, err := MarshalFilter(And(
		Eq("state", "finished"),
		Op("name", "$exists", true),
	))
	var unsupported *UnsupportedFilterError
	require.ErrorAs(t, err, &unsupported)
}

func TestParseClauses(t *testing.T) {
	tests := []struct {
		clause string
		want   string
	}{
		{"state=finished", `{"state":"finished"}`},
		{"state!=crashed", `{"state":{"$ne":"crashed"}}`},
		{"summary.loss<0.5", `{"summary.loss":{"$lt":0.5}}`},
		{"summary.loss<=0.5", `{"summary.loss":{"$lte":0.5}}`},
		{"summary.acc>0.9", `{"summary.acc":{"$gt":0.9}}`},
		{"config.epochs>=10", `{"config.epochs":{"$gte":10}}`},
		{"tags in baseline,ablation", `{"tags":{"$in":["baseline","ablation"]}}`},
		{"config.use_bias=true", `{"config.use_bias":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.clause, func(t *testing.T) {
			filter, err := Parse(tt.clause)
			require.NoError(t, err)
			got, err := MarshalFilter(filter)
			require.NoError(t, err)
			require.JSONEq(t, tt.want, got)
		})
	}
}

func TestParseRejectsUnknownClause(t *testing.T) {
	_, err := Parse("state finished")
	var unsupported *UnsupportedFilterError
	require.ErrorAs(t, err, &unsupported)
	require.Contains(t, unsupported.Clause, "state finished")
}

func TestParseAllConjoins(t *testing.T) {
	filter, err := ParseAll([]string{"state=finished", "summary.loss<0.5"})
	require.NoError(t, err)
	got, err := MarshalFilter(filter)
	require.NoError(t, err)
	require.JSONEq(t, `{"$and":[{"state":"finished"},{"summary.loss":{"$lt":0.5}}]}`, got)
}

func TestParseAllEmptyMeansNoFilter(t *testing.T) {
	filter, err := ParseAll(nil)
	require.NoError(t, err)
	require.Nil(t, filter)
}
