package flatten

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aind/wandb-results/internal/models"
)

func TestFlattenNestedMapping(t *testing.T) {
	out, err := Flatten(map[string]any{
		"a": map[string]any{"b": 1, "c": 2},
	}, "")
	require.NoError(t, err)
	require.Equal(t, map[string]any{"a.b": 1, "a.c": 2}, out)
}

func TestFlattenDeepNesting(t *testing.T) {
	out, err := Flatten(map[string]any{
		"model": map[string]any{
			"rnn": map[string]any{"hidden": 64, "layers": 2},
		},
		"lr": 0.001,
	}, "config.")
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"config.model.rnn.hidden": 64,
		"config.model.rnn.layers": 2,
		"config.lr":               0.001,
	}, out)
}

func TestFlattenCollisionFails(t *testing.T) {
	_, err := Flatten(map[string]any{
		"a":   map[string]any{"b": 1},
		"a.b": 2,
	}, "")
	var collision *CollisionError
	require.ErrorAs(t, err, &collision)
	require.Equal(t, "a.b", collision.Key)
}

func TestFlattenSequencesAreOpaqueLeaves(t *testing.T) {
	out, err := Flatten(map[string]any{
		"layers": []any{64, 32},
		"null":   nil,
		"flag":   true,
	}, "")
	require.NoError(t, err)
	require.Equal(t, []any{64, 32}, out["layers"])
	require.Contains(t, out, "null")
	require.Equal(t, true, out["flag"])
}

func TestFlattenIsDeterministic(t *testing.T) {
	m := map[string]any{"a": map[string]any{"b": 1}, "c": 2}
	first, err := Flatten(m, "")
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Flatten(m, "")
		require.NoError(t, err)
		require.Equal(t, first, again)
	}
}

func TestKindOf(t *testing.T) {
	require.Equal(t, KindMapping, KindOf(map[string]any{}))
	require.Equal(t, KindSequence, KindOf([]any{1}))
	require.Equal(t, KindScalar, KindOf("s"))
	require.Equal(t, KindScalar, KindOf(1.5))
	require.Equal(t, KindScalar, KindOf(nil))
}

func testRun(id string, config, summary map[string]any) *models.Run {
	return &models.Run{
		ID:        id,
		Name:      "training-" + id,
		State:     models.RunStateFinished,
		Tags:      []string{"disrnn"},
		Config:    config,
		Summary:   summary,
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Project:   "disrnn",
		Entity:    "aind",
	}
}

func TestRunRow(t *testing.T) {
	run := testRun("a",
		map[string]any{"model": map[string]any{"type": "disrnn"}},
		map[string]any{"likelihood": 0.95},
	)
	row, err := RunRow(run)
	require.NoError(t, err)
	require.Equal(t, "training-a", row["name"])
	require.Equal(t, "finished", row["state"])
	require.Equal(t, "disrnn", row["tags"])
	require.Equal(t, "disrnn", row["config.model.type"])
	require.Equal(t, 0.95, row["summary.likelihood"])
}

func TestNewTableMergesHeterogeneousRuns(t *testing.T) {
	runs := []*models.Run{
		testRun("a", map[string]any{"lr": 0.001}, map[string]any{"loss": 0.3}),
		testRun("b", map[string]any{"lr": 0.01}, map[string]any{"acc": 0.9}),
	}
	table, err := NewTable(runs)
	require.NoError(t, err)

	require.Equal(t, []string{
		"name", "state", "tags", "created_at",
		"config.lr", "summary.acc", "summary.loss",
	}, table.Columns)
	require.Len(t, table.Rows, 2)

	// missing cells carry the explicit marker, rows are never dropped
	require.Equal(t, Absent, table.Rows[0]["summary.acc"])
	require.Equal(t, Absent, table.Rows[1]["summary.loss"])
	require.Equal(t, 0.3, table.Rows[0]["summary.loss"])
	require.Equal(t, 0.9, table.Rows[1]["summary.acc"])
}

func TestNewTablePropagatesCollision(t *testing.T) {
	runs := []*models.Run{
		testRun("a", map[string]any{
			"opt":    map[string]any{"lr": 0.1},
			"opt.lr": 0.2,
		}, nil),
	}
	_, err := NewTable(runs)
	var collision *CollisionError
	require.ErrorAs(t, err, &collision)
}
