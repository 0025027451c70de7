package wandb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/aind/wandb-results/internal/models"
	"github.com/aind/wandb-results/internal/query"
)

func seedRuns(backend *fakeBackend, n int) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		backend.runs = append(backend.runs, &models.Run{
			ID:        "run-" + string(rune('a'+i)),
			Name:      "training-" + string(rune('a'+i)),
			State:     models.RunStateFinished,
			Project:   "disrnn",
			Entity:    "aind",
			CreatedAt: base.Add(time.Duration(i) * time.Hour),
		})
	}
}

func TestRunsConsumesAllPagesExactlyOnce(t *testing.T) {
	backend := newFakeBackend()
	seedRuns(backend, 5) // 3 pages at page size 2
	client, err := NewClient(testConfig(), backend)
	require.NoError(t, err)

	it, err := client.Runs(ListRunsOptions{})
	require.NoError(t, err)

	ctx := context.Background()
	var ids []string
	for it.Next(ctx) {
		ids = append(ids, it.Run().ID)
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"run-a", "run-b", "run-c", "run-d", "run-e"}, ids)
	require.Equal(t, 3, backend.listRunsCalls)
}

func TestRunsFetchesPagesLazily(t *testing.T) {
	backend := newFakeBackend()
	seedRuns(backend, 5)
	client, err := NewClient(testConfig(), backend)
	require.NoError(t, err)

	it, err := client.Runs(ListRunsOptions{})
	require.NoError(t, err)
	require.Equal(t, 0, backend.listRunsCalls, "no request before consumption")

	ctx := context.Background()
	require.True(t, it.Next(ctx))
	require.True(t, it.Next(ctx))
	require.Equal(t, 1, backend.listRunsCalls, "two runs fit in one page")

	require.True(t, it.Next(ctx))
	require.Equal(t, 2, backend.listRunsCalls)
}

func TestRunsSendsFilterOrderAndPageSize(t *testing.T) {
	backend := newFakeBackend()
	seedRuns(backend, 1)
	client, err := NewClient(testConfig(), backend)
	require.NoError(t, err)

	it, err := client.Runs(ListRunsOptions{
		Filter:   query.Eq("state", "finished"),
		Order:    "-created_at",
		PageSize: 10,
	})
	require.NoError(t, err)
	it.Next(context.Background())
	require.NoError(t, it.Err())

	require.JSONEq(t, `{"state":"finished"}`, backend.lastListReq.Filter)
	require.Equal(t, "-created_at", backend.lastListReq.Order)
	require.Equal(t, 10, backend.lastListReq.PageSize)
	require.Equal(t, "aind", backend.lastListReq.Entity)
}

func TestRunsRejectsUnsupportedFilterBeforeAnyRequest(t *testing.T) {
	backend := newFakeBackend()
	client, err := NewClient(testConfig(), backend)
	require.NoError(t, err)

	_, err = client.Runs(ListRunsOptions{
		Filter: query.Op("state", "$regex", "fin.*"),
	})
	var unsupported *query.UnsupportedFilterError
	require.ErrorAs(t, err, &unsupported)
	require.Contains(t, unsupported.Clause, "$regex")
	require.Equal(t, 0, backend.listRunsCalls)
}

func TestRunsUnknownProject(t *testing.T) {
	backend := newFakeBackend()
	client, err := NewClient(testConfig(), backend)
	require.NoError(t, err)

	_, err = client.AllRuns(context.Background(), ListRunsOptions{Project: "nope"})
	var notFound *ProjectNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "nope", notFound.Project)
}

func TestRunsRetriesTransientFailures(t *testing.T) {
	backend := newFakeBackend()
	seedRuns(backend, 1)
	backend.failListRuns = 2 // two failures, then success, within MaxRetries=2
	client, err := NewClient(testConfig(), backend)
	require.NoError(t, err)

	runs, err := client.AllRuns(context.Background(), ListRunsOptions{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, 3, backend.listRunsCalls)
}

func TestRunsRetryExhaustionIsTerminal(t *testing.T) {
	backend := newFakeBackend()
	seedRuns(backend, 1)
	backend.failListRuns = 10
	client, err := NewClient(testConfig(), backend)
	require.NoError(t, err)

	_, err = client.AllRuns(context.Background(), ListRunsOptions{})
	var timeout *TransportTimeoutError
	require.ErrorAs(t, err, &timeout)
	require.Equal(t, 3, timeout.Attempts) // initial try + MaxRetries
}

func TestGetRun(t *testing.T) {
	backend := newFakeBackend()
	seedRuns(backend, 2)
	client, err := NewClient(testConfig(), backend)
	require.NoError(t, err)

	run, err := client.GetRun(context.Background(), "run-b", "")
	require.NoError(t, err)
	require.Equal(t, "training-b", run.Name)
}

func TestGetRunNotFound(t *testing.T) {
	backend := newFakeBackend()
	client, err := NewClient(testConfig(), backend)
	require.NoError(t, err)

	_, err = client.GetRun(context.Background(), "ghost", "")
	var notFound *RunNotFoundError
	require.ErrorAs(t, err, &notFound)
	require.Equal(t, "ghost", notFound.RunID)
	require.False(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRunsRequiresProject(t *testing.T) {
	backend := newFakeBackend()
	cfg := testConfig()
	cfg.Project = ""
	client, err := NewClient(cfg, backend)
	require.NoError(t, err)

	_, err = client.Runs(ListRunsOptions{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "no project specified")
}
