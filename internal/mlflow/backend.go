// Package mlflow adapts an MLflow tracking server (plain or
// Databricks-hosted) to the client's remote access port, so the same run
// queries, history reconstruction, and artifact downloads work against
// MLflow experiments.
package mlflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/apierr"
	"github.com/databricks/databricks-sdk-go/service/ml"

	"github.com/aind/wandb-results/internal/config"
	"github.com/aind/wandb-results/internal/models"
	"github.com/aind/wandb-results/internal/wandb"
)

// Artifacts in MLflow are a single per-run file tree, not named versioned
// bundles; the backend exposes that tree as one synthetic artifact of this
// type so the orchestrator's contract holds unchanged.
const artifactType = "training-output"

type Backend struct {
	client *databricks.WorkspaceClient
	config *config.Config

	mu          sync.Mutex
	experiments map[string]string // project name -> experiment id
}

// NewBackend connects to the MLflow tracking server described by cfg,
// handling the Databricks URI conventions.
func NewBackend(cfg *config.Config) (*Backend, error) {
	var databricksConfig *databricks.Config

	if cfg.IsDatabricks() {
		databricksConfig = &databricks.Config{}

		if cfg.TrackingURI == "databricks" {
			if cfg.DatabricksHost != "" {
				databricksConfig.Host = cfg.DatabricksHost
			}
		} else if profile := cfg.GetDatabricksProfile(); profile != "" {
			databricksConfig.Profile = profile
		} else {
			databricksConfig.Host = cfg.TrackingURI
		}

		if cfg.DatabricksToken != "" {
			databricksConfig.Token = cfg.DatabricksToken
		}

		if databricksConfig.Host == "" && databricksConfig.Profile == "" {
			return nil, fmt.Errorf("Databricks host or profile is required when using Databricks MLflow")
		}
	} else {
		databricksConfig = &databricks.Config{
			Host: cfg.TrackingURI,
			// For regular MLflow server, use a dummy token to bypass authentication
			Token: "dummy-token-for-regular-mlflow",
		}
	}

	client, err := databricks.NewWorkspaceClient(databricksConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create MLflow client: %w", err)
	}

	return &Backend{
		client:      client,
		config:      cfg,
		experiments: make(map[string]string),
	}, nil
}

// wrap classifies an SDK error: 404s become the typed not-found the caller
// asked for via notFound, 429/5xx become retryable transport errors.
func wrap(op string, err error, notFound error) error {
	if err == nil {
		return nil
	}
	var aerr *apierr.APIError
	if errors.As(err, &aerr) {
		switch {
		case aerr.StatusCode == http.StatusNotFound:
			return notFound
		case aerr.StatusCode == http.StatusTooManyRequests || aerr.StatusCode >= 500:
			return &wandb.TransportError{Op: op, Err: err}
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// ListProjects lists experiment names. MLflow has no entity scope; the
// configured entity is accepted and ignored.
func (b *Backend) ListProjects(ctx context.Context, entity string) ([]string, error) {
	exps, err := b.client.Experiments.SearchExperimentsAll(ctx, ml.SearchExperiments{})
	if err != nil {
		return nil, wrap("list experiments", err, fmt.Errorf("failed to list experiments: %w", err))
	}
	var names []string
	for _, exp := range exps {
		names = append(names, exp.Name)
	}
	return names, nil
}

func (b *Backend) experimentID(ctx context.Context, entity, project string) (string, error) {
	b.mu.Lock()
	if id, ok := b.experiments[project]; ok {
		b.mu.Unlock()
		return id, nil
	}
	b.mu.Unlock()

	exps, err := b.client.Experiments.SearchExperimentsAll(ctx, ml.SearchExperiments{
		Filter: fmt.Sprintf("name = %s", quote(project)),
	})
	if err != nil {
		return "", wrap("get experiment", err, &wandb.ProjectNotFoundError{Entity: entity, Project: project})
	}
	if len(exps) == 0 {
		return "", &wandb.ProjectNotFoundError{Entity: entity, Project: project}
	}

	id := exps[0].ExperimentId
	b.mu.Lock()
	b.experiments[project] = id
	b.mu.Unlock()
	return id, nil
}

func (b *Backend) ListRuns(ctx context.Context, req wandb.ListRunsRequest) (*wandb.RunPage, error) {
	experimentID, err := b.experimentID(ctx, req.Entity, req.Project)
	if err != nil {
		return nil, err
	}
	filter, err := translateFilter(req.Filter)
	if err != nil {
		return nil, err
	}

	search := ml.SearchRuns{
		ExperimentIds: []string{experimentID},
		Filter:        filter,
		MaxResults:    req.PageSize,
		PageToken:     req.Cursor,
	}
	if order := translateOrder(req.Order); order != "" {
		search.OrderBy = []string{order}
	}

	runs, err := b.client.Experiments.SearchRunsAll(ctx, search)
	if err != nil {
		return nil, wrap("search runs", err, &wandb.ProjectNotFoundError{Entity: req.Entity, Project: req.Project})
	}

	// v0.72 exposes no public page-token call; return everything as a
	// single page — the engine treats an empty cursor as end-of-sequence.
	page := &wandb.RunPage{}
	for i := range runs {
		page.Runs = append(page.Runs, b.toRun(&runs[i], req.Entity, req.Project))
	}
	return page, nil
}

func (b *Backend) GetRun(ctx context.Context, entity, project, runID string) (*models.Run, error) {
	resp, err := b.client.Experiments.GetRun(ctx, ml.GetRunRequest{
		RunId: runID,
	})
	if err != nil {
		return nil, wrap("get run", err, &wandb.RunNotFoundError{RunID: runID, Project: project})
	}
	return b.toRun(resp.Run, entity, project), nil
}

var stateByStatus = map[string]models.RunState{
	"RUNNING":   models.RunStateRunning,
	"SCHEDULED": models.RunStateRunning,
	"FINISHED":  models.RunStateFinished,
	"FAILED":    models.RunStateFailed,
	"KILLED":    models.RunStateKilled,
}

func (b *Backend) toRun(run *ml.Run, entity, project string) *models.Run {
	tags := make(map[string]string, len(run.Data.Tags))
	for _, tag := range run.Data.Tags {
		tags[tag.Key] = tag.Value
	}

	params := make(map[string]any, len(run.Data.Params))
	for _, param := range run.Data.Params {
		params[param.Key] = param.Value
	}

	// Data.Metrics carries the latest value per key, which is exactly the
	// summary a tracking run exposes.
	summary := make(map[string]any, len(run.Data.Metrics))
	for _, metric := range run.Data.Metrics {
		summary[metric.Key] = metric.Value
	}

	var plainTags []string
	for key, value := range tags {
		if strings.HasPrefix(key, "mlflow.") {
			continue
		}
		plainTags = append(plainTags, key+"="+value)
	}
	sort.Strings(plainTags)

	state, ok := stateByStatus[string(run.Info.Status)]
	if !ok {
		state = models.RunStateCrashed
	}

	out := &models.Run{
		ID:        run.Info.RunId,
		Name:      run.Info.RunId,
		State:     state,
		Tags:      plainTags,
		Config:    params,
		Summary:   summary,
		CreatedAt: time.Unix(run.Info.StartTime/1000, 0).UTC(),
		Project:   project,
		Entity:    entity,
	}
	if name, exists := tags["mlflow.runName"]; exists {
		out.Name = name
	}
	return out
}

// GetHistory merges the per-key metric histories MLflow serves into
// step-keyed records. When the request names no keys, the run's summary
// determines which metrics exist.
func (b *Backend) GetHistory(ctx context.Context, req wandb.HistoryRequest) ([]models.HistoryRecord, error) {
	keys := req.Keys
	if len(keys) == 0 {
		run, err := b.GetRun(ctx, req.Entity, req.Project, req.RunID)
		if err != nil {
			return nil, err
		}
		for key := range run.Summary {
			keys = append(keys, key)
		}
		sort.Strings(keys)
	}

	type stepKey struct {
		step      int64
		timestamp int64
	}
	merged := make(map[stepKey]*models.HistoryRecord)
	for _, key := range keys {
		metrics, err := b.client.Experiments.GetHistoryAll(ctx, ml.GetHistoryRequest{
			RunId:     req.RunID,
			MetricKey: key,
		})
		if err != nil {
			return nil, wrap("get metric history", err, &wandb.RunNotFoundError{RunID: req.RunID, Project: req.Project})
		}
		for _, metric := range metrics {
			k := stepKey{step: metric.Step, timestamp: metric.Timestamp}
			rec, ok := merged[k]
			if !ok {
				rec = &models.HistoryRecord{
					Step:      metric.Step,
					Timestamp: time.Unix(metric.Timestamp/1000, metric.Timestamp%1000*int64(time.Millisecond)).UTC(),
					Metrics:   make(map[string]float64),
				}
				merged[k] = rec
			}
			rec.Metrics[metric.Key] = metric.Value
		}
	}

	records := make([]models.HistoryRecord, 0, len(merged))
	for _, rec := range merged {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].Step != records[j].Step {
			return records[i].Step < records[j].Step
		}
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return records, nil
}

func (b *Backend) ListArtifacts(ctx context.Context, entity, project, runID, typ string) ([]models.ArtifactInfo, error) {
	if typ != "" && typ != artifactType {
		return nil, nil
	}
	// Resolve the run first so a bad id fails here, not on first file access.
	if _, err := b.GetRun(ctx, entity, project, runID); err != nil {
		return nil, err
	}
	return []models.ArtifactInfo{{
		Name:    "run-" + runID,
		Type:    artifactType,
		Version: "v0",
		RunID:   runID,
		Project: project,
		Entity:  entity,
	}}, nil
}

func (b *Backend) ListArtifactFiles(ctx context.Context, info models.ArtifactInfo) ([]models.ArtifactFile, error) {
	return b.listFiles(ctx, info, "")
}

func (b *Backend) listFiles(ctx context.Context, info models.ArtifactInfo, path string) ([]models.ArtifactFile, error) {
	entries, err := b.client.Experiments.ListArtifactsAll(ctx, ml.ListArtifactsRequest{
		RunId: info.RunID,
		Path:  path,
	})
	if err != nil {
		return nil, wrap("list artifacts", err, &wandb.RunNotFoundError{RunID: info.RunID, Project: info.Project})
	}
	var files []models.ArtifactFile
	for _, f := range entries {
		if f.IsDir {
			nested, err := b.listFiles(ctx, info, f.Path)
			if err != nil {
				return nil, err
			}
			files = append(files, nested...)
			continue
		}
		size := f.FileSize
		files = append(files, models.ArtifactFile{Name: f.Path, Size: &size})
	}
	return files, nil
}

// DownloadFile fetches one artifact file over the mlflow-artifacts HTTP
// route. Databricks-hosted artifact roots need signed-URI credentials and
// are not supported here.
func (b *Backend) DownloadFile(ctx context.Context, info models.ArtifactInfo, name, dest string) error {
	if b.config.IsDatabricks() {
		return fmt.Errorf("artifact download from Databricks-hosted MLflow is not supported")
	}
	experimentID, err := b.experimentID(ctx, info.Entity, info.Project)
	if err != nil {
		return err
	}

	baseURL := strings.TrimSuffix(b.config.TrackingURI, "/")
	url := fmt.Sprintf("%s/api/2.0/mlflow-artifacts/artifacts/%s/%s/artifacts/%s",
		baseURL, experimentID, info.RunID, name)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return &wandb.TransportError{Op: "download file", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return &wandb.FileNotFoundInArtifactError{File: name, Artifact: info.Name}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &wandb.TransportError{Op: "download file", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes))}
	default:
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("download of %s failed with status %d: %s", name, resp.StatusCode, string(bodyBytes))
	}

	return wandb.WriteFile(dest, resp.Body)
}
