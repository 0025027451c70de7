package wandb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aind/wandb-results/internal/config"
	"github.com/aind/wandb-results/internal/models"
)

// apiBackend talks to the hosted tracking service's REST API.
type apiBackend struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewAPIBackend builds the Backend for the hosted tracking service described
// by cfg.
func NewAPIBackend(cfg *config.Config) Backend {
	return &apiBackend{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{},
	}
}

func (b *apiBackend) get(ctx context.Context, op, path string, params url.Values, out any) (int, error) {
	u := b.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return 0, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		bodyBytes, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, &TransportError{Op: op, Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes))}
	default:
		bodyBytes, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, fmt.Errorf("%s failed with status %d: %s", op, resp.StatusCode, string(bodyBytes))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}
	return resp.StatusCode, nil
}

func (b *apiBackend) ListProjects(ctx context.Context, entity string) ([]string, error) {
	var response struct {
		Projects []struct {
			Name string `json:"name"`
		} `json:"projects"`
	}
	params := url.Values{"entity": {entity}}
	status, err := b.get(ctx, "list projects", "/api/v1/projects", params, &response)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("entity not found: %s", entity)
	}

	names := make([]string, 0, len(response.Projects))
	for _, p := range response.Projects {
		names = append(names, p.Name)
	}
	return names, nil
}

type runPayload struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	State     string         `json:"state"`
	Tags      []string       `json:"tags"`
	Config    map[string]any `json:"config"`
	Summary   map[string]any `json:"summary"`
	CreatedAt time.Time      `json:"created_at"`
	URL       string         `json:"url"`
}

func (p *runPayload) toRun(entity, project string) *models.Run {
	return &models.Run{
		ID:        p.ID,
		Name:      p.Name,
		State:     models.RunState(p.State),
		Tags:      p.Tags,
		Config:    p.Config,
		Summary:   p.Summary,
		CreatedAt: p.CreatedAt,
		URL:       p.URL,
		Project:   project,
		Entity:    entity,
	}
}

func (b *apiBackend) ListRuns(ctx context.Context, req ListRunsRequest) (*RunPage, error) {
	var response struct {
		Runs   []runPayload `json:"runs"`
		Cursor string       `json:"cursor"`
	}
	params := url.Values{
		"filters":  {req.Filter},
		"per_page": {strconv.Itoa(req.PageSize)},
	}
	if req.Order != "" {
		params.Set("order", req.Order)
	}
	if req.Cursor != "" {
		params.Set("cursor", req.Cursor)
	}
	path := fmt.Sprintf("/api/v1/runs/%s/%s", url.PathEscape(req.Entity), url.PathEscape(req.Project))
	status, err := b.get(ctx, "list runs", path, params, &response)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &ProjectNotFoundError{Entity: req.Entity, Project: req.Project}
	}

	page := &RunPage{Cursor: response.Cursor}
	for i := range response.Runs {
		page.Runs = append(page.Runs, response.Runs[i].toRun(req.Entity, req.Project))
	}
	return page, nil
}

func (b *apiBackend) GetRun(ctx context.Context, entity, project, runID string) (*models.Run, error) {
	var response runPayload
	path := fmt.Sprintf("/api/v1/runs/%s/%s/%s",
		url.PathEscape(entity), url.PathEscape(project), url.PathEscape(runID))
	status, err := b.get(ctx, "get run", path, nil, &response)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &RunNotFoundError{RunID: runID, Project: project}
	}
	return response.toRun(entity, project), nil
}

func (b *apiBackend) GetHistory(ctx context.Context, req HistoryRequest) ([]models.HistoryRecord, error) {
	var response struct {
		Rows []map[string]any `json:"rows"`
	}
	params := url.Values{}
	if len(req.Keys) > 0 {
		params.Set("keys", strings.Join(req.Keys, ","))
	}
	path := fmt.Sprintf("/api/v1/runs/%s/%s/%s/history",
		url.PathEscape(req.Entity), url.PathEscape(req.Project), url.PathEscape(req.RunID))
	status, err := b.get(ctx, "get history", path, params, &response)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &RunNotFoundError{RunID: req.RunID, Project: req.Project}
	}

	records := make([]models.HistoryRecord, 0, len(response.Rows))
	for _, row := range response.Rows {
		records = append(records, decodeHistoryRow(row))
	}
	return records, nil
}

// History rows arrive as flat JSON objects: the service's bookkeeping fields
// ("_step", "_timestamp" in epoch seconds) alongside the logged metrics.
// Non-numeric values (media references and the like) are not metrics and are
// dropped.
func decodeHistoryRow(row map[string]any) models.HistoryRecord {
	rec := models.HistoryRecord{Metrics: make(map[string]float64)}
	for key, value := range row {
		num, ok := value.(float64)
		if !ok {
			continue
		}
		switch key {
		case "_step":
			rec.Step = int64(num)
		case "_timestamp":
			sec := int64(num)
			nsec := int64((num - float64(sec)) * float64(time.Second))
			rec.Timestamp = time.Unix(sec, nsec).UTC()
		default:
			if !strings.HasPrefix(key, "_") {
				rec.Metrics[key] = num
			}
		}
	}
	return rec
}

func (b *apiBackend) ListArtifacts(ctx context.Context, entity, project, runID, artifactType string) ([]models.ArtifactInfo, error) {
	var response struct {
		Artifacts []struct {
			Name    string `json:"name"`
			Type    string `json:"type"`
			Version string `json:"version"`
		} `json:"artifacts"`
	}
	params := url.Values{}
	if artifactType != "" {
		params.Set("type", artifactType)
	}
	path := fmt.Sprintf("/api/v1/runs/%s/%s/%s/artifacts",
		url.PathEscape(entity), url.PathEscape(project), url.PathEscape(runID))
	status, err := b.get(ctx, "list artifacts", path, params, &response)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &RunNotFoundError{RunID: runID, Project: project}
	}

	infos := make([]models.ArtifactInfo, 0, len(response.Artifacts))
	for _, a := range response.Artifacts {
		infos = append(infos, models.ArtifactInfo{
			Name:    a.Name,
			Type:    a.Type,
			Version: a.Version,
			RunID:   runID,
			Project: project,
			Entity:  entity,
		})
	}
	return infos, nil
}

func (b *apiBackend) artifactPath(info models.ArtifactInfo) string {
	return fmt.Sprintf("/api/v1/artifacts/%s/%s/%s",
		url.PathEscape(info.Entity), url.PathEscape(info.Project),
		url.PathEscape(info.Name+":"+info.Version))
}

func (b *apiBackend) ListArtifactFiles(ctx context.Context, info models.ArtifactInfo) ([]models.ArtifactFile, error) {
	var response struct {
		Files []struct {
			Name   string `json:"name"`
			Size   *int64 `json:"size"`
			Digest string `json:"digest"`
		} `json:"files"`
	}
	status, err := b.get(ctx, "list artifact files", b.artifactPath(info)+"/files", nil, &response)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, fmt.Errorf("artifact not found: %s:%s", info.Name, info.Version)
	}

	files := make([]models.ArtifactFile, 0, len(response.Files))
	for _, f := range response.Files {
		files = append(files, models.ArtifactFile{Name: f.Name, Size: f.Size, Digest: f.Digest})
	}
	return files, nil
}

func (b *apiBackend) DownloadFile(ctx context.Context, info models.ArtifactInfo, name, dest string) error {
	u := b.baseURL + b.artifactPath(info) + "/files/" + url.PathEscape(name)
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if b.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return &TransportError{Op: "download file", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return &FileNotFoundInArtifactError{File: name, Artifact: info.Name}
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		bodyBytes, _ := io.ReadAll(resp.Body)
		return &TransportError{Op: "download file", Err: fmt.Errorf("status %d: %s", resp.StatusCode, string(bodyBytes))}
	default:
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("download of %s failed with status %d: %s", name, resp.StatusCode, string(bodyBytes))
	}

	return WriteFile(dest, resp.Body)
}

// WriteFile streams r into dest, creating parent directories as needed.
func WriteFile(dest string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(dest), err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", dest, err)
	}
	return nil
}
