package wandb

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aind/wandb-results/internal/config"
	"github.com/aind/wandb-results/internal/models"
)

func testConfig() *config.Config {
	return &config.Config{
		Entity:       "aind",
		Project:      "disrnn",
		Backend:      config.BackendWandb,
		BaseURL:      "http://localhost:8080",
		ArtifactType: "training-output",
		PageSize:     2,
		Timeout:      time.Second,
		MaxRetries:   2,
		Concurrency:  4,
	}
}

var errTransient = errors.New("connection reset")

// fakeBackend is an in-memory Backend with call counters, standing in for
// the remote service.
type fakeBackend struct {
	mu sync.Mutex

	runs      []*models.Run
	history   map[string][]models.HistoryRecord
	artifacts map[string][]models.ArtifactInfo
	manifests map[string][]models.ArtifactFile
	contents  map[string]string // "<artifact>/<file>" -> content

	// transient failures to inject before each run-listing call succeeds
	failListRuns int

	listRunsCalls  int
	listFilesCalls int
	downloadCalls  int
	lastListReq    ListRunsRequest
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		history:   make(map[string][]models.HistoryRecord),
		artifacts: make(map[string][]models.ArtifactInfo),
		manifests: make(map[string][]models.ArtifactFile),
		contents:  make(map[string]string),
	}
}

func (f *fakeBackend) ListProjects(ctx context.Context, entity string) ([]string, error) {
	return []string{"disrnn"}, nil
}

func (f *fakeBackend) ListRuns(ctx context.Context, req ListRunsRequest) (*RunPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listRunsCalls++
	f.lastListReq = req

	if f.failListRuns > 0 {
		f.failListRuns--
		return nil, &TransportError{Op: "list runs", Err: errTransient}
	}
	if req.Project != "disrnn" {
		return nil, &ProjectNotFoundError{Entity: req.Entity, Project: req.Project}
	}

	start := 0
	if req.Cursor != "" {
		start, _ = strconv.Atoi(req.Cursor)
	}
	end := start + req.PageSize
	if end > len(f.runs) {
		end = len(f.runs)
	}
	page := &RunPage{Runs: f.runs[start:end]}
	if end < len(f.runs) {
		page.Cursor = strconv.Itoa(end)
	}
	return page, nil
}

func (f *fakeBackend) GetRun(ctx context.Context, entity, project, runID string) (*models.Run, error) {
	for _, run := range f.runs {
		if run.ID == runID {
			return run, nil
		}
	}
	return nil, &RunNotFoundError{RunID: runID, Project: project}
}

func (f *fakeBackend) GetHistory(ctx context.Context, req HistoryRequest) ([]models.HistoryRecord, error) {
	records, ok := f.history[req.RunID]
	if !ok {
		return nil, &RunNotFoundError{RunID: req.RunID, Project: req.Project}
	}
	return records, nil
}

func (f *fakeBackend) ListArtifacts(ctx context.Context, entity, project, runID, artifactType string) ([]models.ArtifactInfo, error) {
	infos, ok := f.artifacts[runID]
	if !ok {
		return nil, &RunNotFoundError{RunID: runID, Project: project}
	}
	var out []models.ArtifactInfo
	for _, info := range infos {
		if artifactType == "" || info.Type == artifactType {
			out = append(out, info)
		}
	}
	return out, nil
}

func (f *fakeBackend) ListArtifactFiles(ctx context.Context, info models.ArtifactInfo) ([]models.ArtifactFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFilesCalls++
	return f.manifests[info.Name], nil
}

func (f *fakeBackend) DownloadFile(ctx context.Context, info models.ArtifactInfo, name, dest string) error {
	f.mu.Lock()
	f.downloadCalls++
	content := f.contents[info.Name+"/"+name]
	f.mu.Unlock()
	return WriteFile(dest, strings.NewReader(content))
}

// addArtifact registers an artifact whose manifest sizes match the given
// contents, the way a consistent remote store would report them.
func (f *fakeBackend) addArtifact(runID, name string, files map[string]string) {
	f.artifacts[runID] = append(f.artifacts[runID], models.ArtifactInfo{
		Name:    name,
		Type:    "training-output",
		Version: "v0",
		RunID:   runID,
		Project: "disrnn",
		Entity:  "aind",
	})
	for fileName, content := range files {
		size := int64(len(content))
		f.manifests[name] = append(f.manifests[name], models.ArtifactFile{
			Name: fileName,
			Size: &size,
		})
		f.contents[name+"/"+fileName] = content
	}
}
