package wandb

import (
	"context"

	"github.com/aind/wandb-results/internal/models"
)

// ListRunsRequest asks a backend for one page of runs.
type ListRunsRequest struct {
	Entity  string
	Project string
	// Filter is the encoded query document, "{}" for match-all.
	Filter string
	// Order is a field name, "-" prefixed for descending, empty for the
	// backend's default order.
	Order    string
	PageSize int
	// Cursor is the opaque page cursor from the previous page, empty for
	// the first page.
	Cursor string
}

// RunPage is one page of a run listing. An empty Cursor means the listing is
// exhausted.
type RunPage struct {
	Runs   []*models.Run
	Cursor string
}

// HistoryRequest asks a backend for the raw history stream of a run. Keys
// restricts the metrics the backend sends when it can; the reconstructor
// projects again locally so backends may ignore it.
type HistoryRequest struct {
	Entity  string
	Project string
	RunID   string
	Keys    []string
}

// Backend is the remote access port: an authenticated handle to a tracking
// service. Implementations must map their "no such project" and "no such
// run" conditions to ProjectNotFoundError/RunNotFoundError and wrap
// transient failures in TransportError so the client's retry policy can
// classify them.
type Backend interface {
	ListProjects(ctx context.Context, entity string) ([]string, error)
	ListRuns(ctx context.Context, req ListRunsRequest) (*RunPage, error)
	GetRun(ctx context.Context, entity, project, runID string) (*models.Run, error)
	GetHistory(ctx context.Context, req HistoryRequest) ([]models.HistoryRecord, error)
	ListArtifacts(ctx context.Context, entity, project, runID, artifactType string) ([]models.ArtifactInfo, error)
	ListArtifactFiles(ctx context.Context, info models.ArtifactInfo) ([]models.ArtifactFile, error)
	// DownloadFile fetches one artifact file into dest, creating parent
	// directories as needed.
	DownloadFile(ctx context.Context, info models.ArtifactInfo, name, dest string) error
}
