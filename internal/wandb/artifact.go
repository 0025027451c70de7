package wandb

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/aind/wandb-results/internal/models"
)

// ArtifactOptions shape an artifact listing. An empty Type lists every
// artifact the run logged.
type ArtifactOptions struct {
	Project string
	Type    string
}

// Artifact is one resolved artifact version. The file manifest is fetched
// lazily on the first Files call and cached, so metadata-only callers never
// pay the extra round trip.
type Artifact struct {
	Info models.ArtifactInfo

	client  *Client
	files   []models.ArtifactFile
	fetched bool
}

// Files returns the artifact's file manifest, fetching it on first use.
func (a *Artifact) Files(ctx context.Context) ([]models.ArtifactFile, error) {
	if a.fetched {
		return a.files, nil
	}
	err := a.client.call(ctx, "list artifact files", func(ctx context.Context) error {
		var err error
		a.files, err = a.client.backend.ListArtifactFiles(ctx, a.Info)
		return err
	})
	if err != nil {
		return nil, err
	}
	a.fetched = true
	return a.files, nil
}

// Artifacts enumerates the artifact versions logged by a run. A run that
// logged none yields an empty slice, not an error.
func (c *Client) Artifacts(ctx context.Context, runID string, opts ArtifactOptions) ([]*Artifact, error) {
	project, err := c.config.ResolveProject(opts.Project)
	if err != nil {
		return nil, err
	}
	var infos []models.ArtifactInfo
	err = c.call(ctx, "list artifacts", func(ctx context.Context) error {
		var err error
		infos, err = c.backend.ListArtifacts(ctx, c.config.Entity, project, runID, opts.Type)
		return err
	})
	if err != nil {
		return nil, err
	}
	artifacts := make([]*Artifact, 0, len(infos))
	for _, info := range infos {
		artifacts = append(artifacts, &Artifact{Info: info, client: c})
	}
	return artifacts, nil
}

// DownloadOptions shape artifact materialization.
type DownloadOptions struct {
	Project string
	// Type filters artifacts; empty falls back to the configured default
	// artifact type.
	Type string
	// Files restricts materialization to exactly these names. A requested
	// name missing from an artifact is reported per name without aborting
	// the names that do exist.
	Files []string
	// OutputDir is the destination root; files land under
	// OutputDir/<project>/<runID>/<artifactName>/.
	OutputDir string
	// Concurrency bounds the batch fan-out; zero falls back to the
	// configured default.
	Concurrency int
}

// DownloadArtifact materializes the artifacts of one run. Files already on
// disk with matching size (and digest, when the manifest carries one) are
// skipped without touching the transport, so repeating a call over an
// unchanged artifact transfers nothing. The returned results list every file
// present on disk; the error aggregates per-file failures and may accompany
// non-empty results.
func (c *Client) DownloadArtifact(ctx context.Context, runID string, opts DownloadOptions) ([]models.DownloadResult, error) {
	artifactType := opts.Type
	if artifactType == "" {
		artifactType = c.config.ArtifactType
	}
	outputDir := opts.OutputDir
	if outputDir == "" {
		outputDir = "artifacts"
	}

	artifacts, err := c.Artifacts(ctx, runID, ArtifactOptions{Project: opts.Project, Type: artifactType})
	if err != nil {
		return nil, err
	}

	var results []models.DownloadResult
	var errs []error
	for _, artifact := range artifacts {
		result, err := c.downloadOne(ctx, artifact, opts.Files, outputDir)
		if err != nil {
			errs = append(errs, err)
		}
		if result != nil {
			results = append(results, *result)
		}
	}
	return results, errors.Join(errs...)
}

func (c *Client) downloadOne(ctx context.Context, artifact *Artifact, wanted []string, outputDir string) (*models.DownloadResult, error) {
	manifest, err := artifact.Files(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]models.ArtifactFile, len(manifest))
	for _, f := range manifest {
		byName[f.Name] = f
	}

	var selected []models.ArtifactFile
	var errs []error
	if len(wanted) == 0 {
		selected = manifest
	} else {
		for _, name := range wanted {
			f, ok := byName[name]
			if !ok {
				errs = append(errs, &FileNotFoundInArtifactError{File: name, Artifact: artifact.Info.Name})
				continue
			}
			selected = append(selected, f)
		}
	}

	info := artifact.Info
	dir := filepath.Join(outputDir, info.Project, info.RunID, info.Name)

	var present []string
	for _, f := range selected {
		dest := filepath.Join(dir, f.Name)
		if upToDate(dest, f) {
			c.logger.Debug("skipping up-to-date file", "artifact", info.Name, "file", f.Name)
			present = append(present, f.Name)
			continue
		}
		err := c.call(ctx, "download file", func(ctx context.Context) error {
			return c.backend.DownloadFile(ctx, info, f.Name, dest)
		})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		present = append(present, f.Name)
	}
	sort.Strings(present)

	return &models.DownloadResult{
		Artifact: info,
		Dir:      dir,
		Files:    present,
	}, errors.Join(errs...)
}

// upToDate reports whether dest already satisfies the manifest entry: the
// size matches when the manifest reports one, the MD5 matches when it
// carries a digest. An entry reporting neither is unverifiable and never
// up to date.
func upToDate(dest string, f models.ArtifactFile) bool {
	stat, err := os.Stat(dest)
	if err != nil || stat.IsDir() {
		return false
	}
	if f.Size != nil && stat.Size() != *f.Size {
		return false
	}
	if f.Digest == "" {
		return f.Size != nil
	}
	file, err := os.Open(dest)
	if err != nil {
		return false
	}
	defer file.Close()
	sum := md5.New()
	if _, err := io.Copy(sum, file); err != nil {
		return false
	}
	return hex.EncodeToString(sum.Sum(nil)) == f.Digest
}

// BatchResult carries one run's outcome within a batch download. Results
// lists what landed on disk, Err aggregates that run's failures; both are
// set when an artifact materialized only partially.
type BatchResult struct {
	Results []models.DownloadResult
	Err     error
}

// DownloadArtifacts fans the given run ids out into bounded-concurrency
// downloads. A run's failure is captured in its own map entry and never
// aborts or cancels sibling downloads; the caller always gets an entry for
// every id.
func (c *Client) DownloadArtifacts(ctx context.Context, runIDs []string, opts DownloadOptions) map[string]BatchResult {
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = c.config.Concurrency
	}

	// Each goroutine writes only its own slot, so no locking is needed;
	// the per-run artifact directories keep workers off each other's paths
	// on disk as well.
	outcomes := make([]BatchResult, len(runIDs))

	g := &errgroup.Group{}
	g.SetLimit(concurrency)
	for i, runID := range runIDs {
		i, runID := i, runID
		g.Go(func() error {
			results, err := c.DownloadArtifact(ctx, runID, opts)
			outcomes[i] = BatchResult{Results: results, Err: err}
			return nil
		})
	}
	g.Wait()

	out := make(map[string]BatchResult, len(runIDs))
	for i, runID := range runIDs {
		out[runID] = outcomes[i]
	}
	return out
}
