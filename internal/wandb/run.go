package wandb

import (
	"context"

	"github.com/aind/wandb-results/internal/models"
	"github.com/aind/wandb-results/internal/query"
)

// ListRunsOptions shape a run listing. Zero values fall back to the
// configured defaults (project, page size) or the backend's defaults
// (order).
type ListRunsOptions struct {
	Project string
	Filter  query.Filter
	// Order is a run field name; prefix with "-" for descending. Empty
	// means the backend's default order.
	Order    string
	PageSize int
}

// Runs builds a lazily-paginated iterator over the runs matching opts. No
// request is issued until Next is called; each page is fetched as
// consumption crosses its boundary. An unsupported filter clause fails here,
// before anything touches the network.
func (c *Client) Runs(opts ListRunsOptions) (*RunIterator, error) {
	project, err := c.config.ResolveProject(opts.Project)
	if err != nil {
		return nil, err
	}
	filter, err := query.MarshalFilter(opts.Filter)
	if err != nil {
		return nil, err
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = c.config.PageSize
	}
	return &RunIterator{
		client: c,
		req: ListRunsRequest{
			Entity:   c.config.Entity,
			Project:  project,
			Filter:   filter,
			Order:    opts.Order,
			PageSize: pageSize,
		},
	}, nil
}

// RunIterator walks a paginated run listing. It is finite, materializes each
// run exactly once, and is not safe for concurrent use; build a fresh
// iterator to re-iterate (doing so re-issues the requests).
type RunIterator struct {
	client *Client
	req    ListRunsRequest

	buf  []*models.Run
	pos  int
	cur  *models.Run
	done bool
	err  error
}

// Next advances to the next run, fetching the next page when the buffered
// one is exhausted. It returns false at the end of the listing or on error;
// check Err afterwards.
func (it *RunIterator) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}
	for it.pos >= len(it.buf) {
		if it.done {
			return false
		}
		if !it.fetchPage(ctx) {
			return false
		}
	}
	it.cur = it.buf[it.pos]
	it.pos++
	return true
}

func (it *RunIterator) fetchPage(ctx context.Context) bool {
	var page *RunPage
	err := it.client.call(ctx, "list runs", func(ctx context.Context) error {
		var err error
		page, err = it.client.backend.ListRuns(ctx, it.req)
		return err
	})
	if err != nil {
		it.err = err
		return false
	}
	it.buf = page.Runs
	it.pos = 0
	it.req.Cursor = page.Cursor
	if page.Cursor == "" {
		it.done = true
	}
	return true
}

// Run returns the run Next advanced to.
func (it *RunIterator) Run() *models.Run { return it.cur }

// Err returns the error that terminated iteration, if any.
func (it *RunIterator) Err() error { return it.err }

// AllRuns consumes a full listing into a slice.
func (c *Client) AllRuns(ctx context.Context, opts ListRunsOptions) ([]*models.Run, error) {
	it, err := c.Runs(opts)
	if err != nil {
		return nil, err
	}
	var runs []*models.Run
	for it.Next(ctx) {
		runs = append(runs, it.Run())
	}
	if err := it.Err(); err != nil {
		return nil, err
	}
	return runs, nil
}

// GetRun fetches one run directly by id. project overrides the configured
// default when non-empty.
func (c *Client) GetRun(ctx context.Context, runID, project string) (*models.Run, error) {
	proj, err := c.config.ResolveProject(project)
	if err != nil {
		return nil, err
	}
	var run *models.Run
	err = c.call(ctx, "get run", func(ctx context.Context) error {
		var err error
		run, err = c.backend.GetRun(ctx, c.config.Entity, proj, runID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return run, nil
}
