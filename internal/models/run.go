package models

import "time"

type RunState string

const (
	RunStateRunning  RunState = "running"
	RunStateFinished RunState = "finished"
	RunStateFailed   RunState = "failed"
	RunStateCrashed  RunState = "crashed"
	RunStateKilled   RunState = "killed"
)

// Run is the metadata for a single tracked run. Config and Summary hold the
// raw nested structures as the service reports them; flattening into dot-path
// columns is the flatten package's job.
type Run struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	State     RunState       `json:"state"`
	Tags      []string       `json:"tags,omitempty"`
	Config    map[string]any `json:"config,omitempty"`
	Summary   map[string]any `json:"summary,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	URL       string         `json:"url,omitempty"`
	Project   string         `json:"project"`
	Entity    string         `json:"entity"`
}

// Path returns the entity/project/id address of the run.
func (r *Run) Path() string {
	return r.Entity + "/" + r.Project + "/" + r.ID
}
