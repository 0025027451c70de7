package wandb

import "fmt"

// ProjectNotFoundError reports a project the service does not know.
type ProjectNotFoundError struct {
	Entity  string
	Project string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project not found: %s/%s", e.Entity, e.Project)
}

// RunNotFoundError reports a run id the service does not know within the
// addressed project.
type RunNotFoundError struct {
	RunID   string
	Project string
}

func (e *RunNotFoundError) Error() string {
	return fmt.Sprintf("run not found: %s in project %s", e.RunID, e.Project)
}

// FileNotFoundInArtifactError reports a requested file name absent from an
// artifact's manifest.
type FileNotFoundInArtifactError struct {
	File     string
	Artifact string
}

func (e *FileNotFoundInArtifactError) Error() string {
	return fmt.Sprintf("file %s not found in artifact %s", e.File, e.Artifact)
}

// TransportError is a transient remote failure. Calls failing with it are
// retried with exponential backoff; it only surfaces when wrapped in a
// TransportTimeoutError after retries run out.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// TransportTimeoutError is the terminal error after retry exhaustion.
type TransportTimeoutError struct {
	Op       string
	Attempts int
	Err      error
}

func (e *TransportTimeoutError) Error() string {
	return fmt.Sprintf("%s failed after %d attempts: %v", e.Op, e.Attempts, e.Err)
}

func (e *TransportTimeoutError) Unwrap() error { return e.Err }
