package models

// ArtifactInfo identifies one versioned artifact logged by a run.
type ArtifactInfo struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Version string `json:"version"`
	RunID   string `json:"run_id"`
	Project string `json:"project"`
	Entity  string `json:"entity"`
}

// ArtifactFile is one manifest entry of an artifact. Size and Digest are
// populated when the backend reports them; a nil Size means the backend
// exposes names only, which is distinct from a zero-byte file.
type ArtifactFile struct {
	Name   string `json:"name"`
	Size   *int64 `json:"size,omitempty"`
	Digest string `json:"digest,omitempty"`
}

// DownloadResult is the outcome of materializing one artifact to disk.
// Files lists every file present under Dir after the operation, including
// files that were already on disk and skipped.
type DownloadResult struct {
	Artifact ArtifactInfo `json:"artifact"`
	Dir      string       `json:"dir"`
	Files    []string     `json:"files"`
}
