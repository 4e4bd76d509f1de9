package solution

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run is one recorded sync. Timestamps are unix seconds.
type Run struct {
	ID         string    `json:"id"`
	Repo       string    `json:"repo"`
	Branch     string    `json:"branch"`
	Status     RunStatus `json:"status"`
	Listed     int       `json:"listed"`
	Fetched    int       `json:"fetched"`
	Written    int       `json:"written"`
	Skipped    int       `json:"skipped"`
	Error      string    `json:"error,omitempty"`
	StartedAt  int64     `json:"started_at"`
	FinishedAt *int64    `json:"finished_at,omitempty"`
}

// SyncedFile is one file written during a run.
type SyncedFile struct {
	RunID        string `json:"run_id"`
	SubmissionID string `json:"submission_id"`
	TitleSlug    string `json:"title_slug"`
	Path         string `json:"path"`
	SHA          string `json:"sha,omitempty"`
	Created      bool   `json:"created"`
	WrittenAt    int64  `json:"written_at"`
}
