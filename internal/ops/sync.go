package ops

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/hpungsan/leetsync/internal/ctxlog"
	"github.com/hpungsan/leetsync/internal/db"
	"github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/solution"
)

// EventKind classifies a per-item progress event.
type EventKind string

const (
	EventSynced  EventKind = "synced"
	EventSkipped EventKind = "skipped"
	EventFailed  EventKind = "failed"
)

// Event reports what happened to one problem during a run.
type Event struct {
	Kind         EventKind `json:"kind"`
	SubmissionID string    `json:"submission_id"`
	TitleSlug    string    `json:"title_slug"`
	Path         string    `json:"path,omitempty"`
	Reason       string    `json:"reason,omitempty"`
}

// SyncDeps are the collaborators of a run. DB is optional; when set the
// run and every written file are recorded in the ledger.
type SyncDeps struct {
	Judge Judge
	Host  Host
	DB    *sql.DB
}

// SyncInput contains parameters for the Sync operation.
type SyncInput struct {
	Repo     string // required, owner/repo
	Branch   string // default: "main"
	PageSize int    // default: 20
	// Progress, if set, is called once per item outcome.
	Progress func(Event)
}

// SyncOutput contains the result of the Sync operation.
type SyncOutput struct {
	RunID       string                `json:"run_id"`
	Status      solution.RunStatus    `json:"status"`
	Listed      int                   `json:"listed"`
	Fetched     int                   `json:"fetched"`
	Written     int                   `json:"written"`
	Skipped     int                   `json:"skipped"`
	RepoCreated bool                  `json:"repo_created,omitempty"`
	Files       []solution.SyncedFile `json:"files"`
	Error       string                `json:"error,omitempty"`
}

// pending is a materialized detail waiting for its write.
type pending struct {
	submissionID string
	detail       *solution.SubmissionDetail
}

// Sync runs the pipeline: list accepted submissions, fetch every detail
// (deduplicated again by the detail's own slug), then fetch metadata and
// write each solution in order. Items whose detail or metadata cannot be
// obtained are skipped. A write failure aborts the run; the partial output
// is returned together with the error.
func Sync(ctx context.Context, deps SyncDeps, input SyncInput) (*SyncOutput, error) {
	if deps.Judge == nil || deps.Host == nil {
		return nil, errors.NewInvalidRequest("judge and host are required")
	}
	if input.Repo == "" {
		return nil, errors.NewInvalidRequest("repo is required")
	}
	branch := input.Branch
	if branch == "" {
		branch = "main"
	}
	pageSize := input.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}

	runID, err := generateULID()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	log := ctxlog.FromContext(ctx).With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, log)

	run := &solution.Run{
		ID:        runID,
		Repo:      input.Repo,
		Branch:    branch,
		Status:    solution.RunRunning,
		StartedAt: time.Now().Unix(),
	}
	if deps.DB != nil {
		if err := db.InsertRun(deps.DB, run); err != nil {
			return nil, err
		}
	}

	out := &SyncOutput{RunID: runID, Files: []solution.SyncedFile{}}
	emit := func(e Event) {
		if input.Progress != nil {
			input.Progress(e)
		}
	}

	runErr := syncRun(ctx, deps, input.Repo, branch, pageSize, out, emit)

	out.Status = solution.RunSucceeded
	if runErr != nil {
		out.Status = solution.RunFailed
		out.Error = runErr.Error()
	}
	run.Status = out.Status
	run.Listed, run.Fetched, run.Written, run.Skipped = out.Listed, out.Fetched, out.Written, out.Skipped
	run.Error = out.Error
	if deps.DB != nil {
		if err := db.FinishRun(deps.DB, run); err != nil {
			log.Warn("failed to record run result", "error", err)
		}
	}

	log.Info("sync finished", "status", out.Status, "listed", out.Listed, "fetched", out.Fetched, "written", out.Written, "skipped", out.Skipped)
	if runErr != nil {
		return out, runErr
	}
	return out, nil
}

func syncRun(ctx context.Context, deps SyncDeps, repo, branch string, pageSize int, out *SyncOutput, emit func(Event)) error {
	log := ctxlog.FromContext(ctx)

	// Phase 1: list, then fetch details sequentially.
	summaries, err := deps.Judge.ListAcceptedSubmissions(ctx, pageSize)
	if err != nil {
		return err
	}
	out.Listed = len(summaries)
	log.Info("listed accepted submissions", "count", out.Listed)

	details := solution.NewOrderedMap[string, pending]()
	for _, s := range summaries {
		detail, err := deps.Judge.FetchDetail(ctx, s.ID)
		if err != nil {
			if !errors.IsNotFound(err) {
				return err
			}
			log.Warn("skipping submission without detail", "submission_id", s.ID, "title_slug", s.TitleSlug, "error", err)
			out.Skipped++
			emit(Event{Kind: EventSkipped, SubmissionID: s.ID, TitleSlug: s.TitleSlug, Reason: err.Error()})
			continue
		}
		if !details.Put(detail.TitleSlug, pending{submissionID: s.ID, detail: detail}) {
			log.Debug("duplicate detail slug, keeping first", "submission_id", s.ID, "title_slug", detail.TitleSlug)
		}
	}
	out.Fetched = details.Len()

	// Phase 2: metadata, then write, in first-seen order.
	for _, p := range details.Values() {
		if err := ctx.Err(); err != nil {
			return err
		}
		slug := p.detail.TitleSlug

		meta, err := deps.Judge.FetchQuestion(ctx, slug)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			log.Warn("skipping problem without metadata", "title_slug", slug, "error", err)
			out.Skipped++
			emit(Event{Kind: EventSkipped, SubmissionID: p.submissionID, TitleSlug: slug, Reason: err.Error()})
			continue
		}

		written, err := WriteSolution(ctx, deps.Host, p.detail, meta, WriteOptions{Repo: repo, Branch: branch})
		if err != nil {
			if stderrors.Is(err, ErrProbe) && ctx.Err() == nil {
				log.Warn("skipping problem after failed probe", "title_slug", slug, "error", err)
				out.Skipped++
				emit(Event{Kind: EventSkipped, SubmissionID: p.submissionID, TitleSlug: slug, Reason: err.Error()})
				continue
			}
			emit(Event{Kind: EventFailed, SubmissionID: p.submissionID, TitleSlug: slug, Reason: err.Error()})
			return err
		}
		out.RepoCreated = out.RepoCreated || written.RepoCreated

		file := solution.SyncedFile{
			RunID:        out.RunID,
			SubmissionID: p.submissionID,
			TitleSlug:    slug,
			Path:         written.Path,
			SHA:          written.SHA,
			Created:      written.Created,
			WrittenAt:    time.Now().Unix(),
		}
		if deps.DB != nil {
			if err := db.InsertSyncedFile(deps.DB, &file); err != nil {
				log.Warn("failed to record synced file", "path", file.Path, "error", err)
			}
		}
		out.Files = append(out.Files, file)
		out.Written++
		log.Info("synced solution", "path", written.Path, "created", written.Created)
		emit(Event{Kind: EventSynced, SubmissionID: p.submissionID, TitleSlug: slug, Path: written.Path})
	}
	return nil
}
