package ops

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/hpungsan/leetsync/internal/ctxlog"
	"github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/github"
	"github.com/hpungsan/leetsync/internal/solution"
)

// ErrProbe marks a write that stopped because the existence probe got an
// unexpected answer from the host. Nothing was written, so the orchestrator
// skips the item instead of aborting. Transport failures are not marked.
var ErrProbe = stderrors.New("probe remote file")

// WriteOptions names the destination of a write.
type WriteOptions struct {
	Repo   string // owner/repo
	Branch string
}

// WriteOutput contains the result of the WriteSolution operation.
type WriteOutput struct {
	Path        string `json:"path"`
	SHA         string `json:"sha,omitempty"`
	Created     bool   `json:"created"`
	RepoCreated bool   `json:"repo_created,omitempty"`
}

// WriteSolution upserts one solution file. The current sha is probed right
// before the write. A missing repository is created and the write retried
// exactly once; any other write failure is returned.
func WriteSolution(ctx context.Context, host Host, detail *solution.SubmissionDetail, meta *solution.ProblemMetadata, opts WriteOptions) (*WriteOutput, error) {
	if detail == nil || meta == nil {
		return nil, errors.NewInvalidRequest("detail and metadata are required")
	}
	if opts.Repo == "" || opts.Branch == "" {
		return nil, errors.NewInvalidRequest("repo and branch are required")
	}
	log := ctxlog.FromContext(ctx)

	path := solution.Path(*meta, detail.LangName)

	remote, err := host.GetFile(ctx, opts.Repo, path, opts.Branch)
	if err != nil {
		// The host answered, just not with 200 or 404.
		if errors.Is(err, errors.ErrUpstream) || errors.Is(err, errors.ErrMalformedResponse) {
			return nil, fmt.Errorf("%w %q: %w", ErrProbe, path, err)
		}
		return nil, fmt.Errorf("probe %q: %w", path, err)
	}

	req := github.PutFileRequest{
		Message: "Add " + path,
		Content: solution.EncodeContent(detail.Code),
		Branch:  opts.Branch,
	}
	if remote.Present {
		req.SHA = remote.SHA
	}

	out := &WriteOutput{Path: path}
	result, err := host.PutFile(ctx, opts.Repo, path, req)
	if errors.Is(err, errors.ErrRepoNotFound) {
		name := solution.RepoName(opts.Repo)
		log.Info("repository missing, creating", "repo", opts.Repo, "name", name)
		if err := host.CreateRepo(ctx, name); err != nil {
			return nil, fmt.Errorf("create repository %q: %w", name, err)
		}
		out.RepoCreated = true
		result, err = host.PutFile(ctx, opts.Repo, path, req)
	}
	if err != nil {
		return nil, fmt.Errorf("write %q: %w", path, err)
	}

	out.SHA = result.SHA
	out.Created = result.Created
	return out, nil
}
