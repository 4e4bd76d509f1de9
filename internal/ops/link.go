package ops

import (
	"context"
	"strings"

	"github.com/hpungsan/leetsync/internal/ctxlog"
	"github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/solution"
)

// LinkInput contains parameters for the Link operation.
type LinkInput struct {
	Repo string // optional, default: <login>/LEETCODESYNC-<login>
}

// LinkOutput contains the result of the Link operation.
type LinkOutput struct {
	Login   string `json:"login"`
	Repo    string `json:"repo"`
	Created bool   `json:"created"`
}

// Link resolves the destination repository for the token's account and
// creates it when missing. Only repositories owned by the token's user can
// be created.
func Link(ctx context.Context, acct Account, input LinkInput) (*LinkOutput, error) {
	login, err := acct.AuthenticatedUser(ctx)
	if err != nil {
		return nil, err
	}

	repo := strings.TrimSpace(input.Repo)
	if repo == "" {
		repo = solution.DefaultRepo(login)
	}
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, errors.NewInvalidRequest("repo must be in owner/repo form: " + repo)
	}

	exists, err := acct.RepoExists(ctx, repo)
	if err != nil {
		return nil, err
	}
	out := &LinkOutput{Login: login, Repo: repo}
	if exists {
		return out, nil
	}

	if !strings.EqualFold(owner, login) {
		return nil, errors.NewNotFound("repository", repo)
	}
	ctxlog.FromContext(ctx).Info("creating repository", "repo", repo)
	if err := acct.CreateRepo(ctx, name); err != nil {
		return nil, err
	}
	out.Created = true
	return out, nil
}
