// Package ops implements the sync pipeline and the ledger queries behind
// every surface (CLI, web, MCP).
package ops

import (
	"context"
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/leetsync/internal/github"
	"github.com/hpungsan/leetsync/internal/solution"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// Judge is the capability set needed from the submission source.
type Judge interface {
	ListAcceptedSubmissions(ctx context.Context, pageSize int) ([]solution.SubmissionSummary, error)
	FetchDetail(ctx context.Context, submissionID string) (*solution.SubmissionDetail, error)
	FetchQuestion(ctx context.Context, titleSlug string) (*solution.ProblemMetadata, error)
}

// Host is the capability set needed to write into a repository.
type Host interface {
	GetFile(ctx context.Context, repo, path, branch string) (*solution.RemoteFile, error)
	PutFile(ctx context.Context, repo, path string, req github.PutFileRequest) (*github.PutFileResult, error)
	CreateRepo(ctx context.Context, name string) error
}

// Account resolves and provisions the destination repository.
type Account interface {
	AuthenticatedUser(ctx context.Context) (string, error)
	RepoExists(ctx context.Context, repo string) (bool, error)
	CreateRepo(ctx context.Context, name string) error
}

// clampPage applies limit defaults and bounds, and a non-negative offset.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return limit, max(offset, 0)
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}
