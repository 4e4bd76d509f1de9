package ops

import (
	"context"
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/httpx"
	"github.com/hpungsan/leetsync/internal/solution"
)

func testDetail(code string) *solution.SubmissionDetail {
	return &solution.SubmissionDetail{
		SubmissionID: "100",
		Code:         code,
		LangName:     "python3",
		QuestionID:   "42",
		TitleSlug:    "trapping-rain-water",
	}
}

func testMeta() *solution.ProblemMetadata {
	return &solution.ProblemMetadata{QuestionID: "42", FrontendID: "42", Title: "Trapping Rain Water", TitleSlug: "trapping-rain-water"}
}

var testWriteOpts = WriteOptions{Repo: testRepo, Branch: "main"}

func TestWriteSolution_CreatesFile(t *testing.T) {
	env := newTestEnv(t)
	env.host.AddRepo(testRepo)

	out, err := WriteSolution(context.Background(), env.gh, testDetail(`def f():\n    return 1`), testMeta(), testWriteOpts)
	if err != nil {
		t.Fatalf("WriteSolution failed: %v", err)
	}
	if out.Path != "42. trapping-rain-water.python3" {
		t.Errorf("Path = %q", out.Path)
	}
	if !out.Created {
		t.Error("Created = false, want true")
	}
	if out.RepoCreated {
		t.Error("RepoCreated = true for an existing repo")
	}

	file, ok := env.host.File(testRepo, out.Path)
	if !ok {
		t.Fatal("file not stored")
	}
	if file.Content != "def f():\n    return 1" {
		t.Errorf("content = %q, want escaped newlines materialized", file.Content)
	}
	if out.SHA != file.SHA {
		t.Errorf("SHA = %q, want %q", out.SHA, file.SHA)
	}
}

func TestWriteSolution_UpdateReusesSHA(t *testing.T) {
	env := newTestEnv(t)
	env.host.AddRepo(testRepo)
	ctx := context.Background()

	if _, err := WriteSolution(ctx, env.gh, testDetail("v1"), testMeta(), testWriteOpts); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	out, err := WriteSolution(ctx, env.gh, testDetail("v2"), testMeta(), testWriteOpts)
	if err != nil {
		t.Fatalf("second write failed: %v", err)
	}
	if out.Created {
		t.Error("Created = true on update")
	}
	file, _ := env.host.File(testRepo, out.Path)
	if file.Content != "v2" {
		t.Errorf("content = %q, want v2", file.Content)
	}
	if env.host.Probes != 2 {
		t.Errorf("Probes = %d, want one per write", env.host.Probes)
	}
}

func TestWriteSolution_SameContentIsNoChange(t *testing.T) {
	env := newTestEnv(t)
	env.host.AddRepo(testRepo)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := WriteSolution(ctx, env.gh, testDetail("same"), testMeta(), testWriteOpts); err != nil {
			t.Fatalf("write %d failed: %v", i, err)
		}
	}
	if env.host.Changes != 1 {
		t.Errorf("Changes = %d, want 1", env.host.Changes)
	}
}

func TestWriteSolution_CreatesMissingRepoAndRetries(t *testing.T) {
	env := newTestEnv(t)

	out, err := WriteSolution(context.Background(), env.gh, testDetail("x"), testMeta(), testWriteOpts)
	if err != nil {
		t.Fatalf("WriteSolution failed: %v", err)
	}
	if !out.RepoCreated {
		t.Error("RepoCreated = false, want true")
	}
	if !env.host.HasRepo(testRepo) {
		t.Fatal("repository was not created")
	}
	if env.host.RepoCreates != 1 {
		t.Errorf("RepoCreates = %d, want 1", env.host.RepoCreates)
	}
	if env.host.Puts != 2 {
		t.Errorf("Puts = %d, want 2 (original + retry)", env.host.Puts)
	}
}

func TestWriteSolution_RepoCreationRetriedAtMostOnce(t *testing.T) {
	env := newTestEnv(t)
	env.host.FailNextPuts(http.StatusNotFound, http.StatusNotFound)

	_, err := WriteSolution(context.Background(), env.gh, testDetail("x"), testMeta(), testWriteOpts)
	if !errors.Is(err, errors.ErrRepoNotFound) {
		t.Fatalf("expected REPO_NOT_FOUND, got %v", err)
	}
	if env.host.RepoCreates != 1 {
		t.Errorf("RepoCreates = %d, want 1", env.host.RepoCreates)
	}
	if env.host.Puts != 2 {
		t.Errorf("Puts = %d, want 2", env.host.Puts)
	}
}

func TestWriteSolution_OtherPutFailurePropagates(t *testing.T) {
	env := newTestEnv(t)
	env.host.AddRepo(testRepo)
	env.host.FailNextPuts(http.StatusUnprocessableEntity)

	_, err := WriteSolution(context.Background(), env.gh, testDetail("x"), testMeta(), testWriteOpts)
	if !errors.Is(err, errors.ErrUpstream) {
		t.Fatalf("expected UPSTREAM, got %v", err)
	}
	if stderrors.Is(err, ErrProbe) {
		t.Error("put failure must not be reported as a probe failure")
	}
	if env.host.RepoCreates != 0 {
		t.Errorf("RepoCreates = %d, want 0", env.host.RepoCreates)
	}
}

func TestWriteSolution_ProbeFailureWritesNothing(t *testing.T) {
	env := newTestEnv(t)
	env.host.AddRepo(testRepo)
	env.host.FailNextProbes(http.StatusForbidden)

	_, err := WriteSolution(context.Background(), env.gh, testDetail("x"), testMeta(), testWriteOpts)
	if !stderrors.Is(err, ErrProbe) {
		t.Fatalf("expected ErrProbe, got %v", err)
	}
	if env.host.Puts != 0 {
		t.Errorf("Puts = %d, want 0", env.host.Puts)
	}
}

func TestWriteSolution_ProbeTransportFailureNotSkippable(t *testing.T) {
	env := newTestEnv(t)
	env.host.AddRepo(testRepo)
	env.host.FailNextProbes(http.StatusServiceUnavailable)

	_, err := WriteSolution(context.Background(), env.gh, testDetail("x"), testMeta(), testWriteOpts)
	if err == nil {
		t.Fatal("expected error")
	}
	if stderrors.Is(err, ErrProbe) {
		t.Errorf("transport failure must not be marked ErrProbe: %v", err)
	}
	var reqErr *httpx.RequestError
	if !stderrors.As(err, &reqErr) {
		t.Errorf("expected *httpx.RequestError, got %T: %v", err, err)
	}
	if env.host.Puts != 0 {
		t.Errorf("Puts = %d, want 0", env.host.Puts)
	}
}

func TestWriteSolution_Validation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		detail *solution.SubmissionDetail
		meta   *solution.ProblemMetadata
		opts   WriteOptions
	}{
		{"nil detail", nil, testMeta(), testWriteOpts},
		{"nil meta", testDetail("x"), nil, testWriteOpts},
		{"no repo", testDetail("x"), testMeta(), WriteOptions{Branch: "main"}},
		{"no branch", testDetail("x"), testMeta(), WriteOptions{Repo: testRepo}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := WriteSolution(ctx, env.gh, tt.detail, tt.meta, tt.opts)
			if !errors.Is(err, errors.ErrInvalidRequest) {
				t.Errorf("expected INVALID_REQUEST, got %v", err)
			}
		})
	}
}
