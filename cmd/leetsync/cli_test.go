package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/hpungsan/leetsync/internal/config"
	"github.com/hpungsan/leetsync/internal/db"
	"github.com/hpungsan/leetsync/internal/github"
	"github.com/hpungsan/leetsync/internal/httpx"
	"github.com/hpungsan/leetsync/internal/leetcode"
	"github.com/hpungsan/leetsync/internal/ops"
	"github.com/hpungsan/leetsync/internal/poll"
	"github.com/hpungsan/leetsync/internal/testutil"
)

const testRepo = "alice/solutions"

func noSleep(context.Context, time.Duration) error { return nil }

type cliEnv struct {
	db      *sql.DB
	cfg     *config.Config
	judge   *testutil.FakeLeetCode
	host    *testutil.FakeGitHub
	baseDir string
}

// setupCLI creates a temporary database and points the command
// dependencies at in-memory fakes.
func setupCLI(t *testing.T) *cliEnv {
	t.Helper()
	baseDir := t.TempDir()
	database, err := db.Init(baseDir)
	if err != nil {
		t.Fatalf("failed to init test db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	cfg := config.DefaultConfig()
	cfg.LeetCodeSession = "sess"
	cfg.GitHubToken = "tok"
	cfg.GitHubRepo = testRepo

	env := &cliEnv{
		db:      database,
		cfg:     cfg,
		judge:   testutil.NewFakeLeetCode(t),
		host:    testutil.NewFakeGitHub(t, "alice"),
		baseDir: baseDir,
	}

	ghClient := func() *github.Client {
		return github.NewWithHTTP(env.host.URL(), httpx.NewWithClient(env.host.Server.Client(), httpx.Options{
			MaxAttempts: 1,
			Header:      http.Header{"Authorization": {"token tok"}},
			Sleep:       noSleep,
		}))
	}

	oldDeps, oldAccount := newSyncDeps, newAccount
	t.Cleanup(func() { newSyncDeps, newAccount = oldDeps, oldAccount })

	newSyncDeps = func(database *sql.DB, _ *config.Config) ops.SyncDeps {
		lc := leetcode.NewWithHTTP(env.judge.URL(), httpx.NewWithClient(env.judge.Server.Client(), httpx.Options{
			MaxAttempts: 1,
			Header:      http.Header{"Cookie": {"LEETCODE_SESSION=sess"}},
			Sleep:       noSleep,
		}), leetcode.Options{
			DetailPolicy:   poll.Policy{Interval: time.Minute, MaxAttempts: 2, Sleep: noSleep},
			QuestionPolicy: poll.Policy{Interval: time.Second, MaxAttempts: 1, Sleep: noSleep},
		})
		return ops.SyncDeps{Judge: lc, Host: ghClient(), DB: database}
	}
	newAccount = func(*config.Config) ops.Account { return ghClient() }
	return env
}

func (e *cliEnv) addSolved(id, frontendID, slug string) {
	e.judge.AddQuestion(testutil.Question{QuestionID: frontendID, FrontendID: frontendID, Title: slug, TitleSlug: slug})
	e.judge.AddSubmission(testutil.Submission{ID: id, Status: "Accepted", TitleSlug: slug, Code: "int main() {}", Lang: "cpp"})
}

// run executes the CLI and returns captured stdout.
func (e *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	app := newCLIApp(e.db, e.cfg, e.baseDir)

	oldStdout := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	err := app.Run(append([]string{"leetsync"}, args...))

	w.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(r)
	os.Stdout = oldStdout
	return buf.String(), err
}

func TestCLISync(t *testing.T) {
	env := setupCLI(t)
	env.host.AddRepo(testRepo)
	env.addSolved("11", "1", "two-sum")
	env.addSolved("12", "2", "add-two-numbers")

	out, err := env.run(t, "sync", "--quiet")
	if err != nil {
		t.Fatalf("sync command failed: %v", err)
	}

	var output ops.SyncOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Written != 2 || output.Skipped != 0 {
		t.Errorf("written=%d skipped=%d, want 2/0", output.Written, output.Skipped)
	}
	if _, ok := env.host.File(testRepo, "2. add-two-numbers.cpp"); !ok {
		t.Error("expected file to be written")
	}
}

func TestCLISync_AbortPrintsPartialRun(t *testing.T) {
	env := setupCLI(t)
	env.host.AddRepo(testRepo)
	env.addSolved("11", "1", "two-sum")
	env.host.FailNextPuts(http.StatusForbidden)

	out, err := env.run(t, "sync", "--quiet")
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "[UPSTREAM]") {
		t.Errorf("error = %v, want UPSTREAM code", err)
	}

	var output ops.SyncOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.RunID == "" || output.Status != "failed" {
		t.Errorf("output = %+v", output)
	}
}

func TestCLISync_MissingCredentials(t *testing.T) {
	env := setupCLI(t)
	env.cfg.GitHubToken = ""

	_, err := env.run(t, "sync")
	if err == nil || !strings.Contains(err.Error(), "[INVALID_REQUEST]") {
		t.Fatalf("error = %v, want INVALID_REQUEST", err)
	}
}

func TestCLILink(t *testing.T) {
	env := setupCLI(t)
	env.cfg.GitHubRepo = ""

	out, err := env.run(t, "link")
	if err != nil {
		t.Fatalf("link command failed: %v", err)
	}

	var output ops.LinkOutput
	if err := json.Unmarshal([]byte(out), &output); err != nil {
		t.Fatalf("failed to parse output: %v\nOutput: %s", err, out)
	}
	if output.Repo != "alice/LEETCODESYNC-alice" || !output.Created {
		t.Errorf("output = %+v", output)
	}
	if !env.host.HasRepo("alice/LEETCODESYNC-alice") {
		t.Error("default repo should be created")
	}
}

func TestCLIHistory(t *testing.T) {
	env := setupCLI(t)
	env.host.AddRepo(testRepo)
	env.addSolved("11", "1", "two-sum")

	out, err := env.run(t, "sync", "--quiet")
	if err != nil {
		t.Fatalf("sync command failed: %v", err)
	}
	var synced ops.SyncOutput
	if err := json.Unmarshal([]byte(out), &synced); err != nil {
		t.Fatalf("failed to parse sync output: %v", err)
	}

	t.Run("runs", func(t *testing.T) {
		out, err := env.run(t, "runs", "--limit=5")
		if err != nil {
			t.Fatalf("runs command failed: %v", err)
		}
		var output ops.RunsOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if len(output.Items) != 1 || output.Items[0].ID != synced.RunID {
			t.Errorf("items = %+v", output.Items)
		}
	})

	t.Run("run", func(t *testing.T) {
		out, err := env.run(t, "run", synced.RunID)
		if err != nil {
			t.Fatalf("run command failed: %v", err)
		}
		var output ops.GetRunOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if len(output.Files) != 1 || output.Files[0].Path != "1. two-sum.cpp" {
			t.Errorf("files = %+v", output.Files)
		}
	})

	t.Run("run not found", func(t *testing.T) {
		if _, err := env.run(t, "run", "missing"); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("files", func(t *testing.T) {
		out, err := env.run(t, "files", "--run="+synced.RunID)
		if err != nil {
			t.Fatalf("files command failed: %v", err)
		}
		var output ops.FilesOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Pagination.Total != 1 {
			t.Errorf("total = %d, want 1", output.Pagination.Total)
		}
	})

	t.Run("export", func(t *testing.T) {
		out, err := env.run(t, "export")
		if err != nil {
			t.Fatalf("export command failed: %v", err)
		}
		var output ops.ExportOutput
		if err := json.Unmarshal([]byte(out), &output); err != nil {
			t.Fatalf("failed to parse output: %v", err)
		}
		if output.Count != 1 {
			t.Errorf("count = %d, want 1", output.Count)
		}
		if filepath.Dir(output.Path) != filepath.Join(env.baseDir, "exports") {
			t.Errorf("path = %s, want under exports dir", output.Path)
		}
	})
}

func TestCLIExportImportPurge(t *testing.T) {
	env := setupCLI(t)
	env.host.AddRepo(testRepo)
	env.addSolved("11", "1", "two-sum")

	if _, err := env.run(t, "sync", "--quiet"); err != nil {
		t.Fatalf("sync command failed: %v", err)
	}
	out, err := env.run(t, "export")
	if err != nil {
		t.Fatalf("export command failed: %v", err)
	}
	var exported ops.ExportOutput
	if err := json.Unmarshal([]byte(out), &exported); err != nil {
		t.Fatalf("failed to parse export output: %v", err)
	}

	out, err = env.run(t, "purge")
	if err != nil {
		t.Fatalf("purge command failed: %v", err)
	}
	var purged ops.PurgeOutput
	if err := json.Unmarshal([]byte(out), &purged); err != nil {
		t.Fatalf("failed to parse purge output: %v", err)
	}
	if purged.Purged != 1 {
		t.Errorf("purged = %d, want 1", purged.Purged)
	}

	out, err = env.run(t, "import", "--path="+exported.Path)
	if err != nil {
		t.Fatalf("import command failed: %v", err)
	}
	var imported ops.ImportOutput
	if err := json.Unmarshal([]byte(out), &imported); err != nil {
		t.Fatalf("failed to parse import output: %v", err)
	}
	if imported.Imported != 1 {
		t.Errorf("imported = %d, want 1", imported.Imported)
	}

	if _, err := env.run(t, "purge", "--older-than=soon"); err == nil {
		t.Error("expected error for invalid duration")
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input       string
		expected    int
		expectError bool
	}{
		{"30d", 30, false},
		{"0d", 0, false},
		{"-1d", 0, true},
		{"7", 0, true},
		{"xd", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			days, err := parseDuration(tt.input)
			if (err != nil) != tt.expectError {
				t.Fatalf("parseDuration(%q) error = %v, expectError %v", tt.input, err, tt.expectError)
			}
			if !tt.expectError && days != tt.expected {
				t.Errorf("parseDuration(%q) = %d, want %d", tt.input, days, tt.expected)
			}
		})
	}
}

func TestPrintEvent(t *testing.T) {
	oldNoColor := color.NoColor
	color.NoColor = true
	defer func() { color.NoColor = oldNoColor }()

	tests := []struct {
		name  string
		event ops.Event
		want  string
	}{
		{"synced", ops.Event{Kind: ops.EventSynced, TitleSlug: "two-sum", Path: "1. two-sum.cpp"}, "1. two-sum.cpp"},
		{"skipped", ops.Event{Kind: ops.EventSkipped, TitleSlug: "two-sum", Reason: "not ready"}, "two-sum (not ready)"},
		{"failed", ops.Event{Kind: ops.EventFailed, TitleSlug: "two-sum", Reason: "forbidden"}, "two-sum (forbidden)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printEvent(&buf, tt.event)
			if !strings.Contains(buf.String(), tt.want) {
				t.Errorf("printEvent() = %q, want to contain %q", buf.String(), tt.want)
			}
		})
	}
}

func TestIsCLIMode(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"leetsync"}, false},
		{"sync command", []string{"leetsync", "sync"}, true},
		{"serve command", []string{"leetsync", "serve"}, true},
		{"help flag", []string{"leetsync", "--help"}, true},
		{"short version flag", []string{"leetsync", "-v"}, true},
		{"unknown arg defaults to MCP", []string{"leetsync", "--unknown"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isCLIMode(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestIsHelpOrVersion(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected bool
	}{
		{"no args", []string{"leetsync"}, false},
		{"help flag", []string{"leetsync", "--help"}, true},
		{"version flag", []string{"leetsync", "--version"}, true},
		{"help subcommand", []string{"leetsync", "help"}, true},
		{"sync command is not help", []string{"leetsync", "sync"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldArgs := os.Args
			defer func() { os.Args = oldArgs }()

			os.Args = tt.args
			if result := isHelpOrVersion(); result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestBaseDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(EnvHome, dir)

	got, err := baseDir()
	if err != nil {
		t.Fatalf("baseDir() error = %v", err)
	}
	if got != dir {
		t.Errorf("baseDir() = %q, want %q", got, dir)
	}
}
