package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	syncerr "github.com/hpungsan/leetsync/internal/errors"
)

func clearEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvLeetCodeSession, "")
	t.Setenv(EnvGitHubToken, "")
	t.Setenv(EnvGitHubRepo, "")
}

func TestLoad_DefaultWhenMissing(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PageSize != 20 {
		t.Fatalf("PageSize = %d, want 20", cfg.PageSize)
	}
	if cfg.Branch != "main" {
		t.Fatalf("Branch = %q, want main", cfg.Branch)
	}
	if cfg.DetailCooldown() != 60*time.Second {
		t.Fatalf("DetailCooldown = %v, want 60s", cfg.DetailCooldown())
	}
	if cfg.DetailRetries != 20 || cfg.QuestionRetries != 3 {
		t.Fatalf("retries = %d/%d, want 20/3", cfg.DetailRetries, cfg.QuestionRetries)
	}
}

func TestLoad_OverridesFromFile(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{"page_size": 50, "branch": "solutions", "leetcode_url": "http://judge.local/"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PageSize != 50 {
		t.Fatalf("PageSize = %d, want 50", cfg.PageSize)
	}
	if cfg.Branch != "solutions" {
		t.Fatalf("Branch = %q, want solutions", cfg.Branch)
	}
	if cfg.LeetCodeURL != "http://judge.local" {
		t.Fatalf("LeetCodeURL = %q, want trailing slash trimmed", cfg.LeetCodeURL)
	}
	// Unset values keep defaults
	if cfg.DetailRetries != 20 {
		t.Fatalf("DetailRetries = %d, want 20", cfg.DetailRetries)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")

	if err := os.WriteFile(configPath, []byte(`{not json}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Load(tmpDir); err == nil {
		t.Fatalf("Load() expected error, got nil")
	}
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.json")
	if err := os.WriteFile(configPath, []byte(`{"github_repo": "file/repo", "github_token": "file-token"}`), 0600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	t.Setenv(EnvLeetCodeSession, "sess")
	t.Setenv(EnvGitHubToken, "")
	t.Setenv(EnvGitHubRepo, "env/repo")

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GitHubRepo != "env/repo" {
		t.Errorf("GitHubRepo = %q, want env/repo", cfg.GitHubRepo)
	}
	if cfg.GitHubToken != "file-token" {
		t.Errorf("GitHubToken = %q, want file-token (empty env must not override)", cfg.GitHubToken)
	}
	if cfg.LeetCodeSession != "sess" {
		t.Errorf("LeetCodeSession = %q, want sess", cfg.LeetCodeSession)
	}
}

func TestMerge(t *testing.T) {
	base := DefaultConfig()
	overlay := &Config{PageSize: 5, UserAgent: "  "}

	got := Merge(base, overlay)

	if got.PageSize != 5 {
		t.Errorf("PageSize = %d, want 5", got.PageSize)
	}
	if got.UserAgent != DefaultUserAgent {
		t.Errorf("blank overlay should not replace base UserAgent, got %q", got.UserAgent)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		cfg         Config
		requireRepo bool
		wantErr     bool
	}{
		{"complete", Config{LeetCodeSession: "s", GitHubToken: "t", GitHubRepo: "a/b"}, true, false},
		{"missing session", Config{GitHubToken: "t", GitHubRepo: "a/b"}, true, true},
		{"missing token", Config{LeetCodeSession: "s", GitHubRepo: "a/b"}, true, true},
		{"missing repo", Config{LeetCodeSession: "s", GitHubToken: "t"}, true, true},
		{"missing repo allowed", Config{LeetCodeSession: "s", GitHubToken: "t"}, false, false},
		{"bad repo form", Config{LeetCodeSession: "s", GitHubToken: "t", GitHubRepo: "nodash"}, true, true},
		{"empty owner", Config{LeetCodeSession: "s", GitHubToken: "t", GitHubRepo: "/repo"}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate(tt.requireRepo)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !syncerr.Is(err, syncerr.ErrInvalidRequest) {
				t.Errorf("expected INVALID_REQUEST, got %v", err)
			}
		})
	}
}

func TestMerge_DisabledTools(t *testing.T) {
	base := &Config{DisabledTools: []string{"sync_export"}}

	if got := Merge(base, &Config{}); len(got.DisabledTools) != 1 {
		t.Errorf("nil overlay should keep base list, got %v", got.DisabledTools)
	}
	if got := Merge(base, &Config{DisabledTools: []string{}}); len(got.DisabledTools) != 0 {
		t.Errorf("empty overlay should clear the list, got %v", got.DisabledTools)
	}
}
