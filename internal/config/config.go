package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	syncerr "github.com/hpungsan/leetsync/internal/errors"
)

// Environment variables that carry credentials. They override the file.
const (
	EnvLeetCodeSession = "LEETCODE_SESSION"
	EnvGitHubToken     = "GITHUB_TOKEN"
	EnvGitHubRepo      = "GITHUB_REPO"
)

// DefaultUserAgent is a browser-like user agent; the judge rejects bare clients.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Config holds application configuration.
type Config struct {
	// LeetCodeSession is the LEETCODE_SESSION cookie value.
	LeetCodeSession string `json:"leetcode_session,omitempty"`

	// GitHubToken is a token with repo scope.
	GitHubToken string `json:"github_token,omitempty"`

	// GitHubRepo is the destination in "owner/repo" form.
	GitHubRepo string `json:"github_repo,omitempty"`

	// Branch receives the commits.
	Branch string `json:"branch,omitempty"`

	// PageSize is the submission list page size.
	PageSize int `json:"page_size,omitempty"`

	// DetailRetries bounds how many times a not-yet-materialized
	// submission detail is polled before it is skipped.
	DetailRetries int `json:"detail_retries,omitempty"`

	// DetailCooldownSeconds is the fixed wait between detail polls.
	DetailCooldownSeconds int `json:"detail_cooldown_seconds,omitempty"`

	// QuestionRetries bounds question metadata attempts on network failure.
	QuestionRetries int `json:"question_retries,omitempty"`

	// QuestionBackoffSeconds is the wait between question metadata attempts.
	QuestionBackoffSeconds int `json:"question_backoff_seconds,omitempty"`

	// TransportRetries bounds total attempts for transient HTTP failures (429/5xx).
	TransportRetries int `json:"transport_retries,omitempty"`

	// RequestTimeoutSeconds is the per-request timeout.
	RequestTimeoutSeconds int `json:"request_timeout_seconds,omitempty"`

	LeetCodeURL  string `json:"leetcode_url,omitempty"`
	GitHubAPIURL string `json:"github_api_url,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// Ledger connection pool limits. Zero leaves database/sql defaults.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools lists MCP tool names that should not be registered.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Branch:                 "main",
		PageSize:               20,
		DetailRetries:          20,
		DetailCooldownSeconds:  60,
		QuestionRetries:        3,
		QuestionBackoffSeconds: 1,
		TransportRetries:       20,
		RequestTimeoutSeconds:  10,
		LeetCodeURL:            "https://leetcode.com",
		GitHubAPIURL:           "https://api.github.com",
		UserAgent:              DefaultUserAgent,
		LogLevel:               "info",
	}
}

// Load loads configuration from baseDir/config.json, then applies
// credential overrides from the environment.
// Returns default config if the file doesn't exist.
// The baseDir parameter allows tests to use t.TempDir() instead of ~/.leetsync.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return Merge(cfg, FromEnv()), nil
}

// FromEnv returns a config holding only the credentials found in the environment.
func FromEnv() *Config {
	return &Config{
		LeetCodeSession: strings.TrimSpace(os.Getenv(EnvLeetCodeSession)),
		GitHubToken:     strings.TrimSpace(os.Getenv(EnvGitHubToken)),
		GitHubRepo:      strings.TrimSpace(os.Getenv(EnvGitHubRepo)),
	}
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence when non-zero.
func Merge(base, overlay *Config) *Config {
	return &Config{
		LeetCodeSession:        pickString(overlay.LeetCodeSession, base.LeetCodeSession),
		GitHubToken:            pickString(overlay.GitHubToken, base.GitHubToken),
		GitHubRepo:             pickString(overlay.GitHubRepo, base.GitHubRepo),
		Branch:                 pickString(overlay.Branch, base.Branch),
		PageSize:               pickInt(overlay.PageSize, base.PageSize),
		DetailRetries:          pickInt(overlay.DetailRetries, base.DetailRetries),
		DetailCooldownSeconds:  pickInt(overlay.DetailCooldownSeconds, base.DetailCooldownSeconds),
		QuestionRetries:        pickInt(overlay.QuestionRetries, base.QuestionRetries),
		QuestionBackoffSeconds: pickInt(overlay.QuestionBackoffSeconds, base.QuestionBackoffSeconds),
		TransportRetries:       pickInt(overlay.TransportRetries, base.TransportRetries),
		RequestTimeoutSeconds:  pickInt(overlay.RequestTimeoutSeconds, base.RequestTimeoutSeconds),
		LeetCodeURL:            strings.TrimRight(pickString(overlay.LeetCodeURL, base.LeetCodeURL), "/"),
		GitHubAPIURL:           strings.TrimRight(pickString(overlay.GitHubAPIURL, base.GitHubAPIURL), "/"),
		UserAgent:              pickString(overlay.UserAgent, base.UserAgent),
		LogLevel:               pickString(overlay.LogLevel, base.LogLevel),
		DBMaxOpenConns:         pickInt(overlay.DBMaxOpenConns, base.DBMaxOpenConns),
		DBMaxIdleConns:         pickInt(overlay.DBMaxIdleConns, base.DBMaxIdleConns),
		DisabledTools:          pickSlice(overlay.DisabledTools, base.DisabledTools),
	}
}

// Validate checks that the credentials needed for a sync are present.
// The repo may be empty when the caller resolves a default from the token owner.
func (c *Config) Validate(requireRepo bool) error {
	if c.LeetCodeSession == "" {
		return syncerr.NewInvalidRequest("leetcode session is required (set " + EnvLeetCodeSession + ")")
	}
	if c.GitHubToken == "" {
		return syncerr.NewInvalidRequest("github token is required (set " + EnvGitHubToken + ")")
	}
	if requireRepo {
		if c.GitHubRepo == "" {
			return syncerr.NewInvalidRequest("github repo is required (set " + EnvGitHubRepo + ")")
		}
		if owner, name, ok := strings.Cut(c.GitHubRepo, "/"); !ok || owner == "" || name == "" {
			return syncerr.NewInvalidRequest("github repo must be in owner/repo form: " + c.GitHubRepo)
		}
	}
	return nil
}

// DetailCooldown returns the detail polling interval.
func (c *Config) DetailCooldown() time.Duration {
	return time.Duration(c.DetailCooldownSeconds) * time.Second
}

// QuestionBackoff returns the wait between question metadata attempts.
func (c *Config) QuestionBackoff() time.Duration {
	return time.Duration(c.QuestionBackoffSeconds) * time.Second
}

// RequestTimeout returns the per-request HTTP timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func pickString(overlay, base string) string {
	if s := strings.TrimSpace(overlay); s != "" {
		return s
	}
	return base
}

func pickSlice(overlay, base []string) []string {
	if overlay != nil {
		return overlay
	}
	return base
}

func pickInt(overlay, base int) int {
	if overlay != 0 {
		return overlay
	}
	return base
}
