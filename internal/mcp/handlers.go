package mcp

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/leetsync/internal/config"
	"github.com/hpungsan/leetsync/internal/ctxlog"
	"github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/github"
	"github.com/hpungsan/leetsync/internal/leetcode"
	"github.com/hpungsan/leetsync/internal/ops"
)

// Handlers holds dependencies for MCP tool handlers.
type Handlers struct {
	db         *sql.DB
	cfg        *config.Config
	exportsDir string

	deps    func(cfg *config.Config) ops.SyncDeps
	account func(cfg *config.Config) ops.Account
}

// NewHandlers creates a new Handlers instance. Exports land in baseDir/exports.
func NewHandlers(db *sql.DB, cfg *config.Config, baseDir string) *Handlers {
	return &Handlers{
		db:         db,
		cfg:        cfg,
		exportsDir: filepath.Join(baseDir, "exports"),
		deps: func(c *config.Config) ops.SyncDeps {
			return ops.SyncDeps{Judge: leetcode.New(c), Host: github.New(c), DB: db}
		},
		account: func(c *config.Config) ops.Account {
			return github.New(c)
		},
	}
}

// Request types for each tool

// RunRequest represents the arguments for sync_run.
type RunRequest struct {
	Repo     string `json:"repo,omitempty"`
	Branch   string `json:"branch,omitempty"`
	PageSize int    `json:"page_size,omitempty"`
}

// LinkRequest represents the arguments for sync_link.
type LinkRequest struct {
	Repo string `json:"repo,omitempty"`
}

// RunsRequest represents the arguments for sync_runs.
type RunsRequest struct {
	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}

// RunGetRequest represents the arguments for sync_run_get.
type RunGetRequest struct {
	ID string `json:"id"`
}

// FilesRequest represents the arguments for sync_files.
type FilesRequest struct {
	RunID  string `json:"run_id,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// ExportRequest represents the arguments for sync_export.
type ExportRequest struct {
	Path string `json:"path,omitempty"`
}

// Handler implementations

// HandleRun handles the sync_run tool call.
func (h *Handlers) HandleRun(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	cfg := config.Merge(h.cfg, &config.Config{
		GitHubRepo: input.Repo,
		Branch:     input.Branch,
		PageSize:   input.PageSize,
	})
	if err := cfg.Validate(true); err != nil {
		return errorResult(err), nil
	}

	log := ctxlog.FromContext(ctx)
	result, err := ops.Sync(ctx, h.deps(cfg), ops.SyncInput{
		Repo:     cfg.GitHubRepo,
		Branch:   cfg.Branch,
		PageSize: cfg.PageSize,
		Progress: func(e ops.Event) {
			log.Debug("sync progress", "kind", e.Kind, "title_slug", e.TitleSlug, "path", e.Path)
		},
	})
	if err != nil {
		if result != nil {
			return runErrorResult(err, result), nil
		}
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleLink handles the sync_link tool call.
func (h *Handlers) HandleLink(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[LinkRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	if h.cfg.GitHubToken == "" {
		return errorResult(errors.NewInvalidRequest("github token is required (set " + config.EnvGitHubToken + ")")), nil
	}
	repo := input.Repo
	if repo == "" {
		repo = h.cfg.GitHubRepo
	}

	result, err := ops.Link(ctx, h.account(h.cfg), ops.LinkInput{Repo: repo})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRuns handles the sync_runs tool call.
func (h *Handlers) HandleRuns(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunsRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Runs(h.db, ops.RunsInput{
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleRunGet handles the sync_run_get tool call.
func (h *Handlers) HandleRunGet(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[RunGetRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.GetRun(h.db, ops.GetRunInput{ID: input.ID})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleFiles handles the sync_files tool call.
func (h *Handlers) HandleFiles(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[FilesRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Files(h.db, ops.FilesInput{
		RunID:  input.RunID,
		Limit:  input.Limit,
		Offset: input.Offset,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// HandleExport handles the sync_export tool call.
func (h *Handlers) HandleExport(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	input, err := decode[ExportRequest](req)
	if err != nil {
		return errorResult(errors.NewInvalidRequest(err.Error())), nil
	}

	result, err := ops.Export(ctx, h.db, ops.ExportInput{
		Dir:  h.exportsDir,
		Path: input.Path,
	})
	if err != nil {
		return errorResult(err), nil
	}

	return successResult(result)
}

// Result helpers

// errorResult creates an MCP error result from any error.
// Uses IsError: true so MCP clients recognize failures properly.
// Internal error details are not exposed.
func errorResult(err error) *mcp.CallToolResult {
	return toolError(errorPayload(err))
}

// runErrorResult reports an aborted run together with its partial summary.
func runErrorResult(err error, run *ops.SyncOutput) *mcp.CallToolResult {
	payload := errorPayload(err)
	payload["run"] = run
	return toolError(payload)
}

func errorPayload(err error) map[string]any {
	var payload map[string]any

	var sErr *errors.SyncError
	if stderrors.As(err, &sErr) {
		message := sErr.Message
		// Keep wrapper context such as `write "1. two-sum.py": `
		if prefix := strings.TrimSuffix(err.Error(), sErr.Error()); prefix != err.Error() {
			message = prefix + message
		}
		errorObj := map[string]any{
			"code":    sErr.Code,
			"message": message,
			"status":  sErr.Status,
		}
		if sErr.Code != errors.ErrInternal && sErr.Details != nil {
			errorObj["details"] = sErr.Details
		}
		payload = map[string]any{"error": errorObj}
	} else {
		payload = map[string]any{
			"error": map[string]any{
				"code":    "INTERNAL",
				"message": "an internal error occurred",
				"status":  500,
			},
		}
	}

	return payload
}

func toolError(payload map[string]any) *mcp.CallToolResult {
	content, _ := json.Marshal(payload)
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(content)}},
		IsError: true,
	}
}

// successResult creates an MCP success result from any data.
func successResult(data any) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultJSON(data)
}
