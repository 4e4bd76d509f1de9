package mcp

import "github.com/mark3labs/mcp-go/mcp"

var runToolDef = mcp.NewTool("sync_run",
	mcp.WithDescription("Sync every accepted LeetCode solution into the GitHub repository. "+
		"Credentials come from the server's configuration. Returns the run summary; "+
		"a write failure aborts the run and is reported as an error."),
	mcp.WithString("repo", mcp.Description("Destination in owner/repo form (default: configured repo)")),
	mcp.WithString("branch", mcp.Description("Branch to commit to (default: configured branch)")),
	mcp.WithNumber("page_size", mcp.Description("Submission list page size (default: configured page size)")),
)

var linkToolDef = mcp.NewTool("sync_link",
	mcp.WithDescription("Resolve the destination repository for the token's account and create it when missing."),
	mcp.WithString("repo", mcp.Description("Destination in owner/repo form (default: <login>/LEETCODESYNC-<login>)")),
)

var runsToolDef = mcp.NewTool("sync_runs",
	mcp.WithDescription("List recorded sync runs, newest first."),
	mcp.WithNumber("limit", mcp.Description("Max results (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Results to skip")),
)

var runGetToolDef = mcp.NewTool("sync_run_get",
	mcp.WithDescription("Fetch one recorded run with every file it wrote."),
	mcp.WithString("id", mcp.Required(), mcp.Description("Run ID")),
)

var filesToolDef = mcp.NewTool("sync_files",
	mcp.WithDescription("List files written by sync runs, newest first."),
	mcp.WithString("run_id", mcp.Description("Only files written by this run")),
	mcp.WithNumber("limit", mcp.Description("Max results (default 20, max 100)")),
	mcp.WithNumber("offset", mcp.Description("Results to skip")),
)

var exportToolDef = mcp.NewTool("sync_export",
	mcp.WithDescription("Export the run ledger to a JSONL file under the exports directory."),
	mcp.WithString("path", mcp.Description("Output path (default: exports/runs-<timestamp>.jsonl)")),
)
