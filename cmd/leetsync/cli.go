package main

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/hpungsan/leetsync/internal/config"
	"github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/github"
	"github.com/hpungsan/leetsync/internal/leetcode"
	"github.com/hpungsan/leetsync/internal/ops"
	"github.com/hpungsan/leetsync/internal/web"
)

// newSyncDeps builds the collaborators of a run. Tests replace it.
var newSyncDeps = func(db *sql.DB, cfg *config.Config) ops.SyncDeps {
	return ops.SyncDeps{Judge: leetcode.New(cfg), Host: github.New(cfg), DB: db}
}

// newAccount builds the repository provisioning client. Tests replace it.
var newAccount = func(cfg *config.Config) ops.Account {
	return github.New(cfg)
}

// newCLIApp creates the CLI application with all commands.
func newCLIApp(db *sql.DB, cfg *config.Config, baseDir string) *cli.App {
	app := &cli.App{
		Name:    "leetsync",
		Usage:   "Commit accepted LeetCode solutions to a GitHub repository",
		Version: Version,
		Commands: []*cli.Command{
			syncCmd(db, cfg),
			linkCmd(cfg),
			runsCmd(db),
			runCmd(db),
			filesCmd(db),
			exportCmd(db, baseDir),
			importCmd(db),
			purgeCmd(db),
			serveCmd(db, cfg),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// syncCmd creates the sync command.
func syncCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Sync every accepted solution into the repository",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Usage: "Destination owner/repo (default: " + config.EnvGitHubRepo + " or config)"},
			&cli.StringFlag{Name: "branch", Aliases: []string{"b"}, Usage: "Branch to commit to (default: main)"},
			&cli.IntFlag{Name: "page-size", Usage: "Submission list page size (default: 20)"},
			&cli.BoolFlag{Name: "quiet", Aliases: []string{"q"}, Usage: "Do not print per-problem progress"},
		},
		Action: func(c *cli.Context) error {
			merged := config.Merge(cfg, &config.Config{
				GitHubRepo: c.String("repo"),
				Branch:     c.String("branch"),
				PageSize:   c.Int("page-size"),
			})
			if err := merged.Validate(true); err != nil {
				return outputError(err)
			}

			input := ops.SyncInput{
				Repo:     merged.GitHubRepo,
				Branch:   merged.Branch,
				PageSize: merged.PageSize,
			}
			if !c.Bool("quiet") {
				input.Progress = func(e ops.Event) { printEvent(os.Stderr, e) }
			}

			output, err := ops.Sync(c.Context, newSyncDeps(db, merged), input)
			if err != nil {
				if output != nil {
					_ = outputJSON(output)
				}
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// linkCmd creates the link command.
func linkCmd(cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "link",
		Usage: "Resolve the destination repository and create it when missing",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "repo", Aliases: []string{"r"}, Usage: "Destination owner/repo (default: <login>/LEETCODESYNC-<login>)"},
		},
		Action: func(c *cli.Context) error {
			if cfg.GitHubToken == "" {
				return outputError(errors.NewInvalidRequest("github token is required (set " + config.EnvGitHubToken + ")"))
			}
			repo := c.String("repo")
			if repo == "" {
				repo = cfg.GitHubRepo
			}

			output, err := ops.Link(c.Context, newAccount(cfg), ops.LinkInput{Repo: repo})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// runsCmd creates the runs command.
func runsCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "runs",
		Usage: "List recorded sync runs, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Runs(db, ops.RunsInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// runCmd creates the run command.
func runCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Show one run with every file it wrote",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			output, err := ops.GetRun(db, ops.GetRunInput{ID: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// filesCmd creates the files command.
func filesCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "files",
		Usage: "List files written by sync runs, newest first",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "run", Usage: "Only files written by this run"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: 20, Usage: "Maximum items to return"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Value: 0, Usage: "Items to skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Files(db, ops.FilesInput{
				RunID:  c.String("run"),
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// exportCmd creates the export command.
func exportCmd(db *sql.DB, baseDir string) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Export the run ledger to a JSONL file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Export file path (default: ~/.leetsync/exports/runs-<timestamp>.jsonl)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, db, ops.ExportInput{
				Dir:  filepath.Join(baseDir, "exports"),
				Path: c.String("path"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// importCmd creates the import command.
func importCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import runs from a JSONL export file",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Required: true, Usage: "Import file path"},
			&cli.StringFlag{Name: "mode", Aliases: []string{"m"}, Value: "error", Usage: "Collision mode: error|skip"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Import(c.Context, db, ops.ImportInput{
				Path: c.String("path"),
				Mode: ops.ImportMode(c.String("mode")),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// purgeCmd creates the purge command.
func purgeCmd(db *sql.DB) *cli.Command {
	return &cli.Command{
		Name:  "purge",
		Usage: "Permanently delete finished runs from the ledger",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "older-than", Usage: "Only purge runs started more than N days ago (e.g., 30d)"},
		},
		Action: func(c *cli.Context) error {
			input := ops.PurgeInput{}
			if olderThan := c.String("older-than"); olderThan != "" {
				days, err := parseDuration(olderThan)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
				input.OlderThanDays = &days
			}

			output, err := ops.Purge(c.Context, db, input)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(db *sql.DB, cfg *config.Config) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI for triggering runs and browsing history",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv := web.NewServer(db, cfg, Version, c.String("bind"), c.Int("port"))
			if err := web.Run(srv); err != nil {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

var (
	syncedLabel  = color.New(color.FgGreen).Sprint("SYNCED ")
	skippedLabel = color.New(color.FgYellow).Sprint("SKIPPED")
	failedLabel  = color.New(color.FgRed).Sprint("FAILED ")
)

// printEvent writes one progress line for a problem outcome.
func printEvent(w io.Writer, e ops.Event) {
	switch e.Kind {
	case ops.EventSynced:
		fmt.Fprintf(w, "%s %s\n", syncedLabel, e.Path)
	case ops.EventSkipped:
		fmt.Fprintf(w, "%s %s (%s)\n", skippedLabel, e.TitleSlug, e.Reason)
	case ops.EventFailed:
		fmt.Fprintf(w, "%s %s (%s)\n", failedLabel, e.TitleSlug, e.Reason)
	}
}

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var sErr *errors.SyncError
	if stderrors.As(err, &sErr) {
		msg := sErr.Message
		if err != error(sErr) {
			msg = err.Error()
		}
		return cli.Exit(fmt.Sprintf("[%s] %s", sErr.Code, msg), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 30d")
}
