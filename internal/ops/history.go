package ops

import (
	"database/sql"
	"strings"

	"github.com/hpungsan/leetsync/internal/db"
	"github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/solution"
)

// RunsInput contains parameters for the Runs operation.
type RunsInput struct {
	Limit  int // default: 20, max: 100
	Offset int // default: 0
}

// RunsOutput contains the result of the Runs operation.
type RunsOutput struct {
	Items      []solution.Run `json:"items"`
	Pagination Pagination     `json:"pagination"`
	Sort       string         `json:"sort"`
}

// Runs lists recorded sync runs, newest first.
func Runs(database *sql.DB, input RunsInput) (*RunsOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	runs, total, err := db.ListRuns(database, limit, offset)
	if err != nil {
		return nil, err
	}
	if runs == nil {
		runs = []solution.Run{}
	}

	return &RunsOutput{
		Items: runs,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(runs) < total,
			Total:   total,
		},
		Sort: "started_at_desc",
	}, nil
}

// GetRunInput contains parameters for the GetRun operation.
type GetRunInput struct {
	ID string // required
}

// GetRunOutput is a run with every file it wrote.
type GetRunOutput struct {
	Run   solution.Run          `json:"run"`
	Files []solution.SyncedFile `json:"files"`
}

// GetRun retrieves one run and its files.
func GetRun(database *sql.DB, input GetRunInput) (*GetRunOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("run id is required")
	}

	run, err := db.GetRun(database, id)
	if err != nil {
		return nil, err
	}
	files, _, err := db.ListFiles(database, id, -1, 0)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []solution.SyncedFile{}
	}
	return &GetRunOutput{Run: *run, Files: files}, nil
}

// FilesInput contains parameters for the Files operation.
type FilesInput struct {
	RunID  string // optional filter by run
	Limit  int    // default: 20, max: 100
	Offset int    // default: 0
}

// FilesOutput contains the result of the Files operation.
type FilesOutput struct {
	Items      []solution.SyncedFile `json:"items"`
	Pagination Pagination            `json:"pagination"`
	Sort       string                `json:"sort"`
}

// Files lists synced files, newest first.
func Files(database *sql.DB, input FilesInput) (*FilesOutput, error) {
	limit, offset := clampPage(input.Limit, input.Offset)

	files, total, err := db.ListFiles(database, strings.TrimSpace(input.RunID), limit, offset)
	if err != nil {
		return nil, err
	}
	if files == nil {
		files = []solution.SyncedFile{}
	}

	return &FilesOutput{
		Items: files,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(files) < total,
			Total:   total,
		},
		Sort: "written_at_desc",
	}, nil
}
