package db

import (
	"database/sql"
	"strings"
	"time"

	"github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/solution"
)

// ErrUniqueConstraint is returned when an insert violates a UNIQUE constraint.
var ErrUniqueConstraint = &errors.SyncError{
	Code:    "UNIQUE_CONSTRAINT",
	Status:  409,
	Message: "unique constraint violation",
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// InsertRun records the start of a sync run.
func InsertRun(db *sql.DB, r *solution.Run) error {
	return insertRun(db, r)
}

func insertRun(ex execer, r *solution.Run) error {
	query := `
		INSERT INTO runs (
			id, repo, branch, status, listed, fetched, written, skipped,
			error, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var finishedAt sql.NullInt64
	if r.FinishedAt != nil {
		finishedAt = sql.NullInt64{Int64: *r.FinishedAt, Valid: true}
	}

	_, err := ex.Exec(query,
		r.ID, r.Repo, r.Branch, string(r.Status),
		r.Listed, r.Fetched, r.Written, r.Skipped,
		toNullString(r.Error), r.StartedAt, finishedAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// FinishRun stores the final status and counters of a run.
// Sets finished_at to the current timestamp.
func FinishRun(db *sql.DB, r *solution.Run) error {
	now := time.Now().Unix()

	query := `
		UPDATE runs
		SET status = ?, listed = ?, fetched = ?, written = ?, skipped = ?,
			error = ?, finished_at = ?
		WHERE id = ?
	`

	result, err := db.Exec(query,
		string(r.Status), r.Listed, r.Fetched, r.Written, r.Skipped,
		toNullString(r.Error), now,
		r.ID,
	)
	if err != nil {
		return errors.NewInternal(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return errors.NewInternal(err)
	}
	if rowsAffected == 0 {
		return errors.NewNotFound("run", r.ID)
	}

	r.FinishedAt = &now
	return nil
}

// GetRun retrieves a run by its ULID.
func GetRun(db *sql.DB, id string) (*solution.Run, error) {
	query := `
		SELECT id, repo, branch, status, listed, fetched, written, skipped,
			error, started_at, finished_at
		FROM runs
		WHERE id = ?
	`

	r, err := scanRun(db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, errors.NewNotFound("run", id)
	}
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListRuns returns runs newest first, plus the total count.
func ListRuns(db *sql.DB, limit, offset int) ([]solution.Run, int, error) {
	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM runs").Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, repo, branch, status, listed, fetched, written, skipped,
			error, started_at, finished_at
		FROM runs
		ORDER BY started_at DESC, id DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.Query(query, limit, offset)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var runs []solution.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return runs, total, nil
}

// InsertSyncedFile records a file written during a run.
// A problem is written at most once per run.
func InsertSyncedFile(db *sql.DB, f *solution.SyncedFile) error {
	return insertSyncedFile(db, f)
}

func insertSyncedFile(ex execer, f *solution.SyncedFile) error {
	query := `
		INSERT INTO synced_files (
			run_id, submission_id, title_slug, path, sha, created, written_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := ex.Exec(query,
		f.RunID, f.SubmissionID, f.TitleSlug, f.Path,
		toNullString(f.SHA), boolToInt(f.Created), f.WrittenAt,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrUniqueConstraint
		}
		return errors.NewInternal(err)
	}
	return nil
}

// ListFiles returns synced files newest first, plus the total count.
// An empty runID lists files across all runs.
func ListFiles(db *sql.DB, runID string, limit, offset int) ([]solution.SyncedFile, int, error) {
	where := ""
	args := []any{}
	if runID != "" {
		where = " WHERE run_id = ?"
		args = append(args, runID)
	}

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM synced_files"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT run_id, submission_id, title_slug, path, sha, created, written_at
		FROM synced_files` + where + `
		ORDER BY written_at DESC, rowid DESC
		LIMIT ? OFFSET ?
	`

	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var files []solution.SyncedFile
	for rows.Next() {
		var (
			f       solution.SyncedFile
			sha     sql.NullString
			created int
		)
		if err := rows.Scan(&f.RunID, &f.SubmissionID, &f.TitleSlug, &f.Path, &sha, &created, &f.WrittenAt); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		f.SHA = sha.String
		f.Created = created != 0
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	return files, total, nil
}

// RunWithFiles pairs a run with the files it wrote.
type RunWithFiles struct {
	Run   solution.Run
	Files []solution.SyncedFile
}

// ImportResult reports what ImportRuns did.
type ImportResult struct {
	Imported int
	Skipped  []string // IDs already present (skipExisting only)
	// Collision is the first ID already present when skipExisting is false.
	// Nothing was imported.
	Collision string
}

// ImportRuns inserts runs with their files in one transaction.
// With skipExisting, runs whose ID is already present are left untouched;
// otherwise the first collision rolls everything back.
func ImportRuns(db *sql.DB, runs []RunWithFiles, skipExisting bool) (*ImportResult, error) {
	tx, err := db.Begin()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	result := &ImportResult{}
	for i := range runs {
		r := &runs[i].Run

		var exists int
		if err := tx.QueryRow("SELECT COUNT(*) FROM runs WHERE id = ?", r.ID).Scan(&exists); err != nil {
			return nil, errors.NewInternal(err)
		}
		if exists > 0 {
			if !skipExisting {
				return &ImportResult{Collision: r.ID}, nil
			}
			result.Skipped = append(result.Skipped, r.ID)
			continue
		}

		if err := insertRun(tx, r); err != nil {
			return nil, err
		}
		for _, f := range runs[i].Files {
			f.RunID = r.ID
			if err := insertSyncedFile(tx, &f); err != nil {
				return nil, err
			}
		}
		result.Imported++
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}
	return result, nil
}

// DeleteRunsStartedBefore removes finished runs started before cutoff
// (Unix seconds) together with their files. Returns the number of runs deleted.
func DeleteRunsStartedBefore(db *sql.DB, cutoff int64) (int, error) {
	result, err := db.Exec(
		"DELETE FROM runs WHERE started_at < ? AND status != ?",
		cutoff, string(solution.RunRunning),
	)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

// isUniqueConstraintError checks if the error is a SQLite UNIQUE constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	// SQLite returns "UNIQUE constraint failed: ..." for unique violations
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a single row into a Run struct.
func scanRun(row scanner) (*solution.Run, error) {
	var (
		r          solution.Run
		status     string
		errText    sql.NullString
		finishedAt sql.NullInt64
	)

	err := row.Scan(
		&r.ID, &r.Repo, &r.Branch, &status,
		&r.Listed, &r.Fetched, &r.Written, &r.Skipped,
		&errText, &r.StartedAt, &finishedAt,
	)
	if err != nil {
		return nil, err
	}

	r.Status = solution.RunStatus(status)
	r.Error = errText.String
	if finishedAt.Valid {
		r.FinishedAt = &finishedAt.Int64
	}
	return &r, nil
}

// toNullString maps "" to NULL.
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
