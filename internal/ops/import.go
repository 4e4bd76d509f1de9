package ops

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hpungsan/leetsync/internal/db"
	"github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/solution"
)

// maxImportLine bounds one JSONL record; a run with many files is one line.
const maxImportLine = 16 << 20

// ImportMode controls collision behavior during import.
type ImportMode string

const (
	ImportModeError ImportMode = "error" // fail on collision (atomic)
	ImportModeSkip  ImportMode = "skip"  // keep the existing run
)

// ImportInput contains parameters for the Import operation.
type ImportInput struct {
	Path string     // required
	Mode ImportMode // default: error
}

// ImportOutput contains the result of the Import operation.
type ImportOutput struct {
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []ImportError `json:"errors"`
}

// ImportError represents an error that occurred during import.
type ImportError struct {
	Line    int    `json:"line,omitempty"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Import loads runs from a JSONL file written by Export.
func Import(ctx context.Context, database *sql.DB, input ImportInput) (*ImportOutput, error) {
	if input.Path == "" {
		return nil, errors.NewInvalidRequest("path is required")
	}
	if input.Mode == "" {
		input.Mode = ImportModeError
	}
	if input.Mode != ImportModeError && input.Mode != ImportModeSkip {
		return nil, errors.NewInvalidRequest("mode must be one of: error, skip")
	}

	file, err := os.Open(input.Path)
	if os.IsNotExist(err) {
		return nil, errors.NewNotFound("import file", input.Path)
	}
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to open import file: %w", err))
	}
	defer file.Close()

	records, parseErrors := parseExportFile(file)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// For mode:error, fail on any parse errors
	if input.Mode == ImportModeError && len(parseErrors) > 0 {
		return &ImportOutput{Errors: parseErrors}, nil
	}

	result, err := db.ImportRuns(database, records, input.Mode == ImportModeSkip)
	if err != nil {
		return nil, err
	}

	out := &ImportOutput{
		Imported: result.Imported,
		Skipped:  len(result.Skipped) + len(parseErrors),
		Errors:   append([]ImportError{}, parseErrors...),
	}
	if result.Collision != "" {
		out.Skipped = 0
		out.Errors = append(out.Errors, ImportError{
			ID:      result.Collision,
			Code:    "ID_COLLISION",
			Message: fmt.Sprintf("run with id %q already exists", result.Collision),
		})
	}
	for _, id := range result.Skipped {
		out.Errors = append(out.Errors, ImportError{
			ID:      id,
			Code:    "ID_EXISTS",
			Message: fmt.Sprintf("run with id %q already exists, kept", id),
		})
	}
	return out, nil
}

// parseExportFile parses a JSONL export file into records.
func parseExportFile(r io.Reader) ([]db.RunWithFiles, []ImportError) {
	var records []db.RunWithFiles
	var parseErrors []ImportError

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxImportLine)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var header ExportHeader
		if err := json.Unmarshal(line, &header); err == nil && header.LeetsyncExport {
			continue
		}

		var record ExportRecord
		if err := json.Unmarshal(line, &record); err != nil {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				Code:    "PARSE_ERROR",
				Message: fmt.Sprintf("invalid JSON: %v", err),
			})
			continue
		}

		if msg := validateRecord(&record); msg != "" {
			parseErrors = append(parseErrors, ImportError{
				Line:    lineNum,
				ID:      record.ID,
				Code:    "INVALID_RECORD",
				Message: msg,
			})
			continue
		}

		records = append(records, db.RunWithFiles{Run: record.Run, Files: record.Files})
	}

	if err := scanner.Err(); err != nil {
		parseErrors = append(parseErrors, ImportError{
			Line:    lineNum + 1,
			Code:    "READ_ERROR",
			Message: fmt.Sprintf("failed to read file: %v", err),
		})
	}

	return records, parseErrors
}

func validateRecord(r *ExportRecord) string {
	switch {
	case r.ID == "":
		return "missing id field"
	case r.Repo == "":
		return "missing repo field"
	case r.Status != solution.RunSucceeded && r.Status != solution.RunFailed:
		return fmt.Sprintf("only finished runs can be imported, got status %q", r.Status)
	}
	seen := make(map[string]bool, len(r.Files))
	for _, f := range r.Files {
		if f.TitleSlug == "" || f.Path == "" {
			return "file entry missing title_slug or path"
		}
		if seen[f.TitleSlug] {
			return fmt.Sprintf("problem %q written twice in one run", f.TitleSlug)
		}
		seen[f.TitleSlug] = true
	}
	return ""
}
