package ops

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hpungsan/leetsync/internal/db"
	"github.com/hpungsan/leetsync/internal/errors"
)

func writeImportFile(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runs.jsonl")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("write import file: %v", err)
	}
	return path
}

const (
	importHeader = `{"_leetsync_export":true,"schema_version":"1.0","exported_at":1}`
	importRunA   = `{"id":"01IMP001","repo":"alice/solutions","branch":"main","status":"succeeded","listed":1,"fetched":1,"written":1,"skipped":0,"started_at":100,"finished_at":110,"files":[{"run_id":"01IMP001","submission_id":"7","title_slug":"two-sum","path":"1. two-sum.golang","sha":"abc","created":true,"written_at":105}]}`
	importRunB   = `{"id":"01IMP002","repo":"alice/solutions","branch":"main","status":"failed","error":"UPSTREAM: boom","started_at":200,"finished_at":210,"files":[]}`
)

func TestImport_RoundTripsExport(t *testing.T) {
	env := newTestEnv(t)
	seedRuns(t, env, 2)
	for _, id := range []string{"01RUN001", "01RUN002"} {
		if err := finishSeeded(env, id); err != nil {
			t.Fatalf("finish seeded run: %v", err)
		}
	}

	dir := filepath.Join(env.baseDir, "exports")
	exported, err := Export(context.Background(), env.db, ExportInput{Dir: dir})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}

	fresh := newTestEnv(t)
	out, err := Import(context.Background(), fresh.db, ImportInput{Path: exported.Path})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if out.Imported != 2 || len(out.Errors) != 0 {
		t.Fatalf("output = %+v", out)
	}

	got, err := GetRun(fresh.db, GetRunInput{ID: "01RUN002"})
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if len(got.Files) != 1 || got.Files[0].Path != "1. two-sum.golang" {
		t.Errorf("files = %+v", got.Files)
	}
}

func finishSeeded(env *testEnv, id string) error {
	run, err := db.GetRun(env.db, id)
	if err != nil {
		return err
	}
	return db.FinishRun(env.db, run)
}

func TestImport_ModeErrorCollision(t *testing.T) {
	env := newTestEnv(t)
	path := writeImportFile(t, importHeader, importRunA, importRunB)

	if _, err := Import(context.Background(), env.db, ImportInput{Path: path}); err != nil {
		t.Fatalf("first import failed: %v", err)
	}

	out, err := Import(context.Background(), env.db, ImportInput{Path: path})
	if err != nil {
		t.Fatalf("second import failed: %v", err)
	}
	if out.Imported != 0 || len(out.Errors) != 1 || out.Errors[0].Code != "ID_COLLISION" {
		t.Errorf("output = %+v", out)
	}
}

func TestImport_ModeSkip(t *testing.T) {
	env := newTestEnv(t)
	if _, err := Import(context.Background(), env.db, ImportInput{Path: writeImportFile(t, importRunA)}); err != nil {
		t.Fatalf("seed import failed: %v", err)
	}

	path := writeImportFile(t, importHeader, importRunA, importRunB)
	out, err := Import(context.Background(), env.db, ImportInput{Path: path, Mode: ImportModeSkip})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if out.Imported != 1 || out.Skipped != 1 {
		t.Errorf("imported=%d skipped=%d, want 1/1", out.Imported, out.Skipped)
	}
	if len(out.Errors) != 1 || out.Errors[0].ID != "01IMP001" {
		t.Errorf("errors = %+v", out.Errors)
	}
}

func TestImport_ParseErrors(t *testing.T) {
	env := newTestEnv(t)
	running := `{"id":"01IMP003","repo":"alice/solutions","branch":"main","status":"running","started_at":300}`
	path := writeImportFile(t, importHeader, importRunA, `{not json`, running)

	t.Run("mode error imports nothing", func(t *testing.T) {
		out, err := Import(context.Background(), env.db, ImportInput{Path: path})
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if out.Imported != 0 || len(out.Errors) != 2 {
			t.Fatalf("output = %+v", out)
		}
		if out.Errors[0].Line != 3 || out.Errors[0].Code != "PARSE_ERROR" {
			t.Errorf("first error = %+v", out.Errors[0])
		}
		if out.Errors[1].Code != "INVALID_RECORD" {
			t.Errorf("second error = %+v", out.Errors[1])
		}
	})

	t.Run("mode skip imports valid lines", func(t *testing.T) {
		out, err := Import(context.Background(), env.db, ImportInput{Path: path, Mode: ImportModeSkip})
		if err != nil {
			t.Fatalf("Import failed: %v", err)
		}
		if out.Imported != 1 || out.Skipped != 2 {
			t.Errorf("imported=%d skipped=%d, want 1/2", out.Imported, out.Skipped)
		}
	})
}

func TestImport_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		input ImportInput
		code  errors.ErrorCode
	}{
		{"missing path", ImportInput{}, errors.ErrInvalidRequest},
		{"bad mode", ImportInput{Path: "x.jsonl", Mode: "rename"}, errors.ErrInvalidRequest},
		{"missing file", ImportInput{Path: filepath.Join(t.TempDir(), "nope.jsonl")}, errors.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Import(context.Background(), env.db, tt.input)
			if !errors.Is(err, tt.code) {
				t.Errorf("error = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestImport_DuplicateProblemInRun(t *testing.T) {
	env := newTestEnv(t)
	dup := `{"id":"01IMP004","repo":"alice/solutions","branch":"main","status":"succeeded","started_at":1,"files":[` +
		`{"title_slug":"two-sum","path":"1. two-sum.golang","written_at":1},` +
		`{"title_slug":"two-sum","path":"1. two-sum.python3","written_at":2}]}`

	out, err := Import(context.Background(), env.db, ImportInput{Path: writeImportFile(t, dup)})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if len(out.Errors) != 1 || out.Errors[0].Code != "INVALID_RECORD" {
		t.Errorf("output = %+v", out)
	}
}
