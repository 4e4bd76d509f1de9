package web

import (
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/hpungsan/leetsync/internal/config"
	"github.com/hpungsan/leetsync/internal/ctxlog"
	"github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/ops"
)

// maxRunBody bounds the POST /run request body.
const maxRunBody = 64 << 10

// Handlers contains HTTP route handlers for the web UI.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	deps     DepsFunc
}

// runRequest carries per-run credentials. The three credentials come as a
// set: either all of them or none, in which case the server's configured
// credentials are used.
type runRequest struct {
	LeetCodeSession string `json:"leetcode_session"`
	GitHubToken     string `json:"github_token"`
	GitHubRepo      string `json:"github_repo"`
	Branch          string `json:"branch"`
}

// HandleRun handles POST /run: run a sync with the supplied credentials.
// A request that carries no credentials runs with the server's own.
// JSON clients get the run summary; form posts are redirected to the run page.
func (h *Handlers) HandleRun(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRunRequest(w, r)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	overlay, err := req.overlay()
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	cfg := config.Merge(h.cfg, overlay)
	if err := cfg.Validate(true); err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	ctx := r.Context()
	out, err := ops.Sync(ctx, h.deps(cfg), ops.SyncInput{
		Repo:     cfg.GitHubRepo,
		Branch:   cfg.Branch,
		PageSize: cfg.PageSize,
	})
	if err != nil {
		ctxlog.FromContext(ctx).Error("sync run failed", "repo", cfg.GitHubRepo, "error", err)
	}
	if out == nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		if err == nil {
			renderJSON(w, http.StatusOK, out)
			return
		}
		var sErr *errors.SyncError
		if !stderrors.As(err, &sErr) {
			sErr = errors.NewInternal(err)
		}
		renderJSON(w, sErr.Status, map[string]any{
			"run": out,
			"error": map[string]any{
				"code":    string(sErr.Code),
				"message": sErr.Message,
				"status":  sErr.Status,
			},
		})
		return
	}

	http.Redirect(w, r, "/runs/"+out.RunID, http.StatusSeeOther)
}

// overlay returns the config overlay for a run. Partial credentials are
// rejected so a caller's session is never paired with the server's token or repo.
func (req *runRequest) overlay() (*config.Config, error) {
	creds := []string{
		strings.TrimSpace(req.LeetCodeSession),
		strings.TrimSpace(req.GitHubToken),
		strings.TrimSpace(req.GitHubRepo),
	}
	given := 0
	for _, c := range creds {
		if c != "" {
			given++
		}
	}
	overlay := &config.Config{Branch: req.Branch}
	switch given {
	case 0:
		return overlay, nil
	case len(creds):
		overlay.LeetCodeSession, overlay.GitHubToken, overlay.GitHubRepo = creds[0], creds[1], creds[2]
		return overlay, nil
	default:
		return nil, errors.NewInvalidRequest("leetcode_session, github_token and github_repo must be supplied together")
	}
}

func decodeRunRequest(w http.ResponseWriter, r *http.Request) (*runRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRunBody)

	var req runRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return nil, errors.NewInvalidRequest("invalid JSON body: " + err.Error())
		}
		return &req, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, errors.NewInvalidRequest("invalid form data")
	}
	req.LeetCodeSession = r.FormValue("leetcode_session")
	req.GitHubToken = r.FormValue("github_token")
	req.GitHubRepo = r.FormValue("github_repo")
	req.Branch = r.FormValue("branch")
	return &req, nil
}

// HandleRuns handles GET /runs: list recorded runs.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Runs(h.db, ops.RunsInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "runs", RunsPageData{
		PageData: PageData{
			Title:   "Runs",
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		Repo:       h.cfg.GitHubRepo,
		Branch:     h.cfg.Branch,
	})
}

// HandleRunDetail handles GET /runs/{id}: one run with its markdown report.
func (h *Handlers) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("run ID is required"))
		return
	}

	result, err := ops.GetRun(h.db, ops.GetRunInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "run", RunPageData{
		PageData: PageData{
			Title:   "Run " + result.Run.ID,
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Run:          result.Run,
		RenderedHTML: renderMarkdown(runReport(result)),
	})
}

// HandleFiles handles GET /files: synced files, optionally for one run.
func (h *Handlers) HandleFiles(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")
	result, err := ops.Files(h.db, ops.FilesInput{
		RunID:  runID,
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, r, "files", FilesPageData{
		PageData: PageData{
			Title:   "Files",
			Version: h.renderer.version,
			Nav:     "files",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
		RunID:      runID,
	})
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	s := r.URL.Query().Get(name)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}
