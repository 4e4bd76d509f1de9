package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/ops"
	"github.com/hpungsan/leetsync/internal/solution"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "runs", "files"
}

// RunsPageData is the template data for the run list page.
type RunsPageData struct {
	PageData
	Items      []solution.Run
	Pagination ops.Pagination
	Repo       string
	Branch     string
}

// RunPageData is the template data for the run detail page.
type RunPageData struct {
	PageData
	Run          solution.Run
	RenderedHTML template.HTML
}

// FilesPageData is the template data for the synced files page.
type FilesPageData struct {
	PageData
	Items      []solution.SyncedFile
	Pagination ops.Pagination
	RunID      string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"add":        func(a, b int) int { return a + b },
		"sub":        func(a, b int) int { return a - b },
		"formatTime": formatTime,
		"finished":   formatFinished,
		"shortSHA":   shortSHA,
	}

	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"runs":  "runs.html",
		"run":   "run.html",
		"files": "files.html",
		"error": "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
// For HTMX requests, only the "content" block is rendered to avoid duplicating the layout.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Printf("template %q not found", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	block := "layout"
	if req != nil && req.Header.Get("HX-Request") == "true" {
		block = "content"
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, block, data); err != nil {
		log.Printf("template execution error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var sErr *errors.SyncError
	if !stderrors.As(err, &sErr) {
		sErr = errors.NewInternal(err)
	}

	status := sErr.Status
	message := sErr.Message

	if req.Header.Get("HX-Request") == "true" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprintf(w, `<div class="error-message">%s</div>`, template.HTMLEscapeString(message))
		return
	}

	if wantsJSON(req) {
		renderJSON(w, status, map[string]any{
			"error": map[string]any{
				"code":    string(sErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// wantsJSON reports whether the client asked for JSON.
func wantsJSON(req *http.Request) bool {
	return strings.Contains(req.Header.Get("Accept"), "application/json") ||
		strings.HasPrefix(req.Header.Get("Content-Type"), "application/json")
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// runReport builds the markdown summary of a run.
func runReport(out *ops.GetRunOutput) string {
	var b strings.Builder
	run := out.Run

	fmt.Fprintf(&b, "## Run %s\n\n", run.ID)
	fmt.Fprintf(&b, "- **Repository:** `%s` on `%s`\n", run.Repo, run.Branch)
	fmt.Fprintf(&b, "- **Status:** %s\n", run.Status)
	fmt.Fprintf(&b, "- **Started:** %s\n", formatTime(run.StartedAt))
	fmt.Fprintf(&b, "- **Finished:** %s\n", formatFinished(run.FinishedAt))
	fmt.Fprintf(&b, "- **Accepted problems listed:** %d\n", run.Listed)
	fmt.Fprintf(&b, "- **Details fetched:** %d\n", run.Fetched)
	fmt.Fprintf(&b, "- **Files written:** %d\n", run.Written)
	fmt.Fprintf(&b, "- **Skipped:** %d\n", run.Skipped)
	if run.Error != "" {
		fmt.Fprintf(&b, "\n> **Error:** %s\n", escapeMarkdown(run.Error))
	}

	b.WriteString("\n### Files\n\n")
	if len(out.Files) == 0 {
		b.WriteString("_No files were written._\n")
		return b.String()
	}
	b.WriteString("| Path | Submission | Change | SHA |\n|---|---|---|---|\n")
	for _, f := range out.Files {
		change := "updated"
		if f.Created {
			change = "created"
		}
		fmt.Fprintf(&b, "| `%s` | %s | %s | `%s` |\n", strings.ReplaceAll(f.Path, "|", `\|`), f.SubmissionID, change, shortSHA(f.SHA))
	}
	return b.String()
}

// escapeMarkdown neutralizes characters that would start inline markup.
func escapeMarkdown(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "`", "\\`", "*", `\*`, "_", `\_`, "<", "&lt;", "|", `\|`)
	return r.Replace(s)
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

func formatFinished(unix *int64) string {
	if unix == nil {
		return "still running"
	}
	return formatTime(*unix)
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
