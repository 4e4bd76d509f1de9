package testutil

import (
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// RepoFile is a file stored by FakeGitHub.
type RepoFile struct {
	Content string
	SHA     string
}

// FakeGitHub is an in-memory stand-in for the contents API of one account.
type FakeGitHub struct {
	Server *httptest.Server

	mu            sync.Mutex
	login         string
	repos         map[string]map[string]RepoFile // "owner/repo" -> path -> file
	putStatuses   []int                          // forced statuses for upcoming PUTs
	probeStatuses []int                          // forced statuses for upcoming GETs
	createStatus  int

	Puts        int
	Probes      int
	RepoCreates int
	Changes     int // writes that changed file content
}

// NewFakeGitHub starts a fake host for login. It is closed with the test.
func NewFakeGitHub(t *testing.T, login string) *FakeGitHub {
	t.Helper()
	f := &FakeGitHub{
		login: login,
		repos: make(map[string]map[string]RepoFile),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", f.handleUser)
	mux.HandleFunc("POST /user/repos", f.handleCreateRepo)
	mux.HandleFunc("GET /repos/{owner}/{repo}", f.handleGetRepo)
	mux.HandleFunc("GET /repos/{owner}/{repo}/contents/{path...}", f.handleGetContents)
	mux.HandleFunc("PUT /repos/{owner}/{repo}/contents/{path...}", f.handlePutContents)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the API base URL.
func (f *FakeGitHub) URL() string {
	return f.Server.URL
}

// AddRepo creates an empty repository.
func (f *FakeGitHub) AddRepo(repo string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.repos[repo]; !ok {
		f.repos[repo] = make(map[string]RepoFile)
	}
}

// HasRepo reports whether repo exists.
func (f *FakeGitHub) HasRepo(repo string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.repos[repo]
	return ok
}

// File returns the stored file at path in repo.
func (f *FakeGitHub) File(repo, path string) (RepoFile, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	file, ok := f.repos[repo][path]
	return file, ok
}

// Files returns a copy of every file in repo.
func (f *FakeGitHub) Files(repo string) map[string]RepoFile {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]RepoFile, len(f.repos[repo]))
	for k, v := range f.repos[repo] {
		out[k] = v
	}
	return out
}

// FailNextPuts forces the next PUTs to answer with the given statuses.
func (f *FakeGitHub) FailNextPuts(statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.putStatuses = append(f.putStatuses, statuses...)
}

// FailNextProbes forces the next contents GETs to answer with the given statuses.
func (f *FakeGitHub) FailNextProbes(statuses ...int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probeStatuses = append(f.probeStatuses, statuses...)
}

// SetCreateStatus forces repository creation to answer with status.
func (f *FakeGitHub) SetCreateStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createStatus = status
}

// BlobSHA computes the git blob sha of content.
func BlobSHA(content string) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(content))
	h.Write([]byte(content))
	return hex.EncodeToString(h.Sum(nil))
}

func (f *FakeGitHub) handleUser(w http.ResponseWriter, r *http.Request) {
	if !authorized(r) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Bad credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"login": f.login})
}

func (f *FakeGitHub) handleCreateRepo(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string `json:"name"`
		Private bool   `json:"private"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "name is required"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.RepoCreates++
	if f.createStatus != 0 {
		writeJSON(w, f.createStatus, map[string]string{"message": "forced failure"})
		return
	}
	full := f.login + "/" + body.Name
	if _, ok := f.repos[full]; ok {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "name already exists on this account"})
		return
	}
	f.repos[full] = make(map[string]RepoFile)
	writeJSON(w, http.StatusCreated, map[string]any{"full_name": full, "private": body.Private})
}

func (f *FakeGitHub) handleGetRepo(w http.ResponseWriter, r *http.Request) {
	repo := r.PathValue("owner") + "/" + r.PathValue("repo")
	if !f.HasRepo(repo) {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"full_name": repo})
}

func (f *FakeGitHub) handleGetContents(w http.ResponseWriter, r *http.Request) {
	repo := r.PathValue("owner") + "/" + r.PathValue("repo")
	path := r.PathValue("path")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Probes++
	if len(f.probeStatuses) > 0 {
		status := f.probeStatuses[0]
		f.probeStatuses = f.probeStatuses[1:]
		writeJSON(w, status, map[string]string{"message": "forced failure"})
		return
	}
	files, ok := f.repos[repo]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	file, ok := files[path]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"path":     path,
		"sha":      file.SHA,
		"encoding": "base64",
		"content":  base64.StdEncoding.EncodeToString([]byte(file.Content)),
	})
}

func (f *FakeGitHub) handlePutContents(w http.ResponseWriter, r *http.Request) {
	repo := r.PathValue("owner") + "/" + r.PathValue("repo")
	path := r.PathValue("path")

	var body struct {
		Message string `json:"message"`
		Content string `json:"content"`
		Branch  string `json:"branch"`
		SHA     string `json:"sha"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "Problems parsing JSON"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Puts++
	if len(f.putStatuses) > 0 {
		status := f.putStatuses[0]
		f.putStatuses = f.putStatuses[1:]
		writeJSON(w, status, map[string]string{"message": "forced failure"})
		return
	}
	files, ok := f.repos[repo]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "Not Found"})
		return
	}
	if body.Message == "" || body.Branch == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "message and branch are required"})
		return
	}
	decoded, err := base64.StdEncoding.DecodeString(body.Content)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": "content is not valid Base64"})
		return
	}

	existing, exists := files[path]
	switch {
	case exists && body.SHA == "":
		writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"message": `Invalid request. "sha" wasn't supplied.`})
		return
	case exists && body.SHA != existing.SHA:
		writeJSON(w, http.StatusConflict, map[string]string{"message": fmt.Sprintf("%s does not match %s", path, body.SHA)})
		return
	}

	content := string(decoded)
	sha := BlobSHA(content)
	if !exists || existing.Content != content {
		f.Changes++
	}
	files[path] = RepoFile{Content: content, SHA: sha}

	status := http.StatusOK
	if !exists {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{
		"content": map[string]string{"path": path, "sha": sha},
		"commit":  map[string]string{"message": body.Message},
	})
}

func authorized(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Authorization"), "token ")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
