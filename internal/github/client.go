// Package github is a minimal client for the repository contents API.
package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/hpungsan/leetsync/internal/config"
	syncerr "github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/httpx"
	"github.com/hpungsan/leetsync/internal/solution"
)

// Client talks to the GitHub REST API.
type Client struct {
	http    *httpx.Client
	baseURL string
}

// PutFileRequest is the body of a create-or-update contents call.
type PutFileRequest struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	// SHA must carry the current blob sha when the file already exists.
	SHA string `json:"sha,omitempty"`
}

// PutFileResult is what the host reports after a successful write.
type PutFileResult struct {
	SHA     string `json:"sha"`
	Created bool   `json:"created"`
}

type createRepoRequest struct {
	Name    string `json:"name"`
	Private bool   `json:"private"`
}

type contentsResponse struct {
	SHA  string `json:"sha"`
	Path string `json:"path"`
}

type putContentsResponse struct {
	Content *contentsResponse `json:"content"`
}

type userResponse struct {
	Login string `json:"login"`
}

// New builds a Client from configuration.
func New(cfg *config.Config) *Client {
	header := http.Header{}
	header.Set("Authorization", "token "+cfg.GitHubToken)
	header.Set("Accept", "application/vnd.github.v3+json")
	header.Set("User-Agent", "leetsync")

	return NewWithHTTP(cfg.GitHubAPIURL, httpx.New(httpx.Options{
		MaxAttempts: cfg.TransportRetries,
		Timeout:     cfg.RequestTimeout(),
		Header:      header,
	}))
}

// NewWithHTTP builds a Client over an existing transport.
func NewWithHTTP(baseURL string, hc *httpx.Client) *Client {
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

// GetFile probes path on branch. A 404 is reported as Present=false, not an error.
func (c *Client) GetFile(ctx context.Context, repo, path, branch string) (*solution.RemoteFile, error) {
	u := c.contentsURL(repo, path)
	if branch != "" {
		u += "?ref=" + url.QueryEscape(branch)
	}

	var body contentsResponse
	resp, err := c.http.DoJSON(ctx, http.MethodGet, u, nil, &body)
	if err != nil {
		if resp != nil {
			return nil, syncerr.NewMalformedResponse("get contents", err)
		}
		return nil, err
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		if body.SHA == "" {
			return nil, syncerr.NewMalformedResponse("get contents", nil)
		}
		return &solution.RemoteFile{Path: path, SHA: body.SHA, Present: true}, nil
	case resp.StatusCode == http.StatusNotFound:
		return &solution.RemoteFile{Path: path}, nil
	default:
		return nil, upstream("get contents", resp)
	}
}

// PutFile creates or updates path. A 404 means the repository is missing
// and is reported as REPO_NOT_FOUND.
func (c *Client) PutFile(ctx context.Context, repo, path string, req PutFileRequest) (*PutFileResult, error) {
	var body putContentsResponse
	resp, err := c.http.DoJSON(ctx, http.MethodPut, c.contentsURL(repo, path), req, &body)
	if err != nil {
		if resp != nil && resp.OK() {
			// Written, but the body was unreadable. The sha is re-probed next run.
			return &PutFileResult{Created: resp.StatusCode == http.StatusCreated}, nil
		}
		return nil, err
	}

	switch {
	case resp.OK():
		result := &PutFileResult{Created: resp.StatusCode == http.StatusCreated}
		if body.Content != nil {
			result.SHA = body.Content.SHA
		}
		return result, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, syncerr.NewRepoNotFound(repo)
	default:
		return nil, upstream("put contents", resp)
	}
}

// CreateRepo creates a public repository owned by the token's user.
func (c *Client) CreateRepo(ctx context.Context, name string) error {
	resp, err := c.http.Do(ctx, http.MethodPost, c.baseURL+"/user/repos", createRepoRequest{Name: name, Private: false})
	if err != nil {
		return err
	}
	if !resp.OK() {
		return upstream("create repo", resp)
	}
	return nil
}

// AuthenticatedUser returns the login that owns the token.
func (c *Client) AuthenticatedUser(ctx context.Context) (string, error) {
	var body userResponse
	resp, err := c.http.DoJSON(ctx, http.MethodGet, c.baseURL+"/user", nil, &body)
	if err != nil {
		if resp != nil {
			return "", syncerr.NewMalformedResponse("get user", err)
		}
		return "", err
	}
	if !resp.OK() {
		return "", upstream("get user", resp)
	}
	if body.Login == "" {
		return "", syncerr.NewMalformedResponse("get user", nil)
	}
	return body.Login, nil
}

// RepoExists reports whether owner/repo is visible to the token.
func (c *Client) RepoExists(ctx context.Context, repo string) (bool, error) {
	resp, err := c.http.Do(ctx, http.MethodGet, c.baseURL+"/repos/"+repo, nil)
	if err != nil {
		return false, err
	}
	switch {
	case resp.OK():
		return true, nil
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	default:
		return false, upstream("get repo", resp)
	}
}

func (c *Client) contentsURL(repo, path string) string {
	segments := strings.Split(path, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return c.baseURL + "/repos/" + repo + "/contents/" + strings.Join(segments, "/")
}

// upstream builds an UPSTREAM error, preferring GitHub's message field.
func upstream(operation string, resp *httpx.Response) error {
	msg := decodeMessage(resp.Body)
	if msg == "" {
		msg = resp.Snippet()
	}
	return syncerr.NewUpstream(operation, resp.StatusCode, msg)
}

// decodeMessage extracts GitHub's {"message": ...} error text, if present.
func decodeMessage(body []byte) string {
	var m struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &m); err != nil {
		return ""
	}
	return m.Message
}
