package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// Submission is one history row served by FakeLeetCode, newest first.
type Submission struct {
	ID        string
	Status    string
	TitleSlug string
	Code      string
	Lang      string
}

// Question is problem metadata served by FakeLeetCode.
type Question struct {
	QuestionID string
	FrontendID string
	Title      string
	TitleSlug  string
}

// FakeLeetCode is an in-memory stand-in for the judge's GraphQL endpoint.
type FakeLeetCode struct {
	Server *httptest.Server

	mu          sync.Mutex
	submissions []Submission
	questions   map[string]Question
	notReady    map[string]int // submission id -> empty envelopes left to serve
	malformed   map[string]bool
	denied      map[string]bool

	ListCalls     int
	DetailCalls   int
	QuestionCalls int
}

// NewFakeLeetCode starts a fake judge. It is closed with the test.
func NewFakeLeetCode(t *testing.T) *FakeLeetCode {
	t.Helper()
	f := &FakeLeetCode{
		questions: make(map[string]Question),
		notReady:  make(map[string]int),
		malformed: make(map[string]bool),
		denied:    make(map[string]bool),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /graphql/", f.handle)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// URL is the site root.
func (f *FakeLeetCode) URL() string {
	return f.Server.URL
}

// AddSubmission appends a history row (call in newest-first order).
func (f *FakeLeetCode) AddSubmission(s Submission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append(f.submissions, s)
}

// PushSubmission inserts a row as the newest one.
func (f *FakeLeetCode) PushSubmission(s Submission) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions = append([]Submission{s}, f.submissions...)
}

// AddQuestion registers metadata for a slug.
func (f *FakeLeetCode) AddQuestion(q Question) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.questions[q.TitleSlug] = q
}

// SetNotReady makes the detail for id come back empty n times first.
func (f *FakeLeetCode) SetNotReady(id string, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notReady[id] = n
}

// SetMalformed makes the detail for id come back without "data".
func (f *FakeLeetCode) SetMalformed(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.malformed[id] = true
}

// SetDenied makes the detail for id come back null alongside a GraphQL error,
// the way the judge answers for a submission the session cannot see.
func (f *FakeLeetCode) SetDenied(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.denied[id] = true
}

func (f *FakeLeetCode) handle(w http.ResponseWriter, r *http.Request) {
	if !strings.Contains(r.Header.Get("Cookie"), "LEETCODE_SESSION=") {
		writeJSON(w, http.StatusForbidden, map[string]string{"detail": "not logged in"})
		return
	}
	var body struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "bad json"})
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case strings.Contains(body.Query, "submissionList("):
		f.ListCalls++
		f.serveList(w, toInt(body.Variables["offset"]), toInt(body.Variables["limit"]))
	case strings.Contains(body.Query, "submissionDetails("):
		f.DetailCalls++
		f.serveDetail(w, fmt.Sprint(toInt(body.Variables["submissionId"])))
	case strings.Contains(body.Query, "question("):
		f.QuestionCalls++
		f.serveQuestion(w, fmt.Sprint(body.Variables["titleSlug"]))
	default:
		writeJSON(w, http.StatusBadRequest, map[string]any{"errors": []map[string]string{{"message": "unknown query"}}})
	}
}

func (f *FakeLeetCode) serveList(w http.ResponseWriter, offset, limit int) {
	end := min(offset+limit, len(f.submissions))
	rows := make([]map[string]string, 0, limit)
	for i := offset; i < end; i++ {
		s := f.submissions[i]
		rows = append(rows, map[string]string{"id": s.ID, "statusDisplay": s.Status, "titleSlug": s.TitleSlug})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"submissionList": map[string]any{"submissions": rows, "hasNext": end < len(f.submissions)},
		},
	})
}

func (f *FakeLeetCode) serveDetail(w http.ResponseWriter, id string) {
	if f.malformed[id] {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []map[string]string{{"message": "internal"}}})
		return
	}
	if f.denied[id] {
		writeJSON(w, http.StatusOK, map[string]any{
			"errors": []map[string]string{{"message": "Submission not found or access denied"}},
			"data":   map[string]any{"submissionDetails": nil},
		})
		return
	}
	if f.notReady[id] > 0 {
		f.notReady[id]--
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"submissionDetails": nil}})
		return
	}
	for _, s := range f.submissions {
		if s.ID != id {
			continue
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data": map[string]any{
				"submissionDetails": map[string]any{
					"code":       s.Code,
					"statusCode": 10,
					"lang":       map[string]string{"name": s.Lang},
					"question":   map[string]string{"questionId": f.questions[s.TitleSlug].QuestionID, "titleSlug": s.TitleSlug},
				},
			},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"submissionDetails": nil}})
}

func (f *FakeLeetCode) serveQuestion(w http.ResponseWriter, slug string) {
	q, ok := f.questions[slug]
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"question": nil}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"question": map[string]string{
				"questionId":         q.QuestionID,
				"questionFrontendId": q.FrontendID,
				"title":              q.Title,
				"titleSlug":          q.TitleSlug,
			},
		},
	})
}

func toInt(v any) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}
