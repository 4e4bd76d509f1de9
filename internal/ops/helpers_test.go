package ops

import (
	"context"
	"database/sql"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hpungsan/leetsync/internal/db"
	"github.com/hpungsan/leetsync/internal/github"
	"github.com/hpungsan/leetsync/internal/httpx"
	"github.com/hpungsan/leetsync/internal/leetcode"
	"github.com/hpungsan/leetsync/internal/poll"
	"github.com/hpungsan/leetsync/internal/testutil"
)

const testRepo = "alice/solutions"

// sleepCounter counts polling waits without blocking.
type sleepCounter struct {
	n atomic.Int32
}

func (s *sleepCounter) sleep(context.Context, time.Duration) error {
	s.n.Add(1)
	return nil
}

func noSleep(context.Context, time.Duration) error { return nil }

// testEnv wires real clients to in-memory judge and host fakes.
type testEnv struct {
	judge   *testutil.FakeLeetCode
	host    *testutil.FakeGitHub
	lc      *leetcode.Client
	gh      *github.Client
	sleeps  *sleepCounter
	db      *sql.DB
	baseDir string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		judge:   testutil.NewFakeLeetCode(t),
		host:    testutil.NewFakeGitHub(t, "alice"),
		sleeps:  &sleepCounter{},
		baseDir: t.TempDir(),
	}

	lcHTTP := httpx.NewWithClient(env.judge.Server.Client(), httpx.Options{
		MaxAttempts: 1,
		Header:      http.Header{"Cookie": {"LEETCODE_SESSION=sess"}},
		Sleep:       noSleep,
	})
	env.lc = leetcode.NewWithHTTP(env.judge.URL(), lcHTTP, leetcode.Options{
		DetailPolicy:   poll.Policy{Interval: time.Minute, MaxAttempts: 3, Sleep: env.sleeps.sleep},
		QuestionPolicy: poll.Policy{Interval: time.Second, MaxAttempts: 3, Sleep: noSleep},
	})

	ghHTTP := httpx.NewWithClient(env.host.Server.Client(), httpx.Options{
		MaxAttempts: 1,
		Header:      http.Header{"Authorization": {"token t"}},
		Sleep:       noSleep,
	})
	env.gh = github.NewWithHTTP(env.host.URL(), ghHTTP)

	database, err := db.Init(env.baseDir)
	if err != nil {
		t.Fatalf("db.Init failed: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	env.db = database
	return env
}

func (e *testEnv) deps() SyncDeps {
	return SyncDeps{Judge: e.lc, Host: e.gh, DB: e.db}
}

// addSolved registers an accepted submission and its question.
func (e *testEnv) addSolved(id, frontendID, slug, lang, code string) {
	e.judge.AddQuestion(testutil.Question{QuestionID: frontendID, FrontendID: frontendID, Title: slug, TitleSlug: slug})
	e.judge.AddSubmission(testutil.Submission{ID: id, Status: "Accepted", TitleSlug: slug, Code: code, Lang: lang})
}
