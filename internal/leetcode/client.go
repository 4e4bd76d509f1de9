// Package leetcode talks to the judge's GraphQL endpoint: submission
// history, submission detail, and question metadata.
package leetcode

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/hpungsan/leetsync/internal/config"
	"github.com/hpungsan/leetsync/internal/ctxlog"
	syncerr "github.com/hpungsan/leetsync/internal/errors"
	"github.com/hpungsan/leetsync/internal/httpx"
	"github.com/hpungsan/leetsync/internal/poll"
	"github.com/hpungsan/leetsync/internal/solution"
)

// Options tunes the application-level retry behavior.
type Options struct {
	// DetailPolicy polls submissions whose detail is not materialized yet.
	DetailPolicy poll.Policy
	// QuestionPolicy retries question metadata on network failure.
	QuestionPolicy poll.Policy
}

// Client is a judge GraphQL client.
type Client struct {
	http     *httpx.Client
	endpoint string
	opts     Options
}

// New builds a Client from configuration.
func New(cfg *config.Config) *Client {
	header := http.Header{}
	header.Set("Cookie", "LEETCODE_SESSION="+cfg.LeetCodeSession)
	header.Set("User-Agent", cfg.UserAgent)
	header.Set("Referer", cfg.LeetCodeURL)

	hc := httpx.New(httpx.Options{
		MaxAttempts: cfg.TransportRetries,
		Timeout:     cfg.RequestTimeout(),
		Header:      header,
	})
	return NewWithHTTP(cfg.LeetCodeURL, hc, Options{
		DetailPolicy:   poll.Policy{Interval: cfg.DetailCooldown(), MaxAttempts: cfg.DetailRetries},
		QuestionPolicy: poll.Policy{Interval: cfg.QuestionBackoff(), MaxAttempts: cfg.QuestionRetries},
	})
}

// NewWithHTTP builds a Client over an existing transport. baseURL is the
// site root; the GraphQL path is appended.
func NewWithHTTP(baseURL string, hc *httpx.Client, opts Options) *Client {
	if opts.DetailPolicy.MaxAttempts <= 0 {
		opts.DetailPolicy.MaxAttempts = 20
	}
	if opts.DetailPolicy.Interval <= 0 {
		opts.DetailPolicy.Interval = 60 * time.Second
	}
	if opts.QuestionPolicy.MaxAttempts <= 0 {
		opts.QuestionPolicy.MaxAttempts = 3
	}
	if opts.QuestionPolicy.Interval <= 0 {
		opts.QuestionPolicy.Interval = time.Second
	}
	return &Client{
		http:     hc,
		endpoint: baseURL + "/graphql/",
		opts:     opts,
	}
}

// envelope is the outer GraphQL response. Data stays raw so that a missing
// "data" key can be told apart from "data" with null fields.
type envelope struct {
	Data   json.RawMessage `json:"data"`
	Errors graphQLErrors   `json:"errors"`
}

// query posts one GraphQL operation and decodes "data" into out. Errors the
// server reported next to the data are returned for the caller to judge.
// Transport failures and non-2xx statuses come back as *httpx.RequestError
// or an UPSTREAM error; bad bodies come back as MALFORMED_RESPONSE.
func (c *Client) query(ctx context.Context, operation, q string, vars map[string]any, out any) (graphQLErrors, error) {
	resp, err := c.http.Do(ctx, http.MethodPost, c.endpoint, graphQLRequest{Query: q, Variables: vars})
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, syncerr.NewUpstream(operation, resp.StatusCode, resp.Snippet())
	}

	var env envelope
	if err := json.Unmarshal(resp.Body, &env); err != nil {
		return nil, syncerr.NewMalformedResponse(operation, err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, syncerr.NewMalformedResponse(operation, fmt.Errorf("missing data: %s", resp.Snippet()))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return nil, syncerr.NewMalformedResponse(operation, err)
	}
	return env.Errors, nil
}

// ListAcceptedSubmissions pages through submission history from offset 0,
// keeping the first accepted submission per problem in listing order.
// A page that fails terminally ends paging; what was collected so far is
// returned.
func (c *Client) ListAcceptedSubmissions(ctx context.Context, pageSize int) ([]solution.SubmissionSummary, error) {
	if pageSize <= 0 {
		return nil, syncerr.NewInvalidRequest("page size must be positive")
	}
	log := ctxlog.FromContext(ctx)

	seen := solution.NewOrderedMap[string, solution.SubmissionSummary]()
	for offset := 0; ; offset += pageSize {
		var data submissionListData
		_, err := c.query(ctx, "submissionList", querySubmissionList, map[string]any{"offset": offset, "limit": pageSize}, &data)
		if err == nil && data.SubmissionList == nil {
			err = syncerr.NewMalformedResponse("submissionList", errors.New("submissionList is null"))
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return seen.Values(), ctxErr
			}
			log.Warn("failed to fetch submission page, stopping", "offset", offset, "error", err)
			break
		}

		for _, row := range data.SubmissionList.Submissions {
			s := solution.SubmissionSummary{ID: row.ID, Status: row.StatusDisplay, TitleSlug: row.TitleSlug}
			if !s.Accepted() {
				continue
			}
			seen.Put(s.TitleSlug, s)
		}
		log.Debug("fetched submission page", "offset", offset, "rows", len(data.SubmissionList.Submissions), "kept", seen.Len())

		if !data.SubmissionList.HasNext {
			break
		}
	}
	return seen.Values(), nil
}

// FetchDetail retrieves the source of one submission. A null
// submissionDetails with no reported errors is polled per the detail policy;
// exhaustion yields NOT_READY. A malformed response, or one carrying GraphQL
// errors, yields MALFORMED_RESPONSE without retry.
// Transport failures are returned as-is.
func (c *Client) FetchDetail(ctx context.Context, submissionID string) (*solution.SubmissionDetail, error) {
	id, err := strconv.Atoi(submissionID)
	if err != nil {
		return nil, syncerr.NewMalformedResponse("submissionDetails", fmt.Errorf("non-numeric submission id %q", submissionID))
	}
	log := ctxlog.FromContext(ctx)

	var detail *solution.SubmissionDetail
	attempts, err := c.opts.DetailPolicy.Until(ctx, func(ctx context.Context, attempt int) (bool, error) {
		var data submissionDetailsData
		gqlErrs, err := c.query(ctx, "submissionDetails", querySubmissionDetails, map[string]any{"submissionId": id}, &data)
		if err != nil {
			return false, err
		}
		// Only a bare null detail means "not yet"; reported errors never clear up.
		if len(gqlErrs) > 0 {
			return false, syncerr.NewMalformedResponse("submissionDetails", gqlErrs)
		}
		d := data.SubmissionDetails
		if d == nil {
			log.Info("submission detail not ready", "submission_id", submissionID, "attempt", attempt)
			return false, nil
		}
		if d.Lang == nil || d.Question == nil {
			return false, syncerr.NewMalformedResponse("submissionDetails", errors.New("missing lang or question"))
		}
		detail = &solution.SubmissionDetail{
			SubmissionID: submissionID,
			Code:         d.Code,
			LangName:     d.Lang.Name,
			QuestionID:   d.Question.QuestionID,
			TitleSlug:    d.Question.TitleSlug,
		}
		return true, nil
	})
	if errors.Is(err, poll.ErrExhausted) {
		return nil, syncerr.NewNotReady(submissionID, attempts)
	}
	if err != nil {
		return nil, err
	}
	return detail, nil
}

// FetchQuestion retrieves display metadata for a problem. Network-level
// failures are retried per the question policy; a malformed body or a
// null question yields NOT_FOUND without retry.
func (c *Client) FetchQuestion(ctx context.Context, titleSlug string) (*solution.ProblemMetadata, error) {
	log := ctxlog.FromContext(ctx)

	var meta *solution.ProblemMetadata
	var lastErr error
	_, err := c.opts.QuestionPolicy.Until(ctx, func(ctx context.Context, attempt int) (bool, error) {
		var data questionData
		_, err := c.query(ctx, "question", queryQuestion, map[string]any{"titleSlug": titleSlug}, &data)
		if err != nil {
			if syncerr.Is(err, syncerr.ErrMalformedResponse) || ctx.Err() != nil {
				return false, err
			}
			log.Warn("failed to fetch question", "title_slug", titleSlug, "attempt", attempt, "error", err)
			lastErr = err
			return false, nil
		}
		if data.Question == nil {
			return false, syncerr.NewNotFound("question", titleSlug)
		}
		meta = &solution.ProblemMetadata{
			QuestionID: data.Question.QuestionID,
			FrontendID: data.Question.QuestionFrontendID,
			Title:      data.Question.Title,
			TitleSlug:  data.Question.TitleSlug,
		}
		return true, nil
	})
	if errors.Is(err, poll.ErrExhausted) {
		nf := syncerr.NewNotFound("question", titleSlug)
		nf.Err = lastErr
		return nil, nf
	}
	if err != nil {
		return nil, err
	}
	return meta, nil
}
