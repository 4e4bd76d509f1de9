package leetcode

import "strings"

const querySubmissionList = `
query mySubmissions($offset: Int!, $limit: Int!) {
  submissionList(offset: $offset, limit: $limit) {
    submissions {
      id
      statusDisplay
      titleSlug
    }
    hasNext
  }
}`

const querySubmissionDetails = `
query submissionDetails($submissionId: Int!) {
  submissionDetails(submissionId: $submissionId) {
    code
    statusCode
    lang {
      name
    }
    question {
      questionId
      titleSlug
    }
  }
}`

const queryQuestion = `
query questionTitle($titleSlug: String!) {
  question(titleSlug: $titleSlug) {
    questionId
    questionFrontendId
    title
    titleSlug
  }
}`

// graphQLRequest is the POST body for every query.
type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// graphQLErrors is the "errors" array of a response. It doubles as the
// cause of a MALFORMED_RESPONSE error.
type graphQLErrors []graphQLError

func (e graphQLErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, ge := range e {
		msgs = append(msgs, ge.Message)
	}
	return "graphql errors: " + strings.Join(msgs, "; ")
}

type submissionListData struct {
	SubmissionList *struct {
		Submissions []submissionRow `json:"submissions"`
		HasNext     bool            `json:"hasNext"`
	} `json:"submissionList"`
}

type submissionRow struct {
	ID            string `json:"id"`
	StatusDisplay string `json:"statusDisplay"`
	TitleSlug     string `json:"titleSlug"`
}

type submissionDetailsData struct {
	SubmissionDetails *struct {
		Code       string `json:"code"`
		StatusCode int    `json:"statusCode"`
		Lang       *struct {
			Name string `json:"name"`
		} `json:"lang"`
		Question *struct {
			QuestionID string `json:"questionId"`
			TitleSlug  string `json:"titleSlug"`
		} `json:"question"`
	} `json:"submissionDetails"`
}

type questionData struct {
	Question *struct {
		QuestionID         string `json:"questionId"`
		QuestionFrontendID string `json:"questionFrontendId"`
		Title              string `json:"title"`
		TitleSlug          string `json:"titleSlug"`
	} `json:"question"`
}
