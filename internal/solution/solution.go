package solution

// StatusAccepted is the judge's status display for a passing submission.
const StatusAccepted = "Accepted"

// SubmissionSummary is one row of the judge's submission history.
type SubmissionSummary struct {
	// ID is the judge's opaque submission identifier
	ID string `json:"id"`

	// Status is the judge's status display ("Accepted", "Wrong Answer", ...)
	Status string `json:"statusDisplay"`

	// TitleSlug identifies the problem
	TitleSlug string `json:"titleSlug"`
}

// Accepted reports whether the submission passed all test cases.
func (s SubmissionSummary) Accepted() bool {
	return s.Status == StatusAccepted
}

// SubmissionDetail is the full source of one submission.
type SubmissionDetail struct {
	// SubmissionID is the identifier the detail was fetched by
	SubmissionID string

	// Code is the source as the judge returns it; newlines may arrive as
	// literal backslash-n sequences (see NormalizeSource)
	Code string

	// LangName is the judge's language name, used as the file extension
	LangName string

	QuestionID string
	TitleSlug  string
}

// ProblemMetadata holds the display identifiers used to name the output file.
type ProblemMetadata struct {
	QuestionID string `json:"questionId"`
	FrontendID string `json:"questionFrontendId"`
	Title      string `json:"title"`
	TitleSlug  string `json:"titleSlug"`
}

// RemoteFile is the state of a path in the destination repository.
// SHA must be re-read before every write; overwriting a present file
// without it is rejected by the host.
type RemoteFile struct {
	Path    string
	SHA     string
	Present bool
}
