package solution

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Path derives the repository path for a solution:
// "{frontendId}. {titleSlug}.{langName}".
func Path(meta ProblemMetadata, langName string) string {
	return fmt.Sprintf("%s. %s.%s", meta.FrontendID, meta.TitleSlug, langName)
}

// NormalizeSource replaces every literal two-character backslash-n sequence
// with a newline. A genuine backslash followed by 'n' in the source (for
// example inside a string literal) is indistinguishable from an encoded
// newline and is converted too.
func NormalizeSource(code string) string {
	return strings.ReplaceAll(code, `\n`, "\n")
}

// EncodeContent normalizes source and encodes it for the contents API.
func EncodeContent(code string) string {
	return base64.StdEncoding.EncodeToString([]byte(NormalizeSource(code)))
}

// RepoName returns the trailing path segment of an "owner/repo" identifier.
func RepoName(repo string) string {
	repo = strings.TrimRight(repo, "/")
	if idx := strings.LastIndex(repo, "/"); idx >= 0 {
		return repo[idx+1:]
	}
	return repo
}

// DefaultRepo is the repository a linked account syncs to when none is configured.
func DefaultRepo(login string) string {
	return fmt.Sprintf("%s/LEETCODESYNC-%s", login, login)
}
