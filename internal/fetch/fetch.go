// Package fetch defines the shared contract for content fetchers and the
// failure taxonomy the analysis pipeline reacts to.
package fetch

import (
	"context"
	"errors"
)

// MaxContentLen caps fetched content at this many runes before it is handed
// to the language model.
const MaxContentLen = 10000

// ManualPasteMessage is the user-facing body stored when a link cannot be
// read by any automated strategy.
const ManualPasteMessage = "This link cannot be accessed directly. Please paste the content into the memo."

// Sentinel errors fetchers classify their failures with.
var (
	// ErrUnsupportedHost marks hosts that only a platform API can read, where
	// no browser fallback exists.
	ErrUnsupportedHost = errors.New("host cannot be fetched directly")

	// ErrChallengeBlocked marks pages still behind an anti-bot challenge
	// after the bypass budget was spent.
	ErrChallengeBlocked = errors.New("page blocked by anti-bot challenge")
)

// Result is the normalized output of every fetcher. Content is already
// truncated to MaxContentLen. Err carries the user-facing reason when
// Success is false.
type Result struct {
	Content  string
	Title    string
	Image    string
	Language string
	Success  bool
	Err      string
}

// Fetcher retrieves the content behind a URL. Implementations return an
// error only for infrastructure problems; content-level failures come back
// as a Result with Success false and Err set.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Result, error)
}

// Failure builds an unsuccessful Result with the given reason.
func Failure(reason string) Result {
	return Result{Err: reason}
}

// Truncate caps s at MaxContentLen runes.
func Truncate(s string) string {
	runes := []rune(s)
	if len(runes) <= MaxContentLen {
		return s
	}
	return string(runes[:MaxContentLen])
}
