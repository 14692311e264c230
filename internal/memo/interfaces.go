package memo

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when the requested memo does not exist.
var ErrNotFound = errors.New("memo not found")

// Store is the persistence boundary the analysis pipeline depends on. The
// pipeline never creates or deletes memos; it reads one record, writes the
// analysis fields back, and moves the status through its lifecycle.
type Store interface {
	// GetMemo returns the memo or ErrNotFound.
	GetMemo(ctx context.Context, id string) (*Memo, error)

	// UpdateAnalysis overwrites the analysis result fields of a memo in one
	// write. Status and error message are not touched here.
	UpdateAnalysis(ctx context.Context, id string, update AnalysisUpdate) error

	// SetStatus transitions the analysis status. errMsg is stored verbatim
	// for failed and cleared for every other status.
	SetStatus(ctx context.Context, id string, status AnalysisStatus, errMsg string) error

	// GetUserInterests returns the user's interest keywords, possibly empty.
	GetUserInterests(ctx context.Context, userID string) ([]string, error)
}

// Clock abstracts time for the retry/backoff paths so tests can run without
// real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}
