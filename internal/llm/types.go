// Package llm runs the language-model operations of the analysis pipeline:
// language detection, translation, cleanup, highlight extraction, and the
// combined context/interests/summary call.
package llm

import (
	"errors"

	"github.com/onebitebitcoin/zentel/internal/memo"
)

// Sentinel errors callers branch on.
var (
	// ErrMalformedResponse marks model output that could not be parsed even
	// after fence stripping and fallbacks.
	ErrMalformedResponse = errors.New("model response could not be parsed")

	// ErrProviderFailure marks transport or quota failures that exhausted
	// their retries.
	ErrProviderFailure = errors.New("model provider unavailable")
)

// DetectResult is the outcome of language detection.
type DetectResult struct {
	Language string // ISO 639-1
}

// TranslationResult is the outcome of a chunked translation run.
type TranslationResult struct {
	Text     string
	Attempts int
	// Valid is false when every validation retry failed and the best-effort
	// text is returned anyway.
	Valid bool
}

// CleanupResult is the outcome of the same-language cleanup pass.
type CleanupResult struct {
	Text string
}

// HighlightResult is the outcome of highlight extraction. Highlights carry
// verified rune offsets into the display text; spans the model invented that
// could not be located are already dropped.
type HighlightResult struct {
	Highlights []memo.Highlight
}

// InsightResult is the outcome of the combined context/interests/summary
// call.
type InsightResult struct {
	Context   string
	Summary   string
	Interests []string
}
