// Package memo defines core types shared across the analysis subsystems.
package memo

import "time"

// Type distinguishes plain text memos from memos that reference an
// external source (social post, video, article, raw file).
type Type string

// Memo types persisted in the store.
const (
	TypeText           Type = "TEXT"
	TypeExternalSource Type = "EXTERNAL_SOURCE"
)

// AnalysisStatus represents the lifecycle state of a memo's analysis job.
type AnalysisStatus string

// Analysis status values. Transitions are owned by the analysis service:
// pending -> analyzing -> completed|failed, with completed/failed -> pending
// only through an explicit reanalyze.
const (
	StatusPending   AnalysisStatus = "pending"
	StatusAnalyzing AnalysisStatus = "analyzing"
	StatusCompleted AnalysisStatus = "completed"
	StatusFailed    AnalysisStatus = "failed"
)

// HighlightType tags a highlight as a core claim or a notable fact.
type HighlightType string

// Supported highlight types.
const (
	HighlightClaim HighlightType = "claim"
	HighlightFact  HighlightType = "fact"
)

// Highlight is a model-selected span of the display text. Start and End are
// rune offsets into the exact string highlight extraction ran against: the
// translated content when translation occurred, the fetched content
// otherwise.
type Highlight struct {
	Type   HighlightType `json:"type"`
	Text   string        `json:"text"`
	Start  int           `json:"start"`
	End    int           `json:"end"`
	Reason string        `json:"reason,omitempty"`
}

// Memo is the record the analysis pipeline reads from and writes back to.
// Fields outside the analysis set (Content, Type, SourceURL, timestamps) are
// owned by the record store and never mutated here.
type Memo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Type      Type      `json:"memo_type"`
	Content   string    `json:"content"`
	SourceURL string    `json:"source_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`

	// Analysis fields, written only by the analysis service.
	AnalysisStatus    AnalysisStatus `json:"analysis_status"`
	AnalysisError     string         `json:"analysis_error,omitempty"`
	FetchedContent    string         `json:"fetched_content,omitempty"`
	Context           string         `json:"context,omitempty"`
	Summary           string         `json:"summary,omitempty"`
	OriginalLanguage  string         `json:"original_language,omitempty"`
	TranslatedContent string         `json:"translated_content,omitempty"`
	Highlights        []Highlight    `json:"highlights,omitempty"`
	MatchedInterests  []string       `json:"matched_interests,omitempty"`
	OGTitle           string         `json:"og_title,omitempty"`
	OGImage           string         `json:"og_image,omitempty"`
}

// AnalysisUpdate carries the analysis fields one pipeline attempt produced.
// It is applied atomically by Store.UpdateAnalysis; zero-value fields
// overwrite previous results so a reanalysis never leaks stale data.
type AnalysisUpdate struct {
	FetchedContent    string
	Context           string
	Summary           string
	OriginalLanguage  string
	TranslatedContent string
	Highlights        []Highlight
	MatchedInterests  []string
	OGTitle           string
	OGImage           string
}
