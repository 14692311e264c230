// Package progress implements the in-process notification hub that fans
// analysis progress events out to live subscribers.
package progress

import (
	"fmt"
	"time"
)

// Step names emitted over the lifetime of one analysis run.
const (
	StepStart         = "start"
	StepScrape        = "scrape"
	StepScrapeDone    = "scrape_done"
	StepScrapeFailed  = "scrape_failed"
	StepLLM           = "llm"
	StepLLMDone       = "llm_done"
	StepInterestsDone = "interests_done"
	StepTranslate     = "translate"
	StepTranslateDone = "translate_done"
	StepTranslateSkip = "translate_skip"
	StepCompleted     = "completed"
	StepFailed        = "failed"
)

// Event is one progress update for a memo's analysis run.
type Event struct {
	MemoID  string    `json:"memo_id"`
	UserID  string    `json:"user_id,omitempty"`
	Step    string    `json:"step"`
	Message string    `json:"message,omitempty"`
	At      time.Time `json:"at"`
}

// Validate checks the fields every event must carry.
func (e Event) Validate() error {
	if e.MemoID == "" {
		return fmt.Errorf("progress event missing memo id")
	}
	if e.Step == "" {
		return fmt.Errorf("progress event missing step")
	}
	return nil
}
