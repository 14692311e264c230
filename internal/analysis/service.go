// Package analysis runs the memo analysis pipeline: fetch, model calls,
// persistence, and the job state machine around them.
package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/fetch"
	"github.com/onebitebitcoin/zentel/internal/llm"
	"github.com/onebitebitcoin/zentel/internal/memo"
	"github.com/onebitebitcoin/zentel/internal/metrics"
	"github.com/onebitebitcoin/zentel/internal/progress"
)

// retryWaits are the pauses between failed attempts of one job.
var retryWaits = []time.Duration{time.Second, 3 * time.Second, 5 * time.Second}

// minTranslatableLen is the smallest fetched content, in runes, worth a
// translation pass.
const minTranslatableLen = 20

// LanguageModel is the slice of the orchestrator the pipeline uses.
type LanguageModel interface {
	DetectLanguage(ctx context.Context, text string) (llm.DetectResult, error)
	Translate(ctx context.Context, text, targetLang string) (llm.TranslationResult, error)
	Cleanup(ctx context.Context, text string) (llm.CleanupResult, error)
	ExtractHighlights(ctx context.Context, display string) (llm.HighlightResult, error)
	ExtractInsights(ctx context.Context, content string, interests []string) (llm.InsightResult, error)
}

// Config wires the analysis service.
type Config struct {
	Store          memo.Store
	Router         fetch.Router
	Model          LanguageModel
	Hub            *progress.Hub
	Clock          memo.Clock
	Metrics        *metrics.Metrics
	NativeLanguage string
	MaxAttempts    int
	Logger         *zap.Logger
}

// Service executes analysis jobs. One job is one memo; attempts inside a job
// share its status transitions.
type Service struct {
	store       memo.Store
	router      fetch.Router
	model       LanguageModel
	hub         *progress.Hub
	clock       memo.Clock
	metrics     *metrics.Metrics
	nativeLang  string
	maxAttempts int
	logger      *zap.Logger
}

// NewService builds the service.
func NewService(cfg Config) *Service {
	if cfg.Clock == nil {
		cfg.Clock = memo.SystemClock{}
	}
	if cfg.NativeLanguage == "" {
		cfg.NativeLanguage = "ko"
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = len(retryWaits)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       cfg.Store,
		router:      cfg.Router,
		model:       cfg.Model,
		hub:         cfg.Hub,
		clock:       cfg.Clock,
		metrics:     cfg.Metrics,
		nativeLang:  cfg.NativeLanguage,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger.Named("analysis"),
	}
}

// Analyze runs the full job for one memo: analyzing status, attempts with
// backoff, then completed or failed. The final transition always happens,
// even when every attempt errors.
func (s *Service) Analyze(ctx context.Context, memoID, userID string) error {
	started := s.clock.Now()
	m, err := s.store.GetMemo(ctx, memoID)
	if err != nil {
		return fmt.Errorf("load memo %s: %w", memoID, err)
	}
	if userID == "" {
		userID = m.UserID
	}

	if err := s.store.SetStatus(ctx, memoID, memo.StatusAnalyzing, ""); err != nil {
		return fmt.Errorf("mark analyzing: %w", err)
	}
	s.publish(memoID, userID, progress.StepStart, "")

	interests, err := s.store.GetUserInterests(ctx, userID)
	if err != nil {
		s.logger.Warn("loading interests failed, continuing without",
			zap.String("user_id", userID), zap.Error(err))
		interests = nil
	}

	var lastErr error
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		if attempt > 0 {
			s.metrics.IncRetried()
			wait := retryWaits[min(attempt-1, len(retryWaits)-1)]
			if err := s.clock.Sleep(ctx, wait); err != nil {
				lastErr = err
				break
			}
		}
		lastErr = s.attempt(ctx, m, userID, interests)
		if lastErr == nil {
			if err := s.store.SetStatus(ctx, memoID, memo.StatusCompleted, ""); err != nil {
				return fmt.Errorf("mark completed: %w", err)
			}
			s.publish(memoID, userID, progress.StepCompleted, "")
			s.metrics.IncCompleted()
			s.metrics.ObserveAnalysis(s.clock.Now().Sub(started).Seconds())
			return nil
		}
		s.logger.Warn("analysis attempt failed",
			zap.String("memo_id", memoID),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr))
	}

	msg := lastErr.Error()
	if err := s.store.SetStatus(ctx, memoID, memo.StatusFailed, msg); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	s.publish(memoID, userID, progress.StepFailed, msg)
	s.metrics.IncFailed()
	return fmt.Errorf("analysis of memo %s failed: %w", memoID, lastErr)
}

// attempt runs one pass of the pipeline and persists its results.
func (s *Service) attempt(ctx context.Context, m *memo.Memo, userID string, interests []string) error {
	update := memo.AnalysisUpdate{}

	fetched := s.fetchContent(ctx, m, userID, &update)

	composite := strings.TrimSpace(m.Content)
	if fetched != "" {
		if composite != "" {
			composite += "\n\n"
		}
		composite += fetched
	}
	if strings.TrimSpace(composite) == "" {
		return fmt.Errorf("memo has no content to analyze")
	}

	s.publish(m.ID, userID, progress.StepLLM, "")
	insights, err := s.model.ExtractInsights(ctx, composite, interests)
	if err != nil {
		return fmt.Errorf("insights: %w", err)
	}
	update.Context = insights.Context
	update.Summary = insights.Summary
	update.MatchedInterests = insights.Interests
	s.publish(m.ID, userID, progress.StepLLMDone, "")
	s.publish(m.ID, userID, progress.StepInterestsDone, "")

	if err := s.translateAndHighlight(ctx, m, userID, fetched, &update); err != nil {
		return err
	}

	if err := s.store.UpdateAnalysis(ctx, m.ID, update); err != nil {
		return fmt.Errorf("persist analysis: %w", err)
	}
	return nil
}

// fetchContent resolves the memo's source URL when it has one. Fetch
// failures degrade the run to the memo's own text instead of aborting it.
func (s *Service) fetchContent(ctx context.Context, m *memo.Memo, userID string, update *memo.AnalysisUpdate) string {
	if m.Type != memo.TypeExternalSource || m.SourceURL == "" {
		return ""
	}
	fetcher, class := s.router.For(m.SourceURL)
	if fetcher == nil {
		s.publish(m.ID, userID, progress.StepScrapeFailed, "no fetcher available")
		return ""
	}

	s.publish(m.ID, userID, progress.StepScrape, "")
	started := s.clock.Now()
	res, err := fetcher.Fetch(ctx, m.SourceURL)
	s.metrics.ObserveFetch(class, s.clock.Now().Sub(started).Seconds())

	if err != nil || !res.Success {
		reason := res.Err
		if reason == "" && err != nil {
			reason = err.Error()
		}
		s.metrics.IncFetchFailure(class)
		s.logger.Warn("content fetch failed",
			zap.String("memo_id", m.ID),
			zap.String("class", class),
			zap.String("reason", reason),
			zap.Error(err))
		s.publish(m.ID, userID, progress.StepScrapeFailed, reason)
		return ""
	}

	update.FetchedContent = res.Content
	update.OGTitle = res.Title
	update.OGImage = res.Image
	if res.Language != "" {
		update.OriginalLanguage = res.Language
	}
	s.publish(m.ID, userID, progress.StepScrapeDone, "")
	return res.Content
}

// translateAndHighlight runs the display-text stage: language detection,
// translation or cleanup, then highlight extraction over the display target.
func (s *Service) translateAndHighlight(ctx context.Context, m *memo.Memo, userID, fetched string, update *memo.AnalysisUpdate) error {
	if fetched == "" || m.Type != memo.TypeExternalSource {
		s.publish(m.ID, userID, progress.StepTranslateSkip, "no fetched content")
		return nil
	}
	if len([]rune(fetched)) < minTranslatableLen {
		s.publish(m.ID, userID, progress.StepTranslateSkip, "content too short")
		return nil
	}

	detected, err := s.model.DetectLanguage(ctx, fetched)
	if err != nil {
		return fmt.Errorf("detect language: %w", err)
	}
	update.OriginalLanguage = detected.Language

	if detected.Language == s.nativeLang {
		s.publish(m.ID, userID, progress.StepTranslateSkip, "already in native language")
		cleaned, err := s.model.Cleanup(ctx, fetched)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		update.TranslatedContent = cleaned.Text
	} else {
		s.publish(m.ID, userID, progress.StepTranslate, "")
		translated, err := s.model.Translate(ctx, fetched, s.nativeLang)
		if err != nil {
			return fmt.Errorf("translate: %w", err)
		}
		if !translated.Valid {
			s.logger.Warn("translation kept as best effort",
				zap.String("memo_id", m.ID),
				zap.Int("attempts", translated.Attempts))
		}
		update.TranslatedContent = translated.Text
		s.publish(m.ID, userID, progress.StepTranslateDone, "")
	}

	display := update.TranslatedContent
	if strings.TrimSpace(display) == "" {
		display = fetched
	}
	highlights, err := s.model.ExtractHighlights(ctx, display)
	if err != nil {
		return fmt.Errorf("highlights: %w", err)
	}
	update.Highlights = highlights.Highlights
	return nil
}

func (s *Service) publish(memoID, userID, step, message string) {
	if s.hub == nil {
		return
	}
	s.hub.Publish(progress.Event{
		MemoID:  memoID,
		UserID:  userID,
		Step:    step,
		Message: message,
		At:      s.clock.Now(),
	})
}
