package analysis

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/onebitebitcoin/zentel/internal/fetch"
	"github.com/onebitebitcoin/zentel/internal/llm"
	"github.com/onebitebitcoin/zentel/internal/memo"
	"github.com/onebitebitcoin/zentel/internal/progress"
	"github.com/onebitebitcoin/zentel/internal/storage/memory"
)

// fakeClock skips sleeps and records the requested waits.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return ctx.Err()
}

// fakeModel scripts every model operation.
type fakeModel struct {
	detectLang    string
	detectErr     error
	translateErr  error
	cleanupCalled bool
	insightsErr   error
	insightsFails int // fail this many calls before succeeding
	calls         int
}

func (f *fakeModel) DetectLanguage(_ context.Context, _ string) (llm.DetectResult, error) {
	if f.detectErr != nil {
		return llm.DetectResult{}, f.detectErr
	}
	lang := f.detectLang
	if lang == "" {
		lang = "en"
	}
	return llm.DetectResult{Language: lang}, nil
}

func (f *fakeModel) Translate(_ context.Context, text, targetLang string) (llm.TranslationResult, error) {
	if f.translateErr != nil {
		return llm.TranslationResult{}, f.translateErr
	}
	return llm.TranslationResult{Text: "번역: " + text, Attempts: 1, Valid: true}, nil
}

func (f *fakeModel) Cleanup(_ context.Context, text string) (llm.CleanupResult, error) {
	f.cleanupCalled = true
	return llm.CleanupResult{Text: "정리: " + text}, nil
}

func (f *fakeModel) ExtractHighlights(_ context.Context, display string) (llm.HighlightResult, error) {
	runes := []rune(display)
	end := 5
	if end > len(runes) {
		end = len(runes)
	}
	return llm.HighlightResult{Highlights: []memo.Highlight{{
		Type: memo.HighlightClaim, Text: string(runes[:end]), Start: 0, End: end,
	}}}, nil
}

func (f *fakeModel) ExtractInsights(_ context.Context, _ string, interests []string) (llm.InsightResult, error) {
	f.calls++
	if f.insightsErr != nil && f.calls <= f.insightsFails {
		return llm.InsightResult{}, f.insightsErr
	}
	res := llm.InsightResult{Context: "test note", Summary: "a summary"}
	if len(interests) > 0 {
		res.Interests = interests[:1]
	}
	return res, nil
}

// fakeFetcher returns a fixed result.
type fakeFetcher struct {
	res   fetch.Result
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) (fetch.Result, error) {
	f.calls++
	return f.res, f.err
}

func newTestService(store memo.Store, model LanguageModel, router fetch.Router, hub *progress.Hub) (*Service, *fakeClock) {
	clock := newFakeClock()
	svc := NewService(Config{
		Store:          store,
		Router:         router,
		Model:          model,
		Hub:            hub,
		Clock:          clock,
		NativeLanguage: "ko",
	})
	return svc, clock
}

func collectSteps(ch <-chan progress.Event) func() []string {
	var mu sync.Mutex
	var steps []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		for evt := range ch {
			mu.Lock()
			steps = append(steps, evt.Step)
			mu.Unlock()
		}
	}()
	return func() []string {
		<-done
		mu.Lock()
		defer mu.Unlock()
		return steps
	}
}

func TestAnalyzeTextMemo(t *testing.T) {
	store := memory.NewMemoStore()
	store.PutMemo(&memo.Memo{ID: "m1", UserID: "u1", Type: memo.TypeText, Content: "my plain thoughts about jazz"})
	store.SetInterests("u1", []string{"Music", "Go"})

	hub := progress.NewHub(progress.Config{})
	ch := hub.Subscribe("test")
	steps := collectSteps(ch)

	model := &fakeModel{}
	svc, _ := newTestService(store, model, fetch.Router{}, hub)

	require.NoError(t, svc.Analyze(context.Background(), "m1", "u1"))
	hub.Close()

	got, err := store.GetMemo(context.Background(), "m1")
	require.NoError(t, err)
	require.Equal(t, memo.StatusCompleted, got.AnalysisStatus)
	require.Equal(t, "test note", got.Context)
	require.Equal(t, "a summary", got.Summary)
	require.Equal(t, []string{"Music"}, got.MatchedInterests)
	require.Empty(t, got.TranslatedContent, "text memos are not translated")

	sequence := steps()
	require.Equal(t, "start", sequence[0])
	require.Contains(t, sequence, "llm")
	require.Contains(t, sequence, "llm_done")
	require.Contains(t, sequence, "interests_done")
	require.Contains(t, sequence, "translate_skip")
	require.Equal(t, "completed", sequence[len(sequence)-1])
	require.NotContains(t, sequence, "scrape")
}

func TestAnalyzeExternalMemoTranslates(t *testing.T) {
	store := memory.NewMemoStore()
	store.PutMemo(&memo.Memo{
		ID: "m1", UserID: "u1", Type: memo.TypeExternalSource,
		Content: "check this article", SourceURL: "https://example.com/story",
	})

	hub := progress.NewHub(progress.Config{})
	ch := hub.Subscribe("test")
	steps := collectSteps(ch)

	fetcher := &fakeFetcher{res: fetch.Result{
		Content: "A long English article about compilers and their optimization passes.",
		Title:   "Compilers", Image: "https://img.example/c.png", Success: true,
	}}
	model := &fakeModel{detectLang: "en"}
	svc, _ := newTestService(store, model, fetch.Router{Generic: fetcher}, hub)

	require.NoError(t, svc.Analyze(context.Background(), "m1", "u1"))
	hub.Close()

	got, _ := store.GetMemo(context.Background(), "m1")
	require.Equal(t, memo.StatusCompleted, got.AnalysisStatus)
	require.Equal(t, fetcher.res.Content, got.FetchedContent)
	require.Equal(t, "Compilers", got.OGTitle)
	require.Equal(t, "en", got.OriginalLanguage)
	require.Contains(t, got.TranslatedContent, "번역:")
	require.Len(t, got.Highlights, 1)

	sequence := steps()
	require.Contains(t, sequence, "scrape")
	require.Contains(t, sequence, "scrape_done")
	require.Contains(t, sequence, "translate")
	require.Contains(t, sequence, "translate_done")
}

func TestAnalyzeNativeContentCleansInsteadOfTranslating(t *testing.T) {
	store := memory.NewMemoStore()
	store.PutMemo(&memo.Memo{
		ID: "m1", UserID: "u1", Type: memo.TypeExternalSource,
		SourceURL: "https://example.com/korean",
	})

	hub := progress.NewHub(progress.Config{})
	ch := hub.Subscribe("test")
	steps := collectSteps(ch)

	fetcher := &fakeFetcher{res: fetch.Result{
		Content: "충분히 긴 한국어 본문입니다. 번역은 필요하지 않습니다.", Success: true,
	}}
	model := &fakeModel{detectLang: "ko"}
	svc, _ := newTestService(store, model, fetch.Router{Generic: fetcher}, hub)

	require.NoError(t, svc.Analyze(context.Background(), "m1", "u1"))
	hub.Close()

	require.True(t, model.cleanupCalled)
	got, _ := store.GetMemo(context.Background(), "m1")
	require.Contains(t, got.TranslatedContent, "정리:")

	sequence := steps()
	require.Contains(t, sequence, "translate_skip")
	require.NotContains(t, sequence, "translate")
}

func TestAnalyzeFetchFailureDegradesToMemoContent(t *testing.T) {
	store := memory.NewMemoStore()
	store.PutMemo(&memo.Memo{
		ID: "m1", UserID: "u1", Type: memo.TypeExternalSource,
		Content: "my own words about this link", SourceURL: "https://example.com/blocked",
	})

	hub := progress.NewHub(progress.Config{})
	ch := hub.Subscribe("test")
	steps := collectSteps(ch)

	fetcher := &fakeFetcher{res: fetch.Failure("blocked"), err: fetch.ErrChallengeBlocked}
	svc, _ := newTestService(store, &fakeModel{}, fetch.Router{Generic: fetcher}, hub)

	require.NoError(t, svc.Analyze(context.Background(), "m1", "u1"))
	hub.Close()

	got, _ := store.GetMemo(context.Background(), "m1")
	require.Equal(t, memo.StatusCompleted, got.AnalysisStatus)
	require.Empty(t, got.FetchedContent)
	require.Equal(t, "a summary", got.Summary)

	sequence := steps()
	require.Contains(t, sequence, "scrape_failed")
	require.Contains(t, sequence, "translate_skip")
}

func TestAnalyzeRetriesWithBackoffThenSucceeds(t *testing.T) {
	store := memory.NewMemoStore()
	store.PutMemo(&memo.Memo{ID: "m1", UserID: "u1", Type: memo.TypeText, Content: "words"})

	model := &fakeModel{insightsErr: fmt.Errorf("transient"), insightsFails: 2}
	svc, clock := newTestService(store, model, fetch.Router{}, nil)

	require.NoError(t, svc.Analyze(context.Background(), "m1", "u1"))
	require.Equal(t, []time.Duration{time.Second, 3 * time.Second}, clock.sleeps)

	got, _ := store.GetMemo(context.Background(), "m1")
	require.Equal(t, memo.StatusCompleted, got.AnalysisStatus)
}

func TestAnalyzeExhaustedRetriesFails(t *testing.T) {
	store := memory.NewMemoStore()
	store.PutMemo(&memo.Memo{ID: "m1", UserID: "u1", Type: memo.TypeText, Content: "words"})

	hub := progress.NewHub(progress.Config{})
	ch := hub.Subscribe("test")
	steps := collectSteps(ch)

	model := &fakeModel{insightsErr: fmt.Errorf("provider down"), insightsFails: 100}
	svc, clock := newTestService(store, model, fetch.Router{}, hub)

	err := svc.Analyze(context.Background(), "m1", "u1")
	require.Error(t, err)
	require.Equal(t, []time.Duration{time.Second, 3 * time.Second}, clock.sleeps)
	hub.Close()

	got, _ := store.GetMemo(context.Background(), "m1")
	require.Equal(t, memo.StatusFailed, got.AnalysisStatus)
	require.Contains(t, got.AnalysisError, "provider down")

	sequence := steps()
	require.Equal(t, "failed", sequence[len(sequence)-1])
}

func TestAnalyzeShortFetchedContentSkipsTranslation(t *testing.T) {
	store := memory.NewMemoStore()
	store.PutMemo(&memo.Memo{
		ID: "m1", UserID: "u1", Type: memo.TypeExternalSource,
		SourceURL: "https://example.com/tiny",
	})

	fetcher := &fakeFetcher{res: fetch.Result{Content: "short text", Success: true}}
	model := &fakeModel{}
	svc, _ := newTestService(store, model, fetch.Router{Generic: fetcher}, nil)

	require.NoError(t, svc.Analyze(context.Background(), "m1", "u1"))

	got, _ := store.GetMemo(context.Background(), "m1")
	require.Equal(t, memo.StatusCompleted, got.AnalysisStatus)
	require.Empty(t, got.TranslatedContent)
	require.Empty(t, got.Highlights)
}

func TestAnalyzeMissingMemo(t *testing.T) {
	svc, _ := newTestService(memory.NewMemoStore(), &fakeModel{}, fetch.Router{}, nil)
	err := svc.Analyze(context.Background(), "missing", "u1")
	require.ErrorIs(t, err, memo.ErrNotFound)
}

func TestAnalyzeEmptyMemoFails(t *testing.T) {
	store := memory.NewMemoStore()
	store.PutMemo(&memo.Memo{ID: "m1", UserID: "u1", Type: memo.TypeText, Content: "   "})

	svc, _ := newTestService(store, &fakeModel{}, fetch.Router{}, nil)
	err := svc.Analyze(context.Background(), "m1", "u1")
	require.Error(t, err)

	got, _ := store.GetMemo(context.Background(), "m1")
	require.Equal(t, memo.StatusFailed, got.AnalysisStatus)
	require.NotEmpty(t, got.AnalysisError)
}
