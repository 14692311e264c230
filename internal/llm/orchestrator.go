package llm

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/textproc"
)

// Operation limits.
const (
	detectPrefixLen      = 500
	highlightWindow      = 4000
	maxHighlights        = 5
	highlightPrefixLen   = 50
	maxValidationRetries = 2
	baseTemperature      = 0.3
	retryTemperatureStep = 0.2
)

// noMatchAnswers are model spellings of "no interests matched".
var noMatchAnswers = map[string]bool{"없음": true, "none": true, "n/a": true}

// Orchestrator sequences completion calls, validates their output, and maps
// model text back onto the source material.
type Orchestrator struct {
	client       CompletionClient
	logger       *zap.Logger
	chunkSize    int
	chunkOverlap int
}

// NewOrchestrator builds an orchestrator over the given provider client.
func NewOrchestrator(client CompletionClient, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		client:       client,
		logger:       logger.Named("orchestrator"),
		chunkSize:    textproc.DefaultChunkSize,
		chunkOverlap: textproc.DefaultChunkOverlap,
	}
}

var langCodePattern = regexp.MustCompile(`^[a-z]{2}(-[A-Za-z]{2})?$`)

// DetectLanguage identifies the dominant language of the text from its
// leading runes. Unusable model output falls back to English rather than
// failing the run.
func (o *Orchestrator) DetectLanguage(ctx context.Context, text string) (DetectResult, error) {
	prefix := text
	if runes := []rune(text); len(runes) > detectPrefixLen {
		prefix = string(runes[:detectPrefixLen])
	}
	raw, err := o.client.Complete(ctx, Request{
		System:       "You identify the dominant language of text. Respond with JSON: {\"language\": \"<ISO 639-1 code>\"}.",
		User:         prefix,
		Temperature:  baseTemperature,
		JSONResponse: true,
	})
	if err != nil {
		return DetectResult{}, fmt.Errorf("detect language: %w", err)
	}

	var payload struct {
		Language string `json:"language"`
	}
	if err := decodeJSON(raw, &payload); err == nil && langCodePattern.MatchString(payload.Language) {
		return DetectResult{Language: normalizeLang(payload.Language)}, nil
	}
	if code := strings.ToLower(strings.TrimSpace(raw)); langCodePattern.MatchString(code) {
		return DetectResult{Language: normalizeLang(code)}, nil
	}
	o.logger.Warn("language detection returned unusable output, defaulting to en",
		zap.String("raw", truncateForLog(raw)))
	return DetectResult{Language: "en"}, nil
}

func normalizeLang(code string) string {
	if i := strings.IndexByte(code, '-'); i > 0 {
		return code[:i]
	}
	return code
}

// Translate renders the text into targetLang chunk by chunk and validates
// that the merged output actually uses the target script. Validation
// failures rerun the whole translation with a higher temperature and a
// corrective instruction; after the retries the best effort is returned with
// Valid false.
func (o *Orchestrator) Translate(ctx context.Context, text, targetLang string) (TranslationResult, error) {
	chunks := textproc.Split(text, o.chunkSize, o.chunkOverlap)

	var merged string
	var attempt int
	for attempt = 0; attempt <= maxValidationRetries; attempt++ {
		temp := baseTemperature + retryTemperatureStep*float64(attempt)
		system := fmt.Sprintf(
			"You are a professional translator. Translate the user's text into %s. "+
				"Preserve paragraph structure and meaning. Output only the translation.", targetLang)
		if attempt > 0 {
			system += fmt.Sprintf(" Your previous answer was not written in %s. Answer strictly in %s.", targetLang, targetLang)
		}

		translated := make([]string, 0, len(chunks))
		var err error
		for i, chunk := range chunks {
			sys := system
			if i > 0 {
				// Later chunks are told their position so the phrasing stays
				// continuous across chunk borders.
				sys += fmt.Sprintf(" The text is part %d of %d of a longer document; continue its flow from the preceding part.", i+1, len(chunks))
			}
			var out string
			out, err = o.client.Complete(ctx, Request{System: sys, User: chunk, Temperature: temp})
			if err != nil {
				break
			}
			translated = append(translated, strings.TrimSpace(out))
		}
		if err != nil {
			return TranslationResult{}, fmt.Errorf("translate chunk: %w", err)
		}

		merged = textproc.Merge(translated)
		if translationValid(merged, targetLang) {
			return TranslationResult{Text: merged, Attempts: attempt + 1, Valid: true}, nil
		}
		o.logger.Warn("translation failed validation",
			zap.String("target_lang", targetLang),
			zap.Int("attempt", attempt+1),
			zap.Float64("script_ratio", textproc.ScriptRatio(merged, targetLang)))
	}
	return TranslationResult{Text: merged, Attempts: attempt, Valid: false}, nil
}

func translationValid(text, lang string) bool {
	return strings.TrimSpace(text) != "" && textproc.ScriptRatio(text, lang) >= 0.5
}

// Cleanup normalizes text that is already in the reader's language:
// transcription noise, broken line wrapping, leftover markup.
func (o *Orchestrator) Cleanup(ctx context.Context, text string) (CleanupResult, error) {
	chunks := textproc.Split(text, o.chunkSize, o.chunkOverlap)
	cleaned := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		out, err := o.client.Complete(ctx, Request{
			System: "Clean up the user's text: fix broken line wrapping, remove navigation " +
				"leftovers and transcription noise. Keep the language, wording and order. " +
				"Output only the cleaned text.",
			User:        chunk,
			Temperature: baseTemperature,
		})
		if err != nil {
			return CleanupResult{}, fmt.Errorf("cleanup chunk: %w", err)
		}
		cleaned = append(cleaned, strings.TrimSpace(out))
	}
	return CleanupResult{Text: textproc.Merge(cleaned)}, nil
}

func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
