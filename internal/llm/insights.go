package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// ExtractInsights produces the short context line, the summary, and the
// matched interests in one combined call. When the combined payload cannot
// be parsed it falls back to two smaller calls so a flaky model degrades the
// run instead of failing it.
func (o *Orchestrator) ExtractInsights(ctx context.Context, content string, interests []string) (InsightResult, error) {
	raw, err := o.client.Complete(ctx, Request{
		System: fmt.Sprintf(
			"Analyze the user's note. Respond with JSON: {\"context\": \"what this note is "+
				"about, at most 10 words\", \"summary\": \"a summary of up to three short "+
				"paragraphs\", \"interests\": [matching entries from this list: %s; use "+
				"[\"none\"] when nothing matches]}.", interestList(interests)),
		User:         content,
		Temperature:  baseTemperature,
		JSONResponse: true,
	})
	if err != nil {
		return InsightResult{}, fmt.Errorf("extract insights: %w", err)
	}

	var payload struct {
		Context   string   `json:"context"`
		Summary   string   `json:"summary"`
		Interests []string `json:"interests"`
	}
	if err := decodeJSON(raw, &payload); err == nil && payload.Context != "" {
		return InsightResult{
			Context:   clampWords(payload.Context, 10),
			Summary:   strings.TrimSpace(payload.Summary),
			Interests: filterInterests(payload.Interests, interests),
		}, nil
	}

	o.logger.Warn("combined insight payload unusable, falling back to split calls",
		zap.String("raw", truncateForLog(raw)))
	return o.extractInsightsSplit(ctx, content, interests)
}

// extractInsightsSplit is the two-call fallback: context+interests as JSON,
// summary as plain text.
func (o *Orchestrator) extractInsightsSplit(ctx context.Context, content string, interests []string) (InsightResult, error) {
	raw, err := o.client.Complete(ctx, Request{
		System: fmt.Sprintf(
			"Respond with JSON: {\"context\": \"what the user's note is about, at most 10 "+
				"words\", \"interests\": [matching entries from this list: %s; use [\"none\"] "+
				"when nothing matches]}.", interestList(interests)),
		User:         content,
		Temperature:  baseTemperature,
		JSONResponse: true,
	})
	if err != nil {
		return InsightResult{}, fmt.Errorf("extract context: %w", err)
	}
	var payload struct {
		Context   string   `json:"context"`
		Interests []string `json:"interests"`
	}
	if err := decodeJSON(raw, &payload); err != nil {
		return InsightResult{}, fmt.Errorf("extract context: %w: %v", ErrMalformedResponse, err)
	}

	summary, err := o.client.Complete(ctx, Request{
		System:      "Summarize the user's note in up to three short paragraphs. Output only the summary.",
		User:        content,
		Temperature: baseTemperature,
	})
	if err != nil {
		return InsightResult{}, fmt.Errorf("extract summary: %w", err)
	}

	return InsightResult{
		Context:   clampWords(payload.Context, 10),
		Summary:   strings.TrimSpace(summary),
		Interests: filterInterests(payload.Interests, interests),
	}, nil
}

func interestList(interests []string) string {
	if len(interests) == 0 {
		return "(empty list)"
	}
	return strings.Join(interests, ", ")
}

// filterInterests keeps only answers that case-insensitively match the
// user's actual interest list. "none" style answers clear the result.
func filterInterests(answers, interests []string) []string {
	if len(answers) == 0 || len(interests) == 0 {
		return nil
	}
	byLower := make(map[string]string, len(interests))
	for _, it := range interests {
		byLower[strings.ToLower(strings.TrimSpace(it))] = it
	}
	var matched []string
	seen := make(map[string]bool)
	for _, a := range answers {
		key := strings.ToLower(strings.TrimSpace(a))
		if key == "" || noMatchAnswers[key] {
			continue
		}
		if canonical, ok := byLower[key]; ok && !seen[canonical] {
			matched = append(matched, canonical)
			seen[canonical] = true
		}
	}
	return matched
}

func clampWords(s string, max int) string {
	words := strings.Fields(strings.TrimSpace(s))
	if len(words) <= max {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:max], " ")
}
