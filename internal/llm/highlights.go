package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/memo"
)

// ExtractHighlights asks the model for the key claims and facts in the
// display text and maps each one to verified rune offsets. Spans the model
// paraphrased are recovered through a prefix match; spans that cannot be
// located at all are dropped.
func (o *Orchestrator) ExtractHighlights(ctx context.Context, display string) (HighlightResult, error) {
	window := display
	if runes := []rune(display); len(runes) > highlightWindow {
		window = string(runes[:highlightWindow])
	}

	raw, err := o.client.Complete(ctx, Request{
		System: fmt.Sprintf(
			"Select up to %d spans worth highlighting in the user's text: central claims "+
				"(type \"claim\") and notable facts (type \"fact\"). Copy each span verbatim. "+
				"Respond with JSON: {\"highlights\": [{\"type\": \"claim\", \"text\": \"...\", "+
				"\"reason\": \"...\"}]}.", maxHighlights),
		User:         window,
		Temperature:  baseTemperature,
		JSONResponse: true,
	})
	if err != nil {
		return HighlightResult{}, fmt.Errorf("extract highlights: %w", err)
	}

	var payload struct {
		Highlights []struct {
			Type   string `json:"type"`
			Text   string `json:"text"`
			Reason string `json:"reason"`
		} `json:"highlights"`
	}
	if err := decodeJSON(raw, &payload); err != nil {
		return HighlightResult{}, fmt.Errorf("extract highlights: %w: %v", ErrMalformedResponse, err)
	}

	displayRunes := []rune(display)
	highlights := make([]memo.Highlight, 0, maxHighlights)
	for _, h := range payload.Highlights {
		if len(highlights) == maxHighlights {
			break
		}
		text := strings.TrimSpace(h.Text)
		if text == "" {
			continue
		}
		start, end, matched := locateSpan(display, displayRunes, text)
		if !matched {
			o.logger.Debug("dropping unlocatable highlight", zap.String("text", truncateForLog(text)))
			continue
		}
		highlights = append(highlights, memo.Highlight{
			Type:   highlightType(h.Type),
			Text:   string(displayRunes[start:end]),
			Start:  start,
			End:    end,
			Reason: strings.TrimSpace(h.Reason),
		})
	}
	return HighlightResult{Highlights: highlights}, nil
}

// locateSpan finds the span in the display text, first verbatim, then by the
// span's leading runes. Offsets are in runes.
func locateSpan(display string, displayRunes []rune, text string) (start, end int, ok bool) {
	if i := strings.Index(display, text); i >= 0 {
		start = len([]rune(display[:i]))
		return start, start + len([]rune(text)), true
	}

	textRunes := []rune(text)
	if len(textRunes) <= highlightPrefixLen {
		return 0, 0, false
	}
	prefix := string(textRunes[:highlightPrefixLen])
	i := strings.Index(display, prefix)
	if i < 0 {
		return 0, 0, false
	}
	start = len([]rune(display[:i]))
	end = start + len(textRunes)
	if end > len(displayRunes) {
		end = len(displayRunes)
	}
	return start, end, true
}

func highlightType(s string) memo.HighlightType {
	if strings.EqualFold(strings.TrimSpace(s), string(memo.HighlightFact)) {
		return memo.HighlightFact
	}
	return memo.HighlightClaim
}
