package llm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/onebitebitcoin/zentel/internal/memo"
)

func TestExtractHighlightsExactMatch(t *testing.T) {
	display := "Go ships a new garbage collector. Latency dropped by half in production workloads."
	stub := respond(`{"highlights": [
		{"type": "claim", "text": "Latency dropped by half in production workloads.", "reason": "key result"},
		{"type": "fact", "text": "Go ships a new garbage collector.", "reason": "what happened"}
	]}`)
	o := NewOrchestrator(stub, nil)

	res, err := o.ExtractHighlights(context.Background(), display)
	require.NoError(t, err)
	require.Len(t, res.Highlights, 2)

	runes := []rune(display)
	for _, h := range res.Highlights {
		require.Equal(t, h.Text, string(runes[h.Start:h.End]), "offsets must address the highlight text")
	}
	require.Equal(t, memo.HighlightClaim, res.Highlights[0].Type)
	require.Equal(t, memo.HighlightFact, res.Highlights[1].Type)
}

func TestExtractHighlightsRuneOffsets(t *testing.T) {
	display := "한국어 문장이 먼저 옵니다. The English claim comes second."
	stub := respond(`{"highlights": [{"type": "claim", "text": "The English claim comes second.", "reason": ""}]}`)
	o := NewOrchestrator(stub, nil)

	res, err := o.ExtractHighlights(context.Background(), display)
	require.NoError(t, err)
	require.Len(t, res.Highlights, 1)

	h := res.Highlights[0]
	runes := []rune(display)
	require.Equal(t, h.Text, string(runes[h.Start:h.End]))
}

func TestExtractHighlightsPrefixFallback(t *testing.T) {
	base := "The committee concluded after long deliberation that the proposal should move forward"
	display := base + " without further amendments to the original draft text."
	// The model appends its own ending; only the prefix exists in the display.
	invented := base + " immediately and unanimously, effective today."
	stub := respond(fmt.Sprintf(`{"highlights": [{"type": "claim", "text": %q, "reason": ""}]}`, invented))
	o := NewOrchestrator(stub, nil)

	res, err := o.ExtractHighlights(context.Background(), display)
	require.NoError(t, err)
	require.Len(t, res.Highlights, 1)

	h := res.Highlights[0]
	runes := []rune(display)
	require.Equal(t, 0, h.Start)
	require.Equal(t, h.Text, string(runes[h.Start:h.End]))
}

func TestExtractHighlightsDropsUnlocatable(t *testing.T) {
	stub := respond(`{"highlights": [
		{"type": "claim", "text": "this sentence appears nowhere in the source", "reason": ""},
		{"type": "fact", "text": "real sentence", "reason": ""}
	]}`)
	o := NewOrchestrator(stub, nil)

	res, err := o.ExtractHighlights(context.Background(), "a real sentence lives here")
	require.NoError(t, err)
	require.Len(t, res.Highlights, 1)
	require.Equal(t, "real sentence", res.Highlights[0].Text)
}

func TestExtractHighlightsCapsAtFive(t *testing.T) {
	display := strings.Repeat("sentence one. ", 10)
	var items []string
	for i := 0; i < 8; i++ {
		items = append(items, `{"type": "fact", "text": "sentence one.", "reason": ""}`)
	}
	stub := respond(`{"highlights": [` + strings.Join(items, ",") + `]}`)
	o := NewOrchestrator(stub, nil)

	res, err := o.ExtractHighlights(context.Background(), display)
	require.NoError(t, err)
	require.Len(t, res.Highlights, maxHighlights)
}

func TestExtractHighlightsMalformed(t *testing.T) {
	stub := respond("not json at all")
	o := NewOrchestrator(stub, nil)

	_, err := o.ExtractHighlights(context.Background(), "text")
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestExtractHighlightsWindowsLongText(t *testing.T) {
	stub := respond(`{"highlights": []}`)
	o := NewOrchestrator(stub, nil)

	long := strings.Repeat("x", 9000)
	_, err := o.ExtractHighlights(context.Background(), long)
	require.NoError(t, err)
	require.Len(t, []rune(stub.calls[0].User), highlightWindow)
}
