// Package textproc provides chunking, merging, and script heuristics for
// long-form text going through the language model.
package textproc

// Chunking defaults, sized for the model context window.
const (
	DefaultChunkSize    = 3000
	DefaultChunkOverlap = 200
)

// Boundary characters a chunk prefers to end on. Sentence enders must be
// followed by whitespace to count; a bare newline always counts.
var sentenceEnders = map[rune]bool{
	'.': true, '!': true, '?': true,
	'。': true, '！': true, '？': true,
}

// Split cuts text into chunks of at most size runes with the given overlap
// between consecutive chunks. Cut points walk back from the size limit to the
// nearest sentence or newline boundary, but never below half the chunk size.
// Text at or under the limit comes back as a single chunk.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = DefaultChunkOverlap
	}
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}
		end = boundaryBefore(runes, start, end)
		chunks = append(chunks, string(runes[start:end]))

		next := end - overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// boundaryBefore walks end back toward start looking for a sentence end or a
// newline, stopping at the midpoint floor so pathological text still splits.
func boundaryBefore(runes []rune, start, end int) int {
	floor := start + (end-start)/2
	for i := end - 1; i > floor; i-- {
		r := runes[i]
		if r == '\n' {
			return i + 1
		}
		if sentenceEnders[r] && i+1 < len(runes) {
			next := runes[i+1]
			if next == ' ' || next == '\n' || next == '\t' {
				return i + 1
			}
		}
	}
	return end
}

// Overlap search bounds for Merge.
const (
	mergeOverlapMax  = 100
	mergeOverlapMin  = 10
	mergeOverlapStep = 5
)

// Merge joins translated chunks back into one text. For each pair it looks
// for the longest shared suffix/prefix between mergeOverlapMax and
// mergeOverlapMin runes; when none is found the chunks are joined with a
// paragraph break so no content is ever dropped.
func Merge(chunks []string) string {
	switch len(chunks) {
	case 0:
		return ""
	case 1:
		return chunks[0]
	}

	merged := []rune(chunks[0])
	for _, chunk := range chunks[1:] {
		next := []rune(chunk)
		if n := overlapLen(merged, next); n > 0 {
			merged = append(merged, next[n:]...)
		} else {
			merged = append(merged, '\n', '\n')
			merged = append(merged, next...)
		}
	}
	return string(merged)
}

func overlapLen(prev, next []rune) int {
	max := mergeOverlapMax
	if len(prev) < max {
		max = len(prev)
	}
	if len(next) < max {
		max = len(next)
	}
	for n := max; n >= mergeOverlapMin; n -= mergeOverlapStep {
		if string(prev[len(prev)-n:]) == string(next[:n]) {
			return n
		}
	}
	return 0
}
