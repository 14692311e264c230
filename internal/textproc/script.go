package textproc

import "unicode"

// ScriptRatio returns the fraction of letters in text belonging to the native
// script of the given ISO 639-1 language code: Hangul for ko, kana and han
// for ja, han for zh, Latin for everything else. Text with no letters at all
// scores 1 so punctuation-only output never fails validation.
func ScriptRatio(text, lang string) float64 {
	var letters, native int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		letters++
		if inScript(r, lang) {
			native++
		}
	}
	if letters == 0 {
		return 1
	}
	return float64(native) / float64(letters)
}

func inScript(r rune, lang string) bool {
	switch lang {
	case "ko":
		return unicode.Is(unicode.Hangul, r)
	case "ja":
		return unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Han, r)
	case "zh":
		return unicode.Is(unicode.Han, r)
	default:
		return unicode.Is(unicode.Latin, r)
	}
}
