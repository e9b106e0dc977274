package index

import (
	"strings"
	"unicode"
)

// Tokenize splits text into BM25 terms. CJK characters each become their own
// token. No word segmentation is attempted, which keeps scoring identical
// across platforms and avoids a dictionary dependency. Runs of Latin letters
// and digits are kept together as lowercased words. Punctuation and
// whitespace are stripped.
func Tokenize(text string) []string {
	var tokens []string
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, strings.ToLower(word.String()))
			word.Reset()
		}
	}

	for _, r := range text {
		switch {
		case isCJK(r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()

	return tokens
}

// isCJK reports whether r is a Han, Hiragana, Katakana, or Hangul character.
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}
