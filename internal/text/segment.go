package text

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Segment splits s into atomic tokens, left to right.
//
// A maximal run of word characters (letters, digits, underscore) and
// apostrophes forms one token. Every other non-whitespace rune is a token of
// its own. Whitespace only separates tokens and never produces one.
func Segment(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, len(s)/4+1)
	start := -1

	// An invalid byte decodes as utf8.RuneError with size 1 and becomes a
	// one-byte token.
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		next := i + size

		if isWordRune(r) {
			if start < 0 {
				start = i
			}

			i = next

			continue
		}

		if start >= 0 {
			tokens = append(tokens, s[start:i])
			start = -1
		}

		if !unicode.IsSpace(r) {
			tokens = append(tokens, s[i:next])
		}

		i = next
	}

	if start >= 0 {
		tokens = append(tokens, s[start:])
	}

	return tokens
}

// Fold lowercases the whole string. It runs once before Segment, never per token.
func Fold(s string) string {
	return strings.ToLower(s)
}

func isWordRune(r rune) bool {
	return r == '_' || r == '\'' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
