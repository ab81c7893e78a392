package nlquery

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// maxQuestionLength caps the question text placed into the prompt.
const maxQuestionLength = 2000

// SanitizeQuestion removes control characters (except newline and tab)
// from a question and truncates it, keeping hostile or pathological
// input from distorting the generation prompt.
func SanitizeQuestion(input string) string {
	if input == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(input))
	for _, r := range input {
		if r == '\n' || r == '\t' || !unicode.IsControl(r) {
			b.WriteRune(r)
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if len(cleaned) > maxQuestionLength {
		cut := maxQuestionLength
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = cleaned[:cut]
	}
	return cleaned
}
