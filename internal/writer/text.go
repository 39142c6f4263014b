// Package writer renders text with a handwriting font produced by fontmaker.
package writer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

var textReplacer = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"ё", "е",
	"Ё", "Е",
)

// NormalizeText composes the text to NFC, unifies line endings and replaces
// letters the font has no variations for with their closest form.
func NormalizeText(text string) string {
	return textReplacer.Replace(norm.NFC.String(text))
}

// Lines splits normalized text into lines.
func Lines(text string) []string {
	return strings.Split(text, "\n")
}

// Letters returns the distinct drawable characters of text in first-seen order.
func Letters(text string) []rune {
	seen := make(map[rune]bool)
	var out []rune
	for _, r := range text {
		if r == ' ' || r == '\n' || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
