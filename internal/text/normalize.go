// Package text cleans narration passages and splits them into sentence
// spans.
package text

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// ErrEmptyText is returned when the input text is empty or whitespace-only.
var ErrEmptyText = errors.New("text is empty")

var cleaner = strings.NewReplacer(
	"\r\n", "\n",
	"\r", "\n",
	"\t", " ",
	"\u00a0", " ",
	"\u200b", "",
	"\ufeff", "",
)

// Normalize prepares a passage for narration. Text is composed to NFC so a
// base letter and its combining mark reach the tokenizer as one rune. Line
// endings become \n, tabs and non-breaking spaces become spaces, zero-width
// characters are dropped, runs of spaces collapse to one and the result is
// trimmed.
func Normalize(s string) (string, error) {
	s = cleaner.Replace(norm.NFC.String(s))

	var b strings.Builder
	b.Grow(len(s))

	prevSpace := false
	for _, r := range s {
		if r == ' ' {
			if prevSpace {
				continue
			}
			prevSpace = true
		} else {
			prevSpace = false
		}
		b.WriteRune(r)
	}

	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", ErrEmptyText
	}

	return out, nil
}
