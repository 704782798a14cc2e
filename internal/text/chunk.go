package text

import (
	"strings"
	"unicode"
)

// Span is the byte range [Start, End) of a piece of a passage.
type Span struct {
	Start, End int
}

// Of returns the text covered by s.
func (s Span) Of(text string) string {
	return text[s.Start:s.End]
}

func (s Span) Len() int {
	return s.End - s.Start
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == '”' || r == '’'
}

// Sentences returns the spans of the sentences in text. A sentence ends
// after a run of terminators and any closing quotes or brackets. Spans
// exclude surrounding whitespace.
func Sentences(text string) []Span {
	var spans []Span

	start := -1
	ending := false

	emit := func(end int) {
		if start >= 0 {
			spans = append(spans, Span{Start: start, End: end})
		}
		start = -1
		ending = false
	}

	for i, r := range text {
		switch {
		case unicode.IsSpace(r):
			if ending {
				emit(i)
			}
		case isTerminator(r):
			if start < 0 {
				start = i
			}
			ending = true
		case isCloser(r) && ending:
		default:
			if ending {
				emit(i)
			}
			if start < 0 {
				start = i
			}
		}
	}

	if start >= 0 {
		spans = append(spans, Span{Start: start, End: start + len(strings.TrimRightFunc(text[start:], unicode.IsSpace))})
	}

	return spans
}

// Chunk groups consecutive sentences into spans of at most maxBytes bytes.
// A sentence longer than maxBytes becomes its own chunk. maxBytes <= 0
// yields one span covering the trimmed passage.
func Chunk(text string, maxBytes int) []Span {
	sentences := Sentences(text)
	if len(sentences) == 0 {
		return nil
	}

	if maxBytes <= 0 {
		return []Span{{Start: sentences[0].Start, End: sentences[len(sentences)-1].End}}
	}

	var chunks []Span
	cur := sentences[0]

	for _, s := range sentences[1:] {
		if s.End-cur.Start > maxBytes {
			chunks = append(chunks, cur)
			cur = s
			continue
		}
		cur.End = s.End
	}

	return append(chunks, cur)
}
