package narrator

import (
	"time"
	"unicode"
)

// WordMark is one word of the utterance text and its offset into playback.
type WordMark struct {
	Start, End int
	At         time.Duration
}

// Timeline spreads the words of text over d in proportion to their length
// in non-space runes. Byte offsets index into text.
func Timeline(text string, d time.Duration) []WordMark {
	var (
		marks  []WordMark
		counts []int
		total  int
	)

	start, n := -1, 0

	for i, r := range text {
		if unicode.IsSpace(r) {
			if start >= 0 {
				marks = append(marks, WordMark{Start: start, End: i})
				counts = append(counts, n)
				total += n
				start, n = -1, 0
			}

			continue
		}

		if start < 0 {
			start = i
		}

		n++
	}

	if start >= 0 {
		marks = append(marks, WordMark{Start: start, End: len(text)})
		counts = append(counts, n)
		total += n
	}

	if total == 0 {
		return nil
	}

	elapsed := 0
	for i := range marks {
		marks[i].At = time.Duration(int64(d) * int64(elapsed) / int64(total))
		elapsed += counts[i]
	}

	return marks
}
