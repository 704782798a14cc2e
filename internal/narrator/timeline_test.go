package narrator

import (
	"reflect"
	"testing"
	"time"
)

func TestTimeline(t *testing.T) {
	tests := []struct {
		name string
		text string
		d    time.Duration
		want []WordMark
	}{
		{"empty", "", time.Second, nil},
		{"spaces only", "  \t\n", time.Second, nil},
		{"single word", "hello", time.Second, []WordMark{{Start: 0, End: 5, At: 0}}},
		{
			name: "proportional",
			text: "ab cdef  gh",
			d:    800 * time.Millisecond,
			want: []WordMark{
				{Start: 0, End: 2, At: 0},
				{Start: 3, End: 7, At: 200 * time.Millisecond},
				{Start: 9, End: 11, At: 600 * time.Millisecond},
			},
		},
		{
			name: "leading and trailing space",
			text: " a b ",
			d:    time.Second,
			want: []WordMark{
				{Start: 1, End: 2, At: 0},
				{Start: 3, End: 4, At: 500 * time.Millisecond},
			},
		},
		{
			name: "multibyte runes",
			text: "héllo wörld",
			d:    time.Second,
			want: []WordMark{
				{Start: 0, End: 6, At: 0},
				{Start: 7, End: 13, At: 500 * time.Millisecond},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Timeline(tt.text, tt.d)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Timeline(%q) = %+v; want %+v", tt.text, got, tt.want)
			}
		})
	}
}

func TestTimelineMarksIncrease(t *testing.T) {
	marks := Timeline("the quick brown fox jumps over the lazy dog", 3*time.Second)

	for i := 1; i < len(marks); i++ {
		if marks[i].At <= marks[i-1].At {
			t.Fatalf("mark %d at %v not after %v", i, marks[i].At, marks[i-1].At)
		}

		if marks[i].Start <= marks[i-1].End-1 {
			t.Fatalf("mark %d overlaps previous word", i)
		}
	}

	if last := marks[len(marks)-1].At; last >= 3*time.Second {
		t.Fatalf("last word starts at %v; want before end of audio", last)
	}
}

func TestEventKindString(t *testing.T) {
	kinds := []EventKind{EventStarted, EventWord, EventFinished, EventInterrupted, EventFailed, EventRejected}
	seen := map[string]bool{}

	for _, k := range kinds {
		s := k.String()
		if s == "unknown" || seen[s] {
			t.Fatalf("EventKind(%d).String() = %q", k, s)
		}

		seen[s] = true
	}

	if EventKind(99).String() != "unknown" {
		t.Fatal("out-of-range kind should be unknown")
	}
}
