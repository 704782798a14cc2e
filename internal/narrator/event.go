package narrator

import "time"

type EventKind int

const (
	// EventStarted fires right before the utterance is handed to the sink.
	EventStarted EventKind = iota
	// EventWord marks the byte range [Start, End) of the word being spoken.
	EventWord
	EventFinished
	EventInterrupted
	EventFailed
	// EventRejected reports a Synthesize call made while the engine was not ready.
	EventRejected
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventWord:
		return "word"
	case EventFinished:
		return "finished"
	case EventInterrupted:
		return "interrupted"
	case EventFailed:
		return "failed"
	case EventRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind        EventKind
	UtteranceID string
	Text        string
	Start, End  int
	Samples     int
	Err         error
	At          time.Time
}

// Observer receives engine events. It may be called from several goroutines
// and must not block.
type Observer func(Event)
