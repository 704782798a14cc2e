package bus

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/example/go-narrator/internal/narrator"
)

// EventMessage is the JSON form of a narrator.Event published on the
// events subject.
type EventMessage struct {
	Kind        string    `json:"kind"`
	UtteranceID string    `json:"utterance_id,omitempty"`
	Start       int       `json:"start,omitempty"`
	End         int       `json:"end,omitempty"`
	Word        string    `json:"word,omitempty"`
	Samples     int       `json:"samples,omitempty"`
	Error       string    `json:"error,omitempty"`
	At          time.Time `json:"at"`
}

// NewEventMessage converts ev, resolving the spoken word for word events.
func NewEventMessage(ev narrator.Event) EventMessage {
	msg := EventMessage{
		Kind:        ev.Kind.String(),
		UtteranceID: ev.UtteranceID,
		Start:       ev.Start,
		End:         ev.End,
		Samples:     ev.Samples,
		At:          ev.At.UTC(),
	}

	if ev.Kind == narrator.EventWord && ev.Start >= 0 && ev.End <= len(ev.Text) && ev.Start < ev.End {
		msg.Word = ev.Text[ev.Start:ev.End]
	}

	if ev.Err != nil {
		msg.Error = ev.Err.Error()
	}

	return msg
}

// EventPublisher returns an observer that publishes every engine event on
// subject. Publishing is buffered by the NATS client and does not block.
func EventPublisher(c *Client, subject string) narrator.Observer {
	return func(ev narrator.Event) {
		data, err := json.Marshal(NewEventMessage(ev))
		if err != nil {
			c.Logger().Warn("failed to marshal event", slogError(err))
			return
		}

		if err := c.Conn().Publish(subject, data); err != nil {
			c.Logger().Warn("failed to publish event",
				slog.String("subject", subject),
				slogError(err),
			)
		}
	}
}
