package bus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nats-io/nats.go"

	"github.com/example/go-narrator/internal/config"
	"github.com/example/go-narrator/internal/text"
)

// Narrator is the part of narrator.Engine the service drives.
type Narrator interface {
	Submit(text string) (string, error)
	Stop()
}

// Request is the JSON body of a narration message. Stop takes precedence
// over Text.
type Request struct {
	Text string `json:"text"`
	Stop bool   `json:"stop,omitempty"`
}

// Reply answers messages that carry a reply subject.
type Reply struct {
	Accepted bool   `json:"accepted"`
	ID       string `json:"id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// DefaultMaxTextBytes bounds request text when no limit is configured.
const DefaultMaxTextBytes = 4096

// Service subscribes to the narration subject and forwards requests to a
// Narrator.
type Service struct {
	cfg          config.BusConfig
	bus          *Client
	narr         Narrator
	maxTextBytes int
	mu           sync.Mutex
	sub          *nats.Subscription
	logger       *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithMaxTextBytes rejects requests whose text exceeds n bytes.
// Non-positive values keep DefaultMaxTextBytes.
func WithMaxTextBytes(n int) ServiceOption {
	return func(s *Service) {
		if n > 0 {
			s.maxTextBytes = n
		}
	}
}

// NewService builds a Service. Start subscribes it.
func NewService(cfg config.BusConfig, busClient *Client, narr Narrator, log *slog.Logger, opts ...ServiceOption) *Service {
	if log == nil {
		log = slog.Default()
	}

	s := &Service{
		cfg:          cfg,
		bus:          busClient,
		narr:         narr,
		maxTextBytes: DefaultMaxTextBytes,
		logger:       log.With(slog.String("component", "bus-service")),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start subscribes to the narration subject, in the queue group when one is
// configured.
func (s *Service) Start() error {
	if s.cfg.Subject == "" {
		return errors.New("bus subject is required")
	}

	var (
		sub *nats.Subscription
		err error
	)
	if s.cfg.Queue != "" {
		sub, err = s.bus.Conn().QueueSubscribe(s.cfg.Subject, s.cfg.Queue, s.handleRequest)
	} else {
		sub, err = s.bus.Conn().Subscribe(s.cfg.Subject, s.handleRequest)
	}
	if err != nil {
		return err
	}

	if err := s.bus.Conn().Flush(); err != nil {
		_ = sub.Unsubscribe()
		return err
	}

	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()

	s.logger.Info("listening for narration requests",
		slog.String("subject", s.cfg.Subject),
		slog.String("queue", s.cfg.Queue),
	)

	return nil
}

// Close drains the subscription.
func (s *Service) Close() {
	s.mu.Lock()
	sub := s.sub
	s.sub = nil
	s.mu.Unlock()

	if sub != nil {
		_ = sub.Drain()
	}
}

func (s *Service) Healthy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil && s.bus.Healthy()
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req Request
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode narration request", slogError(err))
		s.respond(msg, Reply{Error: "invalid JSON: " + err.Error()})
		return
	}

	if req.Stop {
		s.narr.Stop()
		s.respond(msg, Reply{Accepted: true})
		return
	}

	if len(req.Text) > s.maxTextBytes {
		s.logger.Warn("narration request too large", slog.Int("text_len", len(req.Text)))
		s.respond(msg, Reply{Error: fmt.Sprintf("text exceeds maximum size of %d bytes", s.maxTextBytes)})
		return
	}

	input, err := text.Normalize(req.Text)
	if err != nil {
		s.respond(msg, Reply{Error: "text field is required"})
		return
	}

	id, err := s.narr.Submit(input)
	if err != nil {
		s.logger.Warn("narration request rejected", slog.Int("text_len", len(input)), slogError(err))
		s.respond(msg, Reply{Error: err.Error()})
		return
	}

	s.logger.Debug("narration request accepted", slog.String("utterance_id", id))
	s.respond(msg, Reply{Accepted: true, ID: id})
}

func (s *Service) respond(msg *nats.Msg, reply Reply) {
	if msg.Reply == "" {
		return
	}

	data, err := json.Marshal(reply)
	if err != nil {
		s.logger.Warn("failed to marshal reply", slogError(err))
		return
	}

	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to send reply", slogError(err))
	}
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
