// Package server exposes a narration engine over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/example/go-narrator/internal/audio"
	"github.com/example/go-narrator/internal/config"
	"github.com/example/go-narrator/internal/narrator"
	"github.com/example/go-narrator/internal/text"
	"github.com/example/go-narrator/internal/voice"
)

// Narrator is the part of narrator.Engine the handlers use.
type Narrator interface {
	State() narrator.State
	Submit(text string) (string, error)
	Render(ctx context.Context, text string) ([]float32, error)
	Stop()
}

// VoiceLister returns the list of available voices.
type VoiceLister interface {
	ListVoices() []voice.Voice
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	logger         *slog.Logger
	metrics        http.Handler
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		workers:        1,
		requestTimeout: 60 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes.
// Non-positive values keep the default.
func WithMaxTextBytes(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxTextBytes = n
		}
	}
}

// WithWorkers sets the maximum number of concurrent /synth renders.
// Zero disables throttling.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request render deadline.
// Non-positive values keep the default.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.requestTimeout = d
		}
	}
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetricsHandler mounts h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(o *options) { o.metrics = h }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	narr   Narrator
	voices VoiceLister
	opts   options
	sem    chan struct{}
	log    *slog.Logger
}

// NewHandler returns an http.Handler serving /health, /voices, /speak,
// /stop, /synth and, when configured, /metrics.
func NewHandler(narr Narrator, voices VoiceLister, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	if voices == nil {
		voices = staticVoiceLister{}
	}

	h := &handler{
		narr:   narr,
		voices: voices,
		opts:   opts,
		log:    opts.logger.With(slog.String("component", "http")),
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.handleHealth)
	mux.HandleFunc("GET /voices", h.handleVoices)
	mux.HandleFunc("POST /speak", h.handleSpeak)
	mux.HandleFunc("POST /stop", h.handleStop)
	mux.HandleFunc("POST /synth", h.handleSynth)
	if opts.metrics != nil {
		mux.Handle("GET /metrics", opts.metrics)
	}

	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := h.narr.State()

	status, code := "ok", http.StatusOK
	if st != narrator.StateReady {
		status, code = "unavailable", http.StatusServiceUnavailable
	}

	writeJSON(w, code, map[string]string{
		"status":  status,
		"state":   st.String(),
		"version": buildVersion(),
	})
}

func (h *handler) handleVoices(w http.ResponseWriter, _ *http.Request) {
	voices := h.voices.ListVoices()
	if voices == nil {
		voices = []voice.Voice{}
	}
	writeJSON(w, http.StatusOK, voices)
}

type textRequest struct {
	Text string `json:"text"`
}

// decodeText reads and validates the request body. It writes the error
// response itself and returns false on failure.
func (h *handler) decodeText(w http.ResponseWriter, r *http.Request) (string, bool) {
	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return "", false
	}

	var req textRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return "", false
	}

	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text field is required")
		return "", false
	}

	if len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return "", false
	}

	input, err := text.Normalize(req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, "text field is required")
		return "", false
	}

	return input, true
}

func (h *handler) handleSpeak(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeText(w, r)
	if !ok {
		return
	}

	id, err := h.narr.Submit(input)
	if err != nil {
		h.log.WarnContext(r.Context(), "speak rejected",
			slog.Int("text_len", len(input)),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), err.Error())
		return
	}

	h.log.InfoContext(r.Context(), "speak accepted",
		slog.String("utterance_id", id),
		slog.Int("text_len", len(input)),
	)

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (h *handler) handleStop(w http.ResponseWriter, _ *http.Request) {
	h.narr.Stop()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) handleSynth(w http.ResponseWriter, r *http.Request) {
	input, ok := h.decodeText(w, r)
	if !ok {
		return
	}

	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	samples, err := h.narr.Render(ctx, input)
	durationMS := time.Since(start).Milliseconds()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			h.log.WarnContext(r.Context(), "synthesis timed out",
				slog.Int("text_len", len(input)),
				slog.Int64("duration_ms", durationMS),
				slog.String("error", err.Error()),
			)
			writeError(w, http.StatusGatewayTimeout, "synthesis timed out")
			return
		}
		h.log.ErrorContext(r.Context(), "synthesis failed",
			slog.Int("text_len", len(input)),
			slog.Int64("duration_ms", durationMS),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), err.Error())
		return
	}

	wav, err := audio.EncodeWAV(samples)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.log.InfoContext(r.Context(), "synthesis complete",
		slog.Int("text_len", len(input)),
		slog.Int64("duration_ms", durationMS),
		slog.Int("samples", len(samples)),
		slog.Int("wav_bytes", len(wav)),
	)

	w.Header().Set("Content-Type", "audio/wav")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, narrator.ErrNotReady),
		errors.Is(err, narrator.ErrEngineFailed),
		errors.Is(err, narrator.ErrClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	narr            Narrator
	opts            []Option
	shutdownTimeout time.Duration
}

// New returns a Server for cfg. opts are applied to the handler after the
// config-derived options.
func New(cfg config.Config, narr Narrator, opts ...Option) *Server {
	shutdown := 30 * time.Second
	if cfg.Server.ShutdownTimeout > 0 {
		shutdown = time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	}

	return &Server{
		cfg:             cfg,
		narr:            narr,
		opts:            opts,
		shutdownTimeout: shutdown,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	if s.narr == nil {
		return errors.New("server: narrator is required")
	}

	handlerOpts := append([]Option{
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithWorkers(s.cfg.Server.Workers),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout) * time.Second),
	}, s.opts...)

	h := NewHandler(s.narr, loadVoiceLister(s.cfg.Paths.VoicesManifest), handlerOpts...)

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

// ProbeHTTP reports whether the server at addr answers /health with 200.
func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}

func loadVoiceLister(manifest string) VoiceLister {
	vm, err := voice.NewManager(manifest)
	if err != nil {
		return staticVoiceLister{}
	}
	return vm
}

type staticVoiceLister struct {
	voices []voice.Voice
}

func (s staticVoiceLister) ListVoices() []voice.Voice {
	return append([]voice.Voice(nil), s.voices...)
}
