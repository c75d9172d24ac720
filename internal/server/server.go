package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/example/go-dyntok/internal/config"
	"github.com/example/go-dyntok/internal/text"
	"github.com/example/go-dyntok/internal/tokenizer"
	"github.com/example/go-dyntok/internal/vocab"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Vocabulary is the tokenizer surface served over HTTP. *vocab.Service
// implements it and serializes access for concurrent requests.
type Vocabulary interface {
	Train(ctx context.Context, input string, opts tokenizer.TrainOptions) (tokenizer.Stats, error)
	Encode(ctx context.Context, input string, opts tokenizer.EncodeOptions) (vocab.EncodeResult, error)
	Decode(ids []int, opts tokenizer.DecodeOptions) string
	ExportJSON() ([]byte, error)
	ImportJSON(ctx context.Context, data []byte) (tokenizer.Stats, error)
	Reset(ctx context.Context) (tokenizer.Stats, error)
	Stats() tokenizer.Stats
}

// maxVocabBodyBytes caps PUT /vocab bodies.
const maxVocabBodyBytes = 64 << 20

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	requestTimeout time.Duration
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   1 << 20,
		requestTimeout: 30 * time.Second,
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for /train and /encode.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithRequestTimeout sets the per-request deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

type handler struct {
	vocab Vocabulary
	opts  options
	log   *slog.Logger
}

// NewHandler returns an http.Handler serving /health, /stats, /vocab,
// POST /train, POST /encode and POST /decode.
func NewHandler(v Vocabulary, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	h := &handler{vocab: v, opts: opts, log: opts.logger}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/stats", h.handleStats)
	mux.HandleFunc("/vocab", h.handleVocab)
	mux.HandleFunc("/train", h.handleTrain)
	mux.HandleFunc("/encode", h.handleEncode)
	mux.HandleFunc("/decode", h.handleDecode)
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// Health is the body served by GET /health.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, Health{Status: "ok", Version: buildVersion()})
}

func (h *handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, h.vocab.Stats())
}

type trainRequest struct {
	Text     string `json:"text"`
	MaxVocab int    `json:"max_vocab"`
	Append   bool   `json:"append"`
}

func (h *handler) handleTrain(w http.ResponseWriter, r *http.Request) {
	var req trainRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	input, ok := h.checkText(w, req.Text)
	if !ok {
		return
	}

	if req.MaxVocab < 0 {
		writeError(w, http.StatusBadRequest, "max_vocab must not be negative")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	stats, err := h.vocab.Train(ctx, input, tokenizer.TrainOptions{MaxVocab: req.MaxVocab, Append: req.Append})
	if err != nil {
		h.fail(w, r, "train failed", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type encodeRequest struct {
	Text   string `json:"text"`
	AddBOS bool   `json:"add_bos"`
	AddEOS bool   `json:"add_eos"`
}

func (h *handler) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	// Encode receives the raw text; only emptiness is checked at the boundary.
	if _, ok := h.checkText(w, req.Text); !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	start := time.Now()
	res, err := h.vocab.Encode(ctx, req.Text, tokenizer.EncodeOptions{AddBOS: req.AddBOS, AddEOS: req.AddEOS})
	if err != nil {
		h.fail(w, r, "encode failed", err)
		return
	}

	h.log.DebugContext(r.Context(), "encode complete",
		slog.Int("text_len", len(req.Text)),
		slog.Int("ids", len(res.IDs)),
		slog.Int("learned", res.Learned),
		slog.Int64("duration_ms", time.Since(start).Milliseconds()),
	)
	writeJSON(w, http.StatusOK, res)
}

type decodeRequest struct {
	IDs         []int `json:"ids"`
	SkipSpecial *bool `json:"skip_special"`
}

func (h *handler) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, text.ErrEmptyIDs.Error())
		return
	}

	opts := tokenizer.DefaultDecodeOptions()
	if req.SkipSpecial != nil {
		opts.SkipSpecial = *req.SkipSpecial
	}

	writeJSON(w, http.StatusOK, map[string]string{"text": h.vocab.Decode(req.IDs, opts)})
}

func (h *handler) handleVocab(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		data, err := h.vocab.ExportJSON()
		if err != nil {
			h.fail(w, r, "export failed", err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	case http.MethodPut, http.MethodPost:
		if r.Body == nil {
			writeError(w, http.StatusBadRequest, "request body is required")
			return
		}
		data, err := io.ReadAll(io.LimitReader(r.Body, maxVocabBodyBytes+1))
		if err != nil {
			writeError(w, http.StatusBadRequest, "read body: "+err.Error())
			return
		}
		if len(data) > maxVocabBodyBytes {
			writeError(w, http.StatusRequestEntityTooLarge, "vocabulary body too large")
			return
		}
		stats, err := h.vocab.ImportJSON(ctx, data)
		if errors.Is(err, tokenizer.ErrInvalidVocabulary) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if err != nil {
			h.fail(w, r, "import failed", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	case http.MethodDelete:
		stats, err := h.vocab.Reset(ctx)
		if err != nil {
			h.fail(w, r, "reset failed", err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// decodeRequest enforces POST with a JSON body and reports failures itself.
func (h *handler) decodeRequest(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return false
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return false
	}
	return true
}

func (h *handler) checkText(w http.ResponseWriter, raw string) (string, bool) {
	normalized, err := text.Normalize(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "text field is required")
		return "", false
	}

	if len(raw) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return "", false
	}
	return normalized, true
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		h.log.WarnContext(r.Context(), msg+": timed out", slog.String("error", err.Error()))
		writeError(w, http.StatusGatewayTimeout, "request timed out")
		return
	}
	h.log.ErrorContext(r.Context(), msg, slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, err.Error())
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
	vocab           Vocabulary
	logger          *slog.Logger
	shutdownTimeout time.Duration
}

func New(cfg config.Config, v Vocabulary) *Server {
	return &Server{
		cfg:             cfg,
		vocab:           v,
		logger:          slog.Default(),
		shutdownTimeout: 10 * time.Second,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// WithLogger overrides the logger passed to the handler.
func (s *Server) WithLogger(l *slog.Logger) *Server {
	s.logger = l
	return s
}

// Handler builds the configured http.Handler.
func (s *Server) Handler() http.Handler {
	return NewHandler(s.vocab,
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
		WithLogger(s.logger),
	)
}

func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	s.logger.InfoContext(ctx, "http server listening", slog.String("addr", s.cfg.Server.ListenAddr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

// ProbeHTTP queries GET /health on addr and returns the decoded body. Only a
// 200 response reporting status "ok" counts as healthy.
func ProbeHTTP(ctx context.Context, addr string) (Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/health", nil)
	if err != nil {
		return Health{}, fmt.Errorf("build health request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Health{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Health{}, fmt.Errorf("unexpected health status: %s", resp.Status)
	}

	var health Health
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return Health{}, fmt.Errorf("decode health response: %w", err)
	}

	if health.Status != "ok" {
		return health, fmt.Errorf("server reports status %q", health.Status)
	}

	return health, nil
}
