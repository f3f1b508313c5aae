package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/hicap-labs/thinkprobe/internal/logging"
)

// CompletionsPath mirrors the real endpoint's path so a probe pointed at the
// simulator only changes host and key.
const CompletionsPath = "/v2/openai/chat/completions"

// Config holds simulator settings.
type Config struct {
	Addr string
	// APIKey, when set, must match the api-key header or the request is
	// rejected with a 401. Useful for driving the status-error path.
	APIKey string
	Script *Script
}

// Server is the local SSE stand-in.
type Server struct {
	cfg     Config
	script  *Script
	log     zerolog.Logger
	baseCtx context.Context
	cancel  context.CancelFunc
	httpSrv *http.Server
}

// New builds a simulator server. A nil script streams the default passing
// turn.
func New(cfg Config) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	script := cfg.Script
	if script == nil {
		script = DefaultScript()
	}
	s := &Server{
		cfg:     cfg,
		script:  script,
		log:     logging.With("simulator"),
		baseCtx: ctx,
		cancel:  cancel,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST "+CompletionsPath, s.handleCompletions)

	s.httpSrv = &http.Server{
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // SSE requires no write timeout
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
	return s
}

// Handler exposes the mux for in-process tests.
func (s *Server) Handler() http.Handler { return s.httpSrv.Handler }

// ListenAndServe starts the server and blocks until Shutdown.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.cfg.Addr).Str("path", CompletionsPath).Msg("simulator listening")
	s.httpSrv.Addr = s.cfg.Addr
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = s.httpSrv.Shutdown(ctx)
	s.cancel()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintln(w, `{"status":"ok"}`)
}

func (s *Server) handleCompletions(w http.ResponseWriter, r *http.Request) {
	if s.cfg.APIKey != "" && r.Header.Get("api-key") != s.cfg.APIKey {
		http.Error(w, `{"error":"invalid api key"}`, http.StatusUnauthorized)
		return
	}

	var req struct {
		Stream bool   `json:"stream"`
		Model  string `json:"model"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"malformed request body"}`, http.StatusBadRequest)
		return
	}
	if !req.Stream {
		http.Error(w, `{"error":"stream must be true"}`, http.StatusBadRequest)
		return
	}
	s.log.Debug().Str("model", req.Model).Int("lines", len(s.script.Lines)).Msg("streaming scripted turn")

	if s.script.Status != 0 && s.script.Status != http.StatusOK {
		http.Error(w, s.script.Body, s.script.Status)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	delay := time.Duration(s.script.DelayMS) * time.Millisecond
	for _, line := range s.script.Lines {
		if !sleepCtx(r.Context(), delay) {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", line)
		flusher.Flush()
	}
	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
