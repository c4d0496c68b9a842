package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/riky-24/bot-medsos-sub000/core/logger"
)

// ServerConfig holds the listen address and callback mount path.
type ServerConfig struct {
	Addr string `yaml:"addr" envconfig:"WEBHOOK_ADDR"`
	Path string `yaml:"path" envconfig:"WEBHOOK_PATH"`
}

// Server wraps an http.Server with the callback, health and metrics
// routes.
type Server struct {
	httpServer *http.Server
}

// NewServer mounts the callback handler next to /healthz and
// /metrics.
func NewServer(cfg ServerConfig, callback http.Handler) *Server {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = ":8081"
	}
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		path = "/webhook/tripay"
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	if callback != nil {
		mux.Handle(path, callback)
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start begins listening for incoming HTTP requests. It blocks until
// shutdown.
func (s *Server) Start() error {
	logger.HOOK.Info("http server listening", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("webhook server listen: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	logger.HOOK.Info("shutting down http server")
	return s.httpServer.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
