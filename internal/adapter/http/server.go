package http

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/storm-radar-overlay/internal/processor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// FrameSource exposes the rendered overlay and the processor's state.
type FrameSource interface {
	sharedobs.ReadinessChecker
	Latest() *processor.Frame
	Status() processor.Status
}

// Server exposes the overlay image, its status document, and the health,
// readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	frames     FrameSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /radar.png, /radar.json, /healthz,
// /readyz, and /metrics routes.
func NewServer(addr string, frames FrameSource, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		frames: frames,
		logger: logger,
	}

	mux.HandleFunc("GET /radar.png", s.handleImage)
	mux.HandleFunc("GET /radar.json", s.handleStatus)
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(frames))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleImage(w http.ResponseWriter, _ *http.Request) {
	frame := s.frames.Latest()
	if frame == nil || len(frame.PNG) == 0 {
		sharedobs.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  "no frame rendered yet",
		})
		return
	}

	h := w.Header()
	h.Set("Content-Type", "image/png")
	h.Set("Content-Length", strconv.Itoa(len(frame.PNG)))
	h.Set("Cache-Control", "no-cache")
	h.Set("Last-Modified", frame.Event.RenderedAt.UTC().Format(http.TimeFormat))
	h.Set("X-Frame-ID", frame.Event.ID)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(frame.PNG); err != nil {
		s.logger.Debug("write frame", "id", frame.Event.ID, "error", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.frames.Status())
}
