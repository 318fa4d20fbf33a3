// Package server exposes the HTTP and WebSocket gateway in front of the
// refresh pipeline.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tokenScope/internal/model"
	"tokenScope/internal/refresh"
)

// Server serves cached cycle results over HTTP and forwards published
// patches to WebSocket clients.
type Server struct {
	runner *refresh.Runner
	hub    *Hub
	logger *zap.Logger
}

// New builds a Server around the given runner.
func New(runner *refresh.Runner, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		runner: runner,
		hub:    NewHub(logger),
		logger: logger,
	}
}

// Hub exposes the WebSocket hub for the patch forwarder.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router assembles the HTTP routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/fetch-all", s.handleFetchAll)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/ws", s.hub.HandleWS)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

type fetchAllResponse struct {
	OK        bool               `json:"ok"`
	Cached    bool               `json:"cached"`
	FetchedAt string             `json:"fetchedAt"`
	Tokens    []model.TokenEntry `json:"tokens"`
}

/// handleFetchAll returns the merged token set: the cached snapshot when
// fresh enough, otherwise a recomputed cycle. `useCache=false` forces a
// recompute.
func (s *Server) handleFetchAll(w http.ResponseWriter, r *http.Request) {
	useCache := r.URL.Query().Get("useCache") != "false"

	if useCache {
		if entries, ok := s.runner.CachedSnapshot(r.Context()); ok {
			s.writeJSON(w, http.StatusOK, fetchAllResponse{
				OK:        true,
				Cached:    true,
				FetchedAt: time.Now().UTC().Format(time.RFC3339),
				Tokens:    entries,
			})
			return
		}
	}

	entries, err := s.runner.RunCycle(r.Context())
	if err != nil {
		if errors.Is(err, refresh.ErrCycleInProgress) {
			// A cycle is already computing; the freshest snapshot is the
			// best answer available.
			if cached, ok := s.runner.CachedSnapshot(r.Context()); ok {
				s.writeJSON(w, http.StatusOK, fetchAllResponse{
					OK:        true,
					Cached:    true,
					FetchedAt: time.Now().UTC().Format(time.RFC3339),
					Tokens:    cached,
				})
				return
			}
			http.Error(w, "refresh in progress", http.StatusServiceUnavailable)
			return
		}
		s.logger.Error("fetch-all recompute", zap.Error(err))
		http.Error(w, "failed to fetch token information", http.StatusBadGateway)
		return
	}

	s.writeJSON(w, http.StatusOK, fetchAllResponse{
		OK:        true,
		Cached:    false,
		FetchedAt: time.Now().UTC().Format(time.RFC3339),
		Tokens:    entries,
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"ok":true}`))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("write response", zap.Error(err))
	}
}

// ForwardPatches relays every message from the subscription channel to the
// connected WebSocket clients, unmodified. Returns when the channel closes
// or ctx is canceled.
func (s *Server) ForwardPatches(ctx context.Context, messages <-chan []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}
			s.hub.Broadcast(msg)
		}
	}
}
