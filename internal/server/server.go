// Package server exposes the tracker over HTTP: a small JSON API for
// managing listings and notification settings, plus a websocket endpoint
// pushing per-listing snapshots.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/SloeberX/auction-tracker/internal/logging"
	"github.com/SloeberX/auction-tracker/internal/service"
	"github.com/SloeberX/auction-tracker/internal/storage"
)

const maxBodyBytes = 512 << 10

// Server wires the tracker into an http.Server.
type Server struct {
	tracker *service.Tracker
	hub     *Hub
	logger  zerolog.Logger
	http    *http.Server
}

// New constructs the Server.
func New(addr string, tracker *service.Tracker, hub *Hub, logger zerolog.Logger) *Server {
	s := &Server{
		tracker: tracker,
		hub:     hub,
		logger:  logging.Component(logger, "http"),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/listings", s.handleListings)
	mux.HandleFunc("POST /api/add", s.handleAdd)
	mux.HandleFunc("POST /api/remove", s.handleRemove)
	mux.HandleFunc("POST /api/rename", s.handleRename)
	mux.HandleFunc("GET /api/notify/settings", s.handleGetSettings)
	mux.HandleFunc("POST /api/notify/settings", s.handleSetSettings)
	mux.HandleFunc("POST /api/notify/test", s.handleTestAlert)
	mux.Handle("GET /ws", hub)

	s.http = &http.Server{
		Addr:              addr,
		Handler:           noCache(mux),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// ListenAndServe blocks until the context is cancelled or the listener
// fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.http.ListenAndServe()
	}()
	s.logger.Info().Str("addr", s.http.Addr).Msg("http server listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.hub.Close()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleListings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.tracker.NotifySettings()
	if err != nil {
		s.logger.Error().Err(err).Msg("load notify settings")
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"listings": s.tracker.Snapshots(),
		"settings": settings,
	})
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return
	}

	snap, err := s.tracker.Add(req.URL, req.Title)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "id": snap.ID})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.tracker.Remove(req.ID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.tracker.Rename(req.ID, req.Title); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrNotFound) {
			status = http.StatusNotFound
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.tracker.NotifySettings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (s *Server) handleSetSettings(w http.ResponseWriter, r *http.Request) {
	var ns storage.NotifySettings
	if !decodeBody(w, r, &ns) {
		return
	}

	if err := s.tracker.UpdateNotifySettings(ns); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleTestAlert(w http.ResponseWriter, r *http.Request) {
	if err := s.tracker.SendTestAlert(r.Context()); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// Listings always render live; stale caches would defeat the countdown.
func noCache(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, proxy-revalidate")
		w.Header().Set("Pragma", "no-cache")
		w.Header().Set("Expires", "0")
		next.ServeHTTP(w, r)
	})
}

var _ service.Publisher = (*Hub)(nil)
