// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/relabs-tech/inertial_viewer/internal/orientation"
)

// Server serves the latest snapshot over HTTP and websocket.
type Server struct {
	hub      *Hub
	selector *orientation.Selector
	mux      *http.ServeMux
}

// OrientationResponse is the body of /api/orientation.
type OrientationResponse struct {
	Pose      orientation.Pose `json:"pose"`
	Algorithm string           `json:"algorithm"`
	Transform [][]float64      `json:"transform"`
}

// AlgorithmResponse is the body of /api/algorithm.
type AlgorithmResponse struct {
	Algorithm orientation.Algorithm `json:"algorithm"`
	Name      string                `json:"name"`
	Available []string              `json:"available"`
}

// NewServer wires the routes. The hub must be running for /ws to accept
// clients.
func NewServer(hub *Hub, selector *orientation.Selector) *Server {
	s := &Server{hub: hub, selector: selector, mux: http.NewServeMux()}

	s.mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	s.mux.HandleFunc("/api/orientation", s.handleOrientation)
	s.mux.HandleFunc("/api/stats", s.handleStats)
	s.mux.HandleFunc("/api/algorithm", s.handleAlgorithm)
	s.mux.HandleFunc("/ws", s.ServeWS)
	s.mux.HandleFunc("/charts", s.handleCharts)
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		http.Redirect(w, r, "/charts", http.StatusFound)
	})
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.mux}

	errc := make(chan error, 1)
	go func() {
		log.Printf("web: server listening on %s", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("web: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("web: shutdown error: %v", err)
		if err := srv.Close(); err != nil {
			log.Printf("web: force close error: %v", err)
		}
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("web: json encode error: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.hub.Latest()
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleOrientation(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.hub.Latest()
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	writeJSON(w, http.StatusOK, OrientationResponse{
		Pose:      snap.Latest,
		Algorithm: snap.AlgorithmName,
		Transform: snap.Transform,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.hub.Latest()
	if !ok {
		writeJSONError(w, http.StatusServiceUnavailable, "no data yet")
		return
	}
	writeJSON(w, http.StatusOK, snap.History.Summarize())
}

// handleAlgorithm reports the selected algorithm on GET and changes it on
// POST, taking either a form value or a JSON body {"algorithm": "..."}.
func (s *Server) handleAlgorithm(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
	case http.MethodPost:
		value, err := algorithmValue(r)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		algo, err := orientation.ParseAlgorithm(value)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.selector.Set(algo)
		log.Printf("web: selected algorithm %s", algo)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	algo := s.selector.Get()
	resp := AlgorithmResponse{Algorithm: algo, Name: algo.String()}
	for _, a := range orientation.Algorithms() {
		resp.Available = append(resp.Available, a.String())
	}
	writeJSON(w, http.StatusOK, resp)
}

func algorithmValue(r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var body struct {
			Algorithm json.RawMessage `json:"algorithm"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return "", fmt.Errorf("invalid body: %w", err)
		}
		// Accept both "2" and 2.
		var name string
		if err := json.Unmarshal(body.Algorithm, &name); err == nil {
			return name, nil
		}
		return strings.TrimSpace(string(body.Algorithm)), nil
	}
	if err := r.ParseForm(); err != nil {
		return "", fmt.Errorf("invalid form: %w", err)
	}
	return r.FormValue("algorithm"), nil
}
