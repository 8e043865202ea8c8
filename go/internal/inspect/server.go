// Package inspect serves the current table view over HTTP for overlays and debugging.
package inspect

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mcdev12/holdem/go/internal/table"
)

// ViewSource supplies the latest view. *table.Session satisfies it.
type ViewSource interface {
	View() table.View
}

// StatsSource is optionally exposed under /api/mirror.
type StatsSource interface {
	Stats() any
}

// StatsFunc adapts a function to a StatsSource.
type StatsFunc func() any

func (f StatsFunc) Stats() any { return f() }

// NewHandler returns the inspector routes wrapped with CORS. mirror may be nil.
func NewHandler(src ViewSource, mirror StatsSource) http.Handler {
	mux := http.NewServeMux()

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	mux.HandleFunc("GET /api/state", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, src.View())
	})

	mux.HandleFunc("GET /api/turn", func(w http.ResponseWriter, r *http.Request) {
		v := src.View()
		writeJSON(w, struct {
			table.TurnView
			CanStart bool `json:"can_start"`
		}{v.Turn, v.CanStartHand()})
	})

	if mirror != nil {
		mux.HandleFunc("GET /api/mirror", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, mirror.Stats())
		})
	}

	setupHealthCheck(mux)

	return c.Handler(mux)
}

func setupHealthCheck(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode inspector response")
	}
}

// Server runs the inspector on a local address.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr and prepares the server. Serve must be called to accept requests.
func Listen(addr string, h http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	return &Server{
		ln: ln,
		srv: &http.Server{
			Handler:           h2c.NewHandler(h, &http2.Server{}),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until Shutdown.
func (s *Server) Serve() error {
	log.Info().Str("addr", s.Addr()).Msg("state inspector listening")
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("inspector server: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
