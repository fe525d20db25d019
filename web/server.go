// Package web exposes the calendar feed, health, and metrics endpoints.
package web

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"showfinder/feed"
	"showfinder/shows"
)

// ShowSource lists the stored shows for the feed.
type ShowSource interface {
	ListShows(ctx context.Context) ([]shows.Show, error)
}

// Server serves the HTTP endpoints.
type Server struct {
	source ShowSource
	feed   *feed.Builder
	mux    *http.ServeMux
	server *http.Server
}

// NewServer creates the HTTP server on the given address.
func NewServer(addr string, source ShowSource, builder *feed.Builder) *Server {
	mux := http.NewServeMux()
	s := &Server{
		source: source,
		feed:   builder,
		mux:    mux,
	}

	mux.HandleFunc("/calendar.ics", s.handleCalendar)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Serve blocks serving requests until Shutdown is called.
func (s *Server) Serve() error { return s.server.ListenAndServe() }

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error { return s.server.Shutdown(ctx) }

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	list, err := s.source.ListShows(r.Context())
	if err != nil {
		slog.Error("list shows for feed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	_, _ = w.Write([]byte(s.feed.Calendar(list)))
}
