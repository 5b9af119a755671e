// Package server exposes a running session over HTTP: a health check, the
// Prometheus collectors and the latest snapshot as JSON.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/trainer/metrics"
	"github.com/rustyeddy/trainer/session"
)

// SnapshotFunc returns the state served at /snapshot.
type SnapshotFunc func() session.Snapshot

type Server struct {
	srv *http.Server
	log logrus.FieldLogger
}

// NewRouter builds the routes without binding a listener.
func NewRouter(g prometheus.Gatherer, snap SnapshotFunc, log logrus.FieldLogger) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			log.WithError(err).Error("healthcheck")
		}
	})
	r.Method(http.MethodGet, "/metrics", metrics.Handler(g))
	if snap != nil {
		r.Get("/snapshot", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			if err := json.NewEncoder(w).Encode(snap()); err != nil {
				log.WithError(err).Error("encode snapshot")
			}
		})
	}
	return r
}

func New(addr string, g prometheus.Gatherer, snap SnapshotFunc, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(g, snap, log),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: log,
	}
}

// Start serves in the background until Shutdown.
func (s *Server) Start() {
	go func() {
		s.log.Infof("Listening on %s", s.srv.Addr)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.WithError(err).Error("status server stopped")
		}
	}()
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
