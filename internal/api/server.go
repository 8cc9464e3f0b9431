// Package api exposes the inventory service over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dharsanguruparan/rolltrack/internal/config"
	"github.com/dharsanguruparan/rolltrack/internal/inventory"
	"github.com/dharsanguruparan/rolltrack/internal/logger"
)

// ManifestLinker hands out download links for shipment manifests.
type ManifestLinker interface {
	PresignManifestURL(ctx context.Context, project, shipmentID string, ttl time.Duration) (string, error)
}

// Options wires a Server. Service is required; Manifests may be nil when no
// object store is configured.
type Options struct {
	Config         config.HTTPConfig
	Service        *inventory.Service
	Logger         *logger.Logger
	Gatherer       prometheus.Gatherer
	Manifests      ManifestLinker
	ManifestURLTTL time.Duration
	Backend        string
}

// Server serves the rolltrack HTTP API.
type Server struct {
	cfg       config.HTTPConfig
	svc       *inventory.Service
	log       *logger.Logger
	gatherer  prometheus.Gatherer
	manifests ManifestLinker
	urlTTL    time.Duration
	backend   string

	server *http.Server
	once   sync.Once
}

// New constructs a Server.
func New(opts Options) *Server {
	s := &Server{
		cfg:       opts.Config,
		svc:       opts.Service,
		log:       opts.Logger,
		gatherer:  opts.Gatherer,
		manifests: opts.Manifests,
		urlTTL:    opts.ManifestURLTTL,
		backend:   opts.Backend,
	}
	if s.log == nil {
		s.log = logger.Nop()
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.urlTTL <= 0 {
		s.urlTTL = 15 * time.Minute
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		recoverer(s.log),
		requestID(s.log),
		logging(s.log),
	)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", s.handleListProjects)
		r.Post("/", s.handleCreateProject)

		r.Route("/{project}", func(r chi.Router) {
			r.Get("/rolls", s.handleListRolls)
			r.Post("/rolls", s.handleCreateRoll)
			r.Get("/rolls/candidates", s.handleCandidates)
			r.Get("/rolls/{rollID}", s.handleGetRoll)
			r.Patch("/rolls/{rollID}", s.handleEditRoll)
			r.Post("/rolls/{rollID}/unload", s.handleUnload)
			r.Post("/ship", s.handleShip)
			r.Post("/reset", s.handleReset)
			r.Post("/flush", s.handleFlush)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/activity", s.handleActivity)
			r.Get("/shipments/{shipmentID}/manifest", s.handleManifest)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(r.Context(), s.log, w, errRouteNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorEnvelope{Error: APIError{
			Code:    "METHOD_NOT_ALLOWED",
			Message: "method not allowed",
		}})
	})
	return r
}

// Run starts the HTTP server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	s.once.Do(func() {
		s.server = &http.Server{
			Addr:              s.cfg.Address,
			Handler:           s.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	})
	go func() {
		<-ctx.Done()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()
	s.log.Info(s.log.WithField(ctx, "address", s.cfg.Address), "api listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
