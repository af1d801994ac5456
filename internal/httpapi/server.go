// Package httpapi is the HTTP surface: path-driven routing, playlist
// synthesis, response framing, and CPU-work offload to a blocking pool
// (spec §4.10).
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/hlsvod/hlsvod/internal/apperr"
	"github.com/hlsvod/hlsvod/internal/cache"
	"github.com/hlsvod/hlsvod/internal/config"
	"github.com/hlsvod/hlsvod/internal/httpapi/middleware"
	"github.com/hlsvod/hlsvod/internal/registry"
	"github.com/hlsvod/hlsvod/internal/transcode"
	"github.com/hlsvod/hlsvod/internal/version"
	"github.com/hlsvod/hlsvod/internal/workpool"
)

// Server is the HTTP surface wrapping chi (raw streaming routes and
// /metrics) and huma (OpenAPI-documented health/version routes), the same dual-router
// split the teacher uses for its own relay-vs-docs endpoints.
type Server struct {
	cfg      *config.Config
	router   *chi.Mux
	api      huma.API
	logger   *slog.Logger
	httpSrv  *http.Server

	registry *registry.Registry
	cache    *cache.Cache
	pool     *workpool.Pool
	sessions *transcode.SessionPool
	metrics  *Metrics

	startedAt time.Time
}

// New builds the HTTP surface and wires every route named in spec §4.10.
func New(cfg *config.Config, logger *slog.Logger, reg *registry.Registry, c *cache.Cache, pool *workpool.Pool, sessions *transcode.SessionPool) *Server {
	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.Logging(logger))
	router.Use(middleware.Recovery(logger))
	if cfg.Server.CORSEnabled {
		router.Use(middleware.CORS())
	}

	humaCfg := huma.DefaultConfig(version.ApplicationName, version.Version)
	humaCfg.Info.Description = "On-demand HLS VOD origin for local media files"
	humaCfg.DocsPath = ""
	api := humachi.New(router, humaCfg)

	s := &Server{
		cfg:       cfg,
		router:    router,
		api:       api,
		logger:    logger,
		registry:  reg,
		cache:     c,
		pool:      pool,
		sessions:  sessions,
		metrics:   NewMetrics(),
		startedAt: time.Now(),
	}

	s.registerDocumented()
	s.registerStreamingRoutes()

	s.httpSrv = &http.Server{
		Addr:         cfg.Server.Bind(),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// ListenAndServe starts serving, honoring TLS when both cert and key are
// configured (spec §6: "--tls-cert, --tls-key (both required to enable TLS)").
func (s *Server) ListenAndServe() error {
	if s.cfg.Server.TLSEnabled() {
		return s.httpSrv.ListenAndServeTLS(s.cfg.Server.TLSCertFile, s.cfg.Server.TLSKeyFile)
	}
	return s.httpSrv.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) registerDocumented() {
	huma.Register(s.api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Liveness and readiness probe",
	}, func(ctx context.Context, _ *struct{}) (*healthResponse, error) {
		return &healthResponse{Body: healthBody{Status: "ok", UptimeSeconds: time.Since(s.startedAt).Seconds()}}, nil
	})

	huma.Register(s.api, huma.Operation{
		OperationID: "version",
		Method:      http.MethodGet,
		Path:        "/version",
		Summary:     "Build version information",
	}, func(ctx context.Context, _ *struct{}) (*versionResponse, error) {
		return &versionResponse{Body: version.GetInfo()}, nil
	})
}

type healthBody struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}
type healthResponse struct{ Body healthBody }
type versionResponse struct{ Body version.Info }

func (s *Server) registerStreamingRoutes() {
	s.router.Get("/metrics", s.metrics.Handler().ServeHTTP)
	s.router.Get("/*", s.handleStreamingPath)
}

func (s *Server) handleStreamingPath(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	s.metrics.RequestsTotal.Inc()

	req, ok := Classify(path)
	if !ok {
		http.NotFound(w, r)
		return
	}

	s.dispatch(w, r, req)
}

func (s *Server) sourcePath(req Request) string {
	return req.SourcePath(s.cfg.Server.MediaRoot)
}

func writeError(w http.ResponseWriter, err error) {
	if ae, ok := apperr.As(err); ok && ae.RetryAfter > 0 {
		w.Header().Set("Retry-After", fmt.Sprintf("%d", ae.RetryAfter))
	}
	w.WriteHeader(apperr.HTTPStatus(err))
	fmt.Fprintf(w, "%v", err)
}
