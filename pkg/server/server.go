// Package server exposes the codec over HTTP.
//
// Routes:
//
//	GET    /healthz                  liveness and build version
//	POST   /v1/encode                Python source → graph JSON
//	POST   /v1/decode                graph JSON or stored id → Python source
//	POST   /v1/roundtrip             encode, decode and compare
//	POST   /v1/graphs                encode (or accept a graph) and store it
//	GET    /v1/graphs                list stored ids
//	GET    /v1/graphs/{id}           stored graph JSON
//	GET    /v1/graphs/{id}/source    stored graph decoded to Python
//	GET    /v1/graphs/{id}/render    stored graph as DOT, SVG or PNG
//	DELETE /v1/graphs/{id}           remove a stored graph
//
// Errors are JSON objects {"error": CODE, "message": text} with a status
// derived from the error code.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/astkg/pkg/observability"
	"github.com/matzehuels/astkg/pkg/pipeline"
	"github.com/matzehuels/astkg/pkg/store"
)

// Defaults for Options fields left zero.
const (
	DefaultMaxBodyBytes   = 10 << 20
	DefaultRequestTimeout = 30 * time.Second
	shutdownTimeout       = 10 * time.Second
)

// Options configures a Server.
type Options struct {
	// MaxBodyBytes limits request bodies.
	MaxBodyBytes int64

	// RequestTimeout bounds one request.
	RequestTimeout time.Duration

	// Pipeline holds defaults merged under each request's options.
	Pipeline pipeline.Options
}

// Server serves the HTTP API. It shares one runner and one store across
// requests.
type Server struct {
	runner *pipeline.Runner
	store  store.Store
	logger *log.Logger
	opts   Options
}

// New creates a server. The store may be nil, in which case the
// /v1/graphs routes answer 501.
func New(runner *pipeline.Runner, st store.Store, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Default()
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	return &Server{runner: runner, store: st, logger: logger, opts: opts}
}

// Handler returns the router with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests(r))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.opts.RequestTimeout))
	r.Use(middleware.RequestSize(s.opts.MaxBodyBytes))

	r.Get("/healthz", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Post("/encode", s.encode)
		r.Post("/decode", s.decode)
		r.Post("/roundtrip", s.roundTrip)

		r.Route("/graphs", func(r chi.Router) {
			r.Use(s.requireStore)
			r.Post("/", s.putGraph)
			r.Get("/", s.listGraphs)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.getGraph)
				r.Get("/source", s.getSource)
				r.Get("/render", s.renderGraph)
				r.Delete("/", s.deleteGraph)
			})
		})
	})
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}

// unmatchedRoute labels requests that match no route.
const unmatchedRoute = "unmatched"

// logRequests logs each request and reports it to the HTTP hooks under
// its route pattern.
func (s *Server) logRequests(routes chi.Routes) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			route := matchRoute(routes, r)
			observability.HTTP().OnRequest(r.Context(), r.Method, route)

			next.ServeHTTP(ww, r)
			s.logResponse(r, ww, route, time.Since(start))
		})
	}
}

// matchRoute resolves the route pattern before dispatch, when the
// request's own routing context is not filled in yet.
func matchRoute(routes chi.Routes, r *http.Request) string {
	rctx := chi.NewRouteContext()
	if routes.Match(rctx, r.Method, r.URL.Path) {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return unmatchedRoute
}

// routeOf returns the pattern chi matched for r.
func routeOf(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
		return rc.RoutePattern()
	}
	return unmatchedRoute
}

func (s *Server) logResponse(r *http.Request, ww middleware.WrapResponseWriter, route string, dur time.Duration) {
	status := ww.Status()
	if status == 0 {
		status = http.StatusOK
	}
	observability.HTTP().OnResponse(r.Context(), r.Method, route, status, dur)
	s.logger.Debug("request",
		"method", r.Method,
		"route", route,
		"path", r.URL.Path,
		"status", status,
		"bytes", ww.BytesWritten(),
		"duration", dur,
		"request_id", middleware.GetReqID(r.Context()))
}

func (s *Server) requireStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.store == nil {
			writeJSON(w, http.StatusNotImplemented, errorResponse{
				Error:   "NOT_CONFIGURED",
				Message: "no graph store configured",
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}
