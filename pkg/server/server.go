// Package server exposes a [store.Store] over HTTP.
//
// Routes:
//
//	GET /healthz                 liveness and entity count
//	GET /zones                   zones with member counts and top entities
//	GET /zones/{id}/placement    the zone's layout
//	GET /zones/{id}/position     the zone's world position
//	GET /notifications           the last batch (?visible=true filters)
//	GET /snapshot                the full store snapshot
//	GET /ws                      websocket stream of notification batches
//	GET /metrics                 Prometheus metrics, when a gatherer is set
//
// Errors are answered as {"error": ..., "code": ...} with the status
// derived from the error code.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/territory/pkg/core/model"
	"github.com/matzehuels/territory/pkg/errors"
	"github.com/matzehuels/territory/pkg/observability"
	"github.com/matzehuels/territory/pkg/store"
)

const shutdownTimeout = 5 * time.Second

// Server serves the HTTP API for one store.
type Server struct {
	store    *store.Store
	hub      *Hub
	gatherer prometheus.Gatherer
	logger   *log.Logger
	router   chi.Router
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithHub mounts hub at /ws. The hub should also be registered as a sink
// of the store.
func WithHub(h *Hub) Option {
	return func(s *Server) { s.hub = h }
}

// WithMetrics mounts g at /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// New creates a server for st.
func New(st *store.Store, opts ...Option) *Server {
	s := &Server{
		store:  st,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.observe)

	r.Get("/healthz", s.handleHealth)
	r.Get("/snapshot", s.handleSnapshot)
	r.Get("/notifications", s.handleNotifications)
	r.Route("/zones", func(r chi.Router) {
		r.Get("/", s.handleZones)
		zone := r.With(s.zoneCtx)
		zone.Get("/{id}", s.handleZone)
		zone.Get("/{id}/placement", s.handlePlacement)
		zone.Get("/{id}/position", s.handlePosition)
	})
	if s.hub != nil {
		r.Get("/ws", s.hub.ServeHTTP)
	}
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Run listens on addr until ctx is canceled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrap(errors.ErrCodeNetwork, err, "listen %s", addr)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String())
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if s.hub != nil {
		s.hub.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errc
	s.logger.Info("server stopped")
	return nil
}

// =============================================================================
// Middleware
// =============================================================================

// observe reports every response to the HTTP hooks, keyed by route pattern
// so that zone ids do not explode label cardinality.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if p := rc.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		observability.HTTP().OnResponse(r.Context(), r.Method, route, status, d)
		s.logger.Debug("request", "method", r.Method, "route", route, "status", status, "duration", d)
	})
}

type zoneKey struct{}

func (s *Server) zoneCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		z, ok := s.store.Zones().Get(id)
		if !ok {
			writeError(w, errors.New(errors.ErrCodeUnknownZone, "unknown zone %q", id))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), zoneKey{}, z)))
	})
}

func zoneFrom(r *http.Request) model.Zone {
	z, _ := r.Context().Value(zoneKey{}).(model.Zone)
	return z
}

// =============================================================================
// Responses
// =============================================================================

type errorBody struct {
	Error string      `json:"error"`
	Code  errors.Code `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.ErrCodeInternal
	}
	writeJSON(w, errors.StatusCode(err), errorBody{Error: errors.UserMessage(err), Code: code})
}
