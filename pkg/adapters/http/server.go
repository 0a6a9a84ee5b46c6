package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/aretw0/weft/internal/logging"
	"github.com/aretw0/weft/pkg/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Tasks is the slice of task.Manager the server exposes.
type Tasks interface {
	Len() int
	CancelAll()
}

// Server serves read-only views of registered observables plus task controls.
type Server struct {
	observables map[string]store.Observable
	names       []string
	tasks       Tasks
	gatherer    prometheus.Gatherer
	logger      *slog.Logger
	streams     *StreamManager
}

// Option configures a Server.
type Option func(*Server)

// WithObservable exposes o under name at /state/{name} and on /events.
func WithObservable(name string, o store.Observable) Option {
	return func(s *Server) {
		if _, ok := s.observables[name]; !ok {
			s.names = append(s.names, name)
		}
		s.observables[name] = o
	}
}

// WithTasks enables /tasks and /tasks/cancel.
func WithTasks(t Tasks) Option {
	return func(s *Server) {
		s.tasks = t
	}
}

// WithGatherer serves g on /metrics. Defaults to prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer builds a Server. Observables are subscribed immediately and
// forwarded to SSE clients; call Close to drop those subscriptions.
func NewServer(opts ...Option) *Server {
	s := &Server{
		observables: map[string]store.Observable{},
		gatherer:    prometheus.DefaultGatherer,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	slices.Sort(s.names)
	s.streams = NewStreamManager(s.logger)
	for _, name := range s.names {
		s.streams.Track(name, s.observables[name])
	}
	return s
}

// Handler returns the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", s.Health)
	r.Get("/state", s.States)
	r.Get("/state/{name}", s.State)
	r.Get("/events", s.SubscribeEvents)
	r.Get("/tasks", s.Tasks)
	r.Post("/tasks/cancel", s.CancelTasks)
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Close stops forwarding store changes.
func (s *Server) Close() {
	s.streams.Close()
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health handles GET /healthz.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// States handles GET /state: every observable's snapshot by name.
func (s *Server) States(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]any, len(s.names))
	for _, name := range s.names {
		out[name] = s.observables[name].Snapshot()
	}
	s.writeJSON(w, http.StatusOK, out)
}

// State handles GET /state/{name}.
func (s *Server) State(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	o, ok := s.observables[name]
	if !ok {
		http.Error(w, "unknown observable: "+name, http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, o.Snapshot())
}

// Tasks handles GET /tasks.
func (s *Server) Tasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		http.Error(w, "task manager not configured", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int{"inflight": s.tasks.Len()})
}

// CancelTasks handles POST /tasks/cancel.
func (s *Server) CancelTasks(w http.ResponseWriter, r *http.Request) {
	if s.tasks == nil {
		http.Error(w, "task manager not configured", http.StatusNotFound)
		return
	}
	n := s.tasks.Len()
	s.tasks.CancelAll()
	s.logger.Info("Canceled in-flight tasks", "count", n)
	s.writeJSON(w, http.StatusOK, map[string]int{"canceled": n})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Response encode failed", "err", err)
	}
}

func parseWatch(raw string) map[string]bool {
	if raw == "" {
		return nil
	}
	out := map[string]bool{}
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			out[name] = true
		}
	}
	return out
}
