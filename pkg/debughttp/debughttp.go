// Package debughttp serves a read-only view of a running client.
//
//	GET /healthz  200 while connected, 503 otherwise
//	GET /status   connection summary as JSON
//	GET /world    the latest world snapshot as JSON
//	GET /metrics  Prometheus exposition
package debughttp

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/global-bar/bar-web/pkg/middleware"
	"github.com/global-bar/bar-web/pkg/session"
	"github.com/global-bar/bar-web/pkg/world"
)

// Source is the client state exposed by the handler. *client.Client
// implements it.
type Source interface {
	Snapshot() *world.World
	Status() session.State
	RTT() time.Duration
}

// Status is the body of GET /status.
type Status struct {
	State  string  `json:"state"`
	RoomID string  `json:"roomId,omitempty"`
	Me     string  `json:"me,omitempty"`
	Users  int     `json:"users"`
	RTTMs  float64 `json:"rttMs"`
	Chat   int     `json:"chat"`
}

// Options configures Handler.
type Options struct {
	// Gatherer backs /metrics. Default: prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer

	// Registerer receives request metrics for the debug routes. Nil
	// disables them.
	Registerer prometheus.Registerer

	Logger *slog.Logger
}

// Handler returns the debug router for src.
func Handler(src Source, opts *Options) http.Handler {
	if opts == nil {
		opts = &Options{}
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "debughttp")

	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(chimw.NoCache)
	r.Use(middleware.OpenTelemetry(middleware.WithTracerName("github.com/global-bar/bar-web/pkg/debughttp")))
	if opts.Registerer != nil {
		r.Use(middleware.Prometheus(middleware.WithRegistry(opts.Registerer), middleware.WithSubsystem("debug_http")))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if src.Status() != session.Connected {
			http.Error(w, src.Status().String(), http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})

	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		snap := src.Snapshot()
		st := Status{
			State: src.Status().String(),
			RTTMs: float64(src.RTT()) / float64(time.Millisecond),
		}
		if snap != nil {
			st.RoomID = snap.RoomID
			st.Me = snap.Me
			st.Users = len(snap.Users)
			st.Chat = len(snap.Chat)
		}
		writeJSON(w, logger, st)
	})

	r.Get("/world", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, logger, src.Snapshot())
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}

func writeJSON(w http.ResponseWriter, logger *slog.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("encode response", "error", err)
	}
}
