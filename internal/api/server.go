// Package api exposes the container's HTTP surface: job submission and
// polling, arm side channels, frame ingest, health and the SSE event stream.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/arm-control/acc/internal/auth"
	"github.com/arm-control/acc/internal/config"
)

// Deps are the collaborators behind the HTTP surface. Stream, Audit and
// Verifier are optional.
type Deps struct {
	Jobs     Jobs
	Frames   Frames
	Arm      SideChannels
	Stream   EventStream
	Audit    AuditSink
	Verifier *auth.Verifier
}

// Server is the HTTP front end.
type Server struct {
	jobs   Jobs
	frames Frames
	arm    SideChannels
	stream EventStream
	audit  AuditSink
	http   *http.Server
}

// New builds the server and its route tree.
func New(cfg config.ServerConfig, deps Deps) *Server {
	s := &Server{
		jobs:   deps.Jobs,
		frames: deps.Frames,
		arm:    deps.Arm,
		stream: deps.Stream,
		audit:  deps.Audit,
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Route("/api/v1", func(r chi.Router) {
		// health stays open for probes
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(auth.Require(deps.Verifier, auth.ScopeControl))
			r.Post("/jobs", s.handleSubmitJob)
			r.Post("/arm/dispense", s.handleDispense)
			r.Post("/arm/speak", s.handleSpeak)
			r.Post("/arm/stop", s.handleEmergencyStop)
			r.Post("/frames", s.handleFrameIngest)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Require(deps.Verifier, auth.ScopeRead))
			r.Get("/jobs/{id}", s.handleJobStatus)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.Require(deps.Verifier, auth.ScopeTelemetry))
			r.Get("/telemetry", s.handleTelemetry)
		})
	})

	// WriteTimeout stays unset: the SSE stream is a long-lived response and a
	// fixed write deadline would sever it.
	s.http = &http.Server{
		Addr:        cfg.Addr,
		Handler:     r,
		ReadTimeout: cfg.ReadTimeout,
		IdleTimeout: cfg.IdleTimeout,
	}
	return s
}

// Handler returns the route tree, mainly for tests.
func (s *Server) Handler() http.Handler { return s.http.Handler }

// ListenAndServe blocks serving HTTP until Shutdown.
func (s *Server) ListenAndServe() error { return s.http.ListenAndServe() }

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error { return s.http.Shutdown(ctx) }

func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if s.stream == nil {
		writeError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "telemetry disabled", nil)
		return
	}
	s.stream.ServeSSE(w, r)
}

func (s *Server) logAudit(user, jobID, action, outcome string, err error, start time.Time) {
	if s.audit == nil {
		return
	}
	code := ""
	if err != nil {
		_, code, _ = toAPIError(err)
	}
	_ = s.audit.Record(user, jobID, action, outcome, code, start)
}
