package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	"github.com/learnhub/engine/internal/api/handlers"
	mw "github.com/learnhub/engine/internal/api/middleware"
	"github.com/learnhub/engine/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

type Dependencies struct {
	HMACSecret []byte
	Metrics    *metrics.Collector
	// Gatherer backs /metrics; nil leaves the endpoint unmounted.
	Gatherer prometheus.Gatherer
	// RateLimit is requests per second per client IP; zero disables limiting.
	RateLimit float64
	Burst     int

	HealthHandler          *handlers.HealthHandler
	AuthHandler            *handlers.AuthHandler
	NodesHandler           *handlers.NodesHandler
	LearnerProfilesHandler *handlers.LearnerProfilesHandler
	JobsHandler            *handlers.JobsHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging(dep.Metrics))
	r.Use(mw.CORS)
	if dep.RateLimit > 0 {
		r.Use(mw.RateLimit(dep.RateLimit, dep.Burst))
	}
	r.Use(chimid.Compress(5))

	r.Get("/healthz", dep.HealthHandler.Liveness)
	r.Get("/readyz", dep.HealthHandler.Readiness)
	if dep.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(dep.Gatherer))
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", dep.AuthHandler.Register)
			ar.Post("/login", dep.AuthHandler.Login)
		})

		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.HMACSecret))

			protected.Route("/nodes/{collection}", func(nr chi.Router) {
				nr.Get("/", dep.NodesHandler.List)
				nr.Post("/", dep.NodesHandler.Create)
				nr.Route("/{id}", func(one chi.Router) {
					one.Get("/", dep.NodesHandler.Get)
					one.Put("/", dep.NodesHandler.Update)
					one.Delete("/", dep.NodesHandler.Delete)
					one.Delete("/tree", dep.NodesHandler.DeleteTree)
					one.Get("/progress", dep.NodesHandler.Progress)
				})
			})

			protected.Route("/learner-profiles", func(pr chi.Router) {
				pr.Post("/", dep.LearnerProfilesHandler.Create)
				pr.Get("/{learner_id}", dep.LearnerProfilesHandler.Get)
				pr.Put("/{learner_id}", dep.LearnerProfilesHandler.Update)
			})

			protected.Route("/jobs/{type}", func(jr chi.Router) {
				jr.Get("/", dep.JobsHandler.List)
				jr.Post("/", dep.JobsHandler.Create)
				jr.Get("/{name}", dep.JobsHandler.Get)
				jr.Delete("/{name}", dep.JobsHandler.Delete)
				jr.Post("/{name}/abort", dep.JobsHandler.Abort)
			})
		})
	})

	return r
}
