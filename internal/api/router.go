package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/instanti8/engine/internal/api/handlers"
	mw "github.com/instanti8/engine/internal/api/middleware"
)

type Dependencies struct {
	HMACSecret      []byte
	CORSOrigins     []string
	Limiter         *mw.Limiter
	Health          *handlers.HealthHandler
	Infrastructures *handlers.InfrastructuresHandler
	Credentials     *handlers.CredentialsHandler
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS(dep.CORSOrigins...))
	r.Use(chimid.Compress(5))

	// Health endpoints
	hh := dep.Health
	if hh == nil {
		hh = handlers.NewHealthHandler(nil)
	}
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)
	if dep.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", dep.Metrics)
	}

	r.Route("/api/v1", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			protected.Use(mw.Auth(dep.HMACSecret))
			if dep.Limiter != nil {
				protected.Use(dep.Limiter.Middleware)
			}

			// Infrastructures
			protected.Route("/infrastructures", func(ir chi.Router) {
				ir.Get("/", dep.Infrastructures.List)
				ir.Post("/", dep.Infrastructures.Create)
				ir.Get("/{id}", dep.Infrastructures.Get)
				ir.Get("/{id}/deployment", dep.Infrastructures.Deployment)
				ir.Post("/{id}/deploy", dep.Infrastructures.Deploy)
				ir.Get("/{id}/analysis", dep.Infrastructures.Analysis)
			})

			// Credentials
			protected.Route("/credentials", func(cr chi.Router) {
				cr.Get("/", dep.Credentials.List)
				cr.Post("/aws/verify", dep.Credentials.VerifyAWS)
				cr.Put("/{provider}", dep.Credentials.Save)
				cr.Delete("/{provider}", dep.Credentials.Delete)
			})
		})
	})

	return r
}
