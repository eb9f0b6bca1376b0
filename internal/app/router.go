package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/playbookhq/playbooks/internal/observability"
	"github.com/playbookhq/playbooks/internal/playbooks"
	"github.com/playbookhq/playbooks/internal/runs"
	"github.com/playbookhq/playbooks/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	PlaybooksHandler *playbooks.Handler
	RunsHandler      *runs.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with service defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	actorHeader := "Playbooks-User-Id"
	if params.Config != nil && params.Config.ActorHeader != "" {
		actorHeader = params.Config.ActorHeader
	}
	r.Route("/api/v0", func(r chi.Router) {
		r.Use(RequireActor(actorHeader))
		if params.PlaybooksHandler != nil {
			r.Route("/playbooks", params.PlaybooksHandler.MountRoutes)
		}
		if params.RunsHandler != nil {
			r.Route("/runs", params.RunsHandler.MountRoutes)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
