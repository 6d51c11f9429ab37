package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hperssn/stride/internal/catalog"
	"github.com/hperssn/stride/internal/runner"
	"github.com/hperssn/stride/internal/storage"
	"github.com/hperssn/stride/internal/stream"
)

// Deps are the collaborators the HTTP surface forwards to. Repo, Journal and
// Hub may be nil; their routes are then left out.
type Deps struct {
	Timer   Timer
	Binder  *runner.Binder
	Catalog *catalog.Catalog
	Repo    storage.Repository
	Journal *storage.Journal
	Hub     *stream.Hub
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(ExtractUserMiddleware)

	r.Route("/timer", func(r chi.Router) {
		r.Get("/", getTimer(d.Timer))
		r.Get("/active", getActive(d.Timer))
		r.Post("/start", startTimer(d.Timer, d.Binder, d.Catalog, d.Journal))
		r.Post("/pause", pauseTimer(d.Timer, d.Binder))
		r.Post("/resume", resumeTimer(d.Timer, d.Binder))
		r.Post("/reset", resetTimer(d.Binder))
		r.Post("/retarget", retargetTimer(d.Timer))
	})

	r.Get("/activities/{id}/events", StreamActivityViews(d.Binder))
	if d.Hub != nil {
		r.Get("/activities/{id}/feed", StreamActivityFeed(d.Hub))
	}

	if d.Repo != nil {
		r.Get("/history", getHistory(d.Repo))
		r.Get("/history/stats", getStats(d.Repo))
	}

	if d.Catalog != nil {
		r.Get("/catalog", getCatalog(d.Catalog))
	}

	return r
}
