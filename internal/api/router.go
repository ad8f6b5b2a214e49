package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/starford/weft/internal/docservice"
	"github.com/starford/weft/internal/index"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// rebuildLimiter throttles POST /rebuild; nil means unlimited.
func NewRouter(svc *docservice.Service, linker *index.Linker, authEnabled bool, token string, sseHandler http.Handler, rebuildLimiter *rate.Limiter) chi.Router {
	h := NewHandler(svc, linker, rebuildLimiter)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Documents CRUD.
	r.Post("/documents", h.CreateDocument)
	r.Get("/documents/{uuid}", h.GetDocument)
	r.Put("/documents/{uuid}", h.UpdateDocument)
	r.Delete("/documents/{uuid}", h.DeleteDocument)
	r.Post("/documents/{uuid}/move", h.MoveDocument)

	// Link queries.
	r.Get("/links/{uuid}", h.LinksOf)
	r.Get("/links/{uuid}/degree", h.Degree)
	r.Get("/links/{uuid}/linked/{other}", h.IsLinked)
	r.Get("/resolve/{uuid}", h.Resolve)
	r.Get("/graph", h.Graph)

	// Index maintenance.
	r.Post("/rebuild", h.Rebuild)
	r.Get("/index/status", h.Status)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
