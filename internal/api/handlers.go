package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/starford/weft/internal/apperr"
	"github.com/starford/weft/internal/docservice"
	"github.com/starford/weft/internal/index"
	"github.com/starford/weft/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc     *docservice.Service
	linker  *index.Linker
	limiter *rate.Limiter
}

// NewHandler creates a new Handler. limiter throttles manual rebuilds; nil
// means unlimited.
func NewHandler(svc *docservice.Service, linker *index.Linker, limiter *rate.Limiter) *Handler {
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return &Handler{svc: svc, linker: linker, limiter: limiter}
}

// uuidParam parses a UUID URL parameter, writing 400 when it is invalid.
func uuidParam(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid uuid"))
		return uuid.Nil, false
	}
	return id, true
}

// LinksOf handles GET /api/links/{uuid}.
//
//	@Summary		List the documents a document links to and is referenced in
//	@Tags			links
//	@Produce		json
//	@Param			uuid	path		string	true	"Document UUID"
//	@Success		200		{object}	LinksResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/{uuid} [get]
func (h *Handler) LinksOf(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "uuid")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.linker.LinksOf(id))
}

// Degree handles GET /api/links/{uuid}/degree.
//
//	@Summary		Count the distinct documents linked with a document
//	@Tags			links
//	@Produce		json
//	@Param			uuid	path		string	true	"Document UUID"
//	@Success		200		{object}	DegreeResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/{uuid}/degree [get]
func (h *Handler) Degree(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "uuid")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, DegreeResponse{UUID: id.String(), Degree: h.linker.Degree(id)})
}

// IsLinked handles GET /api/links/{uuid}/linked/{other}.
//
//	@Summary		Report whether two documents are linked in either direction
//	@Tags			links
//	@Produce		json
//	@Param			uuid	path		string	true	"Document UUID"
//	@Param			other	path		string	true	"Other document UUID"
//	@Success		200		{object}	LinkedResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/links/{uuid}/linked/{other} [get]
func (h *Handler) IsLinked(w http.ResponseWriter, r *http.Request) {
	a, ok := uuidParam(w, r, "uuid")
	if !ok {
		return
	}
	b, ok := uuidParam(w, r, "other")
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, LinkedResponse{Linked: h.linker.IsLinked(a, b)})
}

// Rebuild handles POST /api/rebuild.
//
//	@Summary		Rebuild the link index from the corpus
//	@Tags			index
//	@Produce		json
//	@Param			owner	query		string	false	"Restrict the rebuild to one owner"
//	@Param			include	query		string	false	"Comma-separated UUIDs shared with owner"
//	@Success		200		{object}	RebuildResponse
//	@Failure		400		{object}	errResponse
//	@Failure		429		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/rebuild [post]
func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	scope := models.Scope{Owner: strings.TrimSpace(q.Get("owner"))}
	if raw := q.Get("include"); raw != "" {
		if scope.Owner == "" {
			writeJSON(w, http.StatusBadRequest, errorBody("include requires owner"))
			return
		}
		for _, s := range strings.Split(raw, ",") {
			id, err := uuid.Parse(strings.TrimSpace(s))
			if err != nil {
				writeJSON(w, http.StatusBadRequest, errorBody("invalid uuid in include"))
				return
			}
			scope.Include = append(scope.Include, id)
		}
	}

	if !h.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorBody("rebuild requested too often"))
		return
	}

	st, err := h.linker.Rebuild(r.Context(), scope)
	if err != nil {
		switch {
		case errors.Is(err, apperr.ErrEnumeration):
			slog.Error("rebuild failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
		case r.Context().Err() != nil:
			writeJSON(w, http.StatusServiceUnavailable, errorBody("rebuild cancelled"))
		default:
			slog.Error("rebuild failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
		}
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Resolve handles GET /api/resolve/{uuid}.
//
//	@Summary		Resolve a document identity to its current location
//	@Tags			links
//	@Produce		json
//	@Param			uuid	path		string	true	"Document UUID"
//	@Success		200		{object}	ResolveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/resolve/{uuid} [get]
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "uuid")
	if !ok {
		return
	}
	res, found := h.linker.Resolve(id)
	if !found {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Graph handles GET /api/graph.
//
//	@Summary		Export the current link graph
//	@Tags			links
//	@Produce		json
//	@Success		200	{object}	GraphResponse
//	@Security		BearerAuth
//	@Router			/graph [get]
func (h *Handler) Graph(w http.ResponseWriter, _ *http.Request) {
	g := h.linker.Graph()
	nodes := make([]GraphNode, 0, g.Len())
	for _, n := range g.Nodes() {
		node := GraphNode{ID: n.ID.String(), Kind: n.Kind}
		if res, ok := h.linker.Resolve(n.ID); ok {
			node.Title = res.Title
			node.Href = res.Href
		}
		nodes = append(nodes, node)
	}
	writeJSON(w, http.StatusOK, GraphResponse{Nodes: nodes, Edges: g.Edges()})
}

// Status handles GET /api/index/status.
//
//	@Summary		Summarize the live index
//	@Tags			index
//	@Produce		json
//	@Success		200	{object}	StatusResponse
//	@Security		BearerAuth
//	@Router			/index/status [get]
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.linker.Status())
}
