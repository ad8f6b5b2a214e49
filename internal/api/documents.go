package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/starford/weft/internal/apperr"
	"github.com/starford/weft/internal/models"
)

// writeDocument writes doc with its checksum as ETag.
func writeDocument(w http.ResponseWriter, status int, doc models.Document) {
	if doc.Checksum != "" {
		w.Header().Set("ETag", `"`+doc.Checksum+`"`)
	}
	writeJSON(w, status, doc)
}

// writeServiceError maps document service errors to status codes.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody("document already exists"))
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody("checksum mismatch"))
	case errors.Is(err, apperr.ErrInvalidLocation):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// CreateDocument handles POST /api/documents.
//
//	@Summary		Create a note or checklist
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateDocumentRequest	true	"Document to create"
//	@Success		201		{object}	DocumentResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents [post]
func (h *Handler) CreateDocument(w http.ResponseWriter, r *http.Request) {
	var req CreateDocumentRequest
	if !decode(w, r, &req) {
		return
	}
	doc, err := h.svc.Create(r.Context(), models.Kind(req.Kind), req.Location(), []byte(req.Content))
	if err != nil {
		writeServiceError(w, "create document", err)
		return
	}
	writeDocument(w, http.StatusCreated, doc)
}

// GetDocument handles GET /api/documents/{uuid}.
//
//	@Summary		Get a document by identity
//	@Tags			documents
//	@Produce		json
//	@Param			uuid	path		string	true	"Document UUID"
//	@Success		200		{object}	DocumentResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{uuid} [get]
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "uuid")
	if !ok {
		return
	}
	doc, err := h.svc.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, "get document", err)
		return
	}
	writeDocument(w, http.StatusOK, doc)
}

// UpdateDocument handles PUT /api/documents/{uuid}.
//
//	@Summary		Update a document with optimistic concurrency
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			uuid		path		string					true	"Document UUID"
//	@Param			If-Match	header		string					false	"SHA-256 checksum for optimistic concurrency"
//	@Param			body		body		UpdateDocumentRequest	true	"Updated content"
//	@Success		200			{object}	DocumentResponse
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{uuid} [put]
func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "uuid")
	if !ok {
		return
	}
	var req UpdateDocumentRequest
	if !decode(w, r, &req) {
		return
	}
	// Strip surrounding quotes if present (standard ETag format).
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)

	doc, err := h.svc.Update(r.Context(), id, []byte(req.Content), ifMatch)
	if err != nil {
		writeServiceError(w, "update document", err)
		return
	}
	writeDocument(w, http.StatusOK, doc)
}

// DeleteDocument handles DELETE /api/documents/{uuid}.
//
//	@Summary		Delete a document
//	@Tags			documents
//	@Param			uuid	path	string	true	"Document UUID"
//	@Success		204		"Document deleted"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{uuid} [delete]
func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "uuid")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), id); err != nil {
		writeServiceError(w, "delete document", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveDocument handles POST /api/documents/{uuid}/move.
//
//	@Summary		Move a document and rewrite legacy references to it
//	@Tags			documents
//	@Accept			json
//	@Produce		json
//	@Param			uuid	path		string				true	"Document UUID"
//	@Param			body	body		MoveDocumentRequest	true	"Destination"
//	@Success		200		{object}	MoveResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{uuid}/move [post]
func (h *Handler) MoveDocument(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "uuid")
	if !ok {
		return
	}
	var req MoveDocumentRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.svc.Move(r.Context(), id, req.Location())
	if err != nil {
		writeServiceError(w, "move document", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
