package api

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/weft/internal/docservice"
	"github.com/starford/weft/internal/index"
	"github.com/starford/weft/internal/links"
	"github.com/starford/weft/internal/models"
)

// segmentRe matches one location component; categories are checked by storage.
var segmentRe = regexp.MustCompile(`^[^/\\.][^/\\]*$`)

// CreateDocumentRequest is the request body for creating a document.
type CreateDocumentRequest struct {
	Kind     string `json:"kind" example:"note" validate:"required"`
	Owner    string `json:"owner" example:"alice" validate:"required"`
	Category string `json:"category" example:"work/notes"`
	Slug     string `json:"slug" example:"plan" validate:"required"`
	Content  string `json:"content" example:"# Plan" validate:"required"`
}

// Validate validates the request.
func (r CreateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Kind, validation.Required, validation.In(string(models.KindNote), string(models.KindChecklist))),
		validation.Field(&r.Owner, validation.Required, validation.Match(segmentRe)),
		validation.Field(&r.Category, validation.Length(0, 512)),
		validation.Field(&r.Slug, validation.Required, validation.Match(segmentRe)),
		validation.Field(&r.Content, validation.Required),
	)
}

// Location returns the requested location.
func (r CreateDocumentRequest) Location() models.Location {
	return models.Location{Owner: r.Owner, Category: r.Category, Slug: r.Slug}
}

// UpdateDocumentRequest is the request body for updating a document.
type UpdateDocumentRequest struct {
	Content string `json:"content" example:"# Updated" validate:"required"`
}

// Validate validates the request.
func (r UpdateDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Content, validation.Required),
	)
}

// MoveDocumentRequest is the request body for moving a document.
type MoveDocumentRequest struct {
	Owner    string `json:"owner" example:"alice" validate:"required"`
	Category string `json:"category" example:"archive"`
	Slug     string `json:"slug" example:"plan" validate:"required"`
}

// Validate validates the request.
func (r MoveDocumentRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Owner, validation.Required, validation.Match(segmentRe)),
		validation.Field(&r.Category, validation.Length(0, 512)),
		validation.Field(&r.Slug, validation.Required, validation.Match(segmentRe)),
	)
}

// Location returns the requested destination.
func (r MoveDocumentRequest) Location() models.Location {
	return models.Location{Owner: r.Owner, Category: r.Category, Slug: r.Slug}
}

// DocumentResponse is a document with its content.
type DocumentResponse = models.Document

// MoveResponse reports a completed move.
type MoveResponse = docservice.MoveResult

// LinksResponse lists a document's links grouped by direction and kind.
type LinksResponse = links.ItemLinks

// DegreeResponse carries the number of distinct linked documents.
type DegreeResponse struct {
	UUID   string `json:"uuid" example:"0b3f9d2a-8c41-4e6b-b1f7-5a2c9e7d4f10" validate:"required"`
	Degree int    `json:"degree" example:"3" validate:"required"`
}

// LinkedResponse reports whether two documents are linked.
type LinkedResponse struct {
	Linked bool `json:"linked" validate:"required"`
}

// RebuildResponse carries the stats of a rebuild.
type RebuildResponse = index.BuildStats

// ResolveResponse is the render-time view of a document.
type ResolveResponse = index.Resolution

// StatusResponse summarizes the live index.
type StatusResponse = index.Status

// GraphNode is a document in the graph export.
type GraphNode struct {
	ID    string      `json:"id" example:"0b3f9d2a-8c41-4e6b-b1f7-5a2c9e7d4f10" validate:"required"`
	Kind  models.Kind `json:"kind" example:"note" validate:"required"`
	Title string      `json:"title,omitempty" example:"Plan"`
	Href  string      `json:"href,omitempty" example:"/note/work/plan"`
}

// GraphResponse wraps the graph export.
type GraphResponse struct {
	Nodes []GraphNode  `json:"nodes" validate:"required"`
	Edges []links.Edge `json:"edges" validate:"required"`
}
