// Package storage defines the corpus file-system abstraction.
package storage

import (
	"context"

	"github.com/google/uuid"

	"github.com/starford/weft/internal/models"
)

// Provider is the interface for corpus document operations.
type Provider interface {
	// List returns every document inside scope, content included. Documents
	// without an identity get one assigned and persisted.
	List(ctx context.Context, scope models.Scope) ([]models.Document, error)
	// Locate returns the document with the given identity.
	Locate(ctx context.Context, id uuid.UUID) (models.Document, error)
	// Lookup returns the document stored at loc.
	Lookup(kind models.Kind, loc models.Location) (models.Document, error)
	// Read returns the raw bytes of the document stored at loc.
	Read(kind models.Kind, loc models.Location) ([]byte, error)
	// Write atomically stores content at loc and returns the stored document.
	Write(kind models.Kind, loc models.Location, content []byte) (models.Document, error)
	// Delete removes the document stored at loc.
	Delete(kind models.Kind, loc models.Location) error
	// Move relocates a document, keeping its content and identity.
	Move(kind models.Kind, from, to models.Location) (models.Document, error)
}
