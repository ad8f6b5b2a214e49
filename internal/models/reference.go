package models

import (
	"fmt"
	"path"

	"github.com/google/uuid"
)

// Target is what a link marker points at: either a stable UUID or a
// legacy owner-relative path. Implementations are ByUUID and ByLegacyPath.
type Target interface {
	isTarget()
	String() string
}

// ByUUID targets a document by its stable identity.
type ByUUID struct {
	ID uuid.UUID
}

func (ByUUID) isTarget() {}

func (t ByUUID) String() string { return t.ID.String() }

// ByLegacyPath targets a document by category and slug, relative to the
// owner of the referring document.
type ByLegacyPath struct {
	Category string
	Slug     string
}

func (ByLegacyPath) isTarget() {}

func (t ByLegacyPath) String() string { return path.Join(t.Category, t.Slug) }

// Reference is one outgoing link found in a document's content.
// References are comparable and can be used as map keys.
type Reference struct {
	Kind   Kind
	Target Target
}

func (r Reference) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.Target)
}
