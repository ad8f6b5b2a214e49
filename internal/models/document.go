// Package models defines the domain types for Weft.
package models

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the type of a document.
type Kind string

// Document kinds.
const (
	KindNote      Kind = "note"
	KindChecklist Kind = "checklist"
)

// Kinds lists every document kind in a stable order.
var Kinds = []Kind{KindNote, KindChecklist}

// ParseKind converts a marker or path segment to a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindNote:
		return KindNote, nil
	case KindChecklist:
		return KindChecklist, nil
	}
	return "", fmt.Errorf("unknown document kind %q", s)
}

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindNote || k == KindChecklist
}

// Dir returns the top-level corpus directory holding documents of this kind.
func (k Kind) Dir() string {
	return string(k) + "s"
}

// Location is the mutable, human-readable address of a document.
type Location struct {
	Owner    string `json:"owner"`
	Category string `json:"category"`
	Slug     string `json:"slug"`
}

// String renders the location as owner/category/slug.
func (l Location) String() string {
	return path.Join(l.Owner, l.Category, l.Slug)
}

// Segments returns the category split into its path components.
func (l Location) Segments() []string {
	if l.Category == "" {
		return []string{}
	}
	return strings.Split(l.Category, "/")
}

// Document is a note or a checklist stored as a single content file.
// UUID never changes; Location may change through rename or move.
type Document struct {
	UUID      uuid.UUID `json:"uuid"`
	Kind      Kind      `json:"kind"`
	Location  Location  `json:"location"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content,omitempty"`
	Checksum  string    `json:"checksum,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Scope narrows corpus enumeration. The zero value means all users.
type Scope struct {
	// Owner restricts enumeration to one user's documents.
	Owner string
	// Include adds documents shared with Owner that live under other owners.
	Include []uuid.UUID
}

// All reports whether the scope covers every owner.
func (s Scope) All() bool {
	return s.Owner == ""
}

// Contains reports whether doc falls inside the scope.
func (s Scope) Contains(doc Document) bool {
	if s.All() || doc.Location.Owner == s.Owner {
		return true
	}
	for _, id := range s.Include {
		if id == doc.UUID {
			return true
		}
	}
	return false
}
