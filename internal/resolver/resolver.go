// Package resolver maps link targets to document identities and identities
// back to their current locations.
//
// Identity (uuid) and location (owner/category/slug) are kept in two
// separate lookups so a rename never changes what a link points at.
package resolver

import (
	"path"
	"strings"

	"github.com/google/uuid"
	goslug "github.com/gosimple/slug"

	"github.com/starford/weft/internal/models"
)

// Resolved is a reference that maps to a document in the corpus.
type Resolved struct {
	ID   uuid.UUID
	Kind models.Kind
}

type entry struct {
	kind  models.Kind
	loc   models.Location
	title string
}

type locKey struct {
	kind     models.Kind
	owner    string
	category string
	slug     string
}

// Corpus is a lookup of current document locations. It is not safe for
// concurrent use; callers serialize access.
type Corpus struct {
	byUUID     map[uuid.UUID]entry
	byLocation map[locKey]uuid.UUID
	bySlugged  map[locKey][]uuid.UUID // slug-normalized location
}

// New creates an empty corpus.
func New() *Corpus {
	return &Corpus{
		byUUID:     make(map[uuid.UUID]entry),
		byLocation: make(map[locKey]uuid.UUID),
		bySlugged:  make(map[locKey][]uuid.UUID),
	}
}

// NewFromDocuments creates a corpus holding docs.
func NewFromDocuments(docs []models.Document) *Corpus {
	c := New()
	for _, d := range docs {
		c.Put(d)
	}
	return c
}

// Clone returns an independent copy of c.
func (c *Corpus) Clone() *Corpus {
	out := New()
	for id, e := range c.byUUID {
		out.byUUID[id] = e
	}
	for k, id := range c.byLocation {
		out.byLocation[k] = id
	}
	for k, ids := range c.bySlugged {
		out.bySlugged[k] = append([]uuid.UUID(nil), ids...)
	}
	return out
}

// Put records doc at its current location, replacing any previous location.
func (c *Corpus) Put(doc models.Document) {
	if old, ok := c.byUUID[doc.UUID]; ok {
		c.unindex(doc.UUID, old)
	}
	e := entry{kind: doc.Kind, loc: doc.Location, title: doc.Title}
	c.byUUID[doc.UUID] = e

	c.byLocation[exactKey(e.kind, e.loc)] = doc.UUID
	sk := sluggedKey(e.kind, e.loc)
	c.bySlugged[sk] = append(c.bySlugged[sk], doc.UUID)
}

// Remove forgets a document. Unknown ids are ignored.
func (c *Corpus) Remove(id uuid.UUID) {
	e, ok := c.byUUID[id]
	if !ok {
		return
	}
	c.unindex(id, e)
	delete(c.byUUID, id)
}

func (c *Corpus) unindex(id uuid.UUID, e entry) {
	k := exactKey(e.kind, e.loc)
	if c.byLocation[k] == id {
		delete(c.byLocation, k)
	}
	sk := sluggedKey(e.kind, e.loc)
	if ids := without(c.bySlugged[sk], id); len(ids) > 0 {
		c.bySlugged[sk] = ids
	} else {
		delete(c.bySlugged, sk)
	}
}

// Len returns the number of documents in the corpus.
func (c *Corpus) Len() int {
	return len(c.byUUID)
}

// Contains reports whether id is a known document.
func (c *Corpus) Contains(id uuid.UUID) bool {
	_, ok := c.byUUID[id]
	return ok
}

// Kind returns the kind of a known document.
func (c *Corpus) Kind(id uuid.UUID) (models.Kind, bool) {
	e, ok := c.byUUID[id]
	return e.kind, ok
}

// At returns the identity stored exactly at loc.
func (c *Corpus) At(kind models.Kind, loc models.Location) (uuid.UUID, bool) {
	id, ok := c.byLocation[exactKey(kind, loc)]
	return id, ok
}

// Documents returns the location record of every known document. Content
// is not kept by the corpus and is left empty.
func (c *Corpus) Documents() []models.Document {
	out := make([]models.Document, 0, len(c.byUUID))
	for id, e := range c.byUUID {
		out = append(out, models.Document{UUID: id, Kind: e.kind, Location: e.loc, Title: e.title})
	}
	return out
}

// ResolveToUUID maps a reference made by a document owned by sourceOwner to
// the identity of an existing document. ok is false for dangling references.
//
// A ByUUID target resolves to itself when the corpus knows it; the kind
// recorded in the corpus wins over the kind written in the marker. A
// ByLegacyPath target is owner-relative: it is looked up under sourceOwner,
// first exactly, then slug-normalized. Documents of other owners are never
// matched.
func (c *Corpus) ResolveToUUID(sourceOwner string, ref models.Reference) (Resolved, bool) {
	switch t := ref.Target.(type) {
	case models.ByUUID:
		e, ok := c.byUUID[t.ID]
		if !ok {
			return Resolved{}, false
		}
		return Resolved{ID: t.ID, Kind: e.kind}, true

	case models.ByLegacyPath:
		loc := models.Location{Owner: sourceOwner, Category: cleanCategory(t.Category), Slug: t.Slug}
		if id, ok := c.byLocation[exactKey(ref.Kind, loc)]; ok {
			return Resolved{ID: id, Kind: ref.Kind}, true
		}
		if ids := c.bySlugged[sluggedKey(ref.Kind, loc)]; len(ids) == 1 {
			return Resolved{ID: ids[0], Kind: ref.Kind}, true
		}
	}
	return Resolved{}, false
}

// ResolveToLocation returns the current location of id. Callers resolve at
// use time; a location must not be cached across renames.
func (c *Corpus) ResolveToLocation(id uuid.UUID) (models.Location, bool) {
	e, ok := c.byUUID[id]
	return e.loc, ok
}

// Title returns the last known title of id.
func (c *Corpus) Title(id uuid.UUID) string {
	return c.byUUID[id].title
}

// Breadcrumb returns the category segments of id's current location
// followed by its title (or slug when untitled).
func (c *Corpus) Breadcrumb(id uuid.UUID) ([]string, bool) {
	e, ok := c.byUUID[id]
	if !ok {
		return nil, false
	}
	crumbs := e.loc.Segments()
	leaf := e.title
	if leaf == "" {
		leaf = e.loc.Slug
	}
	return append(crumbs, leaf), true
}

// Href returns the navigation path for id at its current location, in the
// same shape as a legacy link: /{kind}/{category...}/{slug}.
func (c *Corpus) Href(id uuid.UUID) (string, bool) {
	e, ok := c.byUUID[id]
	if !ok {
		return "", false
	}
	return "/" + path.Join(string(e.kind), e.loc.Category, e.loc.Slug), true
}

func exactKey(kind models.Kind, loc models.Location) locKey {
	return locKey{kind: kind, owner: loc.Owner, category: cleanCategory(loc.Category), slug: loc.Slug}
}

func sluggedKey(kind models.Kind, loc models.Location) locKey {
	loc.Category = cleanCategory(loc.Category)
	segs := loc.Segments()
	for i, s := range segs {
		segs[i] = componentSlug(s)
	}
	return locKey{
		kind:     kind,
		owner:    loc.Owner,
		category: strings.Join(segs, "/"),
		slug:     componentSlug(loc.Slug),
	}
}

// componentSlug matches the slugging used when files are named from titles.
func componentSlug(s string) string {
	s = strings.TrimSuffix(s, ".md")
	if out := goslug.Make(s); out != "" {
		return out
	}
	return strings.ToLower(strings.ReplaceAll(s, " ", "-"))
}

func cleanCategory(c string) string {
	return strings.Trim(c, "/")
}

func without(ids []uuid.UUID, id uuid.UUID) []uuid.UUID {
	out := ids[:0:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
