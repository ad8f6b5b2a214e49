// Package links holds the bidirectional link graph between documents.
//
// Every edge A -> B is stored twice: B in A's outgoing set and A in B's
// incoming set. The mutators on Graph keep both sides in step; nothing
// outside this package touches the underlying maps.
package links

import (
	"bytes"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/starford/weft/internal/models"
)

// Endpoint is one side of an edge: a document identity and its kind.
type Endpoint struct {
	ID   uuid.UUID
	Kind models.Kind
}

// Outgoing is the set of targets a document links to.
type Outgoing map[Endpoint]struct{}

// Edge is a resolved, directed reference between two documents.
type Edge struct {
	From     uuid.UUID   `json:"from"`
	FromKind models.Kind `json:"from_kind"`
	To       uuid.UUID   `json:"to"`
	ToKind   models.Kind `json:"to_kind"`
}

type set map[uuid.UUID]struct{}

type sides struct {
	notes      set
	checklists set
}

func newSides() sides {
	return sides{notes: make(set), checklists: make(set)}
}

func (s sides) of(k models.Kind) set {
	if k == models.KindChecklist {
		return s.checklists
	}
	return s.notes
}

func (s sides) has(id uuid.UUID) bool {
	_, n := s.notes[id]
	_, c := s.checklists[id]
	return n || c
}

func (s sides) len() int {
	return len(s.notes) + len(s.checklists)
}

type item struct {
	kind models.Kind
	out  sides // isLinkedTo
	in   sides // isReferencedIn
}

// Graph maps document identities to their links, partitioned by the
// document's own kind. It is not safe for concurrent use; see Index.
type Graph struct {
	notes      map[uuid.UUID]*item
	checklists map[uuid.UUID]*item
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{
		notes:      make(map[uuid.UUID]*item),
		checklists: make(map[uuid.UUID]*item),
	}
}

func (g *Graph) partition(k models.Kind) map[uuid.UUID]*item {
	if k == models.KindChecklist {
		return g.checklists
	}
	return g.notes
}

func (g *Graph) lookup(id uuid.UUID) *item {
	if it, ok := g.notes[id]; ok {
		return it
	}
	return g.checklists[id]
}

// Touch makes sure id has an entry. An existing entry keeps its kind.
func (g *Graph) Touch(kind models.Kind, id uuid.UUID) {
	g.touch(kind, id)
}

func (g *Graph) touch(kind models.Kind, id uuid.UUID) *item {
	if it := g.lookup(id); it != nil {
		return it
	}
	it := &item{kind: kind, out: newSides(), in: newSides()}
	g.partition(kind)[id] = it
	return it
}

// Has reports whether id has an entry.
func (g *Graph) Has(id uuid.UUID) bool {
	return g.lookup(id) != nil
}

// KindOf returns the kind id was recorded with.
func (g *Graph) KindOf(id uuid.UUID) (models.Kind, bool) {
	it := g.lookup(id)
	if it == nil {
		return "", false
	}
	return it.kind, true
}

// InsertEdge records from -> to on both sides, creating entries as needed.
// Self-edges are ignored and repeated inserts are no-ops.
func (g *Graph) InsertEdge(fromKind models.Kind, from uuid.UUID, toKind models.Kind, to uuid.UUID) {
	if from == to {
		return
	}
	src := g.touch(fromKind, from)
	dst := g.touch(toKind, to)
	src.out.of(dst.kind)[to] = struct{}{}
	dst.in.of(src.kind)[from] = struct{}{}
}

// RemoveEdge deletes from -> to on both sides. Absent edges are ignored.
func (g *Graph) RemoveEdge(from uuid.UUID, toKind models.Kind, to uuid.UUID) {
	src := g.lookup(from)
	if src == nil {
		return
	}
	if dst := g.lookup(to); dst != nil {
		toKind = dst.kind
		delete(dst.in.of(src.kind), from)
	}
	delete(src.out.of(toKind), to)
}

// RemoveDocument drops id's entry together with every edge into or out of
// it. It reports whether id was present.
func (g *Graph) RemoveDocument(id uuid.UUID) bool {
	it := g.lookup(id)
	if it == nil {
		return false
	}
	for _, targets := range []set{it.out.notes, it.out.checklists} {
		for to := range targets {
			if dst := g.lookup(to); dst != nil {
				delete(dst.in.of(it.kind), id)
			}
		}
	}
	for _, sources := range []set{it.in.notes, it.in.checklists} {
		for from := range sources {
			if src := g.lookup(from); src != nil {
				delete(src.out.of(it.kind), id)
			}
		}
	}
	delete(g.partition(it.kind), id)
	return true
}

// Outgoing returns a copy of id's outgoing targets.
func (g *Graph) Outgoing(id uuid.UUID) Outgoing {
	out := make(Outgoing)
	it := g.lookup(id)
	if it == nil {
		return out
	}
	for to := range it.out.notes {
		out[Endpoint{ID: to, Kind: models.KindNote}] = struct{}{}
	}
	for to := range it.out.checklists {
		out[Endpoint{ID: to, Kind: models.KindChecklist}] = struct{}{}
	}
	return out
}

// LinksOf returns a sorted copy of id's links. ok is false when id has no
// entry, in which case the result is empty.
func (g *Graph) LinksOf(id uuid.UUID) (ItemLinks, bool) {
	it := g.lookup(id)
	if it == nil {
		return EmptyItemLinks(), false
	}
	return ItemLinks{
		IsLinkedTo:     KindLists{Notes: sorted(it.out.notes), Checklists: sorted(it.out.checklists)},
		IsReferencedIn: KindLists{Notes: sorted(it.in.notes), Checklists: sorted(it.in.checklists)},
	}, true
}

// HasEdge reports whether the directed edge from -> to exists.
func (g *Graph) HasEdge(from, to uuid.UUID) bool {
	it := g.lookup(from)
	return it != nil && it.out.has(to)
}

// IsLinked reports whether an edge exists between a and b in either
// direction.
func (g *Graph) IsLinked(a, b uuid.UUID) bool {
	it := g.lookup(a)
	if it == nil {
		return false
	}
	return it.out.has(b) || it.in.has(b)
}

// Degree returns the number of distinct documents id is linked with.
func (g *Graph) Degree(id uuid.UUID) int {
	it := g.lookup(id)
	if it == nil {
		return 0
	}
	n := it.out.len()
	for _, sources := range []set{it.in.notes, it.in.checklists} {
		for from := range sources {
			if !it.out.has(from) {
				n++
			}
		}
	}
	return n
}

// Len returns the number of documents with an entry.
func (g *Graph) Len() int {
	return len(g.notes) + len(g.checklists)
}

// EdgeCount returns the number of directed edges.
func (g *Graph) EdgeCount() int {
	n := 0
	for _, part := range []map[uuid.UUID]*item{g.notes, g.checklists} {
		for _, it := range part {
			n += it.out.len()
		}
	}
	return n
}

// Node is a document entry in the graph.
type Node struct {
	ID   uuid.UUID   `json:"id"`
	Kind models.Kind `json:"kind"`
}

// Nodes returns every entry, sorted by identity.
func (g *Graph) Nodes() []Node {
	out := make([]Node, 0, g.Len())
	for id, it := range g.notes {
		out = append(out, Node{ID: id, Kind: it.kind})
	}
	for id, it := range g.checklists {
		out = append(out, Node{ID: id, Kind: it.kind})
	}
	slices.SortFunc(out, func(a, b Node) int { return bytes.Compare(a.ID[:], b.ID[:]) })
	return out
}

// Edges returns every directed edge, sorted by source then target.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.EdgeCount())
	for _, part := range []map[uuid.UUID]*item{g.notes, g.checklists} {
		for from, it := range part {
			for to := range it.out.notes {
				out = append(out, Edge{From: from, FromKind: it.kind, To: to, ToKind: models.KindNote})
			}
			for to := range it.out.checklists {
				out = append(out, Edge{From: from, FromKind: it.kind, To: to, ToKind: models.KindChecklist})
			}
		}
	}
	slices.SortFunc(out, compareEdges)
	return out
}

// Clone returns a deep copy.
func (g *Graph) Clone() *Graph {
	c := NewGraph()
	for _, part := range []map[uuid.UUID]*item{g.notes, g.checklists} {
		for id, it := range part {
			c.partition(it.kind)[id] = &item{
				kind: it.kind,
				out:  sides{notes: cloneSet(it.out.notes), checklists: cloneSet(it.out.checklists)},
				in:   sides{notes: cloneSet(it.in.notes), checklists: cloneSet(it.in.checklists)},
			}
		}
	}
	return c
}

// Equal reports whether g and other hold the same entries and edges.
func (g *Graph) Equal(other *Graph) bool {
	if g.Len() != other.Len() {
		return false
	}
	for _, part := range []map[uuid.UUID]*item{g.notes, g.checklists} {
		for id, it := range part {
			ot := other.lookup(id)
			if ot == nil || ot.kind != it.kind {
				return false
			}
			if !sidesEqual(it.out, ot.out) || !sidesEqual(it.in, ot.in) {
				return false
			}
		}
	}
	return true
}

// Validate checks the structural invariants: every edge is recorded on
// both sides, under the kinds the endpoints were recorded with, and no
// document links to itself.
func (g *Graph) Validate() error {
	var errs []error
	for _, part := range []map[uuid.UUID]*item{g.notes, g.checklists} {
		for id, it := range part {
			if it.out.has(id) || it.in.has(id) {
				errs = append(errs, fmt.Errorf("links: self-loop on %s", id))
			}
			for _, k := range models.Kinds {
				for to := range it.out.of(k) {
					dst := g.lookup(to)
					if dst == nil {
						errs = append(errs, fmt.Errorf("links: %s -> %s: target has no entry", id, to))
						continue
					}
					if dst.kind != k {
						errs = append(errs, fmt.Errorf("links: %s -> %s: filed as %s, target is %s", id, to, k, dst.kind))
					}
					if _, ok := dst.in.of(it.kind)[id]; !ok {
						errs = append(errs, fmt.Errorf("links: %s -> %s: missing incoming side", id, to))
					}
				}
				for from := range it.in.of(k) {
					src := g.lookup(from)
					if src == nil {
						errs = append(errs, fmt.Errorf("links: %s <- %s: source has no entry", id, from))
						continue
					}
					if _, ok := src.out.of(it.kind)[id]; !ok {
						errs = append(errs, fmt.Errorf("links: %s <- %s: missing outgoing side", id, from))
					}
				}
			}
		}
	}
	return errors.Join(errs...)
}

func sidesEqual(a, b sides) bool {
	return setEqual(a.notes, b.notes) && setEqual(a.checklists, b.checklists)
}

func setEqual(a, b set) bool {
	if len(a) != len(b) {
		return false
	}
	for id := range a {
		if _, ok := b[id]; !ok {
			return false
		}
	}
	return true
}

func cloneSet(s set) set {
	c := make(set, len(s))
	for id := range s {
		c[id] = struct{}{}
	}
	return c
}

func sorted(s set) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	slices.SortFunc(out, func(a, b uuid.UUID) int { return bytes.Compare(a[:], b[:]) })
	return out
}

func compareEdges(a, b Edge) int {
	if c := bytes.Compare(a.From[:], b.From[:]); c != 0 {
		return c
	}
	return bytes.Compare(a.To[:], b.To[:])
}
