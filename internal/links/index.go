package links

import (
	"sync"

	"github.com/google/uuid"
)

// KindLists holds identities split by the kind of the document they name.
type KindLists struct {
	Notes      []uuid.UUID `json:"notes"`
	Checklists []uuid.UUID `json:"checklists"`
}

// ItemLinks is the read-only view of one document's links.
type ItemLinks struct {
	IsLinkedTo     KindLists `json:"isLinkedTo"`
	IsReferencedIn KindLists `json:"isReferencedIn"`
}

// EmptyItemLinks returns a view with no links and non-nil lists.
func EmptyItemLinks() ItemLinks {
	return ItemLinks{
		IsLinkedTo:     KindLists{Notes: []uuid.UUID{}, Checklists: []uuid.UUID{}},
		IsReferencedIn: KindLists{Notes: []uuid.UUID{}, Checklists: []uuid.UUID{}},
	}
}

// Index holds the live graph. Readers share a lock and always see a
// complete state; writers mutate in place under the exclusive lock or
// replace the whole graph with Swap.
type Index struct {
	mu sync.RWMutex
	g  *Graph
}

// NewIndex returns an index over an empty graph.
func NewIndex() *Index {
	return &Index{g: NewGraph()}
}

// Swap installs g as the live graph and returns the one it replaced.
func (x *Index) Swap(g *Graph) *Graph {
	x.mu.Lock()
	defer x.mu.Unlock()
	prev := x.g
	x.g = g
	return prev
}

// Mutate runs fn with exclusive access to the live graph.
func (x *Index) Mutate(fn func(g *Graph)) {
	x.mu.Lock()
	defer x.mu.Unlock()
	fn(x.g)
}

// View runs fn with shared access to the live graph. fn must not retain g.
func (x *Index) View(fn func(g *Graph)) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	fn(x.g)
}

// Snapshot returns a deep copy of the live graph.
func (x *Index) Snapshot() *Graph {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.g.Clone()
}

// LinksOf returns id's links. Documents with no entry get an empty view.
func (x *Index) LinksOf(id uuid.UUID) ItemLinks {
	x.mu.RLock()
	defer x.mu.RUnlock()
	l, _ := x.g.LinksOf(id)
	return l
}

// IsLinked reports whether a and b are linked in either direction.
func (x *Index) IsLinked(a, b uuid.UUID) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.g.IsLinked(a, b)
}

// Degree returns the number of distinct documents id is linked with.
func (x *Index) Degree(id uuid.UUID) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.g.Degree(id)
}

// Counts returns the number of entries and directed edges.
func (x *Index) Counts() (documents, edges int) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.g.Len(), x.g.EdgeCount()
}
