package index

import (
	"github.com/starford/weft/internal/links"
	"github.com/starford/weft/internal/models"
	"github.com/starford/weft/internal/resolver"
)

// UpdateStats reports the delta applied for one document.
type UpdateStats struct {
	Added     int `json:"added"`
	Removed   int `json:"removed"`
	Dangling  int `json:"dangling"`
	Malformed int `json:"malformed"`
}

// Update recomputes doc's outgoing edges from its content and applies the
// difference against previous to g. It returns the new outgoing set, which
// the caller passes back as previous next time.
//
// Edges into doc are left alone, and so are edges whose target was deleted
// without a RemoveDocument; only a rebuild clears those.
func Update(g *links.Graph, doc models.Document, corpus *resolver.Corpus, previous links.Outgoing, scheme string) (links.Outgoing, UpdateStats) {
	next, rs := Resolve(doc, corpus, scheme)
	st := Apply(g, doc, previous, next)
	st.Dangling = rs.Dangling
	st.Malformed = rs.Malformed
	return next, st
}

// Apply moves doc's outgoing edges in g from previous to next.
func Apply(g *links.Graph, doc models.Document, previous, next links.Outgoing) UpdateStats {
	var st UpdateStats
	g.Touch(doc.Kind, doc.UUID)
	for ep := range previous {
		if _, ok := next[ep]; !ok {
			g.RemoveEdge(doc.UUID, ep.Kind, ep.ID)
			st.Removed++
		}
	}
	for ep := range next {
		if _, ok := previous[ep]; !ok {
			g.InsertEdge(doc.Kind, doc.UUID, ep.Kind, ep.ID)
			st.Added++
		}
	}
	return st
}
