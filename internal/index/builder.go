package index

import (
	"context"
	"fmt"

	"github.com/starford/weft/internal/links"
	"github.com/starford/weft/internal/models"
	"github.com/starford/weft/internal/parser"
	"github.com/starford/weft/internal/resolver"
)

// BuildStats reports what a full rebuild observed.
type BuildStats struct {
	Documents     int `json:"documents"`
	Edges         int `json:"edges"`
	Dangling      int `json:"dangling"`
	Malformed     int `json:"malformed"`
	RemovedStale  int `json:"removed_stale"`
	PreviousEdges int `json:"previous_edges"`
}

// ResolveStats counts references that produced no edge.
type ResolveStats struct {
	Dangling  int
	Malformed int
}

// Build produces a fresh graph from the complete document set. The result
// does not depend on the order of docs. ctx is checked between documents;
// a cancelled build returns an error and no graph.
func Build(ctx context.Context, docs []models.Document, scheme string) (*links.Graph, BuildStats, error) {
	return build(ctx, docs, resolver.NewFromDocuments(docs), scheme)
}

func build(ctx context.Context, docs []models.Document, corpus *resolver.Corpus, scheme string) (*links.Graph, BuildStats, error) {
	g := links.NewGraph()
	st := BuildStats{Documents: len(docs)}

	for _, d := range docs {
		if err := ctx.Err(); err != nil {
			return nil, st, fmt.Errorf("index: build: %w", err)
		}
		g.Touch(d.Kind, d.UUID)
		out, rs := Resolve(d, corpus, scheme)
		st.Dangling += rs.Dangling
		st.Malformed += rs.Malformed
		for ep := range out {
			g.InsertEdge(d.Kind, d.UUID, ep.Kind, ep.ID)
		}
	}
	st.Edges = g.EdgeCount()
	return g, st, nil
}

// Resolve extracts doc's references and resolves them against corpus.
// Dangling references and self-references are dropped.
func Resolve(doc models.Document, corpus *resolver.Corpus, scheme string) (links.Outgoing, ResolveStats) {
	res := parser.References([]byte(doc.Content), scheme)
	out := make(links.Outgoing, len(res.References))
	rs := ResolveStats{Malformed: res.Malformed}

	for _, ref := range res.References {
		r, ok := corpus.ResolveToUUID(doc.Location.Owner, ref)
		if !ok {
			rs.Dangling++
			continue
		}
		if r.ID == doc.UUID {
			continue
		}
		out[links.Endpoint{ID: r.ID, Kind: r.Kind}] = struct{}{}
	}
	return out, rs
}

// staleEdges counts edges of prev that are absent from next.
func staleEdges(prev, next *links.Graph) int {
	n := 0
	for _, e := range prev.Edges() {
		if !next.HasEdge(e.From, e.To) {
			n++
		}
	}
	return n
}
