package links

import (
	"math/rand/v2"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/weft/internal/models"
)

var (
	idA = uuid.MustParse("0b3f9d2a-8c41-4e6b-b1f7-5a2c9e7d4f10")
	idB = uuid.MustParse("6f1c2b7e-3a59-4c1e-9a47-2f0d6c1b8e01")
	idC = uuid.MustParse("9a0e4c55-1b2d-4f3a-8e6c-7d5b3a1f2e90")
)

func TestInsertEdge_RecordsBothSides(t *testing.T) {
	g := NewGraph()
	g.InsertEdge(models.KindNote, idA, models.KindChecklist, idB)
	g.InsertEdge(models.KindNote, idA, models.KindNote, idC)

	a, ok := g.LinksOf(idA)
	if !ok {
		t.Fatal("A has no entry")
	}
	if len(a.IsLinkedTo.Checklists) != 1 || a.IsLinkedTo.Checklists[0] != idB {
		t.Errorf("A linked checklists = %v", a.IsLinkedTo.Checklists)
	}
	if len(a.IsLinkedTo.Notes) != 1 || a.IsLinkedTo.Notes[0] != idC {
		t.Errorf("A linked notes = %v", a.IsLinkedTo.Notes)
	}

	b, _ := g.LinksOf(idB)
	if len(b.IsReferencedIn.Notes) != 1 || b.IsReferencedIn.Notes[0] != idA {
		t.Errorf("B referenced in = %v", b.IsReferencedIn.Notes)
	}
	if k, _ := g.KindOf(idB); k != models.KindChecklist {
		t.Errorf("B kind = %s", k)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestInsertEdge_SelfAndDuplicateIgnored(t *testing.T) {
	g := NewGraph()
	g.InsertEdge(models.KindNote, idA, models.KindNote, idA)
	if g.Has(idA) {
		t.Error("self-edge created an entry")
	}
	g.InsertEdge(models.KindNote, idA, models.KindNote, idB)
	g.InsertEdge(models.KindNote, idA, models.KindNote, idB)
	if n := g.EdgeCount(); n != 1 {
		t.Errorf("edges = %d, want 1", n)
	}
}

func TestRemoveEdge(t *testing.T) {
	g := NewGraph()
	g.InsertEdge(models.KindNote, idA, models.KindChecklist, idB)
	g.RemoveEdge(idA, models.KindChecklist, idB)
	g.RemoveEdge(idA, models.KindChecklist, idB)
	g.RemoveEdge(idC, models.KindNote, idA)

	if g.IsLinked(idA, idB) || g.IsLinked(idB, idA) {
		t.Error("edge still present")
	}
	if !g.Has(idA) || !g.Has(idB) {
		t.Error("entries should survive edge removal")
	}
	if err := g.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestRemoveDocument_DropsEdgesBothWays(t *testing.T) {
	g := NewGraph()
	g.InsertEdge(models.KindNote, idA, models.KindChecklist, idB)
	g.InsertEdge(models.KindChecklist, idB, models.KindNote, idC)
	g.InsertEdge(models.KindNote, idC, models.KindChecklist, idB)

	if !g.RemoveDocument(idB) {
		t.Fatal("B was present")
	}
	if g.RemoveDocument(idB) {
		t.Error("second removal reported present")
	}
	if g.EdgeCount() != 0 {
		t.Errorf("edges = %v", g.Edges())
	}
	a, _ := g.LinksOf(idA)
	if len(a.IsLinkedTo.Checklists) != 0 {
		t.Errorf("A still links to %v", a.IsLinkedTo.Checklists)
	}
	if err := g.Validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestIsLinkedAndDegree(t *testing.T) {
	g := NewGraph()
	g.InsertEdge(models.KindNote, idA, models.KindNote, idB)
	g.InsertEdge(models.KindNote, idB, models.KindNote, idA)
	g.InsertEdge(models.KindNote, idC, models.KindNote, idA)

	if !g.IsLinked(idA, idB) || !g.IsLinked(idB, idA) || !g.IsLinked(idA, idC) {
		t.Error("expected links in both directions")
	}
	if g.IsLinked(idB, idC) {
		t.Error("B and C are not linked")
	}
	if d := g.Degree(idA); d != 2 {
		t.Errorf("degree(A) = %d, want 2", d)
	}
	if d := g.Degree(uuid.New()); d != 0 {
		t.Errorf("degree(unknown) = %d", d)
	}
}

func TestLinksOf_UnknownIsEmpty(t *testing.T) {
	l, ok := NewGraph().LinksOf(idA)
	if ok {
		t.Error("unknown id reported present")
	}
	if l.IsLinkedTo.Notes == nil || l.IsReferencedIn.Checklists == nil {
		t.Error("empty view should carry non-nil lists")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	g := NewGraph()
	g.InsertEdge(models.KindNote, idA, models.KindNote, idB)
	c := g.Clone()
	if !c.Equal(g) {
		t.Fatal("clone differs")
	}
	c.InsertEdge(models.KindNote, idB, models.KindChecklist, idC)
	if g.Has(idC) || g.Equal(c) {
		t.Error("mutating the clone changed the original")
	}
}

func TestEdgesSorted(t *testing.T) {
	g := NewGraph()
	g.InsertEdge(models.KindNote, idC, models.KindNote, idA)
	g.InsertEdge(models.KindNote, idA, models.KindNote, idC)
	g.InsertEdge(models.KindNote, idA, models.KindChecklist, idB)

	edges := g.Edges()
	if len(edges) != 3 {
		t.Fatalf("edges = %v", edges)
	}
	if edges[0].From != idA || edges[0].To != idB || edges[1].To != idC || edges[2].From != idC {
		t.Errorf("unexpected order: %v", edges)
	}
	if edges[0].ToKind != models.KindChecklist {
		t.Errorf("edge kind = %s", edges[0].ToKind)
	}
}

func TestRandomMutationsKeepInvariants(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	ids := make([]uuid.UUID, 12)
	kinds := make([]models.Kind, len(ids))
	for i := range ids {
		ids[i] = uuid.New()
		kinds[i] = models.Kinds[i%2]
	}

	g := NewGraph()
	for step := 0; step < 2000; step++ {
		i, j := r.IntN(len(ids)), r.IntN(len(ids))
		switch r.IntN(10) {
		case 0:
			g.RemoveDocument(ids[i])
		case 1, 2, 3:
			g.RemoveEdge(ids[i], kinds[j], ids[j])
		default:
			g.InsertEdge(kinds[i], ids[i], kinds[j], ids[j])
		}
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("invariants broken: %v", err)
	}
	if !g.Clone().Equal(g) {
		t.Error("clone differs after random mutations")
	}
}
