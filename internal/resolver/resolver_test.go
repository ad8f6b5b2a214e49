package resolver

import (
	"testing"

	"github.com/google/uuid"

	"github.com/starford/weft/internal/models"
)

var (
	idPlan  = uuid.MustParse("0b3f9d2a-8c41-4e6b-b1f7-5a2c9e7d4f10")
	idList  = uuid.MustParse("6f1c2b7e-3a59-4c1e-9a47-2f0d6c1b8e01")
	idRoad  = uuid.MustParse("9a0e4c55-1b2d-4f3a-8e6c-7d5b3a1f2e90")
	idOther = uuid.MustParse("c2d4e6f8-0a1b-4c3d-9e5f-6a7b8c9d0e1f")
)

func doc(id uuid.UUID, kind models.Kind, owner, category, slug, title string) models.Document {
	return models.Document{
		UUID:     id,
		Kind:     kind,
		Location: models.Location{Owner: owner, Category: category, Slug: slug},
		Title:    title,
	}
}

func legacy(kind models.Kind, category, slug string) models.Reference {
	return models.Reference{Kind: kind, Target: models.ByLegacyPath{Category: category, Slug: slug}}
}

func TestResolveToUUID(t *testing.T) {
	c := NewFromDocuments([]models.Document{
		doc(idPlan, models.KindNote, "alice", "work/notes", "plan", "Plan"),
		doc(idList, models.KindChecklist, "alice", "home", "groceries", ""),
		doc(idRoad, models.KindNote, "alice", "Big Ideas", "road-map", "Road map"),
		doc(idOther, models.KindNote, "bob", "shared", "handbook", "Handbook"),
	})

	t.Run("uuid resolves to itself", func(t *testing.T) {
		got, ok := c.ResolveToUUID("alice", models.Reference{Kind: models.KindChecklist, Target: models.ByUUID{ID: idList}})
		if !ok || got.ID != idList || got.Kind != models.KindChecklist {
			t.Errorf("got %+v, %v", got, ok)
		}
	})

	t.Run("uuid kind comes from corpus", func(t *testing.T) {
		got, ok := c.ResolveToUUID("alice", models.Reference{Kind: models.KindNote, Target: models.ByUUID{ID: idList}})
		if !ok || got.Kind != models.KindChecklist {
			t.Errorf("got %+v, %v", got, ok)
		}
	})

	t.Run("unknown uuid dangles", func(t *testing.T) {
		if _, ok := c.ResolveToUUID("alice", models.Reference{Kind: models.KindNote, Target: models.ByUUID{ID: uuid.New()}}); ok {
			t.Error("expected dangling")
		}
	})

	t.Run("legacy exact", func(t *testing.T) {
		got, ok := c.ResolveToUUID("alice", legacy(models.KindNote, "work/notes", "plan"))
		if !ok || got.ID != idPlan {
			t.Errorf("got %+v, %v", got, ok)
		}
	})

	t.Run("legacy wrong kind dangles", func(t *testing.T) {
		if _, ok := c.ResolveToUUID("alice", legacy(models.KindChecklist, "work/notes", "plan")); ok {
			t.Error("expected dangling")
		}
	})

	t.Run("legacy slug normalized", func(t *testing.T) {
		got, ok := c.ResolveToUUID("alice", legacy(models.KindNote, "big-ideas", "Road Map"))
		if !ok || got.ID != idRoad {
			t.Errorf("got %+v, %v", got, ok)
		}
	})

	t.Run("legacy path is owner-relative", func(t *testing.T) {
		if got, ok := c.ResolveToUUID("alice", legacy(models.KindNote, "shared", "handbook")); ok {
			t.Errorf("alice's link resolved into bob's document: %+v", got)
		}
		got, ok := c.ResolveToUUID("bob", legacy(models.KindNote, "shared", "handbook"))
		if !ok || got.ID != idOther {
			t.Errorf("got %+v, %v", got, ok)
		}
	})

	t.Run("legacy missing dangles", func(t *testing.T) {
		if _, ok := c.ResolveToUUID("alice", legacy(models.KindNote, "work", "nope")); ok {
			t.Error("expected dangling")
		}
	})
}

func TestResolveToUUID_OtherOwnersDangle(t *testing.T) {
	c := NewFromDocuments([]models.Document{
		doc(idPlan, models.KindNote, "bob", "work", "plan", ""),
		doc(idOther, models.KindNote, "carol", "work", "plan", ""),
	})
	if _, ok := c.ResolveToUUID("alice", legacy(models.KindNote, "work", "plan")); ok {
		t.Error("path exists only under other owners; expected dangling")
	}
	got, ok := c.ResolveToUUID("carol", legacy(models.KindNote, "work", "plan"))
	if !ok || got.ID != idOther {
		t.Errorf("owner-relative lookup = %+v, %v", got, ok)
	}
}

func TestPut_RenameMovesLocation(t *testing.T) {
	c := NewFromDocuments([]models.Document{
		doc(idPlan, models.KindNote, "alice", "work/notes", "plan", "Plan"),
	})
	c.Put(doc(idPlan, models.KindNote, "alice", "archive/notes", "plan2", "Plan"))

	loc, ok := c.ResolveToLocation(idPlan)
	if !ok || loc.Category != "archive/notes" || loc.Slug != "plan2" {
		t.Errorf("location = %+v, %v", loc, ok)
	}
	if _, ok := c.ResolveToUUID("alice", legacy(models.KindNote, "work/notes", "plan")); ok {
		t.Error("old location should no longer resolve")
	}
	if got, ok := c.ResolveToUUID("alice", legacy(models.KindNote, "archive/notes", "plan2")); !ok || got.ID != idPlan {
		t.Errorf("new location = %+v, %v", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("len = %d, want 1", c.Len())
	}
}

func TestRemove(t *testing.T) {
	c := NewFromDocuments([]models.Document{
		doc(idPlan, models.KindNote, "alice", "work", "plan", ""),
	})
	c.Remove(idPlan)
	c.Remove(idPlan)
	if c.Contains(idPlan) {
		t.Error("removed document still known")
	}
	if _, ok := c.ResolveToLocation(idPlan); ok {
		t.Error("removed document still has a location")
	}
	if _, ok := c.ResolveToUUID("alice", legacy(models.KindNote, "work", "plan")); ok {
		t.Error("removed document still resolves")
	}
}

func TestBreadcrumbAndHref(t *testing.T) {
	c := NewFromDocuments([]models.Document{
		doc(idPlan, models.KindNote, "alice", "work/notes", "plan", "Quarterly plan"),
		doc(idList, models.KindChecklist, "alice", "", "groceries", ""),
	})

	crumbs, ok := c.Breadcrumb(idPlan)
	if !ok || len(crumbs) != 3 || crumbs[0] != "work" || crumbs[1] != "notes" || crumbs[2] != "Quarterly plan" {
		t.Errorf("breadcrumb = %v, %v", crumbs, ok)
	}
	crumbs, _ = c.Breadcrumb(idList)
	if len(crumbs) != 1 || crumbs[0] != "groceries" {
		t.Errorf("breadcrumb = %v", crumbs)
	}

	href, ok := c.Href(idPlan)
	if !ok || href != "/note/work/notes/plan" {
		t.Errorf("href = %q, %v", href, ok)
	}
	if _, ok := c.Href(uuid.New()); ok {
		t.Error("unknown id should have no href")
	}
}

func TestClone_Independent(t *testing.T) {
	c := NewFromDocuments([]models.Document{
		doc(idPlan, models.KindNote, "alice", "work", "plan", "Plan"),
	})
	cp := c.Clone()
	cp.Put(doc(idPlan, models.KindNote, "alice", "archive", "plan", "Plan"))
	cp.Put(doc(idList, models.KindChecklist, "alice", "home", "groceries", ""))

	if loc, _ := c.ResolveToLocation(idPlan); loc.Category != "work" {
		t.Errorf("original moved to %+v", loc)
	}
	if c.Contains(idList) {
		t.Error("document added to the clone leaked into the original")
	}
	if got, ok := cp.ResolveToUUID("alice", legacy(models.KindNote, "archive", "plan")); !ok || got.ID != idPlan {
		t.Errorf("clone lookup = %+v, %v", got, ok)
	}
	if _, ok := c.ResolveToUUID("alice", legacy(models.KindNote, "work", "plan")); !ok {
		t.Error("original lost its location index")
	}
}
