package docservice

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/weft/internal/apperr"
	"github.com/starford/weft/internal/checksum"
	"github.com/starford/weft/internal/index"
	"github.com/starford/weft/internal/models"
	"github.com/starford/weft/internal/parser"
	"github.com/starford/weft/internal/storage"
	"github.com/starford/weft/internal/testutil"
)

var (
	idA = uuid.MustParse("3d2c1b0a-9f8e-4d7c-8b6a-5f4e3d2c1b0a")
	idB = uuid.MustParse("7e6d5c4b-3a29-4180-9f7e-6d5c4b3a2918")
)

func setup(t *testing.T) (*Service, *index.Linker, *storage.FS) {
	t.Helper()
	l, store := testutil.TestLinker(t)
	return NewService(store, l, testutil.Logger()), l, store
}

func TestCreate_AssignsUUIDAndIndexes(t *testing.T) {
	svc, l, store := setup(t)
	ctx := context.Background()
	b := testutil.WriteDoc(t, store, idB, models.KindChecklist, models.Location{Owner: "alice", Slug: "groceries"}, "- milk\n")
	l.DocumentSaved(b)

	doc, err := svc.Create(ctx, models.KindNote, models.Location{Owner: "alice", Category: "inbox", Slug: "today"},
		[]byte("# Today\n"+testutil.Link(models.KindChecklist, idB)+"\n"))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if doc.UUID == uuid.Nil {
		t.Fatal("created document has no uuid")
	}
	if doc.Title != "Today" {
		t.Errorf("title = %q", doc.Title)
	}
	if !l.IsLinked(doc.UUID, idB) {
		t.Error("created document not indexed")
	}
}

func TestCreate_Duplicate(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()
	loc := models.Location{Owner: "alice", Slug: "dup"}
	if _, err := svc.Create(ctx, models.KindNote, loc, []byte("one")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Create(ctx, models.KindNote, loc, []byte("two")); !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}

func TestCreate_TakenUUIDReplaced(t *testing.T) {
	svc, l, store := setup(t)
	a := testutil.WriteDoc(t, store, idA, models.KindNote, models.Location{Owner: "alice", Slug: "a"}, "")
	l.DocumentSaved(a)

	data, _ := parser.WithUUID([]byte("copy"), idA)
	doc, err := svc.Create(context.Background(), models.KindNote, models.Location{Owner: "alice", Slug: "copy"}, data)
	if err != nil {
		t.Fatal(err)
	}
	if doc.UUID == idA {
		t.Error("create reused a uuid that already belongs to another document")
	}
}

func TestUpdate_IfMatch(t *testing.T) {
	svc, l, store := setup(t)
	ctx := context.Background()
	a := testutil.WriteDoc(t, store, idA, models.KindNote, models.Location{Owner: "alice", Slug: "a"}, "v1")
	b := testutil.WriteDoc(t, store, idB, models.KindNote, models.Location{Owner: "alice", Slug: "b"}, "")
	l.DocumentSaved(a)
	l.DocumentSaved(b)

	if _, err := svc.Update(ctx, idA, []byte("v2"), "stale"); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("err = %v, want ErrConflict", err)
	}

	doc, err := svc.Update(ctx, idA, []byte("v2 "+testutil.Link(models.KindNote, idB)), a.Checksum)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if doc.UUID != idA {
		t.Errorf("uuid changed to %s", doc.UUID)
	}
	if !l.IsLinked(idA, idB) {
		t.Error("update not indexed")
	}
	raw, _ := store.Read(models.KindNote, a.Location)
	if doc.Checksum != checksum.Sum(raw) {
		t.Error("returned checksum does not match stored content")
	}
}

func TestUpdate_NotFound(t *testing.T) {
	svc, _, _ := setup(t)
	if _, err := svc.Update(context.Background(), uuid.New(), []byte("x"), ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestDelete_RemovesEdges(t *testing.T) {
	svc, l, store := setup(t)
	testutil.WriteDoc(t, store, idA, models.KindNote, models.Location{Owner: "alice", Slug: "a"}, testutil.Link(models.KindNote, idB))
	testutil.WriteDoc(t, store, idB, models.KindNote, models.Location{Owner: "alice", Slug: "b"}, "")
	testutil.Rebuild(t, l)

	if err := svc.Delete(context.Background(), idB); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if l.IsLinked(idA, idB) {
		t.Error("edge to deleted document survived")
	}
	if _, err := svc.Get(context.Background(), idB); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("Get after delete: %v", err)
	}
}

func TestMove_RewritesLegacyReferrers(t *testing.T) {
	svc, l, store := setup(t)
	ctx := context.Background()
	testutil.WriteDoc(t, store, idA, models.KindNote, models.Location{Owner: "alice", Slug: "a"},
		"See [plan](/note/work/notes/plan) and `[code](/note/work/notes/plan)`.\n")
	testutil.WriteDoc(t, store, idB, models.KindNote, models.Location{Owner: "alice", Category: "work/notes", Slug: "plan"}, "# Plan\n")
	testutil.Rebuild(t, l)

	res, err := svc.Move(ctx, idB, models.Location{Owner: "alice", Category: "archive/notes", Slug: "plan2"})
	if err != nil {
		t.Fatalf("Move: %v", err)
	}
	if res.Referrers != 1 || res.Rewritten != 1 {
		t.Errorf("result = %+v", res)
	}
	if !l.IsLinked(idA, idB) {
		t.Error("edge lost after move")
	}

	raw, _ := store.Read(models.KindNote, models.Location{Owner: "alice", Slug: "a"})
	if !strings.Contains(string(raw), parser.StableMarker(parser.DefaultScheme, models.KindNote, idB)) {
		t.Errorf("referrer not rewritten:\n%s", raw)
	}
	if !strings.Contains(string(raw), "`[code](/note/work/notes/plan)`") {
		t.Error("code span was rewritten")
	}

	testutil.Rebuild(t, l)
	if !l.IsLinked(idA, idB) {
		t.Error("edge lost after move and rebuild")
	}
	if r, ok := l.Resolve(idB); !ok || r.Href != "/note/archive/notes/plan2" {
		t.Errorf("resolve = %+v, %v", r, ok)
	}
}

func TestMove_DestinationTaken(t *testing.T) {
	svc, l, store := setup(t)
	testutil.WriteDoc(t, store, idA, models.KindNote, models.Location{Owner: "alice", Slug: "a"}, "")
	testutil.WriteDoc(t, store, idB, models.KindNote, models.Location{Owner: "alice", Slug: "b"}, "")
	testutil.Rebuild(t, l)

	_, err := svc.Move(context.Background(), idA, models.Location{Owner: "alice", Slug: "b"})
	if !errors.Is(err, apperr.ErrAlreadyExists) {
		t.Errorf("err = %v, want ErrAlreadyExists", err)
	}
}
