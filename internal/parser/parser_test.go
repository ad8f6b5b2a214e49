package parser

import (
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/weft/internal/models"
)

const (
	idB = "6f1c2b7e-3a59-4c1e-9a47-2f0d6c1b8e01"
	idC = "0b3f9d2a-8c41-4e6b-b1f7-5a2c9e7d4f10"
)

func TestParse_FrontmatterAndBody(t *testing.T) {
	input := []byte("---\ntitle: Hello\nuuid: " + idB + "\n---\n# Hello\nBody text.\n")
	r, err := Parse(input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Title != "Hello" {
		t.Errorf("title = %q, want %q", r.Title, "Hello")
	}
	if r.UUID != uuid.MustParse(idB) {
		t.Errorf("uuid = %s, want %s", r.UUID, idB)
	}
	if r.Body != "# Hello\nBody text.\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestParse_NoFrontmatter(t *testing.T) {
	r, err := Parse([]byte("# Just a heading\nSome text.\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter, got %v", r.Frontmatter)
	}
	if r.UUID != uuid.Nil {
		t.Errorf("uuid = %s, want nil", r.UUID)
	}
	if r.Title != "Just a heading" {
		t.Errorf("title = %q, want %q", r.Title, "Just a heading")
	}
}

func TestParse_InvalidYAMLFallback(t *testing.T) {
	r, err := Parse([]byte("---\n: invalid: yaml: {{{\n---\nBody\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Frontmatter != nil {
		t.Errorf("expected nil frontmatter on invalid YAML")
	}
}

func TestWithUUID_PreservesFrontmatterAndBody(t *testing.T) {
	id := uuid.MustParse(idC)
	out, err := WithUUID([]byte("---\ntitle: Plan\n---\nbody here\n"), id)
	if err != nil {
		t.Fatalf("WithUUID: %v", err)
	}
	r, _ := Parse(out)
	if r.UUID != id {
		t.Errorf("uuid = %s, want %s", r.UUID, id)
	}
	if r.Title != "Plan" {
		t.Errorf("title = %q, want Plan", r.Title)
	}
	if r.Body != "body here\n" {
		t.Errorf("body = %q", r.Body)
	}
}

func TestExtract_StableAndLegacy(t *testing.T) {
	body := "See [B](weft://checklist:" + idB + ") and [plan](/note/work/notes/plan).\n" +
		"Again [B twice](weft://checklist:" + idB + ").\n"
	res := Extract(body, DefaultScheme)

	if res.Malformed != 0 {
		t.Errorf("malformed = %d, want 0", res.Malformed)
	}
	want := []models.Reference{
		{Kind: models.KindChecklist, Target: models.ByUUID{ID: uuid.MustParse(idB)}},
		{Kind: models.KindNote, Target: models.ByLegacyPath{Category: "work/notes", Slug: "plan"}},
	}
	if len(res.References) != len(want) {
		t.Fatalf("refs = %v, want %v", res.References, want)
	}
	for i := range want {
		if res.References[i] != want[i] {
			t.Errorf("refs[%d] = %v, want %v", i, res.References[i], want[i])
		}
	}
}

func TestExtract_IgnoresPlainLinksAndProse(t *testing.T) {
	body := "Just prose, a [site](https://example.com), an ![img](/attachments/a.png) and /note/not-a-link.\n"
	res := Extract(body, DefaultScheme)
	if len(res.References) != 0 || res.Malformed != 0 {
		t.Errorf("got %+v, want nothing", res)
	}
}

func TestExtract_MalformedMarkersSkipped(t *testing.T) {
	cases := []string{
		"[x](weft://note:)",
		"[x](weft://note:not-a-uuid)",
		"[x](weft://" + idB + ")",
		"[x](weft://widget:" + idB + ")",
		"[x](/note/)",
		"[x](/checklist/work/)",
	}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			res := Extract(c+" and [ok](/note/home/ok)\n", DefaultScheme)
			if res.Malformed != 1 {
				t.Errorf("malformed = %d, want 1", res.Malformed)
			}
			if len(res.References) != 1 {
				t.Errorf("refs = %v, want the one valid marker", res.References)
			}
		})
	}
}

func TestExtract_SkipsCode(t *testing.T) {
	body := "```\n[x](weft://note:" + idB + ")\n```\n\n`[y](/note/a/b)`\n"
	res := Extract(body, DefaultScheme)
	if len(res.References) != 0 {
		t.Errorf("refs = %v, want none inside code", res.References)
	}
}

func TestExtract_AutolinkAndHTML(t *testing.T) {
	body := "<weft://note:" + idB + ">\n\n<p><a href=\"/checklist/home/groceries\">list</a></p>\n"
	res := Extract(body, DefaultScheme)
	if len(res.References) != 2 {
		t.Fatalf("refs = %v, want 2", res.References)
	}
	if res.References[0].Kind != models.KindChecklist {
		t.Errorf("first ref = %v, want checklist first", res.References[0])
	}
}

func TestExtract_LegacyUnescapesSegments(t *testing.T) {
	res := Extract("[x](/note/My%20Stuff/road%20map?x=1#top)\n", DefaultScheme)
	if len(res.References) != 1 {
		t.Fatalf("refs = %v", res.References)
	}
	got := res.References[0].Target.(models.ByLegacyPath)
	if got.Category != "My Stuff" || got.Slug != "road map" {
		t.Errorf("target = %+v", got)
	}
}

func TestExtract_CustomScheme(t *testing.T) {
	body := "[a](jot://note:" + idB + ") [b](weft://note:" + idC + ")"
	res := Extract(body, "jot")
	if len(res.References) != 1 {
		t.Fatalf("refs = %v, want only the jot marker", res.References)
	}
	if res.References[0].Target != (models.ByUUID{ID: uuid.MustParse(idB)}) {
		t.Errorf("target = %v", res.References[0].Target)
	}
}

func TestReferences_SkipsFrontmatter(t *testing.T) {
	data := []byte("---\ntitle: \"[x](/note/a/b)\"\n---\n[y](/note/c/d)\n")
	res := References(data, DefaultScheme)
	if len(res.References) != 1 {
		t.Fatalf("refs = %v", res.References)
	}
	if res.References[0].Target.(models.ByLegacyPath).Slug != "d" {
		t.Errorf("ref = %v", res.References[0])
	}
}

func TestRewriteLegacy(t *testing.T) {
	id := uuid.MustParse(idC)
	body := "[plan](/note/work/notes/plan) and [other](/note/work/other)\n\n```\n[plan](/note/work/notes/plan)\n```\n"
	out, n := RewriteLegacy(body, DefaultScheme, func(r models.Reference) (uuid.UUID, bool) {
		lp := r.Target.(models.ByLegacyPath)
		return id, lp.Category == "work/notes" && lp.Slug == "plan"
	})
	if n != 1 {
		t.Fatalf("rewritten = %d, want 1", n)
	}
	if !strings.Contains(out, "[plan](weft://note:"+idC+")") {
		t.Errorf("stable marker missing: %q", out)
	}
	if !strings.Contains(out, "[other](/note/work/other)") {
		t.Errorf("unrelated link changed: %q", out)
	}
	if !strings.Contains(out, "```\n[plan](/note/work/notes/plan)\n```") {
		t.Errorf("code block rewritten: %q", out)
	}
}

func TestDeriveTitle_FrontmatterOverH1(t *testing.T) {
	title := deriveTitle(map[string]any{"title": "FM Title"}, "# H1 Title\ntext")
	if title != "FM Title" {
		t.Errorf("title = %q, want %q", title, "FM Title")
	}
}

func TestRewriteDocument_KeepsFrontmatterBytes(t *testing.T) {
	id := uuid.MustParse(idC)
	data := []byte("---\ntitle:   \"Spaced\"\nuuid: " + idB + "\n---\n\nSee [plan](/note/work/plan).\n")
	out, n := RewriteDocument(data, DefaultScheme, func(models.Reference) (uuid.UUID, bool) { return id, true })
	if n != 1 {
		t.Fatalf("rewritten = %d, want 1", n)
	}
	want := "---\ntitle:   \"Spaced\"\nuuid: " + idB + "\n---\n\nSee [plan](weft://note:" + idC + ").\n"
	if string(out) != want {
		t.Errorf("got %q\nwant %q", out, want)
	}
}
