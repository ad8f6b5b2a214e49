package parser

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/weft/internal/models"
)

// DefaultScheme is the URI scheme of stable link markers: weft://note:<uuid>.
const DefaultScheme = "weft"

var hrefRe = regexp.MustCompile(`(?i)href\s*=\s*["']([^"']+)["']`)

// ExtractResult is the set of references found in one document body.
type ExtractResult struct {
	// References is deduplicated and sorted.
	References []models.Reference
	// Malformed counts markers that looked like internal links but could
	// not be read (unknown kind, bad uuid, empty slug). They are skipped.
	Malformed int
}

// References parses a whole document file and extracts the references in
// its body. Frontmatter is never scanned.
func References(data []byte, scheme string) ExtractResult {
	res, _ := Parse(data)
	return Extract(res.Body, scheme)
}

// Extract returns the internal link references in a Markdown body.
//
// Link destinations, autolinks and href attributes inside raw HTML are
// inspected. Code spans and code blocks are skipped.
func Extract(body, scheme string) ExtractResult {
	if scheme == "" {
		scheme = DefaultScheme
	}
	src := []byte(body)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	c := &collector{
		prefix: strings.ToLower(scheme) + "://",
		seen:   make(map[models.Reference]struct{}),
	}

	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock, *ast.CodeSpan:
			return ast.WalkSkipChildren, nil
		case *ast.Link:
			c.add(string(node.Destination))
		case *ast.AutoLink:
			if node.AutoLinkType == ast.AutoLinkURL {
				c.add(string(node.URL(src)))
			}
		case *ast.RawHTML:
			segs := node.Segments
			for i := 0; i < segs.Len(); i++ {
				seg := segs.At(i)
				c.addHTML(string(seg.Value(src)))
			}
		case *ast.HTMLBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				line := lines.At(i)
				c.addHTML(string(line.Value(src)))
			}
		}
		return ast.WalkContinue, nil
	})

	return c.result()
}

type collector struct {
	prefix    string
	seen      map[models.Reference]struct{}
	malformed int
}

func (c *collector) add(dest string) {
	ref, recognised, ok := parseMarker(dest, c.prefix)
	if !recognised {
		return
	}
	if !ok {
		c.malformed++
		return
	}
	c.seen[ref] = struct{}{}
}

func (c *collector) addHTML(fragment string) {
	for _, m := range hrefRe.FindAllStringSubmatch(fragment, -1) {
		c.add(m[1])
	}
}

func (c *collector) result() ExtractResult {
	refs := make([]models.Reference, 0, len(c.seen))
	for r := range c.seen {
		refs = append(refs, r)
	}
	slices.SortFunc(refs, compareReferences)
	return ExtractResult{References: refs, Malformed: c.malformed}
}

// parseMarker classifies a link destination. recognised is false for
// ordinary links; ok is false for internal markers that are malformed.
func parseMarker(dest, prefix string) (ref models.Reference, recognised, ok bool) {
	dest = strings.TrimSpace(dest)
	if dest == "" {
		return models.Reference{}, false, false
	}
	if strings.HasPrefix(strings.ToLower(dest), prefix) {
		ref, ok = parseStable(dest[len(prefix):])
		return ref, true, ok
	}
	if strings.HasPrefix(dest, "/") && !strings.HasPrefix(dest, "//") {
		return parseLegacy(dest)
	}
	return models.Reference{}, false, false
}

// parseStable reads "{kind}:{uuid}".
func parseStable(rest string) (models.Reference, bool) {
	rest = stripQuery(rest)
	kindPart, idPart, found := strings.Cut(rest, ":")
	if !found {
		return models.Reference{}, false
	}
	kind, err := models.ParseKind(kindPart)
	if err != nil {
		return models.Reference{}, false
	}
	id, err := uuid.Parse(strings.TrimSpace(idPart))
	if err != nil || id == uuid.Nil {
		return models.Reference{}, false
	}
	return models.Reference{Kind: kind, Target: models.ByUUID{ID: id}}, true
}

// parseLegacy reads "/{kind}/{category...}/{slug}". Paths under any other
// top-level segment are ordinary links.
func parseLegacy(dest string) (ref models.Reference, recognised, ok bool) {
	p := stripQuery(dest)
	segs := strings.Split(strings.TrimPrefix(p, "/"), "/")
	kind, err := models.ParseKind(segs[0])
	if err != nil {
		return models.Reference{}, false, false
	}
	rest := segs[1:]
	if len(rest) == 0 {
		return models.Reference{}, true, false
	}
	for i, s := range rest {
		u, err := url.PathUnescape(s)
		if err != nil {
			return models.Reference{}, true, false
		}
		u = strings.TrimSpace(u)
		if u == "" {
			return models.Reference{}, true, false
		}
		rest[i] = u
	}
	slug := strings.TrimSuffix(rest[len(rest)-1], ".md")
	if slug == "" {
		return models.Reference{}, true, false
	}
	return models.Reference{
		Kind: kind,
		Target: models.ByLegacyPath{
			Category: strings.Join(rest[:len(rest)-1], "/"),
			Slug:     slug,
		},
	}, true, true
}

func stripQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}
	return s
}

func compareReferences(a, b models.Reference) int {
	if c := strings.Compare(string(a.Kind), string(b.Kind)); c != 0 {
		return c
	}
	return strings.Compare(targetKey(a.Target), targetKey(b.Target))
}

func targetKey(t models.Target) string {
	switch v := t.(type) {
	case models.ByUUID:
		return "u:" + v.String()
	case models.ByLegacyPath:
		return "p:" + v.String()
	}
	return ""
}

// StableMarker renders the stable link destination for a document.
func StableMarker(scheme string, kind models.Kind, id uuid.UUID) string {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return scheme + "://" + string(kind) + ":" + id.String()
}
