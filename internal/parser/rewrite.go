package parser

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/starford/weft/internal/models"
)

// legacyDestRe matches legacy destinations in Markdown links and
// href attributes. Group 1 is the destination.
var legacyDestRe = regexp.MustCompile(`(?i)(?:\]\(\s*|href\s*=\s*["'])(/(?:note|checklist)/[^)\s"']+)`)

// RewriteLegacy replaces legacy-form destinations in body for which match
// returns an identity with the equivalent stable marker. It returns the new
// body and the number of destinations rewritten. Code is left alone.
func RewriteLegacy(body, scheme string, match func(models.Reference) (uuid.UUID, bool)) (string, int) {
	code := codeRanges(body)
	var b strings.Builder
	last, n := 0, 0

	for _, m := range legacyDestRe.FindAllStringSubmatchIndex(body, -1) {
		start, end := m[2], m[3]
		if inRanges(code, start) {
			continue
		}
		ref, recognised, ok := parseLegacy(body[start:end])
		if !recognised || !ok {
			continue
		}
		id, hit := match(ref)
		if !hit {
			continue
		}
		b.WriteString(body[last:start])
		b.WriteString(StableMarker(scheme, ref.Kind, id))
		last = end
		n++
	}
	if n == 0 {
		return body, 0
	}
	b.WriteString(body[last:])
	return b.String(), n
}

// RewriteDocument applies RewriteLegacy to the body of a document file,
// leaving the frontmatter bytes untouched.
func RewriteDocument(data []byte, scheme string, match func(models.Reference) (uuid.UUID, bool)) ([]byte, int) {
	_, body := splitFrontmatter(data)
	head := data[:len(data)-len(body)]
	out, n := RewriteLegacy(body, scheme, match)
	if n == 0 {
		return data, 0
	}
	return append(append([]byte{}, head...), out...), n
}

type byteRange struct{ start, stop int }

// codeRanges returns the byte ranges of code blocks and code spans.
func codeRanges(body string) []byteRange {
	src := []byte(body)
	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var out []byteRange
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch node := n.(type) {
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			lines := node.Lines()
			for i := 0; i < lines.Len(); i++ {
				seg := lines.At(i)
				out = append(out, byteRange{seg.Start, seg.Stop})
			}
			return ast.WalkSkipChildren, nil
		case *ast.CodeSpan:
			for c := node.FirstChild(); c != nil; c = c.NextSibling() {
				if t, ok := c.(*ast.Text); ok {
					out = append(out, byteRange{t.Segment.Start, t.Segment.Stop})
				}
			}
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})
	return out
}

func inRanges(rs []byteRange, off int) bool {
	for _, r := range rs {
		if off >= r.start && off < r.stop {
			return true
		}
	}
	return false
}
