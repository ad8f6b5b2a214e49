// Package parser splits document files into frontmatter and body and
// extracts internal link references from the body.
package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const frontmatterDelim = "---"

// Result holds the output of parsing a document file.
type Result struct {
	Frontmatter map[string]any
	UUID        uuid.UUID // uuid.Nil when absent or unparsable
	Title       string
	Body        string
}

// Parse extracts frontmatter, identity, title, and body from raw file bytes.
func Parse(data []byte) (*Result, error) {
	fm, body := splitFrontmatter(data)

	return &Result{
		Frontmatter: fm,
		UUID:        frontmatterUUID(fm),
		Title:       deriveTitle(fm, body),
		Body:        body,
	}, nil
}

// Render joins frontmatter and body back into file bytes.
// A nil or empty frontmatter map produces the body alone.
func Render(fm map[string]any, body string) ([]byte, error) {
	if len(fm) == 0 {
		return []byte(body), nil
	}
	block, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("parser: marshal frontmatter: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(frontmatterDelim + "\n")
	buf.Write(block)
	buf.WriteString(frontmatterDelim + "\n")
	buf.WriteString(body)
	return buf.Bytes(), nil
}

// WithUUID returns data with the uuid frontmatter key set to id, keeping
// every other key and the body untouched.
func WithUUID(data []byte, id uuid.UUID) ([]byte, error) {
	fm, body := splitFrontmatter(data)
	if fm == nil {
		fm = make(map[string]any, 1)
	}
	fm["uuid"] = id.String()
	return Render(fm, body)
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the body. Without valid frontmatter the whole input is body.
func splitFrontmatter(data []byte) (map[string]any, string) {
	trimmed := bytes.TrimLeft(data, "\n\r")
	if !bytes.HasPrefix(trimmed, []byte(frontmatterDelim)) {
		return nil, string(data)
	}

	rest := trimmed[len(frontmatterDelim):]
	idx := bytes.Index(rest, []byte("\n"+frontmatterDelim))
	if idx < 0 {
		return nil, string(data)
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(frontmatterDelim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]any
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		return nil, string(data)
	}
	return fm, body
}

func frontmatterUUID(fm map[string]any) uuid.UUID {
	raw, ok := fm["uuid"].(string)
	if !ok {
		return uuid.Nil
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil
	}
	return id
}

// deriveTitle returns the frontmatter "title" if present, otherwise the first
// H1 heading, otherwise empty string.
func deriveTitle(fm map[string]any, body string) string {
	if s, ok := fm["title"].(string); ok && s != "" {
		return s
	}
	for _, line := range strings.Split(body, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "# ") {
			return strings.TrimSpace(trimmed[2:])
		}
	}
	return ""
}
