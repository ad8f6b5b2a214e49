package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/starford/weft/internal/apperr"
	"github.com/starford/weft/internal/models"
)

const ext = ".md"

// RelPath returns the corpus-relative file path for a document:
// {kind}s/{owner}/{category...}/{slug}.md
func RelPath(kind models.Kind, loc models.Location) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("storage: kind %q: %w", kind, apperr.ErrInvalidLocation)
	}
	if err := checkSegment(loc.Owner); err != nil {
		return "", fmt.Errorf("storage: owner: %w", err)
	}
	if err := checkSegment(loc.Slug); err != nil {
		return "", fmt.Errorf("storage: slug: %w", err)
	}
	parts := []string{kind.Dir(), loc.Owner}
	if c := strings.Trim(loc.Category, "/"); c != "" {
		for _, seg := range strings.Split(c, "/") {
			if err := checkSegment(seg); err != nil {
				return "", fmt.Errorf("storage: category: %w", err)
			}
			parts = append(parts, seg)
		}
	}
	parts = append(parts, loc.Slug+ext)
	return filepath.Join(parts...), nil
}

// ParsePath is the inverse of RelPath.
func ParsePath(rel string) (models.Kind, models.Location, error) {
	segs := strings.Split(filepath.ToSlash(filepath.Clean(rel)), "/")
	if len(segs) < 3 || !strings.HasSuffix(segs[len(segs)-1], ext) {
		return "", models.Location{}, fmt.Errorf("storage: %s: %w", rel, apperr.ErrInvalidLocation)
	}
	var kind models.Kind
	for _, k := range models.Kinds {
		if segs[0] == k.Dir() {
			kind = k
		}
	}
	if kind == "" {
		return "", models.Location{}, fmt.Errorf("storage: %s: %w", rel, apperr.ErrInvalidLocation)
	}
	loc := models.Location{
		Owner:    segs[1],
		Category: path.Join(segs[2 : len(segs)-1]...),
		Slug:     strings.TrimSuffix(segs[len(segs)-1], ext),
	}
	if loc.Slug == "" {
		return "", models.Location{}, fmt.Errorf("storage: %s: empty slug: %w", rel, apperr.ErrInvalidLocation)
	}
	return kind, loc, nil
}

func checkSegment(s string) error {
	switch {
	case s == "", s == ".", s == "..":
		return fmt.Errorf("%q: %w", s, apperr.ErrInvalidLocation)
	case strings.ContainsAny(s, `/\`), strings.HasPrefix(s, "."):
		return fmt.Errorf("%q: %w", s, apperr.ErrInvalidLocation)
	}
	return nil
}
