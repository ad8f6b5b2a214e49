// Package docservice writes documents through the storage provider and
// keeps the link index informed of every change.
package docservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/starford/weft/internal/apperr"
	"github.com/starford/weft/internal/checksum"
	"github.com/starford/weft/internal/index"
	"github.com/starford/weft/internal/models"
	"github.com/starford/weft/internal/parser"
	"github.com/starford/weft/internal/storage"
)

// MoveResult reports what a move touched.
type MoveResult struct {
	Document  models.Document `json:"document"`
	Referrers int             `json:"referrers"`
	Rewritten int             `json:"rewritten"`
}

// Service coordinates storage writes and index notifications.
type Service struct {
	store  storage.Provider
	linker *index.Linker
	logger *slog.Logger
}

// NewService creates a new document service.
func NewService(store storage.Provider, linker *index.Linker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, linker: linker, logger: logger}
}

// Get returns the document with the given identity.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (models.Document, error) {
	return s.store.Locate(ctx, id)
}

// Create writes a new document at loc and indexes it. The content keeps its
// uuid unless it has none or the uuid already belongs to another document.
func (s *Service) Create(_ context.Context, kind models.Kind, loc models.Location, content []byte) (models.Document, error) {
	if _, err := s.store.Lookup(kind, loc); err == nil {
		return models.Document{}, apperr.ErrAlreadyExists
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return models.Document{}, err
	}

	res, _ := parser.Parse(content)
	if _, taken := s.linker.Resolve(res.UUID); res.UUID == uuid.Nil || taken {
		var err error
		if content, err = parser.WithUUID(content, uuid.New()); err != nil {
			return models.Document{}, err
		}
	}

	doc, err := s.store.Write(kind, loc, content)
	if err != nil {
		return models.Document{}, err
	}
	s.linker.DocumentSaved(doc)
	return doc, nil
}

// Update replaces a document's content with optimistic concurrency. An
// empty ifMatch skips the check.
func (s *Service) Update(ctx context.Context, id uuid.UUID, content []byte, ifMatch string) (models.Document, error) {
	cur, err := s.store.Locate(ctx, id)
	if err != nil {
		return models.Document{}, err
	}
	existing, err := s.store.Read(cur.Kind, cur.Location)
	if err != nil {
		return models.Document{}, err
	}
	if ifMatch != "" && checksum.Changed(ifMatch, existing) {
		return models.Document{}, apperr.ErrConflict
	}

	if res, _ := parser.Parse(content); res.UUID != id {
		if content, err = parser.WithUUID(content, id); err != nil {
			return models.Document{}, err
		}
	}

	doc, err := s.store.Write(cur.Kind, cur.Location, content)
	if err != nil {
		return models.Document{}, err
	}
	s.linker.DocumentSaved(doc)
	return doc, nil
}

// Delete removes a document from storage and from the index.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	cur, err := s.store.Locate(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(cur.Kind, cur.Location); err != nil {
		return err
	}
	s.linker.DocumentDeleted(id)
	return nil
}

// Move gives a document a new location. Legacy-form references to it in
// the documents that link to it are rewritten to stable markers first, so
// their edges outlive the old path.
func (s *Service) Move(ctx context.Context, id uuid.UUID, to models.Location) (MoveResult, error) {
	cur, err := s.store.Locate(ctx, id)
	if err != nil {
		return MoveResult{}, err
	}
	if cur.Location == to {
		return MoveResult{Document: cur}, nil
	}
	if _, err := s.store.Lookup(cur.Kind, to); err == nil {
		return MoveResult{}, apperr.ErrAlreadyExists
	} else if !errors.Is(err, apperr.ErrNotFound) {
		return MoveResult{}, err
	}

	in := s.linker.LinksOf(id).IsReferencedIn
	referrers := append(append([]uuid.UUID{}, in.Notes...), in.Checklists...)

	var rewritten []models.Document
	total := 0
	for _, rid := range referrers {
		if err := ctx.Err(); err != nil {
			return MoveResult{}, err
		}
		doc, n, err := s.rewriteReferrer(rid, id)
		if err != nil {
			return MoveResult{}, fmt.Errorf("docservice: rewrite %s: %w", rid, err)
		}
		if n > 0 {
			rewritten = append(rewritten, doc)
			total += n
		}
	}

	moved, err := s.store.Move(cur.Kind, cur.Location, to)
	if err != nil {
		return MoveResult{}, err
	}
	s.linker.DocumentSaved(moved)
	for _, doc := range rewritten {
		s.linker.DocumentSaved(doc)
	}

	s.logger.Info("docservice: moved",
		slog.String("uuid", id.String()),
		slog.String("from", cur.Location.String()),
		slog.String("to", to.String()),
		slog.Int("referrers", len(referrers)),
		slog.Int("rewritten", total))
	return MoveResult{Document: moved, Referrers: len(referrers), Rewritten: total}, nil
}

// rewriteReferrer turns legacy references from rid to target into stable
// markers and writes the result back.
func (s *Service) rewriteReferrer(rid, target uuid.UUID) (models.Document, int, error) {
	ref, ok := s.linker.Resolve(rid)
	if !ok {
		return models.Document{}, 0, nil
	}
	data, err := s.store.Read(ref.Kind, ref.Location)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return models.Document{}, 0, nil
		}
		return models.Document{}, 0, err
	}
	out, n := parser.RewriteDocument(data, s.linker.Scheme(), func(r models.Reference) (uuid.UUID, bool) {
		if _, legacy := r.Target.(models.ByLegacyPath); !legacy {
			return uuid.Nil, false
		}
		res, ok := s.linker.ResolveReference(ref.Location.Owner, r)
		return target, ok && res.ID == target
	})
	if n == 0 {
		return models.Document{}, 0, nil
	}
	doc, err := s.store.Write(ref.Kind, ref.Location, out)
	if err != nil {
		return models.Document{}, 0, err
	}
	return doc, n, nil
}
