package index

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/starford/weft/internal/links"
	"github.com/starford/weft/internal/models"
)

const metaSavedAt = "saved_at"

// Snapshot is the persisted form of the index: where every document lives
// and which edges connect them.
type Snapshot struct {
	Documents []models.Document
	Edges     []links.Edge
	SavedAt   time.Time // zero when unknown
}

// Save replaces the stored snapshot with s in one transaction.
func (db *DB) Save(ctx context.Context, s Snapshot) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	for _, q := range []string{`DELETE FROM edges`, `DELETE FROM documents`, `DELETE FROM meta`} {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("index: clear snapshot: %w", err)
		}
	}

	docStmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO documents (uuid, kind, owner, category, slug, title)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare document insert: %w", err)
	}
	defer docStmt.Close()
	for _, d := range s.Documents {
		if _, err := docStmt.ExecContext(ctx, d.UUID.String(), string(d.Kind),
			d.Location.Owner, d.Location.Category, d.Location.Slug, d.Title); err != nil {
			return fmt.Errorf("index: insert document: %w", err)
		}
	}

	edgeStmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO edges (source, target) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("index: prepare edge insert: %w", err)
	}
	defer edgeStmt.Close()
	for _, e := range s.Edges {
		if _, err := edgeStmt.ExecContext(ctx, e.From.String(), e.To.String()); err != nil {
			return fmt.Errorf("index: insert edge: %w", err)
		}
	}

	if !s.SavedAt.IsZero() {
		if _, err := tx.ExecContext(ctx, `INSERT INTO meta (key, value) VALUES (?, ?)`,
			metaSavedAt, s.SavedAt.UTC().Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("index: write meta: %w", err)
		}
	}
	return tx.Commit()
}

// Load returns the stored snapshot. An empty database yields an empty
// snapshot with a zero SavedAt. Rows that do not parse are skipped, as are
// edges whose endpoints are not among the documents.
func (db *DB) Load(ctx context.Context) (*Snapshot, error) {
	s := &Snapshot{}
	kinds := make(map[uuid.UUID]models.Kind)

	rows, err := db.conn.QueryContext(ctx, `SELECT uuid, kind, owner, category, slug, title FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("index: load documents: %w", err)
	}
	for rows.Next() {
		var rawID, rawKind string
		var d models.Document
		if err := rows.Scan(&rawID, &rawKind, &d.Location.Owner, &d.Location.Category, &d.Location.Slug, &d.Title); err != nil {
			rows.Close()
			return nil, fmt.Errorf("index: scan document: %w", err)
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			continue
		}
		kind, err := models.ParseKind(rawKind)
		if err != nil {
			continue
		}
		d.UUID, d.Kind = id, kind
		kinds[id] = kind
		s.Documents = append(s.Documents, d)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: load documents: %w", err)
	}

	rows, err = db.conn.QueryContext(ctx, `SELECT source, target FROM edges`)
	if err != nil {
		return nil, fmt.Errorf("index: load edges: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var src, dst string
		if err := rows.Scan(&src, &dst); err != nil {
			return nil, fmt.Errorf("index: scan edge: %w", err)
		}
		from, err1 := uuid.Parse(src)
		to, err2 := uuid.Parse(dst)
		if err1 != nil || err2 != nil {
			continue
		}
		fk, ok1 := kinds[from]
		tk, ok2 := kinds[to]
		if !ok1 || !ok2 {
			continue
		}
		s.Edges = append(s.Edges, links.Edge{From: from, FromKind: fk, To: to, ToKind: tk})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("index: load edges: %w", err)
	}

	var raw string
	err = db.conn.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, metaSavedAt).Scan(&raw)
	if err == nil {
		if t, perr := time.Parse(time.RFC3339Nano, raw); perr == nil {
			s.SavedAt = t
		}
	}
	return s, nil
}
