// Package testutil provides shared test helpers for setting up corpora,
// linkers and snapshot databases.
package testutil

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"

	"github.com/starford/weft/internal/index"
	"github.com/starford/weft/internal/models"
	"github.com/starford/weft/internal/parser"
	"github.com/starford/weft/internal/storage"
)

// TestDB creates a temporary SQLite snapshot database that is automatically cleaned up.
func TestDB(t *testing.T) *index.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "weft-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := index.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestCorpus creates a temporary corpus directory with a file-backed store.
func TestCorpus(t *testing.T) (string, *storage.FS) {
	t.Helper()
	root := t.TempDir()
	store, err := storage.NewFS(root)
	if err != nil {
		t.Fatal(err)
	}
	return root, store
}

// Logger returns a logger that discards everything.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// TestLinker creates a linker over a fresh temporary corpus.
func TestLinker(t *testing.T, opts ...index.LinkerOption) (*index.Linker, *storage.FS) {
	t.Helper()
	_, store := TestCorpus(t)
	opts = append([]index.LinkerOption{index.WithLogger(Logger())}, opts...)
	return index.NewLinker(store, opts...), store
}

// WriteDoc stores a document with the given identity and body.
func WriteDoc(t *testing.T, store storage.Provider, id uuid.UUID, kind models.Kind, loc models.Location, body string) models.Document {
	t.Helper()
	data, err := parser.WithUUID([]byte(body), id)
	if err != nil {
		t.Fatal(err)
	}
	doc, err := store.Write(kind, loc, data)
	if err != nil {
		t.Fatalf("write %s: %v", loc, err)
	}
	return doc
}

// Link returns a markdown link carrying a stable marker for id.
func Link(kind models.Kind, id uuid.UUID) string {
	return "[" + string(kind) + "](" + parser.StableMarker(parser.DefaultScheme, kind, id) + ")"
}

// Rebuild runs a full rebuild and fails the test on error.
func Rebuild(t *testing.T, l *index.Linker) index.BuildStats {
	t.Helper()
	st, err := l.Rebuild(context.Background(), models.Scope{})
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	return st
}
