package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/starford/weft/internal/apperr"
	"github.com/starford/weft/internal/checksum"
	"github.com/starford/weft/internal/models"
	"github.com/starford/weft/internal/parser"
)

// Verify *FS satisfies Provider at compile time.
var _ Provider = (*FS)(nil)

// FS implements Provider backed by the local file system.
type FS struct {
	root string // absolute path to corpus directory

	mu    sync.Mutex
	paths map[uuid.UUID]string // last seen relative path per identity
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs, paths: make(map[uuid.UUID]string)}, nil
}

// Root returns the absolute corpus directory.
func (f *FS) Root() string {
	return f.root
}

// safePath resolves a relative path against the corpus root and rejects
// any result that escapes it (directory traversal).
func (f *FS) safePath(rel string) (string, error) {
	if rel == "" {
		return f.root, nil
	}
	cleaned := filepath.Clean(rel)
	if filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("storage: absolute paths not allowed: %s", rel)
	}
	joined := filepath.Join(f.root, cleaned)
	abs, err := filepath.Abs(joined)
	if err != nil {
		return "", fmt.Errorf("storage: resolve path: %w", err)
	}
	// Ensure the resolved path is still under root.
	if !strings.HasPrefix(abs, f.root+string(os.PathSeparator)) && abs != f.root {
		return "", fmt.Errorf("storage: path escapes corpus root: %s", rel)
	}
	return abs, nil
}

// List walks the corpus and returns every document inside scope. A file
// without a uuid, or whose uuid was already seen on another file, gets a
// fresh one written back into its frontmatter.
func (f *FS) List(ctx context.Context, scope models.Scope) ([]models.Document, error) {
	var out []models.Document
	seen := make(map[uuid.UUID]string)

	for _, k := range models.Kinds {
		base := filepath.Join(f.root, k.Dir())
		if !scope.All() && len(scope.Include) == 0 {
			base = filepath.Join(base, scope.Owner)
		}
		if _, err := os.Stat(base); errors.Is(err, fs.ErrNotExist) {
			continue
		}

		err := filepath.WalkDir(base, func(p string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if d.IsDir() {
				if p != base && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if !strings.HasSuffix(d.Name(), ext) || strings.HasPrefix(d.Name(), ".") {
				return nil
			}
			rel, _ := filepath.Rel(f.root, p)
			doc, err := f.load(rel, func(id uuid.UUID) bool {
				prev, ok := seen[id]
				return ok && prev != rel
			})
			if errors.Is(err, apperr.ErrInvalidLocation) {
				return nil
			}
			if err != nil {
				return err
			}
			seen[doc.UUID] = rel
			if scope.Contains(doc) {
				out = append(out, doc)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("storage: list: %w", err)
		}
	}
	return out, nil
}

// Locate finds a document by identity, rescanning the corpus when the
// remembered path is missing or stale.
func (f *FS) Locate(ctx context.Context, id uuid.UUID) (models.Document, error) {
	f.mu.Lock()
	rel, ok := f.paths[id]
	f.mu.Unlock()
	if ok {
		if doc, err := f.load(rel, nil); err == nil && doc.UUID == id {
			return doc, nil
		}
		f.forget(id)
	}

	docs, err := f.List(ctx, models.Scope{})
	if err != nil {
		return models.Document{}, err
	}
	for _, d := range docs {
		if d.UUID == id {
			return d, nil
		}
	}
	return models.Document{}, fmt.Errorf("storage: locate %s: %w", id, apperr.ErrNotFound)
}

// Lookup returns the document stored at loc.
func (f *FS) Lookup(kind models.Kind, loc models.Location) (models.Document, error) {
	rel, err := RelPath(kind, loc)
	if err != nil {
		return models.Document{}, err
	}
	return f.load(rel, nil)
}

// Read returns the raw bytes of a document file.
func (f *FS) Read(kind models.Kind, loc models.Location) ([]byte, error) {
	rel, err := RelPath(kind, loc)
	if err != nil {
		return nil, err
	}
	return f.read(rel)
}

// Write atomically writes content and returns the stored document.
func (f *FS) Write(kind models.Kind, loc models.Location, content []byte) (models.Document, error) {
	rel, err := RelPath(kind, loc)
	if err != nil {
		return models.Document{}, err
	}
	if err := f.writeFile(rel, content); err != nil {
		return models.Document{}, err
	}
	return f.load(rel, nil)
}

// Delete removes a document file.
func (f *FS) Delete(kind models.Kind, loc models.Location) error {
	rel, err := RelPath(kind, loc)
	if err != nil {
		return err
	}
	abs, err := f.safePath(rel)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: delete %s: %w", rel, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", rel, err)
	}
	f.mu.Lock()
	for id, p := range f.paths {
		if p == rel {
			delete(f.paths, id)
		}
	}
	f.mu.Unlock()
	return nil
}

// Move renames a document file within the corpus. The destination must
// not exist.
func (f *FS) Move(kind models.Kind, from, to models.Location) (models.Document, error) {
	oldRel, err := RelPath(kind, from)
	if err != nil {
		return models.Document{}, err
	}
	newRel, err := RelPath(kind, to)
	if err != nil {
		return models.Document{}, err
	}
	absOld, err := f.safePath(oldRel)
	if err != nil {
		return models.Document{}, err
	}
	absNew, err := f.safePath(newRel)
	if err != nil {
		return models.Document{}, err
	}
	if _, err := os.Stat(absOld); errors.Is(err, fs.ErrNotExist) {
		return models.Document{}, fmt.Errorf("storage: move %s: %w", oldRel, apperr.ErrNotFound)
	}
	if _, err := os.Stat(absNew); err == nil {
		return models.Document{}, fmt.Errorf("storage: move to %s: %w", newRel, apperr.ErrAlreadyExists)
	}
	if err := os.MkdirAll(filepath.Dir(absNew), 0o755); err != nil {
		return models.Document{}, fmt.Errorf("storage: mkdir for move: %w", err)
	}
	if err := os.Rename(absOld, absNew); err != nil {
		return models.Document{}, fmt.Errorf("storage: move: %w", err)
	}
	return f.load(newRel, nil)
}

// load reads and parses one document file. A file without a uuid keeps the
// identity last seen at the same path. When there is none, or taken reports
// the uuid as used elsewhere, a new one is assigned. Either way the uuid is
// written back.
func (f *FS) load(rel string, taken func(uuid.UUID) bool) (models.Document, error) {
	kind, loc, err := ParsePath(rel)
	if err != nil {
		return models.Document{}, err
	}
	data, err := f.read(rel)
	if err != nil {
		return models.Document{}, err
	}
	res, _ := parser.Parse(data)

	id := res.UUID
	if id == uuid.Nil {
		id = f.idAt(rel)
	}
	if id == uuid.Nil || (taken != nil && taken(id)) {
		id = uuid.New()
	}
	if id != res.UUID {
		if data, err = parser.WithUUID(data, id); err != nil {
			return models.Document{}, err
		}
		if err := f.writeFile(rel, data); err != nil {
			return models.Document{}, err
		}
		res.UUID = id
	}

	abs, _ := f.safePath(rel)
	info, err := os.Stat(abs)
	if err != nil {
		return models.Document{}, fmt.Errorf("storage: stat %s: %w", rel, err)
	}

	f.mu.Lock()
	f.paths[res.UUID] = rel
	f.mu.Unlock()

	return models.Document{
		UUID:      res.UUID,
		Kind:      kind,
		Location:  loc,
		Title:     res.Title,
		Content:   string(data),
		Checksum:  checksum.Sum(data),
		UpdatedAt: info.ModTime(),
	}, nil
}

// idAt returns the identity last loaded from rel, or uuid.Nil.
func (f *FS) idAt(rel string) uuid.UUID {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, p := range f.paths {
		if p == rel {
			return id
		}
	}
	return uuid.Nil
}

func (f *FS) forget(id uuid.UUID) {
	f.mu.Lock()
	delete(f.paths, id)
	f.mu.Unlock()
}

func (f *FS) read(rel string) ([]byte, error) {
	abs, err := f.safePath(rel)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: read %s: %w", rel, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", rel, err)
	}
	return data, nil
}

// writeFile atomically writes content: tmp file → fsync → rename.
func (f *FS) writeFile(rel string, content []byte) error {
	abs, err := f.safePath(rel)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("storage: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".weft-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}
