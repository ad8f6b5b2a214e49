package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/starford/weft/internal/models"
)

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func writeRaw(t *testing.T, root, rel, content string) {
	t.Helper()
	p := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWatcher_NewFileIndexed(t *testing.T) {
	l, store := newTestLinker(t)
	put(t, store, uB, models.KindChecklist, "alice", "home", "groceries", "")
	_, _ = l.Rebuild(context.Background(), models.Scope{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, l, store, store.Root(), quietLogger())
	time.Sleep(100 * time.Millisecond)

	writeRaw(t, store.Root(), filepath.Join("notes", "alice", "new.md"),
		"---\nuuid: "+uA.String()+"\n---\n"+stable(models.KindChecklist, uB))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return l.IsLinked(uA, uB)
	}, "new file not indexed by watcher")
}

func TestWatcher_NewDirWatched(t *testing.T) {
	l, store := newTestLinker(t)
	put(t, store, uB, models.KindNote, "alice", "", "b", "")
	_, _ = l.Rebuild(context.Background(), models.Scope{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, l, store, store.Root(), quietLogger())
	time.Sleep(100 * time.Millisecond)

	_ = os.MkdirAll(filepath.Join(store.Root(), "notes", "alice", "deep", "er"), 0o755)
	time.Sleep(100 * time.Millisecond)
	writeRaw(t, store.Root(), filepath.Join("notes", "alice", "deep", "er", "a.md"),
		"---\nuuid: "+uA.String()+"\n---\n[b](/note/b)")

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return l.IsLinked(uA, uB)
	}, "file in new subdir not indexed by watcher")
}

func TestWatcher_DeleteRemovesFromIndex(t *testing.T) {
	l, store := newTestLinker(t)
	putScenario(t, store)
	_, _ = l.Rebuild(context.Background(), models.Scope{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, l, store, store.Root(), quietLogger())
	time.Sleep(100 * time.Millisecond)

	_ = os.Remove(filepath.Join(store.Root(), "checklists", "alice", "home", "groceries.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return !l.IsLinked(uA, uB)
	}, "deleted file still linked in index")
}

func TestWatcher_RenameReconciles(t *testing.T) {
	l, store := newTestLinker(t)
	putScenario(t, store)
	_, _ = l.Rebuild(context.Background(), models.Scope{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, l, store, store.Root(), quietLogger())
	time.Sleep(100 * time.Millisecond)

	_ = os.MkdirAll(filepath.Join(store.Root(), "notes", "alice", "archive"), 0o755)
	time.Sleep(100 * time.Millisecond)
	_ = os.Rename(
		filepath.Join(store.Root(), "notes", "alice", "work", "notes", "plan.md"),
		filepath.Join(store.Root(), "notes", "alice", "archive", "plan.md"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		res, ok := l.Resolve(uC)
		return ok && res.Location.Category == "archive"
	}, "rename reconciliation failed: location should follow the file")
}
