package index

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/starford/weft/internal/apperr"
	"github.com/starford/weft/internal/links"
	"github.com/starford/weft/internal/models"
	"github.com/starford/weft/internal/parser"
	"github.com/starford/weft/internal/resolver"
	"github.com/starford/weft/internal/storage"
)

// Event types published by the Linker.
const (
	EventDocumentSaved   = "document.saved"
	EventDocumentDeleted = "document.deleted"
	EventIndexRebuilt    = "index.rebuilt"
)

// Event describes a change to the index.
type Event struct {
	Type   string
	ID     uuid.UUID
	Kind   models.Kind
	Update *UpdateStats
	Stats  *BuildStats
}

// EventCallback is called after every applied change.
type EventCallback func(Event)

// Status summarizes the live index.
type Status struct {
	Documents   int         `json:"documents"`
	Edges       int         `json:"edges"`
	LastRebuild time.Time   `json:"last_rebuild"`
	LastStats   *BuildStats `json:"last_stats,omitempty"`
	Provisional bool        `json:"provisional"`
	Rebuilding  bool        `json:"rebuilding"`
}

// Resolution is the render-time view of a document identity.
type Resolution struct {
	ID         uuid.UUID       `json:"uuid"`
	Kind       models.Kind     `json:"kind"`
	Location   models.Location `json:"location"`
	Title      string          `json:"title,omitempty"`
	Breadcrumb []string        `json:"breadcrumb"`
	Href       string          `json:"href"`
}

// LinkerOption configures a Linker.
type LinkerOption func(*Linker)

// WithScheme sets the stable marker scheme.
func WithScheme(scheme string) LinkerOption {
	return func(l *Linker) {
		if scheme != "" {
			l.scheme = scheme
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) LinkerOption {
	return func(l *Linker) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithEventCallback registers cb for every applied change.
func WithEventCallback(cb EventCallback) LinkerOption {
	return func(l *Linker) {
		l.onEvent = cb
	}
}

// Linker keeps the live link graph in step with the corpus. Saves and
// deletes are applied incrementally; Rebuild recomputes from scratch.
type Linker struct {
	store   storage.Provider
	index   *links.Index
	scheme  string
	logger  *slog.Logger
	onEvent EventCallback

	mu          sync.RWMutex // serializes writers; guards the fields below
	corpus      *resolver.Corpus
	lastRebuild time.Time
	lastStats   *BuildStats
	provisional bool
	inflight    int
	pending     map[uuid.UUID]*models.Document // changes seen during a rebuild; nil means deleted

	group   singleflight.Group
	fmu     sync.Mutex // guards flights; held across group.DoChan
	flights map[string]*flight
}

// flight is the context of one shared rebuild run. The run is cancelled
// only once every caller waiting on it has given up.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// NewLinker creates a Linker over an empty graph.
func NewLinker(store storage.Provider, opts ...LinkerOption) *Linker {
	l := &Linker{
		store:   store,
		index:   links.NewIndex(),
		scheme:  parser.DefaultScheme,
		logger:  slog.Default(),
		corpus:  resolver.New(),
		pending: make(map[uuid.UUID]*models.Document),
		flights: make(map[string]*flight),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Scheme returns the stable marker scheme in use.
func (l *Linker) Scheme() string {
	return l.scheme
}

// DocumentSaved applies doc's current content to the graph.
func (l *Linker) DocumentSaved(doc models.Document) UpdateStats {
	l.mu.Lock()
	st := l.applySaved(doc)
	if l.inflight > 0 {
		d := doc
		l.pending[doc.UUID] = &d
	}
	l.mu.Unlock()

	l.logger.Debug("linker: document saved",
		slog.String("uuid", doc.UUID.String()),
		slog.Int("added", st.Added),
		slog.Int("removed", st.Removed),
		slog.Int("dangling", st.Dangling))
	l.emit(Event{Type: EventDocumentSaved, ID: doc.UUID, Kind: doc.Kind, Update: &st})
	return st
}

// DocumentDeleted removes id and every edge touching it. It reports whether
// id was known.
func (l *Linker) DocumentDeleted(id uuid.UUID) bool {
	l.mu.Lock()
	kind, ok := l.applyDeleted(id)
	if l.inflight > 0 {
		l.pending[id] = nil
	}
	l.mu.Unlock()

	if ok {
		l.logger.Debug("linker: document deleted", slog.String("uuid", id.String()))
		l.emit(Event{Type: EventDocumentDeleted, ID: id, Kind: kind})
	}
	return ok
}

// applySaved must be called with l.mu held.
func (l *Linker) applySaved(doc models.Document) UpdateStats {
	l.corpus.Put(doc)
	next, rs := Resolve(doc, l.corpus, l.scheme)
	var st UpdateStats
	l.index.Mutate(func(g *links.Graph) {
		st = Apply(g, doc, g.Outgoing(doc.UUID), next)
	})
	st.Dangling = rs.Dangling
	st.Malformed = rs.Malformed
	return st
}

// applyDeleted must be called with l.mu held.
func (l *Linker) applyDeleted(id uuid.UUID) (models.Kind, bool) {
	kind, known := l.corpus.Kind(id)
	l.corpus.Remove(id)
	var removed bool
	l.index.Mutate(func(g *links.Graph) {
		if !known {
			kind, _ = g.KindOf(id)
		}
		removed = g.RemoveDocument(id)
	})
	return kind, known || removed
}

// Rebuild recomputes the graph from the documents in scope. Concurrent
// calls for the same scope share one run. A full-scope rebuild replaces
// the graph atomically; a narrower one recomputes the outgoing edges of
// every document in scope and drops the ones that disappeared.
//
// A caller whose ctx ends stops waiting and gets ctx's error. The shared
// run keeps going while any other caller still waits on it, and is
// cancelled (never published) when the last one leaves.
//
// When enumeration fails the live graph is left as it was and the error
// wraps apperr.ErrEnumeration.
func (l *Linker) Rebuild(ctx context.Context, scope models.Scope) (BuildStats, error) {
	if err := ctx.Err(); err != nil {
		return BuildStats{}, fmt.Errorf("index: rebuild: %w", err)
	}
	key := scopeKey(scope)

	l.fmu.Lock()
	fl := l.flights[key]
	if fl == nil {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{ctx: runCtx, cancel: cancel}
		l.flights[key] = fl
	}
	fl.waiters++
	ch := l.group.DoChan(key, func() (any, error) {
		defer func() {
			l.fmu.Lock()
			if l.flights[key] == fl {
				delete(l.flights, key)
			}
			l.fmu.Unlock()
			fl.cancel()
		}()
		return l.rebuild(fl.ctx, scope)
	})
	l.fmu.Unlock()

	select {
	case res := <-ch:
		l.leave(key, fl, false)
		if res.Err != nil {
			return BuildStats{}, res.Err
		}
		if res.Shared {
			l.logger.Debug("linker: rebuild coalesced", slog.String("scope", key))
		}
		return res.Val.(BuildStats), nil
	case <-ctx.Done():
		l.leave(key, fl, true)
		return BuildStats{}, fmt.Errorf("index: rebuild: %w", ctx.Err())
	}
}

// leave drops one waiter from fl. When the last waiter gave up, the run is
// cancelled and forgotten so later callers start a fresh one.
func (l *Linker) leave(key string, fl *flight, abandoned bool) {
	l.fmu.Lock()
	defer l.fmu.Unlock()
	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	if l.flights[key] == fl {
		delete(l.flights, key)
	}
	if abandoned {
		fl.cancel()
		l.group.Forget(key)
	}
}

func (l *Linker) rebuild(ctx context.Context, scope models.Scope) (BuildStats, error) {
	start := time.Now()
	l.mu.Lock()
	l.inflight++
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.inflight--
		if l.inflight == 0 {
			clear(l.pending)
		}
		l.mu.Unlock()
	}()

	docs, err := l.store.List(ctx, scope)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return BuildStats{}, fmt.Errorf("index: rebuild: %w", ctxErr)
		}
		l.logger.Error("linker: enumeration failed", slog.String("error", err.Error()))
		return BuildStats{}, fmt.Errorf("index: rebuild: %w: %w", apperr.ErrEnumeration, err)
	}

	var st BuildStats
	if scope.All() {
		st, err = l.rebuildAll(ctx, docs)
	} else {
		st, err = l.rebuildScoped(ctx, scope, docs)
	}
	if err != nil {
		l.logger.Warn("linker: rebuild abandoned", slog.String("error", err.Error()))
		return BuildStats{}, err
	}

	l.logger.Info("linker: rebuild finished",
		slog.String("scope", scopeKey(scope)),
		slog.Int("documents", st.Documents),
		slog.Int("edges", st.Edges),
		slog.Int("dangling", st.Dangling),
		slog.Int("malformed", st.Malformed),
		slog.Int("removed_stale", st.RemovedStale),
		slog.Duration("took", time.Since(start)))
	stats := st
	l.emit(Event{Type: EventIndexRebuilt, Stats: &stats})
	return st, nil
}

func (l *Linker) rebuildAll(ctx context.Context, docs []models.Document) (BuildStats, error) {
	corpus := resolver.NewFromDocuments(docs)
	g, st, err := build(ctx, docs, corpus, l.scheme)
	if err != nil {
		return st, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return st, fmt.Errorf("index: rebuild: %w", err)
	}
	prev := l.index.Swap(g)
	l.corpus = corpus
	st.PreviousEdges = prev.EdgeCount()
	st.RemovedStale = staleEdges(prev, g)
	l.replayPending()
	l.finishRebuild(st, true)
	return st, nil
}

func (l *Linker) rebuildScoped(ctx context.Context, scope models.Scope, docs []models.Document) (BuildStats, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	// Location changes are staged and only installed once the run succeeds.
	corpus := l.corpus.Clone()
	st := BuildStats{Documents: len(docs)}
	listed := make(map[uuid.UUID]struct{}, len(docs))
	for _, d := range docs {
		corpus.Put(d)
		listed[d.UUID] = struct{}{}
	}
	gone := make(map[uuid.UUID]struct{})
	for _, d := range corpus.Documents() {
		if _, ok := listed[d.UUID]; !ok && scope.Contains(d) {
			gone[d.UUID] = struct{}{}
		}
	}

	nexts := make([]links.Outgoing, len(docs))
	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return st, fmt.Errorf("index: rebuild: %w", err)
		}
		out, rs := Resolve(d, corpus, l.scheme)
		for ep := range out {
			if _, ok := gone[ep.ID]; ok {
				delete(out, ep)
				rs.Dangling++
			}
		}
		nexts[i] = out
		st.Dangling += rs.Dangling
		st.Malformed += rs.Malformed
	}

	for id := range gone {
		corpus.Remove(id)
	}
	l.corpus = corpus
	l.index.Mutate(func(g *links.Graph) {
		st.PreviousEdges = g.EdgeCount()
		added := 0
		for id := range gone {
			g.RemoveDocument(id)
		}
		for i, d := range docs {
			added += Apply(g, d, g.Outgoing(d.UUID), nexts[i]).Added
		}
		st.Edges = g.EdgeCount()
		st.RemovedStale = st.PreviousEdges + added - st.Edges
	})
	l.replayPending()
	l.finishRebuild(st, false)
	return st, nil
}

// replayPending re-applies changes that raced with a rebuild. It must be
// called with l.mu held.
func (l *Linker) replayPending() {
	for id, d := range l.pending {
		if d == nil {
			l.applyDeleted(id)
		} else {
			l.applySaved(*d)
		}
	}
	clear(l.pending)
}

// finishRebuild must be called with l.mu held. Only a full rebuild
// refreshes the age of the index.
func (l *Linker) finishRebuild(st BuildStats, full bool) {
	l.lastStats = &st
	if full {
		l.lastRebuild = time.Now()
		l.provisional = false
	}
}

// Restore installs a persisted snapshot as the live index. The result is
// provisional until the next full rebuild.
func (l *Linker) Restore(s *Snapshot) error {
	corpus := resolver.NewFromDocuments(s.Documents)
	g := links.NewGraph()
	for _, d := range s.Documents {
		g.Touch(d.Kind, d.UUID)
	}
	for _, e := range s.Edges {
		g.InsertEdge(e.FromKind, e.From, e.ToKind, e.To)
	}
	if err := g.Validate(); err != nil {
		return fmt.Errorf("index: restore: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.index.Swap(g)
	l.corpus = corpus
	l.lastRebuild = s.SavedAt
	l.lastStats = nil
	l.provisional = true
	l.logger.Info("linker: snapshot restored",
		slog.Int("documents", len(s.Documents)),
		slog.Int("edges", len(s.Edges)),
		slog.Time("saved_at", s.SavedAt))
	return nil
}

// Snapshot captures the live index for persistence. SavedAt is the time of
// the rebuild the state derives from.
func (l *Linker) Snapshot() Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Snapshot{
		Documents: l.corpus.Documents(),
		Edges:     l.index.Snapshot().Edges(),
		SavedAt:   l.lastRebuild,
	}
}

// Stale reports whether the live index should be rebuilt: it was never
// built, or it is a provisional snapshot of unknown age or older than maxAge.
func (l *Linker) Stale(maxAge time.Duration) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.lastRebuild.IsZero() {
		return true
	}
	return l.provisional && maxAge > 0 && time.Since(l.lastRebuild) > maxAge
}

// Status returns a summary of the live index.
func (l *Linker) Status() Status {
	docs, edges := l.index.Counts()
	l.mu.RLock()
	defer l.mu.RUnlock()
	return Status{
		Documents:   docs,
		Edges:       edges,
		LastRebuild: l.lastRebuild,
		LastStats:   l.lastStats,
		Provisional: l.provisional,
		Rebuilding:  l.inflight > 0,
	}
}

// LinksOf returns id's links; unknown ids get an empty view.
func (l *Linker) LinksOf(id uuid.UUID) links.ItemLinks {
	return l.index.LinksOf(id)
}

// IsLinked reports whether a and b are linked in either direction.
func (l *Linker) IsLinked(a, b uuid.UUID) bool {
	return l.index.IsLinked(a, b)
}

// Degree returns the number of distinct documents id is linked with.
func (l *Linker) Degree(id uuid.UUID) int {
	return l.index.Degree(id)
}

// Graph returns a detached copy of the live graph.
func (l *Linker) Graph() *links.Graph {
	return l.index.Snapshot()
}

// Resolve returns the current location of id for rendering.
func (l *Linker) Resolve(id uuid.UUID) (Resolution, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	loc, ok := l.corpus.ResolveToLocation(id)
	if !ok {
		return Resolution{}, false
	}
	kind, _ := l.corpus.Kind(id)
	crumbs, _ := l.corpus.Breadcrumb(id)
	href, _ := l.corpus.Href(id)
	return Resolution{
		ID:         id,
		Kind:       kind,
		Location:   loc,
		Title:      l.corpus.Title(id),
		Breadcrumb: crumbs,
		Href:       href,
	}, true
}

// ResolveReference resolves ref as written by a document owned by owner.
func (l *Linker) ResolveReference(owner string, ref models.Reference) (resolver.Resolved, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.corpus.ResolveToUUID(owner, ref)
}

// IDAt returns the identity of the document indexed at loc.
func (l *Linker) IDAt(kind models.Kind, loc models.Location) (uuid.UUID, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.corpus.At(kind, loc)
}

func (l *Linker) emit(ev Event) {
	if l.onEvent != nil {
		l.onEvent(ev)
	}
}

func scopeKey(scope models.Scope) string {
	if scope.All() {
		return "*"
	}
	ids := make([]string, len(scope.Include))
	for i, id := range scope.Include {
		ids[i] = id.String()
	}
	slices.Sort(ids)
	return scope.Owner + "+" + strings.Join(ids, ",")
}
