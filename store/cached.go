package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/alimasry/go-docops/ops"
)

// flushParallelism bounds how many documents one flush writes at once.
const flushParallelism = 8

// dirtyState tracks what needs flushing for a single document.
type dirtyState struct {
	snapshotDirty bool // snapshot needs writing to backing store
	flushedOps    int  // number of ops already flushed (index into history)
	created       bool // doc created locally but not yet in backing store
}

// CachedStore wraps a backing DocumentStore with an in-memory cache.
// All reads and writes are served from the cache. Dirty documents are
// flushed to the backing store periodically in the background.
type CachedStore struct {
	cache         *MemoryStore
	backing       DocumentStore
	log           logr.Logger
	mu            sync.Mutex
	dirty         map[string]*dirtyState
	flushInterval time.Duration
	stop          chan struct{}
	done          chan struct{}
	closeErr      error
}

// NewCachedStore creates a CachedStore that caches in memory and flushes
// dirty documents to the backing store every flushInterval.
func NewCachedStore(backing DocumentStore, flushInterval time.Duration, log logr.Logger) *CachedStore {
	cs := &CachedStore{
		cache:         NewMemoryStore(),
		backing:       backing,
		log:           log.WithName("cached-store"),
		dirty:         make(map[string]*dirtyState),
		flushInterval: flushInterval,
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go cs.flushLoop()
	return cs
}

func (cs *CachedStore) Create(ctx context.Context, id string) error {
	if _, err := cs.backing.Get(ctx, id); err == nil {
		return fmt.Errorf("document %q: %w", id, ErrExists)
	}
	if err := cs.cache.Create(ctx, id); err != nil {
		return err
	}
	cs.mu.Lock()
	cs.dirty[id] = &dirtyState{created: true}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) Get(ctx context.Context, id string) (*DocumentInfo, error) {
	info, err := cs.cache.Get(ctx, id)
	if err == nil {
		return info, nil
	}
	// Cache miss, load from backing store.
	if err := cs.loadFromBacking(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.Get(ctx, id)
}

func (cs *CachedStore) List(ctx context.Context) ([]DocumentInfo, error) {
	return cs.backing.List(ctx)
}

func (cs *CachedStore) SaveSnapshot(ctx context.Context, id string, snap Snapshot) error {
	// Ensure doc is in cache.
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}
	if err := cs.cache.SaveSnapshot(ctx, id, snap); err != nil {
		return err
	}
	cs.mu.Lock()
	ds := cs.dirty[id]
	if ds == nil {
		ds = &dirtyState{flushedOps: cs.historyLen(id)}
		cs.dirty[id] = ds
	}
	ds.snapshotDirty = true
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) AppendOperation(ctx context.Context, id string, op ops.Operation, version int) error {
	// Ensure doc is in cache.
	if _, err := cs.Get(ctx, id); err != nil {
		return err
	}

	// History length before the append tells how many ops were already
	// flushed if this doc was clean.
	prevLen := cs.historyLen(id)

	if err := cs.cache.AppendOperation(ctx, id, op, version); err != nil {
		return err
	}
	cs.mu.Lock()
	if cs.dirty[id] == nil {
		cs.dirty[id] = &dirtyState{flushedOps: prevLen}
	}
	cs.mu.Unlock()
	return nil
}

func (cs *CachedStore) GetOperations(ctx context.Context, id string, fromVersion int) ([]ops.Operation, error) {
	// Ensure doc is in cache.
	if _, err := cs.Get(ctx, id); err != nil {
		return nil, err
	}
	return cs.cache.GetOperations(ctx, id, fromVersion)
}

func (cs *CachedStore) historyLen(id string) int {
	cs.cache.mu.RLock()
	defer cs.cache.mu.RUnlock()
	if rec, ok := cs.cache.docs[id]; ok {
		return len(rec.history)
	}
	return 0
}

// loadFromBacking loads a document and its operations from the backing store
// into the cache. It sets flushedOps so that already-persisted ops are not
// re-flushed.
func (cs *CachedStore) loadFromBacking(ctx context.Context, id string) error {
	info, err := cs.backing.Get(ctx, id)
	if err != nil {
		return err
	}
	history, err := cs.backing.GetOperations(ctx, id, 0)
	if err != nil {
		return err
	}

	cs.cache.mu.Lock()
	if _, exists := cs.cache.docs[id]; !exists {
		cs.cache.docs[id] = &docRecord{
			info:    *info,
			history: history,
		}
	}
	cs.cache.mu.Unlock()

	cs.mu.Lock()
	if cs.dirty[id] == nil {
		cs.dirty[id] = &dirtyState{flushedOps: len(history)}
	}
	cs.mu.Unlock()

	cs.log.V(1).Info("loaded document", "doc", id, "operations", len(history), "snapshot", info.Snapshot.Version)
	return nil
}

func (cs *CachedStore) flushLoop() {
	ticker := time.NewTicker(cs.flushInterval)
	defer ticker.Stop()
	defer close(cs.done)

	for {
		select {
		case <-ticker.C:
			cs.flush()
		case <-cs.stop:
			cs.closeErr = cs.flush()
			return
		}
	}
}

// flush writes all dirty documents to the backing store and returns the
// first failure. Failed documents stay dirty and are retried next cycle.
func (cs *CachedStore) flush() error {
	cs.mu.Lock()
	snapshot := make(map[string]dirtyState, len(cs.dirty))
	for id, ds := range cs.dirty {
		snapshot[id] = *ds
	}
	cs.mu.Unlock()

	var g errgroup.Group
	g.SetLimit(flushParallelism)
	for id, ds := range snapshot {
		g.Go(func() error {
			err := cs.flushDoc(context.Background(), id, ds)
			if err != nil {
				cs.log.Error(err, "flush failed", "doc", id)
			}
			return err
		})
	}
	return g.Wait()
}

func (cs *CachedStore) flushDoc(ctx context.Context, id string, ds dirtyState) error {
	cs.cache.mu.RLock()
	rec, ok := cs.cache.docs[id]
	if !ok {
		cs.cache.mu.RUnlock()
		return nil
	}
	snap := rec.info.Snapshot.clone()
	totalOps := len(rec.history)
	var newOps []ops.Operation
	if ds.flushedOps < totalOps {
		newOps = cloneLog(rec.history[ds.flushedOps:])
	}
	cs.cache.mu.RUnlock()

	// 1. Create doc in backing store if needed.
	if ds.created {
		if err := cs.backing.Create(ctx, id); err != nil && !errors.Is(err, ErrExists) {
			return fmt.Errorf("create: %w", err)
		}
		ds.created = false
	}

	// 2. Flush new ops before the snapshot, so a snapshot never refers past
	// the persisted history.
	var opErr error
	for _, op := range newOps {
		version := ds.flushedOps + 1
		if err := cs.backing.AppendOperation(ctx, id, op, version); err != nil {
			opErr = fmt.Errorf("operation %d: %w", version, err)
			break
		}
		ds.flushedOps++
	}

	// 3. Flush the snapshot if dirty and covered by the flushed ops.
	var snapErr error
	wrote := false
	if ds.snapshotDirty && snap.Version <= ds.flushedOps {
		if err := cs.backing.SaveSnapshot(ctx, id, snap); err != nil {
			snapErr = fmt.Errorf("snapshot: %w", err)
		} else {
			wrote = true
		}
	}

	// Update the authoritative dirty state.
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cur := cs.dirty[id]
	if cur == nil {
		return multierr.Combine(opErr, snapErr)
	}
	cur.flushedOps = ds.flushedOps
	cur.created = false
	// Only clear snapshotDirty if no new snapshot arrived meanwhile.
	if wrote && cs.snapshotVersion(id) == snap.Version {
		cur.snapshotDirty = false
	}
	if !cur.snapshotDirty && cur.flushedOps >= cs.historyLen(id) {
		delete(cs.dirty, id)
	}
	return multierr.Combine(opErr, snapErr)
}

func (cs *CachedStore) snapshotVersion(id string) int {
	cs.cache.mu.RLock()
	defer cs.cache.mu.RUnlock()
	if rec, ok := cs.cache.docs[id]; ok {
		return rec.info.Snapshot.Version
	}
	return 0
}

// Close signals the flush loop to perform a final flush, waits for it to
// complete and returns its error.
func (cs *CachedStore) Close() error {
	close(cs.stop)
	<-cs.done
	return cs.closeErr
}
