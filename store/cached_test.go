package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"

	"github.com/alimasry/go-docops/ops"
)

// waitFor polls cond until it holds or two seconds pass.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(20 * time.Millisecond)
	}
}

func TestCachedStore_ReadThrough(t *testing.T) {
	backing := NewMemoryStore()
	ctx := context.Background()

	// Pre-populate backing store.
	if err := backing.Create(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	if err := backing.AppendOperation(ctx, "doc1", textOp(0, "hello"), 1); err != nil {
		t.Fatal(err)
	}

	cs := NewCachedStore(backing, time.Hour, logr.Discard()) // long interval, no auto flush
	defer cs.Close()

	// Get should load from backing.
	info, err := cs.Get(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != 1 {
		t.Errorf("version = %d, want 1", info.Version)
	}

	// Operations should also be available.
	history, err := cs.GetOperations(ctx, "doc1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Text != "hello" {
		t.Fatalf("got %v, want the stored op", history)
	}
}

func TestCachedStore_WriteBehind(t *testing.T) {
	backing := NewMemoryStore()
	ctx := context.Background()

	cs := NewCachedStore(backing, 50*time.Millisecond, logr.Discard())
	defer cs.Close()

	if err := cs.Create(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}

	// Backing should NOT have it yet.
	if _, err := backing.Get(ctx, "doc1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound before the flush", err)
	}

	waitFor(t, "flush", func() bool {
		_, err := backing.Get(ctx, "doc1")
		return err == nil
	})
}

func TestCachedStore_CreateExistingInBacking(t *testing.T) {
	backing := NewMemoryStore()
	ctx := context.Background()
	if err := backing.Create(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}

	cs := NewCachedStore(backing, time.Hour, logr.Discard())
	defer cs.Close()

	if err := cs.Create(ctx, "doc1"); !errors.Is(err, ErrExists) {
		t.Errorf("err = %v, want ErrExists", err)
	}
}

func TestCachedStore_OperationFlushTracking(t *testing.T) {
	backing := NewMemoryStore()
	ctx := context.Background()

	cs := NewCachedStore(backing, 50*time.Millisecond, logr.Discard())
	defer cs.Close()

	if err := cs.Create(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}

	// Append 3 ops.
	for i := 1; i <= 3; i++ {
		if err := cs.AppendOperation(ctx, "doc1", textOp(i-1, "x"), i); err != nil {
			t.Fatal(err)
		}
	}

	flushed := func(n int) func() bool {
		return func() bool {
			history, err := backing.GetOperations(ctx, "doc1", 0)
			return err == nil && len(history) == n
		}
	}
	waitFor(t, "first flush", flushed(3))

	// Append 2 more.
	for i := 4; i <= 5; i++ {
		if err := cs.AppendOperation(ctx, "doc1", textOp(i-1, "y"), i); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, "second flush", flushed(5))
}

func TestCachedStore_CloseFlushes(t *testing.T) {
	backing := NewMemoryStore()
	ctx := context.Background()

	cs := NewCachedStore(backing, time.Hour, logr.Discard()) // very long interval

	if err := cs.Create(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	if err := cs.AppendOperation(ctx, "doc1", textOp(0, "hello"), 1); err != nil {
		t.Fatal(err)
	}
	snap := Snapshot{Log: []ops.Operation{textOp(0, "hello")}, Version: 1, NextOSN: 1}
	if err := cs.SaveSnapshot(ctx, "doc1", snap); err != nil {
		t.Fatal(err)
	}

	// Close triggers final flush.
	if err := cs.Close(); err != nil {
		t.Fatal(err)
	}

	// Backing should have everything.
	info, err := backing.Get(ctx, "doc1")
	if err != nil {
		t.Fatal(err)
	}
	if info.Version != 1 || info.Snapshot.Version != 1 || len(info.Snapshot.Log) != 1 {
		t.Errorf("unexpected info: %+v", info)
	}

	history, err := backing.GetOperations(ctx, "doc1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 {
		t.Errorf("got %d ops, want 1", len(history))
	}
}

func TestCachedStore_PreLoadedDoc(t *testing.T) {
	backing := NewMemoryStore()
	ctx := context.Background()

	// Pre-populate backing with doc and 2 ops.
	backing.Create(ctx, "doc1")
	backing.AppendOperation(ctx, "doc1", textOp(0, "a"), 1)
	backing.AppendOperation(ctx, "doc1", textOp(1, "b"), 2)

	cs := NewCachedStore(backing, time.Hour, logr.Discard())

	// Load into cache via Get.
	if _, err := cs.Get(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}

	// Append a new op via cache.
	if err := cs.AppendOperation(ctx, "doc1", textOp(2, "c"), 3); err != nil {
		t.Fatal(err)
	}

	if err := cs.Close(); err != nil {
		t.Fatal(err)
	}

	// Backing should have exactly 3 ops (no duplicates).
	history, err := backing.GetOperations(ctx, "doc1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 3 {
		t.Errorf("got %d ops in backing, want 3", len(history))
	}
}

// failingStore rejects snapshots.
type failingStore struct {
	*MemoryStore
}

var errUnavailable = errors.New("backing store unavailable")

func (failingStore) SaveSnapshot(context.Context, string, Snapshot) error { return errUnavailable }

func TestCachedStore_CloseReportsFlushError(t *testing.T) {
	backing := failingStore{NewMemoryStore()}
	ctx := context.Background()

	cs := NewCachedStore(backing, time.Hour, logr.Discard())
	if err := cs.Create(ctx, "doc1"); err != nil {
		t.Fatal(err)
	}
	if err := cs.SaveSnapshot(ctx, "doc1", Snapshot{}); err != nil {
		t.Fatal(err)
	}

	if err := cs.Close(); !errors.Is(err, errUnavailable) {
		t.Errorf("Close() = %v, want %v", err, errUnavailable)
	}

	// The document itself still made it.
	if _, err := backing.Get(ctx, "doc1"); err != nil {
		t.Errorf("document not flushed: %v", err)
	}
}

func TestCachedStore_ListDelegatesToBacking(t *testing.T) {
	backing := NewMemoryStore()
	ctx := context.Background()

	backing.Create(ctx, "a")
	backing.Create(ctx, "b")

	cs := NewCachedStore(backing, time.Hour, logr.Discard())
	defer cs.Close()

	docs, err := cs.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(docs) != 2 {
		t.Errorf("got %d docs, want 2", len(docs))
	}
}
