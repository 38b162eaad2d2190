package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/alimasry/go-docops/ops"
	"github.com/alimasry/go-docops/tree"
)

func testFirestoreClient(t *testing.T) *firestore.Client {
	t.Helper()
	projectID := os.Getenv("FIRESTORE_PROJECT")
	if projectID == "" {
		t.Skip("FIRESTORE_PROJECT not set, skipping Firestore tests")
	}
	client, err := DialFirestore(context.Background(), projectID, os.Getenv("FIRESTORE_CREDENTIALS"))
	if err != nil {
		t.Fatalf("failed to create Firestore client: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// uniqueDocID returns a unique document ID for test isolation.
func uniqueDocID(t *testing.T) string {
	return fmt.Sprintf("test-%s-%d", t.Name(), time.Now().UnixNano())
}

// cleanupDoc deletes a document and its operations subcollection.
func cleanupDoc(t *testing.T, s *FirestoreStore, docID string) {
	t.Helper()
	ctx := context.Background()

	// Delete operations subcollection.
	iter := s.opsCollection(docID).Documents(ctx)
	for {
		snap, err := iter.Next()
		if err != nil {
			break
		}
		snap.Ref.Delete(ctx)
	}

	// Delete document.
	s.docRef(docID).Delete(ctx)
}

func TestFirestoreStore_CreateAndGet(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	docID := uniqueDocID(t)
	t.Cleanup(func() { cleanupDoc(t, s, docID) })

	if err := s.Create(ctx, docID); err != nil {
		t.Fatal(err)
	}

	info, err := s.Get(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != docID || info.Version != 0 || len(info.Snapshot.Log) != 0 {
		t.Errorf("unexpected info: %+v", info)
	}
}

func TestFirestoreStore_CreateDuplicate(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	docID := uniqueDocID(t)
	t.Cleanup(func() { cleanupDoc(t, s, docID) })

	s.Create(ctx, docID)
	if err := s.Create(ctx, docID); !errors.Is(err, ErrExists) {
		t.Errorf("err = %v, want ErrExists", err)
	}
}

func TestFirestoreStore_GetNotFound(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	_, err := s.Get(context.Background(), "nonexistent-doc-xyz")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestFirestoreStore_List(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()

	ids := make([]string, 3)
	for i := range ids {
		ids[i] = uniqueDocID(t) + fmt.Sprintf("-%d", i)
		t.Cleanup(func() { cleanupDoc(t, s, ids[i]) })
		s.Create(ctx, ids[i])
	}

	docs, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	// At least our 3 docs should be present (there may be others from parallel tests).
	found := 0
	for _, d := range docs {
		for _, id := range ids {
			if d.ID == id {
				found++
			}
		}
	}
	if found != 3 {
		t.Errorf("found %d of our 3 docs in list", found)
	}
}

func TestFirestoreStore_SaveSnapshot(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	docID := uniqueDocID(t)
	t.Cleanup(func() { cleanupDoc(t, s, docID) })

	s.Create(ctx, docID)
	snap := Snapshot{
		Log: []ops.Operation{
			{Name: ops.InsertParagraph, Start: tree.Path{0}},
			textOp(0, "hello"),
		},
		Version: 4,
		NextOSN: 7,
	}
	if err := s.SaveSnapshot(ctx, docID, snap); err != nil {
		t.Fatal(err)
	}

	info, err := s.Get(ctx, docID)
	if err != nil {
		t.Fatal(err)
	}
	if info.Snapshot.Version != 4 || info.Snapshot.NextOSN != 7 {
		t.Errorf("unexpected snapshot: %+v", info.Snapshot)
	}
	if diff := ops.Diff(snap.Log, info.Snapshot.Log); diff != "" {
		t.Errorf("snapshot log (-saved +loaded):\n%s", diff)
	}
}

func TestFirestoreStore_Operations(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	ctx := context.Background()
	docID := uniqueDocID(t)
	t.Cleanup(func() { cleanupDoc(t, s, docID) })

	s.Create(ctx, docID)

	if err := s.AppendOperation(ctx, docID, textOp(0, "hello"), 1); err != nil {
		t.Fatal(err)
	}
	if err := s.AppendOperation(ctx, docID, textOp(5, " world"), 2); err != nil {
		t.Fatal(err)
	}

	// Get all ops.
	history, err := s.GetOperations(ctx, docID, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 2 {
		t.Fatalf("got %d ops, want 2", len(history))
	}

	// Get ops from version 1 (skip first op).
	history, err = s.GetOperations(ctx, docID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(history) != 1 || history[0].Text != " world" {
		t.Fatalf("got %v, want the second op", history)
	}

	info, _ := s.Get(ctx, docID)
	if info.Version != 2 {
		t.Errorf("version = %d, want 2", info.Version)
	}
}

func TestFirestoreStore_OperationsNotFound(t *testing.T) {
	client := testFirestoreClient(t)
	s := NewFirestoreStore(client)
	_, err := s.GetOperations(context.Background(), "nonexistent-doc-xyz", 0)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}
