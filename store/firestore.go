package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alimasry/go-docops/ops"
)

// FirestoreStore is a Firestore-backed implementation of DocumentStore.
// Operations and snapshots are stored as JSON strings: operation records are
// sparse and deeply nested, which Firestore maps poorly.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreStore creates a new FirestoreStore using the given Firestore client.
func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{
		client:     client,
		collection: "documents",
	}
}

// DialFirestore opens a Firestore client for project. An empty
// credentialsFile uses the application default credentials.
func DialFirestore(ctx context.Context, project, credentialsFile string) (*firestore.Client, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := firestore.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore client for %q: %w", project, err)
	}
	return client, nil
}

func (s *FirestoreStore) docRef(id string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(id)
}

func (s *FirestoreStore) opsCollection(docID string) *firestore.CollectionRef {
	return s.docRef(docID).Collection("operations")
}

func zeroPad(version int) string {
	return fmt.Sprintf("%010d", version)
}

func (s *FirestoreStore) Create(ctx context.Context, id string) error {
	now := time.Now()
	_, err := s.docRef(id).Create(ctx, map[string]interface{}{
		"snapshot":        "[]",
		"snapshotVersion": 0,
		"nextOsn":         0,
		"version":         0,
		"createdAt":       now,
		"updatedAt":       now,
	})
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("document %q: %w", id, ErrExists)
	}
	return err
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (*DocumentInfo, error) {
	snap, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return snapshotToDocInfo(id, snap)
}

func snapshotToDocInfo(id string, snap *firestore.DocumentSnapshot) (*DocumentInfo, error) {
	data := snap.Data()
	raw, _ := data["snapshot"].(string)
	snapshotVersion, _ := data["snapshotVersion"].(int64)
	nextOSN, _ := data["nextOsn"].(int64)
	version, _ := data["version"].(int64)
	createdAt, _ := data["createdAt"].(time.Time)
	updatedAt, _ := data["updatedAt"].(time.Time)

	var log []ops.Operation
	if raw != "" {
		var err error
		if log, err = ops.ParseLog([]byte(raw)); err != nil {
			return nil, fmt.Errorf("document %q snapshot: %w", id, err)
		}
	}
	return &DocumentInfo{
		ID: id,
		Snapshot: Snapshot{
			Log:     log,
			Version: int(snapshotVersion),
			NextOSN: int(nextOSN),
		},
		Version:   int(version),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

func (s *FirestoreStore) List(ctx context.Context) ([]DocumentInfo, error) {
	iter := s.client.Collection(s.collection).Documents(ctx)
	defer iter.Stop()

	var result []DocumentInfo
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		info, err := snapshotToDocInfo(snap.Ref.ID, snap)
		if err != nil {
			return nil, err
		}
		result = append(result, *info)
	}
	return result, nil
}

func (s *FirestoreStore) SaveSnapshot(ctx context.Context, id string, snap Snapshot) error {
	log := snap.Log
	if log == nil {
		log = []ops.Operation{}
	}
	data, err := json.Marshal(log)
	if err != nil {
		return fmt.Errorf("document %q snapshot: %w", id, err)
	}
	_, err = s.docRef(id).Update(ctx, []firestore.Update{
		{Path: "snapshot", Value: string(data)},
		{Path: "snapshotVersion", Value: snap.Version},
		{Path: "nextOsn", Value: snap.NextOSN},
		{Path: "updatedAt", Value: time.Now()},
	})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	return err
}

// AppendOperation stores op and advances the document version in one
// transaction.
func (s *FirestoreStore) AppendOperation(ctx context.Context, id string, op ops.Operation, version int) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("document %q operation %d: %w", id, version, err)
	}

	// Store with 0-based index: version 1 → index 0, matching MemoryStore's
	// history slice semantics where GetOperations(fromVersion) returns history[fromVersion:].
	index := version - 1
	err = s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if err := tx.Set(s.opsCollection(id).Doc(zeroPad(index)), map[string]interface{}{
			"op":      string(data),
			"version": version,
		}); err != nil {
			return err
		}
		return tx.Update(s.docRef(id), []firestore.Update{
			{Path: "version", Value: version},
			{Path: "updatedAt", Value: time.Now()},
		})
	})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	return err
}

func (s *FirestoreStore) GetOperations(ctx context.Context, id string, fromVersion int) ([]ops.Operation, error) {
	// Verify document exists.
	_, err := s.docRef(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, fmt.Errorf("document %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	iter := s.opsCollection(id).
		OrderBy(firestore.DocumentID, firestore.Asc).
		StartAt(zeroPad(fromVersion)).
		Documents(ctx)
	defer iter.Stop()

	var history []ops.Operation
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		op, err := snapshotToOperation(snap)
		if err != nil {
			return nil, err
		}
		history = append(history, op)
	}
	return history, nil
}

func snapshotToOperation(snap *firestore.DocumentSnapshot) (ops.Operation, error) {
	raw, ok := snap.Data()["op"].(string)
	if !ok {
		return ops.Operation{}, fmt.Errorf("invalid op field in operation %s", snap.Ref.ID)
	}
	var op ops.Operation
	if err := json.Unmarshal([]byte(raw), &op); err != nil {
		return ops.Operation{}, fmt.Errorf("operation %s: %w", snap.Ref.ID, err)
	}
	return op, nil
}
