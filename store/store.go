package store

import (
	"context"
	"errors"
	"time"

	"github.com/alimasry/go-docops/ops"
)

var (
	ErrNotFound = errors.New("document not found")
	ErrExists   = errors.New("document already exists")
)

// Snapshot is an extracted operation log that rebuilds a document as it was
// after Version operations. NextOSN is the sequence number the document
// expected next at that point.
type Snapshot struct {
	Log     []ops.Operation
	Version int
	NextOSN int
}

// DocumentInfo holds document metadata and its latest snapshot. Version counts
// every operation ever appended.
type DocumentInfo struct {
	ID        string
	Snapshot  Snapshot
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// DocumentStore abstracts document persistence: an append-only operation
// history plus a snapshot that lets loaders skip most of it.
type DocumentStore interface {
	Create(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*DocumentInfo, error)
	List(ctx context.Context) ([]DocumentInfo, error)
	SaveSnapshot(ctx context.Context, id string, snap Snapshot) error
	AppendOperation(ctx context.Context, id string, op ops.Operation, version int) error
	GetOperations(ctx context.Context, id string, fromVersion int) ([]ops.Operation, error)
}

func cloneLog(log []ops.Operation) []ops.Operation {
	if log == nil {
		return nil
	}
	out := make([]ops.Operation, len(log))
	copy(out, log)
	return out
}

func (s Snapshot) clone() Snapshot {
	s.Log = cloneLog(s.Log)
	return s
}
