package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/alimasry/go-docops/engine"
	"github.com/alimasry/go-docops/store"
)

// Error kinds a session reports besides the engine's operation failures.
const (
	KindStale       = "stale version"
	KindRateLimited = "rate limited"
)

type opMessage struct {
	client *Client
	msg    ClientMessage
}

// Session manages editing of a single document. The document is owned by the
// Run goroutine; all operations are serialized through it.
type Session struct {
	docID   string
	doc     *engine.Document
	version int
	store   store.DocumentStore
	clients map[*Client]bool

	compactEvery  int
	sinceSnapshot int

	log     logr.Logger
	metrics *metrics

	incoming chan opMessage
	join     chan *Client
	leave    chan *Client
	stop     chan struct{}
}

func newSession(docID string, doc *engine.Document, version int, st store.DocumentStore, opts Options) *Session {
	return &Session{
		docID:        docID,
		doc:          doc,
		version:      version,
		store:        st,
		clients:      make(map[*Client]bool),
		compactEvery: opts.CompactEvery,
		log:          opts.Log.WithName("session").WithValues("doc", docID),
		metrics:      newMetrics(),
		incoming:     make(chan opMessage, 64),
		join:         make(chan *Client, 16),
		leave:        make(chan *Client, 16),
		stop:         make(chan struct{}),
	}
}

// loadDocument rebuilds a stored document from its snapshot and the
// operations recorded after it.
func loadDocument(ctx context.Context, st store.DocumentStore, docID string, opts []engine.Option) (*engine.Document, *store.DocumentInfo, int, error) {
	info, err := st.Get(ctx, docID)
	if err != nil {
		return nil, nil, 0, err
	}
	tail, err := st.GetOperations(ctx, docID, info.Snapshot.Version)
	if err != nil {
		return nil, nil, 0, err
	}
	doc, err := engine.Restore(info.Snapshot.Log, info.Snapshot.NextOSN, opts...)
	if err != nil {
		return nil, nil, 0, fmt.Errorf("document %q: %w", docID, err)
	}
	if _, err := doc.Replay(tail); err != nil {
		return nil, nil, 0, fmt.Errorf("document %q: replay after snapshot %d: %w", docID, info.Snapshot.Version, err)
	}
	return doc, info, len(tail), nil
}

// openSession loads a document, creating it when the store has none.
func openSession(ctx context.Context, docID string, st store.DocumentStore, opts Options) (*Session, error) {
	if _, err := st.Get(ctx, docID); errors.Is(err, store.ErrNotFound) {
		if err := st.Create(ctx, docID); err != nil {
			return nil, err
		}
	}
	doc, info, tail, err := loadDocument(ctx, st, docID, opts.Engine)
	if err != nil {
		return nil, err
	}
	s := newSession(docID, doc, info.Snapshot.Version+tail, st, opts)
	s.sinceSnapshot = tail
	return s, nil
}

// Run is the session's main loop. It serializes all operations.
func (s *Session) Run() {
	for {
		select {
		case c := <-s.join:
			s.handleJoin(c)
		case c := <-s.leave:
			s.handleLeave(c)
		case om := <-s.incoming:
			s.handleOps(om)
		case <-s.stop:
			return
		}
	}
}

func (s *Session) handleJoin(c *Client) {
	log, err := s.doc.Extract()
	if err != nil {
		s.log.Error(err, "extract for join", "client", c.ID)
		c.sendError("failed to load document")
		return
	}

	s.clients[c] = true
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()

	// Send current document state to the joining client.
	c.sendMsg(ServerMessage{
		Type:    MsgDoc,
		DocID:   s.docID,
		Version: s.version,
		NextOSN: s.doc.NextOSN(),
		Ops:     log,
		Clients: s.clientInfos(),
	})

	// Notify other clients about the new user.
	for other := range s.clients {
		if other != c {
			other.sendMsg(ServerMessage{
				Type:     MsgJoin,
				ClientID: c.ID,
				Name:     c.Name,
				Color:    c.Color,
			})
		}
	}
}

func (s *Session) handleLeave(c *Client) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	delete(s.clients, c)
	c.mu.Lock()
	c.session = nil
	c.mu.Unlock()
	close(c.send)

	// Notify others.
	for other := range s.clients {
		other.sendMsg(ServerMessage{
			Type:     MsgLeave,
			ClientID: c.ID,
		})
	}
}

// handleOps applies a client batch atomically. Batches written against an
// older version are rejected; the client resynchronises from the broadcasts
// it has not seen yet.
func (s *Session) handleOps(om opMessage) {
	ctx := context.Background()
	batch := om.msg.Ops
	if om.msg.Version != s.version {
		s.reject(ctx, om.client, KindStale, ServerMessage{
			Type:    MsgError,
			Kind:    KindStale,
			Version: s.version,
			Message: fmt.Sprintf("batch written against version %d, document is at %d", om.msg.Version, s.version),
		})
		return
	}
	if len(batch) == 0 {
		om.client.sendError("empty operation batch")
		return
	}

	if err := s.doc.ApplyAll(batch); err != nil {
		s.log.V(1).Info("batch rejected", "client", om.client.ID, "err", err.Error())
		msg := ServerMessage{Type: MsgError, Version: s.version, Message: err.Error()}
		var oe *engine.OpError
		if errors.As(err, &oe) {
			msg.Kind = oe.Kind.Error()
			msg.Index = &oe.Index
		}
		s.reject(ctx, om.client, msg.Kind, msg)
		return
	}

	// Persist.
	for _, op := range batch {
		s.version++
		if err := s.store.AppendOperation(ctx, s.docID, op, s.version); err != nil {
			s.log.Error(err, "persist operation", "version", s.version)
		}
		s.metrics.applied.Add(ctx, 1, metric.WithAttributes(attribute.String("op", op.Name)))
	}
	s.sinceSnapshot += len(batch)
	if s.compactEvery > 0 && s.sinceSnapshot >= s.compactEvery {
		s.compact(ctx)
	}

	// Ack the sender.
	om.client.sendMsg(ServerMessage{
		Type:    MsgAck,
		Version: s.version,
		NextOSN: s.doc.NextOSN(),
	})

	// Broadcast to other clients.
	for c := range s.clients {
		if c != om.client {
			c.sendMsg(ServerMessage{
				Type:     MsgOps,
				DocID:    s.docID,
				Version:  s.version,
				Ops:      batch,
				ClientID: om.client.ID,
			})
		}
	}
}

func (s *Session) reject(ctx context.Context, c *Client, kind string, msg ServerMessage) {
	s.metrics.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
	c.sendMsg(msg)
}

// compact stores the extracted log as the document snapshot.
func (s *Session) compact(ctx context.Context) {
	log, err := s.doc.Extract()
	if err != nil {
		s.log.Error(err, "extract snapshot", "version", s.version)
		return
	}
	snap := store.Snapshot{Log: log, Version: s.version, NextOSN: s.doc.NextOSN()}
	if err := s.store.SaveSnapshot(ctx, s.docID, snap); err != nil {
		s.log.Error(err, "save snapshot", "version", s.version)
		return
	}
	s.log.V(1).Info("compacted", "version", s.version, "operations", len(log))
	s.sinceSnapshot = 0
}

func (s *Session) clientInfos() []ClientInfo {
	infos := make([]ClientInfo, 0, len(s.clients))
	for c := range s.clients {
		infos = append(infos, c.Info())
	}
	return infos
}
