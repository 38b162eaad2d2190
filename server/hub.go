package server

import (
	"context"
	"sync"

	"github.com/go-logr/logr"

	"github.com/alimasry/go-docops/engine"
	"github.com/alimasry/go-docops/store"
)

// Options tunes the sessions a Hub opens.
type Options struct {
	// CompactEvery stores a snapshot after that many operations; zero never
	// compacts.
	CompactEvery int
	// OpsPerSecond and Burst limit how fast one client submits operations.
	// Zero OpsPerSecond means unlimited.
	OpsPerSecond float64
	Burst        int
	// Engine configures every document a session loads.
	Engine []engine.Option
	Log    logr.Logger
}

type joinRequest struct {
	client *Client
	docID  string
}

// Hub manages document sessions and routes clients to the right session.
type Hub struct {
	store    store.DocumentStore
	opts     Options
	log      logr.Logger
	sessions map[string]*Session
	mu       sync.RWMutex

	joinDoc chan joinRequest
}

func NewHub(st store.DocumentStore, opts Options) *Hub {
	return &Hub{
		store:    st,
		opts:     opts,
		log:      opts.Log.WithName("hub"),
		sessions: make(map[string]*Session),
		joinDoc:  make(chan joinRequest, 64),
	}
}

// Run is the hub's main loop.
func (h *Hub) Run() {
	for req := range h.joinDoc {
		h.handleJoinDoc(req)
	}
}

func (h *Hub) handleJoinDoc(req joinRequest) {
	if req.docID == "" {
		req.client.sendError("missing document id")
		return
	}
	h.mu.Lock()
	s, ok := h.sessions[req.docID]
	if !ok {
		var err error
		s, err = openSession(context.Background(), req.docID, h.store, h.opts)
		if err != nil {
			h.log.Error(err, "failed to open document", "doc", req.docID)
			h.mu.Unlock()
			req.client.sendError("failed to load document")
			return
		}
		h.sessions[req.docID] = s
		go s.Run()
	}
	h.mu.Unlock()

	s.join <- req.client
}

// GetSession returns the session for a document, if active.
func (h *Hub) GetSession(docID string) *Session {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessions[docID]
}

// Close stops every session.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, s := range h.sessions {
		close(s.stop)
		delete(h.sessions, id)
	}
}
