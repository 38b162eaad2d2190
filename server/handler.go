package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/alimasry/go-docops/ops"
	"github.com/alimasry/go-docops/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// documentSummary is one entry of the document listing.
type documentSummary struct {
	ID              string `json:"id"`
	Version         int    `json:"version"`
	SnapshotVersion int    `json:"snapshotVersion"`
}

// documentLog is the operation log that rebuilds a stored document. Its shape
// is accepted by ops.LoadLog.
type documentLog struct {
	ID         string          `json:"id"`
	Version    int             `json:"version"`
	Operations []ops.Operation `json:"operations"`
}

// NewHandler creates the HTTP handler with all routes.
func NewHandler(hub *Hub) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /documents", hub.serveList)
	mux.HandleFunc("GET /documents/{id}", hub.serveDocument)

	// WebSocket endpoint.
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Error(err, "websocket upgrade")
			return
		}
		client := newClient(hub, conn)
		go client.WritePump()
		go client.ReadPump()
	})

	return otelhttp.NewHandler(mux, "docops")
}

func (h *Hub) serveList(w http.ResponseWriter, r *http.Request) {
	docs, err := h.store.List(r.Context())
	if err != nil {
		h.log.Error(err, "list documents")
		http.Error(w, "failed to list documents", http.StatusInternalServerError)
		return
	}
	out := make([]documentSummary, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentSummary{ID: d.ID, Version: d.Version, SnapshotVersion: d.Snapshot.Version})
	}
	writeJSON(w, out)
}

// serveDocument rebuilds the stored document and returns its extracted log.
// It reads the store, not the live session, so it may trail unflushed edits
// of a write-behind store.
func (h *Hub) serveDocument(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	doc, info, tail, err := loadDocument(r.Context(), h.store, id, h.opts.Engine)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.log.Error(err, "load document", "doc", id)
		http.Error(w, "failed to load document", http.StatusInternalServerError)
		return
	}
	log, err := doc.Extract()
	if err != nil {
		h.log.Error(err, "extract document", "doc", id)
		http.Error(w, "failed to extract document", http.StatusInternalServerError)
		return
	}
	if log == nil {
		log = []ops.Operation{}
	}
	writeJSON(w, documentLog{ID: id, Version: info.Snapshot.Version + tail, Operations: log})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
