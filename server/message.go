package server

import (
	"encoding/json"

	"github.com/alimasry/go-docops/ops"
)

// Message types exchanged over WebSocket.
const (
	MsgJoin  = "join"
	MsgLeave = "leave"
	MsgOps   = "ops"
	MsgAck   = "ack"
	MsgDoc   = "doc"
	MsgError = "error"
)

// ClientMessage is a message from client to server. Version is the document
// version the client's operations were written against.
type ClientMessage struct {
	Type    string          `json:"type"`
	DocID   string          `json:"docId,omitempty"`
	Version int             `json:"version"`
	Ops     []ops.Operation `json:"ops,omitempty"`
}

// ServerMessage is a message from server to client. A doc message carries the
// extracted log that rebuilds the document; an ops message carries the
// operations another client applied, stamped with their sequence numbers.
type ServerMessage struct {
	Type     string          `json:"type"`
	DocID    string          `json:"docId,omitempty"`
	Version  int             `json:"version"`
	NextOSN  int             `json:"nextOsn,omitempty"`
	Ops      []ops.Operation `json:"ops,omitempty"`
	ClientID string          `json:"clientId,omitempty"`
	Name     string          `json:"name,omitempty"`
	Color    string          `json:"color,omitempty"`
	Message  string          `json:"message,omitempty"`
	Kind     string          `json:"kind,omitempty"`
	Index    *int            `json:"index,omitempty"`
	Clients  []ClientInfo    `json:"clients,omitempty"`
}

// ClientInfo describes a connected user.
type ClientInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

// Encode serializes a ServerMessage to JSON bytes.
func (m ServerMessage) Encode() []byte {
	b, _ := json.Marshal(m)
	return b
}
