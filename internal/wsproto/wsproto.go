// Package wsproto defines the JSON wire types exchanged over the duplex
// connection: inbound ClientMessage, outbound ServerMessage, and the small
// value types both embed.
package wsproto

import (
	"github.com/a-khushal/rustboard/internal/document"
	"github.com/a-khushal/rustboard/internal/operation"
	"github.com/a-khushal/rustboard/internal/token"
)

// Inbound message type tags.
const (
	TypeJoin     = "Join"
	TypeUpdate   = "Update"
	TypePresence = "Presence"
	TypePing     = "Ping"
)

// Outbound message type tags.
const (
	TypeJoined       = "Joined"
	TypeClientJoined = "ClientJoined"
	TypeClientLeft   = "ClientLeft"
	TypeError        = "Error"
	TypePong         = "Pong"
)

// ClientInfo is the roster entry shared across Join acks and broadcasts.
type ClientInfo struct {
	ID    string     `json:"id"`
	Name  string     `json:"name"`
	Color string     `json:"color"`
	Role  token.Role `json:"role"`
}

// ClientMessage is the tagged union of every inbound frame.
// Only the fields relevant to Type are populated.
type ClientMessage struct {
	Type string `json:"type"`

	// Join
	ClientID string `json:"client_id,omitempty"`
	Name     string `json:"name,omitempty"`
	Color    string `json:"color,omitempty"`

	// Update
	Operation *operation.Operation `json:"operation,omitempty"`

	// Presence
	Cursor      *document.Point `json:"cursor,omitempty"`
	SelectedIDs []uint64        `json:"selected_ids,omitempty"`
}

// ServerMessage is the tagged union of every outbound frame.
// Only the fields relevant to Type are populated.
type ServerMessage struct {
	Type string `json:"type"`

	// Joined
	ClientID string       `json:"client_id,omitempty"`
	Clients  []ClientInfo `json:"clients,omitempty"`
	Document string       `json:"document,omitempty"`

	// ClientJoined
	Client *ClientInfo `json:"client,omitempty"`

	// Update (also reuses ClientID above for the originator)
	Operation     *operation.Operation `json:"operation,omitempty"`
	Seq           uint64               `json:"seq,omitempty"`
	SourceLocalID *uint64              `json:"source_local_id,omitempty"`

	// Presence (also reuses ClientID above for the originator)
	Cursor      *document.Point `json:"cursor,omitempty"`
	SelectedIDs []uint64        `json:"selected_ids,omitempty"`

	// Error
	Message string `json:"message,omitempty"`
}
