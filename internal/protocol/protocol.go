// Package protocol defines the history feed messages exchanged over WebSocket.
package protocol

import (
	"encoding/json"

	"grandexchange-api/internal/model"
)

const Version = "1.0"

// Message types.
const (
	TypeHello    = "HELLO"
	TypeSnapshot = "HISTORY_SNAPSHOT"
	TypeDelta    = "HISTORY_DELTA"
	TypeBadge    = "HISTORY_BADGE"
	TypeAck      = "HISTORY_ACK"
	TypeError    = "ERROR"
)

// Error codes.
const (
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrUnauthorized = "E_UNAUTHORIZED"
	ErrInternal     = "E_INTERNAL"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	Token           string `json:"token"`
}

// HISTORY_ACK (client -> server)
type AckMsg struct {
	Type      string `json:"type"`
	Timestamp int64  `json:"timestamp"`
}

// HISTORY_SNAPSHOT (server -> client)
type SnapshotMsg struct {
	Type            string                   `json:"type"`
	ProtocolVersion string                   `json:"protocol_version"`
	Snapshot        model.HistoryTabSnapshot `json:"snapshot"`
}

// HISTORY_DELTA (server -> client)
type DeltaMsg struct {
	Type  string             `json:"type"`
	Delta model.HistoryDelta `json:"delta"`
}

// HISTORY_BADGE (server -> client)
type BadgeMsg struct {
	Type  string             `json:"type"`
	Badge model.HistoryBadge `json:"badge"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewSnapshot(s model.HistoryTabSnapshot) SnapshotMsg {
	return SnapshotMsg{Type: TypeSnapshot, ProtocolVersion: Version, Snapshot: s}
}

func NewDelta(d model.HistoryDelta) DeltaMsg {
	return DeltaMsg{Type: TypeDelta, Delta: d}
}

func NewBadge(b model.HistoryBadge) BadgeMsg {
	return BadgeMsg{Type: TypeBadge, Badge: b}
}

func NewError(code, message string) ErrorMsg {
	return ErrorMsg{Type: TypeError, Code: code, Message: message}
}
