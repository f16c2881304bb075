package storage

import "errors"

const (
	MessageTypeSent     = "sent"
	MessageTypeReceived = "received"
)

// Name given to a chat the server has to invent because a message arrived
// for an ID it has never seen.
const PlaceholderChatName = "Chat"

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidUserID = errors.New("invalid user id")
)

type UserRow struct {
	ID          string
	Name        string
	About       string
	Phone       string
	Avatar      *string
	IsSelf      bool
	CreatedAtMs int64
	UpdatedAtMs int64
}

type ChatRow struct {
	ID            string
	CounterpartID *string
	Name          string
	DisplayTime   string
	LastMessage   string
	CreatedAtMs   int64
	UpdatedAtMs   int64
}

type MessageRow struct {
	ID          string
	ChatID      string
	Seq         int64
	Text        string
	Type        string
	DisplayTime string
	FileURL     *string
	IsImage     bool
	FileName    *string
	CreatedAtMs int64
}

// ProfilePatch carries the partial-update fields of POST /api/profile.
// Nil means "leave as is"; the merge is shallow by design.
type ProfilePatch struct {
	Name   *string
	About  *string
	Phone  *string
	Avatar *string
}
