package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// ChatWithMessages is a chat row plus its ordered message log.
type ChatWithMessages struct {
	Chat     ChatRow
	Messages []MessageRow
}

// Snapshot is the full state returned by GET /api/init.
type Snapshot struct {
	User     UserRow
	Contacts []UserRow
	Chats    []ChatWithMessages
}

func (s *Store) Snapshot(ctx context.Context) (Snapshot, error) {
	if s == nil || s.db == nil {
		return Snapshot{}, fmt.Errorf("db not initialized")
	}

	user, err := s.SelfUser(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	contacts, err := s.ListContacts(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	chats, err := s.ListChats(ctx)
	if err != nil {
		return Snapshot{}, err
	}

	return Snapshot{User: user, Contacts: contacts, Chats: chats}, nil
}

func (s *Store) ListChats(ctx context.Context) ([]ChatWithMessages, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("db not initialized")
	}

	q := `SELECT id, counterpart_id, name, display_time, last_message, created_at_ms, updated_at_ms
		FROM chats ORDER BY created_at_ms ASC;`
	rows, err := s.db.QueryContext(ctx, s.rebind(q))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []ChatWithMessages
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, ChatWithMessages{Chat: c})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range chats {
		msgs, err := s.listMessages(ctx, chats[i].Chat.ID)
		if err != nil {
			return nil, err
		}
		chats[i].Messages = msgs
	}
	return chats, nil
}

func (s *Store) GetChat(ctx context.Context, chatID string) (ChatWithMessages, error) {
	if s == nil || s.db == nil {
		return ChatWithMessages{}, fmt.Errorf("db not initialized")
	}

	q := `SELECT id, counterpart_id, name, display_time, last_message, created_at_ms, updated_at_ms
		FROM chats WHERE id = ?;`
	row := s.db.QueryRowContext(ctx, s.rebind(q), chatID)
	c, err := scanChat(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return ChatWithMessages{}, fmt.Errorf("%w: chat", ErrNotFound)
		}
		return ChatWithMessages{}, err
	}

	msgs, err := s.listMessages(ctx, chatID)
	if err != nil {
		return ChatWithMessages{}, err
	}
	return ChatWithMessages{Chat: c, Messages: msgs}, nil
}

// AppendMessage appends to a chat's log, creating the chat with a
// placeholder name when the ID has never been seen. The chat summary
// fields are updated in the same transaction so they always match the
// last log entry.
func (s *Store) AppendMessage(ctx context.Context, chatID, text, msgType, displayTime string, nowMs int64) (MessageRow, error) {
	if s == nil || s.db == nil {
		return MessageRow{}, fmt.Errorf("db not initialized")
	}
	if chatID == "" {
		return MessageRow{}, fmt.Errorf("missing chatID")
	}
	if msgType == "" {
		msgType = MessageTypeSent
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return MessageRow{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	existsQ := rebindQuery(s.driver, `SELECT COUNT(*) FROM chats WHERE id = ?;`)
	if err := tx.QueryRowContext(ctx, existsQ, chatID).Scan(&exists); err != nil {
		return MessageRow{}, err
	}
	if exists == 0 {
		insertChatQ := rebindQuery(s.driver, `INSERT INTO chats (id, name, display_time, last_message, created_at_ms, updated_at_ms)
			VALUES (?, ?, ?, ?, ?, ?);`)
		if _, err := tx.ExecContext(ctx, insertChatQ, chatID, PlaceholderChatName, displayTime, text, nowMs, nowMs); err != nil {
			return MessageRow{}, err
		}
	}

	var seq int64
	seqQ := rebindQuery(s.driver, `SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE chat_id = ?;`)
	if err := tx.QueryRowContext(ctx, seqQ, chatID).Scan(&seq); err != nil {
		return MessageRow{}, err
	}

	msg := MessageRow{
		ID:          uuid.NewString(),
		ChatID:      chatID,
		Seq:         seq,
		Text:        text,
		Type:        msgType,
		DisplayTime: displayTime,
		CreatedAtMs: nowMs,
	}

	insertQ := rebindQuery(s.driver, `INSERT INTO messages (id, chat_id, seq, text, type, display_time, created_at_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?);`)
	if _, err := tx.ExecContext(ctx, insertQ,
		msg.ID, msg.ChatID, msg.Seq, msg.Text, msg.Type, msg.DisplayTime, msg.CreatedAtMs,
	); err != nil {
		return MessageRow{}, err
	}

	updateQ := rebindQuery(s.driver, `UPDATE chats SET last_message = ?, display_time = ?, updated_at_ms = ? WHERE id = ?;`)
	if _, err := tx.ExecContext(ctx, updateQ, text, displayTime, nowMs, chatID); err != nil {
		return MessageRow{}, err
	}

	if err := tx.Commit(); err != nil {
		return MessageRow{}, err
	}
	return msg, nil
}

// SetMessageFile rewrites the file reference fields of one message.
func (s *Store) SetMessageFile(ctx context.Context, chatID, messageID, fileURL string, isImage bool, fileName string, nowMs int64) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db not initialized")
	}

	isImageVal := 0
	if isImage {
		isImageVal = 1
	}

	q := `UPDATE messages SET file_url = ?, is_image = ?, file_name = ? WHERE id = ? AND chat_id = ?;`
	res, err := s.db.ExecContext(ctx, s.rebind(q), fileURL, isImageVal, fileName, messageID, chatID)
	if err != nil {
		return err
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("%w: message", ErrNotFound)
	}

	updateQ := `UPDATE chats SET last_message = ?, updated_at_ms = ? WHERE id = ?;`
	_, err = s.db.ExecContext(ctx, s.rebind(updateQ), fileName, nowMs, chatID)
	return err
}

// StartChat creates an empty named chat (POST /api/start-chat).
func (s *Store) StartChat(ctx context.Context, name, displayTime string, nowMs int64) (ChatRow, error) {
	if s == nil || s.db == nil {
		return ChatRow{}, fmt.Errorf("db not initialized")
	}
	if name == "" {
		name = "New Chat"
	}

	chat := ChatRow{
		ID:          uuid.NewString(),
		Name:        name,
		DisplayTime: displayTime,
		LastMessage: "Chat started.",
		CreatedAtMs: nowMs,
		UpdatedAtMs: nowMs,
	}

	q := `INSERT INTO chats (id, name, display_time, last_message, created_at_ms, updated_at_ms)
		VALUES (?, ?, ?, ?, ?, ?);`
	if _, err := s.db.ExecContext(ctx, s.rebind(q),
		chat.ID, chat.Name, chat.DisplayTime, chat.LastMessage, chat.CreatedAtMs, chat.UpdatedAtMs,
	); err != nil {
		return ChatRow{}, err
	}
	return chat, nil
}

func (s *Store) listMessages(ctx context.Context, chatID string) ([]MessageRow, error) {
	q := `SELECT id, chat_id, seq, text, type, display_time, file_url, is_image, file_name, created_at_ms
		FROM messages WHERE chat_id = ? ORDER BY seq ASC;`
	rows, err := s.db.QueryContext(ctx, s.rebind(q), chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []MessageRow
	for rows.Next() {
		var m MessageRow
		var fileURL, fileName sql.NullString
		var isImage int
		if err := rows.Scan(&m.ID, &m.ChatID, &m.Seq, &m.Text, &m.Type, &m.DisplayTime, &fileURL, &isImage, &fileName, &m.CreatedAtMs); err != nil {
			return nil, err
		}
		if fileURL.Valid {
			m.FileURL = &fileURL.String
		}
		if fileName.Valid {
			m.FileName = &fileName.String
		}
		m.IsImage = isImage == 1
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return msgs, nil
}

func scanChat(row rowScanner) (ChatRow, error) {
	var c ChatRow
	var counterpart sql.NullString
	if err := row.Scan(&c.ID, &counterpart, &c.Name, &c.DisplayTime, &c.LastMessage, &c.CreatedAtMs, &c.UpdatedAtMs); err != nil {
		return ChatRow{}, err
	}
	if counterpart.Valid {
		c.CounterpartID = &counterpart.String
	}
	return c, nil
}
