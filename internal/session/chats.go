package session

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/google/uuid"
)

func newID() string {
	return uuid.NewString()
}

// StartChat opens a conversation with a directory contact. Chats are
// keyed by counterpart: starting a chat with someone who already has one
// reactivates it instead of creating a duplicate.
func (s *Session) StartChat(contactID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.chatByCounterpartLocked(contactID); existing != nil {
		s.activeChatID = existing.ID
		return existing.ID, nil
	}

	contact, ok := s.directory[contactID]
	if !ok {
		return "", ErrUserNotFound
	}

	now := s.displayTime()
	chat := &Chat{
		ID:            newID(),
		CounterpartID: contactID,
		Name:          contact.Name,
		Time:          now,
		LastMessage:   "Chat started.",
		Messages: []Message{
			{
				ID:   newID(),
				Text: "Hi " + firstNameToken(contact.Name) + ", nice to connect!",
				Type: MessageTypeSent,
				Time: now,
				Sync: SyncConfirmed,
			},
		},
	}
	s.chats = append(s.chats, chat)
	s.activeChatID = chat.ID
	return chat.ID, nil
}

// SendMessage appends text to the active chat optimistically, then
// pushes it to the backend. The message renders immediately as
// unconfirmed; the server round trip flips it to confirmed or failed.
// Network failure is recorded on the message, not surfaced as an error.
func (s *Session) SendMessage(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyMessage
	}

	s.mu.Lock()
	chat := s.chatByIDLocked(s.activeChatID)
	if chat == nil {
		s.mu.Unlock()
		return "", ErrNoActiveChat
	}

	now := s.displayTime()
	msg := Message{
		ID:   newID(),
		Text: text,
		Type: MessageTypeSent,
		Time: now,
		Sync: SyncUnconfirmed,
	}
	chat.Messages = append(chat.Messages, msg)
	chat.LastMessage = text
	chat.Time = now
	chatID := chat.ID
	s.mu.Unlock()

	s.syncMessage(ctx, chatID, msg.ID, text)
	return msg.ID, nil
}

// RetryMessage re-runs the server sync for a failed text send.
func (s *Session) RetryMessage(ctx context.Context, msgID string) error {
	s.mu.Lock()
	chat, msg := s.messageByIDLocked(msgID)
	if msg == nil {
		s.mu.Unlock()
		return ErrMessageNotFound
	}
	if msg.Sync != SyncFailed || msg.Type != MessageTypeSent || msg.FileURL != "" {
		s.mu.Unlock()
		return ErrMessageNotRetried
	}
	msg.Sync = SyncUnconfirmed
	chatID := chat.ID
	text := msg.Text
	s.mu.Unlock()

	s.syncMessage(ctx, chatID, msgID, text)
	return nil
}

// syncMessage posts the message, re-fetches the chat and reconciles the
// local copy. The local message keeps its ID through reconciliation; the
// server's chat summary wins over the optimistic one.
func (s *Session) syncMessage(ctx context.Context, chatID, msgID, text string) {
	if s.client == nil {
		s.markSync(chatID, msgID, SyncConfirmed)
		return
	}

	if err := s.client.PostMessage(ctx, chatID, text, MessageTypeSent); err != nil {
		s.logger.Error("message send failed", "error", err, "chatID", chatID, "messageID", msgID)
		s.markSync(chatID, msgID, SyncFailed)
		return
	}

	remote, err := s.client.GetChat(ctx, chatID)
	if err != nil {
		// The write landed; only the summary refresh is missing.
		s.logger.Warn("chat refresh failed", "error", err, "chatID", chatID)
		s.markSync(chatID, msgID, SyncConfirmed)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	chat := s.chatByIDLocked(chatID)
	if chat == nil {
		return
	}
	if _, msg := s.messageByIDLocked(msgID); msg != nil {
		msg.Sync = SyncConfirmed
	}
	chat.LastMessage = remote.LastMessage
	chat.Time = remote.Time
}

func (s *Session) markSync(chatID, msgID string, state SyncState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.chatByIDLocked(chatID) == nil {
		return
	}
	if _, msg := s.messageByIDLocked(msgID); msg != nil {
		msg.Sync = state
	}
}

// AttachFile sends a file into the active chat. The message appears
// immediately with an inline data-URI preview, then the bytes upload in
// multipart form and the message is rewritten to the served URL.
func (s *Session) AttachFile(ctx context.Context, fileName, mimeType string, data []byte) (string, error) {
	s.mu.Lock()
	chat := s.chatByIDLocked(s.activeChatID)
	if chat == nil {
		s.mu.Unlock()
		return "", ErrNoActiveChat
	}

	now := s.displayTime()
	msg := Message{
		ID:       newID(),
		Type:     MessageTypeSent,
		Time:     now,
		FileURL:  "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data),
		IsImage:  strings.HasPrefix(mimeType, "image/"),
		FileName: fileName,
		Sync:     SyncUnconfirmed,
	}
	chat.Messages = append(chat.Messages, msg)
	chat.LastMessage = fileName
	chat.Time = now
	chatID := chat.ID
	s.mu.Unlock()

	if s.client == nil {
		s.markSync(chatID, msg.ID, SyncConfirmed)
		return msg.ID, nil
	}

	ref, err := s.client.UploadFile(ctx, chatID, fileName, mimeType, data)
	if err != nil {
		s.logger.Error("file upload failed", "error", err, "chatID", chatID, "fileName", fileName)
		s.markSync(chatID, msg.ID, SyncFailed)
		return msg.ID, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, m := s.messageByIDLocked(msg.ID); m != nil {
		m.FileURL = ref.FileURL
		m.IsImage = ref.IsImage
		m.FileName = ref.FileName
		m.Sync = SyncConfirmed
	}
	return msg.ID, nil
}

// ProfilePatch carries partial profile edits; nil fields are untouched.
type ProfilePatch struct {
	Name   *string
	About  *string
	Phone  *string
	Avatar *string
}

// SaveProfile applies the patch locally and mirrors it to the backend.
// The local update always sticks; a backend failure is logged and
// swallowed.
func (s *Session) SaveProfile(ctx context.Context, patch ProfilePatch) User {
	s.mu.Lock()
	u := s.user
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.About != nil {
		u.About = *patch.About
	}
	if patch.Phone != nil {
		u.Phone = *patch.Phone
	}
	if patch.Avatar != nil {
		u.Avatar = *patch.Avatar
	}
	s.user = u
	s.directory[u.ID] = u
	s.mu.Unlock()

	if s.client != nil {
		if _, err := s.client.SaveProfile(ctx, patch); err != nil {
			s.logger.Warn("profile sync failed", "error", err)
		}
	}
	return u
}
