// Package session implements the client half of the Mirror system: the
// identity resolver, the 6-digit directory search, the friend-request
// state machine and the optimistic chat store that mirrors itself to the
// backend over REST.
package session

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"log/slog"
)

var (
	ErrInvalidUserID     = errors.New("invalid user id")
	ErrUserNotFound      = errors.New("user not found")
	ErrAlreadyFriends    = errors.New("already friends")
	ErrRequestPending    = errors.New("friend request pending")
	ErrNoPendingRequest  = errors.New("no pending friend request")
	ErrNoActiveChat      = errors.New("no active chat")
	ErrChatNotFound      = errors.New("chat not found")
	ErrEmptyMessage      = errors.New("empty message")
	ErrMessageNotFound   = errors.New("message not found")
	ErrMessageNotRetried = errors.New("message cannot be retried")
)

// SyncState tags an optimistic local mutation with its remote fate.
type SyncState string

const (
	SyncUnconfirmed SyncState = "unconfirmed"
	SyncConfirmed   SyncState = "confirmed"
	SyncFailed      SyncState = "failed"
)

const (
	MessageTypeSent     = "sent"
	MessageTypeReceived = "received"
)

const (
	RequestStatusPending  = "pending"
	RequestStatusAccepted = "accepted"
)

type User struct {
	ID     string
	Name   string
	About  string
	Phone  string
	Avatar string
}

type Message struct {
	ID       string
	Text     string
	Type     string
	Time     string
	FileURL  string
	IsImage  bool
	FileName string
	Sync     SyncState
}

type Chat struct {
	ID            string
	CounterpartID string
	Name          string
	Time          string
	LastMessage   string
	Messages      []Message
}

type FriendRequest struct {
	From   string
	To     string
	Status string
}

var userIDPattern = regexp.MustCompile(`^\d{6}$`)

// ValidUserID reports whether id is exactly six decimal digits.
func ValidUserID(id string) bool {
	return userIDPattern.MatchString(id)
}

// relationKey canonicalizes an unordered user pair so friendship lookups
// are symmetric no matter who requested whom.
func relationKey(a, b string) string {
	ids := []string{a, b}
	sort.Strings(ids)
	return ids[0] + "-" + ids[1]
}

func firstNameToken(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return name
	}
	return fields[0]
}

// Session owns all client state: the directory, the friend-request log,
// the friendship set and the chat list. Every entry point takes the
// session mutex because UI events and network callbacks interleave.
type Session struct {
	mu      sync.Mutex
	logger  *slog.Logger
	client  *Client
	devices *DeviceStore
	now     func() time.Time

	user         User
	directory    map[string]User
	requests     []FriendRequest
	friendships  map[string]struct{}
	chats        []*Chat
	activeChatID string
}

// New builds an empty session. client may be nil, in which case the
// session runs purely on its local mock state (the original offline
// fallback). devices may be nil to skip device persistence.
func New(logger *slog.Logger, client *Client, devices *DeviceStore) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		logger:      logger.With("component", "session"),
		client:      client,
		devices:     devices,
		now:         time.Now,
		directory:   make(map[string]User),
		friendships: make(map[string]struct{}),
	}
}

func (s *Session) displayTime() string {
	return s.now().Format("15:04")
}

// Bootstrap adopts the server snapshot, or falls back to the built-in
// mock seed when the server is unreachable, then resolves the active
// identity. It never fails: every tier of the identity resolution has a
// constructible fallback.
func (s *Session) Bootstrap(ctx context.Context, opts ResolveOptions) User {
	s.mu.Lock()
	defer s.mu.Unlock()

	adopted := false
	if s.client != nil {
		snap, err := s.client.Init(ctx)
		if err != nil {
			s.logger.Warn("init fetch failed, using local seed", "error", err)
		} else {
			s.adoptSnapshotLocked(snap)
			adopted = true
		}
	}
	if !adopted {
		s.seedDirectoryLocked()
	}

	return s.resolveIdentityLocked(opts)
}

func (s *Session) adoptSnapshotLocked(snap InitSnapshot) {
	s.directory = make(map[string]User)
	u := userFromPayload(snap.User)
	s.directory[u.ID] = u
	s.user = u
	for _, c := range snap.Contacts {
		cu := userFromPayload(c)
		s.directory[cu.ID] = cu
	}

	s.chats = nil
	for _, c := range snap.Chats {
		chat := &Chat{
			ID:          c.ID,
			Name:        c.Name,
			Time:        c.Time,
			LastMessage: c.LastMessage,
		}
		for _, m := range c.Messages {
			chat.Messages = append(chat.Messages, Message{
				ID:       newID(),
				Text:     m.Text,
				Type:     m.Type,
				Time:     m.Time,
				FileURL:  m.FileURL,
				IsImage:  m.IsImage,
				FileName: m.FileName,
				Sync:     SyncConfirmed,
			})
		}
		s.chats = append(s.chats, chat)
	}
}

func (s *Session) seedDirectoryLocked() {
	s.directory = map[string]User{
		"100001": {ID: "100001", Name: "You"},
		"200001": {ID: "200001", Name: "Alex Chen"},
		"200002": {ID: "200002", Name: "Priya Patel"},
		"300001": {ID: "300001", Name: "Luis Martinez"},
		"300002": {ID: "300002", Name: "Emma Rossi"},
	}
	s.chats = nil
	s.requests = nil
	s.friendships = make(map[string]struct{})
}

// CurrentUser returns the resolved active user.
func (s *Session) CurrentUser() User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Contacts lists every directory entry except the active user, in stable
// ID order.
func (s *Session) Contacts() []User {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.directory))
	for id := range s.directory {
		if id == s.user.ID {
			continue
		}
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]User, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.directory[id])
	}
	return out
}

// Chats returns a copy of the chat list in creation order.
func (s *Session) Chats() []Chat {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Chat, 0, len(s.chats))
	for _, c := range s.chats {
		out = append(out, copyChat(c))
	}
	return out
}

// ActiveChat returns the currently open chat, if any.
func (s *Session) ActiveChat() (Chat, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.chatByIDLocked(s.activeChatID)
	if c == nil {
		return Chat{}, false
	}
	return copyChat(c), true
}

// OpenChat makes an existing chat the active one.
func (s *Session) OpenChat(chatID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chatByIDLocked(chatID) == nil {
		return fmt.Errorf("%w: %s", ErrChatNotFound, chatID)
	}
	s.activeChatID = chatID
	return nil
}

func (s *Session) chatByIDLocked(chatID string) *Chat {
	if chatID == "" {
		return nil
	}
	for _, c := range s.chats {
		if c.ID == chatID {
			return c
		}
	}
	return nil
}

func (s *Session) chatByCounterpartLocked(userID string) *Chat {
	if userID == "" {
		return nil
	}
	for _, c := range s.chats {
		if c.CounterpartID == userID {
			return c
		}
	}
	return nil
}

func (s *Session) messageByIDLocked(msgID string) (*Chat, *Message) {
	for _, c := range s.chats {
		for i := range c.Messages {
			if c.Messages[i].ID == msgID {
				return c, &c.Messages[i]
			}
		}
	}
	return nil, nil
}

func copyChat(c *Chat) Chat {
	out := *c
	out.Messages = make([]Message, len(c.Messages))
	copy(out.Messages, c.Messages)
	return out
}

func userFromPayload(p UserPayload) User {
	return User{ID: p.ID, Name: p.Name, About: p.About, Phone: p.Phone, Avatar: p.Avatar}
}
