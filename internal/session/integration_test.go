package session

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mirror-backend/internal/httpserver"
	"mirror-backend/internal/storage"
)

// newBackend spins up the real HTTP API over an in-memory database.
func newBackend(t *testing.T) *httptest.Server {
	t.Helper()

	store, err := storage.Open(context.Background(), "sqlite::memory:", testLogger())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	srv := httptest.NewServer(httpserver.NewHandler(testLogger(), store, nil, t.TempDir()))
	t.Cleanup(srv.Close)
	return srv
}

func onlineSession(t *testing.T, srv *httptest.Server) *Session {
	t.Helper()

	s := New(testLogger(), NewClient(srv.URL), nil)
	s.now = func() time.Time {
		return time.Date(2024, 1, 2, 13, 45, 0, 0, time.UTC)
	}
	s.Bootstrap(context.Background(), ResolveOptions{})
	return s
}

func TestBootstrapAdoptsServerSnapshot(t *testing.T) {
	srv := newBackend(t)
	s := onlineSession(t, srv)

	u := s.CurrentUser()
	if u.ID != "100001" || u.Name != "You" {
		t.Fatalf("user = %+v", u)
	}
	if len(s.Contacts()) != 4 {
		t.Fatalf("contacts = %d, want 4 from server", len(s.Contacts()))
	}
}

func TestBootstrapFallsBackWhenServerUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(testLogger(), NewClient(srv.URL), nil)
	u := s.Bootstrap(context.Background(), ResolveOptions{})

	if u.ID != "100001" {
		t.Fatalf("user = %+v, want local seed default", u)
	}
	if len(s.Contacts()) != 4 {
		t.Fatalf("contacts = %d, want local seed", len(s.Contacts()))
	}
}

func TestSendMessageConfirmsAgainstServer(t *testing.T) {
	srv := newBackend(t)
	s := onlineSession(t, srv)
	ctx := context.Background()

	chatID, err := s.StartChat("200001")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	msgID, err := s.SendMessage(ctx, "hello Alex")
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	chat, _ := s.ActiveChat()
	last := chat.Messages[len(chat.Messages)-1]
	if last.ID != msgID {
		t.Fatal("optimistic message id must survive reconciliation")
	}
	if last.Sync != SyncConfirmed {
		t.Fatalf("sync = %q, want confirmed", last.Sync)
	}
	if chat.LastMessage != "hello Alex" {
		t.Fatalf("lastMessage = %q", chat.LastMessage)
	}

	// The server created the chat on first write under the same ID.
	remote, err := NewClient(srv.URL).GetChat(ctx, chatID)
	if err != nil {
		t.Fatalf("remote get: %v", err)
	}
	if len(remote.Messages) != 1 || remote.Messages[0].Text != "hello Alex" {
		t.Fatalf("remote messages = %+v", remote.Messages)
	}
}

func TestSendMessageFailureMarksFailedAndRetries(t *testing.T) {
	srv := newBackend(t)
	s := onlineSession(t, srv)
	ctx := context.Background()

	if _, err := s.StartChat("200001"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Point the session at a dead endpoint so the POST fails.
	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	good := s.client
	s.client = NewClient(dead.URL)

	msgID, err := s.SendMessage(ctx, "lost in transit")
	if err != nil {
		t.Fatalf("send must swallow network failure, got %v", err)
	}

	chat, _ := s.ActiveChat()
	last := chat.Messages[len(chat.Messages)-1]
	if last.ID != msgID || last.Sync != SyncFailed {
		t.Fatalf("message = %+v, want failed sync", last)
	}
	if chat.LastMessage != "lost in transit" {
		t.Fatalf("optimistic summary = %q must persist", chat.LastMessage)
	}

	s.client = good
	if err := s.RetryMessage(ctx, msgID); err != nil {
		t.Fatalf("retry: %v", err)
	}

	chat, _ = s.ActiveChat()
	last = chat.Messages[len(chat.Messages)-1]
	if last.Sync != SyncConfirmed {
		t.Fatalf("sync after retry = %q, want confirmed", last.Sync)
	}
}

func TestAttachFileUploadsAndRewrites(t *testing.T) {
	srv := newBackend(t)
	s := onlineSession(t, srv)
	ctx := context.Background()

	if _, err := s.StartChat("200001"); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Seed the server-side chat so the upload has a chat to attach to.
	if _, err := s.SendMessage(ctx, "incoming file"); err != nil {
		t.Fatalf("send: %v", err)
	}

	msgID, err := s.AttachFile(ctx, "pic.png", "image/png", []byte("png-bytes"))
	if err != nil {
		t.Fatalf("attach: %v", err)
	}

	chat, _ := s.ActiveChat()
	var found *Message
	for i := range chat.Messages {
		if chat.Messages[i].ID == msgID {
			found = &chat.Messages[i]
		}
	}
	if found == nil {
		t.Fatal("attached message missing")
	}
	if found.Sync != SyncConfirmed {
		t.Fatalf("sync = %q, want confirmed", found.Sync)
	}
	if !strings.HasPrefix(found.FileURL, "/uploads/") {
		t.Fatalf("fileUrl = %q, want rewritten to served URL", found.FileURL)
	}
	if !found.IsImage || found.FileName != "pic.png" {
		t.Fatalf("file fields = %+v", found)
	}

	// The stored bytes are served back under the rewritten URL.
	resp, err := http.Get(srv.URL + found.FileURL)
	if err != nil {
		t.Fatalf("fetch upload: %v", err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	if string(b) != "png-bytes" {
		t.Fatalf("served bytes = %q", b)
	}
}

func TestAttachFileFailureKeepsPreview(t *testing.T) {
	srv := newBackend(t)
	s := onlineSession(t, srv)
	ctx := context.Background()

	if _, err := s.StartChat("200001"); err != nil {
		t.Fatalf("start: %v", err)
	}

	dead := httptest.NewServer(http.NotFoundHandler())
	dead.Close()
	s.client = NewClient(dead.URL)

	msgID, err := s.AttachFile(ctx, "pic.png", "image/png", []byte("x"))
	if err != nil {
		t.Fatalf("attach must swallow upload failure, got %v", err)
	}

	chat, _ := s.ActiveChat()
	last := chat.Messages[len(chat.Messages)-1]
	if last.ID != msgID || last.Sync != SyncFailed {
		t.Fatalf("message = %+v, want failed sync", last)
	}
	if !strings.HasPrefix(last.FileURL, "data:image/png;base64,") {
		t.Fatalf("preview = %q must survive the failure", last.FileURL)
	}
}

func TestSaveProfileSyncsToServer(t *testing.T) {
	srv := newBackend(t)
	s := onlineSession(t, srv)
	ctx := context.Background()

	name := "Sam"
	s.SaveProfile(ctx, ProfilePatch{Name: &name})

	// A fresh session bootstrapping from the same backend sees the edit.
	other := onlineSession(t, srv)
	if got := other.CurrentUser().Name; got != "Sam" {
		t.Fatalf("server-side name = %q, want Sam", got)
	}
}
