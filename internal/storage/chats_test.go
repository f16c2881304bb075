package storage

import (
	"context"
	"errors"
	"testing"
)

func TestAppendMessage_CreatesChatWithPlaceholderName(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	msg, err := store.AppendMessage(ctx, "unknownId", "hi", "", "12:00", 1000)
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}
	if msg.Type != MessageTypeSent {
		t.Fatalf("msg.Type = %q, want %q", msg.Type, MessageTypeSent)
	}
	if msg.Seq != 1 {
		t.Fatalf("msg.Seq = %d, want 1", msg.Seq)
	}

	chat, err := store.GetChat(ctx, "unknownId")
	if err != nil {
		t.Fatalf("GetChat() error = %v", err)
	}
	if chat.Chat.Name != PlaceholderChatName {
		t.Fatalf("chat.Name = %q, want %q", chat.Chat.Name, PlaceholderChatName)
	}
	if chat.Chat.LastMessage != "hi" {
		t.Fatalf("chat.LastMessage = %q, want %q", chat.Chat.LastMessage, "hi")
	}
	if len(chat.Messages) != 1 || chat.Messages[0].Text != "hi" {
		t.Fatalf("messages = %+v, want single 'hi'", chat.Messages)
	}
}

func TestAppendMessage_PreservesAppendOrderAndSummary(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	// Same nowMs on purpose: ordering must come from the log, not the clock.
	for _, text := range []string{"one", "two", "three"} {
		if _, err := store.AppendMessage(ctx, "c1", text, MessageTypeSent, "09:30", 5000); err != nil {
			t.Fatalf("AppendMessage(%q) error = %v", text, err)
		}
	}

	chat, err := store.GetChat(ctx, "c1")
	if err != nil {
		t.Fatalf("GetChat() error = %v", err)
	}
	if len(chat.Messages) != 3 {
		t.Fatalf("len(messages) = %d, want 3", len(chat.Messages))
	}
	for i, want := range []string{"one", "two", "three"} {
		if chat.Messages[i].Text != want {
			t.Fatalf("messages[%d].Text = %q, want %q", i, chat.Messages[i].Text, want)
		}
	}
	if chat.Chat.LastMessage != "three" {
		t.Fatalf("chat.LastMessage = %q, want %q", chat.Chat.LastMessage, "three")
	}
	if chat.Chat.DisplayTime != "09:30" {
		t.Fatalf("chat.DisplayTime = %q, want %q", chat.Chat.DisplayTime, "09:30")
	}
}

func TestGetChat_UnknownID(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.GetChat(ctx, "nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetChat() error = %v, want ErrNotFound", err)
	}
}

func TestSetMessageFile_RewritesFileFields(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	msg, err := store.AppendMessage(ctx, "c2", "", MessageTypeSent, "10:00", 1000)
	if err != nil {
		t.Fatalf("AppendMessage() error = %v", err)
	}

	if err := store.SetMessageFile(ctx, "c2", msg.ID, "/uploads/pic-1-2.png", true, "pic.png", 2000); err != nil {
		t.Fatalf("SetMessageFile() error = %v", err)
	}

	chat, err := store.GetChat(ctx, "c2")
	if err != nil {
		t.Fatalf("GetChat() error = %v", err)
	}
	got := chat.Messages[0]
	if got.FileURL == nil || *got.FileURL != "/uploads/pic-1-2.png" {
		t.Fatalf("FileURL = %v, want /uploads/pic-1-2.png", got.FileURL)
	}
	if !got.IsImage {
		t.Fatalf("IsImage = false, want true")
	}
	if got.FileName == nil || *got.FileName != "pic.png" {
		t.Fatalf("FileName = %v, want pic.png", got.FileName)
	}

	if err := store.SetMessageFile(ctx, "c2", "missing", "/x", false, "x", 2000); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SetMessageFile(missing) error = %v, want ErrNotFound", err)
	}
}

func TestStartChat_DefaultsAndSeedText(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	chat, err := store.StartChat(ctx, "", "11:11", 1000)
	if err != nil {
		t.Fatalf("StartChat() error = %v", err)
	}
	if chat.Name != "New Chat" {
		t.Fatalf("chat.Name = %q, want %q", chat.Name, "New Chat")
	}
	if chat.LastMessage != "Chat started." {
		t.Fatalf("chat.LastMessage = %q, want %q", chat.LastMessage, "Chat started.")
	}
	if chat.ID == "" {
		t.Fatalf("chat.ID is empty")
	}

	named, err := store.StartChat(ctx, "Emma Rossi", "11:12", 2000)
	if err != nil {
		t.Fatalf("StartChat(named) error = %v", err)
	}
	if named.Name != "Emma Rossi" {
		t.Fatalf("named.Name = %q, want %q", named.Name, "Emma Rossi")
	}
	if named.ID == chat.ID {
		t.Fatalf("chat IDs collided: %q", named.ID)
	}
}
