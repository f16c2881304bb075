package httpserver

import (
	"context"
	"net/http"

	"log/slog"

	"mirror-backend/internal/storage"
	"mirror-backend/internal/ws"
)

type Store interface {
	Ready(ctx context.Context) error

	Snapshot(ctx context.Context) (storage.Snapshot, error)
	MergeProfile(ctx context.Context, patch storage.ProfilePatch, nowMs int64) (storage.UserRow, error)

	GetChat(ctx context.Context, chatID string) (storage.ChatWithMessages, error)
	AppendMessage(ctx context.Context, chatID, text, msgType, displayTime string, nowMs int64) (storage.MessageRow, error)
	SetMessageFile(ctx context.Context, chatID, messageID, fileURL string, isImage bool, fileName string, nowMs int64) error
	StartChat(ctx context.Context, name, displayTime string, nowMs int64) (storage.ChatRow, error)
}

func NewHandler(logger *slog.Logger, store Store, wsManager *ws.Manager, uploadDir string) http.Handler {
	mux := http.NewServeMux()
	api := newAPI(logger, store, wsManager, uploadDir)

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		if err := store.Ready(r.Context()); err != nil {
			logger.Warn("ready check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("not ready"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if wsManager != nil {
		mux.Handle("/api/ws", wsManager.Handler())
	}
	mux.HandleFunc("/api/init", api.handleInit)
	mux.HandleFunc("/api/profile", api.handleProfile)
	mux.HandleFunc("/api/chats/", api.handleChatSubroutes)
	mux.HandleFunc("/api/start-chat", api.handleStartChat)

	// Serve uploaded files
	if uploadDir != "" {
		fs := http.FileServer(http.Dir(uploadDir))
		mux.Handle("/uploads/", http.StripPrefix("/uploads/", fs))
	}

	return chain(
		mux,
		recoverMiddleware(logger),
		requestLogMiddleware(logger),
		corsMiddleware(),
	)
}
