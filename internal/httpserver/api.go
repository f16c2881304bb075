package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"log/slog"

	"mirror-backend/internal/storage"
	"mirror-backend/internal/ws"
)

type api struct {
	logger    *slog.Logger
	store     Store
	wsManager *ws.Manager
	uploadDir string
	now       func() time.Time
}

func newAPI(logger *slog.Logger, store Store, wsManager *ws.Manager, uploadDir string) *api {
	return &api{
		logger:    logger.With("component", "api"),
		store:     store,
		wsManager: wsManager,
		uploadDir: uploadDir,
		now:       time.Now,
	}
}

type apiError struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeAPIError(w http.ResponseWriter, code ErrorCode, message string) {
	writeJSON(w, httpStatusForCode(code), apiError{
		Error: message,
		Code:  string(code),
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected extra JSON input")
	}
	return nil
}

func splitPath(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

func (a *api) displayTime() string {
	return a.now().Format("15:04")
}

type userPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	About  string `json:"about"`
	Phone  string `json:"phone"`
	Avatar string `json:"avatar,omitempty"`
}

type messagePayload struct {
	Text     string `json:"text"`
	Type     string `json:"type"`
	Time     string `json:"time"`
	FileURL  string `json:"fileUrl,omitempty"`
	IsImage  bool   `json:"isImage,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

type chatPayload struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Time        string           `json:"time"`
	LastMessage string           `json:"lastMessage"`
	Messages    []messagePayload `json:"messages"`
}

func toUserPayload(u storage.UserRow) userPayload {
	p := userPayload{ID: u.ID, Name: u.Name, About: u.About, Phone: u.Phone}
	if u.Avatar != nil {
		p.Avatar = *u.Avatar
	}
	return p
}

func toMessagePayload(m storage.MessageRow) messagePayload {
	p := messagePayload{Text: m.Text, Type: m.Type, Time: m.DisplayTime, IsImage: m.IsImage}
	if m.FileURL != nil {
		p.FileURL = *m.FileURL
	}
	if m.FileName != nil {
		p.FileName = *m.FileName
	}
	return p
}

func toChatPayload(c storage.ChatWithMessages) chatPayload {
	msgs := make([]messagePayload, 0, len(c.Messages))
	for _, m := range c.Messages {
		msgs = append(msgs, toMessagePayload(m))
	}
	return chatPayload{
		ID:          c.Chat.ID,
		Name:        c.Chat.Name,
		Time:        c.Chat.DisplayTime,
		LastMessage: c.Chat.LastMessage,
		Messages:    msgs,
	}
}

type initResponse struct {
	User     userPayload   `json:"user"`
	Contacts []userPayload `json:"contacts"`
	Chats    []chatPayload `json:"chats"`
}

func (a *api) handleInit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeAPIError(w, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	snap, err := a.store.Snapshot(r.Context())
	if err != nil {
		a.logger.Error("snapshot failed", "error", err)
		writeAPIError(w, ErrCodeInternal, "internal error")
		return
	}

	resp := initResponse{
		User:     toUserPayload(snap.User),
		Contacts: make([]userPayload, 0, len(snap.Contacts)),
		Chats:    make([]chatPayload, 0, len(snap.Chats)),
	}
	for _, c := range snap.Contacts {
		resp.Contacts = append(resp.Contacts, toUserPayload(c))
	}
	for _, c := range snap.Chats {
		resp.Chats = append(resp.Chats, toChatPayload(c))
	}

	writeJSON(w, http.StatusOK, resp)
}

type profileRequest struct {
	Name   *string `json:"name,omitempty"`
	About  *string `json:"about,omitempty"`
	Phone  *string `json:"phone,omitempty"`
	Avatar *string `json:"avatar,omitempty"`
}

type profileResponse struct {
	User userPayload `json:"user"`
}

func (a *api) handleProfile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, ErrCodeValidation, "invalid JSON body")
		return
	}

	user, err := a.store.MergeProfile(r.Context(), storage.ProfilePatch{
		Name:   req.Name,
		About:  req.About,
		Phone:  req.Phone,
		Avatar: req.Avatar,
	}, a.now().UnixMilli())
	if err != nil {
		a.logger.Error("merge profile failed", "error", err)
		writeAPIError(w, ErrCodeInternal, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, profileResponse{User: toUserPayload(user)})
}

func (a *api) handleChatSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/chats/")
	parts := splitPath(rest)

	switch len(parts) {
	case 1:
		if r.Method != http.MethodGet {
			writeAPIError(w, ErrCodeMethodNotAllowed, "method not allowed")
			return
		}
		a.handleGetChat(w, r, parts[0])
	case 2:
		if r.Method != http.MethodPost {
			writeAPIError(w, ErrCodeMethodNotAllowed, "method not allowed")
			return
		}
		switch parts[1] {
		case "messages":
			a.handleCreateMessage(w, r, parts[0])
		case "files":
			a.handleUploadFile(w, r, parts[0])
		default:
			writeAPIError(w, ErrCodeNotFound, "not found")
		}
	default:
		writeAPIError(w, ErrCodeNotFound, "not found")
	}
}

func (a *api) handleGetChat(w http.ResponseWriter, r *http.Request, chatID string) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		writeAPIError(w, ErrCodeValidation, "invalid chatId")
		return
	}

	chat, err := a.store.GetChat(r.Context(), chatID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeAPIError(w, ErrCodeChatNotFound, "Chat not found")
			return
		}
		a.logger.Error("get chat failed", "error", err)
		writeAPIError(w, ErrCodeInternal, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, toChatPayload(chat))
}

type createMessageRequest struct {
	Text string `json:"text"`
	Type string `json:"type"`
}

type createMessageResponse struct {
	OK bool `json:"ok"`
}

func (a *api) handleCreateMessage(w http.ResponseWriter, r *http.Request, chatID string) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		writeAPIError(w, ErrCodeValidation, "invalid chatId")
		return
	}

	var req createMessageRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, ErrCodeValidation, "invalid JSON body")
		return
	}

	switch req.Type {
	case "", storage.MessageTypeSent, storage.MessageTypeReceived:
	default:
		writeAPIError(w, ErrCodeValidation, "invalid message type")
		return
	}

	msg, err := a.store.AppendMessage(r.Context(), chatID, req.Text, req.Type, a.displayTime(), a.now().UnixMilli())
	if err != nil {
		a.logger.Error("append message failed", "error", err)
		writeAPIError(w, ErrCodeInternal, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, createMessageResponse{OK: true})

	a.broadcast(ws.Envelope{
		Type:   "message.created",
		ChatID: chatID,
		Payload: map[string]any{
			"message": toMessagePayload(msg),
		},
	})
}

type startChatRequest struct {
	Name string `json:"name"`
}

func (a *api) handleStartChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeAPIError(w, ErrCodeMethodNotAllowed, "method not allowed")
		return
	}

	var req startChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAPIError(w, ErrCodeValidation, "invalid JSON body")
		return
	}

	chat, err := a.store.StartChat(r.Context(), strings.TrimSpace(req.Name), a.displayTime(), a.now().UnixMilli())
	if err != nil {
		a.logger.Error("start chat failed", "error", err)
		writeAPIError(w, ErrCodeInternal, "internal error")
		return
	}

	payload := chatPayload{
		ID:          chat.ID,
		Name:        chat.Name,
		Time:        chat.DisplayTime,
		LastMessage: chat.LastMessage,
		Messages:    []messagePayload{},
	}
	writeJSON(w, http.StatusOK, payload)

	a.broadcast(ws.Envelope{
		Type:   "chat.created",
		ChatID: chat.ID,
		Payload: map[string]any{
			"chat": payload,
		},
	})
}

func (a *api) broadcast(env ws.Envelope) {
	if a.wsManager == nil {
		return
	}
	a.wsManager.Broadcast(env)
}
