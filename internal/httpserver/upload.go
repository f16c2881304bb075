package httpserver

import (
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"mirror-backend/internal/storage"
	"mirror-backend/internal/ws"
)

const maxUploadSize = 50 << 20 // 50MB

type uploadResponse struct {
	FileURL  string `json:"fileUrl"`
	IsImage  bool   `json:"isImage"`
	FileName string `json:"fileName"`
}

func (a *api) handleUploadFile(w http.ResponseWriter, r *http.Request, chatID string) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		writeAPIError(w, ErrCodeValidation, "invalid chatId")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeAPIError(w, ErrCodeValidation, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeAPIError(w, ErrCodeUploadMissingFile, "No file uploaded")
		return
	}
	defer file.Close()

	isImage := strings.HasPrefix(header.Header.Get("Content-Type"), "image/")
	storedName := uploadFilename(header.Filename, a.now().UnixMilli())

	uploadDir := a.uploadDir
	if uploadDir == "" {
		uploadDir = "./uploads"
	}
	if err := os.MkdirAll(uploadDir, 0755); err != nil {
		a.logger.Error("failed to create upload dir", "error", err)
		writeAPIError(w, ErrCodeInternal, "internal error")
		return
	}

	destPath := filepath.Join(uploadDir, storedName)
	dest, err := os.Create(destPath)
	if err != nil {
		a.logger.Error("failed to create file", "error", err)
		writeAPIError(w, ErrCodeInternal, "internal error")
		return
	}
	defer dest.Close()

	if _, err := io.Copy(dest, file); err != nil {
		a.logger.Error("failed to write file", "error", err)
		os.Remove(destPath)
		writeAPIError(w, ErrCodeInternal, "internal error")
		return
	}

	fileURL := "/uploads/" + storedName
	nowMs := a.now().UnixMilli()

	// Record the file message in the chat log so re-init reflects it.
	msg, err := a.store.AppendMessage(r.Context(), chatID, header.Filename, storage.MessageTypeSent, a.displayTime(), nowMs)
	if err != nil {
		a.logger.Error("append file message failed", "error", err)
		writeAPIError(w, ErrCodeInternal, "internal error")
		return
	}
	if err := a.store.SetMessageFile(r.Context(), chatID, msg.ID, fileURL, isImage, header.Filename, nowMs); err != nil {
		a.logger.Error("set message file failed", "error", err)
		writeAPIError(w, ErrCodeInternal, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, uploadResponse{
		FileURL:  fileURL,
		IsImage:  isImage,
		FileName: header.Filename,
	})

	msg.FileURL = &fileURL
	msg.IsImage = isImage
	fileName := header.Filename
	msg.FileName = &fileName
	a.broadcast(ws.Envelope{
		Type:   "message.created",
		ChatID: chatID,
		Payload: map[string]any{
			"message": toMessagePayload(msg),
		},
	})
}

// uploadFilename builds "<sanitized base>-<ms>-<rand><ext>" so repeated
// uploads of the same file never collide on disk.
func uploadFilename(original string, nowMs int64) string {
	ext := filepath.Ext(original)
	base := sanitizeFilename(strings.TrimSuffix(filepath.Base(original), ext))
	if base == "" {
		base = "file"
	}
	return fmt.Sprintf("%s-%d-%d%s", base, nowMs, rand.Intn(1_000_000_000), ext)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "..", "")
	name = strings.Join(strings.Fields(name), "_")
	if len(name) > 255 {
		name = name[:255]
	}
	return name
}
