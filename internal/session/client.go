package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

const maxResponseBody = 4 << 20

// Client is the typed REST client for the backend API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 8 * time.Second},
	}
}

type UserPayload struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	About  string `json:"about"`
	Phone  string `json:"phone"`
	Avatar string `json:"avatar,omitempty"`
}

type MessagePayload struct {
	Text     string `json:"text"`
	Type     string `json:"type"`
	Time     string `json:"time"`
	FileURL  string `json:"fileUrl,omitempty"`
	IsImage  bool   `json:"isImage,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

type ChatPayload struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Time        string           `json:"time"`
	LastMessage string           `json:"lastMessage"`
	Messages    []MessagePayload `json:"messages"`
}

type InitSnapshot struct {
	User     UserPayload   `json:"user"`
	Contacts []UserPayload `json:"contacts"`
	Chats    []ChatPayload `json:"chats"`
}

// FileRef is the stored location of an uploaded file.
type FileRef struct {
	FileURL  string `json:"fileUrl"`
	IsImage  bool   `json:"isImage"`
	FileName string `json:"fileName"`
}

type apiErrorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func (c *Client) Init(ctx context.Context) (InitSnapshot, error) {
	var snap InitSnapshot
	err := c.doJSON(ctx, http.MethodGet, "/api/init", nil, &snap)
	return snap, err
}

func (c *Client) SaveProfile(ctx context.Context, patch ProfilePatch) (UserPayload, error) {
	body := map[string]any{}
	if patch.Name != nil {
		body["name"] = *patch.Name
	}
	if patch.About != nil {
		body["about"] = *patch.About
	}
	if patch.Phone != nil {
		body["phone"] = *patch.Phone
	}
	if patch.Avatar != nil {
		body["avatar"] = *patch.Avatar
	}

	var resp struct {
		User UserPayload `json:"user"`
	}
	err := c.doJSON(ctx, http.MethodPost, "/api/profile", body, &resp)
	return resp.User, err
}

func (c *Client) GetChat(ctx context.Context, chatID string) (ChatPayload, error) {
	var chat ChatPayload
	err := c.doJSON(ctx, http.MethodGet, "/api/chats/"+chatID, nil, &chat)
	return chat, err
}

func (c *Client) PostMessage(ctx context.Context, chatID, text, msgType string) error {
	body := map[string]string{"text": text, "type": msgType}
	var resp struct {
		OK bool `json:"ok"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/chats/"+chatID+"/messages", body, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("post message: server did not acknowledge")
	}
	return nil
}

func (c *Client) StartChat(ctx context.Context, name string) (ChatPayload, error) {
	var chat ChatPayload
	err := c.doJSON(ctx, http.MethodPost, "/api/start-chat", map[string]string{"name": name}, &chat)
	return chat, err
}

// UploadFile sends the file as multipart form data with its original
// name and content type, mirroring a browser form submit.
func (c *Client) UploadFile(ctx context.Context, chatID, fileName, mimeType string, data []byte) (FileRef, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(fileName)))
	if mimeType != "" {
		h.Set("Content-Type", mimeType)
	}
	part, err := mw.CreatePart(h)
	if err != nil {
		return FileRef{}, fmt.Errorf("create multipart: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return FileRef{}, fmt.Errorf("write multipart: %w", err)
	}
	if err := mw.Close(); err != nil {
		return FileRef{}, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chats/"+chatID+"/files", &buf)
	if err != nil {
		return FileRef{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var ref FileRef
	if err := c.do(req, &ref); err != nil {
		return FileRef{}, err
	}
	return ref, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", req.Method, req.URL.Path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiErrorBody
		if err := json.Unmarshal(b, &apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s %s: %s (%s)", req.Method, req.URL.Path, apiErr.Error, apiErr.Code)
		}
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", req.Method, req.URL.Path, err)
	}
	return nil
}

var quoteEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
