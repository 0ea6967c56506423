package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ContentForge/internal/ports"
)

const (
	defaultAPIBase = "https://api.telegram.org"
	maxCaptionLen  = 1024
	maxMessageLen  = 4096
)

// Notifier delivers drafts and reports to a Telegram chat via the bot API.
// Delivery failures are logged and reported as false, never as errors; the
// pipeline continues regardless of transport outcome.
type Notifier struct {
	apiBase  string
	botToken string
	chatID   string
	client   *http.Client
	logger   *slog.Logger
}

var _ ports.Transport = (*Notifier)(nil)

// NewNotifier registers bot token and chat identifier.
func NewNotifier(botToken, chatID string, log *slog.Logger) *Notifier {
	if log == nil {
		log = slog.Default()
	}
	return &Notifier{
		apiBase:  defaultAPIBase,
		botToken: botToken,
		chatID:   chatID,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   log,
	}
}

// SendMessage posts an HTML-formatted message. Returns whether the bot API
// accepted it.
func (n *Notifier) SendMessage(ctx context.Context, text string) bool {
	if n.botToken == "" || n.chatID == "" {
		n.logger.Warn("telegram notifier misconfigured, message dropped")
		return false
	}
	if len(text) > maxMessageLen {
		text = text[:maxMessageLen]
	}

	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	form.Set("parse_mode", "HTML")

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", n.apiBase, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		n.logger.Warn("telegram request build failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return n.do(req)
}

// SendDocument uploads a local file with an optional caption.
func (n *Notifier) SendDocument(ctx context.Context, path, caption string) bool {
	if n.botToken == "" || n.chatID == "" {
		n.logger.Warn("telegram notifier misconfigured, document dropped", "path", path)
		return false
	}

	file, err := os.Open(path)
	if err != nil {
		n.logger.Warn("telegram document missing", "path", path, "error", err)
		return false
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	if err := writer.WriteField("chat_id", n.chatID); err != nil {
		n.logger.Warn("telegram form build failed", "error", err)
		return false
	}
	if caption != "" {
		if len(caption) > maxCaptionLen {
			caption = caption[:maxCaptionLen]
		}
		if err := writer.WriteField("caption", caption); err != nil {
			n.logger.Warn("telegram form build failed", "error", err)
			return false
		}
	}

	part, err := writer.CreateFormFile("document", filepath.Base(path))
	if err != nil {
		n.logger.Warn("telegram form build failed", "error", err)
		return false
	}
	if _, err := io.Copy(part, file); err != nil {
		n.logger.Warn("telegram document read failed", "path", path, "error", err)
		return false
	}
	if err := writer.Close(); err != nil {
		n.logger.Warn("telegram form build failed", "error", err)
		return false
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendDocument", n.apiBase, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, &body)
	if err != nil {
		n.logger.Warn("telegram request build failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return n.do(req)
}

func (n *Notifier) do(req *http.Request) bool {
	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("telegram request failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		n.logger.Warn("telegram response unreadable", "status", resp.Status, "error", err)
		return false
	}
	if !result.OK {
		n.logger.Warn("telegram api rejected request", "description", result.Description)
		return false
	}

	return true
}
