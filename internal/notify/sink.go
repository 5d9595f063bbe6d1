package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Sink delivers a text message to the operator.
type Sink interface {
	Send(ctx context.Context, text string) error
}

// DefaultTelegramURL is the Telegram Bot API base URL.
const DefaultTelegramURL = "https://api.telegram.org"

// TelegramSink sends messages through the Telegram Bot API sendMessage method.
type TelegramSink struct {
	baseURL string
	token   string
	chatID  string
	client  *http.Client
}

// TelegramOptions configures a TelegramSink.
type TelegramOptions struct {
	BaseURL string // default DefaultTelegramURL
	Token   string
	ChatID  string
	Client  *http.Client
}

// NewTelegramSink creates a new Telegram sink.
func NewTelegramSink(opts TelegramOptions) *TelegramSink {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultTelegramURL
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	return &TelegramSink{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   opts.Token,
		chatID:  opts.ChatID,
		client:  client,
	}
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type sendMessageResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send posts text to the configured chat.
func (s *TelegramSink) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: s.chatID, Text: text})
	if err != nil {
		return errors.Wrap(err, "marshal message")
	}

	endpoint := s.baseURL + "/bot" + s.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// the request URL carries the bot token; keep it out of the error
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return errors.Wrap(err, "telegram request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	var result sendMessageResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return errors.Wrapf(err, "decode response (status %d)", resp.StatusCode)
	}
	if !result.OK {
		return errors.Errorf("telegram rejected message (status %d): %s", resp.StatusCode, result.Description)
	}

	return nil
}

// LogSink writes messages to a logger instead of delivering them.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new log sink.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Send logs text at info level.
func (s *LogSink) Send(_ context.Context, text string) error {
	s.logger.Info("notification", zap.String("text", text))
	return nil
}

var (
	_ Sink = (*TelegramSink)(nil)
	_ Sink = (*LogSink)(nil)
)
