package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	commonerrors "github.com/ClipFinance/whale-monitor/common/errors"
	"github.com/ClipFinance/whale-monitor/common/types"
	"github.com/pkg/errors"
)

const (
	// DefaultTelegramAPIURL is the public Bot API endpoint.
	DefaultTelegramAPIURL = "https://api.telegram.org"
	// defaultTelegramTimeout bounds one sendMessage request.
	defaultTelegramTimeout = 10 * time.Second
	// maxErrorBody is how much of a rejected response is kept for the log.
	maxErrorBody = 4 << 10
)

// TelegramConfig holds the Bot API settings.
//
// Fields:
// - Token: the bot token, empty disables the notifier.
// - ChatID: the destination chat, empty disables the notifier.
// - APIURL: the Bot API base URL.
// - Proxy: optional HTTP proxy URL for outbound requests.
// - Timeout: the per-request timeout.
type TelegramConfig struct {
	Token   string
	ChatID  string
	APIURL  string
	Proxy   string
	Timeout time.Duration
}

type sendMessageRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

// StatusError is returned when the Bot API answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("telegram responded with status %d: %s", e.StatusCode, e.Body)
}

// Unwrap lets errors.Is match ErrDeliveryFailed.
func (e *StatusError) Unwrap() error {
	return commonerrors.ErrDeliveryFailed
}

// TelegramNotifier sends alerts through the Bot API sendMessage method.
type TelegramNotifier struct {
	token  string
	chatID string
	apiURL string
	client *http.Client
}

// NewTelegramNotifier creates a notifier. Missing credentials are not an error:
// the notifier is then disabled and never makes a request.
//
// Parameters:
// - cfg: the Bot API settings.
//
// Returns:
// - *TelegramNotifier: the notifier.
// - error: an error if the proxy URL cannot be parsed.
func NewTelegramNotifier(cfg TelegramConfig) (*TelegramNotifier, error) {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = DefaultTelegramAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTelegramTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, errors.Wrap(err, "failed to parse telegram proxy url")
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &TelegramNotifier{
		// stray whitespace in the chat id makes the Bot API answer 400
		token:  strings.TrimSpace(cfg.Token),
		chatID: strings.TrimSpace(cfg.ChatID),
		apiURL: apiURL,
		client: &http.Client{Timeout: timeout, Transport: transport},
	}, nil
}

// Enabled reports whether both the token and the chat id are set.
func (t *TelegramNotifier) Enabled() bool {
	return t.token != "" && t.chatID != ""
}

// Notify performs one sendMessage call. It is a no-op when the notifier is disabled.
//
// Parameters:
// - ctx: the context for managing the request.
// - msg: the alert to send.
//
// Returns:
// - error: a *StatusError for non-2xx answers, or the transport error.
func (t *TelegramNotifier) Notify(ctx context.Context, msg types.AlertMessage) error {
	if !t.Enabled() {
		return nil
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                t.chatID,
		Text:                  msg.Text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return errors.Wrap(err, "failed to marshal telegram message")
	}

	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", t.apiURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "failed to create telegram request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		// the url embeds the bot token, keep it out of logs
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return errors.Wrap(err, "failed to send telegram message")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(respBody))}
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
