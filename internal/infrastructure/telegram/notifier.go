package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"AdvisoryDispatch/internal/channel"
	"AdvisoryDispatch/internal/config"
	"AdvisoryDispatch/internal/ports"
)

// Notifier sends messages through the Telegram bot API. It doubles as the
// operator alert surface: terminal delivery failures land in the operator
// chat.
type Notifier struct {
	botToken       string
	operatorChatID string
	baseURL        string
	client         *http.Client
}

var _ ports.Channel = (*Notifier)(nil)
var _ ports.AlertNotifier = (*Notifier)(nil)

// NewNotifier registers bot token and operator chat identifier.
func NewNotifier(cfg config.TelegramConfig) *Notifier {
	return &Notifier{
		botToken:       cfg.BotToken,
		operatorChatID: cfg.OperatorChatID,
		baseURL:        "https://api.telegram.org",
		client:         &http.Client{Timeout: 5 * time.Second},
	}
}

// Name identifies the channel inside the registry.
func (n *Notifier) Name() string {
	return "telegram"
}

// SendText posts a message to the destination chat.
func (n *Notifier) SendText(ctx context.Context, destination, text string) (string, error) {
	form := url.Values{}
	form.Set("chat_id", destination)
	form.Set("text", text)
	return n.call(ctx, "sendMessage", form)
}

// SendTemplate is not supported by the bot API; templates are rendered before
// enqueueing, so receiving one here is a routing mistake, not a retry case.
func (n *Notifier) SendTemplate(ctx context.Context, destination, templateID, language string, params []string) (string, error) {
	return "", channel.Permanent("unsupported", fmt.Errorf("telegram channel cannot send template %s", templateID))
}

// SendImage posts a photo by URL with an optional caption.
func (n *Notifier) SendImage(ctx context.Context, destination, imageURL, caption string) (string, error) {
	form := url.Values{}
	form.Set("chat_id", destination)
	form.Set("photo", imageURL)
	if caption != "" {
		form.Set("caption", caption)
	}
	return n.call(ctx, "sendPhoto", form)
}

// Alert posts an operator-facing message to the configured operator chat.
func (n *Notifier) Alert(ctx context.Context, message string) error {
	if n.operatorChatID == "" {
		return fmt.Errorf("telegram operator chat is not configured")
	}
	_, err := n.SendText(ctx, n.operatorChatID, message)
	return err
}

func (n *Notifier) call(ctx context.Context, method string, form url.Values) (string, error) {
	if n.botToken == "" || n.client == nil {
		return "", channel.Permanent("misconfigured", fmt.Errorf("telegram notifier misconfigured"))
	}

	endpoint := fmt.Sprintf("%s/bot%s/%s", n.baseURL, n.botToken, method)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", channel.Transient("network", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		OK     bool `json:"ok"`
		Result struct {
			MessageID int64 `json:"message_id"`
		} `json:"result"`
		Description string `json:"description"`
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(&parsed); decodeErr != nil {
		if resp.StatusCode != http.StatusOK {
			return "", classifyStatus(resp.StatusCode, fmt.Errorf("telegram error: %s", resp.Status))
		}
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}

	if !parsed.OK {
		return "", classifyStatus(resp.StatusCode, fmt.Errorf("telegram error: %s", parsed.Description))
	}

	return fmt.Sprintf("%d", parsed.Result.MessageID), nil
}

func classifyStatus(status int, err error) error {
	code := fmt.Sprintf("http-%d", status)
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return channel.Transient(code, err)
	}
	return channel.Permanent(code, err)
}
