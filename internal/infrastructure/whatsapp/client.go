package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"AdvisoryDispatch/internal/channel"
	"AdvisoryDispatch/internal/config"
	"AdvisoryDispatch/internal/ports"
)

// Client sends messages through the WhatsApp Cloud API.
type Client struct {
	baseURL           string
	phoneNumberID     string
	businessAccountID string
	token             string
	http              *http.Client
}

var _ ports.Channel = (*Client)(nil)

// NewClient creates a reusable API client.
func NewClient(cfg config.WhatsAppConfig) *Client {
	return &Client{
		baseURL:           cfg.BaseURL,
		phoneNumberID:     cfg.PhoneNumberID,
		businessAccountID: cfg.BusinessAccountID,
		token:             cfg.Token,
		http:              &http.Client{Timeout: 20 * time.Second},
	}
}

// Name identifies the channel inside the registry.
func (c *Client) Name() string {
	return "whatsapp"
}

// SendText delivers a plain text body.
func (c *Client) SendText(ctx context.Context, destination, text string) (string, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                destination,
		"type":              "text",
		"text":              map[string]any{"body": text},
	}
	return c.sendMessage(ctx, payload)
}

// SendTemplate delivers a pre-approved message template with body parameters.
func (c *Client) SendTemplate(ctx context.Context, destination, templateID, language string, params []string) (string, error) {
	components := []map[string]any{}
	if len(params) > 0 {
		parameters := make([]map[string]any, 0, len(params))
		for _, p := range params {
			parameters = append(parameters, map[string]any{"type": "text", "text": p})
		}
		components = append(components, map[string]any{"type": "body", "parameters": parameters})
	}

	if language == "" {
		language = "en"
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                destination,
		"type":              "template",
		"template": map[string]any{
			"name":       templateID,
			"language":   map[string]any{"code": language},
			"components": components,
		},
	}
	return c.sendMessage(ctx, payload)
}

// SendImage delivers an image by link with an optional caption.
func (c *Client) SendImage(ctx context.Context, destination, imageURL, caption string) (string, error) {
	image := map[string]any{"link": imageURL}
	if caption != "" {
		image["caption"] = caption
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                destination,
		"type":              "image",
		"image":             image,
	}
	return c.sendMessage(ctx, payload)
}

// TemplateExists checks the business account's template catalog by name.
func (c *Client) TemplateExists(ctx context.Context, name string) (bool, error) {
	endpoint := fmt.Sprintf("%s/%s/message_templates?name=%s",
		c.baseURL, c.businessAccountID, url.QueryEscape(name))

	var resp struct {
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return false, err
	}

	for _, t := range resp.Data {
		if t.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// CreateTemplate registers a new utility template with a plain body.
func (c *Client) CreateTemplate(ctx context.Context, name, language, body string) error {
	endpoint := fmt.Sprintf("%s/%s/message_templates", c.baseURL, c.businessAccountID)
	payload := map[string]any{
		"name":     name,
		"category": "UTILITY",
		"language": language,
		"components": []map[string]any{
			{"type": "BODY", "text": body},
		},
	}
	return c.do(ctx, http.MethodPost, endpoint, payload, nil)
}

func (c *Client) sendMessage(ctx context.Context, payload map[string]any) (string, error) {
	if c.token == "" || c.phoneNumberID == "" {
		return "", channel.Permanent("misconfigured", fmt.Errorf("whatsapp client misconfigured"))
	}

	endpoint := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)

	var resp struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := c.do(ctx, http.MethodPost, endpoint, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Messages) == 0 {
		return "", channel.Transient("empty-response", fmt.Errorf("no message id in response"))
	}
	return resp.Messages[0].ID, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload, v any) error {
	var body *bytes.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal payload: %w", err)
		}
		body = bytes.NewReader(raw)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return channel.Transient("network", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return classifyStatus(resp)
	}

	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// classifyStatus separates failures the provider may recover from (throttle,
// timeout, server errors) from ones it never will (bad destination, rejected
// content, unknown template).
func classifyStatus(resp *http.Response) error {
	var apiErr struct {
		Error struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&apiErr)

	code := fmt.Sprintf("http-%d", resp.StatusCode)
	if apiErr.Error.Code != 0 {
		code = fmt.Sprintf("%d", apiErr.Error.Code)
	}
	err := fmt.Errorf("whatsapp %s: %s", resp.Status, apiErr.Error.Message)

	switch resp.StatusCode {
	case http.StatusTooManyRequests, http.StatusRequestTimeout:
		return channel.Transient(code, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return channel.Transient(code, err)
	}
	return channel.Permanent(code, err)
}
