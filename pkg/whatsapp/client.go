package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/config"
)

const (
	defaultBaseURL         = "https://graph.facebook.com/v17.0"
	defaultTimeout         = 20 * time.Second
	bodyExcerptLimit int64 = 1024
)

// Client talks to the WhatsApp Cloud API.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	token         string
	phoneNumberID string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			c.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

// NewClient never fails; a missing token or phone number id surfaces as
// KindNotConfigured on send.
func NewClient(cfg config.WhatsAppConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		httpClient:    &http.Client{Timeout: timeout},
		baseURL:       defaultBaseURL,
		token:         strings.TrimSpace(cfg.Token),
		phoneNumberID: strings.TrimSpace(cfg.PhoneNumberID),
	}
	WithBaseURL(cfg.BaseURL)(c)
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Configured reports whether credentials are present.
func (c *Client) Configured() bool {
	return c != nil && c.token != "" && c.phoneNumberID != ""
}

type textBody struct {
	Body       string `json:"body"`
	PreviewURL bool   `json:"preview_url"`
}

type templateLanguage struct {
	Code string `json:"code"`
}

type templateBody struct {
	Name       string           `json:"name"`
	Language   templateLanguage `json:"language"`
	Components []any            `json:"components,omitempty"`
}

type messageRequest struct {
	MessagingProduct string        `json:"messaging_product"`
	To               string        `json:"to"`
	Type             string        `json:"type"`
	Text             *textBody     `json:"text,omitempty"`
	Template         *templateBody `json:"template,omitempty"`
}

// SendText sends a plain text message. The phone is reduced to its digits.
func (c *Client) SendText(ctx context.Context, phone, body string) (map[string]any, error) {
	return c.send(ctx, messageRequest{
		MessagingProduct: "whatsapp",
		To:               NormalizePhone(phone),
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

// SendTemplate sends a pre-approved template message.
func (c *Client) SendTemplate(ctx context.Context, phone, name, language string, components []any) (map[string]any, error) {
	if language == "" {
		language = "en_US"
	}
	return c.send(ctx, messageRequest{
		MessagingProduct: "whatsapp",
		To:               NormalizePhone(phone),
		Type:             "template",
		Template:         &templateBody{Name: name, Language: templateLanguage{Code: language}, Components: components},
	})
}

func (c *Client) send(ctx context.Context, payload messageRequest) (map[string]any, error) {
	if !c.Configured() {
		return nil, &Error{Kind: KindNotConfigured}
	}
	if payload.To == "" {
		return nil, &Error{Kind: KindAPIRejected, Body: "recipient has no digits"}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+c.phoneNumberID+"/messages", bytes.NewReader(raw))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, bodyExcerptLimit))
		return nil, &Error{Kind: KindAPIRejected, Status: resp.StatusCode, Body: strings.TrimSpace(string(excerpt))}
	}

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil && !errors.Is(err, io.EOF) {
		return nil, &Error{Kind: KindAPIRejected, Status: resp.StatusCode, Body: "invalid json response", Err: err}
	}
	return decoded, nil
}

// NormalizePhone strips everything but digits.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
