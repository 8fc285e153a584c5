package licenses

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
)

const defaultTimeout = 15 * time.Second

// Action is a license server operation.
type Action string

const (
	ActionActivate   Action = "activate"
	ActionDeactivate Action = "deactivate"
	ActionVerify     Action = "verify"
)

// ServerResponse is the license server payload.
type ServerResponse struct {
	Success    bool   `json:"success"`
	Valid      *bool  `json:"valid,omitempty"`
	Status     string `json:"status"`
	ExpiryDate string `json:"expiry_date"`
	Message    string `json:"message"`
}

// Expiry parses ExpiryDate as RFC 3339 or a plain date. Empty or
// unparseable values mean no expiry.
func (r ServerResponse) Expiry() *time.Time {
	raw := strings.TrimSpace(r.ExpiryDate)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if ts, err := time.Parse(layout, raw); err == nil {
			ts = ts.UTC()
			return &ts
		}
	}
	return nil
}

type request struct {
	Action     Action `json:"action"`
	LicenseKey string `json:"license_key"`
	Domain     string `json:"domain"`
}

// Client talks to the remote license server.
type Client struct {
	httpClient *http.Client
	serverURL  string
	domain     string
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg config.LicenseConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		serverURL:  strings.TrimRight(cfg.ServerURL, "/"),
		domain:     cfg.Domain,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *Client) Configured() bool {
	return c != nil && c.serverURL != ""
}

func (c *Client) Activate(ctx context.Context, key string) (ServerResponse, error) {
	return c.call(ctx, ActionActivate, key)
}

func (c *Client) Deactivate(ctx context.Context, key string) (ServerResponse, error) {
	return c.call(ctx, ActionDeactivate, key)
}

func (c *Client) Verify(ctx context.Context, key string) (ServerResponse, error) {
	return c.call(ctx, ActionVerify, key)
}

// call POSTs {server}/{action}. Anything but a 200 with a JSON object is
// a dependency error.
func (c *Client) call(ctx context.Context, action Action, key string) (ServerResponse, error) {
	if !c.Configured() {
		return ServerResponse{}, pkgerrors.New(pkgerrors.CodeNotConfigured, "license server not configured")
	}
	raw, err := json.Marshal(request{Action: action, LicenseKey: key, Domain: c.domain})
	if err != nil {
		return ServerResponse{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode license request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.serverURL+"/"+string(action), bytes.NewReader(raw))
	if err != nil {
		return ServerResponse{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build license request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ServerResponse{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "license server unreachable")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return ServerResponse{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read license response")
	}
	if resp.StatusCode != http.StatusOK {
		return ServerResponse{}, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("license server returned %d", resp.StatusCode))
	}
	var out ServerResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return ServerResponse{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode license response")
	}
	return out, nil
}
