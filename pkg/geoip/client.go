package geoip

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/recovero-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/recovero-backend/pkg/errors"
)

const (
	defaultBaseURL = "http://ip-api.com"
	defaultTimeout = 5 * time.Second
)

// Location is the subset of the ip-api payload Recovero stores.
type Location struct {
	Country   string  `json:"country"`
	City      string  `json:"city"`
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Label renders "City, Country" with whichever parts are known.
func (l Location) Label() string {
	switch {
	case l.City != "" && l.Country != "":
		return l.City + ", " + l.Country
	case l.Country != "":
		return l.Country
	default:
		return l.City
	}
}

type lookupResponse struct {
	Location
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Client resolves IPs against an ip-api compatible endpoint.
type Client struct {
	httpClient *http.Client
	baseURL    string
	enabled    bool
}

type Option func(*Client)

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

func NewClient(cfg config.GeoIPConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base,
		enabled:    cfg.Enabled,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Lookup returns ok=false for disabled lookups and for private, loopback
// or unparsable addresses.
func (c *Client) Lookup(ctx context.Context, ip string) (Location, bool, error) {
	if c == nil || !c.enabled || !Routable(ip) {
		return Location{}, false, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/json/"+url.PathEscape(ip), nil)
	if err != nil {
		return Location{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build geoip request")
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Location{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "execute geoip request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Location{}, false, pkgerrors.New(pkgerrors.CodeDependency, "geoip lookup returned "+resp.Status)
	}
	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Location{}, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode geoip response")
	}
	if payload.Status != "" && payload.Status != "success" {
		return Location{}, false, nil
	}
	return payload.Location, payload.Country != "" || payload.City != "", nil
}

// Routable reports whether ip is a public unicast address worth looking up.
func Routable(ip string) bool {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return false
	}
	return !(parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() ||
		parsed.IsLinkLocalUnicast() || parsed.IsMulticast())
}
