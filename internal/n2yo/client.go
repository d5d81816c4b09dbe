// Package n2yo is a client for the N2YO satellite positions endpoint.
package n2yo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/star/sattrack/internal/request"
)

const (
	DefaultBaseURL      = "https://api.n2yo.com/rest/v1/satellite"
	DefaultTimeout      = 30 * time.Second
	DefaultMaxBodyBytes = 8 << 20
	DefaultUserAgent    = "sattrack/1.0"
)

var (
	// ErrTransport covers network errors, unreadable bodies and HTTP
	// statuses outside [200, 400).
	ErrTransport = errors.New("transport failure")
	// ErrPayload is returned when the body is not the expected JSON shape.
	ErrPayload = errors.New("unparsable payload")
)

// Config holds client configuration loaded from environment variables.
type Config struct {
	BaseURL      string
	APIKey       string
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

// Client performs position lookups.
type Client struct {
	baseURL      string
	apiKey       string
	maxBodyBytes int64
	userAgent    string
	httpClient   *http.Client
	logger       *slog.Logger
}

// NewClient creates a Client, filling unset config fields with defaults.
func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:       cfg.APIKey,
		maxBodyBytes: cfg.MaxBodyBytes,
		userAgent:    cfg.UserAgent,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// URL returns the lookup URL for req. The "&apiKey=" suffix without a "?"
// is the form the service documents.
func (c *Client) URL(req request.Request) string {
	return fmt.Sprintf("%s/positions/%s/%s/%s/%s/%s&apiKey=%s",
		c.baseURL,
		url.PathEscape(req.ID),
		url.PathEscape(req.ObsLat),
		url.PathEscape(req.ObsLon),
		url.PathEscape(req.ObsAlt),
		url.PathEscape(req.Seconds),
		url.QueryEscape(c.apiKey),
	)
}

// Positions performs one lookup. Errors wrap ErrTransport or ErrPayload.
func (c *Client) Positions(ctx context.Context, req request.Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL(req), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrTransport, redact(err, c.apiKey))
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching positions for %s: %v", ErrTransport, req.ID, redact(err, c.apiKey))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: unexpected status code %d for %s", ErrTransport, resp.StatusCode, req.ID)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response body: %v", ErrTransport, err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w: response exceeds %d byte limit", ErrTransport, c.maxBodyBytes)
	}

	var out Response
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding response for %s: %v", ErrPayload, req.ID, err)
	}
	if out.Error != "" {
		c.logger.Debug("lookup service reported an error",
			"component", "n2yo",
			"satellite_id", req.ID,
			"service_error", out.Error,
		)
	}

	return &out, nil
}

// redact strips the API key from error text, which embeds the request URL.
func redact(err error, key string) string {
	msg := err.Error()
	if key == "" {
		return msg
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(key), "REDACTED")
	return strings.ReplaceAll(msg, key, "REDACTED")
}
