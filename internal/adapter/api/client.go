// Package api is the HTTP client for the dashboard's collaborator API. Every
// call carries the caller's opaque credential as a Cookie header.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/user/lead-scraper/internal/entity"
	"github.com/user/lead-scraper/internal/repository"
	"go.uber.org/zap"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api: %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Client implements repository.CollaboratorAPI over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

var _ repository.CollaboratorAPI = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the per-request timeout. Default: 15s. It applies to a
// copy, so a client passed to WithHTTPClient keeps its own timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		logger:  zap.NewNop(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) ListConnections(ctx context.Context, creds entity.Credentials) ([]entity.Connection, error) {
	var conns []entity.Connection
	if err := c.do(ctx, creds, http.MethodGet, "/connections", nil, &conns); err != nil {
		return nil, err
	}
	return conns, nil
}

func (c *Client) UpsertConnection(ctx context.Context, creds entity.Credentials, conn entity.Connection) error {
	return c.do(ctx, creds, http.MethodPut, "/connections", conn, nil)
}

func (c *Client) CreateScrapeLog(ctx context.Context, creds entity.Credentials, log entity.ScrapeLog) (string, error) {
	var created struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, creds, http.MethodPost, "/scrape-logs", log, &created); err != nil {
		return "", err
	}
	if created.ID == "" {
		return "", errors.New("api: scrape log created without id")
	}
	return created.ID, nil
}

func (c *Client) UpdateScrapeLog(ctx context.Context, creds entity.Credentials, id string, log entity.ScrapeLog) error {
	return c.do(ctx, creds, http.MethodPatch, "/scrape-logs/"+url.PathEscape(id), log, nil)
}

// CreateLead returns repository.ErrDuplicateLead when the API answers 409.
func (c *Client) CreateLead(ctx context.Context, creds entity.Credentials, lead entity.Lead) error {
	err := c.do(ctx, creds, http.MethodPost, "/leads", lead, nil)
	var se *StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusConflict {
		return fmt.Errorf("%w: %s", repository.ErrDuplicateLead, lead.Permalink)
	}
	return err
}

func (c *Client) ReportSuccess(ctx context.Context, creds entity.Credentials, report entity.HealthReport) error {
	return c.do(ctx, creds, http.MethodPost, "/scraper/success", report, nil)
}

func (c *Client) ReportError(ctx context.Context, creds entity.Credentials, report entity.HealthReport) error {
	return c.do(ctx, creds, http.MethodPost, "/scraper/error", report, nil)
}

func (c *Client) ListKeywords(ctx context.Context, creds entity.Credentials) ([]entity.Keyword, error) {
	var keywords []entity.Keyword
	if err := c.do(ctx, creds, http.MethodGet, "/keywords", nil, &keywords); err != nil {
		return nil, err
	}
	return keywords, nil
}

func (c *Client) do(ctx context.Context, creds entity.Credentials, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("api: marshal %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("api: new request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if creds != "" {
		req.Header.Set("Cookie", string(creds))
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("api: decode %s %s: %w", method, path, err)
	}
	return nil
}
