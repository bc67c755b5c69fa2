// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package grobid delegates full-text extraction to a Grobid service and maps
// its TEI XML output to a Document.
package grobid

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/pdiddy/milkbottle/internal/httputil"
	"github.com/pdiddy/milkbottle/internal/pdf"
	"github.com/pdiddy/milkbottle/pkg/types"
)

const (
	// DefaultURL is where a locally started Grobid container listens.
	DefaultURL     = "http://localhost:8070"
	defaultTimeout = 120 * time.Second
	// snippetLen bounds how much of an error body is quoted in errors.
	snippetLen = 200
)

// ErrUnavailable is returned when the Grobid service cannot be reached or
// reports that it is not alive.
var ErrUnavailable = errors.New("grobid service unavailable")

// Client talks to the Grobid REST API.
type Client struct {
	baseURL           string
	httpClient        *http.Client
	logger            *zap.Logger
	maxRetries        int
	consolidateHeader bool
	userAgent         string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithMaxRetries bounds retries on 429 and 503 responses.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithConsolidateHeader asks Grobid to consolidate header metadata.
func WithConsolidateHeader(on bool) Option {
	return func(c *Client) {
		c.consolidateHeader = on
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// New creates a Client for the Grobid service at baseURL.
func New(baseURL string, options ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zap.NewNop(),
	}
	for _, o := range options {
		o(c)
	}
	c.logger.Sugar().With("base URL", c.baseURL).Debug("init grobid client")
	return c
}

// NewFromConfig creates a Client from configuration.
func NewFromConfig(cfg types.GrobidConfig, options ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	opts := []Option{
		WithHTTPClient(&http.Client{Timeout: timeout}),
		WithMaxRetries(cfg.MaxRetries),
		WithConsolidateHeader(cfg.ConsolidateHeader),
		WithUserAgent(cfg.UserAgent),
	}
	return New(cfg.URL, append(opts, options...)...)
}

// BaseURL returns the service URL the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// IsAlive checks GET /api/isalive. It returns ErrUnavailable (wrapped) when
// the service does not answer 200 with a body of "true".
func (c *Client) IsAlive(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/isalive", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setUserAgent(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLen))
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: isalive returned HTTP %d", ErrUnavailable, resp.StatusCode)
	}
	if strings.TrimSpace(string(body)) != "true" {
		return fmt.Errorf("%w: isalive answered %q", ErrUnavailable, strings.TrimSpace(string(body)))
	}
	return nil
}

// ProcessFulltext uploads the PDF at path to processFulltextDocument and
// parses the returned TEI into a Document.
func (c *Client) ProcessFulltext(ctx context.Context, path string) (*types.Document, error) {
	f, err := pdf.CheckFile(path, pdf.MaxFileSize)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf := new(bytes.Buffer)
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("input", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	consolidate := "0"
	if c.consolidateHeader {
		consolidate = "1"
	}
	if err := writer.WriteField("consolidateHeader", consolidate); err != nil {
		return nil, err
	}
	if err := writer.WriteField("includeRawCitations", "1"); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/processFulltextDocument", buf)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/xml")
	c.setUserAgent(req)

	start := time.Now()
	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, c.maxRetries)
	if err != nil {
		return nil, fmt.Errorf("grobid request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, fmt.Errorf("grobid found nothing in %s: %w", path, pdf.ErrNoText)
	case http.StatusServiceUnavailable:
		return nil, fmt.Errorf("%w: still busy after retries", ErrUnavailable)
	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, snippetLen))
		return nil, fmt.Errorf("grobid returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	doc, err := ParseTEI(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing TEI for %s: %w", path, err)
	}
	doc.SourcePath = path
	doc.Backend = string(types.BackendGrobid)

	c.logger.Debug("grobid processed",
		zap.String("path", path),
		zap.Int("sections", len(doc.Sections)),
		zap.Int("references", len(doc.References)),
		zap.Duration("took", time.Since(start)),
	)
	return doc, nil
}

func (c *Client) setUserAgent(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}
