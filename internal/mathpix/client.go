// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package mathpix converts PDFs to Markdown through the Mathpix v3 PDF API.
// Conversion is asynchronous: the PDF is uploaded, its status polled, and
// the finished Markdown downloaded.
package mathpix

import (
	"bytes"
	"context"
	"encoding/json"
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
	// DefaultURL is the Mathpix API base URL.
	DefaultURL          = "https://api.mathpix.com"
	defaultTimeout      = 60 * time.Second
	defaultPollInterval = 2 * time.Second
	defaultMaxWait      = 5 * time.Minute
	maxErrorBody        = 4096
)

var (
	// ErrNotConfigured is returned by New when the app id or key is missing.
	ErrNotConfigured = errors.New("mathpix app id and key are not configured")

	// ErrTimedOut is returned when a conversion does not complete within
	// the configured maximum wait.
	ErrTimedOut = errors.New("mathpix conversion timed out")
)

// conversionOptions asks for Markdown with dollar delimiters so the output
// goes through the same math handling as the other backends.
var conversionOptions = map[string]any{
	"conversion_formats":      map[string]bool{"md": true},
	"math_inline_delimiters":  []string{"$", "$"},
	"math_display_delimiters": []string{"$$", "$$"},
	"rm_spaces":               true,
}

// Client talks to the Mathpix PDF API.
type Client struct {
	baseURL      string
	appID        string
	appKey       string
	userAgent    string
	pollInterval time.Duration
	maxWait      time.Duration
	httpClient   *http.Client
	logger       *zap.Logger
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

// New creates a Client from cfg. It returns ErrNotConfigured when the
// credentials are incomplete.
func New(cfg types.MathpixConfig, options ...Option) (*Client, error) {
	if !cfg.Configured() {
		return nil, ErrNotConfigured
	}
	c := &Client{
		baseURL:      strings.TrimRight(cfg.URL, "/"),
		appID:        cfg.AppID,
		appKey:       cfg.AppKey,
		userAgent:    cfg.UserAgent,
		pollInterval: cfg.PollInterval,
		maxWait:      cfg.MaxWait,
		logger:       zap.NewNop(),
	}
	if c.baseURL == "" {
		c.baseURL = DefaultURL
	}
	if c.pollInterval <= 0 {
		c.pollInterval = defaultPollInterval
	}
	if c.maxWait <= 0 {
		c.maxWait = defaultMaxWait
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c.httpClient = &http.Client{Timeout: timeout}

	for _, o := range options {
		o(c)
	}
	c.logger.Sugar().With("base URL", c.baseURL).Debug("init mathpix client")
	return c, nil
}

// ConvertPDF uploads the PDF at path, waits for Mathpix to finish and
// returns the Markdown.
func (c *Client) ConvertPDF(ctx context.Context, path string) (string, error) {
	start := time.Now()
	id, err := c.upload(ctx, path)
	if err != nil {
		return "", err
	}
	c.logger.Debug("mathpix upload accepted", zap.String("path", path), zap.String("pdf_id", id))

	if err := c.wait(ctx, id); err != nil {
		return "", err
	}

	md, err := c.markdown(ctx, id)
	if err != nil {
		return "", err
	}
	c.logger.Debug("mathpix converted",
		zap.String("pdf_id", id),
		zap.Int("bytes", len(md)),
		zap.Duration("took", time.Since(start)),
	)
	return md, nil
}

type uploadResponse struct {
	PDFID string `json:"pdf_id"`
	apiError
}

type statusResponse struct {
	Status      string  `json:"status"`
	PercentDone float64 `json:"percent_done"`
	apiError
}

// apiError is the error shape shared by all Mathpix responses.
type apiError struct {
	Err       string `json:"error"`
	ErrorInfo struct {
		ID      string `json:"id"`
		Message string `json:"message"`
	} `json:"error_info"`
}

func (e apiError) err() error {
	if e.Err == "" && e.ErrorInfo.ID == "" {
		return nil
	}
	msg := e.Err
	if e.ErrorInfo.Message != "" {
		msg = e.ErrorInfo.Message
	}
	if e.ErrorInfo.ID != "" {
		return fmt.Errorf("mathpix error %s: %s", e.ErrorInfo.ID, msg)
	}
	return fmt.Errorf("mathpix error: %s", msg)
}

func (c *Client) upload(ctx context.Context, path string) (string, error) {
	f, err := pdf.CheckFile(path, pdf.MaxFileSize)
	if err != nil {
		return "", err
	}
	defer f.Close()

	buf := new(bytes.Buffer)
	writer := multipart.NewWriter(buf)
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	opts, err := json.Marshal(conversionOptions)
	if err != nil {
		return "", err
	}
	if err := writer.WriteField("options_json", string(opts)); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v3/pdf", buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var ur uploadResponse
	if err := c.doJSON(req, &ur); err != nil {
		return "", fmt.Errorf("mathpix upload: %w", err)
	}
	if err := ur.err(); err != nil {
		return "", err
	}
	if ur.PDFID == "" {
		return "", fmt.Errorf("mathpix upload: response carries no pdf_id")
	}
	return ur.PDFID, nil
}

// wait polls the conversion status until it completes, fails, or maxWait
// elapses.
func (c *Client) wait(ctx context.Context, id string) error {
	deadline := time.Now().Add(c.maxWait)
	for {
		req, err := c.newRequest(ctx, http.MethodGet, "/v3/pdf/"+id, nil)
		if err != nil {
			return err
		}
		var sr statusResponse
		if err := c.doJSON(req, &sr); err != nil {
			return fmt.Errorf("mathpix status: %w", err)
		}
		if err := sr.err(); err != nil {
			return err
		}

		switch sr.Status {
		case "completed":
			return nil
		case "error":
			return fmt.Errorf("mathpix conversion of %s failed", id)
		}
		c.logger.Debug("mathpix pending", zap.String("pdf_id", id),
			zap.String("status", sr.Status), zap.Float64("percent", sr.PercentDone))

		if time.Now().Add(c.pollInterval).After(deadline) {
			return fmt.Errorf("%w after %s (pdf_id %s)", ErrTimedOut, c.maxWait, id)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
}

func (c *Client) markdown(ctx context.Context, id string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v3/pdf/"+id+".md", nil)
	if err != nil {
		return "", err
	}
	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return "", fmt.Errorf("mathpix markdown: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading mathpix markdown: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp.StatusCode, body)
	}
	return string(body), nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body *bytes.Buffer) (*http.Request, error) {
	var (
		req *http.Request
		err error
	)
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, c.baseURL+path, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("app_id", c.appID)
	req.Header.Set("app_key", c.appKey)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

// doJSON sends req with retries and decodes a JSON body into v. A non-200
// status with an error body is reported through that body.
func (c *Client) doJSON(req *http.Request, v any) error {
	resp, err := httputil.DoWithRetry(req.Context(), c.httpClient, req, 0)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, body)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("parsing response: %w", err)
	}
	return nil
}

func statusError(status int, body []byte) error {
	var ae apiError
	if json.Unmarshal(body, &ae) == nil {
		if err := ae.err(); err != nil {
			return fmt.Errorf("HTTP %d: %w", status, err)
		}
	}
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return fmt.Errorf("HTTP %d: %s", status, strings.TrimSpace(string(body)))
}
