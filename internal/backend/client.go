// Package backend is the REST client for the chat server: bot listing, chat
// history and voice synthesis.
package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

// ErrNoServer is returned when no server URL is configured.
var ErrNoServer = errors.New("no server URL configured")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("%s %s: HTTP status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("%s %s: HTTP status %d", e.Method, e.URL, e.StatusCode)
}

// Config configures a Client.
type Config struct {
	// ServerURL is the backend base URL, e.g. https://api.example.com.
	ServerURL string

	// DefaultBot is the bot id hidden from the bot list.
	DefaultBot string

	// SynthesisPath is the voice synthesis endpoint, relative to ServerURL.
	SynthesisPath string

	// Timeout bounds every request. Defaults to 30s.
	Timeout time.Duration

	// SynthesisPerMinute limits synthesis requests. 0 means 30.
	SynthesisPerMinute int

	HTTPClient *http.Client
	Logger     *log.Logger
}

// Client talks to the chat backend.
type Client struct {
	base       *url.URL
	defaultBot string
	synthPath  string
	http       *http.Client
	limiter    *rate.Limiter
	logger     *log.Logger
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.ServerURL) == "" {
		return nil, ErrNoServer
	}
	base, err := url.Parse(strings.TrimRight(cfg.ServerURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("%s is not a supported protocol", base.Scheme)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.SynthesisPath == "" {
		cfg.SynthesisPath = "/text-to-speech"
	}
	if cfg.SynthesisPerMinute <= 0 {
		cfg.SynthesisPerMinute = 30
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Client{
		base:       base,
		defaultBot: cfg.DefaultBot,
		synthPath:  cfg.SynthesisPath,
		http:       hc,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.SynthesisPerMinute)), 3),
		logger:     logger,
	}, nil
}

// endpoint joins an API path onto the server URL, keeping its base path.
func (c *Client) endpoint(path string) (string, error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", path, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	u.Path = strings.TrimSuffix(c.base.Path, "/") + "/" + strings.TrimPrefix(u.Path, "/")
	return c.base.ResolveReference(u).String(), nil
}

// resolve resolves an audio reference returned by the server. Absolute
// paths replace the server path; relative paths are taken below it.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q: %w", ref, err)
	}
	if u.IsAbs() || strings.HasPrefix(u.Path, "/") {
		return c.base.ResolveReference(u).String(), nil
	}
	return c.endpoint(ref)
}

// do sends a request with an optional JSON body and decodes a JSON response
// into out.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	target, err := c.endpoint(path)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		b, err := sonic.Marshal(in)
		if err != nil {
			return fmt.Errorf("unable to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("unable to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, target, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	b, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("unable to read response: %w", err)
	}
	c.logger.Debug("Backend request", "method", method, "url", target, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(b))
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return &StatusError{Method: method, URL: target, StatusCode: resp.StatusCode, Body: snippet}
	}

	if out == nil || len(bytes.TrimSpace(b)) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(b, out); err != nil {
		return fmt.Errorf("unable to decode response from %s: %w", target, err)
	}
	return nil
}
