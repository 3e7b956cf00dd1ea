package access

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"
)

const (
	// DefaultHTTPTimeout bounds a single fetch attempt.
	DefaultHTTPTimeout = 60 * time.Second

	// defaultMaxBodyBytes caps a response body (512 MB).
	defaultMaxBodyBytes int64 = 512 << 20
)

type (
	// HTTP is the production Network fetching resources over HTTP(S).
	// file:// URLs are read from the local disk, which keeps mirrors on a
	// network share usable.
	HTTP struct {
		client       *http.Client
		userAgent    string
		maxBodyBytes int64
	}

	// HTTPOption configures an HTTP network during construction.
	HTTPOption func(*HTTP)
)

// WithHTTPClient sets a custom HTTP client, useful for tests or proxy configurations.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		if c != nil {
			h.client = c
		}
	}
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(h *HTTP) {
		if timeout > 0 {
			h.client = &http.Client{Timeout: timeout}
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTP) {
		h.userAgent = ua
	}
}

// WithMaxBodyBytes limits the size of accepted response bodies.
func WithMaxBodyBytes(limit int64) HTTPOption {
	return func(h *HTTP) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

// NewHTTP creates an HTTP network with DefaultHTTPTimeout.
func NewHTTP(opts ...HTTPOption) *HTTP {
	h := &HTTP{
		client:       &http.Client{Timeout: DefaultHTTPTimeout},
		userAgent:    "bricks-bootstrap",
		maxBodyBytes: defaultMaxBodyBytes,
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Read fetches rawURL and returns its body.
func (h *HTTP) Read(ctx context.Context, rawURL string) ([]byte, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	if parsed.Scheme == "file" {
		return readLocal(parsed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", h.userAgent)

	response, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", rawURL, err)
	}

	defer func() {
		_ = response.Body.Close()
	}()

	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s, %s: %w", rawURL, response.Status, ErrBadStatus)
	}

	data, err := io.ReadAll(io.LimitReader(response.Body, h.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body of %s: %w", rawURL, err)
	}

	if int64(len(data)) > h.maxBodyBytes {
		return nil, fmt.Errorf("%s: %w", rawURL, ErrTooLarge)
	}

	return data, nil
}

// readLocal serves file:// URLs.
func readLocal(u *url.URL) ([]byte, error) {
	path := filepath.FromSlash(u.Path)

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", u.String(), ErrUnreachable, err)
	}

	return data, nil
}
