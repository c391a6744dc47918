// Package transport exchanges encoded request bodies with the location
// service over HTTPS.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/gsloc/gsloc/logging"
)

// Fixed values locationd uses when talking to the service.
const (
	DefaultURL         = "https://gs-loc.apple.com/clls/wloc"
	DefaultUserAgent   = "locationd/221 (com.apple.locationd/1.0)"
	DefaultContentType = "application/octet-stream"
	DefaultTimeout     = 60 * time.Second
)

// Poster sends one request body and returns the raw response body.
type Poster interface {
	Post(ctx context.Context, body []byte) ([]byte, error)
}

// Options configures an HTTP poster. Zero fields take the defaults above.
type Options struct {
	URL         string
	UserAgent   string
	ContentType string
	Timeout     time.Duration

	// Client replaces the default client; Timeout is not applied to it.
	Client *http.Client
}

// DefaultOptions returns the options locationd itself uses.
func DefaultOptions() Options {
	return Options{
		URL:         DefaultURL,
		UserAgent:   DefaultUserAgent,
		ContentType: DefaultContentType,
		Timeout:     DefaultTimeout,
	}
}

// HTTP posts request bodies to a single URL. It never retries.
type HTTP struct {
	url         string
	userAgent   string
	contentType string
	client      *http.Client
	logger      zerolog.Logger
}

var _ Poster = (*HTTP)(nil)

// NewHTTP creates a poster, filling unset options from DefaultOptions.
func NewHTTP(opts Options) *HTTP {
	defaults := DefaultOptions()
	if opts.URL == "" {
		opts.URL = defaults.URL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if opts.ContentType == "" {
		opts.ContentType = defaults.ContentType
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}

	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	return &HTTP{
		url:         opts.URL,
		userAgent:   opts.UserAgent,
		contentType: opts.ContentType,
		client:      client,
		logger:      logging.Component("transport"),
	}
}

// URL returns the endpoint requests are posted to.
func (h *HTTP) URL() string { return h.url }

// Post sends body as the whole request body. Any failure, a non-2xx status
// included, is returned as *Error.
func (h *HTTP) Post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.url, bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Op: "build request", URL: h.url, Err: err}
	}
	req.Header.Set("User-Agent", h.userAgent)
	req.Header.Set("Content-Type", h.contentType)

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &Error{Op: "post", URL: h.url, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Op: "read response", URL: h.url, StatusCode: resp.StatusCode, Err: err}
	}

	h.logger.Debug().
		Int("status", resp.StatusCode).
		Int("request_bytes", len(body)).
		Int("response_bytes", len(raw)).
		Dur("elapsed", time.Since(start)).
		Msg("location service exchange")

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &Error{
			Op:         "post",
			URL:        h.url,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status),
		}
	}
	return raw, nil
}
