// Package chat talks to the model-generating chat backend: it sends user
// messages, decodes the assistant reply and fetches the models it links to.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/chazu/stepview/pkg/logger"
)

var (
	// ErrTransport wraps network failures and HTTP error statuses.
	ErrTransport = errors.New("chat: transport failure")
	// ErrBackend is returned when the backend answers with success=false.
	ErrBackend = errors.New("chat: backend error")
)

// HTTPError represents a HTTP response with status code >= 400.
type HTTPError struct {
	StatusCode int
	Status     string
	URL        string
}

func (e HTTPError) Error() string {
	return fmt.Sprintf("HTTP error: %s (%s)", e.Status, e.URL)
}

// Unwrap lets errors.Is match ErrTransport.
func (e HTTPError) Unwrap() error {
	return ErrTransport
}

// DefaultMaxBodyBytes caps a response body when Options.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 64 << 20

// Options configures a Client.
type Options struct {
	BaseURL      string
	ChatPath     string
	HealthPath   string
	ModelsPath   string
	Timeout      time.Duration
	RetryMax     int
	MaxBodyBytes int64
}

// Client is a chat backend client. It is safe for concurrent use.
type Client struct {
	base *url.URL
	opts Options
	http *retryablehttp.Client
	sfg  *singleflight.Group
}

// New returns a client for the backend at opts.BaseURL.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("chat: base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("chat: base url %q is not absolute", opts.BaseURL)
	}
	if opts.ChatPath == "" {
		opts.ChatPath = "/graph_chat"
	}
	if opts.HealthPath == "" {
		opts.HealthPath = "/health"
	}
	if opts.ModelsPath == "" {
		opts.ModelsPath = "/list_generated_models"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = DefaultMaxBodyBytes
	}

	rhc := retryablehttp.NewClient()
	rhc.Logger = logger.Log
	rhc.RetryMax = opts.RetryMax
	rhc.RetryWaitMin = 200 * time.Millisecond
	rhc.RetryWaitMax = 2 * time.Second
	rhc.ResponseLogHook = logResponse
	rhc.CheckRetry = checkRetry
	rhc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if opts.Timeout > 0 {
		rhc.HTTPClient.Timeout = opts.Timeout
	}
	return &Client{base: base, opts: opts, http: rhc, sfg: new(singleflight.Group)}, nil
}

// HTTPClient returns the underlying client, e.g. for mocking transports.
func (c *Client) HTTPClient() *http.Client {
	return c.http.HTTPClient
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// retryStatus lists the HTTP statuses worth retrying; other server errors
// are reported at once.
var retryStatus = map[int]bool{
	http.StatusTooManyRequests:    true,
	http.StatusBadGateway:         true,
	http.StatusServiceUnavailable: true,
	http.StatusGatewayTimeout:     true,
}

func checkRetry(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp != nil && resp.StatusCode >= 500 && !retryStatus[resp.StatusCode] {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// logResponse is a callback for retryablehttp.
func logResponse(_ retryablehttp.Logger, r *http.Response) {
	entry := logger.Log.WithFields(logrus.Fields{
		"method": r.Request.Method,
		"url":    r.Request.URL.String(),
		"status": r.StatusCode,
	})
	if r.StatusCode >= 400 {
		entry.Warn("chat: HTTP response")
		return
	}
	entry.Debug("chat: HTTP response")
}

// Resolve turns a backend-relative URL into an absolute one.
func (c *Client) Resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("chat: bad url %q: %w", ref, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if !strings.HasPrefix(ref, "/") {
		// Relative to the API root, not to the base path's last segment.
		u.Path = path.Join("/", u.Path)
	}
	return c.base.ResolveReference(u).String(), nil
}

func (c *Client) endpoint(p string) string {
	s, _ := c.Resolve(p)
	return s
}

// do sends req and returns the body of a successful response.
func (c *Client) do(req *retryablehttp.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, URL: req.URL.String()}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.opts.MaxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrTransport, err)
	}
	if int64(len(body)) > c.opts.MaxBodyBytes {
		return nil, fmt.Errorf("%w: response from %s exceeds %d bytes", ErrTransport, req.URL, c.opts.MaxBodyBytes)
	}
	return body, nil
}

func (c *Client) getJSON(ctx context.Context, p string, v any) error {
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(p), nil)
	if err != nil {
		return err
	}
	body, err := c.do(req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("chat: decode %s: %w", p, err)
	}
	return nil
}

// Send posts a user message and decodes the assistant's reply.
func (c *Client) Send(ctx context.Context, message string) (*Reply, error) {
	payload, err := json.Marshal(map[string]string{"message": message})
	if err != nil {
		return nil, err
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(c.opts.ChatPath), bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, err := c.do(req)
	if err != nil {
		logger.Log.WithError(err).Warn("chat: send failed")
		return nil, err
	}
	reply, err := decodeReply(body)
	if err != nil {
		return nil, err
	}
	reply.Prompt = message
	return reply, nil
}

// FetchModel downloads a model file. Concurrent fetches of the same URL
// share one request.
func (c *Client) FetchModel(ctx context.Context, ref string) ([]byte, error) {
	u, err := c.Resolve(ref)
	if err != nil {
		return nil, err
	}
	x, err, shared := c.sfg.Do(u, func() (any, error) {
		req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		return c.do(req)
	})
	if err != nil {
		return nil, err
	}
	data := x.([]byte)
	logger.Log.WithFields(logrus.Fields{"url": u, "bytes": len(data), "shared": shared}).Debug("chat: fetched model")
	return data, nil
}

// Health is the backend health check response.
type Health struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Health queries the backend health endpoint.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var h Health
	if err := c.getJSON(ctx, c.opts.HealthPath, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GeneratedModel is an entry of the generated model listing.
type GeneratedModel struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// ListModels returns the models the backend has generated so far, with
// absolute URLs.
func (c *Client) ListModels(ctx context.Context) ([]GeneratedModel, error) {
	var models []GeneratedModel
	if err := c.getJSON(ctx, c.opts.ModelsPath, &models); err != nil {
		return nil, err
	}
	for i, m := range models {
		if u, err := c.Resolve(m.URL); err == nil {
			models[i].URL = u
		}
	}
	return models, nil
}
