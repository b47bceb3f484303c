package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultMaxBody = 1 << 20

// Doer performs a single HTTP round trip. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client issues GET, form and JSON requests through a Doer.
type Client struct {
	doer    Doer
	maxBody int64
}

// New returns a Client over doer. A nil doer falls back to http.DefaultClient.
func New(doer Doer) *Client {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &Client{doer: doer, maxBody: defaultMaxBody}
}

// Doer returns the underlying round tripper.
func (c *Client) Doer() Doer {
	return c.doer
}

// HTTPClient adapts the Doer for libraries that require an *http.Client.
func (c *Client) HTTPClient() *http.Client {
	if hc, ok := c.doer.(*http.Client); ok {
		return hc
	}
	return &http.Client{Transport: doerTransport{doer: c.doer}}
}

// GetJSON fetches rawURL and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return c.do(req, out)
}

// PostForm sends form as application/x-www-form-urlencoded. bearer is
// optional.
func (c *Client) PostForm(ctx context.Context, rawURL string, form url.Values, bearer string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.do(req, out)
}

// PostJSON sends body as application/json. bearer is optional.
func (c *Client) PostJSON(ctx context.Context, rawURL string, body any, bearer string, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.doer.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrRequestFailed, req.Method, redactURL(req.URL), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody))
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrRequestFailed, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DecodeError(resp.StatusCode, body)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	return nil
}

// redactURL drops the query string, which may carry an API key.
func redactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	clean := *u
	clean.RawQuery = ""
	return clean.String()
}

type doerTransport struct {
	doer Doer
}

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.doer.Do(req)
}
