package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// StatusError is returned for any non-2xx response. Body holds the raw
// response so callers can decode provider or gateway error payloads.
type StatusError struct {
	StatusCode int
	Status     string
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %s: %s", e.Status, string(e.Body))
}

type Client struct {
	http *http.Client
}

type ClientOption func(*http.Client)

// WithJar makes the client keep cookies across calls.
func WithJar(jar http.CookieJar) ClientOption {
	return func(c *http.Client) { c.Jar = jar }
}

func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *http.Client) { c.Transport = rt }
}

func NewClient(timeout time.Duration, opts ...ClientOption) *Client {
	hc := &http.Client{Timeout: timeout}
	for _, opt := range opts {
		opt(hc)
	}
	return &Client{http: hc}
}

// HTTP exposes the underlying client, e.g. for golang.org/x/oauth2.
func (c *Client) HTTP() *http.Client {
	return c.http
}

func (c *Client) PostJSON(ctx context.Context, endpoint string, in, out any) error {
	var body io.Reader = http.NoBody
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *Client) GetJSON(ctx context.Context, endpoint string, out any) error {
	return c.GetJSONWithToken(ctx, endpoint, "", out)
}

func (c *Client) GetJSONWithToken(ctx context.Context, endpoint, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	return json.Unmarshal(body, out)
}
