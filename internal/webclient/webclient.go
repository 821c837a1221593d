// Package webclient fetches JSON documents from management endpoints.
//
// Redirects are followed by hand so that cookies set on a redirect response
// reach the next hop and the number of hops stays bounded.
package webclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// DefaultMaxRedirects bounds the redirect chain.
const DefaultMaxRedirects = 3

// HTTPStatusError reports a non-2xx final response.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("%s returned http %d", e.URL, e.StatusCode)
}

// RedirectLoopError reports a redirect chain longer than the bound.
type RedirectLoopError struct {
	URL      string
	Attempts int
}

func (e *RedirectLoopError) Error() string {
	return fmt.Sprintf("%s still redirecting after %d attempts", e.URL, e.Attempts)
}

// Client performs bounded GET requests.
type Client struct {
	HTTP         *http.Client
	MaxRedirects int
	Timeout      time.Duration
	UserAgent    string
	Logger       *zap.Logger
}

// New creates a client with the given request timeout.
func New(timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{Timeout: timeout, MaxRedirects: DefaultMaxRedirects, Logger: logger}
}

// GetJSON fetches target and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, target string, v any) error {
	body, err := c.Get(ctx, target)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", target, err)
	}
	return nil
}

// Get fetches target, following at most MaxRedirects redirects, and
// returns the body of the final 2xx response.
func (c *Client) Get(ctx context.Context, target string) ([]byte, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	maxRedirects := c.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	client := c.httpClient()
	current := target
	var cookies []*http.Cookie

	for attempt := 0; ; attempt++ {
		resp, err := c.do(ctx, client, current, cookies)
		if err != nil {
			return nil, fmt.Errorf("get %s: %w", current, err)
		}

		if isRedirect(resp.StatusCode) {
			location := resp.Header.Get("Location")
			cookies = mergeCookies(cookies, resp.Cookies())
			drain(resp)
			if attempt >= maxRedirects {
				return nil, &RedirectLoopError{URL: target, Attempts: attempt + 1}
			}
			next, err := resolve(current, location)
			if err != nil {
				return nil, err
			}
			c.logger().Debug("following redirect", zap.String("from", current), zap.String("to", next))
			current = next
			continue
		}

		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &HTTPStatusError{URL: current, StatusCode: resp.StatusCode}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", current, err)
		}
		return body, nil
	}
}

func (c *Client) do(ctx context.Context, client *http.Client, target string, cookies []*http.Cookie) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	return client.Do(req)
}

// httpClient returns a copy of the configured client that never follows
// redirects on its own.
func (c *Client) httpClient() *http.Client {
	base := http.DefaultClient
	if c.HTTP != nil {
		base = c.HTTP
	}
	client := *base
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &client
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

func isRedirect(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolve(current, location string) (string, error) {
	if location == "" {
		return "", errors.New("redirect without Location header")
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("bad redirect location %q: %w", location, err)
	}
	return base.ResolveReference(ref).String(), nil
}

// mergeCookies replaces cookies of the same name with newer values.
func mergeCookies(existing, fresh []*http.Cookie) []*http.Cookie {
	out := existing[:0:0]
	for _, old := range existing {
		replaced := false
		for _, nc := range fresh {
			if nc.Name == old.Name {
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, old)
		}
	}
	return append(out, fresh...)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	resp.Body.Close()
}
