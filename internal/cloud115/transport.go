// Package cloud115 is the 115 Open Platform adapter: token lifecycle,
// upload pipeline, directory/file cache, rate-limit-aware retry, ranged
// download, and the namespace-to-folder-tree mapping (namespace mapping
// itself lives in the sibling internal/namespace package, kept pure and
// dependency-free).
package cloud115

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client is the transport-level authenticated JSON caller: a long-lived
// struct wrapping a single configured *http.Client, constructed once and
// shared across every inbound request.
type Client struct {
	httpClient *http.Client
	apiBase    string
	userAgent  string

	tokens            *TokenManager
	tokenInvalidCodes []int

	limiter *RateLimiter
}

// NewClient builds a Client with a dial/idle-timeout-tuned transport.
func NewClient(apiBase, userAgent string, tokens *TokenManager, tokenInvalidCodes []int, limiter *RateLimiter) *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Client{
		httpClient:        &http.Client{Transport: transport},
		apiBase:           apiBase,
		userAgent:         userAgent,
		tokens:            tokens,
		tokenInvalidCodes: tokenInvalidCodes,
		limiter:           limiter,
	}
}

// outerDeadline bounds a single request end-to-end, including any backoff
// sleeps, aligned to the E2E test harness bound.
const outerDeadline = 5 * time.Minute

// GetJSON issues an authenticated GET and returns the envelope's data field.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodGet, c.apiBase+path, query, "", nil)
}

// PostFormJSON issues an authenticated POST with an application/x-www-form-urlencoded body.
func (c *Client) PostFormJSON(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	return c.doJSON(ctx, http.MethodPost, c.apiBase+path, nil, "application/x-www-form-urlencoded", []byte(form.Encode()))
}

// PostJSON issues an authenticated POST with a JSON body.
func (c *Client) PostJSON(ctx context.Context, path string, body any) (json.RawMessage, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request body: %v", ErrInternal, err)
	}
	return c.doJSON(ctx, http.MethodPost, c.apiBase+path, nil, "application/json", encoded)
}

// doJSON is the shared one-shot-plus-single-retry-on-token-invalid request
// path: every authenticated call goes through here so refresh-then-retry
// stays in one place.
func (c *Client) doJSON(ctx context.Context, method, fullURL string, query url.Values, contentType string, body []byte) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, outerDeadline)
	defer cancel()

	data, refreshed, err := c.attempt(ctx, method, fullURL, query, contentType, body, false)
	if err != nil {
		return nil, err
	}
	if !refreshed {
		return data, nil
	}
	// Refreshed once — retry exactly once; never recurse into a second
	// refresh within the same request.
	data, _, err = c.attempt(ctx, method, fullURL, query, contentType, body, true)
	return data, err
}

// attempt performs a single request with rate-limit backoff baked in, and
// reports whether a token refresh happened so the caller can retry once.
func (c *Client) attempt(ctx context.Context, method, fullURL string, query url.Values, contentType string, body []byte, afterRefresh bool) (json.RawMessage, bool, error) {
	var result json.RawMessage
	refreshed := false

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.Multiplier = 2
	bo.MaxInterval = 30 * time.Second
	bounded := backoff.WithMaxRetries(bo, 4)

	op := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(err)
			}
		}

		e, status, err := c.rawCall(ctx, method, fullURL, query, contentType, body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("transport: %w", err))
		}

		data, class := c.classify(status, e)
		switch class {
		case classSuccess:
			result = data
			return nil
		case classTokenInvalid:
			if afterRefresh {
				// Already retried once this request; a second TokenInvalid
				// is terminal.
				return backoff.Permanent(&UpstreamError{Code: e.Code, Message: e.Message})
			}
			if err := c.tokens.Refresh(ctx); err != nil {
				return backoff.Permanent(fmt.Errorf("token refresh: %w", err))
			}
			refreshed = true
			return nil
		case classRateLimited:
			return fmt.Errorf("%w: code=%d message=%s", ErrRateLimited, e.Code, e.Message)
		default:
			return backoff.Permanent(&UpstreamError{Code: e.Code, Message: e.Message})
		}
	}

	err := backoff.Retry(op, bounded)
	if err != nil {
		return nil, false, err
	}
	if refreshed {
		return nil, true, nil
	}
	return result, false, nil
}

// rawCall issues the HTTP request and parses the envelope, without any
// retry or classification logic beyond returning what was observed.
func (c *Client) rawCall(ctx context.Context, method, fullURL string, query url.Values, contentType string, body []byte) (*envelope, int, error) {
	u := fullURL
	if len(query) > 0 {
		u = fullURL + "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+c.tokens.Current())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}

	e, err := parseEnvelope(raw)
	if err != nil {
		// A bare 401 with a non-JSON body still needs to trigger refresh.
		if resp.StatusCode == http.StatusUnauthorized {
			return &envelope{}, resp.StatusCode, nil
		}
		return nil, resp.StatusCode, err
	}
	return e, resp.StatusCode, nil
}

// StreamGet issues an authenticated GET against an arbitrary URL (used for
// signed download URLs, which are not API-base-relative) and returns the
// response status, headers, and body unread. The caller owns closing the
// body.
func (c *Client) StreamGet(ctx context.Context, rawURL string, rangeHeader string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("building stream request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Authorization", "Bearer "+c.tokens.Current())
	if rangeHeader != "" {
		req.Header.Set("Range", rangeHeader)
	}
	return c.httpClient.Do(req)
}
