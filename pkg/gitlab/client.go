// Package gitlab provides the GitLab REST v4 client used by the mention bot.
package gitlab

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	apiPrefix       = "/api/v4"
	perPage         = 100
	maxPages        = 50  // Upper bound on pages followed for a single list call
	errorBodyLength = 512 // Bytes of an error response body kept in APIError
	tokenHeader     = "PRIVATE-TOKEN"
	nextPageHeader  = "X-Next-Page"
	defaultTimeout  = 30 * time.Second
	jsonContentType = "application/json"
)

// HTTPDoer provides an interface for making HTTP requests.
// This allows us to mock HTTP calls in tests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Config holds configuration for creating a new GitLab client.
type Config struct {
	HTTPClient  HTTPDoer // Optional; defaults to an http.Client with HTTPTimeout
	BaseURL     string   // Instance root, e.g. https://gitlab.example.com
	Token       string
	HTTPTimeout time.Duration
}

// Client handles all GitLab API interactions. It holds no per-request state and is safe
// for concurrent use by many deliveries.
type Client struct {
	httpClient HTTPDoer
	baseURL    string
	token      string
}

// New creates a new GitLab API client.
func New(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.HTTPTimeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/") + apiPrefix,
		token:      cfg.Token,
	}
}

// APIError is returned when GitLab answers with an unexpected status code.
type APIError struct {
	Method     string
	URL        string
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gitlab %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// drainAndCloseBody drains and closes an HTTP response body to prevent resource leaks.
func drainAndCloseBody(body io.ReadCloser) {
	if _, err := io.Copy(io.Discard, body); err != nil {
		slog.Warn("Failed to drain response body", "error", err)
	}
	if err := body.Close(); err != nil {
		slog.Warn("Failed to close response body", "error", err)
	}
}

// endpoint builds an absolute API URL from path segments and an optional query.
func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

// doRequest performs one HTTP request and decodes a JSON response into out.
// Requests are never retried; the caller decides what a failure means.
func (c *Client) doRequest(ctx context.Context, method, apiURL string, body, out any) (http.Header, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, apiURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(tokenHeader, c.token)
	req.Header.Set("Accept", jsonContentType)
	if body != nil {
		req.Header.Set("Content-Type", jsonContentType)
	}

	slog.Debug("HTTP request", "component", "gitlab", "method", method, "url", apiURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer drainAndCloseBody(resp.Body)

	slog.Debug("HTTP response", "component", "gitlab", "method", method, "url", apiURL, "status", resp.StatusCode)

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		excerpt, err := io.ReadAll(io.LimitReader(resp.Body, errorBodyLength))
		if err != nil {
			excerpt = []byte("(could not read body)")
		}
		return nil, &APIError{Method: method, URL: apiURL, StatusCode: resp.StatusCode, Body: string(excerpt)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("failed to decode response from %s: %w", apiURL, err)
		}
	}
	return resp.Header, nil
}

// get fetches a single JSON document.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	_, err := c.doRequest(ctx, http.MethodGet, c.endpoint(path, query), nil, out)
	return err
}

// post creates a resource and decodes the response into out, which may be nil.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	_, err := c.doRequest(ctx, http.MethodPost, c.endpoint(path, nil), body, out)
	return err
}

// getAll follows GitLab's X-Next-Page pagination and concatenates every page.
func getAll[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	q := url.Values{}
	for k, v := range query {
		q[k] = v
	}
	q.Set("per_page", strconv.Itoa(perPage))

	var all []T
	page := 1
	for range maxPages {
		q.Set("page", strconv.Itoa(page))
		var items []T
		header, err := c.doRequest(ctx, http.MethodGet, c.endpoint(path, q), nil, &items)
		if err != nil {
			return nil, err
		}
		all = append(all, items...)

		next, err := strconv.Atoi(header.Get(nextPageHeader))
		if err != nil || next <= page {
			return all, nil
		}
		page = next
	}
	slog.Warn("Stopped following pagination", "component", "gitlab", "path", path, "pages", maxPages)
	return all, nil
}

func projectPath(projectID int) string {
	return "/projects/" + strconv.Itoa(projectID)
}
