// Package testutil provides test doubles shared by package tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

// MockHTTPDoer implements gitlab.HTTPDoer for testing.
// It's programmable - you can configure responses for specific requests.
type MockHTTPDoer struct {
	responses map[string]mockResponse
	errors    map[string]error
	calls     []HTTPCall
	mu        sync.RWMutex
}

type mockResponse struct {
	header     http.Header
	body       []byte
	statusCode int
}

// HTTPCall records a single HTTP call.
type HTTPCall struct {
	Header http.Header
	Method string
	URL    string
	Body   []byte
}

// NewMockHTTPDoer creates a new MockHTTPDoer.
func NewMockHTTPDoer() *MockHTTPDoer {
	return &MockHTTPDoer{
		responses: make(map[string]mockResponse),
		errors:    make(map[string]error),
	}
}

// Do records the request and returns the configured response. Unconfigured requests get a 404.
// Every call gets a fresh body, so a configured response may be served many times.
func (m *MockHTTPDoer) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var body []byte
	if req.Body != nil {
		var err error
		body, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		req.Body = io.NopCloser(bytes.NewReader(body))
	}
	m.calls = append(m.calls, HTTPCall{
		Method: req.Method,
		URL:    req.URL.String(),
		Body:   body,
		Header: req.Header.Clone(),
	})

	key := m.makeKey(req.Method, req.URL.String())

	if err, ok := m.errors[key]; ok {
		return nil, err
	}

	if resp, ok := m.responses[key]; ok {
		header := resp.header.Clone()
		if header == nil {
			header = make(http.Header)
		}
		return &http.Response{
			StatusCode: resp.statusCode,
			Status:     fmt.Sprintf("%d %s", resp.statusCode, http.StatusText(resp.statusCode)),
			Body:       io.NopCloser(bytes.NewReader(resp.body)),
			Header:     header,
			Request:    req,
		}, nil
	}

	return &http.Response{
		StatusCode: http.StatusNotFound,
		Status:     "404 Not Found",
		Body:       io.NopCloser(strings.NewReader(`{"message":"404 Not Found"}`)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// SetResponse configures a JSON response for a specific method and URL.
func (m *MockHTTPDoer) SetResponse(method, url string, statusCode int, body any) {
	m.SetResponseWithHeader(method, url, statusCode, body, nil)
}

// SetResponseWithHeader configures a JSON response with extra headers, such as pagination.
func (m *MockHTTPDoer) SetResponseWithHeader(method, url string, statusCode int, body any, header http.Header) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			panic(fmt.Sprintf("failed to marshal response body: %v", err))
		}
	}

	m.responses[m.makeKey(method, url)] = mockResponse{
		statusCode: statusCode,
		body:       bodyBytes,
		header:     header,
	}
}

// SetError configures a transport error for a specific method and URL.
func (m *MockHTTPDoer) SetError(method, url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[m.makeKey(method, url)] = err
}

// Calls returns all recorded HTTP calls.
func (m *MockHTTPDoer) Calls() []HTTPCall {
	m.mu.RLock()
	defer m.mu.RUnlock()

	calls := make([]HTTPCall, len(m.calls))
	copy(calls, m.calls)
	return calls
}

// CallCount returns how many recorded calls match method and URL.
func (m *MockHTTPDoer) CallCount(method, url string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	n := 0
	for _, c := range m.calls {
		if c.Method == method && c.URL == url {
			n++
		}
	}
	return n
}

// Reset clears all configured responses and recorded calls.
func (m *MockHTTPDoer) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.responses = make(map[string]mockResponse)
	m.errors = make(map[string]error)
	m.calls = nil
}

func (*MockHTTPDoer) makeKey(method, url string) string {
	return method + ":" + url
}
